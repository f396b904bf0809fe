package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is stored in meta under "schema_version".
const SchemaVersion = "1"

// Schema defines the SQLite database schema for analyzed replays.
const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS replays (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	map_name TEXT,
	game_version TEXT,
	duration REAL NOT NULL DEFAULT 0,
	played_at INTEGER,
	content_hash TEXT,
	success INTEGER NOT NULL DEFAULT 1,
	error TEXT,
	processed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	race TEXT
);

CREATE TABLE IF NOT EXISTS replay_players (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	replay_id INTEGER NOT NULL,
	player_id INTEGER NOT NULL,
	player_index INTEGER NOT NULL,
	race TEXT,
	team INTEGER NOT NULL,
	result TEXT,
	apm INTEGER NOT NULL DEFAULT 0,
	resources_collected INTEGER NOT NULL DEFAULT 0,
	units_killed INTEGER NOT NULL DEFAULT 0,
	army_value_max INTEGER NOT NULL DEFAULT 0,
	UNIQUE(replay_id, player_index),
	FOREIGN KEY(replay_id) REFERENCES replays(id) ON DELETE CASCADE,
	FOREIGN KEY(player_id) REFERENCES players(id)
);

CREATE TABLE IF NOT EXISTS build_orders (
	replay_player_id INTEGER NOT NULL,
	order_index INTEGER NOT NULL,
	action_name TEXT NOT NULL,
	unit_type TEXT,
	timestamp REAL NOT NULL,
	formatted_time TEXT NOT NULL,
	PRIMARY KEY(replay_player_id, order_index),
	FOREIGN KEY(replay_player_id) REFERENCES replay_players(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS replay_snapshots (
	replay_id INTEGER NOT NULL,
	timestamp REAL NOT NULL,
	snapshot_data TEXT NOT NULL,
	PRIMARY KEY(replay_id, timestamp),
	FOREIGN KEY(replay_id) REFERENCES replays(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS player_summaries (
	player_id INTEGER PRIMARY KEY,
	games INTEGER NOT NULL DEFAULT 0,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	avg_apm REAL NOT NULL DEFAULT 0,
	best_army_value INTEGER NOT NULL DEFAULT 0,
	total_kills INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(player_id) REFERENCES players(id)
);

CREATE TABLE IF NOT EXISTS parser_logs (
	replay_id INTEGER PRIMARY KEY,
	logs TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(replay_id) REFERENCES replays(id) ON DELETE CASCADE
);

-- Indexes for common query patterns
CREATE INDEX IF NOT EXISTS idx_replays_map ON replays(map_name);
CREATE INDEX IF NOT EXISTS idx_replays_processed ON replays(processed_at);
CREATE INDEX IF NOT EXISTS idx_replays_hash ON replays(content_hash);
CREATE INDEX IF NOT EXISTS idx_players_race ON players(race);
CREATE INDEX IF NOT EXISTS idx_replay_players_replay ON replay_players(replay_id);
CREATE INDEX IF NOT EXISTS idx_replay_players_player ON replay_players(player_id);
CREATE INDEX IF NOT EXISTS idx_build_orders_timestamp ON build_orders(timestamp);
CREATE INDEX IF NOT EXISTS idx_replay_snapshots_timestamp ON replay_snapshots(replay_id, timestamp);
`

// InitSchema initializes the database schema.
// It creates all tables and indexes if they don't already exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
