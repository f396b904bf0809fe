package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"sc2-replay-analyzer/internal/ipc"
)

// Writer provides methods to write analyzed replays to the database.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new database writer.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// StoreOptions describes how a result is stored.
type StoreOptions struct {
	// Slug identifies the replay; NewSlug(filename) is used when empty.
	Slug string
	// ContentHash is the hash of the replay bytes, if known.
	ContentHash string
	// Replace overwrites an existing replay with the same slug.
	Replace bool
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// NewSlug derives a URL-safe slug from a file name plus a random suffix.
func NewSlug(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if len(base) > 60 {
		base = base[:60]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// StoreResult writes a result with its players, build orders and snapshots
// in one transaction and returns the slug it was stored under.
func (w *Writer) StoreResult(ctx context.Context, res *ipc.Result, opts StoreOptions) (string, error) {
	if res == nil || res.GameInfo == nil {
		return "", fmt.Errorf("result has no game info: %s", resultError(res))
	}
	slug := opts.Slug
	if slug == "" {
		slug = NewSlug(res.GameInfo.Filename)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM replays WHERE slug = ?`, slug).Scan(&existing)
	switch {
	case err == nil && !opts.Replace:
		return "", fmt.Errorf("%w: %s", ErrSlugExists, slug)
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM replays WHERE id = ?`, existing); err != nil {
			return "", fmt.Errorf("failed to replace replay: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to look up slug: %w", err)
	}

	replayID, err := insertReplay(ctx, tx, slug, res, opts.ContentHash)
	if err != nil {
		return "", err
	}
	for i, entry := range res.Players {
		if err := insertReplayPlayer(ctx, tx, replayID, i, entry); err != nil {
			return "", err
		}
	}
	if err := insertSnapshots(ctx, tx, replayID, res); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return slug, nil
}

func resultError(res *ipc.Result) string {
	if res == nil {
		return "nil result"
	}
	return res.Error
}

func insertReplay(ctx context.Context, tx *sql.Tx, slug string, res *ipc.Result, hash string) (int64, error) {
	gi := res.GameInfo
	var errText, hashArg *string
	if res.Error != "" {
		errText = &res.Error
	}
	if hash != "" {
		hashArg = &hash
	}
	success := 0
	if res.Success {
		success = 1
	}
	r, err := tx.ExecContext(ctx, `
		INSERT INTO replays (
			slug, filename, map_name, game_version, duration, played_at,
			content_hash, success, error, processed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		slug, gi.Filename, gi.MapName, gi.GameVersion, gi.Duration, gi.PlayedAt,
		hashArg, success, errText, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert replay: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read replay id: %w", err)
	}
	return id, nil
}

// upsertPlayer returns the id of the player named name, creating it if needed.
func upsertPlayer(ctx context.Context, tx *sql.Tx, name, race string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO players (name, race) VALUES (?, ?)`, name, race); err != nil {
		return 0, fmt.Errorf("failed to insert player %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET race = ? WHERE name = ?`, race, name); err != nil {
		return 0, fmt.Errorf("failed to update player %s: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM players WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read player id %s: %w", name, err)
	}
	return id, nil
}

func insertReplayPlayer(ctx context.Context, tx *sql.Tx, replayID int64, index int, entry ipc.PlayerEntry) error {
	p := entry.Player
	playerID, err := upsertPlayer(ctx, tx, p.Name, p.Race)
	if err != nil {
		return err
	}
	r, err := tx.ExecContext(ctx, `
		INSERT INTO replay_players (
			replay_id, player_id, player_index, race, team, result,
			apm, resources_collected, units_killed, army_value_max
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		replayID, playerID, index, p.Race, p.Team, p.Result,
		p.APM, p.ResourcesCollected, p.UnitsKilled, p.ArmyValueMax,
	)
	if err != nil {
		return fmt.Errorf("failed to insert replay player %s: %w", p.Name, err)
	}
	rpID, err := r.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read replay player id: %w", err)
	}
	if len(entry.BuildOrder) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO build_orders (
			replay_player_id, order_index, action_name, unit_type, timestamp, formatted_time
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare build order statement: %w", err)
	}
	defer stmt.Close()

	for _, bo := range entry.BuildOrder {
		if _, err := stmt.ExecContext(ctx, rpID, bo.OrderIndex, bo.ActionName, bo.UnitType, bo.Timestamp, bo.FormattedTime); err != nil {
			return fmt.Errorf("failed to insert build order entry: %w", err)
		}
	}
	return nil
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, replayID int64, res *ipc.Result) error {
	if len(res.TimeSeries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO replay_snapshots (replay_id, timestamp, snapshot_data)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot statement: %w", err)
	}
	defer stmt.Close()

	for _, snap := range res.TimeSeries {
		data, err := json.Marshal(snap.Players)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, replayID, snap.Timestamp, string(data)); err != nil {
			return fmt.Errorf("failed to insert snapshot at %v: %w", snap.Timestamp, err)
		}
	}
	return nil
}

// ContentHash identifies replay bytes for duplicate detection.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// SetMeta sets a metadata key-value pair.
func (w *Writer) SetMeta(ctx context.Context, key, value string) error {
	query := `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`
	_, err := w.db.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// InsertParserLogs stores the log output captured while analyzing a replay.
func (w *Writer) InsertParserLogs(ctx context.Context, slug string, logs string) error {
	query := `
		INSERT OR REPLACE INTO parser_logs (replay_id, logs, created_at)
		SELECT id, ?, ? FROM replays WHERE slug = ?
	`
	r, err := w.db.ExecContext(ctx, query, logs, time.Now().UTC().Format(time.RFC3339), slug)
	if err != nil {
		return fmt.Errorf("failed to insert parser logs: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return nil
}

// SummaryRow is one row of player_summaries.
type SummaryRow struct {
	PlayerID      int64
	Games         int
	Wins          int
	Losses        int
	AvgAPM        float64
	BestArmyValue int
	TotalKills    int
}

// ReplaceSummaries rewrites player_summaries in one transaction.
func (w *Writer) ReplaceSummaries(ctx context.Context, rows []SummaryRow) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM player_summaries`); err != nil {
		return fmt.Errorf("failed to clear player summaries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO player_summaries (
			player_id, games, wins, losses, avg_apm, best_army_value, total_kills, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range rows {
		if _, err := stmt.ExecContext(ctx, s.PlayerID, s.Games, s.Wins, s.Losses, s.AvgAPM, s.BestArmyValue, s.TotalKills, now); err != nil {
			return fmt.Errorf("failed to insert player summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
