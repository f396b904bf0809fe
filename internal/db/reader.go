package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/timeseries"
)

// Reader provides methods to read analyzed replays from the database.
type Reader struct {
	db *sql.DB
}

// NewReader creates a new database reader.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// ReplaySummary is one row of the replay list.
type ReplaySummary struct {
	Slug        string
	Filename    string
	MapName     string
	GameVersion string
	Duration    float64
	PlayedAt    *int64
	Success     bool
	ProcessedAt string
}

// PlayerRow is one player's line in one stored replay.
type PlayerRow struct {
	PlayerID     int64
	Name         string
	Race         string
	Result       string
	APM          int
	UnitsKilled  int
	ArmyValueMax int
}

// GetReplayBySlug rebuilds the stored result of a replay.
func (r *Reader) GetReplayBySlug(ctx context.Context, slug string) (*ipc.Result, error) {
	var (
		id       int64
		gi       ipc.GameInfo
		mapName  sql.NullString
		version  sql.NullString
		playedAt sql.NullInt64
		success  int
		errText  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, filename, map_name, game_version, duration, played_at, success, error
		FROM replays
		WHERE slug = ?
	`, slug).Scan(&id, &gi.Filename, &mapName, &version, &gi.Duration, &playedAt, &success, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query replay: %w", err)
	}
	gi.MapName = mapName.String
	gi.GameVersion = version.String
	if playedAt.Valid {
		gi.PlayedAt = &playedAt.Int64
	}

	res := &ipc.Result{Success: success == 1, GameInfo: &gi, Error: errText.String}
	if res.Players, err = r.getPlayers(ctx, id); err != nil {
		return nil, err
	}
	if res.TimeSeries, err = r.getSnapshots(ctx, id); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Reader) getPlayers(ctx context.Context, replayID int64) ([]ipc.PlayerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rp.id, p.name, rp.race, rp.team, rp.result,
		       rp.apm, rp.resources_collected, rp.units_killed, rp.army_value_max
		FROM replay_players rp
		JOIN players p ON p.id = rp.player_id
		WHERE rp.replay_id = ?
		ORDER BY rp.player_index ASC
	`, replayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replay players: %w", err)
	}
	defer rows.Close()

	var ids []int64
	entries := make([]ipc.PlayerEntry, 0)
	for rows.Next() {
		var (
			rpID         int64
			p            ipc.PlayerStats
			race, result sql.NullString
		)
		err := rows.Scan(&rpID, &p.Name, &race, &p.Team, &result,
			&p.APM, &p.ResourcesCollected, &p.UnitsKilled, &p.ArmyValueMax)
		if err != nil {
			return nil, fmt.Errorf("failed to scan replay player: %w", err)
		}
		p.Race, p.Result = race.String, result.String
		ids = append(ids, rpID)
		entries = append(entries, ipc.PlayerEntry{Player: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replay players: %w", err)
	}
	rows.Close()

	for i, rpID := range ids {
		bo, err := r.getBuildOrder(ctx, rpID)
		if err != nil {
			return nil, err
		}
		entries[i].BuildOrder = bo
	}
	return entries, nil
}

func (r *Reader) getBuildOrder(ctx context.Context, replayPlayerID int64) ([]ipc.BuildOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_name, unit_type, timestamp, order_index, formatted_time
		FROM build_orders
		WHERE replay_player_id = ?
		ORDER BY order_index ASC
	`, replayPlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query build order: %w", err)
	}
	defer rows.Close()

	out := make([]ipc.BuildOrder, 0)
	for rows.Next() {
		var (
			bo       ipc.BuildOrder
			unitType sql.NullString
		)
		if err := rows.Scan(&bo.ActionName, &unitType, &bo.Timestamp, &bo.OrderIndex, &bo.FormattedTime); err != nil {
			return nil, fmt.Errorf("failed to scan build order: %w", err)
		}
		if unitType.Valid {
			bo.UnitType = &unitType.String
		}
		out = append(out, bo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build order: %w", err)
	}
	return out, nil
}

func (r *Reader) getSnapshots(ctx context.Context, replayID int64) ([]timeseries.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, snapshot_data
		FROM replay_snapshots
		WHERE replay_id = ?
		ORDER BY timestamp ASC
	`, replayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []timeseries.Snapshot
	for rows.Next() {
		var (
			snap timeseries.Snapshot
			data string
		)
		if err := rows.Scan(&snap.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &snap.Players); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot at %v: %w", snap.Timestamp, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// ListReplays returns the most recently processed replays first.
// A non-positive limit returns all of them.
func (r *Reader) ListReplays(ctx context.Context, limit int) ([]ReplaySummary, error) {
	query := `
		SELECT slug, filename, map_name, game_version, duration, played_at, success, processed_at
		FROM replays
		ORDER BY processed_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query replays: %w", err)
	}
	defer rows.Close()

	out := make([]ReplaySummary, 0)
	for rows.Next() {
		var (
			s                ReplaySummary
			mapName, version sql.NullString
			playedAt         sql.NullInt64
			success          int
		)
		if err := rows.Scan(&s.Slug, &s.Filename, &mapName, &version, &s.Duration, &playedAt, &success, &s.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan replay: %w", err)
		}
		s.MapName, s.GameVersion, s.Success = mapName.String, version.String, success == 1
		if playedAt.Valid {
			s.PlayedAt = &playedAt.Int64
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replays: %w", err)
	}
	return out, nil
}

// GetSlugByHash returns the slug of a stored replay with the given content hash.
func (r *Reader) GetSlugByHash(ctx context.Context, hash string) (string, bool, error) {
	var slug string
	err := r.db.QueryRowContext(ctx, `SELECT slug FROM replays WHERE content_hash = ? LIMIT 1`, hash).Scan(&slug)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query replay by hash: %w", err)
	}
	return slug, true, nil
}

// GetPlayerRows returns every player line of every successfully analyzed replay.
func (r *Reader) GetPlayerRows(ctx context.Context) ([]PlayerRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, rp.race, rp.result, rp.apm, rp.units_killed, rp.army_value_max
		FROM replay_players rp
		JOIN players p ON p.id = rp.player_id
		JOIN replays r ON r.id = rp.replay_id
		WHERE r.success = 1
		ORDER BY p.id ASC, r.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query player rows: %w", err)
	}
	defer rows.Close()

	out := make([]PlayerRow, 0)
	for rows.Next() {
		var (
			pr           PlayerRow
			race, result sql.NullString
		)
		if err := rows.Scan(&pr.PlayerID, &pr.Name, &race, &result, &pr.APM, &pr.UnitsKilled, &pr.ArmyValueMax); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		pr.Race, pr.Result = race.String, result.String
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return out, nil
}

// PlayerSummary is a stored summary joined with the player's name.
type PlayerSummary struct {
	SummaryRow
	Name string
}

// GetPlayerSummaries returns the stored summaries, most games first.
func (r *Reader) GetPlayerSummaries(ctx context.Context) ([]PlayerSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.player_id, p.name, s.games, s.wins, s.losses, s.avg_apm, s.best_army_value, s.total_kills
		FROM player_summaries s
		JOIN players p ON p.id = s.player_id
		ORDER BY s.games DESC, p.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query player summaries: %w", err)
	}
	defer rows.Close()

	out := make([]PlayerSummary, 0)
	for rows.Next() {
		var s PlayerSummary
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Games, &s.Wins, &s.Losses, &s.AvgAPM, &s.BestArmyValue, &s.TotalKills); err != nil {
			return nil, fmt.Errorf("failed to scan player summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player summaries: %w", err)
	}
	return out, nil
}

// GetMeta reads a metadata value.
func (r *Reader) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read meta: %w", err)
	}
	return value, true, nil
}

// GetParserLogs retrieves the stored analysis logs of a replay.
func (r *Reader) GetParserLogs(ctx context.Context, slug string) (string, error) {
	var logs string
	err := r.db.QueryRowContext(ctx, `
		SELECT l.logs FROM parser_logs l JOIN replays r ON r.id = l.replay_id WHERE r.slug = ?
	`, slug).Scan(&logs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query parser logs: %w", err)
	}
	return logs, nil
}
