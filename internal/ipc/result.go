package ipc

import (
	"encoding/json"
	"io"

	"sc2-replay-analyzer/internal/timeseries"
)

// Result is the JSON document handed to the web app.
type Result struct {
	Success     bool                  `json:"success"`
	GameInfo    *GameInfo             `json:"game_info,omitempty"`
	Players     []PlayerEntry         `json:"players,omitempty"`
	TimeSeries  []timeseries.Snapshot `json:"time_series,omitempty"`
	Error       string                `json:"error,omitempty"`
	Diagnostics *Diagnostics          `json:"diagnostics,omitempty"`
}

// GameInfo describes the replay as a whole.
type GameInfo struct {
	Filename    string  `json:"filename"`
	MapName     string  `json:"map_name"`
	GameVersion string  `json:"game_version"`
	Duration    float64 `json:"duration"`
	PlayedAt    *int64  `json:"played_at"`
}

// PlayerEntry is one player with stats and build order.
type PlayerEntry struct {
	Player     PlayerStats  `json:"player"`
	BuildOrder []BuildOrder `json:"build_order"`
}

// PlayerStats is a player's identity and final aggregates.
type PlayerStats struct {
	Name               string `json:"name"`
	Race               string `json:"race"`
	Team               int    `json:"team"`
	Result             string `json:"result"`
	APM                int    `json:"apm"`
	ResourcesCollected int    `json:"resources_collected"`
	UnitsKilled        int    `json:"units_killed"`
	ArmyValueMax       int    `json:"army_value_max"`
}

// BuildOrder is one build order entry.
type BuildOrder struct {
	ActionName    string  `json:"action_name"`
	UnitType      *string `json:"unit_type,omitempty"`
	Timestamp     float64 `json:"timestamp"`
	OrderIndex    int     `json:"order_index"`
	FormattedTime string  `json:"formatted_time"`
}

// Diagnostics reports what the pipeline skipped or repaired.
type Diagnostics struct {
	BaseBuild           int            `json:"base_build"`
	TrackerRecords      int            `json:"tracker_records"`
	GameRecords         int            `json:"game_records"`
	Events              int            `json:"events"`
	DroppedRecords      map[string]int `json:"dropped_records,omitempty"`
	UnresolvedPlayers   int            `json:"unresolved_players"`
	DuplicateUnitIDs    int            `json:"duplicate_unit_ids"`
	UnknownUnitRefs     int            `json:"unknown_unit_refs"`
	UnclassifiedActions int            `json:"unclassified_actions"`
	UpgradesCompleted   []int          `json:"upgrades_completed,omitempty"`
	Truncated           bool           `json:"truncated"`
	Interrupted         bool           `json:"interrupted"`
	Issues              []string       `json:"issues,omitempty"`
}

// Failure builds the result for an analysis that produced nothing.
func Failure(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// WriteResult encodes r as a single indented JSON document.
func WriteResult(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadResult decodes a result document.
func ReadResult(r io.Reader) (*Result, error) {
	var res Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
