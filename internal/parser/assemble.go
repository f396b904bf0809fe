package parser

import (
	"math"
	"strings"

	"sc2-replay-analyzer/internal/ipc"
	"sc2-replay-analyzer/internal/parser/extractors"
)

// Assemble builds the result document. Any issue makes the result
// unsuccessful, but everything that could be derived is still included.
func Assemble(filename string, md *MatchData) *ipc.Result {
	rep := md.Replay
	res := &ipc.Result{
		Success: len(md.Issues) == 0,
		GameInfo: &ipc.GameInfo{
			Filename:    filename,
			MapName:     rep.MapName(),
			GameVersion: rep.Header.Version.String(),
			Duration:    md.End,
		},
		Players:    make([]ipc.PlayerEntry, 0, len(rep.Players)),
		TimeSeries: md.TimeSeries,
	}
	if at, ok := rep.Details.PlayedAt(); ok {
		res.GameInfo.PlayedAt = &at
	}

	for i, pl := range rep.Players {
		entry := ipc.PlayerEntry{
			Player: ipc.PlayerStats{
				Name:   pl.Name,
				Race:   pl.Race,
				Team:   pl.Team,
				Result: pl.Result,
			},
			BuildOrder: []ipc.BuildOrder{},
		}
		if i < len(md.Aggregates) {
			agg := md.Aggregates[i]
			entry.Player.APM = agg.APM
			entry.Player.ResourcesCollected = int(math.Round(agg.ResourcesCollected))
			entry.Player.UnitsKilled = agg.UnitsKilled
			entry.Player.ArmyValueMax = int(math.Round(agg.ArmyValueMax))
		}
		if i < len(md.BuildOrders) {
			entry.BuildOrder = buildOrderEntries(md.BuildOrders[i])
		}
		res.Players = append(res.Players, entry)
	}

	if len(md.Issues) > 0 {
		msgs := make([]string, len(md.Issues))
		for i, err := range md.Issues {
			msgs[i] = err.Error()
		}
		res.Error = strings.Join(msgs, "; ")
	}
	res.Diagnostics = diagnostics(md)
	return res
}

func buildOrderEntries(actions []extractors.Action) []ipc.BuildOrder {
	out := make([]ipc.BuildOrder, len(actions))
	for i, a := range actions {
		out[i] = ipc.BuildOrder{
			ActionName:    a.ActionName,
			UnitType:      a.UnitType,
			Timestamp:     a.Timestamp,
			OrderIndex:    a.OrderIndex,
			FormattedTime: a.FormattedTime,
		}
	}
	return out
}

func diagnostics(md *MatchData) *ipc.Diagnostics {
	d := &ipc.Diagnostics{
		BaseBuild:           md.Replay.Header.Version.BaseBuild,
		DuplicateUnitIDs:    md.Counters.DuplicateUnitIDs,
		UnknownUnitRefs:     md.Counters.UnknownUnitRefs,
		UnclassifiedActions: md.Unclassified,
		Truncated:           md.Replay.Truncated,
		Interrupted:         md.Interrupted,
	}
	if len(md.Aggregates) > 0 {
		d.UpgradesCompleted = make([]int, len(md.Aggregates))
		for i, agg := range md.Aggregates {
			d.UpgradesCompleted[i] = agg.Upgrades
		}
	}
	if seq := md.Sequence; seq != nil {
		d.TrackerRecords = seq.TrackerRecords
		d.GameRecords = seq.GameRecords
		d.Events = len(seq.Events)
		d.UnresolvedPlayers = seq.UnresolvedPlayers
		if len(seq.Dropped) > 0 {
			d.DroppedRecords = seq.Dropped
		}
	}
	for _, err := range md.Issues {
		d.Issues = append(d.Issues, err.Error())
	}
	return d
}
