package scoring

import (
	"context"
	"fmt"
	"sort"

	"sc2-replay-analyzer/internal/db"
)

// Scorer computes per-player summaries across stored replays.
type Scorer struct {
	writer *db.Writer
}

// NewScorer creates a new scorer.
func NewScorer(writer *db.Writer) *Scorer {
	return &Scorer{writer: writer}
}

// ComputeSummaries recomputes and stores the summary of every player.
func (s *Scorer) ComputeSummaries(ctx context.Context, reader *db.Reader) ([]db.SummaryRow, error) {
	rows, err := reader.GetPlayerRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player rows: %w", err)
	}

	// Aggregate by player
	aggs := make(map[int64]*playerAggregate)
	for _, row := range rows {
		agg := aggs[row.PlayerID]
		if agg == nil {
			agg = &playerAggregate{playerID: row.PlayerID}
			aggs[row.PlayerID] = agg
		}
		agg.add(row)
	}

	summaries := make([]db.SummaryRow, 0, len(aggs))
	for _, agg := range aggs {
		summaries = append(summaries, agg.summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].PlayerID < summaries[j].PlayerID })

	if err := s.writer.ReplaceSummaries(ctx, summaries); err != nil {
		return nil, fmt.Errorf("failed to store player summaries: %w", err)
	}
	return summaries, nil
}

type playerAggregate struct {
	playerID int64
	games    int
	wins     int
	losses   int
	apmTotal int
	bestArmy int
	kills    int
}

func (a *playerAggregate) add(row db.PlayerRow) {
	a.games++
	switch row.Result {
	case "Victory":
		a.wins++
	case "Defeat":
		a.losses++
	}
	a.apmTotal += row.APM
	a.kills += row.UnitsKilled
	if row.ArmyValueMax > a.bestArmy {
		a.bestArmy = row.ArmyValueMax
	}
}

func (a *playerAggregate) summary() db.SummaryRow {
	s := db.SummaryRow{
		PlayerID:      a.playerID,
		Games:         a.games,
		Wins:          a.wins,
		Losses:        a.losses,
		BestArmyValue: a.bestArmy,
		TotalKills:    a.kills,
	}
	if a.games > 0 {
		s.AvgAPM = float64(a.apmTotal) / float64(a.games)
	}
	return s
}
