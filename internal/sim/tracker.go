// Package sim replays normalized events into live unit state and
// per-player aggregates.
package sim

import (
	"io"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"sc2-replay-analyzer/internal/events"
	"sc2-replay-analyzer/internal/sc2data"
)

// UnknownType is the type given to units first seen in a position update.
const UnknownType = "unknown"

// Unit is a live unit.
type Unit struct {
	ID         int64
	Type       string
	Owner      int
	IsBuilding bool
	Position   r2.Point
	Velocity   r2.Point
	BornAt     float64
	UpdatedAt  float64
}

// Aggregate holds a player's running totals.
type Aggregate struct {
	Commands           int
	ResourcesCollected float64
	UnitsKilled        int
	ArmyValueMax       float64
	Upgrades           int
	APM                int
}

// Counters tallies anomalies seen while applying events.
type Counters struct {
	DuplicateUnitIDs int
	UnknownUnitRefs  int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tracker) { t.log = l }
}

// Tracker owns the live unit table and the player aggregates.
type Tracker struct {
	units    map[int64]*Unit
	aggs     []Aggregate
	counters Counters
	now      float64
	log      logrus.FieldLogger
}

// NewTracker creates a tracker for players players.
func NewTracker(players int, opts ...Option) *Tracker {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	t := &Tracker{
		units: make(map[int64]*Unit),
		aggs:  make([]Aggregate, players),
		log:   discard,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) agg(player int) *Aggregate {
	if player < 0 || player >= len(t.aggs) {
		return nil
	}
	return &t.aggs[player]
}

// Apply advances the state by one event.
func (t *Tracker) Apply(ev events.Event) {
	t.now = ev.Time()

	switch e := ev.(type) {
	case events.UnitBorn:
		if _, live := t.units[e.UnitID]; live {
			t.counters.DuplicateUnitIDs++
			t.log.WithFields(logrus.Fields{
				"unit_id": e.UnitID,
				"type":    e.UnitType,
				"t":       e.At,
			}).Warn("unit born with a live id, replacing")
		}
		t.units[e.UnitID] = &Unit{
			ID:         e.UnitID,
			Type:       e.UnitType,
			Owner:      e.Owner,
			IsBuilding: e.InProgress || sc2data.IsBuilding(e.UnitType),
			Position:   e.Position,
			BornAt:     e.At,
			UpdatedAt:  e.At,
		}

	case events.UnitPositionUpdate:
		u, live := t.units[e.UnitID]
		if !live {
			t.counters.UnknownUnitRefs++
			owner := -1
			if e.Owner != nil {
				owner = *e.Owner
			}
			u = &Unit{ID: e.UnitID, Type: UnknownType, Owner: owner, Position: e.Position, BornAt: e.At, UpdatedAt: e.At}
			t.units[e.UnitID] = u
		} else {
			switch {
			case e.Velocity != nil:
				u.Velocity = *e.Velocity
			case e.At > u.UpdatedAt:
				u.Velocity = e.Position.Sub(u.Position).Mul(1 / (e.At - u.UpdatedAt))
			}
			u.Position = e.Position
			u.UpdatedAt = e.At
			if e.Owner != nil {
				u.Owner = *e.Owner
			}
		}
		if e.Velocity != nil {
			u.Velocity = *e.Velocity
		}

	case events.UnitDied:
		u, live := t.units[e.UnitID]
		if !live {
			return
		}
		if e.Killer >= 0 && e.Killer != u.Owner {
			if a := t.agg(e.Killer); a != nil {
				a.UnitsKilled++
			}
		}
		delete(t.units, e.UnitID)

	case events.UnitOwnerChanged:
		u, live := t.units[e.UnitID]
		if !live {
			t.counters.UnknownUnitRefs++
			return
		}
		u.Owner = e.Owner

	case events.UnitTypeChanged:
		u, live := t.units[e.UnitID]
		if !live {
			t.counters.UnknownUnitRefs++
			return
		}
		u.Type = e.UnitType
		u.IsBuilding = sc2data.IsBuilding(e.UnitType)

	case events.PlayerStatUpdate:
		if a := t.agg(e.Player); a != nil {
			a.ResourcesCollected += e.ResourcesDelta
			if e.ArmyValue > a.ArmyValueMax {
				a.ArmyValueMax = e.ArmyValue
			}
		}

	case events.PlayerCommand:
		if a := t.agg(e.Player); a != nil {
			a.Commands++
		}

	case events.UpgradeCompleted:
		if a := t.agg(e.Player); a != nil {
			a.Upgrades++
		}
	}
}

// Now is the time of the last applied event.
func (t *Tracker) Now() float64 { return t.now }

// Unit returns a copy of a live unit.
func (t *Tracker) Unit(id int64) (Unit, bool) {
	u, ok := t.units[id]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// LiveUnits returns copies of all live units ordered by id.
func (t *Tracker) LiveUnits() []Unit {
	out := make([]Unit, 0, len(t.units))
	for _, u := range t.units {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Aggregate returns a player's running totals.
func (t *Tracker) Aggregate(player int) Aggregate {
	if a := t.agg(player); a != nil {
		return *a
	}
	return Aggregate{}
}

// Counters returns the anomaly counters.
func (t *Tracker) Counters() Counters { return t.counters }

// Finalize computes APM over elapsed game seconds and returns all aggregates.
func (t *Tracker) Finalize(elapsed float64) []Aggregate {
	out := make([]Aggregate, len(t.aggs))
	copy(out, t.aggs)
	minutes := elapsed / 60
	for i := range out {
		if minutes > 0 {
			out[i].APM = int(float64(out[i].Commands) / minutes)
		}
	}
	return out
}
