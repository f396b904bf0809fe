// Package timeseries samples unit positions at a fixed game-time interval.
package timeseries

import (
	"strconv"

	"sc2-replay-analyzer/internal/events"
	"sc2-replay-analyzer/internal/replay"
	"sc2-replay-analyzer/internal/sim"
)

const (
	// DefaultInterval is the sampling interval in game seconds.
	DefaultInterval = 1.0
	// DefaultBackfillWindow bounds how long after a keyframe samples wait for the next one.
	DefaultBackfillWindow = 20.0
)

// UnitState is a unit as it appears in a snapshot.
type UnitState struct {
	UnitID int64   `json:"unit_id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx,omitempty"`
	VY     float64 `json:"vy,omitempty"`
}

// PlayerUnits is one player's units at a snapshot.
type PlayerUnits struct {
	Name      string      `json:"name"`
	Race      string      `json:"race"`
	Team      int         `json:"team"`
	Units     []UnitState `json:"units"`
	Buildings []UnitState `json:"buildings"`
}

// Snapshot is the state of all player-owned units at Timestamp.
type Snapshot struct {
	Timestamp float64                 `json:"timestamp"`
	Players   map[string]*PlayerUnits `json:"players"`
}

// PlayerKey is the snapshot map key of a player.
func PlayerKey(id int) string { return strconv.Itoa(id) }

// UnitSource is the live state a snapshot copies from.
type UnitSource interface {
	LiveUnits() []sim.Unit
	Unit(id int64) (sim.Unit, bool)
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithInterval sets the sampling interval. Non-positive values are ignored.
func WithInterval(seconds float64) Option {
	return func(s *Snapshotter) {
		if seconds > 0 {
			s.interval = seconds
		}
	}
}

// WithBackfillWindow sets how far past a unit's last keyframe a sample may
// still be interpolated. Zero disables backfill.
func WithBackfillWindow(seconds float64) Option {
	return func(s *Snapshotter) {
		if seconds >= 0 {
			s.window = seconds
		}
	}
}

type keyframe struct {
	at float64
	x  float64
	y  float64
}

type pendingRef struct {
	at    float64
	state *UnitState
}

// Snapshotter produces the time series. Call AdvanceTo before applying an
// event to the tracker, Observe after, and Finish once at the end.
type Snapshotter struct {
	players  []replay.Player
	interval float64
	window   float64
	end      float64
	next     int
	done     bool
	series   []Snapshot

	keyframes map[int64]keyframe
	pending   map[int64][]pendingRef
}

// NewSnapshotter creates a snapshotter sampling up to end.
func NewSnapshotter(players []replay.Player, end float64, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		players:   players,
		interval:  DefaultInterval,
		window:    DefaultBackfillWindow,
		end:       end,
		keyframes: make(map[int64]keyframe),
		pending:   make(map[int64][]pendingRef),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.end < 0 {
		s.end = 0
	}
	return s
}

func (s *Snapshotter) nextTime() (float64, bool) {
	if s.done {
		return 0, false
	}
	ts := float64(s.next) * s.interval
	if ts >= s.end {
		return s.end, true
	}
	return ts, true
}

// AdvanceTo takes every sample strictly before t.
func (s *Snapshotter) AdvanceTo(t float64, src UnitSource) {
	for {
		ts, ok := s.nextTime()
		if !ok || ts >= t {
			return
		}
		s.take(ts, src)
	}
}

// Observe records position keyframes after the tracker applied ev.
func (s *Snapshotter) Observe(ev events.Event, src UnitSource) {
	switch e := ev.(type) {
	case events.UnitBorn:
		delete(s.pending, e.UnitID)
		s.keyframes[e.UnitID] = keyframe{at: e.At, x: e.Position.X, y: e.Position.Y}

	case events.UnitPositionUpdate:
		u, ok := src.Unit(e.UnitID)
		if !ok {
			return
		}
		if prev, ok := s.keyframes[e.UnitID]; ok && e.At > prev.at {
			for _, ref := range s.pending[e.UnitID] {
				f := (ref.at - prev.at) / (e.At - prev.at)
				ref.state.X = prev.x + (u.Position.X-prev.x)*f
				ref.state.Y = prev.y + (u.Position.Y-prev.y)*f
				ref.state.VX = u.Velocity.X
				ref.state.VY = u.Velocity.Y
			}
		}
		delete(s.pending, e.UnitID)
		s.keyframes[e.UnitID] = keyframe{at: e.At, x: u.Position.X, y: u.Position.Y}

	case events.UnitDied:
		delete(s.pending, e.UnitID)
		delete(s.keyframes, e.UnitID)
	}
}

// Finish takes the remaining samples and returns the series. A
// non-negative end below the planned one shortens the series, for input
// that stopped early.
func (s *Snapshotter) Finish(src UnitSource, end float64) []Snapshot {
	if end >= 0 && end < s.end {
		s.end = end
	}
	for {
		ts, ok := s.nextTime()
		if !ok {
			break
		}
		s.take(ts, src)
	}
	s.pending = make(map[int64][]pendingRef)
	return s.series
}

func (s *Snapshotter) take(ts float64, src UnitSource) {
	snap := Snapshot{Timestamp: ts, Players: make(map[string]*PlayerUnits, len(s.players))}
	for _, p := range s.players {
		snap.Players[PlayerKey(p.ID)] = &PlayerUnits{
			Name:      p.Name,
			Race:      p.Race,
			Team:      p.Team,
			Units:     []UnitState{},
			Buildings: []UnitState{},
		}
	}

	// LiveUnits is ordered by id, so the lists below are too.
	for _, u := range src.LiveUnits() {
		pu, ok := snap.Players[PlayerKey(u.Owner)]
		if !ok || u.Owner < 0 {
			continue
		}
		st := UnitState{UnitID: u.ID, Type: u.Type, X: u.Position.X, Y: u.Position.Y, VX: u.Velocity.X, VY: u.Velocity.Y}
		if u.IsBuilding {
			pu.Buildings = append(pu.Buildings, st)
		} else {
			pu.Units = append(pu.Units, st)
		}
	}

	for _, pu := range snap.Players {
		s.track(ts, pu.Units)
	}

	s.series = append(s.series, snap)
	if ts >= s.end {
		s.done = true
	} else {
		s.next++
	}
}

// track registers states sampled after the unit's last keyframe so the next
// keyframe can fill them in.
func (s *Snapshotter) track(ts float64, list []UnitState) {
	for i := range list {
		id := list[i].UnitID
		kf, ok := s.keyframes[id]
		if !ok || kf.at >= ts || ts-kf.at > s.window {
			continue
		}
		s.pending[id] = append(s.pending[id], pendingRef{at: ts, state: &list[i]})
	}
}
