package events

import (
	"fmt"
	"io"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/replay"
)

// Sequence is the normalized, time-ordered event list of a replay.
type Sequence struct {
	Events []Event
	// Dropped counts records that map to no event, keyed "stream:kind".
	Dropped map[string]int
	// UnresolvedPlayers counts game events whose user is not a player.
	UnresolvedPlayers int
	TrackerRecords    int
	GameRecords       int
}

// DroppedTotal sums Dropped.
func (s *Sequence) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(n *Normalizer) { n.log = l }
}

// Normalizer maps one replay's records onto events.
type Normalizer struct {
	rep    *replay.Replay
	schema *protocol.Schema
	log    logrus.FieldLogger

	seq       *Sequence
	lastStat  map[int]float64
	recycleOf map[int64]int64
}

// NewNormalizer prepares a normalizer for rep.
func NewNormalizer(rep *replay.Replay, opts ...Option) *Normalizer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	n := &Normalizer{
		rep:       rep,
		schema:    rep.Schema,
		log:       discard,
		lastStat:  make(map[int]float64),
		recycleOf: make(map[int64]int64),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts both event streams and orders the result by time.
// Tracker events precede game events with the same timestamp.
func (n *Normalizer) Normalize() *Sequence {
	n.seq = &Sequence{
		Dropped:        make(map[string]int),
		TrackerRecords: len(n.rep.Tracker),
		GameRecords:    len(n.rep.Game),
	}
	for _, rec := range n.rep.Tracker {
		n.tracker(rec)
	}
	for _, rec := range n.rep.Game {
		n.game(rec)
	}
	evs := n.seq.Events
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Time() < evs[j].Time()
	})

	n.log.WithFields(logrus.Fields{
		"events":     len(evs),
		"dropped":    n.seq.DroppedTotal(),
		"unresolved": n.seq.UnresolvedPlayers,
	}).Debug("normalized replay events")
	return n.seq
}

func (n *Normalizer) next() int { return len(n.seq.Events) }

func (n *Normalizer) emit(ev Event) { n.seq.Events = append(n.seq.Events, ev) }

func (n *Normalizer) drop(stream string, kind protocol.EventKind, id int64) {
	key := fmt.Sprintf("%s:%s", stream, kind)
	if kind == protocol.EventUnknown {
		key = fmt.Sprintf("%s:%d", stream, id)
	}
	n.seq.Dropped[key]++
}

func (n *Normalizer) owner(trackerID int64) int {
	if trackerID <= 0 {
		return -1
	}
	return n.rep.PlayerForTracker(trackerID)
}

func (n *Normalizer) tracker(rec replay.Record) {
	kind := n.schema.TrackerKind(rec.EventID)
	at := n.rep.Seconds(rec.Loop)
	ev := rec.Event
	s := n.schema

	switch kind {
	case protocol.EventUnitBorn, protocol.EventUnitInit:
		l := s.Born
		if kind == protocol.EventUnitInit {
			l = s.Init
		}
		idx, ok1 := ev.Int(l.TagIndex)
		rc, ok2 := ev.Int(l.TagRecycle)
		typ, ok3 := ev.String(l.TypeName)
		if !ok1 || !ok2 || !ok3 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		ctrl, _ := ev.Int(l.ControlPlayerID)
		x, _ := ev.Int(l.X)
		y, _ := ev.Int(l.Y)
		n.recycleOf[idx] = rc
		n.emit(UnitBorn{
			At:         at,
			Seq:        n.next(),
			UnitID:     UnitTag(idx, rc),
			UnitType:   typ,
			Owner:      n.owner(ctrl),
			Position:   r2.Point{X: float64(x), Y: float64(y)},
			InProgress: kind == protocol.EventUnitInit,
		})

	case protocol.EventUnitDied:
		l := s.Died
		idx, ok1 := ev.Int(l.TagIndex)
		rc, ok2 := ev.Int(l.TagRecycle)
		if !ok1 || !ok2 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		killer := -1
		if k, ok := ev.Int(l.KillerPlayerID); ok {
			killer = n.owner(k)
		}
		x, _ := ev.Int(l.X)
		y, _ := ev.Int(l.Y)
		n.emit(UnitDied{
			At:       at,
			Seq:      n.next(),
			UnitID:   UnitTag(idx, rc),
			Killer:   killer,
			Position: r2.Point{X: float64(x), Y: float64(y)},
		})

	case protocol.EventUnitPositions:
		l := s.Positions
		first, ok := ev.Int(l.FirstUnitIndex)
		items, ok2 := ev.Ints(l.Items)
		if !ok || !ok2 || !ev.Has(l.Items) || len(items)%3 != 0 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		idx := first
		for i := 0; i+2 < len(items); i += 3 {
			delta, x, y := items[i], items[i+1], items[i+2]
			idx += delta
			n.emit(UnitPositionUpdate{
				At:     at,
				Seq:    n.next(),
				UnitID: UnitTag(idx, n.recycleOf[idx]),
				Position: r2.Point{
					X: float64(x) / s.PositionScale,
					Y: float64(y) / s.PositionScale,
				},
			})
		}

	case protocol.EventPlayerStats:
		l := s.Stats
		pid, ok := ev.Int(l.PlayerID)
		stats, ok2 := ev.Sub(l.Stats)
		if !ok || !ok2 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		player := n.owner(pid)
		if player < 0 {
			return
		}
		mr, _ := stats.Int(l.MineralsRate)
		vr, _ := stats.Int(l.VespeneRate)
		ma, _ := stats.Int(l.MineralsArmy)
		va, _ := stats.Int(l.VespeneArmy)
		dt := at - n.lastStat[player]
		if dt < 0 {
			dt = 0
		}
		n.lastStat[player] = at
		n.emit(PlayerStatUpdate{
			At:             at,
			Seq:            n.next(),
			Player:         player,
			ResourcesDelta: float64(mr+vr) * dt / 60,
			ArmyValue:      float64(ma + va),
		})

	case protocol.EventUnitOwnerChange:
		l := s.OwnerChange
		idx, ok1 := ev.Int(l.TagIndex)
		rc, ok2 := ev.Int(l.TagRecycle)
		ctrl, ok3 := ev.Int(l.ControlPlayerID)
		if !ok1 || !ok2 || !ok3 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		n.emit(UnitOwnerChanged{At: at, Seq: n.next(), UnitID: UnitTag(idx, rc), Owner: n.owner(ctrl)})

	case protocol.EventUnitTypeChange:
		l := s.TypeChange
		idx, ok1 := ev.Int(l.TagIndex)
		rc, ok2 := ev.Int(l.TagRecycle)
		typ, ok3 := ev.String(l.TypeName)
		if !ok1 || !ok2 || !ok3 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		n.emit(UnitTypeChanged{At: at, Seq: n.next(), UnitID: UnitTag(idx, rc), UnitType: typ})

	case protocol.EventUpgrade:
		l := s.Upgrade
		pid, ok1 := ev.Int(l.PlayerID)
		name, ok2 := ev.String(l.TypeName)
		if !ok1 || !ok2 {
			n.drop("tracker", kind, rec.EventID)
			return
		}
		player := n.owner(pid)
		if player < 0 {
			return
		}
		n.emit(UpgradeCompleted{At: at, Seq: n.next(), Player: player, Upgrade: name})

	case protocol.EventUnitDone, protocol.EventPlayerSetup:
		// carry nothing the pipeline uses

	default:
		n.drop("tracker", kind, rec.EventID)
	}
}

func (n *Normalizer) game(rec replay.Record) {
	kind := n.schema.GameKind(rec.EventID)
	switch kind {
	case protocol.EventCmd, protocol.EventSelectionDelta, protocol.EventControlGroupUpdate:
	case protocol.EventCameraUpdate:
		return
	default:
		n.drop("game", kind, rec.EventID)
		return
	}

	player, ok := n.rep.PlayerForUser(rec.UserID)
	if !ok {
		n.seq.UnresolvedPlayers++
		return
	}
	cmd := PlayerCommand{At: n.rep.Seconds(rec.Loop), Seq: n.next(), Player: player}

	switch kind {
	case protocol.EventSelectionDelta:
		cmd.Kind = CommandSelection
	case protocol.EventControlGroupUpdate:
		cmd.Kind = CommandControlGroup
	case protocol.EventCmd:
		cmd.Kind = CommandAbility
		cmd.Ability = protocol.Ability{Link: -1, CmdIndex: -1}
		l := n.schema.Cmd
		if abil, ok := rec.Event.Sub(l.Abil); ok {
			link, _ := abil.Int(l.Link)
			idx, _ := abil.Int(l.CmdIndex)
			cmd.Ability, cmd.Resolved = n.schema.Abilities.Resolve(int(link), int(idx))
		}
	}
	n.emit(cmd)
}
