// Package replaytest builds replay archives for tests.
package replaytest

import (
	"fmt"
	"strings"

	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/replay"
)

// PlayerSpec describes a lobby participant.
type PlayerSpec struct {
	Name     string
	Race     string
	Team     int
	Result   int
	UserID   int
	Random   bool
	Observer bool
}

type record struct {
	loop   int64
	user   int64
	kind   protocol.EventKind
	rawID  int64
	hasRaw bool
	event  protocol.Fields
}

// Builder assembles a replay for one schema.
type Builder struct {
	Schema   *protocol.Schema
	Major    int
	Minor    int
	Revision int
	Loops    int64
	Map      string
	TimeUTC  int64
	// Compress zlib-compresses sectors that shrink.
	Compress bool

	players      []PlayerSpec
	tracker      []record
	game         []record
	skipSections map[string]bool
	corrupt      map[string]bool
}

// New returns a builder for baseBuild. It panics when the build has no schema.
func New(baseBuild int) *Builder {
	s, err := protocol.DefaultRegistry().Lookup(baseBuild)
	if err != nil {
		panic(err)
	}
	return &Builder{
		Schema:       s,
		Major:        5,
		Loops:        16 * 60,
		Map:          "Test Map LE",
		TimeUTC:      133500000000000000,
		skipSections: map[string]bool{},
		corrupt:      map[string]bool{},
	}
}

// Player adds a participant; its tracker id is its position + 1.
func (b *Builder) Player(p PlayerSpec) *Builder {
	b.players = append(b.players, p)
	return b
}

// Duration sets the header length in seconds.
func (b *Builder) Duration(seconds float64) *Builder {
	b.Loops = int64(seconds * b.Schema.LoopsPerSecond)
	return b
}

// Skip leaves a file out of the archive and its listfile.
func (b *Builder) Skip(section string) *Builder {
	b.skipSections[section] = true
	return b
}

// Corrupt stores bytes that do not decode in place of a section.
func (b *Builder) Corrupt(section string) *Builder {
	b.corrupt[section] = true
	return b
}

func (b *Builder) loop(seconds float64) int64 {
	return int64(seconds * b.Schema.LoopsPerSecond)
}

func (b *Builder) addTracker(at float64, kind protocol.EventKind, ev protocol.Fields) *Builder {
	b.tracker = append(b.tracker, record{loop: b.loop(at), user: -1, kind: kind, event: ev})
	return b
}

func (b *Builder) addGame(at float64, user int, kind protocol.EventKind, ev protocol.Fields) *Builder {
	b.game = append(b.game, record{loop: b.loop(at), user: int64(user), kind: kind, event: ev})
	return b
}

func (b *Builder) unit(l protocol.UnitLayout, index, recycle int, unitType string, player, x, y int) protocol.Fields {
	return protocol.Fields{
		l.TagIndex:        int64(index),
		l.TagRecycle:      int64(recycle),
		l.TypeName:        unitType,
		l.ControlPlayerID: int64(player),
		l.X:               int64(x),
		l.Y:               int64(y),
	}
}

// UnitBorn adds a unit born event. player is the tracker id.
func (b *Builder) UnitBorn(at float64, index, recycle int, unitType string, player int, x, y int) *Builder {
	return b.addTracker(at, protocol.EventUnitBorn, b.unit(b.Schema.Born, index, recycle, unitType, player, x, y))
}

// UnitInit adds a structure placement event.
func (b *Builder) UnitInit(at float64, index, recycle int, unitType string, player int, x, y int) *Builder {
	return b.addTracker(at, protocol.EventUnitInit, b.unit(b.Schema.Init, index, recycle, unitType, player, x, y))
}

// UnitDied adds a death event. killer 0 means no killing player.
func (b *Builder) UnitDied(at float64, index, recycle int, killer int, x, y int) *Builder {
	l := b.Schema.Died
	ev := protocol.Fields{
		l.TagIndex:       int64(index),
		l.TagRecycle:     int64(recycle),
		l.KillerPlayerID: nil,
		l.X:              int64(x),
		l.Y:              int64(y),
	}
	if killer > 0 {
		ev[l.KillerPlayerID] = int64(killer)
	}
	return b.addTracker(at, protocol.EventUnitDied, ev)
}

// Position is one unit of a positions record in map cells.
type Position struct {
	Index int
	X, Y  float64
}

// UnitPositions adds a positions record. Coordinates are scaled by the schema.
func (b *Builder) UnitPositions(at float64, positions ...Position) *Builder {
	l := b.Schema.Positions
	if len(positions) == 0 {
		return b
	}
	first := positions[0].Index
	prev := first
	var items []any
	for i, p := range positions {
		delta := p.Index - prev
		if i == 0 {
			delta = 0
		}
		prev = p.Index
		items = append(items,
			int64(delta),
			int64(p.X*b.Schema.PositionScale),
			int64(p.Y*b.Schema.PositionScale),
		)
	}
	return b.addTracker(at, protocol.EventUnitPositions, protocol.Fields{
		l.FirstUnitIndex: int64(first),
		l.Items:          items,
	})
}

// PlayerStats adds a stats sample with collection rates per minute and army value parts.
func (b *Builder) PlayerStats(at float64, player int, mineralRate, vespeneRate, armyMinerals, armyVespene int) *Builder {
	l := b.Schema.Stats
	return b.addTracker(at, protocol.EventPlayerStats, protocol.Fields{
		l.PlayerID: int64(player),
		l.Stats: protocol.Fields{
			l.MineralsRate: int64(mineralRate),
			l.VespeneRate:  int64(vespeneRate),
			l.MineralsArmy: int64(armyMinerals),
			l.VespeneArmy:  int64(armyVespene),
		},
	})
}

// OwnerChange adds a unit owner change.
func (b *Builder) OwnerChange(at float64, index, recycle, player int) *Builder {
	l := b.Schema.OwnerChange
	return b.addTracker(at, protocol.EventUnitOwnerChange, protocol.Fields{
		l.TagIndex:        int64(index),
		l.TagRecycle:      int64(recycle),
		l.ControlPlayerID: int64(player),
	})
}

// TypeChange adds a unit type change.
func (b *Builder) TypeChange(at float64, index, recycle int, unitType string) *Builder {
	l := b.Schema.TypeChange
	return b.addTracker(at, protocol.EventUnitTypeChange, protocol.Fields{
		l.TagIndex:   int64(index),
		l.TagRecycle: int64(recycle),
		l.TypeName:   unitType,
	})
}

// Upgrade adds an upgrade completion.
func (b *Builder) Upgrade(at float64, player int, name string) *Builder {
	l := b.Schema.Upgrade
	return b.addTracker(at, protocol.EventUpgrade, protocol.Fields{
		l.PlayerID: int64(player),
		l.TypeName: name,
		l.Count:    int64(1),
	})
}

// RawTracker adds a tracker record with an arbitrary event id.
func (b *Builder) RawTracker(at float64, eventID int64, ev protocol.Fields) *Builder {
	b.tracker = append(b.tracker, record{loop: b.loop(at), user: -1, rawID: eventID, hasRaw: true, event: ev})
	return b
}

// Cmd adds a command by ability name. An unknown name is encoded with link -1.
func (b *Builder) Cmd(at float64, user int, ability string, cmdIndex int) *Builder {
	link, ok := b.Schema.Abilities.Link(ability)
	if !ok {
		link = -1
	}
	return b.CmdLink(at, user, link, cmdIndex)
}

// CmdLink adds a command by raw ability link.
func (b *Builder) CmdLink(at float64, user int, link, cmdIndex int) *Builder {
	l := b.Schema.Cmd
	return b.addGame(at, user, protocol.EventCmd, protocol.Fields{
		l.Abil: protocol.Fields{
			l.Link:     int64(link),
			l.CmdIndex: int64(cmdIndex),
		},
	})
}

// Selection adds a selection change.
func (b *Builder) Selection(at float64, user int) *Builder {
	return b.addGame(at, user, protocol.EventSelectionDelta, protocol.Fields{"controlGroupId": int64(10)})
}

// ControlGroup adds a control group update.
func (b *Builder) ControlGroup(at float64, user int) *Builder {
	return b.addGame(at, user, protocol.EventControlGroupUpdate, protocol.Fields{"controlGroupIndex": int64(1)})
}

// Bytes writes the replay: the header in the user data block, then an MPQ
// archive holding the sections and a listfile.
func (b *Builder) Bytes() []byte {
	var files []archiveFile
	var names []string
	for _, s := range []archiveFile{
		{replay.SectionDetails, b.details()},
		{replay.SectionInitData, b.initData()},
		{replay.SectionTracker, b.stream(b.tracker, false)},
		{replay.SectionGame, b.stream(b.game, true)},
	} {
		if b.skipSections[s.name] {
			continue
		}
		if b.corrupt[s.name] {
			s.data = []byte("{\"corrupt")
		}
		files = append(files, s)
		names = append(names, s.name)
	}
	files = append(files, archiveFile{replay.SectionListFile, []byte(strings.Join(names, "\r\n") + "\r\n")})
	return writeArchive(b.encodeHeader(), files, b.Compress)
}

func (b *Builder) details() []byte {
	l := b.Schema.Details
	pl := l.Player
	var list []any
	for i, p := range b.players {
		observe := 0
		if p.Observer {
			observe = 1
		}
		list = append(list, protocol.Fields{
			pl.Name:             p.Name,
			pl.Race:             p.Race,
			pl.TeamID:           int64(p.Team),
			pl.Observe:          int64(observe),
			pl.Result:           int64(p.Result),
			pl.WorkingSetSlotID: int64(i),
		})
	}
	return encodeJSON(protocol.Fields{
		l.PlayerList: list,
		l.Title:      b.Map,
		l.TimeUTC:    b.TimeUTC,
	})
}

func (b *Builder) initData() []byte {
	l := b.Schema.InitData
	sl := l.Slot
	var slots []any
	for i, p := range b.players {
		slot := protocol.Fields{
			sl.UserID:           int64(p.UserID),
			sl.WorkingSetSlotID: int64(i),
			sl.Observe:          int64(0),
		}
		// racePref is an optional race inside a struct; Random leaves it unset.
		pref := protocol.Fields{sl.RacePref[1]: nil}
		if !p.Random {
			pref[sl.RacePref[1]] = int64(0)
		}
		slot[sl.RacePref[0]] = pref
		slots = append(slots, slot)
	}
	var root any = slots
	for i := len(l.Slots) - 1; i >= 0; i-- {
		root = protocol.Fields{l.Slots[i]: root}
	}
	return encodeJSON(root)
}

func (b *Builder) stream(recs []record, withUser bool) []byte {
	out := make([]jsonRecord, 0, len(recs))
	var last int64
	for _, r := range recs {
		if r.loop < last {
			panic("replaytest: records must be added in time order")
		}
		last = r.loop
		id := r.rawID
		if !r.hasRaw {
			var ok bool
			if withUser {
				id, ok = b.Schema.GameID(r.kind)
			} else {
				id, ok = b.Schema.TrackerID(r.kind)
			}
			if !ok {
				panic(fmt.Sprintf("replaytest: schema %d has no id for %s", b.Schema.BaseBuild, r.kind))
			}
		}
		out = append(out, jsonRecord{Loop: r.loop, UserID: r.user, ID: id, Event: r.event})
	}
	return encodeJSON(out)
}
