// Package replay decodes the replay container into a header, lobby
// metadata and the raw tracker and game event streams.
package replay

import (
	"errors"
	"fmt"

	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/sc2data"
)

// Player is a participant of the game. Observers are not players.
type Player struct {
	ID     int
	Name   string
	Race   string
	Team   int
	Result string
	// TrackerID is the 1-based id tracker events use for this player.
	TrackerID int
	// UserID is the lobby user id game events use, -1 when unknown.
	UserID int
}

// Replay is a decoded replay. Sections that could not be read are nil or
// empty and the reason is recorded in Issues.
type Replay struct {
	Header   Header
	Schema   *protocol.Schema
	Details  *Details
	InitData *InitData
	Players  []Player
	Tracker  []Record
	Game     []Record

	Truncated bool
	Issues    []error
}

// Record is one event of a tracker or game event stream.
type Record = protocol.Record

// Decode parses a replay. Unsupported versions and unreadable headers are
// returned as errors; a damaged archive or damaged sections degrade the result.
func Decode(data []byte, reg *protocol.Registry) (*Replay, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if reg == nil {
		reg = protocol.DefaultRegistry()
	}

	blob, base, err := readUserData(data)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(blob)
	if err != nil {
		return nil, err
	}
	schema, err := reg.Lookup(hdr.Version.BaseBuild)
	if err != nil {
		return nil, err
	}
	codec, err := schema.SectionCodec()
	if err != nil {
		return nil, err
	}

	r := &Replay{Header: hdr, Schema: schema}
	arc, err := openArchive(data, base)
	if err != nil {
		r.note(err)
		return r, nil
	}

	if raw, err := arc.file(SectionDetails); err != nil {
		r.note(err)
	} else if f, err := codec.Details(raw); err != nil {
		r.note(sectionError(SectionDetails, err))
	} else {
		r.Details = decodeDetails(f, schema.Details)
	}
	if raw, err := arc.file(SectionInitData); err != nil {
		r.note(err)
	} else if f, err := codec.InitData(raw); err != nil {
		r.note(sectionError(SectionInitData, err))
	} else {
		r.InitData = decodeInitData(f, schema.InitData)
	}

	r.Tracker = r.stream(arc, SectionTracker, codec.TrackerEvents)
	r.Game = r.stream(arc, SectionGame, codec.GameEvents)
	r.Players = buildPlayers(r.Details, r.InitData)
	return r, nil
}

func (r *Replay) stream(arc *archive, name string, decode func([]byte) ([]Record, error)) []Record {
	raw, err := arc.file(name)
	if err != nil {
		r.note(err)
		return nil
	}
	recs, err := decode(raw)
	if err != nil {
		r.note(sectionError(name, err))
	}
	return recs
}

func (r *Replay) note(err error) {
	if errors.Is(err, ErrTruncated) {
		r.Truncated = true
	}
	r.Issues = append(r.Issues, err)
}

func sectionError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptReplay, name, err)
}

// Seconds converts a game loop to game seconds.
func (r *Replay) Seconds(loop int64) float64 {
	return float64(loop) / r.Schema.LoopsPerSecond
}

// Duration is the game length in seconds as recorded in the header.
func (r *Replay) Duration() float64 {
	return r.Seconds(r.Header.ElapsedGameLoops)
}

// MapName is the map title, empty when details are unavailable.
func (r *Replay) MapName() string {
	if r.Details == nil {
		return ""
	}
	return r.Details.Title
}

// PlayerForTracker maps a tracker player id to a player id, or -1.
func (r *Replay) PlayerForTracker(trackerID int64) int {
	for _, p := range r.Players {
		if int64(p.TrackerID) == trackerID {
			return p.ID
		}
	}
	return -1
}

// PlayerForUser maps a game event user id to a player id. Without lobby
// data the user id is taken as the player ordinal.
func (r *Replay) PlayerForUser(userID int64) (int, bool) {
	if userID < 0 {
		return -1, false
	}
	if r.InitData == nil {
		if userID < int64(len(r.Players)) {
			return int(userID), true
		}
		return -1, false
	}
	for _, p := range r.Players {
		if p.UserID >= 0 && int64(p.UserID) == userID {
			return p.ID, true
		}
	}
	return -1, false
}

func buildPlayers(details *Details, init *InitData) []Player {
	if details == nil {
		return nil
	}
	var players []Player
	for i, dp := range details.Players {
		if dp.Observe != 0 {
			continue
		}
		p := Player{
			ID:        len(players),
			Name:      dp.Name,
			Race:      sc2data.NormalizeRace(dp.Race),
			Team:      dp.TeamID + 1,
			Result:    resultName(dp.Result),
			TrackerID: i + 1,
			UserID:    -1,
		}
		if dp.HasSlot {
			if slot, ok := init.slotForWorkingSet(dp.WorkingSetSlotID); ok {
				if slot.HasUser {
					p.UserID = slot.UserID
				}
				if !slot.HasRacePref {
					p.Race = sc2data.RaceRandom
				}
			}
		}
		players = append(players, p)
	}
	return players
}

func resultName(code int) string {
	switch code {
	case 1:
		return "Victory"
	case 2:
		return "Defeat"
	case 3:
		return "Tie"
	}
	return "Unknown"
}
