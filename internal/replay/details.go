package replay

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"sc2-replay-analyzer/internal/protocol"
)

// windowsEpochOffset is 1601-01-01 to 1970-01-01 in 100ns ticks.
const windowsEpochOffset = 116444736000000000

// DetailsPlayer is a player row of the details section.
type DetailsPlayer struct {
	Name             string
	Race             string
	TeamID           int
	Observe          int
	Result           int
	WorkingSetSlotID int
	HasSlot          bool
}

// Details is the decoded details section.
type Details struct {
	Title   string
	Players []DetailsPlayer
	// TimeUTC is a Windows FILETIME.
	TimeUTC int64
}

// PlayedAt converts TimeUTC to unix seconds.
func (d *Details) PlayedAt() (int64, bool) {
	if d == nil || d.TimeUTC <= 0 {
		return 0, false
	}
	return (d.TimeUTC - windowsEpochOffset) / 10_000_000, true
}

// Slot is a lobby slot of the initData section.
type Slot struct {
	UserID           int
	HasUser          bool
	WorkingSetSlotID int
	HasWorkingSet    bool
	RacePref         int
	HasRacePref      bool
	Observe          int
}

// InitData is the decoded initData section.
type InitData struct {
	Slots []Slot
}

func (in *InitData) slotForWorkingSet(id int) (Slot, bool) {
	if in == nil {
		return Slot{}, false
	}
	for _, s := range in.Slots {
		if s.HasWorkingSet && s.WorkingSetSlotID == id {
			return s, true
		}
	}
	return Slot{}, false
}

func decodeDetails(f protocol.Fields, layout protocol.DetailsLayout) *Details {
	d := &Details{}
	d.Title, _ = f.String(layout.Title)
	d.Title = CleanName(d.Title)
	d.TimeUTC, _ = f.Int(layout.TimeUTC)

	pl := layout.Player
	for _, item := range f.Structs(layout.PlayerList) {
		p := DetailsPlayer{}
		p.Name, _ = item.String(pl.Name)
		p.Name = CleanName(p.Name)
		p.Race, _ = item.String(pl.Race)
		p.TeamID = intOr(item, pl.TeamID, 0)
		p.Observe = intOr(item, pl.Observe, 0)
		p.Result = intOr(item, pl.Result, 0)
		if slot, ok := item.Int(pl.WorkingSetSlotID); ok {
			p.WorkingSetSlotID = int(slot)
			p.HasSlot = true
		}
		d.Players = append(d.Players, p)
	}
	return d
}

func decodeInitData(f protocol.Fields, layout protocol.InitDataLayout) *InitData {
	in := &InitData{}
	sl := layout.Slot
	for _, item := range f.Structs(layout.Slots...) {
		s := Slot{}
		if n, ok := item.Int(sl.UserID); ok {
			s.UserID, s.HasUser = int(n), true
		}
		if n, ok := item.Int(sl.WorkingSetSlotID); ok {
			s.WorkingSetSlotID, s.HasWorkingSet = int(n), true
		}
		if n, ok := item.Int(sl.RacePref...); ok {
			s.RacePref, s.HasRacePref = int(n), true
		}
		s.Observe = intOr(item, sl.Observe, 0)
		in.Slots = append(in.Slots, s)
	}
	return in
}

var clanTag = regexp.MustCompile(`^&lt;[^&]*&gt;<sp/>`)

// CleanName strips clan tag markup and NFC-normalizes a name.
func CleanName(s string) string {
	s = clanTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "<sp/>", " ")
	return norm.NFC.String(strings.TrimSpace(s))
}
