package protocol

// EventKind identifies a decoded record independent of its numeric id in a build.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPlayerStats
	EventUnitBorn
	EventUnitDied
	EventUnitOwnerChange
	EventUnitTypeChange
	EventUpgrade
	EventUnitInit
	EventUnitDone
	EventUnitPositions
	EventPlayerSetup
	EventCmd
	EventSelectionDelta
	EventControlGroupUpdate
	EventCameraUpdate
)

var eventKindNames = map[EventKind]string{
	EventUnknown:            "Unknown",
	EventPlayerStats:        "PlayerStats",
	EventUnitBorn:           "UnitBorn",
	EventUnitDied:           "UnitDied",
	EventUnitOwnerChange:    "UnitOwnerChange",
	EventUnitTypeChange:     "UnitTypeChange",
	EventUpgrade:            "Upgrade",
	EventUnitInit:           "UnitInit",
	EventUnitDone:           "UnitDone",
	EventUnitPositions:      "UnitPositions",
	EventPlayerSetup:        "PlayerSetup",
	EventCmd:                "Cmd",
	EventSelectionDelta:     "SelectionDelta",
	EventControlGroupUpdate: "ControlGroupUpdate",
	EventCameraUpdate:       "CameraUpdate",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Field layouts name the fields a build uses for each record type, as
// decoded with the m_ prefix removed. An empty name means the build does not
// carry the field.

type PlayerLayout struct {
	Name             string
	Race             string
	TeamID           string
	Observe          string
	Result           string
	WorkingSetSlotID string
}

type DetailsLayout struct {
	PlayerList string
	Title      string
	TimeUTC    string
	Player     PlayerLayout
}

// SlotLayout locates a lobby slot's fields. RacePref is a path because the
// preferred race sits inside an optional struct.
type SlotLayout struct {
	UserID           string
	WorkingSetSlotID string
	RacePref         []string
	Observe          string
}

type InitDataLayout struct {
	Slots []string
	Slot  SlotLayout
}

type UnitLayout struct {
	TagIndex        string
	TagRecycle      string
	TypeName        string
	ControlPlayerID string
	X               string
	Y               string
}

type DiedLayout struct {
	TagIndex       string
	TagRecycle     string
	KillerPlayerID string
	X              string
	Y              string
}

type OwnerChangeLayout struct {
	TagIndex        string
	TagRecycle      string
	ControlPlayerID string
}

type TypeChangeLayout struct {
	TagIndex   string
	TagRecycle string
	TypeName   string
}

type UpgradeLayout struct {
	PlayerID string
	TypeName string
	Count    string
}

type StatsLayout struct {
	PlayerID     string
	Stats        string
	MineralsRate string
	VespeneRate  string
	MineralsArmy string
	VespeneArmy  string
}

type PositionsLayout struct {
	FirstUnitIndex string
	Items          string
}

// CmdLayout locates the ability inside a command event. Abil is the
// optional ability struct, Link and CmdIndex are fields inside it.
type CmdLayout struct {
	Abil     string
	Link     string
	CmdIndex string
}

// Schema describes how one base build lays out its replay sections.
type Schema struct {
	BaseBuild      int
	Release        string
	LoopsPerSecond float64
	PositionScale  float64

	TrackerKinds map[int64]EventKind
	GameKinds    map[int64]EventKind

	Details     DetailsLayout
	InitData    InitDataLayout
	Born        UnitLayout
	Init        UnitLayout
	Died        DiedLayout
	OwnerChange OwnerChangeLayout
	TypeChange  TypeChangeLayout
	Upgrade     UpgradeLayout
	Stats       StatsLayout
	Positions   PositionsLayout
	Cmd         CmdLayout

	Abilities AbilityTable

	// Codec decodes the build's archive files. Nil selects s2prot.
	Codec Codec
}

// SectionCodec returns the codec for the schema's build.
func (s *Schema) SectionCodec() (Codec, error) {
	if s.Codec != nil {
		return s.Codec, nil
	}
	return NewS2ProtCodec(s.BaseBuild)
}

// TrackerKind maps a tracker event id to its kind.
func (s *Schema) TrackerKind(id int64) EventKind {
	return s.TrackerKinds[id]
}

// GameKind maps a game event id to its kind.
func (s *Schema) GameKind(id int64) EventKind {
	return s.GameKinds[id]
}

// TrackerID is the reverse of TrackerKind.
func (s *Schema) TrackerID(kind EventKind) (int64, bool) {
	return reverseKind(s.TrackerKinds, kind)
}

// GameID is the reverse of GameKind.
func (s *Schema) GameID(kind EventKind) (int64, bool) {
	return reverseKind(s.GameKinds, kind)
}

func reverseKind(m map[int64]EventKind, kind EventKind) (int64, bool) {
	for id, k := range m {
		if k == kind {
			return id, true
		}
	}
	return 0, false
}
