package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the schemas this decoder understands, keyed by base build.
type Registry struct {
	mu      sync.RWMutex
	schemas map[int]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[int]*Schema)}
}

// Register adds or replaces the schema for s.BaseBuild.
func (r *Registry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.BaseBuild] = s
}

// Lookup returns the schema for baseBuild. Builds are matched exactly.
func (r *Registry) Lookup(baseBuild int) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[baseBuild]
	if !ok {
		return nil, fmt.Errorf("%w: base build %d", ErrUnsupportedVersion, baseBuild)
	}
	return s, nil
}

// Builds lists the registered base builds in ascending order.
func (r *Registry) Builds() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	builds := make([]int, 0, len(r.schemas))
	for b := range r.schemas {
		builds = append(builds, b)
	}
	sort.Ints(builds)
	return builds
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry of every built-in schema.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, s := range builtinSchemas() {
			defaultRegistry.Register(s)
		}
	})
	return defaultRegistry
}

func builtinSchemas() []*Schema {
	return []*Schema{
		newSchema(75689, "4.10.0", links75689, trackerKinds4),
		newSchema(80949, "5.0.0", links80949, trackerKinds4),
		newSchema(88500, "5.0.10", links88500, trackerKinds4),
	}
}

var trackerKinds4 = map[int64]EventKind{
	0: EventPlayerStats,
	1: EventUnitBorn,
	2: EventUnitDied,
	3: EventUnitOwnerChange,
	4: EventUnitTypeChange,
	5: EventUpgrade,
	6: EventUnitInit,
	7: EventUnitDone,
	8: EventUnitPositions,
	9: EventPlayerSetup,
}

var gameKinds4 = map[int64]EventKind{
	27: EventCmd,
	28: EventSelectionDelta,
	29: EventControlGroupUpdate,
	49: EventCameraUpdate,
}

func newSchema(baseBuild int, release string, links map[string]int, tracker map[int64]EventKind) *Schema {
	unit := UnitLayout{
		TagIndex:        "unitTagIndex",
		TagRecycle:      "unitTagRecycle",
		TypeName:        "unitTypeName",
		ControlPlayerID: "controlPlayerId",
		X:               "x",
		Y:               "y",
	}
	return &Schema{
		BaseBuild:      baseBuild,
		Release:        release,
		LoopsPerSecond: 16,
		PositionScale:  4,
		TrackerKinds:   tracker,
		GameKinds:      gameKinds4,
		Details: DetailsLayout{
			PlayerList: "playerList",
			Title:      "title",
			TimeUTC:    "timeUTC",
			Player: PlayerLayout{
				Name:             "name",
				Race:             "race",
				TeamID:           "teamId",
				Observe:          "observe",
				Result:           "result",
				WorkingSetSlotID: "workingSetSlotId",
			},
		},
		InitData: InitDataLayout{
			Slots: []string{"syncLobbyState", "lobbyState", "slots"},
			Slot: SlotLayout{
				UserID:           "userId",
				WorkingSetSlotID: "workingSetSlotId",
				RacePref:         []string{"racePref", "race"},
				Observe:          "observe",
			},
		},
		Born: unit,
		Init: unit,
		Died: DiedLayout{
			TagIndex:       "unitTagIndex",
			TagRecycle:     "unitTagRecycle",
			KillerPlayerID: "killerPlayerId",
			X:              "x",
			Y:              "y",
		},
		OwnerChange: OwnerChangeLayout{TagIndex: "unitTagIndex", TagRecycle: "unitTagRecycle", ControlPlayerID: "controlPlayerId"},
		TypeChange:  TypeChangeLayout{TagIndex: "unitTagIndex", TagRecycle: "unitTagRecycle", TypeName: "unitTypeName"},
		Upgrade:     UpgradeLayout{PlayerID: "playerId", TypeName: "upgradeTypeName", Count: "count"},
		Stats: StatsLayout{
			PlayerID:     "playerId",
			Stats:        "stats",
			MineralsRate: "scoreValueMineralsCollectionRate",
			VespeneRate:  "scoreValueVespeneCollectionRate",
			MineralsArmy: "scoreValueMineralsUsedCurrentArmy",
			VespeneArmy:  "scoreValueVespeneUsedCurrentArmy",
		},
		Positions: PositionsLayout{FirstUnitIndex: "firstUnitIndex", Items: "items"},
		Cmd:       CmdLayout{Abil: "abil", Link: "abilLink", CmdIndex: "abilCmdIndex"},
		Abilities: buildAbilityTable(links),
	}
}
