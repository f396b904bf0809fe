// Package events turns raw replay records into a time-ordered sequence of
// game events.
package events

import (
	"github.com/golang/geo/r2"

	"sc2-replay-analyzer/internal/protocol"
)

// Event is one of the game event variants below. Time is in game seconds;
// Seq is the position in the merged input and breaks timestamp ties.
type Event interface {
	Time() float64
	Order() int
	isEvent()
}

// UnitBorn is a unit or structure entering the game.
type UnitBorn struct {
	At       float64
	Seq      int
	UnitID   int64
	UnitType string
	Owner    int
	Position r2.Point
	// InProgress marks a structure placed but not yet finished.
	InProgress bool
}

// UnitDied removes a unit. Killer is -1 when no player gets the kill.
type UnitDied struct {
	At       float64
	Seq      int
	UnitID   int64
	Killer   int
	Position r2.Point
}

// UnitPositionUpdate moves a unit. Velocity and Owner are optional.
type UnitPositionUpdate struct {
	At       float64
	Seq      int
	UnitID   int64
	Position r2.Point
	Velocity *r2.Point
	Owner    *int
}

// PlayerStatUpdate is a periodic economy sample for one player.
type PlayerStatUpdate struct {
	At     float64
	Seq    int
	Player int
	// ResourcesDelta is the amount gathered since the previous sample.
	ResourcesDelta float64
	ArmyValue      float64
}

// CommandKind separates ability commands from selection bookkeeping.
type CommandKind int

const (
	CommandAbility CommandKind = iota
	CommandSelection
	CommandControlGroup
)

// PlayerCommand is an action issued by a player.
type PlayerCommand struct {
	At      float64
	Seq     int
	Player  int
	Kind    CommandKind
	Ability protocol.Ability
	// Resolved is false when the ability link is not in the build's table.
	Resolved bool
}

// UnitOwnerChanged transfers a unit to another player.
type UnitOwnerChanged struct {
	At     float64
	Seq    int
	UnitID int64
	Owner  int
}

// UnitTypeChanged morphs a unit into another type.
type UnitTypeChanged struct {
	At       float64
	Seq      int
	UnitID   int64
	UnitType string
}

// UpgradeCompleted marks a finished research.
type UpgradeCompleted struct {
	At      float64
	Seq     int
	Player  int
	Upgrade string
}

func (e UnitBorn) Time() float64           { return e.At }
func (e UnitDied) Time() float64           { return e.At }
func (e UnitPositionUpdate) Time() float64 { return e.At }
func (e PlayerStatUpdate) Time() float64   { return e.At }
func (e PlayerCommand) Time() float64      { return e.At }
func (e UnitOwnerChanged) Time() float64   { return e.At }
func (e UnitTypeChanged) Time() float64    { return e.At }
func (e UpgradeCompleted) Time() float64   { return e.At }

func (e UnitBorn) Order() int           { return e.Seq }
func (e UnitDied) Order() int           { return e.Seq }
func (e UnitPositionUpdate) Order() int { return e.Seq }
func (e PlayerStatUpdate) Order() int   { return e.Seq }
func (e PlayerCommand) Order() int      { return e.Seq }
func (e UnitOwnerChanged) Order() int   { return e.Seq }
func (e UnitTypeChanged) Order() int    { return e.Seq }
func (e UpgradeCompleted) Order() int   { return e.Seq }

func (UnitBorn) isEvent()           {}
func (UnitDied) isEvent()           {}
func (UnitPositionUpdate) isEvent() {}
func (PlayerStatUpdate) isEvent()   {}
func (PlayerCommand) isEvent()      {}
func (UnitOwnerChanged) isEvent()   {}
func (UnitTypeChanged) isEvent()    {}
func (UpgradeCompleted) isEvent()   {}

// UnitTag builds the unit id from a tag index and recycle counter.
func UnitTag(index, recycle int64) int64 {
	return index<<18 | recycle
}
