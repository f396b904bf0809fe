package extractors

import (
	"sc2-replay-analyzer/internal/events"
	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/sc2data"
)

// DefaultCorrelationWindow is how long a command waits for the unit it produced.
const DefaultCorrelationWindow = 60.0

// pendingAction is a production command whose product is not known yet.
type pendingAction struct {
	index int
	at    float64
	kind  protocol.AbilityKind
}

// BuildOrderExtractor collects production commands per player.
// Events must arrive in timestamp order.
type BuildOrderExtractor struct {
	actions      [][]Action
	pending      [][]pendingAction
	limit        int
	window       float64
	unclassified int
	filtered     int
	correlated   int
	upgrades     int
}

// BuildOrderOption configures a BuildOrderExtractor.
type BuildOrderOption func(*BuildOrderExtractor)

// WithLimit caps entries per player. Zero means unlimited.
func WithLimit(n int) BuildOrderOption {
	return func(e *BuildOrderExtractor) {
		if n >= 0 {
			e.limit = n
		}
	}
}

// WithCorrelationWindow sets how long a command waits for its unit.
func WithCorrelationWindow(seconds float64) BuildOrderOption {
	return func(e *BuildOrderExtractor) {
		if seconds >= 0 {
			e.window = seconds
		}
	}
}

// NewBuildOrderExtractor creates a new build order extractor for players players.
func NewBuildOrderExtractor(players int, opts ...BuildOrderOption) *BuildOrderExtractor {
	e := &BuildOrderExtractor{
		actions: make([][]Action, players),
		pending: make([][]pendingAction, players),
		window:  DefaultCorrelationWindow,
	}
	for i := range e.actions {
		e.actions[i] = make([]Action, 0)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *BuildOrderExtractor) valid(player int) bool {
	return player >= 0 && player < len(e.actions)
}

// Handle routes an event to the matching handler.
func (e *BuildOrderExtractor) Handle(ev events.Event) {
	switch v := ev.(type) {
	case events.PlayerCommand:
		e.HandleCommand(v)
	case events.UnitBorn:
		e.HandleUnitBorn(v)
	case events.UpgradeCompleted:
		e.HandleUpgrade(v)
	}
}

// HandleCommand processes a player command and records it when it produces something.
func (e *BuildOrderExtractor) HandleCommand(cmd events.PlayerCommand) {
	if cmd.Kind != events.CommandAbility || !e.valid(cmd.Player) {
		return
	}
	if !cmd.Resolved {
		e.unclassified++
		return
	}
	if !cmd.Ability.Kind.Producing() {
		e.filtered++
		return
	}
	e.expire(cmd.Player, cmd.At)
	if e.limit > 0 && len(e.actions[cmd.Player]) >= e.limit {
		return
	}

	action := Action{
		Player:        cmd.Player,
		ActionName:    cmd.Ability.Name,
		Timestamp:     cmd.At,
		OrderIndex:    len(e.actions[cmd.Player]),
		FormattedTime: FormatTimestamp(cmd.At),
	}
	if cmd.Ability.Result != "" {
		action.ActionName = cmd.Ability.Kind.Verb() + " " + cmd.Ability.Result
		action.UnitType = stringPtr(cmd.Ability.Result)
	} else if cmd.Ability.Kind != protocol.AbilityResearch {
		e.pending[cmd.Player] = append(e.pending[cmd.Player], pendingAction{
			index: action.OrderIndex,
			at:    cmd.At,
			kind:  cmd.Ability.Kind,
		})
	}
	e.actions[cmd.Player] = append(e.actions[cmd.Player], action)
}

// HandleUpgrade records a finished upgrade. Upgrades granted at game start
// are lobby cosmetics and are skipped.
func (e *BuildOrderExtractor) HandleUpgrade(up events.UpgradeCompleted) {
	if !e.valid(up.Player) || up.At <= 0 || up.Upgrade == "" {
		return
	}
	e.expire(up.Player, up.At)
	if e.limit > 0 && len(e.actions[up.Player]) >= e.limit {
		return
	}
	e.actions[up.Player] = append(e.actions[up.Player], Action{
		Player:        up.Player,
		ActionName:    "Upgrade " + up.Upgrade,
		Timestamp:     up.At,
		OrderIndex:    len(e.actions[up.Player]),
		FormattedTime: FormatTimestamp(up.At),
	})
	e.upgrades++
}

// HandleUnitBorn resolves the oldest waiting command the unit can satisfy.
func (e *BuildOrderExtractor) HandleUnitBorn(born events.UnitBorn) {
	if !e.valid(born.Owner) {
		return
	}
	e.expire(born.Owner, born.At)
	building := born.InProgress || sc2data.IsBuilding(born.UnitType)
	queue := e.pending[born.Owner]
	for i, p := range queue {
		if (p.kind == protocol.AbilityTrain) == building {
			continue
		}
		e.finalizePending(born.Owner, p, born.UnitType)
		e.pending[born.Owner] = append(queue[:i:i], queue[i+1:]...)
		return
	}
}

// expire drops waiting commands older than the window; they keep the ability name.
func (e *BuildOrderExtractor) expire(player int, now float64) {
	queue := e.pending[player]
	n := 0
	for n < len(queue) && now-queue[n].at > e.window {
		n++
	}
	if n > 0 {
		e.pending[player] = queue[n:]
	}
}

func (e *BuildOrderExtractor) finalizePending(player int, p pendingAction, unitType string) {
	a := &e.actions[player][p.index]
	a.ActionName = p.kind.Verb() + " " + unitType
	a.UnitType = stringPtr(unitType)
	e.correlated++
}

// GetActions returns the build order of one player.
func (e *BuildOrderExtractor) GetActions(player int) []Action {
	if !e.valid(player) {
		return nil
	}
	return e.actions[player]
}

// Unclassified counts commands whose ability could not be resolved.
func (e *BuildOrderExtractor) Unclassified() int { return e.unclassified }

// Filtered counts resolved commands that do not produce anything.
func (e *BuildOrderExtractor) Filtered() int { return e.filtered }

// Correlated counts entries whose unit came from a later birth.
func (e *BuildOrderExtractor) Correlated() int { return e.correlated }

// Upgrades counts upgrade entries recorded.
func (e *BuildOrderExtractor) Upgrades() int { return e.upgrades }

// ClearEvents clears all collected actions.
func (e *BuildOrderExtractor) ClearEvents() {
	for i := range e.actions {
		e.actions[i] = make([]Action, 0)
		e.pending[i] = nil
	}
	e.unclassified, e.filtered, e.correlated, e.upgrades = 0, 0, 0, 0
}
