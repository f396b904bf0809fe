package events_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/events"
	"sc2-replay-analyzer/internal/protocol"
	"sc2-replay-analyzer/internal/replay"
	"sc2-replay-analyzer/internal/replay/replaytest"
)

func decode(b *replaytest.Builder) *replay.Replay {
	r, err := replay.Decode(b.Bytes(), nil)
	So(err, ShouldBeNil)
	return r
}

func players(build int) *replaytest.Builder {
	return replaytest.New(build).
		Player(replaytest.PlayerSpec{Name: "P1", Race: "Terran", UserID: 0}).
		Player(replaytest.PlayerSpec{Name: "P2", Race: "Zerg", Team: 1, UserID: 1})
}

func TestNormalize(t *testing.T) {
	Convey("Given a replay with tracker and game events", t, func() {
		b := players(80949).Duration(120)
		b.UnitBorn(0, 5, 1, "Marine", 1, 10, 10).
			UnitPositions(1, replaytest.Position{Index: 5, X: 12.5, Y: 10}).
			PlayerStats(10, 1, 600, 120, 300, 100).
			PlayerStats(20, 1, 600, 120, 400, 100).
			UnitDied(30, 5, 1, 2, 14, 10).
			UnitBorn(30, 9, 2, "MineralField", 0, 50, 50).
			Upgrade(40, 1, "Stimpack")
		b.Cmd(1, 0, "BarracksTrain", 0).
			Selection(30, 1).
			ControlGroup(31, 0)

		seq := events.NewNormalizer(decode(b)).Normalize()

		Convey("Events come out in time order", func() {
			So(seq.Events, ShouldHaveLength, 10)
			for i := 1; i < len(seq.Events); i++ {
				So(seq.Events[i].Time(), ShouldBeGreaterThanOrEqualTo, seq.Events[i-1].Time())
			}
			So(seq.Dropped, ShouldBeEmpty)
		})

		Convey("Tracker events precede game events at equal times", func() {
			_, ok := seq.Events[1].(events.UnitPositionUpdate)
			So(ok, ShouldBeTrue)
			_, ok = seq.Events[2].(events.PlayerCommand)
			So(ok, ShouldBeTrue)
		})

		Convey("Units carry tag ids and owners", func() {
			born := seq.Events[0].(events.UnitBorn)
			So(born.UnitID, ShouldEqual, events.UnitTag(5, 1))
			So(born.Owner, ShouldEqual, 0)
			So(born.Position.X, ShouldEqual, 10)

			pos := seq.Events[1].(events.UnitPositionUpdate)
			So(pos.UnitID, ShouldEqual, born.UnitID)
			So(pos.Position.X, ShouldEqual, 12.5)
		})

		Convey("Stat samples become resource deltas", func() {
			var stats []events.PlayerStatUpdate
			for _, ev := range seq.Events {
				if s, ok := ev.(events.PlayerStatUpdate); ok {
					stats = append(stats, s)
				}
			}
			So(stats, ShouldHaveLength, 2)
			So(stats[0].ResourcesDelta, ShouldAlmostEqual, 720*10/60.0)
			So(stats[1].ResourcesDelta, ShouldAlmostEqual, 720*10/60.0)
			So(stats[1].ArmyValue, ShouldEqual, 500)
		})

		Convey("Deaths attribute the killer and neutral units have no owner", func() {
			var died events.UnitDied
			var mineral events.UnitBorn
			for _, ev := range seq.Events {
				switch e := ev.(type) {
				case events.UnitDied:
					died = e
				case events.UnitBorn:
					if e.UnitType == "MineralField" {
						mineral = e
					}
				}
			}
			So(died.Killer, ShouldEqual, 1)
			So(mineral.Owner, ShouldEqual, -1)
		})

		Convey("Commands resolve abilities per build", func() {
			var cmds []events.PlayerCommand
			for _, ev := range seq.Events {
				if c, ok := ev.(events.PlayerCommand); ok {
					cmds = append(cmds, c)
				}
			}
			So(cmds, ShouldHaveLength, 3)
			So(cmds[0].Kind, ShouldEqual, events.CommandAbility)
			So(cmds[0].Resolved, ShouldBeTrue)
			So(cmds[0].Ability.Result, ShouldEqual, "Marine")
			So(cmds[0].Ability.Kind, ShouldEqual, protocol.AbilityTrain)
			So(cmds[1].Kind, ShouldEqual, events.CommandSelection)
			So(cmds[1].Player, ShouldEqual, 1)
			So(cmds[2].Kind, ShouldEqual, events.CommandControlGroup)
		})

		Convey("Upgrades are kept", func() {
			last := seq.Events[len(seq.Events)-1].(events.UpgradeCompleted)
			So(last.Upgrade, ShouldEqual, "Stimpack")
			So(last.Player, ShouldEqual, 0)
		})
	})

	Convey("Given records the build does not map", t, func() {
		b := players(75689)
		b.RawTracker(1, 77, protocol.Fields{"playerId": int64(1)}).
			RawTracker(2, 77, protocol.Fields{"playerId": int64(1)}).
			UnitBorn(3, 1, 1, "SCV", 1, 1, 1)
		b.Cmd(4, 7, "Move", 0).
			CmdLink(5, 0, 424242, 0)

		seq := events.NewNormalizer(decode(b)).Normalize()

		Convey("They are dropped and counted", func() {
			So(seq.Dropped["tracker:77"], ShouldEqual, 2)
			So(seq.DroppedTotal(), ShouldEqual, 2)
		})

		Convey("Unknown users are counted", func() {
			So(seq.UnresolvedPlayers, ShouldEqual, 1)
		})

		Convey("Unknown ability links stay unresolved", func() {
			last := seq.Events[len(seq.Events)-1].(events.PlayerCommand)
			So(last.Resolved, ShouldBeFalse)
			So(last.Ability.Link, ShouldEqual, 424242)
		})
	})

	Convey("The same command resolves in every registered build", t, func() {
		for _, build := range protocol.DefaultRegistry().Builds() {
			b := players(build)
			b.Cmd(1, 0, "GatewayTrain", 1)
			seq := events.NewNormalizer(decode(b)).Normalize()
			So(seq.Events, ShouldHaveLength, 1)
			cmd := seq.Events[0].(events.PlayerCommand)
			So(cmd.Ability.Result, ShouldEqual, "Stalker")
		}
	})
}
