package sim

import (
	"testing"

	"github.com/golang/geo/r2"
	. "github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/events"
)

func TestTracker(t *testing.T) {
	Convey("Given a tracker for two players", t, func() {
		tr := NewTracker(2)

		Convey("A born unit is live with its classification", func() {
			tr.Apply(events.UnitBorn{At: 0, UnitID: 1, UnitType: "Marine", Owner: 0, Position: r2.Point{X: 10, Y: 10}})
			tr.Apply(events.UnitBorn{At: 0, UnitID: 2, UnitType: "Barracks", Owner: 0, Position: r2.Point{X: 30, Y: 30}})

			u, ok := tr.Unit(1)
			So(ok, ShouldBeTrue)
			So(u.IsBuilding, ShouldBeFalse)
			b, _ := tr.Unit(2)
			So(b.IsBuilding, ShouldBeTrue)
			So(tr.LiveUnits(), ShouldHaveLength, 2)

			Convey("Position updates derive velocity", func() {
				tr.Apply(events.UnitPositionUpdate{At: 2, UnitID: 1, Position: r2.Point{X: 20, Y: 10}})
				u, _ := tr.Unit(1)
				So(u.Position.X, ShouldEqual, 20)
				So(u.Velocity.X, ShouldEqual, 5)
				So(u.Velocity.Y, ShouldEqual, 0)
			})

			Convey("An explicit velocity wins", func() {
				v := r2.Point{X: 1, Y: 2}
				tr.Apply(events.UnitPositionUpdate{At: 2, UnitID: 1, Position: r2.Point{X: 20, Y: 10}, Velocity: &v})
				u, _ := tr.Unit(1)
				So(u.Velocity, ShouldResemble, v)
			})

			Convey("A second birth with a live id is counted and replaces", func() {
				tr.Apply(events.UnitBorn{At: 5, UnitID: 1, UnitType: "Marauder", Owner: 1})
				u, _ := tr.Unit(1)
				So(u.Type, ShouldEqual, "Marauder")
				So(u.Owner, ShouldEqual, 1)
				So(tr.Counters().DuplicateUnitIDs, ShouldEqual, 1)
				So(tr.LiveUnits(), ShouldHaveLength, 2)
			})

			Convey("Kills count only against other players", func() {
				tr.Apply(events.UnitDied{At: 3, UnitID: 1, Killer: 1})
				So(tr.Aggregate(1).UnitsKilled, ShouldEqual, 1)
				_, ok := tr.Unit(1)
				So(ok, ShouldBeFalse)

				tr.Apply(events.UnitDied{At: 4, UnitID: 2, Killer: 0})
				So(tr.Aggregate(0).UnitsKilled, ShouldEqual, 0)

				Convey("Dying twice is ignored", func() {
					tr.Apply(events.UnitDied{At: 5, UnitID: 1, Killer: 1})
					So(tr.Aggregate(1).UnitsKilled, ShouldEqual, 1)
				})
			})

			Convey("Deaths without a killer count for nobody", func() {
				tr.Apply(events.UnitDied{At: 3, UnitID: 1, Killer: -1})
				So(tr.Aggregate(0).UnitsKilled+tr.Aggregate(1).UnitsKilled, ShouldEqual, 0)
			})

			Convey("Owner and type changes mutate live units", func() {
				tr.Apply(events.UnitOwnerChanged{At: 1, UnitID: 1, Owner: 1})
				tr.Apply(events.UnitTypeChanged{At: 1, UnitID: 2, UnitType: "BarracksFlying"})
				u, _ := tr.Unit(1)
				So(u.Owner, ShouldEqual, 1)
				b, _ := tr.Unit(2)
				So(b.Type, ShouldEqual, "BarracksFlying")
				So(b.IsBuilding, ShouldBeTrue)

				tr.Apply(events.UnitOwnerChanged{At: 1, UnitID: 99, Owner: 1})
				So(tr.Counters().UnknownUnitRefs, ShouldEqual, 1)
			})
		})

		Convey("An update for an unknown unit synthesizes it", func() {
			owner := 1
			tr.Apply(events.UnitPositionUpdate{At: 1, UnitID: 42, Position: r2.Point{X: 3, Y: 4}, Owner: &owner})
			u, ok := tr.Unit(42)
			So(ok, ShouldBeTrue)
			So(u.Type, ShouldEqual, UnknownType)
			So(u.Owner, ShouldEqual, 1)
			So(tr.Counters().UnknownUnitRefs, ShouldEqual, 1)
		})

		Convey("Stats and commands accumulate", func() {
			tr.Apply(events.PlayerStatUpdate{At: 10, Player: 0, ResourcesDelta: 100, ArmyValue: 300})
			tr.Apply(events.PlayerStatUpdate{At: 20, Player: 0, ResourcesDelta: 150, ArmyValue: 200})
			for i := 0; i < 90; i++ {
				tr.Apply(events.PlayerCommand{At: float64(i), Player: 1})
			}
			tr.Apply(events.PlayerCommand{At: 1, Player: 7})

			aggs := tr.Finalize(60)
			So(aggs[0].ResourcesCollected, ShouldEqual, 250)
			So(aggs[0].ArmyValueMax, ShouldEqual, 300)
			So(aggs[1].Commands, ShouldEqual, 90)
			So(aggs[1].APM, ShouldEqual, 90)

			Convey("APM is truncated over fractional minutes", func() {
				aggs := tr.Finalize(100)
				So(aggs[1].APM, ShouldEqual, 54)
			})

			Convey("A zero-length game has zero APM", func() {
				So(tr.Finalize(0)[1].APM, ShouldEqual, 0)
			})
		})

		Convey("Live units are listed by id", func() {
			for _, id := range []int64{9, 3, 7} {
				tr.Apply(events.UnitBorn{UnitID: id, UnitType: "Zergling", Owner: 1})
			}
			ids := []int64{}
			for _, u := range tr.LiveUnits() {
				ids = append(ids, u.ID)
			}
			So(ids, ShouldResemble, []int64{3, 7, 9})
		})
	})
}
