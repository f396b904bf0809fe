package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func counterValue(m *Manager, name string, labels map[string]string) float64 {
	mfs, err := m.Registry().Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestManager(t *testing.T) {
	convey.Convey("Given a metrics manager", t, func() {
		m := NewManager()

		convey.Convey("When analyses are recorded", func() {
			m.RecordAnalysis(OutcomeSuccess, 120*time.Millisecond)
			m.RecordAnalysis(OutcomeSuccess, 80*time.Millisecond)
			m.RecordAnalysis(OutcomeDegraded, time.Second)
			m.AddDropped(map[string]int{"tracker:UnitDone": 3, "game:99": 1})
			m.AddAnomalies(2, 5, 7)

			convey.Convey("Then counters reflect them", func() {
				convey.So(counterValue(m, "sc2ra_replays_analyzed_total", map[string]string{"outcome": "success"}), convey.ShouldEqual, 2)
				convey.So(counterValue(m, "sc2ra_replays_analyzed_total", map[string]string{"outcome": "degraded"}), convey.ShouldEqual, 1)
				convey.So(counterValue(m, "sc2ra_dropped_records_total", nil), convey.ShouldEqual, 4)
				convey.So(counterValue(m, "sc2ra_duplicate_unit_ids_total", nil), convey.ShouldEqual, 2)
				convey.So(counterValue(m, "sc2ra_unknown_unit_refs_total", nil), convey.ShouldEqual, 5)
				convey.So(counterValue(m, "sc2ra_unclassified_actions_total", nil), convey.ShouldEqual, 7)
			})

			convey.Convey("Then the text file contains them", func() {
				path := filepath.Join(t.TempDir(), "sc2ra.prom")
				convey.So(m.WriteTextfile(path), convey.ShouldBeNil)
				data, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, `sc2ra_replays_analyzed_total{outcome="success"} 2`)
				convey.So(string(data), convey.ShouldContainSubstring, "sc2ra_analysis_duration_seconds_count 3")
			})
		})

		convey.Convey("Two managers do not share a registry", func() {
			other := NewManager()
			other.RecordCacheLookup(true)
			convey.So(counterValue(m, "sc2ra_cache_lookups_total", nil), convey.ShouldEqual, 0)
			convey.So(counterValue(other, "sc2ra_cache_lookups_total", map[string]string{"result": "hit"}), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("A nil manager records nothing", t, func() {
		var m *Manager
		convey.So(func() {
			m.RecordAnalysis(OutcomeFailed, time.Second)
			m.AddDropped(map[string]int{"x": 1})
			m.AddAnomalies(1, 1, 1)
			m.RecordHTTPRequest("/healthz", "200")
		}, convey.ShouldNotPanic)
		convey.So(m.WriteTextfile("/nonexistent/x.prom"), convey.ShouldBeNil)
	})
}
