package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithRegistry(registry), WithNamespace("test"))

		Convey("When rows and imports are recorded", func() {
			m.RecordRow("athletes", "created")
			m.RecordRow("athletes", "created")
			m.RecordRow("athletes", "error")
			m.ObserveImport("athletes", 150*time.Millisecond)

			Convey("Then the counters reflect them by label", func() {
				So(testutil.ToFloat64(m.rowsProcessed.WithLabelValues("athletes", "created")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rowsProcessed.WithLabelValues("athletes", "error")), ShouldEqual, 1)
				So(testutil.CollectAndCount(m.importDuration), ShouldEqual, 1)
			})
		})

		Convey("When review items are enqueued and decided", func() {
			m.ReviewEnqueued()
			m.ReviewEnqueued()
			m.ReviewDecided("reject")

			Convey("Then the pending gauge tracks the backlog", func() {
				So(testutil.ToFloat64(m.reviewPending), ShouldEqual, 1)
				So(testutil.ToFloat64(m.reviewDecisions.WithLabelValues("reject")), ShouldEqual, 1)
			})
		})

		Convey("When teams are created and conflicts recovered", func() {
			m.TeamCreated()
			m.TeamConflictRecovered()
			m.ContactReclassified(3)
			m.ContactReclassified(0)

			Convey("Then each counter is incremented", func() {
				So(testutil.ToFloat64(m.teamsCreated), ShouldEqual, 1)
				So(testutil.ToFloat64(m.teamConflicts), ShouldEqual, 1)
				So(testutil.ToFloat64(m.contactReclassified), ShouldEqual, 3)
			})
		})

		Convey("When the handler is scraped", func() {
			m.TeamCreated()
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then the exposition contains the namespaced metric", func() {
				So(rec.Code, ShouldEqual, 200)
				So(strings.Contains(string(body), "test_teams_created_total 1"), ShouldBeTrue)
			})
		})
	})
}

func TestManagerDisabledAndNil(t *testing.T) {
	Convey("Given a disabled manager and a nil manager", t, func() {
		disabled := NewManager(WithRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))
		var nilManager *Manager

		Convey("Then recording is a no-op and never panics", func() {
			So(func() {
				disabled.RecordRow("athletes", "created")
				nilManager.RecordRow("athletes", "created")
				nilManager.ReviewDecided("approve")
				nilManager.TeamCreated()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(disabled.rowsProcessed.WithLabelValues("athletes", "created")), ShouldEqual, 0)
		})
	})
}
