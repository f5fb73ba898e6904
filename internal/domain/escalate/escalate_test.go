package escalate_test

import (
	"context"
	"testing"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/domain/escalate"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestTrackerExactlyOnce(t *testing.T) {
	Convey("Given a quiescent tracker", t, func() {
		tr := escalate.NewTracker()

		Convey("When observing [Low, Medium, High, High, Medium]", func() {
			levels := []model.RiskLevel{
				model.RiskLow, model.RiskMedium, model.RiskHigh, model.RiskHigh, model.RiskMedium,
			}
			escalations := 0
			for _, lvl := range levels {
				if tr.Observe(lvl).Escalate {
					escalations++
				}
			}

			Convey("Then exactly one escalation fires, on the Low-to-Medium transition", func() {
				So(escalations, ShouldEqual, 1)
				So(tr.State(), ShouldEqual, escalate.Escalated)
			})
		})

		Convey("When only Low assessments arrive", func() {
			for i := 0; i < 10; i++ {
				So(tr.Observe(model.RiskLow).Escalate, ShouldBeFalse)
			}

			Convey("Then the tracker stays quiescent", func() {
				So(tr.State(), ShouldEqual, escalate.Quiescent)
			})
		})
	})
}

func TestTrackerEpisodeResolution(t *testing.T) {
	Convey("Given an escalated tracker resolving after 3 Lows", t, func() {
		tr := escalate.NewTracker(escalate.WithResolveAfter(3))
		So(tr.Observe(model.RiskHigh).Escalate, ShouldBeTrue)

		Convey("When two Lows are interrupted by a Medium", func() {
			So(tr.Observe(model.RiskLow).Resolved, ShouldBeFalse)
			So(tr.Observe(model.RiskLow).Resolved, ShouldBeFalse)
			interrupted := tr.Observe(model.RiskMedium)

			Convey("Then the streak resets without a new escalation", func() {
				So(interrupted.Escalate, ShouldBeFalse)
				So(tr.State(), ShouldEqual, escalate.Escalated)

				// A fresh run of three Lows is now required.
				So(tr.Observe(model.RiskLow).Resolved, ShouldBeFalse)
				So(tr.Observe(model.RiskLow).Resolved, ShouldBeFalse)
				So(tr.Observe(model.RiskLow).Resolved, ShouldBeTrue)
				So(tr.State(), ShouldEqual, escalate.Quiescent)
			})
		})

		Convey("When the episode resolves and risk rises again", func() {
			for i := 0; i < 3; i++ {
				tr.Observe(model.RiskLow)
			}
			So(tr.State(), ShouldEqual, escalate.Quiescent)
			second := tr.Observe(model.RiskMedium)

			Convey("Then a fresh episode escalates again", func() {
				So(second.Escalate, ShouldBeTrue)
			})
		})
	})
}

func TestEscalatorRaise(t *testing.T) {
	Convey("Given an escalator over an in-memory incident store", t, func() {
		store := repository.NewMemoryIncidentStore()
		esc := escalate.New(store)
		ctx := context.Background()

		meta := model.SessionMeta{DriverID: "driver-1", RideID: "ride-1", PassengerID: "pass-1"}
		trigger := &model.RiskAssessment{
			ID:          "assess-1",
			SessionID:   "sess-1",
			Seq:         4,
			StorageRef:  "mem://sess-1/4-abc",
			Transcript:  "shut up or I will hurt you",
			ThreatScore: 90,
			TotalScore:  61,
			Level:       model.RiskMedium,
		}
		history := []*model.RiskAssessment{
			{Seq: 3, StorageRef: "mem://sess-1/3-xyz"},
		}

		Convey("When raising an incident for a Medium assessment", func() {
			inc, err := esc.Raise(ctx, "sess-1", meta, trigger, history)

			Convey("Then the incident and kit are persisted with linked ids", func() {
				So(err, ShouldBeNil)
				So(inc.ID, ShouldNotBeEmpty)
				So(inc.EvidenceKitID, ShouldNotBeEmpty)
				So(inc.Severity, ShouldEqual, model.SeverityMedium)
				So(inc.Urgency, ShouldEqual, model.UrgencyHigh)
				So(inc.Status, ShouldEqual, model.IncidentOpen)
				So(inc.Summary, ShouldContainSubstring, "Medium")

				kit, ok := store.Kit(ctx, inc.EvidenceKitID)
				So(ok, ShouldBeTrue)
				So(kit.IncidentID, ShouldEqual, inc.ID)
				So(kit.StorageRefs, ShouldResemble, []string{"mem://sess-1/3-xyz", "mem://sess-1/4-abc"})
				So(kit.TotalScore, ShouldEqual, 61)
			})
		})

		Convey("When the triggering score reaches the critical floor", func() {
			trigger.Level = model.RiskHigh
			trigger.TotalScore = 93
			inc, err := esc.Raise(ctx, "sess-1", meta, trigger, nil)

			Convey("Then the incident is graded Critical and Immediate", func() {
				So(err, ShouldBeNil)
				So(inc.Severity, ShouldEqual, model.SeverityCritical)
				So(inc.Urgency, ShouldEqual, model.UrgencyImmediate)
			})
		})
	})
}
