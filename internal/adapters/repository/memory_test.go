package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func assessment(session string, seq uint64, level model.RiskLevel, at time.Time) *model.RiskAssessment {
	return &model.RiskAssessment{
		ID:        session + "-a",
		SessionID: session,
		Seq:       seq,
		Level:     level,
		CreatedAt: at,
	}
}

func TestMemoryAssessmentStore(t *testing.T) {
	Convey("Given an in-memory assessment store", t, func() {
		store := repository.NewMemoryAssessmentStore()
		ctx := context.Background()
		now := time.Now()

		Convey("When appending assessments for two sessions", func() {
			So(store.Append(ctx, assessment("s1", 0, model.RiskLow, now)), ShouldBeNil)
			So(store.Append(ctx, assessment("s1", 1, model.RiskHigh, now.Add(time.Second))), ShouldBeNil)
			So(store.Append(ctx, assessment("s2", 0, model.RiskHigh, now.Add(2*time.Second))), ShouldBeNil)

			Convey("Then BySession preserves append order", func() {
				list, err := store.BySession(ctx, "s1")
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
				So(list[0].Seq, ShouldEqual, 0)
				So(list[1].Seq, ShouldEqual, 1)
			})

			Convey("And HighRisk returns high assessments newest first", func() {
				high, err := store.HighRisk(ctx, now)
				So(err, ShouldBeNil)
				So(len(high), ShouldEqual, 2)
				So(high[0].SessionID, ShouldEqual, "s2")
				So(high[1].SessionID, ShouldEqual, "s1")
			})

			Convey("And HighRisk respects the since cutoff", func() {
				high, err := store.HighRisk(ctx, now.Add(90*time.Minute))
				So(err, ShouldBeNil)
				So(len(high), ShouldEqual, 0)
			})
		})

		Convey("When append failures are injected", func() {
			store.FailNext(1)

			Convey("Then the first append fails and the next succeeds", func() {
				So(store.Append(ctx, assessment("s1", 0, model.RiskLow, now)), ShouldEqual, repository.ErrRepositoryUnavailable)
				So(store.Append(ctx, assessment("s1", 0, model.RiskLow, now)), ShouldBeNil)
			})
		})
	})
}

func TestMemoryIncidentStore(t *testing.T) {
	Convey("Given an in-memory incident store", t, func() {
		store := repository.NewMemoryIncidentStore()
		ctx := context.Background()

		inc := &model.Incident{
			ID:            "inc-1",
			EvidenceKitID: "kit-1",
			SessionID:     "s1",
			Severity:      model.SeverityHigh,
			Urgency:       model.UrgencyImmediate,
			Status:        model.IncidentOpen,
			CreatedAt:     time.Now(),
		}
		kit := &model.EvidenceKit{ID: "kit-1", IncidentID: "inc-1", Transcript: "shut up"}

		Convey("When saving an incident with its kit", func() {
			id, err := store.Save(ctx, inc, kit)

			Convey("Then it is retrievable and open", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "inc-1")

				got, err := store.ByID(ctx, "inc-1")
				So(err, ShouldBeNil)
				So(got.EvidenceKitID, ShouldEqual, "kit-1")

				open, err := store.Open(ctx)
				So(err, ShouldBeNil)
				So(len(open), ShouldEqual, 1)

				storedKit, ok := store.Kit(ctx, "kit-1")
				So(ok, ShouldBeTrue)
				So(storedKit.Transcript, ShouldEqual, "shut up")
			})

			Convey("And a duplicate evidence-kit id is rejected", func() {
				dup := *inc
				dup.ID = "inc-2"
				_, err := store.Save(ctx, &dup, kit)
				So(err, ShouldEqual, repository.ErrDuplicateEvidenceKit)
				So(store.Count(), ShouldEqual, 1)
			})

			Convey("And closing it removes it from the open list", func() {
				So(store.UpdateStatus(ctx, "inc-1", model.IncidentClosed), ShouldBeNil)
				open, err := store.Open(ctx)
				So(err, ShouldBeNil)
				So(len(open), ShouldEqual, 0)
			})
		})

		Convey("When looking up a missing incident", func() {
			_, err := store.ByID(ctx, "inc-404")

			Convey("Then it reports not found", func() {
				So(err, ShouldEqual, repository.ErrIncidentNotFound)
			})
		})
	})
}
