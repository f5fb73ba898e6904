package classify_test

import (
	"testing"

	"github.com/goshield/goshield/internal/domain/classify"
	"github.com/goshield/goshield/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifierBands(t *testing.T) {
	Convey("Given a classifier with default weights and thresholds", t, func() {
		c := classify.New()

		Convey("When all factors are zero", func() {
			r := c.Classify(0, 0, 0)

			Convey("Then the total is zero and the level is Low", func() {
				So(r.Total, ShouldEqual, 0)
				So(r.Level, ShouldEqual, model.RiskLow)
				So(r.ActionRequired, ShouldBeFalse)
			})
		})

		Convey("When the total lands exactly on the medium boundary", func() {
			// 0.6*40 + 0.3*40 + 0.1*40 = 40
			r := c.Classify(40, 40, 40)

			Convey("Then 40 is Medium (low end inclusive)", func() {
				So(r.Total, ShouldEqual, 40)
				So(r.Level, ShouldEqual, model.RiskMedium)
				So(r.ActionRequired, ShouldBeTrue)
			})
		})

		Convey("When the total lands just below the medium boundary", func() {
			// 0.6*39 + 0.3*39 + 0.1*39 = 39
			r := c.Classify(39, 39, 39)

			Convey("Then 39 is Low", func() {
				So(r.Total, ShouldEqual, 39)
				So(r.Level, ShouldEqual, model.RiskLow)
			})
		})

		Convey("When the total lands exactly on the high boundary", func() {
			r := c.Classify(70, 70, 70)

			Convey("Then 70 is High", func() {
				So(r.Total, ShouldEqual, 70)
				So(r.Level, ShouldEqual, model.RiskHigh)
			})
		})

		Convey("When the total lands just below the high boundary", func() {
			r := c.Classify(69, 69, 69)

			Convey("Then 69 is Medium", func() {
				So(r.Total, ShouldEqual, 69)
				So(r.Level, ShouldEqual, model.RiskMedium)
			})
		})

		Convey("When classifying the threat-dominant scenario", func() {
			// round(0.6*90 + 0.3*20 + 0.1*0) = round(60) = 60
			r := c.Classify(90, 20, 0)

			Convey("Then the total is 60, level Medium, action required", func() {
				So(r.Total, ShouldEqual, 60)
				So(r.Level, ShouldEqual, model.RiskMedium)
				So(r.ActionRequired, ShouldBeTrue)
			})
		})

		Convey("When inputs exceed the score bounds", func() {
			r := c.Classify(500, -50, 100)

			Convey("Then inputs are clamped and the total stays in [0,100]", func() {
				So(r.Total, ShouldBeGreaterThanOrEqualTo, 0)
				So(r.Total, ShouldBeLessThanOrEqualTo, 100)
				// 0.6*100 + 0.3*0 + 0.1*100 = 70
				So(r.Total, ShouldEqual, 70)
				So(r.Level, ShouldEqual, model.RiskHigh)
			})
		})

		Convey("When classifying the same inputs repeatedly", func() {
			first := c.Classify(33.3, 66.6, 12.9)

			Convey("Then the output is deterministic", func() {
				for i := 0; i < 50; i++ {
					So(c.Classify(33.3, 66.6, 12.9), ShouldResemble, first)
				}
			})
		})

		Convey("When sweeping the full input grid", func() {
			Convey("Then every total stays within [0,100]", func() {
				for threat := 0.0; threat <= 100; threat += 20 {
					for location := 0.0; location <= 100; location += 20 {
						for driver := 0.0; driver <= 100; driver += 20 {
							r := c.Classify(threat, location, driver)
							So(r.Total, ShouldBeGreaterThanOrEqualTo, 0)
							So(r.Total, ShouldBeLessThanOrEqualTo, 100)
						}
					}
				}
			})
		})
	})
}

func TestClassifierRounding(t *testing.T) {
	Convey("Given classifiers with different rounding rules", t, func() {
		nearest := classify.New(classify.WithRounding(classify.RoundNearest))
		floor := classify.New(classify.WithRounding(classify.RoundFloor))

		Convey("When the weighted total is 39.9", func() {
			// 0.6*39.9 + 0.3*39.9 + 0.1*39.9 = 39.9
			rn := nearest.Classify(39.9, 39.9, 39.9)
			rf := floor.Classify(39.9, 39.9, 39.9)

			Convey("Then nearest rounds up into Medium", func() {
				So(rn.Total, ShouldEqual, 40)
				So(rn.Level, ShouldEqual, model.RiskMedium)
			})

			Convey("And floor truncates down into Low", func() {
				So(rf.Total, ShouldEqual, 39)
				So(rf.Level, ShouldEqual, model.RiskLow)
			})
		})
	})
}

func TestClassifierOptions(t *testing.T) {
	Convey("Given custom weights and thresholds", t, func() {
		c := classify.New(
			classify.WithWeights(0.5, 0.3, 0.2),
			classify.WithThresholds(50, 80),
		)

		Convey("When classifying with the custom configuration", func() {
			// 0.5*100 + 0.3*0 + 0.2*0 = 50
			r := c.Classify(100, 0, 0)

			Convey("Then the custom boundaries apply", func() {
				So(r.Total, ShouldEqual, 50)
				So(r.Level, ShouldEqual, model.RiskMedium)
			})
		})

		Convey("When invalid options are supplied", func() {
			invalid := classify.New(
				classify.WithWeights(-1, 0.3, 0.1),
				classify.WithThresholds(90, 10),
				classify.WithRounding("banker"),
			)
			r := invalid.Classify(40, 40, 40)

			Convey("Then the defaults are kept", func() {
				So(r.Total, ShouldEqual, 40)
				So(r.Level, ShouldEqual, model.RiskMedium)
			})
		})
	})
}

func TestNotification(t *testing.T) {
	Convey("Given the notification prompts", t, func() {
		Convey("Then Low has no prompt", func() {
			So(classify.Notification(model.RiskLow), ShouldBeEmpty)
		})
		Convey("Then Medium and High prompt for confirmation", func() {
			So(classify.Notification(model.RiskMedium), ShouldContainSubstring, "medium level")
			So(classify.Notification(model.RiskHigh), ShouldContainSubstring, "high level")
		})
	})
}
