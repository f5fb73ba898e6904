package model_test

import (
	"testing"

	"github.com/goshield/goshield/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRiskLevelEscalates(t *testing.T) {
	Convey("Given the risk level bands", t, func() {
		Convey("Then Low does not escalate", func() {
			So(model.RiskLow.Escalates(), ShouldBeFalse)
		})
		Convey("Then Medium escalates", func() {
			So(model.RiskMedium.Escalates(), ShouldBeTrue)
		})
		Convey("Then High escalates", func() {
			So(model.RiskHigh.Escalates(), ShouldBeTrue)
		})
	})
}
