package config_test

import (
	"testing"
	"time"

	"github.com/goshield/goshield/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given a default configuration", t, func() {
		cfg := config.New()

		Convey("Then it validates cleanly", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Then classifier weights and bands have their documented defaults", func() {
			So(cfg.Risk.ThreatWeight, ShouldEqual, 0.6)
			So(cfg.Risk.LocationWeight, ShouldEqual, 0.3)
			So(cfg.Risk.DriverWeight, ShouldEqual, 0.1)
			So(cfg.Risk.MediumThreshold, ShouldEqual, 40)
			So(cfg.Risk.HighThreshold, ShouldEqual, 70)
			So(cfg.Risk.Rounding, ShouldEqual, "nearest")
		})

		Convey("Then resource bounds are sane", func() {
			So(cfg.Session.InflightLimit, ShouldEqual, 16)
			So(cfg.Session.IdleTimeout, ShouldEqual, 5*time.Minute)
			So(cfg.External.MaxConcurrentCalls, ShouldEqual, 64)
			So(cfg.Escalation.ResolveAfterLows, ShouldEqual, 3)
			So(cfg.Persistence.RetryAttempts, ShouldEqual, 5)
		})

		Convey("Then stage budgets match the dependency profile", func() {
			So(cfg.Stages.Store.Attempts, ShouldEqual, 3)
			So(cfg.Stages.Store.Timeout, ShouldEqual, 5*time.Second)
			So(cfg.Stages.Transcribe.Attempts, ShouldEqual, 3)
			So(cfg.Stages.Transcribe.Timeout, ShouldEqual, 10*time.Second)
			So(cfg.Stages.Threat.Attempts, ShouldEqual, 2)
			So(cfg.Stages.Location.Timeout, ShouldEqual, 3*time.Second)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given configurations with invalid fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"negative weight", func(c *config.Config) { c.Risk.ThreatWeight = -0.1 }},
			{"weights not summing to 1", func(c *config.Config) { c.Risk.ThreatWeight = 0.9 }},
			{"medium above high", func(c *config.Config) { c.Risk.MediumThreshold = 80 }},
			{"high above 100", func(c *config.Config) { c.Risk.HighThreshold = 120 }},
			{"unknown rounding", func(c *config.Config) { c.Risk.Rounding = "ceil" }},
			{"zero resolve streak", func(c *config.Config) { c.Escalation.ResolveAfterLows = 0 }},
			{"zero inflight limit", func(c *config.Config) { c.Session.InflightLimit = 0 }},
			{"zero call cap", func(c *config.Config) { c.External.MaxConcurrentCalls = 0 }},
		}

		for _, tc := range cases {
			Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				So(err, ShouldNotBeNil)
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		}
	})
}
