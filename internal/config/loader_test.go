package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goshield/goshield/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadLayering(t *testing.T) {
	Convey("Given a YAML file and environment overrides", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "goshield.yaml")
		yml := []byte(`
addr: ":7070"
risk:
  rounding: floor
session:
  idle_timeout: 90s
stage:
  transcribe:
    attempts: 4
`)
		So(os.WriteFile(path, yml, 0o600), ShouldBeNil)

		t.Setenv("GOSHIELD_CONFIG", path)
		t.Setenv("GOSHIELD_LOG_LEVEL", "debug")
		t.Setenv("GOSHIELD_RISK__ROUNDING", "nearest")
		t.Setenv("GOSHIELD_EXTERNAL__MAX_CONCURRENT_CALLS", "8")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then env beats file beats defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")                 // file
				So(cfg.LogLevel, ShouldEqual, "debug")             // env
				So(cfg.Risk.Rounding, ShouldEqual, "nearest")      // env over file
				So(cfg.Session.IdleTimeout, ShouldEqual, 90*time.Second)
				So(cfg.Stages.Transcribe.Attempts, ShouldEqual, 4)
				So(cfg.External.MaxConcurrentCalls, ShouldEqual, 8)

				// Untouched keys keep their defaults.
				So(cfg.Risk.ThreatWeight, ShouldEqual, 0.6)
				So(cfg.Stages.Store.Attempts, ShouldEqual, 3)
			})
		})
	})
}

func TestLoadRejectsInvalid(t *testing.T) {
	Convey("Given env overrides that break validation", t, func() {
		t.Setenv("GOSHIELD_RISK__ROUNDING", "banker")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then the invalid value is surfaced", func() {
				So(cfg, ShouldBeNil)
				So(err, ShouldWrap, config.ErrInvalidConfig)
			})
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	Convey("Given GOSHIELD_CONFIG pointing at a missing file", t, func() {
		t.Setenv("GOSHIELD_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then loading fails with a load error", func() {
				So(cfg, ShouldBeNil)
				So(err, ShouldWrap, config.ErrLoadConfig)
			})
		})
	})
}
