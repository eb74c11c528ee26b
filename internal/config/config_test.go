package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/verif/internal/config"
)

func TestDefaults(t *testing.T) {
	Convey("Given no file and no environment overrides", t, func() {
		os.Unsetenv("VERIF_CONFIG")
		os.Unsetenv("VERIF_ADDR")
		os.Unsetenv("VERIF_DEFAULT_ESTIMATOR")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)

			Convey("Then defaults apply", func() {
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.DefaultEstimator, ShouldEqual, "pwm")
				So(cfg.WorkerCount, ShouldBeGreaterThan, 0)
				So(cfg.ChunkSize, ShouldBeGreaterThan, 0)
				So(cfg.MetricsEnabled, ShouldBeTrue)
			})
		})
	})
}

func TestEnvOverrides(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		os.Unsetenv("VERIF_CONFIG")
		t.Setenv("VERIF_ADDR", ":7070")
		t.Setenv("VERIF_DEFAULT_ESTIMATOR", "nrg")
		t.Setenv("VERIF_WORKER_COUNT", "3")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)

			Convey("Then env wins over defaults", func() {
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.DefaultEstimator, ShouldEqual, "nrg")
				So(cfg.WorkerCount, ShouldEqual, 3)
			})
		})
	})
}

func TestFileLayer(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "verif.yaml")
		So(os.WriteFile(path, []byte("addr: \":6060\"\nchunk_size: 64\n"), 0o600), ShouldBeNil)
		t.Setenv("VERIF_CONFIG", path)

		Convey("When loading without env overrides", func() {
			os.Unsetenv("VERIF_ADDR")
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
			So(cfg.ChunkSize, ShouldEqual, 64)
		})

		Convey("When an env var overrides the file", func() {
			t.Setenv("VERIF_ADDR", ":5050")
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":5050")
			So(cfg.ChunkSize, ShouldEqual, 64)
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given invalid settings", t, func() {
		os.Unsetenv("VERIF_CONFIG")

		Convey("When the default estimator is unknown", func() {
			t.Setenv("VERIF_DEFAULT_ESTIMATOR", "bogus")
			_, err := config.Load(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the worker count is not positive", func() {
			t.Setenv("VERIF_WORKER_COUNT", "0")
			_, err := config.Load(context.Background())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
