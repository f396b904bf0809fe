package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"sc2-replay-analyzer/internal/config"
)

var configEnvVars = []string{
	"SC2RA_CONFIG", "SC2RA_ENV_FILE", "SC2RA_SNAPSHOT_INTERVAL", "SC2RA_INCLUDE_TIME_SERIES",
	"SC2RA_BUILD_ORDER_LIMIT", "SC2RA_TIMEOUT", "SC2RA_ADDR", "SC2RA_WORKERS", "SC2RA_LOG_LEVEL",
	"SC2RA_DB_DRIVER",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading with defaults only", func() {
			clearConfigEnvVars()
			cfg, err := config.Load(ctx)

			convey.Convey("Then it matches New", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*cfg, convey.ShouldResemble, *config.New())
			})
		})

		convey.Convey("When environment variables are set", func() {
			clearConfigEnvVars()
			_ = os.Setenv("SC2RA_SNAPSHOT_INTERVAL", "0.5")
			_ = os.Setenv("SC2RA_INCLUDE_TIME_SERIES", "false")
			_ = os.Setenv("SC2RA_BUILD_ORDER_LIMIT", "20")
			_ = os.Setenv("SC2RA_TIMEOUT", "30s")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.SnapshotInterval, convey.ShouldEqual, 0.5)
				convey.So(cfg.IncludeTimeSeries, convey.ShouldBeFalse)
				convey.So(cfg.BuildOrderLimit, convey.ShouldEqual, 20)
				convey.So(cfg.Timeout, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When a YAML file and env both set a key", func() {
			clearConfigEnvVars()
			path := writeTemp(t, "sc2ra.yaml", "addr: \":9999\"\nworkers: 3\nlog_level: debug\n")
			_ = os.Setenv("SC2RA_CONFIG", path)
			_ = os.Setenv("SC2RA_WORKERS", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9999")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Workers, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When a .env file is present", func() {
			clearConfigEnvVars()
			path := writeTemp(t, "analyzer.env", "SC2RA_DB_DRIVER=sqlite3\n")
			_ = os.Setenv("SC2RA_ENV_FILE", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values are loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite3")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars()
			_ = os.Setenv("SC2RA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value is invalid", func() {
			clearConfigEnvVars()
			_ = os.Setenv("SC2RA_SNAPSHOT_INTERVAL", "-1")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
