package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Upstream.MaxAttempts, convey.ShouldEqual, 4)
				convey.So(cfg.Sync.HistoryTopN, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FPL_HTTP__ADDR", ":8080")
			_ = os.Setenv("FPL_CACHE__BACKEND", "redis")
			_ = os.Setenv("FPL_CACHE__TTL", "5m")
			_ = os.Setenv("FPL_ANALYTICS__MIN_SAMPLES", "4")
			_ = os.Setenv("FPL_HTTP__CORS_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults section by section", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Cache.Backend, convey.ShouldEqual, config.BackendRedis)
				convey.So(cfg.Cache.TTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Analytics.MinSamples, convey.ShouldEqual, 4)
				convey.So(cfg.Analytics.FormWindow, convey.ShouldEqual, 5)
				convey.So(cfg.HTTP.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
http:
  addr: ":9090"
store:
  driver: sqlite
  dsn: "file:fpl.db"
analytics:
  form_window: 6
  form_decay: 0.7
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FPL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values merge with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "file:fpl.db")
				convey.So(cfg.Analytics.FormWindow, convey.ShouldEqual, 6)
				convey.So(cfg.Analytics.FormDecay, convey.ShouldEqual, 0.7)
				convey.So(cfg.Analytics.MinSamples, convey.ShouldEqual, 3)
				convey.So(cfg.HTTP.WriteTimeout, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile(`
http:
  addr: ":9090"
sync:
  history_top_n: 50
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FPL_CONFIG", tmpFile)
			_ = os.Setenv("FPL_HTTP__ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HTTP.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Sync.HistoryTopN, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FPL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("FPL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the resulting config does not validate", func() {
			_ = os.Setenv("FPL_STORE__DRIVER", "postgres")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then a validation error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "fpl-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "FPL_") {
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}
