package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"foodvision/internal/config"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given the config loader", t, func() {
		clearEnv()
		defer clearEnv()

		Convey("When nothing overrides the defaults", func() {
			cfg, err := config.LoadFile("")

			So(err, ShouldBeNil)
			So(cfg.ActiveSource, ShouldEqual, config.SourceWebcam)
			So(cfg.TargetFPS, ShouldEqual, uint(30))
			So(cfg.ScaledWidth, ShouldEqual, 300)
			So(cfg.GetFlip(), ShouldBeTrue)
			So(cfg.GetSquareCrop(), ShouldBeTrue)
			So(cfg.Model.Dir, ShouldEqual, "my_model/")
			So(cfg.Verdict.HealthyLabel, ShouldEqual, "Healthy")
			So(cfg.History.Capacity, ShouldEqual, 6)
		})

		Convey("When a YAML file is given", func() {
			path := writeTemp(t, `
active_source: Local
target_fps: 12
local:
  path: /tmp/lunch.mp4
model:
  backend: remote
  remote_url: ws://classifier:9000/ws
verdict:
  healthy_calories: 180
`)
			cfg, err := config.LoadFile(path)

			So(err, ShouldBeNil)
			So(cfg.ActiveSource, ShouldEqual, config.SourceLocal)
			So(cfg.TargetFPS, ShouldEqual, uint(12))
			So(cfg.Local.Path, ShouldEqual, "/tmp/lunch.mp4")
			So(cfg.Model.Backend, ShouldEqual, config.BackendRemote)
			So(cfg.Verdict.HealthyCalories, ShouldEqual, 180)
			So(cfg.Verdict.UnhealthyCalories, ShouldEqual, 450)

			Convey("Environment variables take precedence over the file", func() {
				_ = os.Setenv("FOODVISION_TARGET_FPS", "24")
				_ = os.Setenv("FOODVISION_MODEL__REMOTE_URL", "ws://other:1/ws")

				cfg, err := config.LoadFile(path)

				So(err, ShouldBeNil)
				So(cfg.TargetFPS, ShouldEqual, uint(24))
				So(cfg.Model.RemoteURL, ShouldEqual, "ws://other:1/ws")
			})
		})

		Convey("When FOODVISION_CONFIG names the file", func() {
			path := writeTemp(t, "scaled_width: 224\nscaled_height: 224\n")
			_ = os.Setenv(config.EnvConfigPath, path)

			cfg, err := config.Load()

			So(err, ShouldBeNil)
			So(cfg.GetWidth(), ShouldEqual, 224)
			So(cfg.GetHeight(), ShouldEqual, 224)
		})

		Convey("When the file does not exist", func() {
			_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})

		Convey("When a value is invalid", func() {
			_ = os.Setenv("FOODVISION_HISTORY__CAPACITY", "0")

			_, err := config.LoadFile("")

			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the backend is unknown", func() {
			_ = os.Setenv("FOODVISION_MODEL__BACKEND", "tflite")

			_, err := config.LoadFile("")

			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestSaveRoundTrip(t *testing.T) {
	Convey("Given a config edited at runtime", t, func() {
		clearEnv()

		cfg := config.NewDefaultConfig()
		cfg.SetSource(config.SourceLocal)
		cfg.SetLocalPath("/videos/plate.mp4")
		cfg.SetFPS(15)
		cfg.SetDark(true)
		cfg.SetFlip(false)
		cfg.SetSquareCrop(false)

		path := filepath.Join(t.TempDir(), "config.yaml")

		Convey("Saving and loading it keeps the edits", func() {
			So(cfg.Save(path), ShouldBeNil)

			loaded, err := config.LoadFile(path)

			So(err, ShouldBeNil)
			So(loaded.GetSource(), ShouldEqual, config.SourceLocal)
			So(loaded.GetLocalPath(), ShouldEqual, "/videos/plate.mp4")
			So(loaded.GetFPS(), ShouldEqual, uint(15))
			So(loaded.IsDark(), ShouldBeTrue)
			So(loaded.GetFlip(), ShouldBeFalse)
			So(loaded.GetSquareCrop(), ShouldBeFalse)
		})
	})
}

func writeTemp(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv() {
	for _, key := range []string{
		config.EnvConfigPath,
		"FOODVISION_TARGET_FPS",
		"FOODVISION_MODEL__REMOTE_URL",
		"FOODVISION_MODEL__BACKEND",
		"FOODVISION_HISTORY__CAPACITY",
	} {
		_ = os.Unsetenv(key)
	}
}
