package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoreframe.yaml")
	data := `
sampling:
  interval: 1.5
strategy:
  multi_face_fallback: centroid
output:
  aspect_ratio: "4:5"
  width: 1080
  height: 1350
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sampling.Interval != 1.5 || cfg.Strategy.MultiFaceFallback != "centroid" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Sampling, cfg.Strategy)
	}
	if cfg.Output.AspectRatio != "4:5" {
		t.Errorf("aspect = %q", cfg.Output.AspectRatio)
	}
	if cfg.Speaker.HistorySize != 10 || cfg.SafeArea.Preset != "standard" {
		t.Error("unset sections should keep defaults")
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoreframe.toml")
	data := `
work_dir = "/tmp/reframe"

[safe_area]
preset = "conservative"

[segmentation]
cut_tolerance = 80.0
min_clip_duration = 3.0
merge_threshold = 40.0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkDir != "/tmp/reframe" || cfg.SafeArea.Preset != "conservative" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Segmentation.CutTolerance != 80 || cfg.Segmentation.MinClipDuration != 3 {
		t.Errorf("segmentation = %+v", cfg.Segmentation)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "safe_area:\n  preset: aggressive\nstrategy:\n  multi_face_fallback: loudest\noutput:\n  width: 1081\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"safe_area.preset", "strategy.multi_face_fallback", "output.width"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing explicit config should fail")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := defaultConfig()
			cfg.Strategy.MultiFaceFallback = "confidence"

			if err := cfg.Save(path); err != nil {
				t.Fatal(err)
			}
			back, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if back.Strategy.MultiFaceFallback != "confidence" {
				t.Errorf("fallback = %q", back.Strategy.MultiFaceFallback)
			}
		})
	}
}

func TestContext(t *testing.T) {
	cfg := defaultConfig()
	cfg.WorkDir = "/custom"

	ctx := WithConfig(context.Background(), cfg)
	if FromContext(ctx).WorkDir != "/custom" {
		t.Error("config not stored in context")
	}
	if FromContext(context.Background()).WorkDir != "./work" {
		t.Error("missing config should fall back to defaults")
	}
}
