package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keagan/autoreframe/pkg/util"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration. Durations are in seconds.
type Config struct {
	WorkDir string `yaml:"work_dir" toml:"work_dir"`

	FFmpeg       FFmpegConfig       `yaml:"ffmpeg" toml:"ffmpeg"`
	Detector     DetectorConfig     `yaml:"detector" toml:"detector"`
	SafeArea     SafeAreaConfig     `yaml:"safe_area" toml:"safe_area"`
	Sampling     SamplingConfig     `yaml:"sampling" toml:"sampling"`
	Speaker      SpeakerConfig      `yaml:"speaker" toml:"speaker"`
	Strategy     StrategyConfig     `yaml:"strategy" toml:"strategy"`
	Segmentation SegmentationConfig `yaml:"segmentation" toml:"segmentation"`
	Output       OutputConfig       `yaml:"output" toml:"output"`
}

type FFmpegConfig struct {
	Threads int    `yaml:"threads" toml:"threads"`
	Preset  string `yaml:"preset" toml:"preset"`
	CRF     int    `yaml:"crf" toml:"crf"`
}

type DetectorConfig struct {
	FaceModel           string  `yaml:"face_model" toml:"face_model"`
	LandmarkModel       string  `yaml:"landmark_model" toml:"landmark_model"`
	ORTLibrary          string  `yaml:"ort_library" toml:"ort_library"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" toml:"confidence_threshold"`
	NMSIoU              float64 `yaml:"nms_iou" toml:"nms_iou"`
	MaxFaces            int     `yaml:"max_faces" toml:"max_faces"`
}

// SafeAreaConfig picks a black-bar preset. Non-zero fields override it.
type SafeAreaConfig struct {
	Preset              string  `yaml:"preset" toml:"preset"`
	BrightnessThreshold float64 `yaml:"brightness_threshold,omitempty" toml:"brightness_threshold,omitempty"`
	BlackRatio          float64 `yaml:"black_ratio,omitempty" toml:"black_ratio,omitempty"`
	MinBarSize          int     `yaml:"min_bar_size,omitempty" toml:"min_bar_size,omitempty"`
	MarginPx            int     `yaml:"margin_px,omitempty" toml:"margin_px,omitempty"`
	MarginRatio         float64 `yaml:"margin_ratio,omitempty" toml:"margin_ratio,omitempty"`
}

type SamplingConfig struct {
	// Interval between analyzed frames. Zero picks one from the video length.
	Interval float64 `yaml:"interval" toml:"interval"`
}

type SpeakerConfig struct {
	HistorySize          int     `yaml:"history_size" toml:"history_size"`
	MaxAge               float64 `yaml:"max_age" toml:"max_age"`
	SpeakingThreshold    float64 `yaml:"speaking_threshold" toml:"speaking_threshold"`
	RawOpennessThreshold float64 `yaml:"raw_openness_threshold" toml:"raw_openness_threshold"`
	MatchIoU             float64 `yaml:"match_iou" toml:"match_iou"`
}

type StrategyConfig struct {
	MultiFaceFallback      string  `yaml:"multi_face_fallback" toml:"multi_face_fallback"`
	VerticalBias           float64 `yaml:"vertical_bias" toml:"vertical_bias"`
	LetterboxBelowCoverage float64 `yaml:"letterbox_below_coverage" toml:"letterbox_below_coverage"`
}

type SegmentationConfig struct {
	CutTolerance    float64 `yaml:"cut_tolerance" toml:"cut_tolerance"`
	MinClipDuration float64 `yaml:"min_clip_duration" toml:"min_clip_duration"`
	MergeThreshold  float64 `yaml:"merge_threshold" toml:"merge_threshold"`
}

type OutputConfig struct {
	AspectRatio string `yaml:"aspect_ratio" toml:"aspect_ratio"`
	Width       int    `yaml:"width" toml:"width"`
	Height      int    `yaml:"height" toml:"height"`
}

// Load reads configuration from file or returns defaults. With an empty
// path the standard locations are searched. The format follows the file
// extension: .toml is TOML, anything else YAML.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes configuration to file in the format its extension implies.
func (c *Config) Save(path string) error {
	data, err := c.Encode(formatOf(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Encode renders the configuration as "yaml" or "toml".
func (c *Config) Encode(format string) ([]byte, error) {
	switch format {
	case "toml":
		return toml.Marshal(c)
	case "yaml", "yml", "":
		return yaml.Marshal(c)
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir: "./work",
		FFmpeg: FFmpegConfig{
			Threads: 0,
			Preset:  "medium",
			CRF:     23,
		},
		Detector: DetectorConfig{
			FaceModel:           "./models/version-RFB-320.onnx",
			LandmarkModel:       "./models/face_mesh_192.onnx",
			ConfidenceThreshold: 0.7,
			NMSIoU:              0.3,
			MaxFaces:            6,
		},
		SafeArea: SafeAreaConfig{
			Preset: "standard",
		},
		Sampling: SamplingConfig{
			Interval: 0.5,
		},
		Speaker: SpeakerConfig{
			HistorySize:          10,
			MaxAge:               3,
			SpeakingThreshold:    0.05,
			RawOpennessThreshold: 0.03,
			MatchIoU:             0.3,
		},
		Strategy: StrategyConfig{
			MultiFaceFallback: "speaking-score",
			VerticalBias:      0.1,
		},
		Segmentation: SegmentationConfig{
			CutTolerance:    50,
			MinClipDuration: 2,
			MergeThreshold:  50,
		},
		Output: OutputConfig{
			AspectRatio: "9:16",
			Width:       1080,
			Height:      1920,
		},
	}
}

func decode(path string, data []byte, cfg *Config) error {
	if formatOf(path) == "toml" {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func findConfigFile() string {
	candidates := []string{
		"./autoreframe.yaml",
		"./autoreframe.yml",
		"./autoreframe.toml",
		"~/.autoreframe/config.yaml",
		"~/.autoreframe/config.toml",
	}

	for _, path := range candidates {
		expanded, err := util.ExpandHome(path)
		if err != nil {
			continue
		}
		if util.FileExists(expanded) {
			return expanded
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
