package pipeline

import (
	"math"
	"time"

	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/config"
	"github.com/keagan/autoreframe/internal/detector"
	"github.com/keagan/autoreframe/internal/safearea"
	"github.com/keagan/autoreframe/internal/sampler"
	"github.com/keagan/autoreframe/internal/speaker"
	"github.com/keagan/autoreframe/internal/strategy"
)

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// safeAreaConfig applies the non-zero overrides on top of the chosen preset.
func safeAreaConfig(c config.SafeAreaConfig) (safearea.Config, error) {
	cfg, err := safearea.PresetConfig(c.Preset)
	if err != nil {
		return safearea.Config{}, err
	}
	if c.BrightnessThreshold > 0 {
		cfg.BrightnessThreshold = c.BrightnessThreshold
	}
	if c.BlackRatio > 0 {
		cfg.BlackRatio = c.BlackRatio
	}
	if c.MinBarSize > 0 {
		cfg.MinBarSize = c.MinBarSize
	}
	if c.MarginPx > 0 {
		cfg.MarginPx = c.MarginPx
	}
	if c.MarginRatio > 0 {
		cfg.MarginRatio = c.MarginRatio
	}
	return cfg, nil
}

func samplerConfig(c *config.Config) sampler.Config {
	return sampler.Config{
		Speaker: speaker.Config{
			HistorySize:          c.Speaker.HistorySize,
			MaxAge:               seconds(c.Speaker.MaxAge),
			SpeakingThreshold:    c.Speaker.SpeakingThreshold,
			RawOpennessThreshold: c.Speaker.RawOpennessThreshold,
			MatchIoU:             c.Speaker.MatchIoU,
		},
		Strategy: strategy.Config{
			MultiFaceFallback:      strategy.Fallback(c.Strategy.MultiFaceFallback),
			VerticalBias:           c.Strategy.VerticalBias,
			LetterboxBelowCoverage: c.Strategy.LetterboxBelowCoverage,
		},
	}
}

func segmentConfig(c config.SegmentationConfig) clips.SegmentConfig {
	return clips.SegmentConfig{
		CutTolerance: c.CutTolerance,
		MinDuration:  seconds(c.MinClipDuration),
	}
}

func onnxConfig(c config.DetectorConfig) detector.ONNXConfig {
	cfg := detector.DefaultONNXConfig()
	cfg.LibraryPath = c.ORTLibrary
	if c.FaceModel != "" {
		cfg.FaceModel = c.FaceModel
	}
	cfg.LandmarkModel = c.LandmarkModel
	if c.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = c.ConfidenceThreshold
	}
	if c.NMSIoU > 0 {
		cfg.NMSThreshold = c.NMSIoU
	}
	if c.MaxFaces > 0 {
		cfg.MaxFaces = c.MaxFaces
	}
	return cfg
}

// samplingInterval resolves the interval: explicit option, then config,
// then the adaptive policy.
func samplingInterval(opt time.Duration, c config.SamplingConfig, duration time.Duration) time.Duration {
	if opt > 0 {
		return opt
	}
	if c.Interval > 0 {
		return seconds(c.Interval)
	}
	return sampler.AdaptiveInterval(duration)
}
