package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	presets   = []string{"standard", "conservative"}
	fallbacks = []string{"speaking-score", "confidence", "centroid"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.FFmpeg.Threads < 0 {
		add("ffmpeg.threads must be >= 0")
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		add("ffmpeg.crf must be between 0 and 51")
	}

	if c.Detector.ConfidenceThreshold <= 0 || c.Detector.ConfidenceThreshold >= 1 {
		add("detector.confidence_threshold must be between 0 and 1")
	}
	if c.Detector.NMSIoU <= 0 || c.Detector.NMSIoU > 1 {
		add("detector.nms_iou must be in (0, 1]")
	}

	if !slices.Contains(presets, c.SafeArea.Preset) {
		add("safe_area.preset must be one of %s", strings.Join(presets, ", "))
	}
	if c.SafeArea.BlackRatio < 0 || c.SafeArea.BlackRatio > 1 {
		add("safe_area.black_ratio must be between 0 and 1")
	}
	if c.SafeArea.BrightnessThreshold < 0 || c.SafeArea.BrightnessThreshold > 255 {
		add("safe_area.brightness_threshold must be between 0 and 255")
	}

	if c.Sampling.Interval < 0 {
		add("sampling.interval must be >= 0")
	}

	if c.Speaker.HistorySize < 1 {
		add("speaker.history_size must be >= 1")
	}
	if c.Speaker.MaxAge <= 0 {
		add("speaker.max_age must be > 0")
	}

	if !slices.Contains(fallbacks, c.Strategy.MultiFaceFallback) {
		add("strategy.multi_face_fallback must be one of %s", strings.Join(fallbacks, ", "))
	}
	if c.Strategy.VerticalBias < 0 || c.Strategy.VerticalBias >= 0.5 {
		add("strategy.vertical_bias must be in [0, 0.5)")
	}
	if c.Strategy.LetterboxBelowCoverage < 0 || c.Strategy.LetterboxBelowCoverage > 1 {
		add("strategy.letterbox_below_coverage must be between 0 and 1")
	}

	if c.Segmentation.CutTolerance <= 0 {
		add("segmentation.cut_tolerance must be > 0")
	}
	if c.Segmentation.MinClipDuration < 0 {
		add("segmentation.min_clip_duration must be >= 0")
	}
	if c.Segmentation.MergeThreshold < 0 {
		add("segmentation.merge_threshold must be >= 0")
	}

	if c.Output.AspectRatio == "" {
		add("output.aspect_ratio must be set")
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 || c.Output.Width%2 != 0 || c.Output.Height%2 != 0 {
		add("output.width and output.height must be positive even numbers")
	}

	return errors.Join(errs...)
}
