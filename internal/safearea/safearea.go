// Package safearea finds letterbox and pillarbox bars and reports the usable
// picture rectangle.
package safearea

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/keagan/autoreframe/internal/frames"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/rs/zerolog"
)

// Preset names accepted by PresetConfig.
const (
	PresetStandard     = "standard"
	PresetConservative = "conservative"
)

// sampleFractions are the points of the timeline inspected for bars.
var sampleFractions = []float64{0, 0.25, 0.5, 0.75, 1.0}

// endGuard keeps the final sample inside the decodable range.
const endGuard = 100 * time.Millisecond

// Config tunes bar detection.
type Config struct {
	// BrightnessThreshold is the average RGB value (0-255) below which a pixel counts as black.
	BrightnessThreshold float64
	// BlackRatio is the fraction of examined pixels that must be black for a row or column.
	BlackRatio float64
	// MinBarSize discards thinner bars as noise.
	MinBarSize int
	// MarginPx and MarginRatio set the padding added to non-zero bars:
	// max(MarginPx, MarginRatio * max(width, height)).
	MarginPx    int
	MarginRatio float64
	// SamplesPerLine bounds how many pixels are examined per row or column.
	SamplesPerLine int
	// MinSafeFraction rejects results that leave less than this share of either dimension.
	MinSafeFraction float64
}

// DefaultConfig returns the standard preset.
func DefaultConfig() Config {
	cfg, _ := PresetConfig(PresetStandard)
	return cfg
}

// PresetConfig returns one of the named threshold presets.
func PresetConfig(name string) (Config, error) {
	base := Config{
		MinBarSize:      3,
		MarginPx:        5,
		SamplesPerLine:  100,
		MinSafeFraction: 0.25,
	}
	switch name {
	case PresetStandard, "":
		base.BrightnessThreshold = 30
		base.BlackRatio = 0.90
	case PresetConservative:
		base.BrightnessThreshold = 40
		base.BlackRatio = 0.85
		base.MarginRatio = 0.01
	default:
		return Config{}, fmt.Errorf("unknown safe area preset %q", name)
	}
	return base, nil
}

// Bars are black bar widths in pixels, one per edge.
type Bars struct {
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
}

// Any reports whether any edge carries a bar.
func (b Bars) Any() bool {
	return b.Top > 0 || b.Bottom > 0 || b.Left > 0 || b.Right > 0
}

// union keeps the widest bar seen on each edge.
func (b Bars) union(o Bars) Bars {
	return Bars{
		Top:    max(b.Top, o.Top),
		Bottom: max(b.Bottom, o.Bottom),
		Left:   max(b.Left, o.Left),
		Right:  max(b.Right, o.Right),
	}
}

// Detection is the outcome of bar detection for one video.
type Detection struct {
	HasBlackBars bool          `json:"hasBlackBars" yaml:"has_black_bars"`
	Top          int           `json:"top" yaml:"top"`
	Bottom       int           `json:"bottom" yaml:"bottom"`
	Left         int           `json:"left" yaml:"left"`
	Right        int           `json:"right" yaml:"right"`
	SafeArea     geometry.Rect `json:"safeArea" yaml:"safe_area"`
}

// FullFrame is the fallback detection covering the whole picture.
func FullFrame(width, height int) Detection {
	return Detection{
		SafeArea: geometry.Rect{Width: float64(width), Height: float64(height)},
	}
}

// Detector samples a video and computes its safe area.
type Detector struct {
	logger zerolog.Logger
	config Config
}

// NewDetector creates a bar detector.
func NewDetector(logger zerolog.Logger, cfg Config) *Detector {
	return &Detector{
		logger: logger.With().Str("component", "safe-area").Logger(),
		config: cfg,
	}
}

// Detect inspects src at fixed fractions of duration. It never fails: on any
// problem it returns the full frame with HasBlackBars=false. Cancellation is
// the only error returned.
func (d *Detector) Detect(ctx context.Context, src frames.Source, duration time.Duration) (Detection, error) {
	width, height := src.Width(), src.Height()
	fallback := FullFrame(width, height)
	if width <= 0 || height <= 0 {
		d.logger.Warn().Int("width", width).Int("height", height).Msg("invalid frame size, using full frame")
		return fallback, nil
	}

	var (
		bars    Bars
		usable  int
		area    = image.Rect(0, 0, width, height)
		lastErr error
	)

	for _, fraction := range sampleFractions {
		if err := ctx.Err(); err != nil {
			return Detection{}, err
		}

		at := sampleTime(duration, fraction)
		img, err := captureAt(ctx, src, at)
		if err != nil {
			if ctx.Err() != nil {
				return Detection{}, ctx.Err()
			}
			lastErr = err
			d.logger.Warn().Err(err).Dur("at", at).Msg("bar sample failed")
			continue
		}

		sample := MeasureBars(img, area, d.config)
		if blankFrame(sample, area) {
			d.logger.Debug().Dur("at", at).Msg("skipping dark frame")
			continue
		}

		d.logger.Debug().
			Dur("at", at).
			Int("top", sample.Top).
			Int("bottom", sample.Bottom).
			Int("left", sample.Left).
			Int("right", sample.Right).
			Msg("bar sample")

		bars = bars.union(sample)
		usable++
	}

	if usable == 0 {
		d.logger.Warn().Err(lastErr).Msg("no usable bar samples, using full frame")
		return fallback, nil
	}

	det := newDetection(bars, area)
	if det.SafeArea.Width < float64(width)*d.config.MinSafeFraction ||
		det.SafeArea.Height < float64(height)*d.config.MinSafeFraction {
		d.logger.Warn().
			Float64("safe_width", det.SafeArea.Width).
			Float64("safe_height", det.SafeArea.Height).
			Msg("safe area implausibly small, using full frame")
		return fallback, nil
	}

	d.logger.Info().
		Bool("black_bars", det.HasBlackBars).
		Int("top", det.Top).
		Int("bottom", det.Bottom).
		Int("left", det.Left).
		Int("right", det.Right).
		Msg("safe area detected")

	return det, nil
}

func newDetection(b Bars, area image.Rectangle) Detection {
	return Detection{
		HasBlackBars: b.Any(),
		Top:          b.Top,
		Bottom:       b.Bottom,
		Left:         b.Left,
		Right:        b.Right,
		SafeArea: geometry.Rect{
			X:      float64(area.Min.X + b.Left),
			Y:      float64(area.Min.Y + b.Top),
			Width:  float64(area.Dx() - b.Left - b.Right),
			Height: float64(area.Dy() - b.Top - b.Bottom),
		},
	}
}

func sampleTime(duration time.Duration, fraction float64) time.Duration {
	at := time.Duration(float64(duration) * fraction)
	if limit := duration - endGuard; at > limit {
		at = limit
	}
	if at < 0 {
		at = 0
	}
	return at
}

func captureAt(ctx context.Context, src frames.Source, at time.Duration) (*image.RGBA, error) {
	if err := src.SeekTo(ctx, at); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	img, err := src.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return img, nil
}

// blankFrame reports whether bars from opposite edges met, which happens on
// fades and cut-to-black frames rather than on real letterboxing.
func blankFrame(b Bars, area image.Rectangle) bool {
	return b.Top+b.Bottom >= area.Dy()-1 || b.Left+b.Right >= area.Dx()-1
}

// MeasureBars estimates the bar on each edge of area within img, including margin.
func MeasureBars(img *image.RGBA, area image.Rectangle, cfg Config) Bars {
	area = area.Intersect(img.Bounds())
	if area.Empty() {
		return Bars{}
	}

	w, h := area.Dx(), area.Dy()
	rowStep := stride(w, cfg.SamplesPerLine)
	colStep := stride(h, cfg.SamplesPerLine)

	rowBlack := func(y int) bool {
		return lineBlack(img, cfg, area.Min.X, y, rowStep, 0, w)
	}
	colBlack := func(x int) bool {
		return lineBlack(img, cfg, x, area.Min.Y, 0, colStep, h)
	}

	bars := Bars{
		Top:    countRun(h/2, func(i int) bool { return rowBlack(area.Min.Y + i) }),
		Bottom: countRun(h/2, func(i int) bool { return rowBlack(area.Max.Y - 1 - i) }),
		Left:   countRun(w/2, func(i int) bool { return colBlack(area.Min.X + i) }),
		Right:  countRun(w/2, func(i int) bool { return colBlack(area.Max.X - 1 - i) }),
	}

	margin := cfg.MarginPx
	if m := int(math.Ceil(cfg.MarginRatio * float64(max(w, h)))); m > margin {
		margin = m
	}

	pad := func(v int) int {
		if v < cfg.MinBarSize {
			return 0
		}
		return v + margin
	}
	return Bars{
		Top:    pad(bars.Top),
		Bottom: pad(bars.Bottom),
		Left:   pad(bars.Left),
		Right:  pad(bars.Right),
	}
}

// countRun counts consecutive true results from 0 up to limit.
func countRun(limit int, black func(int) bool) int {
	n := 0
	for n < limit && black(n) {
		n++
	}
	return n
}

func stride(length, samples int) int {
	if samples <= 0 || length <= samples {
		return 1
	}
	return length / samples
}

// lineBlack walks n pixels from (x, y) in steps of (dx, dy) spacing, where
// exactly one of dx/dy is the stride.
func lineBlack(img *image.RGBA, cfg Config, x, y, dx, dy, n int) bool {
	step := dx + dy
	examined, black := 0, 0
	for i := 0; i < n; i += step {
		px, py := x, y
		if dx > 0 {
			px += i
		} else {
			py += i
		}
		off := img.PixOffset(px, py)
		p := img.Pix[off : off+3 : off+3]
		brightness := (float64(p[0]) + float64(p[1]) + float64(p[2])) / 3
		if brightness < cfg.BrightnessThreshold {
			black++
		}
		examined++
	}
	if examined == 0 {
		return false
	}
	return float64(black)/float64(examined) >= cfg.BlackRatio
}
