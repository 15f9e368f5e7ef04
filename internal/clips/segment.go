// Package clips turns per-frame crop decisions into time-ranged clips and
// keeps an editable history of them.
package clips

import (
	"time"

	"github.com/keagan/autoreframe/internal/analysis"
	"github.com/keagan/autoreframe/internal/geometry"
)

// SegmentConfig tunes clip segmentation.
type SegmentConfig struct {
	// CutTolerance is the crop-position distance, in source pixels, that opens a new clip.
	CutTolerance float64
	// MinDuration is the shortest clip kept on its own.
	MinDuration time.Duration
}

// DefaultSegmentConfig returns the standard policy.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		CutTolerance: 50,
		MinDuration:  2 * time.Second,
	}
}

// Segment walks frames in time order and emits a clip every time the crop
// mode changes or the crop moves further than CutTolerance from the open
// clip's position. Short clips are then absorbed into their neighbours.
// With no usable frames the whole video becomes one clip at fallback.
// A non-positive duration yields no clips.
func Segment(frames []analysis.Frame, duration time.Duration, fallback geometry.Point, cfg SegmentConfig) []VideoClip {
	if duration <= 0 {
		return nil
	}

	usable := make([]analysis.Frame, 0, len(frames))
	for _, f := range frames {
		if f.Timestamp < 0 || f.Timestamp >= duration {
			continue
		}
		if n := len(usable); n > 0 && f.Timestamp <= usable[n-1].Timestamp {
			continue
		}
		usable = append(usable, f)
	}

	if len(usable) == 0 {
		return []VideoClip{{
			ID:           newID(),
			Start:        0,
			End:          duration,
			CropPosition: fallback,
		}}
	}

	var out []VideoClip
	open := openClip(usable[0], 0)
	for _, f := range usable[1:] {
		if !cuts(open, f, cfg.CutTolerance) {
			continue
		}
		open.End = f.Timestamp
		out = append(out, open)
		open = openClip(f, f.Timestamp)
	}
	open.End = duration
	out = append(out, open)

	return absorbShort(out, cfg.MinDuration)
}

func openClip(f analysis.Frame, start time.Duration) VideoClip {
	c := VideoClip{
		ID:           newID(),
		Start:        start,
		CropPosition: f.CropPosition,
		UseFullFrame: f.Strategy.Letterbox(),
	}
	if f.SpeakerCenter != nil {
		center := *f.SpeakerCenter
		c.SpeakerCenter = &center
	}
	return c
}

func cuts(open VideoClip, f analysis.Frame, tolerance float64) bool {
	if f.Strategy.Letterbox() != open.UseFullFrame {
		return true
	}
	if open.UseFullFrame {
		return false
	}
	return f.CropPosition.Distance(open.CropPosition) > tolerance
}

// absorbShort folds clips under minimum into the preceding clip. A short first
// clip is folded into its successor instead; a lone clip is always kept.
func absorbShort(list []VideoClip, minimum time.Duration) []VideoClip {
	if minimum <= 0 || len(list) < 2 {
		return list
	}

	out := make([]VideoClip, 0, len(list))
	for _, c := range list {
		if n := len(out); n > 0 && c.Duration() < minimum {
			out[n-1].End = c.End
			continue
		}
		out = append(out, c)
	}

	if len(out) > 1 && out[0].Duration() < minimum {
		out[1].Start = out[0].Start
		out = out[1:]
	}
	return out
}
