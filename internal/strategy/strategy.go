// Package strategy decides, for one sampled frame, how the crop window is placed.
package strategy

import (
	"fmt"

	"github.com/keagan/autoreframe/internal/geometry"
)

// Strategy names how a frame's crop position was derived.
type Strategy string

const (
	Speaker       Strategy = "speaker"
	SingleFace    Strategy = "single-face"
	GroupFallback Strategy = "group-fallback"
	Hold          Strategy = "hold"
	Center        Strategy = "center"
	FullFrame     Strategy = "full-frame"
)

// Letterbox reports whether the strategy scales the full picture instead of cropping.
func (s Strategy) Letterbox() bool {
	return s == FullFrame
}

// Fallback selects a face when several are visible and none is clearly speaking.
type Fallback string

const (
	// FallbackSpeakingScore follows the face with the highest speaking score.
	FallbackSpeakingScore Fallback = "speaking-score"
	// FallbackConfidence follows the most confidently detected face.
	FallbackConfidence Fallback = "confidence"
	// FallbackCentroid frames the centroid of all face centers.
	FallbackCentroid Fallback = "centroid"
)

// Config tunes the per-frame decision.
type Config struct {
	MultiFaceFallback Fallback
	// VerticalBias raises the subject above center by this fraction of crop height.
	VerticalBias float64
	// LetterboxBelowCoverage switches empty frames to full-frame letterboxing
	// when the crop would keep less than this share of the safe area. Zero disables it.
	LetterboxBelowCoverage float64
}

// DefaultConfig returns the standard behaviour.
func DefaultConfig() Config {
	return Config{
		MultiFaceFallback: FallbackSpeakingScore,
		VerticalBias:      0.1,
	}
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.MultiFaceFallback {
	case FallbackSpeakingScore, FallbackConfidence, FallbackCentroid:
	default:
		return fmt.Errorf("unknown multi-face fallback %q", c.MultiFaceFallback)
	}
	if c.VerticalBias < 0 || c.VerticalBias >= 0.5 {
		return fmt.Errorf("vertical bias must be in [0, 0.5), got %v", c.VerticalBias)
	}
	if c.LetterboxBelowCoverage < 0 || c.LetterboxBelowCoverage > 1 {
		return fmt.Errorf("letterbox coverage must be in [0, 1], got %v", c.LetterboxBelowCoverage)
	}
	return nil
}

// Face is the analyzer's view of one face, in safe-area coordinates.
type Face struct {
	Box           geometry.Rect
	Confidence    float64
	SpeakingScore float64
}

// Input describes one sampled frame.
type Input struct {
	Faces []Face
	// SpeakerIndex is the selected face, or -1.
	SpeakerIndex int
	// SpeakerConfident is true when SpeakerIndex is actually talking.
	SpeakerConfident bool
	SafeArea         geometry.Size
	Crop             geometry.Size
}

// Decision is the outcome for one frame. Position is relative to the safe area.
type Decision struct {
	Strategy Strategy
	Position geometry.Point
	// Subject is the framed point (face or group center), when there is one.
	Subject *geometry.Point
}

// Analyzer holds the previous decision so empty frames can hold position.
// One Analyzer serves one analysis session.
type Analyzer struct {
	config   Config
	previous *Decision
}

// NewAnalyzer creates an analyzer with no history.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{config: cfg}
}

// Analyze applies the decision rules in priority order.
func (a *Analyzer) Analyze(in Input) Decision {
	d := a.decide(in)
	a.previous = &d
	return d
}

// Reset clears the held decision.
func (a *Analyzer) Reset() {
	a.previous = nil
}

func (a *Analyzer) decide(in Input) Decision {
	n := len(in.Faces)
	valid := in.SpeakerIndex >= 0 && in.SpeakerIndex < n

	switch {
	case valid && in.SpeakerConfident:
		return a.follow(Speaker, in.Faces[in.SpeakerIndex].Box.Center(), in)
	case n == 1:
		return a.follow(SingleFace, in.Faces[0].Box.Center(), in)
	case n > 1:
		return a.follow(GroupFallback, a.groupSubject(in), in)
	}

	if a.previous != nil {
		held := *a.previous
		if held.Strategy != FullFrame {
			held.Strategy = Hold
		}
		held.Subject = nil
		return held
	}

	if cov := coverage(in); a.config.LetterboxBelowCoverage > 0 && cov < a.config.LetterboxBelowCoverage {
		return Decision{Strategy: FullFrame}
	}

	return Decision{
		Strategy: Center,
		Position: clampPosition(geometry.Point{
			X: (in.SafeArea.Width - in.Crop.Width) / 2,
			Y: (in.SafeArea.Height - in.Crop.Height) / 2,
		}, in),
	}
}

// follow centers the crop on subject with the vertical bias applied.
func (a *Analyzer) follow(s Strategy, subject geometry.Point, in Input) Decision {
	pos := geometry.Point{
		X: subject.X - in.Crop.Width/2,
		Y: subject.Y - in.Crop.Height/2 + a.config.VerticalBias*in.Crop.Height,
	}
	return Decision{
		Strategy: s,
		Position: clampPosition(pos, in),
		Subject:  &subject,
	}
}

func (a *Analyzer) groupSubject(in Input) geometry.Point {
	switch a.config.MultiFaceFallback {
	case FallbackCentroid:
		var sum geometry.Point
		for _, f := range in.Faces {
			sum = sum.Add(f.Box.Center())
		}
		n := float64(len(in.Faces))
		return geometry.Point{X: sum.X / n, Y: sum.Y / n}
	case FallbackConfidence:
		best := 0
		for i, f := range in.Faces {
			if f.Confidence > in.Faces[best].Confidence {
				best = i
			}
		}
		return in.Faces[best].Box.Center()
	default:
		if in.SpeakerIndex >= 0 && in.SpeakerIndex < len(in.Faces) {
			return in.Faces[in.SpeakerIndex].Box.Center()
		}
		best := 0
		for i, f := range in.Faces {
			if f.SpeakingScore > in.Faces[best].SpeakingScore {
				best = i
			}
		}
		return in.Faces[best].Box.Center()
	}
}

func clampPosition(p geometry.Point, in Input) geometry.Point {
	return geometry.Point{
		X: geometry.Clamp(p.X, 0, in.SafeArea.Width-in.Crop.Width),
		Y: geometry.Clamp(p.Y, 0, in.SafeArea.Height-in.Crop.Height),
	}
}

func coverage(in Input) float64 {
	area := in.SafeArea.Area()
	if area == 0 {
		return 1
	}
	return in.Crop.Area() / area
}
