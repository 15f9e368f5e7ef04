// Package sampler walks a video at a fixed interval, detects faces in every
// sampled frame and records where the crop window should sit.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/autoreframe/internal/analysis"
	"github.com/keagan/autoreframe/internal/detector"
	"github.com/keagan/autoreframe/internal/frames"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/speaker"
	"github.com/keagan/autoreframe/internal/strategy"
	"github.com/rs/zerolog"
)

// DefaultInterval is used when a request leaves the interval unset.
const DefaultInterval = 500 * time.Millisecond

// AdaptiveInterval picks a sampling interval from the video length so long
// videos stay affordable to analyze.
func AdaptiveInterval(duration time.Duration) time.Duration {
	switch {
	case duration < time.Minute:
		return 500 * time.Millisecond
	case duration < 5*time.Minute:
		return time.Second
	case duration < 20*time.Minute:
		return 2 * time.Second
	default:
		return 3 * time.Second
	}
}

// Config holds the per-frame decision settings handed to every session.
type Config struct {
	Speaker  speaker.Config
	Strategy strategy.Config
}

// DefaultConfig returns the standard speaker and strategy settings.
func DefaultConfig() Config {
	return Config{
		Speaker:  speaker.DefaultConfig(),
		Strategy: strategy.DefaultConfig(),
	}
}

// Request describes one sampling run.
type Request struct {
	Source   frames.Source
	Detector detector.FaceSpeakingDetector
	// SafeArea is in source pixels. An empty rect means the full frame.
	SafeArea geometry.Rect
	Crop     geometry.Size
	Duration time.Duration
	Interval time.Duration
	// Progress receives a non-decreasing fraction after every sample.
	Progress func(fraction float64)
}

// Sampler runs sampling sessions.
type Sampler struct {
	logger zerolog.Logger
	config Config
}

// New creates a sampler.
func New(logger zerolog.Logger, cfg Config) *Sampler {
	return &Sampler{
		logger: logger.With().Str("component", "sampler").Logger(),
		config: cfg,
	}
}

// Session is the state of one run: the detector handle plus the speaker and
// framing history built up sample by sample.
type Session struct {
	detector detector.FaceSpeakingDetector
	tracker  *speaker.Tracker
	analyzer *strategy.Analyzer
}

// NewSession takes ownership of det; Close releases it.
func NewSession(det detector.FaceSpeakingDetector, cfg Config) *Session {
	return &Session{
		detector: det,
		tracker:  speaker.NewTracker(cfg.Speaker),
		analyzer: strategy.NewAnalyzer(cfg.Strategy),
	}
}

// Close releases the detector.
func (s *Session) Close() error {
	return s.detector.Close()
}

// Run samples req.Source at every interval in [0, duration) and returns the
// successful samples in time order. Failed samples are logged and skipped.
// On cancellation it returns ctx.Err() and no frames.
func (s *Sampler) Run(ctx context.Context, req Request) ([]analysis.Frame, error) {
	if req.Source == nil || req.Detector == nil {
		return nil, fmt.Errorf("sampler needs a frame source and a detector")
	}

	sess := NewSession(req.Detector, s.config)
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close detector")
		}
	}()

	if req.Duration <= 0 {
		return nil, nil
	}
	interval := req.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	safe := req.SafeArea
	if safe.Empty() {
		safe = geometry.Rect{Width: float64(req.Source.Width()), Height: float64(req.Source.Height())}
	}

	total := int((req.Duration + interval - 1) / interval)
	out := make([]analysis.Frame, 0, total)
	skipped := 0

	s.logger.Info().
		Dur("duration", req.Duration).
		Dur("interval", interval).
		Int("samples", total).
		Msg("sampling frames")

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		at := time.Duration(i) * interval
		frame, err := sess.sample(ctx, req, safe, at)
		switch {
		case err == nil:
			out = append(out, frame)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			skipped++
			s.logger.Warn().Err(err).Dur("at", at).Msg("sample failed, skipping")
		}

		if req.Progress != nil {
			req.Progress(float64(i+1) / float64(total))
		}
	}

	s.logger.Info().
		Int("frames", len(out)).
		Int("skipped", skipped).
		Msg("sampling complete")

	return out, nil
}

func (s *Session) sample(ctx context.Context, req Request, safe geometry.Rect, at time.Duration) (analysis.Frame, error) {
	if err := req.Source.SeekTo(ctx, at); err != nil {
		return analysis.Frame{}, fmt.Errorf("seek: %w", err)
	}
	img, err := req.Source.Capture(ctx)
	if err != nil {
		return analysis.Frame{}, fmt.Errorf("capture: %w", err)
	}
	detected, err := s.detector.Detect(ctx, img)
	if err != nil {
		return analysis.Frame{}, fmt.Errorf("detect: %w", err)
	}

	origin := safe.Origin()
	bounds := geometry.Rect{Width: safe.Width, Height: safe.Height}

	faces := make([]detector.Face, 0, len(detected))
	for _, f := range detected {
		f.Box = f.Box.Translate(geometry.Point{X: -origin.X, Y: -origin.Y})
		if f.Box.Intersect(bounds).Empty() {
			continue
		}
		faces = append(faces, f)
	}

	states := s.tracker.Observe(at, faces)
	index, confident := speaker.Select(states)

	frame := analysis.Frame{
		Timestamp: at,
		Faces:     make([]analysis.FaceObservation, len(faces)),
	}
	in := strategy.Input{
		Faces:            make([]strategy.Face, len(faces)),
		SpeakerIndex:     index,
		SpeakerConfident: confident,
		SafeArea:         bounds.Size(),
		Crop:             req.Crop,
	}
	for i, f := range faces {
		frame.Faces[i] = analysis.FaceObservation{
			TrackID:       states[i].TrackID,
			BoundingBox:   f.Box,
			Confidence:    f.Confidence,
			MouthOpenness: f.MouthOpenness,
			IsSpeaking:    states[i].IsSpeaking,
			SpeakingScore: states[i].Score,
		}
		in.Faces[i] = strategy.Face{
			Box:           f.Box,
			Confidence:    f.Confidence,
			SpeakingScore: states[i].Score,
		}
	}
	if confident {
		idx := index
		frame.SpeakingFaceIndex = &idx
	}

	d := s.analyzer.Analyze(in)
	frame.Strategy = d.Strategy
	frame.CropPosition = d.Position.Add(origin)
	if d.Subject != nil {
		center := d.Subject.Add(origin)
		frame.SpeakerCenter = &center
	}
	return frame, nil
}
