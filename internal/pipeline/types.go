package pipeline

import (
	"math"
	"time"

	"github.com/keagan/autoreframe/internal/analysis"
	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/safearea"
	"github.com/keagan/autoreframe/internal/strategy"
)

// ProjectVersion is written into every saved project.
const ProjectVersion = 1

// EditProject is the result of an analysis: the clip list plus everything
// needed to review, edit and render it. Times are persisted in seconds.
type EditProject struct {
	Version           int                `json:"version" yaml:"version"`
	Name              string             `json:"name" yaml:"name"`
	Source            SourceInfo         `json:"source" yaml:"source"`
	TargetAspectRatio string             `json:"targetAspectRatio" yaml:"target_aspect_ratio"`
	CropSize          geometry.Size      `json:"cropSize" yaml:"crop_size"`
	BlackBars         safearea.Detection `json:"blackBars" yaml:"black_bars"`
	Clips             []clips.VideoClip  `json:"clips" yaml:"clips"`
	Trajectory        []TrajectoryPoint  `json:"trajectory" yaml:"trajectory"`
	CreatedAt         time.Time          `json:"createdAt" yaml:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" yaml:"updated_at"`
}

// SourceInfo describes the analyzed video.
type SourceInfo struct {
	Path     string  `json:"path" yaml:"path"`
	Width    int     `json:"width" yaml:"width"`
	Height   int     `json:"height" yaml:"height"`
	Duration float64 `json:"duration" yaml:"duration"`
	FPS      float64 `json:"fps" yaml:"fps"`
	HasAudio bool    `json:"hasAudio" yaml:"has_audio"`
}

// Length returns Duration as a time.Duration.
func (s SourceInfo) Length() time.Duration {
	return time.Duration(math.Round(s.Duration * float64(time.Second)))
}

// TrajectoryPoint is one analyzed sample: where the crop sat and why.
type TrajectoryPoint struct {
	Time          float64           `json:"time" yaml:"time"`
	Strategy      strategy.Strategy `json:"strategy" yaml:"strategy"`
	CropPosition  geometry.Point    `json:"cropPosition" yaml:"crop_position"`
	SpeakerCenter *geometry.Point   `json:"speakerCenter,omitempty" yaml:"speaker_center,omitempty"`
	Faces         int               `json:"faces" yaml:"faces"`
	Speaking      bool              `json:"speaking" yaml:"speaking"`
}

func trajectory(frames []analysis.Frame) []TrajectoryPoint {
	out := make([]TrajectoryPoint, len(frames))
	for i, f := range frames {
		out[i] = TrajectoryPoint{
			Time:          f.Timestamp.Seconds(),
			Strategy:      f.Strategy,
			CropPosition:  f.CropPosition,
			SpeakerCenter: f.SpeakerCenter,
			Faces:         len(f.Faces),
			Speaking:      f.SpeakingFaceIndex != nil,
		}
	}
	return out
}

// Stage names a step reported through AnalyzeOptions.Progress.
type Stage string

const (
	StageProbe    Stage = "probe"
	StageSafeArea Stage = "safe-area"
	StageSampling Stage = "sampling"
	StageClips    Stage = "clips"
)

// AnalyzeOptions configures analysis behavior
type AnalyzeOptions struct {
	// AspectRatio overrides output.aspect_ratio, e.g. "9:16".
	AspectRatio string
	// Interval overrides sampling.interval.
	Interval time.Duration
	// Progress receives the current stage and its completed fraction.
	Progress func(stage Stage, fraction float64)
}

// RenderOptions configures render behavior
type RenderOptions struct {
	OutputPath string
	// Width and Height override the configured output size.
	Width  int
	Height int
	// ClipIDs restricts the render to these clips, in project order.
	ClipIDs  []string
	Progress func(percent float64)
}
