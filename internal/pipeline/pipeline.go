// Package pipeline runs the reframing workflow end to end: probe, safe area,
// sampling, clip segmentation and rendering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/config"
	"github.com/keagan/autoreframe/internal/detector"
	"github.com/keagan/autoreframe/internal/ffmpeg"
	"github.com/keagan/autoreframe/internal/frames"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/safearea"
	"github.com/keagan/autoreframe/internal/sampler"
	"github.com/rs/zerolog"
)

// ErrNoVideoStream is returned when the input has no decodable video.
var ErrNoVideoStream = errors.New("input has no video stream")

// DetectorFactory opens a fresh detector for one analysis run.
type DetectorFactory func() (detector.FaceSpeakingDetector, error)

// Pipeline orchestrates the entire video processing workflow
type Pipeline struct {
	logger      zerolog.Logger
	config      *config.Config
	ffmpeg      *ffmpeg.Executor
	newDetector DetectorFactory
}

// New creates a pipeline backed by ffmpeg and the configured ONNX models.
func New(logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	ffmpegExec, err := ffmpeg.New(logger, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	onnxCfg := onnxConfig(cfg.Detector)
	factory := func() (detector.FaceSpeakingDetector, error) {
		return detector.NewONNXDetector(logger, onnxCfg)
	}

	return newPipeline(logger, cfg, ffmpegExec, factory), nil
}

func newPipeline(logger zerolog.Logger, cfg *config.Config, exec *ffmpeg.Executor, factory DetectorFactory) *Pipeline {
	return &Pipeline{
		logger:      logger.With().Str("component", "pipeline").Logger(),
		config:      cfg,
		ffmpeg:      exec,
		newDetector: factory,
	}
}

// WithDetector replaces the detector factory, e.g. to plug in a remote detector.
func (p *Pipeline) WithDetector(factory DetectorFactory) *Pipeline {
	p.newDetector = factory
	return p
}

// Analyze runs the full analysis pipeline on input video
func (p *Pipeline) Analyze(ctx context.Context, input string, opts AnalyzeOptions) (*EditProject, error) {
	if input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}

	p.logger.Info().Str("input", input).Msg("starting analysis pipeline")
	report(opts, StageProbe, 0)

	info, err := p.ffmpeg.ProbeVideo(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	if !info.HasVideo || info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%s: %w", input, ErrNoVideoStream)
	}

	p.logger.Info().
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Msg("video metadata extracted")
	report(opts, StageProbe, 1)

	reader, err := p.ffmpeg.NewFrameReader(input, info)
	if err != nil {
		return nil, fmt.Errorf("failed to open frames: %w", err)
	}
	defer reader.Close()

	det, err := p.newDetector()
	if err != nil {
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}

	source := SourceInfo{
		Path:     input,
		Width:    info.Width,
		Height:   info.Height,
		Duration: info.Duration.Seconds(),
		FPS:      info.FPS,
		HasAudio: info.HasAudio,
	}
	return p.AnalyzeSource(ctx, reader, det, source, opts)
}

// AnalyzeSource runs safe-area detection, sampling and clip building on an
// already opened frame source. It takes ownership of det.
func (p *Pipeline) AnalyzeSource(ctx context.Context, src frames.Source, det detector.FaceSpeakingDetector, info SourceInfo, opts AnalyzeOptions) (*EditProject, error) {
	// The sampler closes det; release it here when we fail before sampling.
	sampled := false
	defer func() {
		if !sampled {
			_ = det.Close()
		}
	}()

	ratioText := opts.AspectRatio
	if ratioText == "" {
		ratioText = p.config.Output.AspectRatio
	}
	ratio, err := geometry.ParseAspectRatio(ratioText)
	if err != nil {
		return nil, err
	}
	saCfg, err := safeAreaConfig(p.config.SafeArea)
	if err != nil {
		return nil, err
	}
	samplerCfg := samplerConfig(p.config)
	if err := samplerCfg.Strategy.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}

	duration := info.Length()
	if duration <= 0 {
		duration = src.Duration()
	}

	report(opts, StageSafeArea, 0)
	bars, err := safearea.NewDetector(p.logger, saCfg).Detect(ctx, src, duration)
	if err != nil {
		return nil, fmt.Errorf("safe area detection: %w", err)
	}
	report(opts, StageSafeArea, 1)

	crop := geometry.CropSize(bars.SafeArea.Size(), ratio)
	interval := samplingInterval(opts.Interval, p.config.Sampling, duration)

	sampled = true
	analyzed, err := sampler.New(p.logger, samplerCfg).Run(ctx, sampler.Request{
		Source:   src,
		Detector: det,
		SafeArea: bars.SafeArea,
		Crop:     crop,
		Duration: duration,
		Interval: interval,
		Progress: func(f float64) { report(opts, StageSampling, f) },
	})
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}

	report(opts, StageClips, 0)
	fallback := geometry.Point{
		X: bars.SafeArea.X + (bars.SafeArea.Width-crop.Width)/2,
		Y: bars.SafeArea.Y + (bars.SafeArea.Height-crop.Height)/2,
	}
	segmented := clips.Segment(analyzed, duration, fallback, segmentConfig(p.config.Segmentation))
	final := clips.Merge(segmented, p.config.Segmentation.MergeThreshold)
	if err := clips.Validate(final, duration); err != nil {
		return nil, fmt.Errorf("clip list invalid: %w", err)
	}
	report(opts, StageClips, 1)

	now := time.Now().UTC()
	project := &EditProject{
		Version:           ProjectVersion,
		Name:              projectName(info.Path),
		Source:            info,
		TargetAspectRatio: ratio.String(),
		CropSize:          crop,
		BlackBars:         bars,
		Clips:             final,
		Trajectory:        trajectory(analyzed),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	p.logger.Info().
		Str("project", project.Name).
		Int("frames", len(analyzed)).
		Int("segments", len(segmented)).
		Int("clips", len(final)).
		Msg("analysis pipeline complete")

	return project, nil
}

// Render executes the rendering pipeline for a project
func (p *Pipeline) Render(ctx context.Context, project *EditProject, opts RenderOptions) (string, error) {
	if project == nil {
		return "", fmt.Errorf("project cannot be nil")
	}
	if opts.OutputPath == "" {
		return "", fmt.Errorf("output path cannot be empty")
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = p.config.Output.Width, p.config.Output.Height
	}

	segments, err := Segments(project, opts.ClipIDs)
	if err != nil {
		return "", err
	}

	p.logger.Info().
		Str("project", project.Name).
		Str("output", opts.OutputPath).
		Int("segments", len(segments)).
		Msg("starting render pipeline")

	renderOpts := ffmpeg.ProjectRenderOptions{
		Input:    project.Source.Path,
		Output:   opts.OutputPath,
		Width:    width,
		Height:   height,
		Segments: segments,
		HasAudio: project.Source.HasAudio,
		CRF:      p.config.FFmpeg.CRF,
		Preset:   p.config.FFmpeg.Preset,
	}
	if opts.Progress != nil {
		renderOpts.ProgressFunc = func(pr *ffmpeg.Progress) { opts.Progress(pr.Percentage) }
	}

	if err := p.ffmpeg.RenderProject(ctx, renderOpts); err != nil {
		return "", err
	}

	p.logger.Info().Str("output", opts.OutputPath).Msg("render pipeline complete")
	return opts.OutputPath, nil
}

// Segments converts the project's clips into render segments with integer
// crop windows clamped to the source frame. A clip's CropScale shrinks its
// window around the same center; the renderer scales it back up. With ids, only those clips are
// kept, still in timeline order.
func Segments(project *EditProject, ids []string) ([]ffmpeg.Segment, error) {
	selected := project.Clips
	if len(ids) > 0 {
		selected = make([]clips.VideoClip, 0, len(ids))
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		for _, c := range project.Clips {
			if want[c.ID] {
				selected = append(selected, c)
				delete(want, c.ID)
			}
		}
		for id := range want {
			return nil, fmt.Errorf("%w: %s", clips.ErrClipNotFound, id)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("project has no clips to render")
	}

	w := evenFloor(min(project.CropSize.Width, float64(project.Source.Width)))
	h := evenFloor(min(project.CropSize.Height, float64(project.Source.Height)))

	out := make([]ffmpeg.Segment, len(selected))
	for i, c := range selected {
		seg := ffmpeg.Segment{Start: c.Start, End: c.End, Letterbox: c.UseFullFrame}
		if !c.UseFullFrame {
			seg.Width, seg.Height = w, h
			x, y := c.CropPosition.X, c.CropPosition.Y
			if c.CropScale > 1 {
				seg.Width = max(evenFloor(float64(w)/c.CropScale), 2)
				seg.Height = max(evenFloor(float64(h)/c.CropScale), 2)
				x += float64(w-seg.Width) / 2
				y += float64(h-seg.Height) / 2
			}
			seg.X = int(geometry.Clamp(math.Round(x), 0, float64(project.Source.Width-seg.Width)))
			seg.Y = int(geometry.Clamp(math.Round(y), 0, float64(project.Source.Height-seg.Height)))
		}
		out[i] = seg
	}
	return out, nil
}

func evenFloor(v float64) int {
	n := int(v)
	return n - n%2
}

func projectName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Sprintf("project_%d", time.Now().Unix())
	}
	return name
}

func report(opts AnalyzeOptions, stage Stage, fraction float64) {
	if opts.Progress != nil {
		opts.Progress(stage, fraction)
	}
}
