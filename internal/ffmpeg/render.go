package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Segment is one piece of the output: a source time range and how it is framed.
type Segment struct {
	Start time.Duration
	End   time.Duration
	// Crop window in source pixels. Ignored when Letterbox is set.
	X, Y, Width, Height int
	// Letterbox fits the whole picture onto the output canvas with black padding.
	Letterbox bool
}

// ProjectRenderOptions configures a reframed render.
type ProjectRenderOptions struct {
	Input    string
	Output   string
	Width    int
	Height   int
	Segments []Segment
	HasAudio bool

	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	ProgressFunc ProgressFunc
}

// RenderProject renders every segment with its own crop or letterbox and
// joins them in order into a single file.
func (e *Executor) RenderProject(ctx context.Context, opts ProjectRenderOptions) error {
	if err := validateProjectOptions(opts); err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	graph, total := buildProjectGraph(opts)

	e.logger.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Int("segments", len(opts.Segments)).
		Dur("length", total).
		Msg("starting render")

	args := []string{
		"-i", opts.Input,
		"-filter_complex", graph,
		"-map", "[outv]",
	}
	if opts.HasAudio {
		args = append(args, "-map", "[outa]")
	}

	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	args = append(args,
		"-c:v", videoCodec,
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-pix_fmt", "yuv420p",
	)

	if opts.HasAudio {
		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)
	}

	args = append(args, "-movflags", "+faststart", opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		Total:           total,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("render completed")
	return nil
}

// buildProjectGraph returns the filter_complex graph and the total output length.
// Outputs are labeled [outv] and, with audio, [outa].
func buildProjectGraph(opts ProjectRenderOptions) (string, time.Duration) {
	n := len(opts.Segments)
	var (
		stmts  []string
		concat strings.Builder
		total  time.Duration
	)

	stmts = append(stmts, "[0:v]"+split("split", "sv", n))
	if opts.HasAudio {
		stmts = append(stmts, "[0:a]"+split("asplit", "sa", n))
	}

	for i, seg := range opts.Segments {
		start, end := seg.Start.Seconds(), seg.End.Seconds()
		total += seg.End - seg.Start

		v := NewFilterBuilder().Trim(start, end)
		if seg.Letterbox {
			v.Fit(opts.Width, opts.Height).Pad(opts.Width, opts.Height)
		} else {
			v.Crop(seg.Width, seg.Height, seg.X, seg.Y).Scale(opts.Width, opts.Height)
		}
		v.SAR()
		stmts = append(stmts, v.Labeled(fmt.Sprintf("sv%d", i), fmt.Sprintf("v%d", i)))
		fmt.Fprintf(&concat, "[v%d]", i)

		if opts.HasAudio {
			a := NewFilterBuilder().ATrim(start, end)
			stmts = append(stmts, a.Labeled(fmt.Sprintf("sa%d", i), fmt.Sprintf("a%d", i)))
			fmt.Fprintf(&concat, "[a%d]", i)
		}
	}

	audio := 0
	out := "[outv]"
	if opts.HasAudio {
		audio = 1
		out = "[outv][outa]"
	}
	fmt.Fprintf(&concat, "concat=n=%d:v=1:a=%d%s", n, audio, out)
	stmts = append(stmts, concat.String())

	return strings.Join(stmts, ";"), total
}

func split(filter, prefix string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%d", filter, n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%s%d]", prefix, i)
	}
	return b.String()
}

func validateProjectOptions(opts ProjectRenderOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("output size must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.Width%2 != 0 || opts.Height%2 != 0 {
		return fmt.Errorf("output size must be even for yuv420p, got %dx%d", opts.Width, opts.Height)
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if len(opts.Segments) == 0 {
		return fmt.Errorf("nothing to render")
	}
	for i, seg := range opts.Segments {
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d: end %v not after start %v", i, seg.End, seg.Start)
		}
		if !seg.Letterbox && (seg.Width <= 0 || seg.Height <= 0) {
			return fmt.Errorf("segment %d: empty crop window", i)
		}
	}
	return nil
}
