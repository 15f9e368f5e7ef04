package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/config"
	"github.com/keagan/autoreframe/internal/detector"
	"github.com/keagan/autoreframe/internal/frames/framestest"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/strategy"
	"github.com/rs/zerolog"
)

type fakeDetector struct {
	faces  []detector.Face
	err    error
	calls  int
	closed bool
}

func (f *fakeDetector) Detect(ctx context.Context, _ *image.RGBA) ([]detector.Face, error) {
	f.calls++
	return f.faces, f.err
}

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

func centeredFace() []detector.Face {
	return []detector.Face{{
		Box:        geometry.Rect{X: 860, Y: 440, Width: 200, Height: 200},
		Confidence: 0.95,
	}}
}

func testPipeline() *Pipeline {
	return newPipeline(zerolog.Nop(), config.Default(), nil, nil)
}

func TestAnalyzeSourceLetterboxed(t *testing.T) {
	src := framestest.NewStatic(framestest.Letterbox(1920, 1080, 140, 140, 0, 0), 10*time.Second)
	det := &fakeDetector{faces: centeredFace()}

	var stages []Stage
	project, err := testPipeline().AnalyzeSource(context.Background(), src, det,
		SourceInfo{Path: "/videos/talk.mp4", Width: 1920, Height: 1080, Duration: 10},
		AnalyzeOptions{Progress: func(s Stage, f float64) {
			if f == 1 {
				stages = append(stages, s)
			}
		}})
	if err != nil {
		t.Fatal(err)
	}

	if !project.BlackBars.HasBlackBars || project.BlackBars.Top != 145 || project.BlackBars.Bottom != 145 {
		t.Errorf("bars = %+v", project.BlackBars)
	}
	if project.CropSize != (geometry.Size{Width: 444, Height: 790}) {
		t.Errorf("crop size = %+v", project.CropSize)
	}
	if len(project.Clips) != 1 {
		t.Fatalf("got %d clips, want 1", len(project.Clips))
	}
	c := project.Clips[0]
	if c.Start != 0 || c.End != 10*time.Second {
		t.Errorf("clip = [%v, %v)", c.Start, c.End)
	}
	if c.CropPosition != (geometry.Point{X: 738, Y: 145}) {
		t.Errorf("crop position = %+v", c.CropPosition)
	}
	if len(project.Trajectory) != 20 || project.Trajectory[0].Strategy != strategy.SingleFace {
		t.Errorf("trajectory = %d points", len(project.Trajectory))
	}
	if project.Name != "talk" || project.TargetAspectRatio != "9:16" || project.Version != ProjectVersion {
		t.Errorf("metadata = %q %q %d", project.Name, project.TargetAspectRatio, project.Version)
	}
	if !det.closed {
		t.Error("detector not closed")
	}
	if len(stages) != 3 || stages[2] != StageClips {
		t.Errorf("completed stages = %v", stages)
	}
}

func TestAnalyzeSourceAllSamplesFail(t *testing.T) {
	src := &framestest.Source{W: 1920, H: 1080, Length: 6 * time.Second}
	det := &fakeDetector{err: errors.New("model crashed")}

	project, err := testPipeline().AnalyzeSource(context.Background(), src, det,
		SourceInfo{Width: 1920, Height: 1080, Duration: 6}, AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if det.calls == 0 {
		t.Fatal("detector never called")
	}
	if len(project.Clips) != 1 {
		t.Fatalf("got %d clips, want 1", len(project.Clips))
	}
	c := project.Clips[0]
	if c.End != 6*time.Second || c.CropPosition.X != (1920-608)/2 {
		t.Errorf("fallback clip = %+v", c)
	}
	if len(project.Trajectory) != 0 {
		t.Errorf("failed samples should not appear in trajectory")
	}
}

func TestAnalyzeSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := framestest.NewStatic(framestest.Letterbox(1920, 1080, 0, 0, 0, 0), 10*time.Second)
	det := &fakeDetector{faces: centeredFace()}

	project, err := testPipeline().AnalyzeSource(ctx, src, det,
		SourceInfo{Width: 1920, Height: 1080, Duration: 10}, AnalyzeOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if project != nil {
		t.Error("cancelled analysis returned a project")
	}
	if !det.closed {
		t.Error("detector not released")
	}
}

func TestAnalyzeSourceBadAspect(t *testing.T) {
	src := framestest.NewStatic(framestest.Letterbox(320, 240, 0, 0, 0, 0), time.Second)
	_, err := testPipeline().AnalyzeSource(context.Background(), src, &fakeDetector{},
		SourceInfo{Width: 320, Height: 240, Duration: 1}, AnalyzeOptions{AspectRatio: "tall"})
	if err == nil {
		t.Error("expected aspect ratio error")
	}
}

func TestAnalyzeSourceBadStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy.MultiFaceFallback = "loudest"
	det := &fakeDetector{}
	src := framestest.NewStatic(framestest.Letterbox(320, 240, 0, 0, 0, 0), time.Second)

	_, err := newPipeline(zerolog.Nop(), cfg, nil, nil).AnalyzeSource(context.Background(), src, det,
		SourceInfo{Width: 320, Height: 240, Duration: 1}, AnalyzeOptions{})
	if err == nil || !strings.Contains(err.Error(), "loudest") {
		t.Errorf("err = %v", err)
	}
	if !det.closed {
		t.Error("detector not released")
	}
}

func TestSegments(t *testing.T) {
	project := &EditProject{
		Source:   SourceInfo{Width: 1920, Height: 1080},
		CropSize: geometry.Size{Width: 444.375, Height: 790},
		Clips: []clips.VideoClip{
			{ID: "a", Start: 0, End: 3 * time.Second, CropPosition: geometry.Point{X: 1700.6, Y: 145}},
			{ID: "b", Start: 3 * time.Second, End: 5 * time.Second, UseFullFrame: true},
			{ID: "c", Start: 5 * time.Second, End: 9 * time.Second, CropPosition: geometry.Point{X: -3}},
		},
	}

	segs, err := Segments(project, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments", len(segs))
	}
	if segs[0].Width != 444 || segs[0].Height != 790 || segs[0].X != 1920-444 || segs[0].Y != 145 {
		t.Errorf("first segment = %+v", segs[0])
	}
	if !segs[1].Letterbox || segs[1].Width != 0 {
		t.Errorf("letterbox segment = %+v", segs[1])
	}
	if segs[2].X != 0 {
		t.Errorf("negative crop not clamped: %+v", segs[2])
	}

	zoomed := *project
	zoomed.Clips = []clips.VideoClip{{ID: "z", End: time.Second, CropPosition: geometry.Point{X: 100, Y: 145}, CropScale: 2}}
	zsegs, err := Segments(&zoomed, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 444x790 halves to 222x394 (even), centered on the unzoomed window
	if z := zsegs[0]; z.Width != 222 || z.Height != 394 || z.X != 211 || z.Y != 343 {
		t.Errorf("zoomed segment = %+v", z)
	}

	picked, err := Segments(project, []string{"c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 2 || picked[0].Start != 0 || picked[1].Start != 5*time.Second {
		t.Errorf("picked = %+v", picked)
	}

	if _, err := Segments(project, []string{"zzz"}); !errors.Is(err, clips.ErrClipNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
}

func TestSettings(t *testing.T) {
	cfg := config.Default()
	cfg.SafeArea.Preset = "conservative"
	cfg.SafeArea.MarginPx = 8

	sa, err := safeAreaConfig(cfg.SafeArea)
	if err != nil {
		t.Fatal(err)
	}
	if sa.BrightnessThreshold != 40 || sa.MarginPx != 8 || sa.MarginRatio != 0.01 {
		t.Errorf("safe area config = %+v", sa)
	}

	sc := samplerConfig(cfg)
	if sc.Speaker.MaxAge != 3*time.Second || sc.Strategy.MultiFaceFallback != strategy.FallbackSpeakingScore {
		t.Errorf("sampler config = %+v", sc)
	}

	if got := samplingInterval(0, config.SamplingConfig{}, 10*time.Minute); got != 2*time.Second {
		t.Errorf("adaptive interval = %v", got)
	}
	if got := samplingInterval(0, config.SamplingConfig{Interval: 0.25}, time.Hour); got != 250*time.Millisecond {
		t.Errorf("configured interval = %v", got)
	}
	if got := samplingInterval(time.Second, config.SamplingConfig{Interval: 0.25}, time.Hour); got != time.Second {
		t.Errorf("option interval = %v", got)
	}
}
