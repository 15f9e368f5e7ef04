package safearea

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/keagan/autoreframe/internal/frames/framestest"
	"github.com/rs/zerolog"
)

func TestMeasureBarsTopBar(t *testing.T) {
	img := framestest.Letterbox(1920, 1080, 50, 0, 0, 0)
	cfg := DefaultConfig()

	bars := MeasureBars(img, img.Bounds(), cfg)

	if bars.Top < 50 {
		t.Errorf("expected top >= 50, got %d", bars.Top)
	}
	if bars.Top != 50+cfg.MarginPx {
		t.Errorf("expected margin-inclusive top %d, got %d", 50+cfg.MarginPx, bars.Top)
	}
	if bars.Bottom != 0 || bars.Left != 0 || bars.Right != 0 {
		t.Errorf("unexpected bars: %+v", bars)
	}
}

func TestMeasureBarsDiscardsNoise(t *testing.T) {
	img := framestest.Letterbox(640, 360, 2, 0, 0, 0)
	bars := MeasureBars(img, img.Bounds(), DefaultConfig())
	if bars.Any() {
		t.Errorf("2px bar should be discarded, got %+v", bars)
	}
}

func TestMeasureBarsConservativeMargin(t *testing.T) {
	cfg, err := PresetConfig(PresetConservative)
	if err != nil {
		t.Fatal(err)
	}
	img := framestest.Letterbox(1920, 1080, 0, 0, 240, 240)
	bars := MeasureBars(img, img.Bounds(), cfg)

	// 1% of 1920 is larger than the 5px floor.
	if bars.Left != 240+20 || bars.Right != 240+20 {
		t.Errorf("expected 260px pillarbox bars, got %+v", bars)
	}
}

func TestDetectLetterbox(t *testing.T) {
	src := framestest.NewStatic(framestest.Letterbox(1920, 1080, 50, 0, 0, 0), 10*time.Second)
	d := NewDetector(zerolog.Nop(), DefaultConfig())

	det, err := d.Detect(context.Background(), src, 10*time.Second)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !det.HasBlackBars {
		t.Fatal("expected black bars")
	}
	if det.Top < 50 {
		t.Errorf("expected top >= 50, got %d", det.Top)
	}
	if det.SafeArea.Y != float64(det.Top) || det.SafeArea.Height != float64(1080-det.Top) {
		t.Errorf("safe area does not exclude bar: %+v", det.SafeArea)
	}
	if len(src.Seeks) != len(sampleFractions) {
		t.Errorf("expected %d seeks, got %d", len(sampleFractions), len(src.Seeks))
	}
	for i := 1; i < len(src.Seeks); i++ {
		if src.Seeks[i] < src.Seeks[i-1] {
			t.Fatalf("seeks out of order: %v", src.Seeks)
		}
	}
}

func TestDetectNoBars(t *testing.T) {
	src := framestest.NewStatic(framestest.Solid(1280, 720, color.RGBA{200, 200, 200, 255}), 5*time.Second)
	d := NewDetector(zerolog.Nop(), DefaultConfig())

	det, err := d.Detect(context.Background(), src, 5*time.Second)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.HasBlackBars || det.Top != 0 || det.Bottom != 0 || det.Left != 0 || det.Right != 0 {
		t.Errorf("expected no bars, got %+v", det)
	}
	if det.SafeArea.Width != 1280 || det.SafeArea.Height != 720 {
		t.Errorf("expected full frame safe area, got %+v", det.SafeArea)
	}
}

func TestDetectUnionAcrossSamples(t *testing.T) {
	plain := framestest.Letterbox(1280, 720, 0, 0, 0, 0)
	barred := framestest.Letterbox(1280, 720, 40, 40, 0, 0)
	src := &framestest.Source{
		W: 1280, H: 720, Length: 8 * time.Second,
		Render: func(at time.Duration) (*image.RGBA, error) {
			if at >= 4*time.Second && at < 5*time.Second {
				return barred, nil
			}
			return plain, nil
		},
	}
	d := NewDetector(zerolog.Nop(), DefaultConfig())

	det, err := d.Detect(context.Background(), src, 8*time.Second)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Top != 45 || det.Bottom != 45 {
		t.Errorf("expected bars from the middle sample, got %+v", det)
	}
}

func TestDetectIgnoresBlackFrames(t *testing.T) {
	dark := framestest.Solid(1280, 720, color.RGBA{0, 0, 0, 255})
	plain := framestest.Letterbox(1280, 720, 0, 0, 0, 0)
	src := &framestest.Source{
		W: 1280, H: 720, Length: 8 * time.Second,
		Render: func(at time.Duration) (*image.RGBA, error) {
			if at == 0 {
				return dark, nil
			}
			return plain, nil
		},
	}

	det, err := NewDetector(zerolog.Nop(), DefaultConfig()).Detect(context.Background(), src, 8*time.Second)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.HasBlackBars {
		t.Errorf("fade-in frame should not produce bars: %+v", det)
	}
}

func TestDetectFallsBackOnFailure(t *testing.T) {
	src := &framestest.Source{
		W: 1920, H: 1080, Length: 4 * time.Second,
		Render: func(time.Duration) (*image.RGBA, error) {
			return nil, errors.New("decoder exploded")
		},
	}

	det, err := NewDetector(zerolog.Nop(), DefaultConfig()).Detect(context.Background(), src, 4*time.Second)
	if err != nil {
		t.Fatalf("Detect should not fail: %v", err)
	}
	if det != FullFrame(1920, 1080) {
		t.Errorf("expected full frame fallback, got %+v", det)
	}
}

func TestDetectDeterministic(t *testing.T) {
	img := framestest.Letterbox(1280, 720, 30, 30, 12, 12)
	d := NewDetector(zerolog.Nop(), DefaultConfig())

	first, err := d.Detect(context.Background(), framestest.NewStatic(img, 6*time.Second), 6*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := d.Detect(context.Background(), framestest.NewStatic(img, 6*time.Second), 6*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestDetectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := framestest.NewStatic(framestest.Letterbox(640, 360, 0, 0, 0, 0), time.Second)
	_, err := NewDetector(zerolog.Nop(), DefaultConfig()).Detect(ctx, src, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPresetConfigUnknown(t *testing.T) {
	if _, err := PresetConfig("neon"); err == nil {
		t.Error("expected error for unknown preset")
	}
}
