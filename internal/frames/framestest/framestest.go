// Package framestest provides in-memory frame sources for tests.
package framestest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"time"
)

// ErrNotSeeked is returned by Capture before any SeekTo.
var ErrNotSeeked = errors.New("framestest: capture before seek")

// Source renders frames with a callback. Seeks and captures are recorded.
type Source struct {
	W, H   int
	Length time.Duration
	Render func(t time.Duration) (*image.RGBA, error)
	// OnSeek runs before each seek completes; tests use it to cancel mid-run.
	OnSeek func(t time.Duration)

	Seeks  []time.Duration
	Closed bool

	current time.Duration
	seeked  bool
}

// NewStatic returns a source that always yields img.
func NewStatic(img *image.RGBA, length time.Duration) *Source {
	b := img.Bounds()
	return &Source{
		W:      b.Dx(),
		H:      b.Dy(),
		Length: length,
		Render: func(time.Duration) (*image.RGBA, error) { return img, nil },
	}
}

func (s *Source) SeekTo(ctx context.Context, t time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.OnSeek != nil {
		s.OnSeek(t)
	}
	s.Seeks = append(s.Seeks, t)
	s.current = t
	s.seeked = true
	return nil
}

func (s *Source) Capture(ctx context.Context) (*image.RGBA, error) {
	if !s.seeked {
		return nil, ErrNotSeeked
	}
	if s.Render == nil {
		return Solid(s.W, s.H, color.RGBA{128, 128, 128, 255}), nil
	}
	return s.Render(s.current)
}

func (s *Source) Width() int              { return s.W }
func (s *Source) Height() int             { return s.H }
func (s *Source) Duration() time.Duration { return s.Length }

func (s *Source) Close() error {
	s.Closed = true
	return nil
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// Letterbox returns a bright frame with black bars of the given widths.
func Letterbox(w, h, top, bottom, left, right int) *image.RGBA {
	img := Solid(w, h, color.RGBA{180, 170, 160, 255})
	black := &image.Uniform{C: color.RGBA{0, 0, 0, 255}}
	draw.Draw(img, image.Rect(0, 0, w, top), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, h-bottom, w, h), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, left, h), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w-right, 0, w, h), black, image.Point{}, draw.Src)
	return img
}
