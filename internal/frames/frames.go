// Package frames defines the decoded-frame source consumed by the analysis stages.
package frames

import (
	"context"
	"image"
	"time"
)

// Source gives sequential, non-reentrant access to decoded video frames.
// SeekTo must complete before Capture is called; callers never overlap calls.
type Source interface {
	SeekTo(ctx context.Context, t time.Duration) error
	Capture(ctx context.Context) (*image.RGBA, error)
	Width() int
	Height() int
	Duration() time.Duration
	Close() error
}

// Bounds returns the full-frame rectangle of src.
func Bounds(src Source) image.Rectangle {
	return image.Rect(0, 0, src.Width(), src.Height())
}
