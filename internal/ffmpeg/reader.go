package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/keagan/autoreframe/pkg/util"
)

// ErrReaderClosed is returned by a FrameReader after Close.
var ErrReaderClosed = errors.New("frame reader closed")

// FrameReader decodes single RGBA frames on demand. Each capture is one
// input-seeking ffmpeg invocation, so seeks are cheap and nothing is kept
// open between calls.
type FrameReader struct {
	exec  *Executor
	input string
	info  VideoInfo

	mu     sync.Mutex
	at     time.Duration
	seeked bool
	closed bool
}

// NewFrameReader opens input for frame capture using already probed info.
func (e *Executor) NewFrameReader(input string, info *VideoInfo) (*FrameReader, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if info == nil || info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("frame reader needs a probed video size")
	}
	return &FrameReader{exec: e, input: input, info: *info}, nil
}

// SeekTo sets the timestamp of the next capture.
func (r *FrameReader) SeekTo(ctx context.Context, t time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReaderClosed
	}
	if t < 0 {
		t = 0
	}
	r.at = t
	r.seeked = true
	return nil
}

// Capture decodes the frame at the last seek position.
func (r *FrameReader) Capture(ctx context.Context) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrReaderClosed
	}
	if !r.seeked {
		return nil, fmt.Errorf("capture before seek")
	}

	data, err := r.exec.Output(ctx, r.captureArgs()...)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %v: %w", r.at, err)
	}
	return rgbaFrame(data, r.info.Width, r.info.Height)
}

func (r *FrameReader) captureArgs() []string {
	return []string{
		"-ss", util.FormatDuration(r.at),
		"-i", r.input,
		"-frames:v", "1",
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}
}

func (r *FrameReader) Width() int              { return r.info.Width }
func (r *FrameReader) Height() int             { return r.info.Height }
func (r *FrameReader) Duration() time.Duration { return r.info.Duration }

// Close releases the reader. Further calls fail with ErrReaderClosed.
func (r *FrameReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func rgbaFrame(data []byte, width, height int) (*image.RGBA, error) {
	want := width * height * 4
	if len(data) < want {
		return nil, fmt.Errorf("short frame: got %d bytes, want %d", len(data), want)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data[:want])
	return img, nil
}
