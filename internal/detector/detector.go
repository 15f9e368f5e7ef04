// Package detector defines the face/speaking detector used by the sampler and
// an ONNX runtime implementation of it.
package detector

import (
	"context"
	"image"
	"sort"

	"github.com/keagan/autoreframe/internal/geometry"
)

// Face is one detected face in absolute frame pixels.
type Face struct {
	Box        geometry.Rect
	Confidence float64
	// MouthOpenness is inner-lip distance over face height, 0 when unknown.
	MouthOpenness float64
	// IsSpeaking and SpeakingScore are filled by detectors that judge speech
	// themselves; otherwise the speaker tracker computes them.
	IsSpeaking    bool
	SpeakingScore float64
}

// FaceSpeakingDetector finds faces in a decoded frame. Model loading and
// retries stay behind this interface.
type FaceSpeakingDetector interface {
	Detect(ctx context.Context, frame *image.RGBA) ([]Face, error)
	Close() error
}

// Func adapts a function to FaceSpeakingDetector.
type Func func(ctx context.Context, frame *image.RGBA) ([]Face, error)

func (f Func) Detect(ctx context.Context, frame *image.RGBA) ([]Face, error) {
	return f(ctx, frame)
}

func (f Func) Close() error { return nil }

// suppress runs greedy non-max suppression, keeping the most confident box
// of every overlapping group. The result is ordered by confidence.
func suppress(faces []Face, iouThreshold float64) []Face {
	sorted := make([]Face, len(faces))
	copy(sorted, faces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Face, 0, len(sorted))
	for _, f := range sorted {
		overlaps := false
		for _, k := range kept {
			if f.Box.IoU(k.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, f)
		}
	}
	return kept
}
