// Package analysis holds the per-frame results passed from the sampler to
// clip segmentation.
package analysis

import (
	"time"

	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/strategy"
)

// FaceObservation is a face in safe-area-relative coordinates.
type FaceObservation struct {
	TrackID       int           `json:"trackId"`
	BoundingBox   geometry.Rect `json:"boundingBox"`
	Confidence    float64       `json:"confidence"`
	MouthOpenness float64       `json:"mouthOpenness"`
	IsSpeaking    bool          `json:"isSpeaking"`
	SpeakingScore float64       `json:"speakingScore"`
}

// Frame is the outcome of analyzing one sample point. CropPosition and
// SpeakerCenter are in source pixels; Faces stay safe-area relative.
type Frame struct {
	Timestamp         time.Duration
	Faces             []FaceObservation
	SpeakingFaceIndex *int
	Strategy          strategy.Strategy
	CropPosition      geometry.Point
	SpeakerCenter     *geometry.Point
}

// Speaker returns the selected face, if any.
func (f Frame) Speaker() (FaceObservation, bool) {
	if f.SpeakingFaceIndex == nil {
		return FaceObservation{}, false
	}
	i := *f.SpeakingFaceIndex
	if i < 0 || i >= len(f.Faces) {
		return FaceObservation{}, false
	}
	return f.Faces[i], true
}
