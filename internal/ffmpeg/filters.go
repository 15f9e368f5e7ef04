package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Trim keeps [start, end) seconds of the video stream and resets timestamps.
func (fb *FilterBuilder) Trim(start, end float64) *FilterBuilder {
	if end <= start {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("trim=start=%.3f:end=%.3f", start, end),
		"setpts=PTS-STARTPTS")
	return fb
}

// ATrim is Trim for an audio stream.
func (fb *FilterBuilder) ATrim(start, end float64) *FilterBuilder {
	if end <= start {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("atrim=start=%.3f:end=%.3f", start, end),
		"asetpts=PTS-STARTPTS")
	return fb
}

// Crop adds a crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// Fit scales the picture to fit inside width x height keeping its aspect.
func (fb *FilterBuilder) Fit(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height))
	return fb
}

// Pad centers the picture on a black width x height canvas.
func (fb *FilterBuilder) Pad(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", width, height))
	return fb
}

// SAR resets the sample aspect ratio so concat sees identical streams.
func (fb *FilterBuilder) SAR() *FilterBuilder {
	fb.filters = append(fb.filters, "setsar=1")
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// Labeled wraps the chain as one filtergraph statement: "[in]chain[out]".
func (fb *FilterBuilder) Labeled(in, out string) string {
	chain := fb.Build()
	if chain == "" {
		chain = "null"
	}
	return fmt.Sprintf("[%s]%s[%s]", in, chain, out)
}
