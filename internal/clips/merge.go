package clips

// DefaultMergeThreshold is the crop distance, in source pixels, under which
// adjacent clips are merged.
const DefaultMergeThreshold = 50.0

// Merge coalesces adjacent clips whose crop positions are closer than
// threshold. It is a single greedy pass: each clip is compared only with the
// last retained clip, whose end is extended when they merge. Clips in
// different modes (crop vs. full frame) are never merged.
func Merge(list []VideoClip, threshold float64) []VideoClip {
	out := make([]VideoClip, 0, len(list))
	for _, c := range list {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.UseFullFrame == c.UseFullFrame &&
				(c.UseFullFrame || last.CropPosition.Distance(c.CropPosition) < threshold) {
				if c.End > last.End {
					last.End = c.End
				}
				continue
			}
		}
		out = append(out, c.clone())
	}
	return out
}
