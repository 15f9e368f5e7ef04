// Package speaker tracks faces across samples and decides who is talking from
// the recent history of each face's mouth openness.
package speaker

import (
	"sort"
	"time"

	"github.com/keagan/autoreframe/internal/detector"
	"github.com/keagan/autoreframe/internal/geometry"
)

// Score weights.
const (
	varianceWeight  = 2.0
	amplitudeWeight = 3.0
	meanWeight      = 0.5
)

// Config tunes speaking detection.
type Config struct {
	HistorySize          int
	MaxAge               time.Duration
	SpeakingThreshold    float64
	RawOpennessThreshold float64
	// MatchIoU is the minimum overlap to keep a face's identity between samples.
	MatchIoU float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HistorySize:          10,
		MaxAge:               3 * time.Second,
		SpeakingThreshold:    0.05,
		RawOpennessThreshold: 0.03,
		MatchIoU:             0.3,
	}
}

// State is the speaking judgement for one face in one sample.
type State struct {
	TrackID    int
	IsSpeaking bool
	Score      float64
}

type sample struct {
	at       time.Duration
	openness float64
}

type track struct {
	id       int
	box      geometry.Rect
	lastSeen time.Duration
	history  []sample
}

// Tracker owns per-face history for one analysis session.
type Tracker struct {
	config Config
	tracks []*track
	nextID int
}

// NewTracker creates an empty tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{config: cfg, nextID: 1}
}

// Observe records the faces seen at time at and returns one State per face,
// in the same order. Calls must be made in increasing time order.
func (t *Tracker) Observe(at time.Duration, faces []detector.Face) []State {
	t.evict(at)

	assigned := t.match(faces)
	states := make([]State, len(faces))

	for i, f := range faces {
		tr := assigned[i]
		if tr == nil {
			tr = &track{id: t.nextID}
			t.nextID++
			t.tracks = append(t.tracks, tr)
		}
		tr.box = f.Box
		tr.lastSeen = at
		tr.history = append(tr.history, sample{at: at, openness: f.MouthOpenness})
		if n := len(tr.history) - t.config.HistorySize; t.config.HistorySize > 0 && n > 0 {
			tr.history = append([]sample(nil), tr.history[n:]...)
		}

		if f.IsSpeaking || f.SpeakingScore > 0 {
			states[i] = State{TrackID: tr.id, IsSpeaking: f.IsSpeaking, Score: f.SpeakingScore}
			continue
		}

		values := make([]float64, len(tr.history))
		for j, s := range tr.history {
			values[j] = s.openness
		}
		score := Score(values)
		states[i] = State{
			TrackID:    tr.id,
			Score:      score,
			IsSpeaking: t.speaking(values, score),
		}
	}

	return states
}

// Reset forgets all tracks.
func (t *Tracker) Reset() {
	t.tracks = nil
	t.nextID = 1
}

func (t *Tracker) speaking(values []float64, score float64) bool {
	if len(values) < 2 {
		return len(values) == 1 && values[0] > t.config.RawOpennessThreshold
	}
	return score > t.config.SpeakingThreshold
}

// evict drops stale history and tracks not seen within MaxAge.
func (t *Tracker) evict(now time.Duration) {
	if t.config.MaxAge <= 0 {
		return
	}
	cutoff := now - t.config.MaxAge

	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.lastSeen < cutoff {
			continue
		}
		fresh := tr.history[:0]
		for _, s := range tr.history {
			if s.at >= cutoff {
				fresh = append(fresh, s)
			}
		}
		tr.history = fresh
		kept = append(kept, tr)
	}
	t.tracks = kept
}

// match pairs faces with existing tracks greedily by descending IoU.
func (t *Tracker) match(faces []detector.Face) []*track {
	type pair struct {
		face, track int
		iou         float64
	}

	var pairs []pair
	for i, f := range faces {
		for j, tr := range t.tracks {
			if iou := f.Box.IoU(tr.box); iou >= t.config.MatchIoU && iou > 0 {
				pairs = append(pairs, pair{face: i, track: j, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].iou > pairs[b].iou })

	out := make([]*track, len(faces))
	used := make(map[int]bool, len(t.tracks))
	for _, p := range pairs {
		if out[p.face] != nil || used[p.track] {
			continue
		}
		out[p.face] = t.tracks[p.track]
		used[p.track] = true
	}
	return out
}

// Score combines variance, amplitude and mean of the openness history.
func Score(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return variance*varianceWeight + (hi-lo)*amplitudeWeight + mean*meanWeight
}

// Select picks the active speaker. Among speaking faces the highest score
// wins and the result is confident; otherwise the highest score overall is
// returned as a non-confident fallback. Ties go to the lowest index. An empty
// input returns -1.
func Select(states []State) (index int, confident bool) {
	best, bestSpeaking := -1, -1
	for i, s := range states {
		if best < 0 || s.Score > states[best].Score {
			best = i
		}
		if s.IsSpeaking && (bestSpeaking < 0 || s.Score > states[bestSpeaking].Score) {
			bestSpeaking = i
		}
	}
	if bestSpeaking >= 0 {
		return bestSpeaking, true
	}
	return best, false
}
