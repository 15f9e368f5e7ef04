package clips

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/autoreframe/internal/geometry"
	"gopkg.in/yaml.v3"
)

// EndTolerance is the slack allowed when checking that clips reach the end of the video.
const EndTolerance = 50 * time.Millisecond

// MaxCropScale bounds the per-clip zoom.
const MaxCropScale = 4.0

// VideoClip is one time range rendered with a single crop window.
type VideoClip struct {
	ID            string
	Start         time.Duration
	End           time.Duration
	CropPosition  geometry.Point
	SpeakerCenter *geometry.Point
	UseFullFrame  bool
	// CropScale zooms into the crop window around its center. 0 and 1 mean no zoom.
	CropScale float64
}

// Duration returns End-Start.
func (c VideoClip) Duration() time.Duration {
	return c.End - c.Start
}

// clone returns a copy that shares no pointers with c.
func (c VideoClip) clone() VideoClip {
	if c.SpeakerCenter != nil {
		center := *c.SpeakerCenter
		c.SpeakerCenter = &center
	}
	return c
}

func newID() string {
	return uuid.NewString()
}

// wireClip is the persisted form. Times are seconds, as the export service expects.
type wireClip struct {
	ID            string          `json:"id" yaml:"id"`
	StartTime     float64         `json:"startTime" yaml:"start_time"`
	EndTime       float64         `json:"endTime" yaml:"end_time"`
	CropPosition  geometry.Point  `json:"cropPosition" yaml:"crop_position"`
	SpeakerCenter *geometry.Point `json:"speakerCenter,omitempty" yaml:"speaker_center,omitempty"`
	UseFullFrame  bool            `json:"useFullFrame" yaml:"use_full_frame"`
	CropScale     float64         `json:"cropScale,omitempty" yaml:"crop_scale,omitempty"`
}

func (c VideoClip) wire() wireClip {
	return wireClip{
		ID:            c.ID,
		StartTime:     c.Start.Seconds(),
		EndTime:       c.End.Seconds(),
		CropPosition:  c.CropPosition,
		SpeakerCenter: c.SpeakerCenter,
		UseFullFrame:  c.UseFullFrame,
		CropScale:     c.CropScale,
	}
}

func (w wireClip) clip() VideoClip {
	return VideoClip{
		ID:            w.ID,
		Start:         seconds(w.StartTime),
		End:           seconds(w.EndTime),
		CropPosition:  w.CropPosition,
		SpeakerCenter: w.SpeakerCenter,
		UseFullFrame:  w.UseFullFrame,
		CropScale:     w.CropScale,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (c VideoClip) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.wire())
}

func (c *VideoClip) UnmarshalJSON(data []byte) error {
	var w wireClip
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = w.clip()
	return nil
}

func (c VideoClip) MarshalYAML() (interface{}, error) {
	return c.wire(), nil
}

func (c *VideoClip) UnmarshalYAML(node *yaml.Node) error {
	var w wireClip
	if err := node.Decode(&w); err != nil {
		return err
	}
	*c = w.clip()
	return nil
}

// Validate checks that clips are well formed, sorted and non-overlapping.
// When duration > 0 it also checks that they cover [0, duration].
func Validate(list []VideoClip, duration time.Duration) error {
	for i, c := range list {
		if c.Start >= c.End {
			return fmt.Errorf("clip %d (%s): start %v not before end %v", i, c.ID, c.Start, c.End)
		}
		if c.Start < 0 {
			return fmt.Errorf("clip %d (%s): negative start %v", i, c.ID, c.Start)
		}
		if c.CropScale != 0 && (c.CropScale < 1 || c.CropScale > MaxCropScale) {
			return fmt.Errorf("clip %d (%s): crop scale %v outside [1, %v]", i, c.ID, c.CropScale, MaxCropScale)
		}
		if i > 0 && list[i-1].End > c.Start {
			return fmt.Errorf("clip %d (%s) overlaps previous clip", i, c.ID)
		}
	}

	if duration <= 0 || len(list) == 0 {
		return nil
	}
	if list[0].Start != 0 {
		return fmt.Errorf("first clip starts at %v, not 0", list[0].Start)
	}
	for i := 1; i < len(list); i++ {
		if gap := list[i].Start - list[i-1].End; gap > EndTolerance {
			return fmt.Errorf("gap of %v before clip %d", gap, i)
		}
	}
	if last := list[len(list)-1].End; absDuration(last-duration) > EndTolerance {
		return fmt.Errorf("last clip ends at %v, video ends at %v", last, duration)
	}
	return nil
}

// Sort orders clips by start time.
func Sort(list []VideoClip) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
}

// Find returns the index of the clip with id, or -1.
func Find(list []VideoClip, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// At returns the clip covering t, if any.
func At(list []VideoClip, t time.Duration) (VideoClip, bool) {
	i := sort.Search(len(list), func(i int) bool { return list[i].End > t })
	if i < len(list) && list[i].Start <= t {
		return list[i], true
	}
	return VideoClip{}, false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
