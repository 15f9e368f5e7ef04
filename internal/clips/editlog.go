package clips

import (
	"errors"
	"fmt"
	"time"

	"github.com/keagan/autoreframe/internal/geometry"
)

// ErrClipNotFound is returned when an edit names an unknown clip.
var ErrClipNotFound = errors.New("clip not found")

// OpKind names an atomic clip mutation.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpResize  OpKind = "resize"
	OpMove    OpKind = "move"
	OpDelete  OpKind = "delete"
	OpReframe OpKind = "reframe"
	OpZoom    OpKind = "zoom"
)

// Op is one committed mutation. Before is the clip prior to the change and
// After the clip following it; create has no Before and delete no After.
type Op struct {
	Kind   OpKind
	Before *VideoClip
	After  *VideoClip
}

// EditLog is an append-only log of clip mutations with an undo pointer.
// Every commit is checked for overlap before it is recorded.
type EditLog struct {
	duration time.Duration
	base     []VideoClip
	ops      []Op
	cursor   int
}

// NewEditLog starts a log from an initial clip list.
func NewEditLog(initial []VideoClip, duration time.Duration) *EditLog {
	base := make([]VideoClip, len(initial))
	for i, c := range initial {
		base[i] = c.clone()
	}
	Sort(base)
	return &EditLog{duration: duration, base: base}
}

// Clips replays the log up to the cursor and returns a fresh list.
func (l *EditLog) Clips() []VideoClip {
	list := make([]VideoClip, len(l.base))
	for i, c := range l.base {
		list[i] = c.clone()
	}
	for _, op := range l.ops[:l.cursor] {
		list = apply(list, op)
	}
	return list
}

// Len is the number of ops that are currently applied.
func (l *EditLog) Len() int { return l.cursor }

// CanUndo reports whether there is an applied op.
func (l *EditLog) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether an undone op can be reapplied.
func (l *EditLog) CanRedo() bool { return l.cursor < len(l.ops) }

// Undo steps the cursor back one op.
func (l *EditLog) Undo() bool {
	if !l.CanUndo() {
		return false
	}
	l.cursor--
	return true
}

// Redo steps the cursor forward one op.
func (l *EditLog) Redo() bool {
	if !l.CanRedo() {
		return false
	}
	l.cursor++
	return true
}

// Create adds a new clip. An empty ID is filled in.
func (l *EditLog) Create(c VideoClip) (VideoClip, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if Find(l.Clips(), c.ID) >= 0 {
		return VideoClip{}, fmt.Errorf("clip %s already exists", c.ID)
	}
	after := c.clone()
	return c, l.commit(Op{Kind: OpCreate, After: &after})
}

// Resize changes a clip's time range.
func (l *EditLog) Resize(id string, start, end time.Duration) error {
	return l.update(OpResize, id, func(c *VideoClip) {
		c.Start, c.End = start, end
	})
}

// Move shifts a clip in time, keeping its length.
func (l *EditLog) Move(id string, start time.Duration) error {
	return l.update(OpMove, id, func(c *VideoClip) {
		length := c.Duration()
		c.Start, c.End = start, start+length
	})
}

// Reframe changes a clip's crop position.
func (l *EditLog) Reframe(id string, pos geometry.Point, fullFrame bool) error {
	return l.update(OpReframe, id, func(c *VideoClip) {
		c.CropPosition = pos
		c.UseFullFrame = fullFrame
	})
}

// Zoom sets a clip's crop scale. 1 removes the zoom.
func (l *EditLog) Zoom(id string, scale float64) error {
	return l.update(OpZoom, id, func(c *VideoClip) {
		c.CropScale = scale
	})
}

// Delete removes a clip.
func (l *EditLog) Delete(id string) error {
	list := l.Clips()
	i := Find(list, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	before := list[i]
	return l.commit(Op{Kind: OpDelete, Before: &before})
}

func (l *EditLog) update(kind OpKind, id string, mutate func(*VideoClip)) error {
	list := l.Clips()
	i := Find(list, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	before := list[i]
	after := before.clone()
	mutate(&after)
	return l.commit(Op{Kind: kind, Before: &before, After: &after})
}

// commit validates the op against the current state, drops any redo tail and
// appends it.
func (l *EditLog) commit(op Op) error {
	next := apply(l.Clips(), op)
	if err := Validate(next, 0); err != nil {
		return fmt.Errorf("%s rejected: %w", op.Kind, err)
	}
	if l.duration > 0 && len(next) > 0 && next[len(next)-1].End > l.duration {
		return fmt.Errorf("%s rejected: clip ends after video end %v", op.Kind, l.duration)
	}
	l.ops = append(l.ops[:l.cursor], op)
	l.cursor++
	return nil
}

func apply(list []VideoClip, op Op) []VideoClip {
	switch op.Kind {
	case OpCreate:
		list = append(list, op.After.clone())
	case OpDelete:
		if i := Find(list, op.Before.ID); i >= 0 {
			list = append(list[:i], list[i+1:]...)
		}
	default:
		if i := Find(list, op.After.ID); i >= 0 {
			list[i] = op.After.clone()
		}
	}
	Sort(list)
	return list
}
