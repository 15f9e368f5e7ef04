package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/pipeline"
	"github.com/keagan/autoreframe/pkg/util"
)

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// applyEdits runs ops against the project's clips through an edit log, so
// undo and redo refer to earlier ops in the same invocation.
func applyEdits(project *pipeline.EditProject, ops []string) error {
	log := clips.NewEditLog(project.Clips, project.Source.Length())
	for _, op := range ops {
		if err := applyOp(log, op); err != nil {
			return fmt.Errorf("%q: %w", op, err)
		}
	}
	project.Clips = log.Clips()
	project.UpdatedAt = time.Now().UTC()
	return nil
}

func applyOp(log *clips.EditLog, op string) error {
	f := strings.Fields(op)
	if len(f) == 0 {
		return fmt.Errorf("empty op")
	}

	want := map[string]int{
		"resize": 4, "move": 3, "create": 5, "reframe": 4, "zoom": 3,
		"letterbox": 2, "delete": 2, "undo": 1, "redo": 1,
	}
	n, ok := want[f[0]]
	if !ok {
		return fmt.Errorf("unknown op %s", f[0])
	}
	if len(f) != n {
		return fmt.Errorf("%s takes %d arguments", f[0], n-1)
	}

	switch f[0] {
	case "undo":
		if !log.Undo() {
			return fmt.Errorf("nothing to undo")
		}
		return nil
	case "redo":
		if !log.Redo() {
			return fmt.Errorf("nothing to redo")
		}
		return nil
	case "create":
		start, end, err := parseRange(f[1], f[2])
		if err != nil {
			return err
		}
		pos, err := parsePoint(f[3], f[4])
		if err != nil {
			return err
		}
		_, err = log.Create(clips.VideoClip{Start: start, End: end, CropPosition: pos})
		return err
	}

	id, err := resolveID(log.Clips(), f[1])
	if err != nil {
		return err
	}

	switch f[0] {
	case "resize":
		start, end, err := parseRange(f[2], f[3])
		if err != nil {
			return err
		}
		return log.Resize(id, start, end)
	case "move":
		start, err := util.ParseTimestamp(f[2])
		if err != nil {
			return err
		}
		return log.Move(id, start)
	case "reframe":
		pos, err := parsePoint(f[2], f[3])
		if err != nil {
			return err
		}
		return log.Reframe(id, pos, false)
	case "zoom":
		scale, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return fmt.Errorf("invalid scale %q", f[2])
		}
		return log.Zoom(id, scale)
	case "letterbox":
		c := log.Clips()[clips.Find(log.Clips(), id)]
		return log.Reframe(id, c.CropPosition, true)
	default:
		return log.Delete(id)
	}
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(list []clips.VideoClip, prefix string) (string, error) {
	match := ""
	for _, c := range list {
		if c.ID == prefix {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("clip id %s is ambiguous", prefix)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", clips.ErrClipNotFound, prefix)
	}
	return match, nil
}

func parseRange(a, b string) (time.Duration, time.Duration, error) {
	start, err := util.ParseTimestamp(a)
	if err != nil {
		return 0, 0, err
	}
	end, err := util.ParseTimestamp(b)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parsePoint(x, y string) (geometry.Point, error) {
	px, err := strconv.ParseFloat(x, 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid x %q", x)
	}
	py, err := strconv.ParseFloat(y, 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid y %q", y)
	}
	return geometry.Point{X: px, Y: py}, nil
}
