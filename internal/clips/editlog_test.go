package clips

import (
	"errors"
	"testing"
	"time"

	"github.com/keagan/autoreframe/internal/geometry"
)

func seedLog() *EditLog {
	return NewEditLog([]VideoClip{
		{ID: "b", Start: 4 * time.Second, End: 8 * time.Second, CropPosition: geometry.Point{X: 300}},
		{ID: "a", Start: 0, End: 4 * time.Second, CropPosition: geometry.Point{X: 100}},
	}, 10*time.Second)
}

func TestEditLogUndoRedo(t *testing.T) {
	log := seedLog()

	if err := log.Resize("b", 4*time.Second, 6*time.Second); err != nil {
		t.Fatal(err)
	}
	created, err := log.Create(VideoClip{Start: 7 * time.Second, End: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("create should assign an id")
	}
	if got := log.Clips(); len(got) != 3 || got[2].ID != created.ID {
		t.Fatalf("clips after create = %+v", got)
	}

	if !log.Undo() || !log.Undo() {
		t.Fatal("undo failed")
	}
	got := log.Clips()
	if len(got) != 2 || got[1].End != 8*time.Second {
		t.Errorf("after undo = %+v", got)
	}
	if log.Undo() {
		t.Error("undo past the start should fail")
	}

	if !log.Redo() {
		t.Fatal("redo failed")
	}
	if got := log.Clips(); got[1].End != 6*time.Second {
		t.Errorf("after redo end = %v", got[1].End)
	}
	if !log.CanRedo() {
		t.Error("create should still be redoable")
	}
}

func TestEditLogCommitDropsRedoTail(t *testing.T) {
	log := seedLog()
	if err := log.Delete("b"); err != nil {
		t.Fatal(err)
	}
	log.Undo()

	if err := log.Reframe("a", geometry.Point{X: 50}, false); err != nil {
		t.Fatal(err)
	}
	if log.CanRedo() {
		t.Error("new edit should discard undone ops")
	}
	if got := log.Clips(); len(got) != 2 || got[0].CropPosition.X != 50 {
		t.Errorf("clips = %+v", got)
	}
}

func TestEditLogRejectsOverlap(t *testing.T) {
	log := seedLog()

	if err := log.Move("a", 2*time.Second); err == nil {
		t.Error("move into neighbour should fail")
	}
	if err := log.Resize("b", 4*time.Second, 11*time.Second); err == nil {
		t.Error("resize past video end should fail")
	}
	if _, err := log.Create(VideoClip{ID: "a", Start: 9 * time.Second, End: 10 * time.Second}); err == nil {
		t.Error("duplicate id should fail")
	}
	if log.Len() != 0 {
		t.Errorf("rejected ops were recorded: %d", log.Len())
	}

	if err := log.Move("b", 6*time.Second); err != nil {
		t.Errorf("valid move failed: %v", err)
	}
	if got := log.Clips(); got[1].Start != 6*time.Second || got[1].End != 10*time.Second {
		t.Errorf("moved clip = %+v", got[1])
	}
}

func TestEditLogUnknownClip(t *testing.T) {
	log := seedLog()
	if err := log.Delete("zzz"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestEditLogZoom(t *testing.T) {
	log := seedLog()

	if err := log.Zoom("a", 2); err != nil {
		t.Fatal(err)
	}
	if got := log.Clips(); got[0].CropScale != 2 {
		t.Errorf("zoomed clip = %+v", got[0])
	}
	if err := log.Zoom("a", 0.5); err == nil {
		t.Error("zoom below 1 should be rejected")
	}

	log.Undo()
	if got := log.Clips(); got[0].CropScale != 0 {
		t.Errorf("undo left scale %v", got[0].CropScale)
	}
}
