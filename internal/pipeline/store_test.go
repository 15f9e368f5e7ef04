package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keagan/autoreframe/internal/clips"
	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/keagan/autoreframe/internal/safearea"
)

func sampleProject() *EditProject {
	center := geometry.Point{X: 960, Y: 540}
	return &EditProject{
		Version:           ProjectVersion,
		Name:              "talk",
		Source:            SourceInfo{Path: "talk.mp4", Width: 1920, Height: 1080, Duration: 8, HasAudio: true},
		TargetAspectRatio: "9:16",
		CropSize:          geometry.Size{Width: 608, Height: 1080},
		BlackBars:         safearea.FullFrame(1920, 1080),
		Clips: []clips.VideoClip{
			{ID: "a", Start: 0, End: 3 * time.Second, CropPosition: geometry.Point{X: 656}, SpeakerCenter: &center},
			{ID: "b", Start: 3 * time.Second, End: 8 * time.Second, UseFullFrame: true},
		},
		Trajectory: []TrajectoryPoint{{Time: 0.5, Strategy: "speaker", Faces: 1, Speaking: true}},
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProjectRoundTrip(t *testing.T) {
	for _, name := range []string{"talk.reframe.json", "talk.reframe.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			ctx := context.Background()

			if err := SaveProject(ctx, path, sampleProject()); err != nil {
				t.Fatal(err)
			}
			got, err := LoadProject(ctx, path)
			if err != nil {
				t.Fatal(err)
			}

			if len(got.Clips) != 2 || got.Clips[1].Start != 3*time.Second || !got.Clips[1].UseFullFrame {
				t.Errorf("clips = %+v", got.Clips)
			}
			if got.Clips[0].SpeakerCenter == nil || got.Clips[0].SpeakerCenter.X != 960 {
				t.Errorf("speaker center = %v", got.Clips[0].SpeakerCenter)
			}
			if got.Source.Length() != 8*time.Second || !got.CreatedAt.Equal(sampleProject().CreatedAt) {
				t.Errorf("source = %+v created = %v", got.Source, got.CreatedAt)
			}
			if err := clips.Validate(got.Clips, got.Source.Length()); err != nil {
				t.Errorf("loaded clips invalid: %v", err)
			}
		})
	}
}

func TestProjectJSONFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	if err := SaveProject(context.Background(), path, sampleProject()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"startTime"`, `"endTime"`, `"cropPosition"`, `"useFullFrame"`, `"blackBars"`, `"targetAspectRatio"`, `"trajectory"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("saved project missing %s", key)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadProjectNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "clips": []}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(context.Background(), path); err == nil {
		t.Error("expected version error")
	}
}

func TestLoadProjectMissing(t *testing.T) {
	if _, err := LoadProject(context.Background(), filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing project")
	}
}
