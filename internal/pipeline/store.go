package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const lockRetry = 50 * time.Millisecond

// SaveProject writes project to path as JSON, or YAML for .yaml/.yml paths.
// The file is replaced atomically while holding an exclusive lock on
// path+".lock", so concurrent writers never interleave.
func SaveProject(ctx context.Context, path string, project *EditProject) error {
	if project == nil {
		return fmt.Errorf("project cannot be nil")
	}

	data, err := encodeProject(path, project)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("project %s is locked", path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write project: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace project: %w", err)
	}
	return nil
}

// LoadProject reads a project saved by SaveProject under a shared lock.
func LoadProject(ctx context.Context, path string) (*EditProject, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("project %s is locked", path)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}

	var project EditProject
	if isYAML(path) {
		err = yaml.Unmarshal(data, &project)
	} else {
		err = json.Unmarshal(data, &project)
	}
	if err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	if project.Version > ProjectVersion {
		return nil, fmt.Errorf("project %s has version %d, newer than supported %d", path, project.Version, ProjectVersion)
	}
	return &project, nil
}

func encodeProject(path string, project *EditProject) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(project)
	}
	return json.MarshalIndent(project, "", "  ")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
