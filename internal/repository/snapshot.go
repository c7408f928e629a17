package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ErrSnapshotNotFound means nothing has been persisted yet under the snapshot name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshotter persists one JSON document per name, replacing it wholesale on every save.
type Snapshotter interface {
	Backend() string
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, document []byte) error
}

type fileSnapshotter struct {
	path string
	log  *logrus.Logger
}

func NewFileSnapshotter(path string, logger *logrus.Logger) Snapshotter {
	return &fileSnapshotter{path: path, log: logger}
}

func (s *fileSnapshotter) Backend() string { return "file:" + s.path }

func (s *fileSnapshotter) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("could not read %s: %w", s.path, err)
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it over the target.
func (s *fileSnapshotter) Save(_ context.Context, document []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not replace %s: %w", s.path, err)
	}
	s.log.Debugf("Snapshot: wrote %d bytes to %s", len(document), s.path)
	return nil
}
