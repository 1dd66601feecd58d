package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists artifacts on the local filesystem.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes the artifact atomically: a temp file in the target directory is
// renamed over the previous artifact.
func (s *FileStore) Save(a *Artifact) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeArtifact(tmp, a); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Load() (*Artifact, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return DecodeArtifact(f)
}

// ModifiedAt returns the artifact file's modification time.
func (s *FileStore) ModifiedAt() (time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *FileStore) Location() string { return s.Path }
