// Package store persists validated role documents and downloaded
// targets for one repository.
package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FileStore keeps one file per role plus a targets/ subdirectory under
// a directory owned exclusively by its verifier. Every write is an
// atomic replace: a partially written document or target is never
// observable under its final name.
type FileStore struct {
	dir string
}

// New creates the store directory (and its targets/ subdirectory) if
// needed.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "targets"), 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load returns the stored document for role. Absence surfaces as
// fs.ErrNotExist.
func (s *FileStore) Load(role string) ([]byte, error) {
	return os.ReadFile(s.rolePath(role))
}

// Save atomically replaces the stored document for role.
func (s *FileStore) Save(role string, data []byte) error {
	return atomicWrite(s.rolePath(role), data)
}

// SaveTarget atomically writes a downloaded target payload.
func (s *FileStore) SaveTarget(name string, data []byte) error {
	return atomicWrite(s.TargetPath(name), data)
}

// TargetPath returns the file a target payload is stored at. Target
// names are URL-escaped so repository paths map onto a flat directory.
func (s *FileStore) TargetPath(name string) string {
	return filepath.Join(s.dir, "targets", url.QueryEscape(name))
}

func (s *FileStore) rolePath(role string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", url.QueryEscape(role)))
}

// atomicWrite writes data to a temporary file in the destination
// directory and renames it into place. The temporary file lives on
// the same filesystem, so the rename is atomic.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	log.Debugf("wrote %s (%d bytes)", path, len(data))
	return nil
}
