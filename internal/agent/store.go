package agent

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/openmined/livesync/internal/utils"
)

// Store maps absolute device paths onto a local root directory
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("create root %s: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

// AppFilesPath is the device directory livesync mirrors a project into
func AppFilesPath(appID string) string {
	return path.Join("/data/data", appID, "files", "app")
}

// LocalPath returns where devicePath lives on the local disk
func (s *Store) LocalPath(devicePath string) string {
	return filepath.FromSlash(utils.JoinDevicePath(filepath.ToSlash(s.root), devicePath))
}

func (s *Store) Read(devicePath string) ([]byte, error) {
	data, err := os.ReadFile(s.LocalPath(devicePath))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write replaces the file at devicePath with the content of r
func (s *Store) Write(devicePath string, r io.Reader) (int64, error) {
	target := s.LocalPath(devicePath)
	if err := utils.EnsureParent(target); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".livesync-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", devicePath, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("write %s: %w", devicePath, err)
	}
	return n, nil
}

// Delete removes the file at devicePath. A missing file matches fs.ErrNotExist.
func (s *Store) Delete(devicePath string) error {
	target := s.LocalPath(devicePath)
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", devicePath)
	}
	return os.Remove(target)
}

// Exists reports whether a file is present at devicePath
func (s *Store) Exists(devicePath string) bool {
	_, err := os.Stat(s.LocalPath(devicePath))
	return !errors.Is(err, fs.ErrNotExist)
}
