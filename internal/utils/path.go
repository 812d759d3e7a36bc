package utils

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path cannot be empty")
	}

	// Expand `~` to the user's home directory
	if strings.HasPrefix(p, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		p = strings.Replace(p, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

func EnsureParent(p string) error {
	return EnsureDir(filepath.Dir(p))
}

func EnsureDir(p string) error {
	if _, err := os.Stat(p); err == nil {
		return nil
	}

	return os.MkdirAll(p, 0o755)
}

func DirExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// NormPath converts an OS specific relative path into the forward-slash form
// used for device paths.
func NormPath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// RelDevicePath returns the device-relative (forward-slash) path of target
// inside root, or false if target is outside root.
func RelDevicePath(root, target string) (string, bool) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return NormPath(rel), true
}

// JoinDevicePath joins a device path with a device-relative path. Absolute or
// parent-escaping components of rel are discarded.
func JoinDevicePath(base, rel string) string {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	return path.Join(base, clean)
}

// SafeFileName replaces everything but letters, digits, dot, dash and
// underscore so s can be used as a single file name.
func SafeFileName(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
