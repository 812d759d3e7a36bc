package device

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrFileNotFound matches fs.ErrNotExist
	ErrFileNotFound = fmt.Errorf("device: file not found: %w", fs.ErrNotExist)
	ErrNoDevice     = errors.New("device: no device attached")
	ErrCommand      = errors.New("device: command failed")
)
