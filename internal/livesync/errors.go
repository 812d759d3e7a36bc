package livesync

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedPlatform = errors.New("livesync: unsupported platform")
	ErrMissingDependency   = errors.New("livesync: missing dependency")
)

// TransportError wraps any failure reported by the Transport
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransferError is a failed push of a single file to the device
type TransferError struct {
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
