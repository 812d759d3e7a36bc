package livesync

import (
	"fmt"
	"strings"
)

// Platform identifies the device family a sync targets
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformAndroid, PlatformIOS:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
	}
}

// LocalFile maps a file in the local project to its path on the device.
// RemotePath is relative to the application's files directory and always uses forward slashes.
type LocalFile struct {
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
}

// LocalPaths returns the LocalPath of every file, preserving order
func LocalPaths(files []LocalFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.LocalPath
	}
	return paths
}

// SyncRequest is one batch of changes to push to a device
type SyncRequest struct {
	AppID            string
	ProjectName      string
	ProjectFilesPath string // local directory mirrored to the device
	ModifiedFiles    []LocalFile
	IsFullSync       bool
	Force            bool // push the whole directory even when the device has hashes
	Platform         Platform
}

// FileAction tells whether a file was pushed to or removed from the device
type FileAction string

const (
	ActionTransferred FileAction = "transferred"
	ActionRemoved     FileAction = "removed"
)

type TransferredFile struct {
	LocalFile
	Action FileAction `json:"action"`
}

func tagFiles(files []LocalFile, action FileAction) []TransferredFile {
	tagged := make([]TransferredFile, len(files))
	for i, f := range files {
		tagged[i] = TransferredFile{LocalFile: f, Action: action}
	}
	return tagged
}

// FilesOf strips the action tags, keeping order
func FilesOf(files []TransferredFile) []LocalFile {
	out := make([]LocalFile, len(files))
	for i, f := range files {
		out[i] = f.LocalFile
	}
	return out
}

// SyncResult is the outcome of one sync cycle.
// TransferredFiles lists pushed files first, then removed files.
type SyncResult struct {
	OperationID      string
	DidRefresh       bool
	TransferredFiles []TransferredFile
}

// Removed returns the files deleted from the device during the cycle
func (r *SyncResult) Removed() []LocalFile {
	var removed []LocalFile
	for _, f := range r.TransferredFiles {
		if f.Action == ActionRemoved {
			removed = append(removed, f.LocalFile)
		}
	}
	return removed
}

// HashSnapshot maps a device-relative path to the hash of its content
type HashSnapshot map[string]string

// AppIdentifier names the application to start or restart
type AppIdentifier struct {
	AppID       string
	ProjectName string
}
