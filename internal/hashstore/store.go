package hashstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sync"

	"github.com/goccy/go-json"
	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDeviceTmpDir = "/data/local/tmp"
	ledgerFileName      = "livesync-hashes.json"
)

// LedgerFS reads and writes single files on the device
type LedgerFS interface {
	// GetFile returns an error matching fs.ErrNotExist when the file is missing
	GetFile(ctx context.Context, remotePath, appID string) ([]byte, error)
	PutFile(ctx context.Context, localPath, remotePath, appID string) error
}

type Option func(*DeviceHashStore)

// WithDeviceTmpDir sets the device directory that holds per-app ledgers
func WithDeviceTmpDir(dir string) Option {
	return func(s *DeviceHashStore) {
		if dir != "" {
			s.tmpDir = dir
		}
	}
}

// WithHasher replaces plain file hashing, typically with a HashCache
func WithHasher(h Hasher) Option {
	return func(s *DeviceHashStore) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithConcurrency bounds the number of files hashed at once
func WithConcurrency(n int) Option {
	return func(s *DeviceHashStore) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// DeviceHashStore keeps the hash ledger of one application as a JSON file on
// the device, mapping device-relative paths to content hashes.
type DeviceHashStore struct {
	appID       string
	fs          LedgerFS
	tmpDir      string
	hasher      Hasher
	concurrency int
}

var _ livesync.HashStore = (*DeviceHashStore)(nil)

func New(appID string, ledgerFS LedgerFS, opts ...Option) *DeviceHashStore {
	s := &DeviceHashStore{
		appID:       appID,
		fs:          ledgerFS,
		tmpDir:      DefaultDeviceTmpDir,
		hasher:      fileHasher{},
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory returns a HashStoreFactory that shares ledgerFS and opts between apps
func Factory(ledgerFS LedgerFS, opts ...Option) livesync.HashStoreFactory {
	return func(appID string) livesync.HashStore {
		return New(appID, ledgerFS, opts...)
	}
}

// LedgerPath is the device path of the ledger
func (s *DeviceHashStore) LedgerPath() string {
	return path.Join(s.tmpDir, s.appID, "sync", ledgerFileName)
}

func (s *DeviceHashStore) GetShasumsFromDevice(ctx context.Context) (livesync.HashSnapshot, error) {
	data, err := s.fs.GetFile(ctx, s.LedgerPath(), s.appID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read hash ledger: %w", err)
	}

	var shasums livesync.HashSnapshot
	if err := json.Unmarshal(data, &shasums); err != nil {
		// a corrupt ledger reads as absent
		slog.Warn("ignoring unreadable hash ledger", "appId", s.appID, "error", err)
		return nil, nil
	}
	if shasums == nil {
		shasums = livesync.HashSnapshot{}
	}
	return shasums, nil
}

func (s *DeviceHashStore) GenerateHashesFromLocalToDevicePaths(ctx context.Context, files []livesync.LocalFile) (livesync.HashSnapshot, error) {
	var mu sync.Mutex
	shasums := make(livesync.HashSnapshot, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, file := range files {
		g.Go(func() error {
			hash, err := s.hasher.Hash(gctx, file.LocalPath)
			if err != nil {
				return fmt.Errorf("hash %s: %w", file.LocalPath, err)
			}
			mu.Lock()
			shasums[file.RemotePath] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shasums, nil
}

func (s *DeviceHashStore) GetChangedShasums(oldHashes, newHashes livesync.HashSnapshot) livesync.HashSnapshot {
	return ChangedShasums(oldHashes, newHashes)
}

func (s *DeviceHashStore) GetMissingShasums(oldHashes, newHashes livesync.HashSnapshot) livesync.HashSnapshot {
	return MissingShasums(oldHashes, newHashes)
}

// UpdateHashes merges the hashes of files into the device ledger. Files whose
// local copy no longer exists are skipped, or with fullRewrite dropped from
// the ledger.
func (s *DeviceHashStore) UpdateHashes(ctx context.Context, files []livesync.LocalFile, fullRewrite bool) error {
	shasums, err := s.GetShasumsFromDevice(ctx)
	if err != nil {
		return err
	}
	if shasums == nil {
		shasums = livesync.HashSnapshot{}
	}

	var present []livesync.LocalFile
	for _, file := range files {
		if utils.FileExists(file.LocalPath) {
			present = append(present, file)
		} else if fullRewrite {
			delete(shasums, file.RemotePath)
		}
	}

	fresh, err := s.GenerateHashesFromLocalToDevicePaths(ctx, present)
	if err != nil {
		return err
	}
	for remotePath, hash := range fresh {
		shasums[remotePath] = hash
	}

	return s.upload(ctx, shasums)
}

func (s *DeviceHashStore) upload(ctx context.Context, shasums livesync.HashSnapshot) error {
	data, err := json.Marshal(shasums)
	if err != nil {
		return fmt.Errorf("encode hash ledger: %w", err)
	}

	tmp, err := utils.WriteTempFile("livesync-hashes", data)
	if err != nil {
		return fmt.Errorf("write hash ledger: %w", err)
	}
	defer os.Remove(tmp)

	if err := s.fs.PutFile(ctx, tmp, s.LedgerPath(), s.appID); err != nil {
		return fmt.Errorf("upload hash ledger: %w", err)
	}
	slog.Debug("hash ledger updated", "appId", s.appID, "entries", len(shasums))
	return nil
}
