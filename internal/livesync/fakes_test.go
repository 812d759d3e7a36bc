package livesync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFS struct {
	mu        sync.Mutex
	files     map[string]bool
	putErr    error
	deleteErr error
	deletes   int
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]bool)}
}

func (f *fakeFS) PutFile(_ context.Context, localPath, remotePath, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.files[remotePath] = true
	return nil
}

func (f *fakeFS) DeleteFile(ctx context.Context, remotePath, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.files[remotePath] {
		return fmt.Errorf("delete %s: %w", remotePath, fs.ErrNotExist)
	}
	delete(f.files, remotePath)
	return nil
}

func (f *fakeFS) has(remotePath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[remotePath]
}

type fakeApps struct {
	mu        sync.Mutex
	started   []AppIdentifier
	restarted []AppIdentifier
	startErr  error
}

func (a *fakeApps) StartApplication(_ context.Context, app AppIdentifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, app)
	return a.startErr
}

func (a *fakeApps) RestartApplication(_ context.Context, app AppIdentifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restarted = append(a.restarted, app)
	return nil
}

type fakeDevice struct {
	fs   *fakeFS
	apps *fakeApps
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{fs: newFakeFS(), apps: &fakeApps{}}
}

func (d *fakeDevice) Info() DeviceInfo {
	return DeviceInfo{Identifier: "emulator-5554", Platform: PlatformAndroid}
}
func (d *fakeDevice) FileSystem() DeviceFileSystem { return d.fs }
func (d *fakeDevice) ApplicationManager() ApplicationManager { return d.apps }

type fakeTransport struct {
	mu sync.Mutex

	connectErr  error
	connected   *ConnectOptions
	ended       int
	dirs        []string
	sentFiles   [][]string
	removed     [][]string
	sendErr     error
	doSyncCalls int
	fastSync    []bool

	// onConnect and onSend run before the call returns, e.g. to cancel the cycle
	onConnect func()
	onSend    func()

	// doSync replaces the default immediate success when set
	doSync     func(ctx context.Context, fastSync bool) (*OperationResult, error)
	inProgress bool
}

func (t *fakeTransport) Connect(ctx context.Context, opts ConnectOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onConnect != nil {
		t.onConnect()
		return ctx.Err()
	}
	if t.connectErr != nil {
		return t.connectErr
	}
	t.connected = &opts
	return nil
}

func (t *fakeTransport) GenerateOperationID() string { return "op-1" }

func (t *fakeTransport) SendDoSyncOperation(ctx context.Context, fastSync bool, _ *DoSyncOptions, operationID string) (*OperationResult, error) {
	t.mu.Lock()
	t.doSyncCalls++
	t.fastSync = append(t.fastSync, fastSync)
	t.inProgress = true
	fn := t.doSync
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inProgress = false
		t.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, fastSync)
	}
	return &OperationResult{OperationID: operationID, DidRefresh: fastSync}, nil
}

func (t *fakeTransport) IsOperationInProgress(string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgress
}

func (t *fakeTransport) SendDirectory(_ context.Context, dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirs = append(t.dirs, dir)
	return t.sendErr
}

func (t *fakeTransport) SendFiles(ctx context.Context, paths []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sentFiles = append(t.sentFiles, paths)
	if t.onSend != nil {
		t.onSend()
		return ctx.Err()
	}
	return t.sendErr
}

func (t *fakeTransport) RemoveFiles(_ context.Context, paths []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removed = append(t.removed, paths)
	return nil
}

func (t *fakeTransport) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended++
}

// fakeHashes serves a fixed device ledger and fixed local hashes
type fakeHashes struct {
	mu      sync.Mutex
	device  HashSnapshot
	local   HashSnapshot
	updates [][]LocalFile
}

func (h *fakeHashes) GetShasumsFromDevice(context.Context) (HashSnapshot, error) {
	return h.device, nil
}

func (h *fakeHashes) GenerateHashesFromLocalToDevicePaths(_ context.Context, files []LocalFile) (HashSnapshot, error) {
	out := make(HashSnapshot, len(files))
	for _, f := range files {
		out[f.RemotePath] = h.local[f.RemotePath]
	}
	return out, nil
}

func (h *fakeHashes) GetChangedShasums(oldHashes, newHashes HashSnapshot) HashSnapshot {
	out := HashSnapshot{}
	for p, sum := range newHashes {
		if oldHashes[p] != sum {
			out[p] = sum
		}
	}
	return out
}

func (h *fakeHashes) GetMissingShasums(oldHashes, newHashes HashSnapshot) HashSnapshot {
	out := HashSnapshot{}
	for p, sum := range oldHashes {
		if _, ok := newHashes[p]; !ok {
			out[p] = sum
		}
	}
	return out
}

func (h *fakeHashes) UpdateHashes(_ context.Context, files []LocalFile, _ bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, files)
	return nil
}

type fakeProjectFiles struct {
	unresolvable map[string]bool
}

func (p fakeProjectFiles) ResolveLocalToDevicePath(root, remotePath string) (LocalFile, error) {
	if p.unresolvable[remotePath] {
		return LocalFile{}, fmt.Errorf("cannot resolve %s", remotePath)
	}
	return LocalFile{LocalPath: root + "/" + remotePath, RemotePath: remotePath}, nil
}

// fakeProcess lets a test fire the exit actions on demand
type fakeProcess struct {
	mu      sync.Mutex
	actions map[int]func()
	next    int
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{actions: make(map[int]func())}
}

func (p *fakeProcess) AttachToProcessExitSignals(action func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.actions[id] = action
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.actions, id)
	}
}

func (p *fakeProcess) fire() {
	p.mu.Lock()
	actions := make([]func(), 0, len(p.actions))
	for _, a := range p.actions {
		actions = append(actions, a)
	}
	p.mu.Unlock()
	for _, a := range actions {
		a()
	}
}

func (p *fakeProcess) attached() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions)
}

func jsOnly(_ Platform, f LocalFile) bool {
	return len(f.RemotePath) > 3 && f.RemotePath[len(f.RemotePath)-3:] == ".js"
}

type testEnv struct {
	device    *fakeDevice
	transport *fakeTransport
	hashes    *fakeHashes
	process   *fakeProcess
	svc       *SocketSyncService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		device:    newFakeDevice(),
		transport: &fakeTransport{},
		hashes:    &fakeHashes{},
		process:   newFakeProcess(),
	}
	profile, err := ProfileFor(PlatformAndroid)
	require.NoError(t, err)
	svc, err := NewSocketSyncService(profile, Dependencies{
		Device:       env.device,
		Transport:    env.transport,
		Hashes:       func(string) HashStore { return env.hashes },
		ProjectFiles: fakeProjectFiles{},
		FastSync:     jsOnly,
		Process:      env.process,
	}, opts...)
	require.NoError(t, err)
	env.svc = svc
	return env
}
