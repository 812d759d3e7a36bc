package hashstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedgerFS struct {
	mu    sync.Mutex
	files map[string][]byte
	puts  int
}

func newMemLedgerFS() *memLedgerFS {
	return &memLedgerFS{files: make(map[string][]byte)}
}

func (m *memLedgerFS) GetFile(_ context.Context, remotePath, _ string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[remotePath]
	if !ok {
		return nil, fmt.Errorf("pull %s: %w", remotePath, fs.ErrNotExist)
	}
	return data, nil
}

func (m *memLedgerFS) PutFile(_ context.Context, localPath, remotePath, _ string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[remotePath] = data
	m.puts++
	return nil
}

func (m *memLedgerFS) ledger(t *testing.T, remotePath string) livesync.HashSnapshot {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var snap livesync.HashSnapshot
	require.NoError(t, json.Unmarshal(m.files[remotePath], &snap))
	return snap
}

func writeFile(t *testing.T, root, rel, content string) livesync.LocalFile {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, utils.EnsureParent(p))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return livesync.LocalFile{LocalPath: p, RemotePath: rel}
}

func TestLedgerPath(t *testing.T) {
	store := New("com.app.x", newMemLedgerFS())
	assert.Equal(t, "/data/local/tmp/com.app.x/sync/livesync-hashes.json", store.LedgerPath())

	store = New("com.app.x", newMemLedgerFS(), WithDeviceTmpDir("/tmp/device"))
	assert.Equal(t, "/tmp/device/com.app.x/sync/livesync-hashes.json", store.LedgerPath())
}

func TestGetShasumsFromDevice_Absent(t *testing.T) {
	store := New("com.app.x", newMemLedgerFS())

	shasums, err := store.GetShasumsFromDevice(context.Background())
	require.NoError(t, err)
	assert.Nil(t, shasums)
}

func TestGetShasumsFromDevice_Corrupt(t *testing.T) {
	ledgerFS := newMemLedgerFS()
	store := New("com.app.x", ledgerFS)
	ledgerFS.files[store.LedgerPath()] = []byte("{not json")

	shasums, err := store.GetShasumsFromDevice(context.Background())
	require.NoError(t, err)
	assert.Nil(t, shasums)
}

func TestGenerateHashes(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.js", "console.log(1)")
	b := writeFile(t, root, "views/b.xml", "<Page/>")
	store := New("com.app.x", newMemLedgerFS(), WithConcurrency(1))

	shasums, err := store.GenerateHashesFromLocalToDevicePaths(context.Background(), []livesync.LocalFile{a, b})
	require.NoError(t, err)

	require.Len(t, shasums, 2)
	wantA, err := utils.FileHash(a.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, wantA, shasums["a.js"])
	assert.Len(t, shasums["views/b.xml"], 40)

	_, err = store.GenerateHashesFromLocalToDevicePaths(context.Background(), []livesync.LocalFile{
		{LocalPath: filepath.Join(root, "missing.js"), RemotePath: "missing.js"},
	})
	assert.Error(t, err)
}

func TestUpdateHashes_Merge(t *testing.T) {
	root := t.TempDir()
	ledgerFS := newMemLedgerFS()
	store := New("com.app.x", ledgerFS)
	ctx := context.Background()

	a := writeFile(t, root, "a.js", "1")
	b := writeFile(t, root, "b.js", "2")
	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a, b}, false))
	first := ledgerFS.ledger(t, store.LedgerPath())
	assert.Len(t, first, 2)

	a = writeFile(t, root, "a.js", "changed")
	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a}, false))
	second := ledgerFS.ledger(t, store.LedgerPath())
	assert.Len(t, second, 2)
	assert.NotEqual(t, first["a.js"], second["a.js"])
	assert.Equal(t, first["b.js"], second["b.js"])
}

func TestUpdateHashes_FullRewriteDropsMissing(t *testing.T) {
	root := t.TempDir()
	ledgerFS := newMemLedgerFS()
	store := New("com.app.x", ledgerFS)
	ctx := context.Background()

	a := writeFile(t, root, "a.js", "1")
	b := writeFile(t, root, "b.js", "2")
	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a, b}, true))
	require.NoError(t, os.Remove(b.LocalPath))

	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a, b}, false))
	assert.Contains(t, ledgerFS.ledger(t, store.LedgerPath()), "b.js")

	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a, b}, true))
	ledger := ledgerFS.ledger(t, store.LedgerPath())
	assert.NotContains(t, ledger, "b.js")
	assert.Contains(t, ledger, "a.js")
}

func TestUpdateHashes_RoundTripDiff(t *testing.T) {
	root := t.TempDir()
	ledgerFS := newMemLedgerFS()
	store := Factory(ledgerFS)("com.app.x")
	ctx := context.Background()

	a := writeFile(t, root, "a.js", "1")
	b := writeFile(t, root, "b.js", "2")
	require.NoError(t, store.UpdateHashes(ctx, []livesync.LocalFile{a, b}, true))

	b = writeFile(t, root, "b.js", "22")
	c := writeFile(t, root, "c.js", "3")

	old, err := store.GetShasumsFromDevice(ctx)
	require.NoError(t, err)
	current, err := store.GenerateHashesFromLocalToDevicePaths(ctx, []livesync.LocalFile{b, c})
	require.NoError(t, err)

	changed := store.GetChangedShasums(old, current)
	missing := store.GetMissingShasums(old, current)
	assert.ElementsMatch(t, []string{"b.js", "c.js"}, keys(changed))
	assert.Equal(t, []string{"a.js"}, keys(missing))
}

func keys(s livesync.HashSnapshot) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
