package livesync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fileA = LocalFile{LocalPath: "/p/a.js", RemotePath: "a.js"}
	fileB = LocalFile{LocalPath: "/p/b.js", RemotePath: "b.js"}
	fileC = LocalFile{LocalPath: "/p/views/c.xml", RemotePath: "views/c.xml"}
)

func fullRequest(files ...LocalFile) *SyncRequest {
	req := testRequest(files...)
	req.IsFullSync = true
	return req
}

func TestTransferFiles_Incremental(t *testing.T) {
	env := newTestEnv(t)

	transferred, err := env.svc.TransferFiles(context.Background(), testRequest(fileA))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"/p/a.js"}}, env.transport.sentFiles)
	assert.Empty(t, env.transport.dirs)
	assert.Equal(t, []TransferredFile{{LocalFile: fileA, Action: ActionTransferred}}, transferred)
}

func TestTransferFiles_FullWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)

	transferred, err := env.svc.TransferFiles(context.Background(), fullRequest(fileA, fileB, fileC))
	require.NoError(t, err)

	assert.Equal(t, []string{"/p"}, env.transport.dirs)
	assert.Empty(t, env.transport.sentFiles)
	assert.Empty(t, env.transport.removed)
	assert.Equal(t, []LocalFile{fileA, fileB, fileC}, FilesOf(transferred))
	for _, f := range transferred {
		assert.Equal(t, ActionTransferred, f.Action)
	}
}

func TestTransferFiles_FullForced(t *testing.T) {
	env := newTestEnv(t)
	env.hashes.device = HashSnapshot{"a.js": "1"}
	env.hashes.local = HashSnapshot{"a.js": "1"}

	req := fullRequest(fileA)
	req.Force = true
	transferred, err := env.svc.TransferFiles(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"/p"}, env.transport.dirs)
	assert.Len(t, transferred, 1)
}

func TestTransferFiles_FullChangedSubset(t *testing.T) {
	env := newTestEnv(t)
	env.hashes.device = HashSnapshot{"a.js": "1", "b.js": "2", "views/c.xml": "3"}
	env.hashes.local = HashSnapshot{"a.js": "1", "b.js": "22", "views/c.xml": "3"}

	transferred, err := env.svc.TransferFiles(context.Background(), fullRequest(fileA, fileB, fileC))
	require.NoError(t, err)

	assert.Empty(t, env.transport.dirs)
	assert.Empty(t, env.transport.removed)
	assert.Equal(t, [][]string{{"/p/b.js"}}, env.transport.sentFiles)
	assert.Equal(t, []TransferredFile{{LocalFile: fileB, Action: ActionTransferred}}, transferred)
}

func TestTransferFiles_FullRemovesVanishedFiles(t *testing.T) {
	env := newTestEnv(t)
	env.hashes.device = HashSnapshot{"a.js": "1", "old/z.js": "9", "gone.js": "8"}
	env.hashes.local = HashSnapshot{"a.js": "11"}

	transferred, err := env.svc.TransferFiles(context.Background(), fullRequest(fileA))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"/p/gone.js", "/p/old/z.js"}}, env.transport.removed)
	assert.Equal(t, [][]string{{"/p/a.js"}}, env.transport.sentFiles)
	assert.Equal(t, []TransferredFile{
		{LocalFile: fileA, Action: ActionTransferred},
		{LocalFile: LocalFile{LocalPath: "/p/gone.js", RemotePath: "gone.js"}, Action: ActionRemoved},
		{LocalFile: LocalFile{LocalPath: "/p/old/z.js", RemotePath: "old/z.js"}, Action: ActionRemoved},
	}, transferred)
}

func TestTransferFiles_FullSkipsUnresolvable(t *testing.T) {
	env := newTestEnv(t)
	env.svc.projectFiles = fakeProjectFiles{unresolvable: map[string]bool{"gone.js": true}}
	env.hashes.device = HashSnapshot{"a.js": "1", "gone.js": "8", "other.js": "7"}
	env.hashes.local = HashSnapshot{"a.js": "1"}

	transferred, err := env.svc.TransferFiles(context.Background(), fullRequest(fileA))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"/p/other.js"}}, env.transport.removed)
	assert.Empty(t, env.transport.sentFiles)
	assert.Equal(t, []TransferredFile{
		{LocalFile: LocalFile{LocalPath: "/p/other.js", RemotePath: "other.js"}, Action: ActionRemoved},
	}, transferred)
}

func TestTransferFiles_SendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.transport.sendErr = errors.New("broken pipe")

	_, err := env.svc.TransferFiles(context.Background(), testRequest(fileA))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "send files", transportErr.Op)
}

func TestRemoveFiles(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.svc.RemoveFiles(context.Background(), nil))
	assert.Empty(t, env.transport.removed)

	require.NoError(t, env.svc.RemoveFiles(context.Background(), []LocalFile{fileA, fileB}))
	assert.Equal(t, [][]string{{"/p/a.js", "/p/b.js"}}, env.transport.removed)
}
