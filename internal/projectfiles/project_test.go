package projectfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func remotePaths(files []livesync.LocalFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RemotePath
	}
	return out
}

func TestOpen_MissingDir(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app.js":                    "a",
		"views/main.xml":            "<Page/>",
		"node_modules/dep/index.js": "dep",
		".git/HEAD":                 "ref",
		"debug.log":                 "log",
		"secret/key.pem":            "k",
		IgnoreFileName:              "# local\nsecret/\n",
	})

	p, err := Open(root)
	require.NoError(t, err)

	files, err := p.Enumerate()
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "views/main.xml"}, remotePaths(files))
	assert.Equal(t, filepath.Join(p.Root(), "views", "main.xml"), files[1].LocalPath)
}

func TestIgnoreList(t *testing.T) {
	l := NewIgnoreList(t.TempDir())

	tests := []struct {
		path   string
		isDir  bool
		ignore bool
	}{
		{"node_modules", true, true},
		{"app/node_modules/x.js", false, true},
		{".git", true, true},
		{"app.js", false, false},
		{"build.tmp", false, true},
		{"App_Resources/Android/app.gradle", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, l.ShouldIgnore(tt.path, tt.isDir))
		})
	}
}

func TestResolveLocalToDevicePath(t *testing.T) {
	p := &Project{root: "/proj", ignore: NewIgnoreList("/proj")}

	f, err := p.ResolveLocalToDevicePath("/proj/app", "views/main.js")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/proj/app", "views", "main.js"), f.LocalPath)
	assert.Equal(t, "views/main.js", f.RemotePath)

	for _, bad := range []string{"", "../etc/passwd", "/abs.js", "a/../../b"} {
		_, err := p.ResolveLocalToDevicePath("/proj/app", bad)
		assert.ErrorIs(t, err, ErrOutsideProject, bad)
	}
}

func TestFiles(t *testing.T) {
	root := t.TempDir()
	p, err := Open(root)
	require.NoError(t, err)

	files, err := p.Files([]string{"app.js", filepath.Join(p.Root(), "views", "a.css"), "node_modules/x.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "views/a.css"}, remotePaths(files))

	_, err = p.Files([]string{filepath.Join(t.TempDir(), "other.js")})
	assert.ErrorIs(t, err, ErrOutsideProject)
}
