package projectfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/utils"
)

var ErrOutsideProject = errors.New("projectfiles: path outside project")

// Project maps files below a local root to their device-relative paths
type Project struct {
	root   string
	ignore *IgnoreList
}

var _ livesync.ProjectFilesManager = (*Project)(nil)

// Open resolves root and loads its ignore file
func Open(root string) (*Project, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(abs) {
		return nil, fmt.Errorf("project dir %s: %w", abs, fs.ErrNotExist)
	}

	ignore := NewIgnoreList(abs)
	ignore.Load()
	return &Project{root: abs, ignore: ignore}, nil
}

func (p *Project) Root() string {
	return p.root
}

func (p *Project) Ignore() *IgnoreList {
	return p.ignore
}

// ResolveLocalToDevicePath maps a device-relative path back to the local file.
// The file does not need to exist, removed files are resolved too.
func (p *Project) ResolveLocalToDevicePath(projectFilesPath, remotePath string) (livesync.LocalFile, error) {
	clean := path.Clean("/" + filepath.ToSlash(remotePath))[1:]
	if clean == "" || clean != strings.TrimPrefix(filepath.ToSlash(remotePath), "./") {
		return livesync.LocalFile{}, fmt.Errorf("%w: %q", ErrOutsideProject, remotePath)
	}
	return livesync.LocalFile{
		LocalPath:  filepath.Join(projectFilesPath, filepath.FromSlash(clean)),
		RemotePath: clean,
	}, nil
}

// File maps one local path, absolute or relative to the root
func (p *Project) File(localPath string) (livesync.LocalFile, error) {
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(p.root, localPath)
	}
	rel, ok := utils.RelDevicePath(p.root, localPath)
	if !ok {
		return livesync.LocalFile{}, fmt.Errorf("%w: %s", ErrOutsideProject, localPath)
	}
	return livesync.LocalFile{LocalPath: filepath.Clean(localPath), RemotePath: rel}, nil
}

// Files maps local paths, dropping ignored ones
func (p *Project) Files(localPaths []string) ([]livesync.LocalFile, error) {
	files := make([]livesync.LocalFile, 0, len(localPaths))
	for _, lp := range localPaths {
		f, err := p.File(lp)
		if err != nil {
			return nil, err
		}
		if p.ignore.ShouldIgnore(f.RemotePath, false) {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// Enumerate lists every regular file of the project that is not ignored,
// sorted by device path
func (p *Project) Enumerate() ([]livesync.LocalFile, error) {
	var files []livesync.LocalFile
	err := filepath.WalkDir(p.root, func(fp string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fp == p.root {
			return nil
		}

		rel, ok := utils.RelDevicePath(p.root, fp)
		if !ok {
			return nil
		}
		if p.ignore.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, livesync.LocalFile{LocalPath: fp, RemotePath: rel})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", p.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RemotePath < files[j].RemotePath })
	return files, nil
}
