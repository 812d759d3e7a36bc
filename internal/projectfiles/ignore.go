package projectfiles

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/openmined/livesync/internal/utils"
)

const IgnoreFileName = ".livesyncignore"

var defaultIgnoreLines = []string{
	// livesync
	IgnoreFileName,
	"livesync.yaml",
	"*.livesync-*",
	// build output and dependencies
	"node_modules",
	"platforms",
	"hooks",
	// IDE/Editor-specific
	".vscode",
	".idea",
	// General excludes
	".git",
	".env",
	"*.tmp",
	"*.log",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList decides which project paths never reach the device
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{
		baseDir: baseDir,
		ignore:  gitignore.CompileIgnoreLines(defaultIgnoreLines...),
	}
}

// Load reads .livesyncignore from the project root on top of the defaults
func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)
	lines := append([]string{}, defaultIgnoreLines...)

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()

			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" && !strings.HasPrefix(line, "#") {
					lines = append(lines, line)
					rules++
				}
			}

			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore matches a project-relative, forward-slash path
func (l *IgnoreList) ShouldIgnore(relPath string, isDir bool) bool {
	if l.ignore.MatchesPath(relPath) {
		return true
	}
	// patterns like "build/" only match with the trailing slash
	return isDir && l.ignore.MatchesPath(relPath+"/")
}
