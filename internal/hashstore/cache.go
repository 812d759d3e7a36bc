package hashstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/livesync/internal/db"
	"github.com/openmined/livesync/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_hashes (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    mod_time INTEGER NOT NULL, -- unix nanoseconds
    hash TEXT NOT NULL
);
`

type dbFileHash struct {
	Path    string `db:"path"`
	Size    int64  `db:"size"`
	ModTime int64  `db:"mod_time"`
	Hash    string `db:"hash"`
}

// Hasher computes the content hash of a local file
type Hasher interface {
	Hash(ctx context.Context, localPath string) (string, error)
}

type fileHasher struct{}

func (fileHasher) Hash(_ context.Context, localPath string) (string, error) {
	return utils.FileHash(localPath)
}

// HashCache is a Hasher that remembers hashes in SQLite, keyed by path, size
// and modification time, so unchanged files are not read again.
type HashCache struct {
	db     *sqlx.DB
	dbPath string
}

// NewHashCache creates a cache backed by the database at dbPath. An empty
// path keeps the cache in memory.
func NewHashCache(dbPath string) *HashCache {
	return &HashCache{dbPath: dbPath}
}

func (c *HashCache) Open() error {
	if c.db != nil {
		return fmt.Errorf("hash cache already open")
	}

	opts := []db.SqliteOption{db.WithMaxOpenConns(1)}
	if c.dbPath != "" {
		opts = append(opts, db.WithPath(c.dbPath))
	}

	conn, err := db.NewSqliteDB(opts...)
	if err != nil {
		return fmt.Errorf("failed to open hash cache: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to initialize hash cache schema: %w", err)
	}

	c.db = conn
	return nil
}

func (c *HashCache) Close() error {
	if c.db == nil {
		return fmt.Errorf("hash cache not open")
	}
	if err := c.db.Close(); err != nil {
		slog.Error("failed to close hash cache", "error", err)
		return err
	}
	c.db = nil
	return nil
}

// Hash returns the cached hash of localPath, computing and storing it when
// the file changed since it was last seen
func (c *HashCache) Hash(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", err
	}

	var row dbFileHash
	err = c.db.GetContext(ctx, &row, "SELECT path, size, mod_time, hash FROM file_hashes WHERE path = ?", localPath)
	switch {
	case err == nil:
		if row.Size == info.Size() && row.ModTime == info.ModTime().UnixNano() {
			return row.Hash, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to query hash of %s: %w", localPath, err)
	}

	hash, err := utils.FileHash(localPath)
	if err != nil {
		return "", err
	}

	row = dbFileHash{
		Path:    localPath,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Hash:    hash,
	}
	query := `INSERT OR REPLACE INTO file_hashes (path, size, mod_time, hash)
	          VALUES (:path, :size, :mod_time, :hash)`
	if _, err := c.db.NamedExecContext(ctx, query, row); err != nil {
		return "", fmt.Errorf("failed to store hash of %s: %w", localPath, err)
	}
	return hash, nil
}

// Forget drops the cached hash of localPath
func (c *HashCache) Forget(ctx context.Context, localPath string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM file_hashes WHERE path = ?", localPath); err != nil {
		return fmt.Errorf("failed to delete hash of %s: %w", localPath, err)
	}
	return nil
}

func (c *HashCache) Count() (int, error) {
	var count int
	if err := c.db.Get(&count, "SELECT COUNT(*) FROM file_hashes"); err != nil {
		return 0, fmt.Errorf("failed to count hashes: %w", err)
	}
	return count, nil
}
