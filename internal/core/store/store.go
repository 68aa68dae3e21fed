package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/quotagate/quotagate/internal/config"
)

const driverLibsql = "libsql"

var (
	// ErrUnsupportedDriver is returned by Open for any driver but libsql.
	ErrUnsupportedDriver = errors.New("unsupported store driver")
	// ErrNotInitialized is returned by operations on a nil or closed Store.
	ErrNotInitialized = errors.New("store is not initialized")
)

// Store is the libsql-backed admission journal. It records what a limiter
// admitted; nothing reads it back into a limiter.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the journal described by cfg and pings it. Callers run
// Migrate before first use.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	dsn, err := journalDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open admission journal: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping admission journal: %w", err)
	}
	// libsql serializes writers.
	db.SetMaxOpenConns(1)

	return &Store{DB: db, driver: driver}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// journalDSN turns store config into a libsql DSN. A remote URL wins over a
// path and gets the auth token as a query parameter. Local file paths have
// their parent directory created.
func journalDSN(cfg config.StoreConfig) (string, error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		return withAuthToken(remote, strings.TrimSpace(cfg.AuthToken))
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return "", errors.New("store path or url is required")
	case path == ":memory:", strings.HasPrefix(path, "libsql:"):
		return path, nil
	case strings.HasPrefix(path, "file:"):
		local, err := localPath(path)
		if err != nil {
			return "", err
		}
		return path, mkdirParent(local)
	default:
		return "file:" + filepath.Clean(path), mkdirParent(path)
	}
}

func withAuthToken(remote, token string) (string, error) {
	if token == "" {
		return remote, nil
	}
	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	if q.Get("authToken") == "" {
		q.Set("authToken", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// localPath extracts the filesystem path from a file: DSN, opaque or not.
func localPath(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return strings.TrimPrefix(p, "//"), nil
}

func mkdirParent(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) (context.Context, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, nil
}
