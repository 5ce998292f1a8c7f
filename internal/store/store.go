// Package store is the authoritative record service for portfolio content.
//
// It keeps items in a workspace SQLite database, accepts full-replace order commits and
// flag commits, enforces caps, and appends every accepted change to an event log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"folio/internal/caps"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const dbFileName = "folio.sqlite"

// Store locates a workspace directory on disk.
type Store struct {
	Dir string
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) dbPath() string {
	return filepath.Join(filepath.Clean(s.Dir), dbFileName)
}

// Exists reports whether the workspace database has been created.
func (s Store) Exists() bool {
	_, err := os.Stat(s.dbPath())
	return err == nil
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.dbPath())
	if err != nil {
		return nil, err
	}
	// One connection keeps PRAGMAs applied and writes serialized inside the process.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			grp TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			subtitle TEXT NOT NULL,
			featured INTEGER NOT NULL,
			visible INTEGER NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_group ON items(collection, grp, position);`,
		`CREATE TABLE IF NOT EXISTS commit_seq (
			lane TEXT PRIMARY KEY,
			seq INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	_, err := ensureMetaUUID(ctx, db, "workspace_id")
	return err
}

func ensureMetaUUID(ctx context.Context, db *sql.DB, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty meta key")
	}
	var v string
	err := db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = ?`, key).Scan(&v)
	if err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id := uuid.NewString()
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(k, v) VALUES(?, ?)`, key, id); err != nil {
		return "", err
	}
	return id, nil
}

type Options struct {
	Caps   caps.Set
	Logger *zap.Logger
	Now    func() time.Time
}

// Service is an open workspace database. It is safe for concurrent use.
type Service struct {
	db          *sql.DB
	workspaceID string
	caps        caps.Set
	log         *zap.Logger
	now         func() time.Time

	// Serializes read-check-write sequences (seq guard, caps) across goroutines.
	mu sync.Mutex
}

// Open opens (creating if needed) the workspace database under s.Dir.
func (s Store) Open(ctx context.Context, opts Options) (*Service, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	wsID, err := ensureMetaUUID(ctx, db, "workspace_id")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	svc := &Service{
		db:          db,
		workspaceID: wsID,
		caps:        opts.Caps,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if svc.caps == nil {
		svc.caps = caps.Default()
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *Service) WorkspaceID() string { return s.workspaceID }

func (s *Service) Caps() caps.Set { return append(caps.Set(nil), s.caps...) }

func (s *Service) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
