package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/signal-watch/signalwatch/internal/model"
)

// SQLite is a persistent ResultCache sharing the checkpoint database file.
type SQLite struct {
	db      *sql.DB
	ttl     time.Duration
	nowFunc func() time.Time
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS scan_cache (
	key        TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_cache_expires_at ON scan_cache(expires_at);
`

// NewSQLite opens a SQLite-backed cache at dsn with the given entry TTL.
func NewSQLite(ctx context.Context, dsn string, ttl time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SQLite{db: db, ttl: ttl, nowFunc: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (*model.EntityReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM scan_cache WHERE key = ? AND expires_at > ?`,
		key, s.nowFunc().Unix(),
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}

	var report model.EntityReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		// An unreadable entry is a miss, not a failure.
		return nil, nil
	}
	return &report, nil
}

func (s *SQLite) Put(ctx context.Context, key string, report *model.EntityReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "cache: marshal report")
	}

	now := s.nowFunc().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_cache (key, report, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET report = excluded.report, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(payload), now.Unix(), now.Add(s.ttl).Unix(),
	)
	return eris.Wrap(err, "cache: put")
}

// DeleteExpired removes aged-out entries and returns the count.
func (s *SQLite) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scan_cache WHERE expires_at <= ?`, s.nowFunc().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: rows affected")
}
