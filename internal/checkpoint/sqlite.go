package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/signal-watch/signalwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// Checkpoint writes are serialized so readers never observe an
	// interleaved partial snapshot.
	writeMu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and runs the migration.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "checkpoint: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id         TEXT NOT NULL,
	sequence       INTEGER NOT NULL,
	schema_version INTEGER NOT NULL,
	payload        TEXT NOT NULL,
	archived       INTEGER NOT NULL DEFAULT 0,
	written_at     DATETIME NOT NULL,
	PRIMARY KEY (run_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_written_at ON checkpoints(written_at);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "checkpoint: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save writes cp and deletes older snapshots for the same run in one
// transaction: a checkpoint is either fully replaced or fully readable.
func (s *SQLiteStore) Save(ctx context.Context, cp *model.Checkpoint) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	payload, err := json.Marshal(cp)
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "checkpoint: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	// Stale writers lose: a snapshot may only supersede lower sequences.
	var maxSeq sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM checkpoints WHERE run_id = ?`, cp.RunID,
	).Scan(&maxSeq)
	if err != nil {
		return eris.Wrap(err, "checkpoint: read max sequence")
	}
	if maxSeq.Valid && uint64(maxSeq.Int64) >= cp.Sequence {
		return eris.Errorf("checkpoint: stale write: sequence %d <= existing %d", cp.Sequence, maxSeq.Int64)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, sequence, schema_version, payload, written_at) VALUES (?, ?, ?, ?, ?)`,
		cp.RunID, int64(cp.Sequence), cp.SchemaVersion, string(payload), time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "checkpoint: insert run %s seq %d", cp.RunID, cp.Sequence)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE run_id = ? AND sequence < ?`,
		cp.RunID, int64(cp.Sequence),
	); err != nil {
		return eris.Wrap(err, "checkpoint: prune superseded")
	}

	return eris.Wrap(tx.Commit(), "checkpoint: commit")
}

// LoadLatest returns the newest unarchived checkpoint across all runs, or
// (nil, nil) when none exists. Anything unreadable or version-mismatched is
// ErrCorrupt.
func (s *SQLiteStore) LoadLatest(ctx context.Context) (*model.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, sequence, schema_version, payload FROM checkpoints
		 WHERE archived = 0
		 ORDER BY written_at DESC, sequence DESC LIMIT 1`,
	)

	var (
		runID         string
		sequence      int64
		schemaVersion int
		payload       string
	)
	err := row.Scan(&runID, &sequence, &schemaVersion, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: load latest")
	}

	if schemaVersion != model.CheckpointSchemaVersion {
		return nil, eris.Wrapf(ErrCorrupt, "schema version %d, want %d", schemaVersion, model.CheckpointSchemaVersion)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, eris.Wrap(ErrCorrupt, err.Error())
	}
	if cp.RunID != runID || cp.Sequence != uint64(sequence) || cp.SchemaVersion != schemaVersion {
		return nil, eris.Wrap(ErrCorrupt, "payload disagrees with row metadata")
	}
	return &cp, nil
}

// Archive marks every snapshot of a completed run as consumed.
func (s *SQLiteStore) Archive(ctx context.Context, runID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET archived = 1 WHERE run_id = ?`, runID,
	)
	return eris.Wrapf(err, "checkpoint: archive run %s", runID)
}
