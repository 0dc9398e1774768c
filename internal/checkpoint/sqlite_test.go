package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-watch/signalwatch/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCheckpoint(runID string, seq uint64) *model.Checkpoint {
	return &model.Checkpoint{
		RunID:         runID,
		Sequence:      seq,
		SchemaVersion: model.CheckpointSchemaVersion,
		Jobs: []model.ScanJob{
			{EntityNumber: "00000001", Status: model.JobDone, Depth: 0, EntityName: "EXAMPLE LIMITED"},
			{EntityNumber: "00000002", Status: model.JobPending, Depth: 1},
		},
		Frontier: []model.FrontierItem{{EntityNumber: "00000002", Depth: 1}},
		Visited:  []model.FrontierItem{{EntityNumber: "00000001", Depth: 0}},
		Counters: model.Counters{EntitiesVisited: 1, RequestsConsumed: 3},
		WrittenAt: time.Now().UTC(),
	}
}

func TestSaveAndLoadLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := sampleCheckpoint("run-1", 1)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, uint64(1), got.Sequence)
	assert.Equal(t, want.Jobs, got.Jobs)
	assert.Equal(t, want.Frontier, got.Frontier)
	assert.Equal(t, want.Counters, got.Counters)
}

func TestLoadLatest_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSave_NewerReplacesOlder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 1)))
	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 2)))

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Sequence)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM checkpoints WHERE run_id = 'run-1'`).Scan(&count))
	assert.Equal(t, 1, count, "superseded snapshots are pruned")
}

func TestSave_RejectsStaleSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 5)))

	assert.Error(t, s.Save(ctx, sampleCheckpoint("run-1", 5)), "equal sequence is stale")
	assert.Error(t, s.Save(ctx, sampleCheckpoint("run-1", 3)), "lower sequence is stale")

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Sequence)
}

func TestLoadLatest_SchemaVersionMismatchIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := sampleCheckpoint("run-1", 1)
	cp.SchemaVersion = model.CheckpointSchemaVersion + 1
	require.NoError(t, s.Save(ctx, cp))

	_, err := s.LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadLatest_MangledPayloadIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 1)))
	_, err := s.db.Exec(`UPDATE checkpoints SET payload = '{"truncated'`)
	require.NoError(t, err)

	_, got := s.LoadLatest(ctx)
	assert.ErrorIs(t, got, ErrCorrupt)
}

func TestLoadLatest_PayloadRowDisagreementIsCorrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 1)))
	// Row metadata says run-1, payload says something else.
	_, err := s.db.Exec(`UPDATE checkpoints SET run_id = 'run-2'`)
	require.NoError(t, err)

	_, got := s.LoadLatest(ctx)
	assert.ErrorIs(t, got, ErrCorrupt)
}

func TestArchive_HidesRunFromLoadLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-1", 1)))
	require.NoError(t, s.Archive(ctx, "run-1"))

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadLatest_PicksNewestRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-old", 7)))
	time.Sleep(5 * time.Millisecond) // written_at ordering
	require.NoError(t, s.Save(ctx, sampleCheckpoint("run-new", 2)))

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-new", got.RunID)
}
