package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-watch/signalwatch/internal/model"
)

func sampleReport() *model.EntityReport {
	return &model.EntityReport{
		EntityNumber: "00123456",
		EntityName:   "EXAMPLE LIMITED",
		Status:       model.JobDone,
		Mismatches: []model.Mismatch{{
			Kind:         model.MismatchName,
			EntityNumber: "00123456",
			DocumentID:   "tx1",
			Expected:     "EXAMPLE LIMITED",
			Found:        "EXAMPLE LTD",
			Similarity:   1,
			Severity:     model.SeverityLow,
		}},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "00123456/v1:t0.85", Key("00123456", "v1:t0.85"))
	assert.NotEqual(t, Key("00123456", "a"), Key("00123456", "b"),
		"different option signatures must not collide")
}

func TestMemory_RoundTrip(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "miss is (nil, nil)")

	want := sampleReport()
	require.NoError(t, c.Put(ctx, "k", want))

	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// The cached copy is independent of the caller's report.
	want.EntityName = "MUTATED"
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE LIMITED", got.EntityName)
}

func newSQLiteCache(t *testing.T, ttl time.Duration) *SQLite {
	t.Helper()
	c, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLite_RoundTrip(t *testing.T) {
	c := newSQLiteCache(t, time.Hour)
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleReport()
	require.NoError(t, c.Put(ctx, "k", want))

	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLite_Overwrite(t *testing.T) {
	c := newSQLiteCache(t, time.Hour)
	ctx := context.Background()

	first := sampleReport()
	require.NoError(t, c.Put(ctx, "k", first))

	second := sampleReport()
	second.EntityName = "RENAMED LIMITED"
	require.NoError(t, c.Put(ctx, "k", second))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "RENAMED LIMITED", got.EntityName)
}

func TestSQLite_Expiry(t *testing.T) {
	c := newSQLiteCache(t, time.Hour)
	ctx := context.Background()

	now := time.Now()
	c.nowFunc = func() time.Time { return now }
	require.NoError(t, c.Put(ctx, "k", sampleReport()))

	now = now.Add(2 * time.Hour)
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry is a miss")

	n, err := c.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_UnreadableEntryIsMiss(t *testing.T) {
	c := newSQLiteCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", sampleReport()))
	_, err := c.db.Exec(`UPDATE scan_cache SET report = 'not json'`)
	require.NoError(t, err)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
