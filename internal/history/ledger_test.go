package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", DefaultFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndListNewestFirst(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, l.Record(ctx, Entry{
			ID:         id,
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
			State:      "completed",
			Dropped:    i,
			Compacted:  1,
		}))
	}

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 2, all[0].Dropped)
	assert.True(t, all[0].StartedAt.Equal(base.Add(2*time.Minute)))

	two, err := l.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestRecordReplacesSameID(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Record(ctx, Entry{ID: "x", StartedAt: now, FinishedAt: now, State: "failed", Error: "no storage root"}))
	require.NoError(t, l.Record(ctx, Entry{ID: "x", StartedAt: now, FinishedAt: now, State: "completed"}))

	all, err := l.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "completed", all[0].State)
	assert.Empty(t, all[0].Error)
}

func TestClosedLedger(t *testing.T) {
	l := openLedger(t)
	require.NoError(t, l.Close())
	assert.Error(t, l.Record(context.Background(), Entry{ID: "x"}))
	_, err := l.List(context.Background(), 1)
	assert.Error(t, err)
	assert.NoError(t, l.Close())
}
