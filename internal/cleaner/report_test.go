package cleaner

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysy950803/userdbclean/internal/history"
	"github.com/ysy950803/userdbclean/internal/model"
)

func TestMultiReporterPresentsInOrder(t *testing.T) {
	var got []string
	r := MultiReporter{
		ReporterFunc(func(s model.Summary) { got = append(got, "a:"+s.RunID) }),
		nil,
		LogReporter{},
		ReporterFunc(func(s model.Summary) { got = append(got, "b:"+s.RunID) }),
	}
	r.Present(model.Summary{RunID: "r1", State: model.StateCompleted, Verbose: true, DroppedTexts: []string{"y"}})
	assert.Equal(t, []string{"a:r1", "b:r1"}, got)
}

func TestHistoryReporterRecords(t *testing.T) {
	ledger, err := history.Open(filepath.Join(t.TempDir(), history.DefaultFile))
	require.NoError(t, err)
	defer ledger.Close()

	now := time.Now()
	HistoryReporter{Ledger: ledger}.Present(model.Summary{
		RunID:           "r1",
		State:           model.StateFailed,
		StartedAt:       now,
		FinishedAt:      now.Add(time.Second),
		PurgedStores:    []string{"lua"},
		CompactedStores: []string{},
		Error:           "no storage root could be resolved",
	})
	HistoryReporter{}.Present(model.Summary{RunID: "ignored"})

	entries, err := ledger.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].State)
	assert.Equal(t, 1, entries[0].Purged)
	assert.Equal(t, "no storage root could be resolved", entries[0].Error)
}

func TestLogReporterAlwaysLogsDeletedEntries(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	LogReporter{}.Present(model.Summary{
		RunID:          "r1",
		State:          model.StateCompleted,
		DroppedEntries: 2,
		DroppedTexts:   []string{"便便", "w"},
	})

	out := buf.String()
	assert.Contains(t, out, "deleted entries details:")
	assert.Contains(t, out, `"message":"便便"`)
	assert.Contains(t, out, `"message":"w"`)
	assert.NotContains(t, out, "Deleted entries:", "summary text stays brief without verbose")
}
