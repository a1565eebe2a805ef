package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderCompleted(t *testing.T) {
	s := Summary{
		State:            StateCompleted,
		DroppedEntries:   2,
		DroppedTexts:     []string{"y", "w"},
		PurgedStores:     []string{"lua"},
		CompactedStores:  []string{"lua"},
		ArtifactsRemoved: 5,
	}
	assert.Equal(t, "User dictionary cleaning completed.\nDeleted 2 invalid entries.", Render(s))

	s.Verbose = true
	text := Render(s)
	assert.Contains(t, text, "Deleted 2 invalid entries.")
	assert.Contains(t, text, "Cleared folders (5 files): lua")
	assert.Contains(t, text, "Compacted files: lua")
	assert.Contains(t, text, "Deleted entries:\ny\nw")
}

func TestRenderFailed(t *testing.T) {
	text := Render(Summary{State: StateFailed, Error: "no storage root could be resolved"})
	assert.Equal(t, "User dictionary cleaning failed.\nno storage root could be resolved", text)
}

func TestSummaryDurationAndDegraded(t *testing.T) {
	start := time.Now()
	s := Summary{StartedAt: start}
	assert.Zero(t, s.Duration())
	s.FinishedAt = start.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, s.Duration())

	assert.False(t, s.Degraded())
	s.PostSyncError = "deployer directive \"sync\" failed"
	assert.True(t, s.Degraded())
}
