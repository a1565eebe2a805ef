package model

import (
	"fmt"
	"strings"
	"time"
)

type RunState string

const (
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// StartResult is what a trigger observes when asking for a run.
type StartResult string

const (
	ResultNoop           StartResult = "noop"
	ResultStarted        StartResult = "started"
	ResultAlreadyRunning StartResult = "already_running"
)

// Status describes the maintenance engine at a point in time.
type Status struct {
	Running   bool       `json:"running"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Last      *Summary   `json:"last,omitempty"`
}

// Summary is the outcome of one maintenance run as handed to reporters.
type Summary struct {
	RunID      string    `json:"run_id"`
	State      RunState  `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Filter     []string  `json:"filter,omitempty"`
	Verbose    bool      `json:"verbose"`

	StorageRoot string `json:"storage_root,omitempty"`
	SyncRoot    string `json:"sync_root,omitempty"`

	// DroppedEntries is the headline count. Folder artifacts are counted
	// separately in ArtifactsRemoved and never added to it.
	DroppedEntries   int      `json:"dropped_entries"`
	DroppedTexts     []string `json:"dropped_texts,omitempty"`
	PurgedStores     []string `json:"purged_stores"`
	CompactedStores  []string `json:"compacted_stores"`
	SkippedStores    []string `json:"skipped_stores,omitempty"`
	ArtifactsRemoved int      `json:"artifacts_removed"`
	ArtifactFailures int      `json:"artifact_failures"`

	PreSyncError  string `json:"pre_sync_error,omitempty"`
	PostSyncError string `json:"post_sync_error,omitempty"`
	SyncRootError string `json:"sync_root_error,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Degraded reports whether a completed run skipped part of its work.
func (s *Summary) Degraded() bool {
	return s.PreSyncError != "" || s.PostSyncError != "" || s.SyncRootError != "" ||
		len(s.SkippedStores) > 0 || s.ArtifactFailures > 0
}

// Render formats the user facing notification text.
func Render(s Summary) string {
	var b strings.Builder
	if s.State == StateFailed {
		b.WriteString("User dictionary cleaning failed.\n")
		b.WriteString(s.Error)
		return b.String()
	}

	b.WriteString("User dictionary cleaning completed.\n")
	fmt.Fprintf(&b, "Deleted %d invalid entries.", s.DroppedEntries)
	if !s.Verbose {
		return b.String()
	}

	if len(s.PurgedStores) > 0 {
		fmt.Fprintf(&b, "\nCleared folders (%d files): %s", s.ArtifactsRemoved, strings.Join(s.PurgedStores, ", "))
	}
	if len(s.CompactedStores) > 0 {
		fmt.Fprintf(&b, "\nCompacted files: %s", strings.Join(s.CompactedStores, ", "))
	}
	if len(s.SkippedStores) > 0 {
		fmt.Fprintf(&b, "\nSkipped: %s", strings.Join(s.SkippedStores, ", "))
	}
	if s.SyncRootError != "" {
		b.WriteString("\nSync directory not found, text dictionaries were not compacted.")
	}
	if len(s.DroppedTexts) > 0 {
		b.WriteString("\nDeleted entries:")
		for _, text := range s.DroppedTexts {
			b.WriteString("\n")
			b.WriteString(text)
		}
	}
	return b.String()
}
