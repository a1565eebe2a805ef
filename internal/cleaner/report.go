package cleaner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/history"
	"github.com/ysy950803/userdbclean/internal/model"
)

// Reporter presents the summary of a finished run.
type Reporter interface {
	Present(model.Summary)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(model.Summary)

func (f ReporterFunc) Present(s model.Summary) { f(s) }

// LogReporter writes summaries to the global logger.
type LogReporter struct{}

func (LogReporter) Present(s model.Summary) {
	ev := log.Info()
	if s.State == model.StateFailed {
		ev = log.Error()
	}
	ev.Str("run_id", s.RunID).
		Str("state", string(s.State)).
		Int("dropped", s.DroppedEntries).
		Int("artifacts", s.ArtifactsRemoved).
		Strs("purged", s.PurgedStores).
		Strs("compacted", s.CompactedStores).
		Strs("skipped", s.SkippedStores).
		Dur("elapsed", s.Duration()).
		Msg(model.Render(s))

	// 明细总是写日志，verbose 只影响展示给用户的摘要
	if len(s.DroppedTexts) > 0 {
		log.Info().Msg("deleted entries details:")
		for _, text := range s.DroppedTexts {
			log.Info().Msg(text)
		}
	}
}

// MultiReporter fans a summary out to every reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Present(s model.Summary) {
	for _, r := range m {
		if r != nil {
			r.Present(s)
		}
	}
}

// HistoryReporter records each summary in the run ledger.
type HistoryReporter struct {
	Ledger *history.Ledger
}

func (h HistoryReporter) Present(s model.Summary) {
	if h.Ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Ledger.Record(ctx, ToEntry(s)); err != nil {
		log.Warn().Err(err).Str("run_id", s.RunID).Msg("failed to record run history")
	}
}

func ToEntry(s model.Summary) history.Entry {
	return history.Entry{
		ID:         s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		State:      string(s.State),
		Dropped:    s.DroppedEntries,
		Artifacts:  s.ArtifactsRemoved,
		Purged:     len(s.PurgedStores),
		Compacted:  len(s.CompactedStores),
		Skipped:    len(s.SkippedStores),
		Error:      s.Error,
	}
}
