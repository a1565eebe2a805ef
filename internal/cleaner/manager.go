package cleaner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
	"github.com/ysy950803/userdbclean/internal/cleaner/http"
	"github.com/ysy950803/userdbclean/internal/deployer"
	"github.com/ysy950803/userdbclean/internal/errors"
	"github.com/ysy950803/userdbclean/internal/history"
	"github.com/ysy950803/userdbclean/internal/model"
	"github.com/ysy950803/userdbclean/internal/runguard"
	"github.com/ysy950803/userdbclean/internal/userdb"
)

type RunMode int

const (
	RunModeHeadless RunMode = iota
	RunModeConsole
)

type Option func(*Manager)

func WithResolver(r *userdb.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

func WithDeployer(d deployer.Collaborator) Option {
	return func(m *Manager) { m.deployer = d }
}

// WithReporters replaces the default log reporter.
func WithReporters(rs ...Reporter) Option {
	return func(m *Manager) { m.reporters = append(MultiReporter{}, rs...) }
}

// WithLedger records every run in l. The caller owns l.
func WithLedger(l *history.Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

// Manager 管理用户词库维护
type Manager struct {
	conf     *conf.Config
	resolver *userdb.Resolver
	deployer deployer.Collaborator
	pre      []deployer.Directive
	post     []deployer.Directive
	guard    *runguard.Guard
	ledger   *history.Ledger
	trigger  *Trigger

	mu        sync.RWMutex
	reporters MultiReporter
	last      *model.Summary
	done      []chan model.Summary

	// Services
	http    *http.Service
	watcher *Watcher
	app     *App

	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	shutdownReason string
}

func New(cfg *conf.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is nil")
	}
	cfg.Normalize()

	pre, err := cfg.PreDirectives()
	if err != nil {
		return nil, err
	}
	post, err := cfg.PostDirectives()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		conf:       cfg,
		pre:        pre,
		post:       post,
		guard:      runguard.New(),
		reporters:  MultiReporter{LogReporter{}},
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resolver == nil {
		m.resolver = userdb.NewResolver(cfg.UserDataDir, cfg.SyncDir)
	}
	if m.deployer == nil {
		m.deployer = deployer.New(cfg.DeployerConfig())
	}
	if m.ledger != nil {
		m.reporters = append(m.reporters, HistoryReporter{Ledger: m.ledger})
	}
	m.trigger = NewTrigger(cfg.Cleaner.TriggerInput, m)
	return m, nil
}

func (m *Manager) Config() *conf.Config {
	return m.conf
}

// AddReporter registers r for every subsequent run.
func (m *Manager) AddReporter(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

// TryStart launches a maintenance run in the background unless one is
// already in flight. It never blocks on the run itself.
func (m *Manager) TryStart(filter userdb.Filter, verbose bool) model.StartResult {
	run, ok := m.guard.TryStart(func(run runguard.Run) {
		m.execute(context.Background(), run, filter, verbose)
	})
	if !ok {
		log.Info().Str("run_id", m.currentRunID()).Msg("userdb cleaning already in progress")
		return model.ResultAlreadyRunning
	}
	log.Info().Str("run_id", run.ID).Msg("userdb cleaning started")
	return model.ResultStarted
}

// Run executes a maintenance run on the calling goroutine. It fails with
// AlreadyRunning when a background run holds the guard.
func (m *Manager) Run(ctx context.Context, filter userdb.Filter, verbose bool) (model.Summary, error) {
	var summary model.Summary
	_, ok := m.guard.Do(func(run runguard.Run) {
		summary = m.execute(ctx, run, filter, verbose)
	})
	if !ok {
		return model.Summary{}, errors.AlreadyRunning(m.currentRunID())
	}
	return summary, nil
}

// currentRunID names the run holding the guard. The run may finish between
// a rejected start and this lookup.
func (m *Manager) currentRunID() string {
	if cur, ok := m.guard.Current(); ok {
		return cur.ID
	}
	return "unknown"
}

// StartClean starts a run with the configured filter and verbosity unless
// overridden.
func (m *Manager) StartClean(only []string, verbose *bool) model.StartResult {
	names := m.conf.Cleaner.CleanupUserdbList
	if len(only) > 0 {
		names = only
	}
	v := m.conf.Cleaner.FullInformationDisplay
	if verbose != nil {
		v = *verbose
	}
	return m.TryStart(userdb.NewFilter(names...), v)
}

// Feed passes host input to the trigger adapter.
func (m *Manager) Feed(input string) model.StartResult {
	return m.trigger.Feed(input)
}

func (m *Manager) Status() model.Status {
	st := model.Status{Running: m.guard.Busy()}
	if cur, ok := m.guard.Current(); ok {
		st.Running = true
		st.RunID = cur.ID
		started := cur.StartedAt
		st.StartedAt = &started
	}
	st.Last = m.LastSummary()
	return st
}

func (m *Manager) LastSummary() *model.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

func (m *Manager) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if m.ledger == nil {
		return nil, errors.HistoryDisabled()
	}
	return m.ledger.List(ctx, limit)
}

// Done returns a channel that receives the summary of the next finished run.
func (m *Manager) Done() <-chan model.Summary {
	ch := make(chan model.Summary, 1)
	m.mu.Lock()
	m.done = append(m.done, ch)
	m.mu.Unlock()
	return ch
}

// execute performs pre-sync, purge, compaction, post-sync and reporting in
// that order. Post-sync runs and the summary is presented exactly once, also
// when an earlier step fails or panics.
func (m *Manager) execute(ctx context.Context, run runguard.Run, filter userdb.Filter, verbose bool) model.Summary {
	logger := log.With().Str("run_id", run.ID).Logger()
	summary := model.Summary{
		RunID:           run.ID,
		StartedAt:       run.StartedAt,
		Filter:          filter.Names(),
		Verbose:         verbose,
		PurgedStores:    []string{},
		CompactedStores: []string{},
		State:           model.StateCompleted,
	}

	protect(logger, &summary, func() {
		logger.Info().Strs("filter", summary.Filter).Msg("Executing pre-clean sync...")
		if err := deployer.PerformAll(ctx, m.deployer, m.pre); err != nil {
			summary.PreSyncError = err.Error()
			if m.conf.Cleaner.AbortOnPresyncFailure {
				summary.State = model.StateFailed
				summary.Error = fmt.Sprintf("pre-clean sync failed: %v", err)
				return
			}
		}
		if err := m.maintain(logger, &summary, filter); err != nil {
			summary.State = model.StateFailed
			summary.Error = err.Error()
		}
	})

	protect(logger, &summary, func() {
		logger.Info().Msg("Executing post-clean sync...")
		if err := deployer.PerformAll(ctx, m.deployer, m.post); err != nil {
			summary.PostSyncError = err.Error()
		}
	})

	summary.FinishedAt = time.Now()
	m.finish(summary)
	return summary
}

// protect runs step and turns a panic into a failed summary.
func protect(logger zerolog.Logger, summary *model.Summary, step func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Msgf("maintenance run panicked: %v\n%s", r, debug.Stack())
			summary.State = model.StateFailed
			if summary.Error == "" {
				summary.Error = fmt.Sprintf("internal error: %v", r)
			}
		}
	}()
	step()
}

// maintain purges folder stores and compacts file stores. Only a missing
// storage root is returned as an error; everything else degrades summary.
func (m *Manager) maintain(logger zerolog.Logger, summary *model.Summary, filter userdb.Filter) error {
	storageRoot, err := m.resolver.ResolveStorageRoot()
	if err != nil {
		logger.Error().Err(err).Msg("user data dir not found")
		return err
	}
	summary.StorageRoot = storageRoot

	logger.Info().Str("dir", storageRoot).Msg("Cleaning userdb folders")
	for _, store := range userdb.ListFolderStores(storageRoot, filter) {
		res, err := userdb.Purge(store)
		if err != nil {
			logger.Error().Err(err).Str("store", store.Name).Msg("failed to purge userdb folder")
			summary.SkippedStores = append(summary.SkippedStores, store.Path)
			continue
		}
		summary.PurgedStores = append(summary.PurgedStores, store.Name)
		summary.ArtifactsRemoved += res.Removed
		summary.ArtifactFailures += res.Failed
	}

	syncRoot, err := m.resolver.ResolveSyncRoot(storageRoot)
	if err != nil {
		logger.Warn().Err(err).Msg("sync directory not found, skipping userdb.txt compaction")
		summary.SyncRootError = err.Error()
		return nil
	}
	summary.SyncRoot = syncRoot

	logger.Info().Str("dir", syncRoot).Msg("Compacting userdb.txt files")
	for _, store := range userdb.ListFileStores(syncRoot, filter) {
		res, err := userdb.Compact(store)
		if err != nil {
			logger.Error().Err(err).Str("store", store.Name).Msg("failed to compact userdb file")
			summary.SkippedStores = append(summary.SkippedStores, store.Path)
			continue
		}
		summary.CompactedStores = append(summary.CompactedStores, store.Name)
		summary.DroppedEntries += res.Dropped
		summary.DroppedTexts = append(summary.DroppedTexts, res.DroppedTexts...)
	}
	return nil
}

func (m *Manager) finish(s model.Summary) {
	m.mu.Lock()
	last := s
	m.last = &last
	reporters := append(MultiReporter{}, m.reporters...)
	done := m.done
	m.done = nil
	m.mu.Unlock()

	reporters.Present(s)
	for _, ch := range done {
		ch <- s
	}
}

// Serve runs the long-lived trigger surfaces until shutdown.
func (m *Manager) Serve(mode RunMode) error {
	m.watcher = NewWatcher(m.resolver, m.conf.Watch.TriggerFile, m)

	if mode == RunModeConsole {
		m.app = NewApp(m.conf, m)
		m.AddReporter(m.app)
		if err := m.StartService(); err != nil {
			log.Err(err).Msg("failed to start services")
		}
		defer m.stopService()
		return m.app.Run()
	}

	if err := m.StartService(); err != nil {
		m.stopService()
		return err
	}
	log.Info().Msg("userdbclean is running in headless mode. Press Ctrl+C to exit.")
	m.waitForShutdown()
	return nil
}

func (m *Manager) StartService() error {
	m.http = http.NewService(m, m)
	if err := m.http.Start(); err != nil {
		return err
	}
	if err := m.watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("trigger file watcher disabled")
	}
	return nil
}

func (m *Manager) stopService() error {
	// 按依赖的反序停止服务
	var errs []error
	if m.watcher != nil {
		if err := m.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.http != nil {
		if err := m.http.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetHTTPAddr lets the manager serve as the HTTP service config.
func (m *Manager) GetHTTPAddr() string {
	return m.conf.HTTP.Addr
}

func (m *Manager) waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var reason string
	select {
	case sig := <-sigCh:
		reason = fmt.Sprintf("received signal %s", sig)
	case <-m.shutdownCh:
		reason = m.shutdownReason
		if reason == "" {
			reason = "shutdown requested"
		}
	}

	log.Info().Msgf("%s, shutting down", reason)
	if err := m.stopService(); err != nil {
		log.Warn().Err(err).Msg("failed to stop services during shutdown")
	}
	if m.guard.Busy() {
		log.Info().Msg("waiting for the running maintenance to finish")
		for m.guard.Busy() {
			time.Sleep(100 * time.Millisecond)
		}
	}
	log.Info().Msg("Shutdown complete")
}

func (m *Manager) RequestShutdown(reason string) {
	m.shutdownOnce.Do(func() {
		m.shutdownReason = reason
		close(m.shutdownCh)
	})
}
