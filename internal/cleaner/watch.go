package cleaner

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/model"
	"github.com/ysy950803/userdbclean/internal/userdb"
)

// Feeder receives host input for the trigger adapter.
type Feeder interface {
	Feed(input string) model.StartResult
}

// Watcher feeds the content of a dropped trigger file in the storage root
// to the trigger adapter, then removes the file.
type Watcher struct {
	resolver *userdb.Resolver
	name     string
	feeder   Feeder

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}
}

func NewWatcher(resolver *userdb.Resolver, name string, feeder Feeder) *Watcher {
	return &Watcher{resolver: resolver, name: name, feeder: feeder}
}

func (w *Watcher) Start() error {
	root, err := w.resolver.ResolveStorageRoot()
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	stop, stopped := w.stop, w.stopped
	w.mu.Unlock()

	path := filepath.Join(root, w.name)
	log.Info().Str("path", path).Msg("watching for trigger file")
	w.consume(path)

	go w.loop(fw, stop, stopped)
	return nil
}

func (w *Watcher) loop(fw *fsnotify.Watcher, stop, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !(event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write)) {
				continue
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			w.consume(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("trigger file watcher error")
		}
	}
}

// consume feeds the trimmed content of path. An empty file is left in place
// since its content may not have been written yet.
func (w *Watcher) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", path).Msg("failed to read trigger file")
		}
		return
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove trigger file")
	}

	result := w.feeder.Feed(input)
	log.Info().Str("result", string(result)).Msg("trigger file consumed")
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	fw, stop, stopped := w.watcher, w.stop, w.stopped
	w.watcher, w.stop, w.stopped = nil, nil, nil
	w.mu.Unlock()
	if fw == nil {
		return nil
	}

	close(stop)
	err := fw.Close()
	<-stopped
	return err
}
