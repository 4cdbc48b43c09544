// Package knowledge serves the grounding text injected into the system
// prompt, hot-reloading it when the backing file changes.
package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Fallback returned when the knowledge file is missing or unreadable.
const Fallback = "No information is available at the moment."

// Source holds the current knowledge text and watches the backing file.
type Source struct {
	path     string
	mu       sync.RWMutex
	text     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
	logger   zerolog.Logger
}

// New loads the knowledge file and starts watching its directory for
// changes. A missing file degrades to the fallback text, not an error.
func New(path string, logger zerolog.Logger) (*Source, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &Source{
		path:     path,
		watcher:  watcher,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
	s.reload()

	// Watch the directory: editors often replace the file wholesale, which
	// would drop a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Knowledge file not watchable, hot reload disabled")
	}

	go s.run()

	return s, nil
}

// Text returns the current knowledge text.
func (s *Source) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Close stops the file watcher.
func (s *Source) Close() error {
	close(s.stopCh)
	return s.watcher.Close()
}

func (s *Source) run() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				s.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Knowledge file change detected")
				s.scheduleReload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("Knowledge watcher error")

		case <-s.stopCh:
			return
		}
	}
}

// scheduleReload debounces reloads so editor write bursts load once.
func (s *Source) scheduleReload() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.reload)
}

func (s *Source) reload() {
	data, err := os.ReadFile(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		if err != nil && !os.IsNotExist(err) {
			s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to read knowledge file")
		}
		s.text = Fallback
		return
	}

	s.text = string(data)
	s.logger.Info().Str("path", s.path).Int("bytes", len(data)).Msg("Knowledge loaded")
}
