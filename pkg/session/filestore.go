package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tutardo/chatrelay/internal/observability"
	"github.com/tutardo/chatrelay/internal/tracing"
)

// FileOptions configures the file-backed store.
type FileOptions struct {
	// Path of the durable JSON document. A sibling Path+".tmp" file may
	// transiently exist during a write and is never canonical.
	Path string
	// Timeout is the inactivity window before Get hands out a fresh session.
	Timeout time.Duration
	// Debounce is the quiescence delay before a mutation reaches disk.
	Debounce time.Duration
	// ReapAge is how long an idle session survives in memory.
	ReapAge time.Duration
	// ReapInterval is how often the reaper runs.
	ReapInterval time.Duration
}

// FileStore keeps every session in process memory and treats that map as the
// source of truth. Mutations schedule a debounced atomic write of the whole
// map; a background reaper reclaims sessions idle longer than ReapAge.
//
// Update for a user that was never fetched is a silent no-op: the in-memory
// map is authoritative, so there is nothing to merge into. Callers must Get
// before they Update.
type FileStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	path     string
	timeout  time.Duration
	debounce time.Duration
	reapAge  time.Duration

	timer   *time.Timer
	writeMu sync.Mutex
	cron    *cron.Cron
	now     func() time.Time
	logger  zerolog.Logger
}

// NewFileStore loads the durable file if present and starts the reaper.
// Malformed or unreadable content means "start empty", never a fatal error.
func NewFileStore(opts FileOptions, logger zerolog.Logger) (*FileStore, error) {
	observability.EnsureRegistered()

	if opts.Path == "" {
		return nil, fmt.Errorf("session file path is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ReapAge == 0 {
		opts.ReapAge = DefaultReapAge
	}
	if opts.ReapInterval == 0 {
		opts.ReapInterval = DefaultReapInterval
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	fs := &FileStore{
		sessions: make(map[string]*Session),
		path:     opts.Path,
		timeout:  opts.Timeout,
		debounce: opts.Debounce,
		reapAge:  opts.ReapAge,
		now:      time.Now,
		logger:   logger,
	}
	fs.load()

	fs.cron = cron.New()
	if _, err := fs.cron.AddFunc(fmt.Sprintf("@every %s", opts.ReapInterval), fs.ReapNow); err != nil {
		return nil, fmt.Errorf("failed to schedule session reaper: %w", err)
	}
	fs.cron.Start()

	logger.Info().
		Str("path", opts.Path).
		Dur("timeout", opts.Timeout).
		Dur("reap_age", opts.ReapAge).
		Msg("File session store initialized")

	return fs, nil
}

// load reads the durable file into memory. Any failure degrades to an empty
// map so a bad file never blocks startup.
func (fs *FileStore) load() {
	start := fs.now()
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Error().Err(err).Str("path", fs.path).Msg("Failed to read session file, starting empty")
		}
		return
	}
	if len(data) == 0 {
		return
	}

	if err := validateSessionsDocument(data); err != nil {
		fs.logger.Error().Err(err).Str("path", fs.path).Msg("Session file failed schema validation, starting empty")
		return
	}

	var sessions map[string]*Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		fs.logger.Error().Err(err).Str("path", fs.path).Msg("Failed to parse session file, starting empty")
		return
	}

	fs.sessions = sessions
	observability.RecordSessionLoad(time.Since(start))
	observability.SetActiveSessions(len(sessions))

	fs.logger.Info().Int("sessions", len(sessions)).Msg("Sessions loaded from disk")
}

// Get returns the live session for userID, creating or recreating it as
// needed. The returned session is a clone; commit changes via Update.
func (fs *FileStore) Get(ctx context.Context, userID string) *Session {
	ctx, span := tracing.StartSpan(ctx, "session.get",
		attribute.String("user_id", userID))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, fs.logger).With().Str("user_id", userID).Logger()

	now := fs.now()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.sessions[userID]
	if !ok {
		s = newSession(now)
		fs.sessions[userID] = s
		fs.schedulePersistLocked()
		observability.SetActiveSessions(len(fs.sessions))
		logger.Info().Msg("Session created")
		return s.Clone()
	}

	if s.expired(now, fs.timeout) {
		s = newSession(now)
		s.IsReturningUser = true
		fs.sessions[userID] = s
		fs.schedulePersistLocked()
		logger.Info().Msg("Session expired, recreated for returning user")
		return s.Clone()
	}

	return s.Clone()
}

// Update merges delta into the current session for userID. Unknown users are
// ignored: callers must always Get before Update.
func (fs *FileStore) Update(ctx context.Context, userID string, delta Delta) {
	ctx, span := tracing.StartSpan(ctx, "session.update",
		attribute.String("user_id", userID))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, fs.logger).With().Str("user_id", userID).Logger()

	now := fs.now()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, ok := fs.sessions[userID]
	if !ok {
		logger.Debug().Msg("Update for unknown session ignored")
		return
	}

	s.apply(delta, now)
	fs.schedulePersistLocked()

	logger.Debug().Int("turns", s.Turns).Msg("Session updated")
}

// schedulePersistLocked coalesces bursts of mutations into a single disk
// write: each call cancels the pending write and re-arms the debounce timer.
// Caller must hold fs.mu.
func (fs *FileStore) schedulePersistLocked() {
	if fs.timer != nil {
		fs.timer.Stop()
	}
	fs.timer = time.AfterFunc(fs.debounce, func() {
		if err := fs.persist(); err != nil {
			// In-memory state stays authoritative; the next mutation
			// starts a fresh debounce cycle and retries.
			fs.logger.Error().Err(err).Msg("Failed to persist sessions")
		}
	})
}

// persist serializes the full map and swaps it into place with a temp-file
// write followed by an atomic rename. A crash between the two steps leaves
// the previously committed file intact.
func (fs *FileStore) persist() error {
	start := time.Now()

	fs.mu.Lock()
	data, err := json.MarshalIndent(fs.sessions, "", "  ")
	count := len(fs.sessions)
	fs.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	tempPath := fs.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	observability.RecordSessionSave(time.Since(start))
	fs.logger.Debug().Int("sessions", count).Msg("Sessions persisted")

	return nil
}

// ReapNow deletes every session idle longer than ReapAge and persists if
// anything was deleted. Normally driven by the store's own schedule.
func (fs *FileStore) ReapNow() {
	now := fs.now()

	fs.mu.Lock()
	deleted := 0
	for userID, s := range fs.sessions {
		if now.Sub(s.LastSeen) > fs.reapAge {
			delete(fs.sessions, userID)
			deleted++
		}
	}
	if deleted > 0 {
		fs.schedulePersistLocked()
	}
	remaining := len(fs.sessions)
	fs.mu.Unlock()

	if deleted > 0 {
		observability.RecordSessionsReaped(deleted)
		observability.SetActiveSessions(remaining)
		fs.logger.Info().Int("deleted", deleted).Int("remaining", remaining).Msg("Reaped idle sessions")
	}
}

// Flush forces any pending debounced write to disk immediately.
func (fs *FileStore) Flush() error {
	fs.mu.Lock()
	if fs.timer != nil {
		fs.timer.Stop()
		fs.timer = nil
	}
	fs.mu.Unlock()
	return fs.persist()
}

// Close stops the reaper and the debounce timer and flushes synchronously.
func (fs *FileStore) Close() error {
	ctx := fs.cron.Stop()
	<-ctx.Done()

	if err := fs.Flush(); err != nil {
		return err
	}

	fs.logger.Info().Msg("File session store closed")
	return nil
}
