package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Defaults shared by both backends.
const (
	// DefaultTimeout is the inactivity window after which a session is
	// replaced by a fresh one on the next Get.
	DefaultTimeout = 4 * time.Hour
	// DefaultReapAge is how long an idle session survives before the file
	// backend's reaper deletes it.
	DefaultReapAge = 24 * time.Hour
	// DefaultReapInterval is how often the reaper scans the session map.
	DefaultReapInterval = time.Hour
	// DefaultDebounce is the quiescence delay before the file backend
	// persists to disk.
	DefaultDebounce = time.Second
)

// Store is the only session contract the rest of the system depends on.
// Which backend sits behind it is an implementation detail chosen at startup.
//
// Get returns the live session for userID, creating one if absent or
// replacing it (with IsReturningUser set) if the existing session aged past
// the inactivity timeout. It never fails visibly: on any backend read error
// the contract degrades to returning a fresh session.
//
// Update merges delta over the current session, refreshes LastSeen and
// increments Turns. Failures are logged, never raised to the caller.
type Store interface {
	Get(ctx context.Context, userID string) *Session
	Update(ctx context.Context, userID string, delta Delta)
	Close() error
}

// Backend names accepted by Config.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	File    FileOptions
	Redis   RedisOptions
}

// New constructs the store named by cfg.Backend.
func New(cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.File, logger)
	case BackendRedis:
		return NewRedisStore(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
