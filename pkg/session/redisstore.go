package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tutardo/chatrelay/internal/observability"
	"github.com/tutardo/chatrelay/internal/tracing"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "session:"

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix defaults to "session:".
	KeyPrefix string
	// Timeout is both the inactivity window and the server-side TTL
	// re-armed on every write.
	Timeout time.Duration
}

// RedisStore keeps no local cache and runs no reaper: one key per user,
// expiry delegated to the server-side TTL re-armed on every write. Every
// Update is an independent read-merge-write, so it tolerates updates for
// users that were never fetched.
//
// Concurrent Updates for the same user are not linearizable: the write that
// lands last wins, including its Turns increment. Accepted limitation;
// stronger guarantees would need a conditional update (WATCH/MULTI or a
// server-side script).
//
// Network failures never propagate: reads degrade to a fresh session and
// failed writes are dropped, both logged. A transient outage looks like a
// memory reset to the affected user, never a blocked chat turn.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRedisStore connects to Redis. An unreachable server is logged, not
// fatal: the store degrades per its availability contract.
func NewRedisStore(opts RedisOptions, logger zerolog.Logger) (*RedisStore, error) {
	observability.EnsureRegistered()

	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis not reachable at startup, continuing degraded")
	}

	logger.Info().
		Str("addr", opts.Addr).
		Dur("timeout", opts.Timeout).
		Msg("Redis session store initialized")

	return &RedisStore{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		timeout:   opts.Timeout,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func (rs *RedisStore) key(userID string) string {
	return rs.keyPrefix + userID
}

// Get reads the session for userID. A miss, a network error or a corrupt
// value all degrade to a fresh session.
func (rs *RedisStore) Get(ctx context.Context, userID string) *Session {
	ctx, span := tracing.StartSpan(ctx, "session.get",
		attribute.String("user_id", userID))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, rs.logger).With().Str("user_id", userID).Logger()

	start := time.Now()
	now := rs.now()

	data, err := rs.client.Get(ctx, rs.key(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Error().Err(err).Msg("Redis read failed, returning fresh session")
		}
		return newSession(now)
	}
	observability.RecordSessionLoad(time.Since(start))

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Error().Err(err).Msg("Corrupt session value, returning fresh session")
		return newSession(now)
	}

	// The TTL normally reclaims stale keys, but a key written with a longer
	// TTL than the configured timeout can outlive the inactivity window.
	if s.expired(now, rs.timeout) {
		fresh := newSession(now)
		fresh.IsReturningUser = true
		logger.Info().Msg("Session expired, recreated for returning user")
		return fresh
	}

	return &s
}

// Update performs a read-merge-write round trip and re-arms the server-side
// expiry. Because the read tolerates misses, updating a never-fetched user
// auto-creates the session.
func (rs *RedisStore) Update(ctx context.Context, userID string, delta Delta) {
	ctx, span := tracing.StartSpan(ctx, "session.update",
		attribute.String("user_id", userID))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, rs.logger).With().Str("user_id", userID).Logger()

	start := time.Now()
	now := rs.now()

	s := rs.Get(ctx, userID)
	s.apply(delta, now)

	data, err := json.Marshal(s)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal session, dropping write")
		return
	}

	if err := rs.client.Set(ctx, rs.key(userID), data, rs.timeout).Err(); err != nil {
		logger.Error().Err(err).Msg("Redis write failed, dropping write")
		return
	}

	observability.RecordSessionSave(time.Since(start))
	logger.Debug().Int("turns", s.Turns).Msg("Session updated")
}

// Close releases the client connection pool.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
