package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(RedisOptions{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestRedisStore_GetNewUser(t *testing.T) {
	rs, _ := setupRedisStore(t)

	s := rs.Get(context.Background(), "user-a")
	require.NotNil(t, s)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 0, s.Turns)
	assert.Empty(t, s.History)
	assert.False(t, s.IsReturningUser)
}

func TestRedisStore_GetDoesNotWrite(t *testing.T) {
	rs, mr := setupRedisStore(t)

	rs.Get(context.Background(), "user-a")
	assert.False(t, mr.Exists("session:user-a"))
}

func TestRedisStore_UpdateAutoCreates(t *testing.T) {
	rs, mr := setupRedisStore(t)
	ctx := context.Background()

	// No prior Get: the read-merge-write tolerates the miss by construction.
	rs.Update(ctx, "user-a", Delta{Greeted: Bool(true)})

	require.True(t, mr.Exists("session:user-a"))
	s := rs.Get(ctx, "user-a")
	assert.True(t, s.Greeted)
	assert.Equal(t, 1, s.Turns)
}

func TestRedisStore_TurnsAuthority(t *testing.T) {
	rs, _ := setupRedisStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rs.Update(ctx, "user-a", Delta{})
		assert.Equal(t, i, rs.Get(ctx, "user-a").Turns)
	}
}

func TestRedisStore_WriteRearmsExpiry(t *testing.T) {
	rs, mr := setupRedisStore(t)
	ctx := context.Background()

	rs.Update(ctx, "user-a", Delta{})
	assert.Equal(t, DefaultTimeout, mr.TTL("session:user-a"))

	// Let some server time pass, then write again: TTL snaps back.
	mr.FastForward(time.Hour)
	assert.Equal(t, DefaultTimeout-time.Hour, mr.TTL("session:user-a"))

	rs.Update(ctx, "user-a", Delta{})
	assert.Equal(t, DefaultTimeout, mr.TTL("session:user-a"))
}

func TestRedisStore_ServerExpiryReclaims(t *testing.T) {
	rs, mr := setupRedisStore(t)
	ctx := context.Background()

	rs.Update(ctx, "user-a", Delta{Greeted: Bool(true)})
	mr.FastForward(DefaultTimeout + time.Second)

	require.False(t, mr.Exists("session:user-a"))
	s := rs.Get(ctx, "user-a")
	assert.Equal(t, 0, s.Turns)
	assert.False(t, s.Greeted)
}

func TestRedisStore_StaleValueRecreatedAsReturningUser(t *testing.T) {
	rs, mr := setupRedisStore(t)
	ctx := context.Background()

	// A key written with a longer TTL than the inactivity window can
	// outlive it; the store still applies the timeout on read.
	stale := newSession(time.Now().Add(-DefaultTimeout - time.Minute))
	stale.Greeted = true
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, mr.Set("session:user-a", string(data)))

	s := rs.Get(ctx, "user-a")
	assert.True(t, s.IsReturningUser)
	assert.False(t, s.Greeted)
	assert.Equal(t, 0, s.Turns)
}

func TestRedisStore_CorruptValueDegradesToFresh(t *testing.T) {
	rs, mr := setupRedisStore(t)

	require.NoError(t, mr.Set("session:user-a", "{not json"))

	s := rs.Get(context.Background(), "user-a")
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Turns)
}

func TestRedisStore_NetworkErrorDegradesToFresh(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(RedisOptions{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer rs.Close()

	ctx := context.Background()
	rs.Update(ctx, "user-a", Delta{Greeted: Bool(true)})

	mr.Close()

	// Read failure: fresh session, no error surfaced.
	s := rs.Get(ctx, "user-a")
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Turns)

	// Write failure: silently dropped.
	rs.Update(ctx, "user-a", Delta{Greeted: Bool(true)})
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(RedisOptions{Addr: mr.Addr(), KeyPrefix: "chat:"}, zerolog.Nop())
	require.NoError(t, err)
	defer rs.Close()

	rs.Update(context.Background(), "user-a", Delta{})
	assert.True(t, mr.Exists("chat:user-a"))
}
