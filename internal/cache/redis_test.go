package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

func newRedisCache(t *testing.T, compress bool) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := NewRedis(client, 5*time.Minute, compress, nil, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, srv
}

func TestRedisRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		c, _ := newRedisCache(t, compress)
		ctx := context.Background()

		_, err := c.Get(ctx, "registrations_fall")
		assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

		require.NoError(t, c.Put(ctx, "registrations_fall", sampleTable("registrations_fall")))
		got, err := c.Get(ctx, "registrations_fall")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "studentId"}, got.Header)
		assert.Equal(t, [][]string{{"r1", "S1"}}, got.Rows)
	}
}

func TestRedisInvalidateRemovesBothKeys(t *testing.T) {
	c, srv := newRedisCache(t, true)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "registrations_fall", sampleTable("registrations_fall")))
	assert.True(t, srv.Exists(redisRowsPrefix+"registrations_fall"))
	assert.True(t, srv.Exists(redisTSPrefix+"registrations_fall"))

	require.NoError(t, c.Invalidate(ctx, "registrations_fall"))
	presence, err := c.Probe(ctx, "registrations_fall")
	require.NoError(t, err)
	assert.True(t, presence.Empty())
}

func TestRedisTimestampWithoutRowsIsMiss(t *testing.T) {
	c, srv := newRedisCache(t, false)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "registrations_fall", sampleTable("registrations_fall")))
	srv.Del(redisRowsPrefix + "registrations_fall")

	_, err := c.Get(ctx, "registrations_fall")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestRedisExpiresByTimestamp(t *testing.T) {
	c, _ := newRedisCache(t, false)
	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Put(ctx, "classes", sampleTable("classes")))

	c.now = func() time.Time { return now.Add(5 * time.Minute) }
	_, err := c.Get(ctx, "classes")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestRedisInvalidateAll(t *testing.T) {
	c, srv := newRedisCache(t, false)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", sampleTable("a")))
	require.NoError(t, c.Put(ctx, "b", sampleTable("b")))
	require.NoError(t, srv.Set("unrelated", "keep"))

	require.NoError(t, c.InvalidateAll(ctx))
	for _, table := range []string{"a", "b"} {
		presence, err := c.Probe(ctx, table)
		require.NoError(t, err)
		assert.True(t, presence.Empty())
	}
	assert.True(t, srv.Exists("unrelated"))
}
