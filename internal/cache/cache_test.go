package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "posts", Key("posts", ""))
	assert.Equal(t, "post:42", Key("post", "42"))
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, PostPrefix, "1")
	assert.False(t, ok)

	c.Set(ctx, PostPrefix, "1", `{"title":"hello"}`)
	val, ok := c.Get(ctx, PostPrefix, "1")
	require.True(t, ok)
	assert.Equal(t, `{"title":"hello"}`, val)
	assert.True(t, mr.Exists("post:1"))
	assert.Zero(t, mr.TTL("post:1"))

	c.Del(ctx, PostPrefix, "1")
	_, ok = c.Get(ctx, PostPrefix, "1")
	assert.False(t, ok)
}

func TestCache_SetWithExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetWithExpiry(ctx, PostsPrefix, "1:20:0", "[]", time.Minute)
	assert.Equal(t, time.Minute, mr.TTL("posts:1:20:0"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, PostsPrefix, "1:20:0")
	assert.False(t, ok)
}

func TestCache_DelPrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, PostsPrefix, "1:20:a", "x")
	c.Set(ctx, PostsPrefix, "2:20:a", "y")
	c.Set(ctx, PostPrefix, "1", "z")

	c.DelPrefix(ctx, PostsPrefix)

	assert.False(t, mr.Exists("posts:1:20:a"))
	assert.False(t, mr.Exists("posts:2:20:a"))
	assert.True(t, mr.Exists("post:1"), "detail entries share a leading substring but not the prefix")
}

func TestCache_Flush(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, PostPrefix, "1", "a")
	c.Set(ctx, PostsPrefix, "1:10:0", "[]")
	c.FlushDB(ctx)
	assert.False(t, mr.Exists("post:1"))
	assert.False(t, mr.Exists("posts:1:10:0"))

	c.Set(ctx, PostPrefix, "2", "b")
	c.FlushAll(ctx)
	assert.False(t, mr.Exists("post:2"))
}

func TestCache_NilClientIsNoop(t *testing.T) {
	t.Parallel()
	c := New(nil)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	c.Set(ctx, PostPrefix, "1", "a")
	c.DelPrefix(ctx, PostsPrefix)
	c.FlushAll(ctx)
	c.FlushDB(ctx)
	_, ok := c.Get(ctx, PostPrefix, "1")
	assert.False(t, ok)
	assert.NoError(t, c.Ping(ctx))
}

func TestCache_ServerDownDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, PostPrefix, "1", "a")
	mr.Close()

	_, ok := c.Get(ctx, PostPrefix, "1")
	assert.False(t, ok)
	// Writes must not panic or surface errors either.
	c.Set(ctx, PostPrefix, "1", "b")
}

func TestAside(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Title string `json:"title"`
	}

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Title = "fresh"
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, c, PostPrefix, "9", time.Minute, &first, fetch(&first)))
	assert.Equal(t, "fresh", first.Title)

	var second payload
	require.NoError(t, Aside(ctx, c, PostPrefix, "9", time.Minute, &second, fetch(&second)))
	assert.Equal(t, "fresh", second.Title)
	assert.Equal(t, 1, calls, "second read is served from cache")
}

func TestAside_FetchErrorIsReturnedAndNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var dest []string
	err := Aside(ctx, c, PostsPrefix, "x", time.Minute, &dest, func() error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.False(t, mr.Exists("posts:x"))
}

func TestAside_CorruptEntryIsRefetched(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("post:3", "{not json"))

	var dest map[string]string
	err := Aside(ctx, c, PostPrefix, "3", 0, &dest, func() error {
		dest = map[string]string{"ok": "yes"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", dest["ok"])

	raw, err := mr.Get("post:3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":"yes"}`, raw)
}

func TestInitRedis_UnreachableLeavesNilClient(t *testing.T) {
	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())

	InitRedis("redis://%zz")
	assert.Nil(t, GetClient())
}

func TestInitRedis_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	InitRedis(mr.Addr())
	require.NotNil(t, GetClient())
	_ = GetClient().Close()
	client = nil
}
