package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signal-cli/internal/config"
)

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "org:1", []byte("acme"), time.Minute))
	v, ok, err := m.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acme", string(v))

	// Returned slices are copies.
	v[0] = 'X'
	v2, _, _ := m.Get(ctx, "org:1")
	assert.Equal(t, "acme", string(v2))

	require.NoError(t, m.Invalidate(ctx, "org:1"))
	_, ok, _ = m.Get(ctx, "org:1")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(9 * time.Minute)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	now = now.Add(365 * 24 * time.Hour)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemory_SweepsExpiredOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("x"), time.Second))
	}
	now = now.Add(time.Minute)
	require.NoError(t, m.Set(ctx, "fresh", []byte("y"), time.Minute))
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Set(ctx, "k", []byte{byte(i)}, time.Minute)
			_, _, _ = m.Get(ctx, "k")
			_ = m.Invalidate(ctx, "other")
		}(i)
	}
	wg.Wait()
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
}

type profile struct {
	Name string `json:"name"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, SetJSON(ctx, m, "p", profile{Name: "Acme"}, time.Minute))
	got, ok, err := GetJSON[profile](ctx, m, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme", got.Name)

	require.NoError(t, m.Set(ctx, "bad", []byte("{"), time.Minute))
	_, ok, err = GetJSON[profile](ctx, m, "bad")
	require.Error(t, err)
	assert.False(t, ok)

	_, ok, err = GetJSON[profile](ctx, m, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(config.CacheConfig{Backend: "memcached"})
	require.Error(t, err)

	_, err = New(config.CacheConfig{Backend: "redis", RedisURL: "not a url"})
	require.Error(t, err)
}

// fakeRedis records calls and returns canned command results.
type fakeRedis struct {
	store  map[string]string
	ttls   map[string]time.Duration
	getErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.store[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *goredis.StatusCmd {
	f.store[key] = string(value.([]byte))
	f.ttls[key] = exp
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			delete(f.store, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedis_PrefixesKeysAndMapsNil(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRedis()
	r := &Redis{rdb: fr, prefix: "signal:"}

	_, ok, err := r.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "org:1", []byte("acme"), 10*time.Minute))
	assert.Equal(t, "acme", fr.store["signal:org:1"])
	assert.Equal(t, 10*time.Minute, fr.ttls["signal:org:1"])

	v, ok, err := r.Get(ctx, "org:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acme", string(v))

	require.NoError(t, r.Invalidate(ctx, "org:1"))
	assert.Empty(t, fr.store)

	require.NoError(t, r.Close())
	assert.True(t, fr.closed)
}

func TestRedis_GetError(t *testing.T) {
	fr := newFakeRedis()
	fr.getErr = errors.New("connection refused")
	r := &Redis{rdb: fr, prefix: "signal:"}

	_, ok, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "redis get")
}
