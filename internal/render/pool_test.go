package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPool_UnavailableWhenChromiumMissing(t *testing.T) {
	t.Parallel()

	pool := NewPool(Config{ChromiumPath: "/nonexistent/chromium-binary"}, nil)
	require.True(t, pool.unavailable)

	_, err := pool.Render(context.Background(), "https://example.com")
	require.ErrorIs(t, err, ErrRendererUnavailable)

	require.NoError(t, pool.Close(context.Background()))
}

func TestPooledContext_ExpiredByLifetimeOrPageCount(t *testing.T) {
	t.Parallel()

	cfg := Config{ContextLifetime: time.Minute, ContextMaxPages: 2}.withDefaults()
	cfg.ContextLifetime = time.Minute
	cfg.ContextMaxPages = 2

	now := time.Now()
	fresh := &pooledContext{createdAt: now, lastUsedAt: now, pagesServed: 0}
	require.False(t, fresh.expired(now, cfg))

	byAge := &pooledContext{createdAt: now.Add(-2 * time.Minute), lastUsedAt: now, pagesServed: 0}
	require.True(t, byAge.expired(now, cfg))

	byPages := &pooledContext{createdAt: now, lastUsedAt: now, pagesServed: 2}
	require.True(t, byPages.expired(now, cfg))
}

func TestPooledContext_IdlePastTTL(t *testing.T) {
	t.Parallel()

	cfg := Config{ContextIdleTTL: time.Minute}.withDefaults()
	cfg.ContextIdleTTL = time.Minute

	now := time.Now()
	recent := &pooledContext{lastUsedAt: now}
	require.False(t, recent.idle(now, cfg))

	stale := &pooledContext{lastUsedAt: now.Add(-2 * time.Minute)}
	require.True(t, stale.idle(now, cfg))
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, 8, cfg.MaxConcurrency)
	require.Equal(t, 20*time.Second, cfg.PageTimeout)
	require.Equal(t, 30*time.Minute, cfg.ContextLifetime)
	require.Equal(t, 5*time.Minute, cfg.ContextIdleTTL)
	require.Equal(t, 50, cfg.ContextMaxPages)
}
