package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/sitemap"
)

func fakeMap(nodeCount uint32) *sitemap.Map {
	return &sitemap.Map{Domain: "example.com", NodeCount: nodeCount}
}

func TestMapCache_PutThenGetReturnsSameMap(t *testing.T) {
	c := NewMapCache(1 << 20)
	m := fakeMap(3)
	c.Put("example.com", m, 100)

	got, ok := c.Get("example.com")
	require.True(t, ok)
	require.Same(t, m, got)
}

func TestMapCache_GetMissReturnsFalse(t *testing.T) {
	c := NewMapCache(1 << 20)
	_, ok := c.Get("nope.com")
	require.False(t, ok)
}

func TestMapCache_EvictsLeastRecentlyUsedWhenOverBudget(t *testing.T) {
	c := NewMapCache(150)
	c.Put("a.com", fakeMap(1), 100)
	c.Put("b.com", fakeMap(1), 100) // evicts a.com to stay under 150 bytes

	_, ok := c.Get("a.com")
	require.False(t, ok)
	_, ok = c.Get("b.com")
	require.True(t, ok)
}

func TestMapCache_GetPromotesToMostRecentlyUsed(t *testing.T) {
	c := NewMapCache(200)
	c.Put("a.com", fakeMap(1), 80)
	c.Put("b.com", fakeMap(1), 80) // 160 bytes: both fit, a.com is least recently used

	c.Get("a.com") // promote a.com ahead of b.com

	c.Put("c.com", fakeMap(1), 80) // 240 bytes: evicts the least recently used entry, b.com

	_, ok := c.Get("a.com")
	require.True(t, ok)
}

func TestMapCache_EvictRemovesEntry(t *testing.T) {
	c := NewMapCache(1 << 20)
	c.Put("a.com", fakeMap(1), 100)
	c.Evict("a.com")

	_, ok := c.Get("a.com")
	require.False(t, ok)
}

func TestMapCache_EntriesReflectsCurrentContents(t *testing.T) {
	c := NewMapCache(1 << 20)
	c.Put("a.com", fakeMap(5), 100)
	c.Put("b.com", fakeMap(7), 200)

	entries := c.Entries()
	require.Len(t, entries, 2)
}

func TestMapCache_DomainLockReturnsSameMutexForSameDomain(t *testing.T) {
	c := NewMapCache(1 << 20)
	a := c.DomainLock("example.com")
	b := c.DomainLock("example.com")
	require.Same(t, a, b)
}
