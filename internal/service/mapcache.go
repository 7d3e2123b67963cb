package service

import (
	"container/list"
	"sync"
	"time"

	"github.com/cortexmap/cortex/internal/sitemap"
	"github.com/cortexmap/cortex/internal/telemetry"
)

// cacheEntry is one Map Cache slot: the sealed Map plus its encoded size
// and the wall-clock time it was sealed, so freshness_age can be reported
// without re-deriving it from the Map's own CreatedAt on every query.
type cacheEntry struct {
	domain    string
	m         *sitemap.Map
	sizeBytes int64
	sealedAt  time.Time
}

// MapCache is a byte-bounded LRU of sealed Maps, one entry per domain.
// Its eviction policy is keyed on total byte size rather than entry count,
// a shape no generic LRU dependency fits cleanly, so this is a
// from-scratch container/list + map implementation; that's the
// stdlib-only exception recorded in the design ledger.
type MapCache struct {
	mu        sync.Mutex
	maxBytes  int64
	curBytes  int64
	ll        *list.List // front = most recently used
	byDomain  map[string]*list.Element
	domainMus map[string]*sync.Mutex // per-domain replace lock
	domainMu  sync.Mutex             // guards domainMus itself
}

// NewMapCache constructs an empty cache bounded to maxBytes.
func NewMapCache(maxBytes int64) *MapCache {
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}
	return &MapCache{
		maxBytes:  maxBytes,
		ll:        list.New(),
		byDomain:  make(map[string]*list.Element),
		domainMus: make(map[string]*sync.Mutex),
	}
}

// Get returns the cached Map for domain, promoting it to most-recently-used.
func (c *MapCache) Get(domain string) (*sitemap.Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byDomain[domain]
	telemetry.ObserveMapCacheLookup(ok)
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).m, true
}

// Freshness returns how long ago domain's cached Map was sealed, and
// whether an entry exists at all.
func (c *MapCache) Freshness(domain string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byDomain[domain]
	if !ok {
		return 0, false
	}
	return time.Since(el.Value.(*cacheEntry).sealedAt), true
}

// Put installs m as domain's cached Map, evicting the least-recently-used
// entries as needed to stay within maxBytes.
func (c *MapCache) Put(domain string, m *sitemap.Map, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byDomain[domain]; ok {
		c.curBytes -= el.Value.(*cacheEntry).sizeBytes
		c.ll.Remove(el)
		delete(c.byDomain, domain)
	}

	entry := &cacheEntry{domain: domain, m: m, sizeBytes: sizeBytes, sealedAt: time.Now()}
	el := c.ll.PushFront(entry)
	c.byDomain[domain] = el
	c.curBytes += sizeBytes

	for c.curBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			break
		}
		be := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.byDomain, be.domain)
		c.curBytes -= be.sizeBytes
	}
}

// Evict drops domain's entry, if any, e.g. after a mapping attempt fails
// and a stale Map should not keep serving queries.
func (c *MapCache) Evict(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byDomain[domain]
	if !ok {
		return
	}
	c.ll.Remove(el)
	delete(c.byDomain, domain)
	c.curBytes -= el.Value.(*cacheEntry).sizeBytes
}

// Entries returns a snapshot of every cached domain's stats, for the
// status method.
func (c *MapCache) Entries() []CachedMap {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CachedMap, 0, len(c.byDomain))
	for e := c.ll.Front(); e != nil; e = e.Next() {
		ce := e.Value.(*cacheEntry)
		out = append(out, CachedMap{
			Domain:         ce.domain,
			NodeCount:      ce.m.NodeCount,
			SizeBytes:      ce.sizeBytes,
			FreshnessAgeMs: time.Since(ce.sealedAt).Milliseconds(),
		})
	}
	return out
}

// DomainLock returns the mutex a caller should hold while replacing
// domain's cache entry, distinct from Mapper's own singleflight.Group:
// singleflight collapses concurrent *fetches* of the same domain into
// one attempt, while this lock serializes concurrent *cache swaps* once
// a fetch completes, so a slow reader mid-Get never observes a torn
// replacement.
func (c *MapCache) DomainLock(domain string) *sync.Mutex {
	c.domainMu.Lock()
	defer c.domainMu.Unlock()

	mu, ok := c.domainMus[domain]
	if !ok {
		mu = &sync.Mutex{}
		c.domainMus[domain] = mu
	}
	return mu
}
