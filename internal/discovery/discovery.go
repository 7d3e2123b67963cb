// Package discovery emits a deduplicated, ranked list of candidate URLs for
// a domain (Layer 0): robots.txt, sitemap.xml (with gzip and sitemap-index
// recursion), RSS/Atom feeds, curated common paths, and HEAD scans.
package discovery

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/fetch"
)

// Candidate is one discovered URL awaiting acquisition.
type Candidate struct {
	URL        string
	Canonical  bool
	Priority   float64 // sitemap <priority> (0.5 when absent); fixed per source otherwise
	Source     string  // "root", "sitemap", "robots", "feed", "common_path"
	firstSeen  int
}

// Discoverer runs every Layer-0 source against a domain.
type Discoverer struct {
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// New builds a Discoverer backed by fetcher.
func New(fetcher *fetch.Fetcher, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, logger: logger}
}

// Discover aggregates every source, normalizes and dedups the result, and
// ranks it: canonical URLs first, then descending sitemap priority,
// first-seen order as the final tiebreak.
func (d *Discoverer) Discover(ctx context.Context, rootURL string) ([]Candidate, error) {
	seen := make(map[string]*Candidate)
	seq := 0
	add := func(c Candidate) {
		norm, err := Normalize(c.URL)
		if err != nil {
			return
		}
		c.URL = norm
		if existing, ok := seen[norm]; ok {
			if c.Priority > existing.Priority {
				existing.Priority = c.Priority
			}
			existing.Canonical = existing.Canonical || c.Canonical
			return
		}
		c.firstSeen = seq
		seq++
		cc := c
		seen[norm] = &cc
	}

	add(Candidate{URL: rootURL, Source: "root", Priority: 1.0, Canonical: true})

	robotsSitemaps := d.discoverRobots(ctx, rootURL)
	for _, sm := range robotsSitemaps {
		add(Candidate{URL: sm, Source: "robots"})
	}

	sitemapURLs := robotsSitemaps
	sitemapURLs = append(sitemapURLs, joinPath(rootURL, "/sitemap.xml"))
	for _, smURL := range sitemapURLs {
		cands, err := d.discoverSitemap(ctx, smURL, 0)
		if err != nil {
			d.logger.Debug("sitemap discovery failed", zap.String("url", smURL), zap.Error(err))
			continue
		}
		for _, c := range cands {
			add(c)
		}
	}

	feedCands := d.discoverFeeds(ctx, rootURL)
	for _, c := range feedCands {
		add(c)
	}

	for _, c := range d.discoverCommonPaths(ctx, rootURL) {
		add(c)
	}

	out := make([]Candidate, 0, len(seen))
	for _, c := range seen {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Canonical != out[j].Canonical {
			return out[i].Canonical
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].firstSeen < out[j].firstSeen
	})
	return out, nil
}

func (d *Discoverer) discoverRobots(ctx context.Context, rootURL string) []string {
	robotsURL := joinPath(rootURL, "/robots.txt")
	return d.fetcher.Robots().Sitemaps(ctx, robotsURL)
}

func joinPath(rootURL, p string) string {
	return strings.TrimSuffix(rootURL, "/") + p
}
