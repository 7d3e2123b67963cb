package discovery

import (
	"context"
	"sync"
)

// commonPaths is a curated list of path segments found across most
// commercial and content sites, HEAD-scanned to seed Discovery when
// sitemaps and feeds turn up nothing for a given section.
var commonPaths = []string{
	"/about", "/about-us", "/contact", "/contact-us", "/pricing", "/plans",
	"/products", "/product", "/shop", "/store", "/catalog", "/cart",
	"/checkout", "/account", "/login", "/signin", "/signup", "/register",
	"/blog", "/news", "/press", "/careers", "/jobs", "/help", "/support",
	"/faq", "/terms", "/privacy", "/legal", "/sitemap", "/search",
	"/categories", "/category", "/collections", "/brands", "/deals",
	"/sale", "/new-arrivals", "/best-sellers", "/reviews", "/docs",
	"/documentation", "/api", "/developers", "/partners", "/investors",
	"/team", "/locations", "/stores", "/download", "/app", "/mobile",
	"/events", "/webinars", "/resources", "/case-studies", "/testimonials",
}

// discoverCommonPaths HEAD-scans commonPaths concurrently and keeps the
// ones that resolve to a non-404/410 status.
func (d *Discoverer) discoverCommonPaths(ctx context.Context, rootURL string) []Candidate {
	results := make([]Candidate, len(commonPaths))
	var wg sync.WaitGroup
	for i, p := range commonPaths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			candURL := joinPath(rootURL, p)
			outcome, err := d.fetcher.Head(ctx, candURL)
			if err != nil {
				return
			}
			if outcome.Status == 404 || outcome.Status == 410 {
				return
			}
			results[i] = Candidate{URL: candURL, Source: "common_path", Priority: 0.4}
		}(i, p)
	}
	wg.Wait()

	out := make([]Candidate, 0, len(results))
	for _, c := range results {
		if c.URL != "" {
			out = append(out, c)
		}
	}
	return out
}
