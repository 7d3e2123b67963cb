// Package apiprobe issues a small, fixed number of well-known API requests
// per platform fingerprint (Shopify's /products.json, WooCommerce's Store
// API, ...) to recover commerce fields the rendered HTML hides behind
// client-side hydration, grounded on internal/fetch.Fetcher for the actual
// network call so probes share per-host concurrency, backoff, and robots
// enforcement with every other fetch Cortex makes.
package apiprobe

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/classify"
	"github.com/cortexmap/cortex/internal/fetch"
)

// maxProbesPerPage caps how many speculative API calls one page may
// trigger: API probing is a cheap supplement, never a second crawl.
const maxProbesPerPage = 3

// endpoints is the fixed per-fingerprint probe table. Paths are relative to
// the site's scheme+host; Prober resolves them against the page's origin.
var endpoints = map[string][]string{
	"shopify": {
		"/products.json",
		"/collections.json",
	},
	"woocommerce": {
		"/wp-json/wc/store/products",
	},
	"bigcommerce": {
		"/api/storefront/products",
	},
}

// Prober issues the fixed endpoint set for a fingerprint against one origin.
type Prober struct {
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// New constructs a Prober around an existing Fetcher; apiprobe never owns
// its own HTTP client.
func New(fetcher *fetch.Fetcher, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{fetcher: fetcher, logger: logger}
}

// Probe fetches up to maxProbesPerPage endpoints for fingerprint rooted at
// origin (e.g. "https://shop.example.com") and folds any recovered fields
// into sig, subject to tracker's max-confidence-wins arbitration. Probe
// never recurses: a failed or empty response for one endpoint does not
// trigger a retry against another table entry beyond what's already listed.
func (p *Prober) Probe(ctx context.Context, origin, fingerprint string, sig *classify.Signals, tracker classify.FieldConfidence) error {
	paths := endpoints[fingerprint]
	if len(paths) > maxProbesPerPage {
		paths = paths[:maxProbesPerPage]
	}
	for _, path := range paths {
		url := origin + path
		outcome, err := p.fetcher.Get(ctx, url)
		if err != nil {
			p.logger.Debug("api probe failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if outcome.Status < 200 || outcome.Status >= 300 {
			continue
		}
		if err := parseResponse(fingerprint, path, outcome.BodyBytes, sig, tracker); err != nil {
			p.logger.Debug("api probe parse failed", zap.String("url", url), zap.Error(err))
		}
	}
	return nil
}

func parseResponse(fingerprint, path string, body []byte, sig *classify.Signals, tracker classify.FieldConfidence) error {
	switch fingerprint {
	case "shopify":
		return parseShopify(path, body, sig, tracker)
	case "woocommerce":
		return parseWooCommerce(body, sig, tracker)
	default:
		return fmt.Errorf("apiprobe: no parser for fingerprint %q", fingerprint)
	}
}
