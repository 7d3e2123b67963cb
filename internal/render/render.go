// Package render provides the Browser Fallback: a bounded pool of headless
// Chrome tab contexts used when the Structured Extractor/Pattern
// Engine/API Probe layers can't recover enough signal from the raw HTML,
// grounded directly on internal/crawler/renderer_chromedp.go.
package render

import (
	"context"
	"errors"
	"net/http"
)

// ErrRendererUnavailable is returned by Pool.Render once the
// chromedp allocator has failed to warm up (e.g. no Chromium binary at
// the configured path). Callers treat it as "browser fallback is simply
// not available right now" rather than a fatal error — the Mapper falls
// back to whatever Layer 1/1.5/2/2.5 already recovered.
var ErrRendererUnavailable = errors.New("render: browser fallback unavailable")

// Outcome is a rendered page snapshot.
type Outcome struct {
	FinalURL   string
	StatusCode int
	Headers    http.Header
	HTML       string
}

// Renderer renders one URL with JavaScript execution enabled.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Outcome, error)
	Close(ctx context.Context) error
}
