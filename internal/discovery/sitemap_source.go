package discovery

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
)

const (
	maxSitemapIndexDepth = 1
	maxSitemapChildren   = 50000
)

// discoverSitemap fetches smURL, handling plain <urlset> sitemaps,
// gzip-compressed sitemaps, and <sitemapindex> recursion bounded to
// maxSitemapIndexDepth levels and maxSitemapChildren children. The
// document is not streamed: it is parsed whole in memory with
// xmlquery.Parse. Gzip is recognised by the body's magic bytes only (not a
// .gz suffix), and decompressed output is capped at 32 MiB.
func (d *Discoverer) discoverSitemap(ctx context.Context, smURL string, depth int) ([]Candidate, error) {
	outcome, err := d.fetcher.Get(ctx, smURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", smURL, err)
	}
	if outcome.Status != 200 {
		return nil, fmt.Errorf("sitemap %s returned status %d", smURL, outcome.Status)
	}

	body := outcome.BodyBytes
	if isGzip(body) {
		decompressed, gzErr := decompressGzip(body)
		if gzErr != nil {
			return nil, fmt.Errorf("decompress sitemap %s: %w", smURL, gzErr)
		}
		body = decompressed
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", smURL, err)
	}

	if indexNodes := xmlquery.Find(doc, "//sitemapindex/sitemap"); len(indexNodes) > 0 {
		if depth >= maxSitemapIndexDepth {
			return nil, nil
		}
		var out []Candidate
		for i, node := range indexNodes {
			if i >= maxSitemapChildren {
				d.logger.Warn("sitemap index truncated", zap.String("url", smURL), zap.Int("children", len(indexNodes)))
				break
			}
			loc := textOf(node, "loc")
			if loc == "" {
				continue
			}
			children, childErr := d.discoverSitemap(ctx, loc, depth+1)
			if childErr != nil {
				continue
			}
			out = append(out, children...)
		}
		return out, nil
	}

	urlNodes := xmlquery.Find(doc, "//urlset/url")
	out := make([]Candidate, 0, len(urlNodes))
	for i, node := range urlNodes {
		if i >= maxSitemapChildren {
			break
		}
		loc := textOf(node, "loc")
		if loc == "" {
			continue
		}
		priority := 0.5
		if raw := textOf(node, "priority"); raw != "" {
			if parsed, perr := strconv.ParseFloat(raw, 64); perr == nil {
				priority = parsed
			}
		}
		out = append(out, Candidate{URL: loc, Priority: priority, Source: "sitemap"})
	}
	return out, nil
}

func textOf(node *xmlquery.Node, child string) string {
	found := xmlquery.FindOne(node, child)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, 32<<20))
}
