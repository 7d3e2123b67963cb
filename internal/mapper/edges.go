package mapper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexmap/cortex/internal/extract"
	"github.com/cortexmap/cortex/internal/mapbuilder"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// buildEdges turns one page's outbound links, form actions, and rel=next/
// prev pagination links into directed edge observations leaving source.
// Deduplication by (source,target,kind) and default weighting happen
// later in mapbuilder.resolveEdges; this just emits the raw candidates.
func buildEdges(source string, base *url.URL, res extract.Result, doc *goquery.Document) []mapbuilder.EdgeObservation {
	var edges []mapbuilder.EdgeObservation

	for _, target := range res.Links {
		if target == "" || target == source {
			continue
		}
		edges = append(edges, mapbuilder.EdgeObservation{
			SourceURL: source,
			TargetURL: target,
			Kind:      sitemap.EdgeKindLink,
		})
	}

	for _, form := range res.Forms {
		if form.Action == "" || form.Action == source {
			continue
		}
		edges = append(edges, mapbuilder.EdgeObservation{
			SourceURL:      source,
			TargetURL:      form.Action,
			Kind:           sitemap.EdgeKindFormSubmit,
			RequiresAction: true,
		})
	}

	if doc != nil {
		for _, target := range paginationTargets(doc, base) {
			if target == "" || target == source {
				continue
			}
			edges = append(edges, mapbuilder.EdgeObservation{
				SourceURL: source,
				TargetURL: target,
				Kind:      sitemap.EdgeKindPagination,
			})
		}
	}

	return edges
}

// paginationTargets collects every rel=next/prev link, whether declared on
// an <a> (in-body pager) or a <link> (document-head pagination hint),
// resolved against base the same way extract resolves outbound links.
func paginationTargets(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("a[rel], link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !isPaginationRel(rel) {
			return
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			out = append(out, base.ResolveReference(ref).String())
		} else {
			out = append(out, ref.String())
		}
	})
	return out
}

func isPaginationRel(rel string) bool {
	for _, token := range strings.Fields(rel) {
		t := strings.ToLower(token)
		if t == "next" || t == "prev" || t == "previous" {
			return true
		}
	}
	return false
}
