package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extract parses body (from finalURL, with the given Content-Type header)
// into a Result, grounded on the goquery usage in
// internal/crawler/detector_heuristic.go generalized from a single
// yes/no heuristic into full structural extraction.
func Extract(body []byte, finalURL *url.URL, contentType string) (Result, error) {
	utf8Body, err := toUTF8(body, contentType)
	if err != nil {
		utf8Body = body
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	res := Result{
		FinalURL:  finalURL,
		OpenGraph: map[string]string{},
	}
	res.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		res.MetaDesc = strings.TrimSpace(desc)
	}

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if prop != "" {
			res.OpenGraph[strings.TrimPrefix(prop, "og:")] = content
		}
	})

	res.HeadingCount = doc.Find("h1,h2,h3,h4,h5,h6").Length()
	res.ImageCount = doc.Find("img").Length()
	res.TableCount = doc.Find("table").Length()
	res.FormCount = doc.Find("form").Length()
	// JSON-LD lives in <script> tags, which visibleText removes from doc.
	res.LinkedData = extractJSONLD(doc)

	visibleText := visibleText(doc)
	res.Text = visibleText
	res.WordCount = len(strings.Fields(visibleText))

	links := extractLinks(doc, finalURL)
	res.Links = links
	res.LinkCount = len(links)
	if res.WordCount > 0 {
		res.LinkDensity = float64(res.LinkCount) / float64(res.WordCount)
	}

	res.Forms = extractForms(doc, finalURL)
	res.Microdata = extractMicrodata(doc)

	return res, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved := resolveHref(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	})
	return out
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func extractForms(doc *goquery.Document, base *url.URL) []FormDescriptor {
	var forms []FormDescriptor
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		method, _ := s.Attr("method")
		if method == "" {
			method = "GET"
		}
		action, _ := s.Attr("action")
		fd := FormDescriptor{
			Method: strings.ToUpper(method),
			Action: resolveHref(base, action),
		}
		s.Find("input,select,textarea").Each(func(_ int, field *goquery.Selection) {
			name, _ := field.Attr("name")
			if name == "" {
				return
			}
			typ, _ := field.Attr("type")
			if typ == "" {
				typ = "text"
			}
			fd.Inputs = append(fd.Inputs, FormInput{Name: name, Type: typ})
		})
		forms = append(forms, fd)
	})
	return forms
}
