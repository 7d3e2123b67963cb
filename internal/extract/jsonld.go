package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractJSONLD parses every <script type="application/ld+json"> block into
// a LinkedDataRecord, tagging it by its @type (Product/Article/FAQPage/
// Organization/BreadcrumbList/...). JSON-LD is just JSON with a known
// vocabulary, so stdlib encoding/json is the justified choice here.
func extractJSONLD(doc *goquery.Document) []LinkedDataRecord {
	var out []LinkedDataRecord
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var generic map[string]any
		if err := json.Unmarshal([]byte(raw), &generic); err == nil {
			out = append(out, recordFromMap(generic))
			return
		}
		var list []map[string]any
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			for _, item := range list {
				out = append(out, recordFromMap(item))
			}
		}
	})
	return out
}

func recordFromMap(m map[string]any) LinkedDataRecord {
	typ := ""
	if t, ok := m["@type"].(string); ok {
		typ = t
	} else if arr, ok := m["@type"].([]any); ok && len(arr) > 0 {
		if first, ok := arr[0].(string); ok {
			typ = first
		}
	}
	return LinkedDataRecord{Type: typ, Raw: m}
}

// extractMicrodata reads schema.org itemscope/itemtype/itemprop markup into
// the same LinkedDataRecord shape as JSON-LD, so the Pattern Engine and
// Classifier can treat either source uniformly.
func extractMicrodata(doc *goquery.Document) []LinkedDataRecord {
	var out []LinkedDataRecord
	doc.Find("[itemscope][itemtype]").Each(func(_ int, s *goquery.Selection) {
		itemType, _ := s.Attr("itemtype")
		props := map[string]any{}
		s.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}
			if content, ok := prop.Attr("content"); ok {
				props[name] = content
				return
			}
			props[name] = strings.TrimSpace(prop.Text())
		})
		out = append(out, LinkedDataRecord{Type: schemaTypeName(itemType), Raw: props})
	})
	return out
}

func schemaTypeName(itemType string) string {
	idx := strings.LastIndex(itemType, "/")
	if idx == -1 {
		return itemType
	}
	return itemType[idx+1:]
}
