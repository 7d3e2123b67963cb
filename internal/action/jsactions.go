package action

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cortexmap/cortex/internal/sitemap"
)

var (
	fetchCallRe = regexp.MustCompile(`fetch\(\s*['"]([^'"]+)['"]`)
	axiosCallRe = regexp.MustCompile(`axios\.(get|post|put|delete)\(\s*['"]([^'"]+)['"]`)
)

// ScriptBodies collects the text of every inline <script> tag on doc.
// External scripts (those with a src attribute) are skipped — their
// bodies were never fetched, and this layer does not fetch them.
func ScriptBodies(doc *goquery.Document) []string {
	var bodies []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, hasSrc := s.Attr("src"); hasSrc {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			bodies = append(bodies, text)
		}
	})
	return bodies
}

// FromScripts regex-scans inline script bodies for fetch(...)/axios.*(...)
// call sites, recording each as a browser-required Action. These are
// JS-only variants; HTTP-executable forms for the same opcode, when
// found, are preferred over these by Discover.
func FromScripts(bodies []string) []sitemap.Action {
	var actions []sitemap.Action
	seen := make(map[string]struct{})
	for _, body := range bodies {
		for _, m := range fetchCallRe.FindAllStringSubmatch(body, -1) {
			addJSAction(&actions, seen, categorizeEndpoint(m[1]), "js_fetch", m[1])
		}
		for _, m := range axiosCallRe.FindAllStringSubmatch(body, -1) {
			addJSAction(&actions, seen, categorizeEndpoint(m[2]), "js_axios_"+m[1], m[2])
		}
	}
	return actions
}

// categorizeEndpoint mirrors categorizeForm's substring heuristic so a
// JS-declared endpoint and an HTML form posting to the same kind of path
// land in the same opcode category and can be deduplicated against each
// other.
func categorizeEndpoint(endpoint string) string {
	lower := strings.ToLower(endpoint)
	switch {
	case strings.Contains(lower, "cart"):
		return "cart_add"
	case strings.Contains(lower, "login") || strings.Contains(lower, "signin"):
		return "login"
	case strings.Contains(lower, "search"):
		return "search"
	case strings.Contains(lower, "checkout"):
		return "checkout"
	default:
		return "api_call"
	}
}

func addJSAction(actions *[]sitemap.Action, seen map[string]struct{}, category, variant, endpoint string) {
	key := category + "|" + endpoint
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	*actions = append(*actions, sitemap.Action{
		OpcodeCategory:     category,
		OpcodeVariant:      variant,
		SelectorOrEndpoint: endpoint,
		BrowserRequired:    true,
	})
}
