package action

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/cortexmap/cortex/internal/extract"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// Discover merges every source of executable actions for one page: the
// extracted HTML forms, the platform template table for fingerprint, and a
// regex scan of inline scripts on doc. When both an HTTP-executable action
// and a JS-only action exist for the same opcode category, the HTTP one
// wins and the JS-only one is dropped.
func Discover(doc *goquery.Document, fingerprint string, forms []extract.FormDescriptor) []sitemap.Action {
	httpActions := append(FromForms(forms), TemplatesFor(fingerprint)...)
	jsActions := FromScripts(ScriptBodies(doc))

	httpCategories := make(map[string]struct{}, len(httpActions))
	for _, a := range httpActions {
		httpCategories[a.OpcodeCategory] = struct{}{}
	}

	actions := make([]sitemap.Action, 0, len(httpActions)+len(jsActions))
	actions = append(actions, httpActions...)
	for _, a := range jsActions {
		if _, hasHTTP := httpCategories[a.OpcodeCategory]; hasHTTP {
			continue
		}
		actions = append(actions, a)
	}
	return dedupeByEndpoint(actions)
}

func dedupeByEndpoint(actions []sitemap.Action) []sitemap.Action {
	seen := make(map[string]struct{}, len(actions))
	out := make([]sitemap.Action, 0, len(actions))
	for _, a := range actions {
		key := a.OpcodeCategory + "|" + a.OpcodeVariant + "|" + a.SelectorOrEndpoint
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
