// Package action discovers the executable operations a page exposes —
// form submissions, platform-template endpoints, and JS-declared fetch/
// axios calls — and records each as a sitemap.Action, grounded on the
// Structured Extractor's goquery form walk plus a regex scan over inline
// script bodies the way internal/crawler's detectors scan response bodies
// for markers.
package action

import (
	"strings"

	"github.com/cortexmap/cortex/internal/extract"
	"github.com/cortexmap/cortex/internal/sitemap"
)

// FromForms turns each discovered HTML form into an HTTP-executable
// Action. The opcode category is inferred from the form's action URL and
// field names; BrowserRequired is always false since a plain form
// POST/GET needs no JS engine to execute.
func FromForms(forms []extract.FormDescriptor) []sitemap.Action {
	actions := make([]sitemap.Action, 0, len(forms))
	for _, f := range forms {
		actions = append(actions, sitemap.Action{
			OpcodeCategory:     categorizeForm(f),
			OpcodeVariant:      "http_" + strings.ToLower(f.Method),
			SelectorOrEndpoint: f.Action,
			BrowserRequired:    false,
			ParamsSchema:       formParamsSchema(f),
		})
	}
	return actions
}

func categorizeForm(f extract.FormDescriptor) string {
	lower := strings.ToLower(f.Action)
	switch {
	case strings.Contains(lower, "cart"):
		return "cart_add"
	case strings.Contains(lower, "login") || strings.Contains(lower, "signin") || hasPasswordField(f):
		return "login"
	case strings.Contains(lower, "search"):
		return "search"
	case strings.Contains(lower, "checkout"):
		return "checkout"
	default:
		return "form_submit"
	}
}

func hasPasswordField(f extract.FormDescriptor) bool {
	for _, in := range f.Inputs {
		if strings.EqualFold(in.Type, "password") {
			return true
		}
	}
	return false
}

// formParamsSchema renders a minimal JSON-schema-shaped string naming each
// input's type, good enough for an agent deciding what to fill in without
// re-fetching the page.
func formParamsSchema(f extract.FormDescriptor) string {
	if len(f.Inputs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`{"type":"object","properties":{`)
	for i, in := range f.Inputs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`"` + jsonEscape(in.Name) + `":{"type":"` + jsonFieldType(in.Type) + `"}`)
	}
	b.WriteString("}}")
	return b.String()
}

func jsonFieldType(htmlType string) string {
	switch strings.ToLower(htmlType) {
	case "number", "range":
		return "number"
	case "checkbox":
		return "boolean"
	default:
		return "string"
	}
}

func jsonEscape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}
