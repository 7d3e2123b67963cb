package action

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/cortexmap/cortex/internal/extract"
)

func TestFromForms_CategorizesByActionURL(t *testing.T) {
	t.Parallel()

	forms := []extract.FormDescriptor{
		{Method: "POST", Action: "https://shop.example.com/cart/add"},
		{Method: "POST", Action: "https://shop.example.com/account/login", Inputs: []extract.FormInput{{Name: "password", Type: "password"}}},
		{Method: "GET", Action: "https://shop.example.com/search"},
	}
	actions := FromForms(forms)
	require.Len(t, actions, 3)
	require.Equal(t, "cart_add", actions[0].OpcodeCategory)
	require.Equal(t, "login", actions[1].OpcodeCategory)
	require.Equal(t, "search", actions[2].OpcodeCategory)
	for _, a := range actions {
		require.False(t, a.BrowserRequired)
	}
}

func TestFromScripts_DeduplicatesRepeatedEndpoints(t *testing.T) {
	t.Parallel()

	body := `function add(){ fetch('/cart/add.js', {method:'POST'}); fetch('/cart/add.js'); }
	axios.post('/api/checkout', data);`
	actions := FromScripts([]string{body})
	require.Len(t, actions, 2)
	for _, a := range actions {
		require.True(t, a.BrowserRequired)
	}
}

func TestDiscover_PrefersHTTPFormOverJSForSameCategory(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<script>fetch('/cart/add.js');</script>`,
	))
	require.NoError(t, err)

	forms := []extract.FormDescriptor{{Method: "POST", Action: "/cart/add"}}
	actions := Discover(doc, "generic", forms)

	var sawJSCartAdd bool
	for _, a := range actions {
		if a.OpcodeCategory == "cart_add" && a.BrowserRequired {
			sawJSCartAdd = true
		}
	}
	require.False(t, sawJSCartAdd, "JS-only cart_add action should be dropped in favor of the HTTP form")
}

func TestDiscover_IncludesPlatformTemplates(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html></html>`))
	require.NoError(t, err)

	actions := Discover(doc, "shopify", nil)
	var found bool
	for _, a := range actions {
		if a.SelectorOrEndpoint == "/cart/add.js" {
			found = true
		}
	}
	require.True(t, found)
}

func TestScriptBodies_SkipsExternalScripts(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<script src="/app.js"></script><script>var x = fetch('/foo');</script>`,
	))
	require.NoError(t, err)

	bodies := ScriptBodies(doc)
	require.Len(t, bodies, 1)
	require.Contains(t, bodies[0], "fetch")
}
