package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy is a strict sanitizer that keeps no tags at all, used purely
// to strip <script>/<style>/markup before measuring visible-text metrics.
var stripPolicy = bluemonday.StrictPolicy()

func visibleText(doc *goquery.Document) string {
	doc.Find("script,style,noscript,template").Remove()
	html, err := doc.Find("body").Html()
	if err != nil || html == "" {
		html, _ = doc.Html()
	}
	sanitized := stripPolicy.Sanitize(html)
	return strings.Join(strings.Fields(sanitized), " ")
}
