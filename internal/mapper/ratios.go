package mapper

import "github.com/cortexmap/cortex/internal/sitemap"

// cautiousCategories require a confirmation step or carry a session
// consequence but don't change state on the server irreversibly.
var cautiousCategories = map[string]bool{"login": true, "cart_add": true}

// destructiveCategories mutate state in a way that costs money, finalizes
// an order, or otherwise can't be trivially undone by revisiting the page.
var destructiveCategories = map[string]bool{"checkout": true, "form_submit": true}

// actionRatios buckets actions by opcode category into the safe/cautious/
// destructive thirds DimSafeActionRatio/DimCautiousActionRatio/
// DimDestructiveActionRatio encode, so an agent can tell "this page is
// mostly navigation" from "this page is mostly checkout buttons" without
// inspecting every action individually.
func actionRatios(actions []sitemap.Action) (safe, cautious, destructive float64) {
	if len(actions) == 0 {
		return 0, 0, 0
	}
	var nSafe, nCautious, nDestructive int
	for _, a := range actions {
		switch {
		case destructiveCategories[a.OpcodeCategory]:
			nDestructive++
		case cautiousCategories[a.OpcodeCategory]:
			nCautious++
		default:
			nSafe++
		}
	}
	total := float64(len(actions))
	return float64(nSafe) / total, float64(nCautious) / total, float64(nDestructive) / total
}
