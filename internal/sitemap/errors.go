package sitemap

import "github.com/cortexmap/cortex/internal/cortexerr"

// errCorruptMap builds the CorruptMap error Open returns when the CRC
// trailer does not match, a
// section's length is inconsistent with the header, or an invariant
// (dimension count, edge bounds) is violated. A corrupt Map is always
// rejected outright, never partially used.
func errCorruptMap(reason string) error {
	return cortexerr.New(cortexerr.CodeCorruptMap, reason).
		WithRemediation("re-map the domain; the stored .ctx file is unreadable")
}

func errDimensionMismatch(reason string) error {
	return cortexerr.New(cortexerr.CodeDimensionMismatch, reason)
}
