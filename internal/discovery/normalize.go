package discovery

import (
	"fmt"

	whatwgurl "github.com/nlnwa/whatwg-url/url"
)

var parser = whatwgurl.NewParser()

// Normalize applies WHATWG URL normalization (lowercasing the host,
// resolving dot-segments, default-port stripping) and drops the fragment,
// so that "/about" and "/about#team" collapse to one Candidate during
// dedup. Path case is preserved: "/About" and "/about" stay distinct.
func Normalize(rawURL string) (string, error) {
	u, err := parser.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", rawURL, err)
	}
	u.SetHash("")
	return u.Href(false), nil
}
