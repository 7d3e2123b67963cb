package mapper

import (
	"net/url"
	"strings"

	"github.com/cortexmap/cortex/internal/cortexerr"
)

// NormalizeDomain strips path/query and a trailing dot from a raw domain or
// URL and validates what remains looks like a host[:port]. It returns the
// normalized host alongside the scheme the caller asked for: callers that
// pass a bare hostname ("example.com") get "https" by default, matching
// real-world domains; callers that pass an explicit scheme (as local tests
// do, pointing at an httptest.Server on "http://127.0.0.1:PORT") keep it.
// This is the first thing a mapping attempt does with caller input, so
// every downstream cache key and discovery root URL is built from the same
// canonical form regardless of how the caller spelled the domain.
func NormalizeDomain(raw string) (domain, scheme string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", cortexerr.New(cortexerr.CodeInvalidArg, "domain must not be empty")
	}
	scheme = "https"
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		scheme = strings.ToLower(trimmed[:idx])
	} else {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", cortexerr.Wrap(cortexerr.CodeInvalidArg, "invalid domain", err)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", "", cortexerr.New(cortexerr.CodeInvalidArg, "domain has no host component")
	}
	if !strings.Contains(host, ".") && host != "localhost" && host != "127.0.0.1" {
		return "", "", cortexerr.Newf(cortexerr.CodeInvalidArg, "domain %q does not look like a hostname", raw)
	}
	if u.Port() != "" {
		host = host + ":" + u.Port()
	}
	return host, scheme, nil
}

// RootURL builds the origin Discovery starts from.
func RootURL(domain, scheme string) string {
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + domain
}
