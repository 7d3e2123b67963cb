package mapbuilder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cortexmap/cortex/internal/sitemap"
)

// MapPath returns the canonical on-disk location for a domain's latest
// sealed Map: DATA_DIR/maps/<domain>.ctx.
func MapPath(dataDir, domain string) string {
	return filepath.Join(dataDir, "maps", domain+".ctx")
}

// Open reads and fully validates the sealed Map for domain from its
// canonical path under dataDir. The binary payload itself carries no
// domain string (only a domain_hash fingerprint), so Open stamps the
// caller-supplied domain onto the returned Map.
func Open(dataDir, domain string) (*sitemap.Map, error) {
	path := MapPath(dataDir, domain)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file %s: %w", path, err)
	}
	return OpenBytes(domain, data)
}

// OpenBytes validates and decodes an already-loaded .ctx payload, stamping
// domain onto the result. Used by Open and by the service's cache warm
// path when bytes arrive over a channel other than the filesystem.
func OpenBytes(domain string, data []byte) (*sitemap.Map, error) {
	m, err := sitemap.Open(data)
	if err != nil {
		return nil, err
	}
	m.Domain = domain
	return m, nil
}

// Persist writes sealed .ctx bytes to their canonical path, creating the
// maps directory if necessary. Replacement is atomic: bytes land in a
// temp file first, then get renamed over the canonical path, so a reader
// never observes a half-written Map.
func Persist(dataDir, domain string, data []byte) error {
	dir := filepath.Join(dataDir, "maps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir maps dir: %w", err)
	}
	final := MapPath(dataDir, domain)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp map file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename map file: %w", err)
	}
	return nil
}
