package vulndb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// PayloadCache stores raw per-CVE upstream payloads on disk, one JSON file
// per (cveID, source) pair. Entries are never expired automatically -
// staleness is accepted, a stale payload only means a re-fetch was skipped.
type PayloadCache struct {
	dir string
}

func NewPayloadCache(dir string) (*PayloadCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create payload cache directory")
	}
	return &PayloadCache{dir: dir}, nil
}

func (c *PayloadCache) path(cveID, source string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", cveID, source))
}

// Get returns the cached payload, or ok=false on a miss.
func (c *PayloadCache) Get(cveID, source string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(cveID, source))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *PayloadCache) Put(cveID, source string, payload []byte) error {
	return os.WriteFile(c.path(cveID, source), payload, 0o644)
}
