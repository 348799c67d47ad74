// Package cache persists raw fetched portal pages so repeated runs do not
// re-issue network requests. Entries are keyed by (backend, url) and stored
// as files under a cache directory, with an in-memory hot layer in front.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EvidenceCache is the persistent store of raw fetched content per
// (backend, url). A corrupted entry is treated as absent, never as a fatal
// error. Writes for the same key are overwrite-safe: last fetch wins.
type EvidenceCache struct {
	dir string
	mem *gocache.Cache
}

type entry struct {
	Backend   string    `json:"backend"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Body      string    `json:"body"`
}

// New creates an evidence cache rooted at dir. The directory is created on
// first Put.
func New(dir string) *EvidenceCache {
	return &EvidenceCache{
		dir: dir,
		mem: gocache.New(gocache.NoExpiration, 0),
	}
}

// Key returns the stable cache key for a (backend, url) pair.
func Key(backend, url string) string {
	h := sha256.Sum256([]byte(backend + ":" + url))
	return hex.EncodeToString(h[:])[:24]
}

// Get returns the cached body for (backend, url), or ok=false when absent
// or unreadable.
func (c *EvidenceCache) Get(backend, url string) (string, bool) {
	key := Key(backend, url)

	if v, ok := c.mem.Get(key); ok {
		if body, ok := v.(string); ok {
			return body, true
		}
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupted entry: drop it and refetch.
		zap.L().Warn("evidence cache entry corrupted, discarding",
			zap.String("backend", backend),
			zap.String("url", url),
		)
		_ = os.Remove(c.path(key))
		return "", false
	}

	c.mem.Set(key, e.Body, gocache.NoExpiration)
	return e.Body, true
}

// Put stores the body for (backend, url), overwriting any existing entry.
func (c *EvidenceCache) Put(backend, url, body string) error {
	key := Key(backend, url)

	data, err := json.Marshal(entry{
		Backend:   backend,
		URL:       url,
		FetchedAt: time.Now().UTC(),
		Body:      body,
	})
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s", key)
	}

	c.mem.Set(key, body, gocache.NoExpiration)
	return nil
}

func (c *EvidenceCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
