package cachelru

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"lineage/internal/config"
	"lineage/internal/usecase"
)

// Cache is a strict LRU from content fingerprint to OID.
type Cache struct {
	entries *lru.Cache[string, string]
}

// New builds a cache whose size is clamped to the supported range.
func New(size int) *Cache {
	entries, _ := lru.New[string, string](config.ClampCacheSize(size))
	return &Cache{entries: entries}
}

func (c *Cache) Get(fingerprint string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.entries.Get(fingerprint)
}

func (c *Cache) Add(fingerprint, oid string) {
	if c == nil {
		return
	}
	c.entries.Add(fingerprint, oid)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

var _ usecase.FingerprintCache = (*Cache)(nil)
