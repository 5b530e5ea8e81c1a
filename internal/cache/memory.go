package cache

import (
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryCache)
}

// memoryCache keeps responses for the lifetime of a single run. The expirable
// LRU enforces both the size cap and the TTL without a janitor goroutine, which
// suits a short-lived CLI process.
type memoryCache struct {
	entries *lru.LRU[string, []byte]
}

func newMemoryCache(cfg ProviderConfig) (Cache, error) {
	onEvict := lru.EvictCallback[string, []byte](cfg.OnEvict)
	return &memoryCache{entries: lru.NewLRU(cfg.Size, onEvict, cfg.TTL)}, nil
}

func (m *memoryCache) Get(key string) ([]byte, bool) {
	return m.entries.Get(key)
}

func (m *memoryCache) Set(key string, value []byte) {
	m.entries.Add(key, value)
}

func (m *memoryCache) Contains(key string) bool {
	return m.entries.Contains(key)
}

func (m *memoryCache) Len() int {
	return m.entries.Len()
}

// Close is a no-op; entries die with the process.
func (m *memoryCache) Close() error {
	return nil
}
