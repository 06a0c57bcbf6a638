// AngelaMos | 2026
// cache.go

package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type cacheItem struct {
	value   []byte
	expires time.Time
}

// Cache is a core.Cache kept in process memory. Expiry follows the clock
// it was built with.
type Cache struct {
	mu    sync.Mutex
	clock core.Clock
	items map[string]cacheItem
}

func NewCache(clock core.Clock) *Cache {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Cache{clock: clock, items: map[string]cacheItem{}}
}

func (c *Cache) get(key string) ([]byte, bool) {
	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !it.expires.IsZero() && !c.clock.Now().Before(it.expires) {
		delete(c.items, key)
		return nil, false
	}
	return it.value, true
}

func (c *Cache) set(key string, value []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.clock.Now().Add(ttl)
	}
	c.items[key] = cacheItem{value: value, expires: exp}
}

func (c *Cache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	raw, ok := c.get(key)
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *Cache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.set(key, raw, ttl)
	c.mu.Unlock()
	return nil
}

// Take reads and deletes key in one step.
func (c *Cache) Take(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.get(key)
	if !ok {
		return "", false, nil
	}
	delete(c.items, key)
	return string(raw), true, nil
}

func (c *Cache) Put(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.set(key, []byte(value), ttl)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

var _ core.Cache = (*Cache)(nil)
