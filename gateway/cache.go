package gateway

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// fingerprint derives the stable cache key for a generation request from
// every parameter that affects the provider's answer.
func fingerprint(prompt, provider, model string, temperature float64, maxTokens int, system string) string {
	payload := fmt.Sprintf("%s|%s|%s|%g|%d|%s", prompt, provider, model, temperature, maxTokens, system)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	key       string
	response  *Response
	expiresAt time.Time
}

// responseCache is a bounded, time-expiring LRU over generation responses.
// No cache library in use elsewhere in this codebase covers TTL plus
// capacity, so this keeps the dependency surface flat with container/list.
type responseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List

	now func() time.Time
}

func newResponseCache(maxSize int, ttl time.Duration) *responseCache {
	return &responseCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return entry.response, true
}

func (c *responseCache) put(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.response = resp
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		response:  resp,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
