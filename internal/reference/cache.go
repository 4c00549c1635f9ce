package reference

import (
	"sync"
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/model"
)

// cacheEntry is one decoded reference document.
type cacheEntry struct {
	expiry  time.Time
	answers map[string]model.Choice
}

// answerCache keeps decoded reference documents for a TTL so a batch of
// submissions does not refetch the same object.
type answerCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newAnswerCache creates a cache with the given TTL and starts its sweeper.
func newAnswerCache(ttl time.Duration) *answerCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cache := &answerCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go cache.cleanup(ttl)

	return cache
}

// get returns the answers for key if present and not expired.
func (c *answerCache) get(key string) (map[string]model.Choice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return nil, false
	}
	return entry.answers, true
}

// set stores answers under key.
func (c *answerCache) set(key string, answers map[string]model.Choice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		answers: answers,
		expiry:  c.now().Add(c.ttl),
	}
}

// invalidate drops key so the next read refetches.
func (c *answerCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// cleanup periodically removes expired entries.
func (c *answerCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *answerCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// close stops the sweeper. It is safe to call more than once.
func (c *answerCache) close() {
	c.once.Do(func() { close(c.stopCh) })
}
