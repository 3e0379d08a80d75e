package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a scraped page stays fresh.
const DefaultTTL = 5 * time.Minute

type entry struct {
	content   string
	timestamp time.Time
}

// URLCache maps a normalized URL to its formatted page content.
// Stale entries are treated as misses and left in place until the next Put.
type URLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewURLCache(ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &URLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock swaps the time source. Used by tests.
func (c *URLCache) WithClock(now func() time.Time) *URLCache {
	c.now = now
	return c
}

// Get returns the cached content if it was stored less than TTL ago.
func (c *URLCache) Get(rawURL string) (string, bool) {
	key := NormalizeKey(rawURL)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		return "", false
	}
	return e.content, true
}

// Put stores content under the URL, overwriting any previous entry.
func (c *URLCache) Put(rawURL, content string) {
	key := NormalizeKey(rawURL)

	c.mu.Lock()
	c.entries[key] = entry{content: content, timestamp: c.now()}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *URLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NormalizeKey lower-cases scheme and host and drops the fragment.
// Unparseable input is used verbatim.
func NormalizeKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
