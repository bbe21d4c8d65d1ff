package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedCompleter memoizes successful responses by prompt.
type CachedCompleter struct {
	next  Completer
	cache *ttlcache.Cache[string, string]
}

// NewCachedCompleter caches responses of next for ttl. Call Stop to release
// the expiry goroutine.
func NewCachedCompleter(next Completer, ttl time.Duration) *CachedCompleter {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
	)
	go cache.Start()
	return &CachedCompleter{next: next, cache: cache}
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	key := promptKey(prompt)
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, out, ttlcache.DefaultTTL)
	return out, nil
}

// Len is the number of cached responses.
func (c *CachedCompleter) Len() int {
	return c.cache.Len()
}

func (c *CachedCompleter) Stop() {
	c.cache.Stop()
}
