// Package bypass manages the per-domain anti-bot bypass tokens. Acquiring a
// token set is slow (an external solver drives a real browser), so tokens
// are cached per domain for the duration of one run and every acquisition is
// serialized behind a single mutex.
package bypass

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// TokenSet maps bypass token names to values, ready to be set as cookies.
type TokenSet map[string]string

// HasAll reports whether the set contains every required token name.
func (t TokenSet) HasAll(required []string) bool {
	for _, name := range required {
		if _, ok := t[name]; !ok {
			return false
		}
	}
	return true
}

// Provider acquires a fresh token set for a domain. Implementations must
// return either a complete set or an error; the cache treats partial results
// as failure and never stores them.
type Provider interface {
	Acquire(ctx context.Context, domain, loginURL string, required []string) (TokenSet, error)
}

// Cache is the run-scoped token cache. Created fresh per run, cleared at
// run start, discarded at the end; never a process-wide singleton.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]TokenSet
	provider Provider
	log      zerolog.Logger

	acquisitions int
}

// NewCache builds a cache backed by the given provider.
func NewCache(provider Provider, log zerolog.Logger) *Cache {
	return &Cache{
		entries:  make(map[string]TokenSet),
		provider: provider,
		log:      log,
	}
}

// Get returns a token set covering required for domain, acquiring one
// through the provider on a miss. The lock is held across the provider call:
// the underlying solver is expensive and not assumed reentrant, so
// concurrent accounts on the same or different domains queue up rather than
// triggering redundant acquisitions.
func (c *Cache) Get(ctx context.Context, domain, loginURL string, required []string) (TokenSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entries[domain]; ok && cached.HasAll(required) {
		c.log.Debug().Str("domain", domain).Msg("bypass tokens served from cache")
		return cached, nil
	}

	c.acquisitions++
	c.log.Info().Str("domain", domain).Msg("acquiring bypass tokens")

	tokens, err := c.provider.Acquire(ctx, domain, loginURL, required)
	if err != nil {
		return nil, fmt.Errorf("acquire bypass tokens for %s: %w", domain, err)
	}
	if !tokens.HasAll(required) {
		return nil, fmt.Errorf("bypass provider returned incomplete token set for %s", domain)
	}

	c.entries[domain] = tokens
	return tokens, nil
}

// Clear drops all cached entries. Called exactly once at the start of every
// run; tokens are a within-run optimization, not long-lived state.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]TokenSet)
}

// Acquisitions returns how many provider calls the cache has made.
func (c *Cache) Acquisitions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquisitions
}
