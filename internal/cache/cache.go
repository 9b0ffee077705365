// Package cache memoizes transformer output across rebuilds of one process.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 1024

// Transforms maps (options, source) digests to transformed source.
// It is safe for concurrent use.
type Transforms struct {
	entries *lru.Cache[string, string]
}

// New creates a cache holding at most size entries.
func New(size int) (*Transforms, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Transforms{entries: c}, nil
}

// Key derives the cache key for a source under a fingerprint. Callers whose
// output depends on the file name include the path in the fingerprint.
func Key(fingerprint string, src []byte) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(src)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached output for key.
func (t *Transforms) Get(key string) (string, bool) {
	return t.entries.Get(key)
}

// Add stores out under key.
func (t *Transforms) Add(key, out string) {
	t.entries.Add(key, out)
}

// Len returns the number of cached entries.
func (t *Transforms) Len() int { return t.entries.Len() }

// Purge drops every entry.
func (t *Transforms) Purge() { t.entries.Purge() }
