package signature

import (
	"fmt"
	"sync"
)

// Cache stores one Signature per route index. Registration appends under a
// lock; lookups happen after registration and take no lock.
type Cache struct {
	mu   sync.Mutex
	sigs []*Signature
}

// NewCache returns an empty Cache.
func NewCache() *Cache { return &Cache{} }

// Add appends sig and returns its index.
func (c *Cache) Add(sig *Signature) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sigs = append(c.sigs, sig)
	return len(c.sigs) - 1
}

// AddAt appends sig and verifies it lands on index, keeping the cache in
// lockstep with the router.
func (c *Cache) AddAt(index int, sig *Signature) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index != len(c.sigs) {
		return fmt.Errorf("%w: route %d, cache %d", ErrIndexMismatch, index, len(c.sigs))
	}
	c.sigs = append(c.sigs, sig)
	return nil
}

// At returns the signature for a route index.
func (c *Cache) At(index int) (*Signature, bool) {
	if index < 0 || index >= len(c.sigs) {
		return nil, false
	}
	return c.sigs[index], true
}

// Len returns the number of cached signatures.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sigs)
}
