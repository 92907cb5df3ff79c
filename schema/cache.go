package schema

import (
	"sync"
	"time"

	"cardmart/models"
)

type cacheKey struct {
	categoryID uint
	variant    string
}

type cacheEntry struct {
	fields    []models.FieldDefinition
	expiresAt time.Time
}

// Cache holds resolved schemas per category+variant. Entries expire
// after the TTL and are dropped explicitly whenever a category or its
// field definitions are edited, so a removed field never validates
// against a stale schema.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *Cache) Get(categoryID uint, variant string) ([]models.FieldDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey{categoryID, variant}]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.fields, true
}

func (c *Cache) Put(categoryID uint, variant string, fields []models.FieldDefinition) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{categoryID, variant}] = cacheEntry{
		fields:    fields,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops every cached variant for the category.
func (c *Cache) Invalidate(categoryID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.categoryID == categoryID {
			delete(c.entries, key)
		}
	}
}
