package access

import (
	"errors"
	"sync"
)

var ErrNotCached = errors.New("access: no cached token")

// Cache is a client-local store of access tokens keyed by game id. It is a
// convenience for re-entry and is never consulted by the server.
type Cache struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewCache() *Cache {
	return &Cache{tokens: map[string]string{}}
}

func (c *Cache) Get(gameID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[gameID]
	if !ok {
		return "", ErrNotCached
	}
	return tok, nil
}

func (c *Cache) Put(gameID, token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[gameID] = token
}

// Forget drops a token the server no longer accepts.
func (c *Cache) Forget(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, gameID)
}
