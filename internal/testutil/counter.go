package testutil

import "sync"

// Counter counts calls per key. It is safe for concurrent use from rule
// bodies.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// Inc adds one call for key.
func (c *Counter) Inc(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[key]++
}

// Get returns how many times key was counted.
func (c *Counter) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}
