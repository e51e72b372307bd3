package mountengine

import (
	"sync"
	"time"
)

const devfsRuleTimeout = 10 * time.Second

// tmpCopyUpStash tracks the temporary staging directory a tmpCopyUp
// BeforeMount created for a given destination, so the matching AfterMount
// call (invoked after the real mount is in place) knows where to copy
// from. A single process only ever drives one mount_volumes call at a
// time per container, but the map is guarded anyway since hook execution
// and mount application can overlap across goroutines in tests.
var tmpCopyUpStash = &copyUpMap{m: make(map[string]string)}

type copyUpMap struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *copyUpMap) set(dest, tmp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[dest] = tmp
}

func (c *copyUpMap) get(dest string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[dest]
	return v, ok
}

func (c *copyUpMap) clear(dest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, dest)
}
