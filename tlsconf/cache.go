package tlsconf

import (
	"sync"

	utls "github.com/refraction-networking/utls"
)

// sessionCacheCapacity is the fixed number of resumable sessions a
// connect layer retains. Browsers keep only a handful per profile;
// the exact eviction order is not fingerprint-relevant.
const sessionCacheCapacity = 8

// sessionCache is a fixed-capacity utls.ClientSessionCache shared by
// every connection of a connect layer. It is internally synchronized:
// multiple in-flight handshakes read and write it concurrently.
// Eviction is oldest-first.
type sessionCache struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*utls.ClientSessionState
	order    []string
}

func newSessionCache(capacity int) *sessionCache {
	return &sessionCache{
		capacity: capacity,
		sessions: make(map[string]*utls.ClientSessionState, capacity),
	}
}

// Get implements utls.ClientSessionCache.
func (c *sessionCache) Get(sessionKey string) (*utls.ClientSessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, ok := c.sessions[sessionKey]
	return cs, ok
}

// Put implements utls.ClientSessionCache. A nil state removes the
// entry, matching the backend contract.
func (c *sessionCache) Put(sessionKey string, cs *utls.ClientSessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cs == nil {
		if _, ok := c.sessions[sessionKey]; ok {
			delete(c.sessions, sessionKey)
			c.dropKey(sessionKey)
		}
		return
	}

	if _, ok := c.sessions[sessionKey]; ok {
		c.sessions[sessionKey] = cs
		return
	}

	if len(c.sessions) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.sessions, oldest)
	}
	c.sessions[sessionKey] = cs
	c.order = append(c.order, sessionKey)
}

func (c *sessionCache) dropKey(sessionKey string) {
	for i, k := range c.order {
		if k == sessionKey {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// len reports the number of cached sessions.
func (c *sessionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
