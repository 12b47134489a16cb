// Package dns provides TTL-aware name resolution and discovery of
// Encrypted Client Hello configurations published in HTTPS records.
package dns

import (
	"context"
	"net"
	"sync"
	"time"
)

type record struct {
	ips       []net.IP
	expiresAt time.Time
}

func (r *record) expired() bool {
	return time.Now().After(r.expiresAt)
}

// Cache resolves hostnames through the system resolver and keeps the
// answers for a bounded time. Stale answers are reused when a refresh
// lookup fails.
type Cache struct {
	mu         sync.RWMutex
	records    map[string]*record
	resolver   *net.Resolver
	defaultTTL time.Duration
}

// NewCache returns a cache backed by the default system resolver.
func NewCache() *Cache {
	return &Cache{
		records:    make(map[string]*record),
		resolver:   net.DefaultResolver,
		defaultTTL: 5 * time.Minute,
	}
}

// Resolve returns the addresses for host, from cache when fresh.
func (c *Cache) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	c.mu.RLock()
	rec, ok := c.records[host]
	c.mu.RUnlock()

	if ok && !rec.expired() {
		return rec.ips, nil
	}

	ips, err := c.lookup(ctx, host)
	if err != nil {
		if ok {
			// Stale beats failing.
			return rec.ips, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.records[host] = &record{
		ips:       ips,
		expiresAt: time.Now().Add(c.defaultTTL),
	}
	c.mu.Unlock()

	return ips, nil
}

func (c *Cache) lookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := c.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, addr := range addrs {
		ips[i] = addr.IP
	}
	return ips, nil
}

// DialContext dials addr resolving the host through the cache. It is
// shaped to slot in as a connector's underlying dialer.
func (c *Cache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := c.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	var dialer net.Dialer
	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.DNSError{Err: "no addresses found", Name: host}
	}
	return nil, lastErr
}
