// Package rquest builds TLS connectors and HTTP/2 frame shaping that
// reproduce the wire fingerprint of real browsers.
//
// A profile bundles everything one target identity needs: the TLS
// ClientHello shape, the HTTP/2 SETTINGS and pseudo-header ordering,
// and the default request headers. Profiles come from presets or from
// a YAML catalog.
//
// Basic usage:
//
//	profile := rquest.Profile("chrome-133")
//	connector, err := profile.NewConnector()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	https := connector.CreateConnector(nil, false)
//	conn, err := https.DialTLSContext(ctx, "tcp", "example.com:443")
//
// Custom settings go through the tlsconf options directly:
//
//	settings := tlsconf.NewSettings(
//	    tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersion2),
//	    tlsconf.WithPreSharedKey(true),
//	)
//	connector, err := tlsconf.NewConnector(settings)
package rquest

import (
	"net"

	"github.com/1Maze/rquest/dns"
	"github.com/1Maze/rquest/http2conf"
	"github.com/1Maze/rquest/impersonate"
	"github.com/1Maze/rquest/tlsconf"
)

// Profile returns the preset profile for name. Unknown names fall back
// to the Chrome preset.
func Profile(name string) *impersonate.Profile {
	return impersonate.Get(name)
}

// Presets lists the available preset names.
func Presets() []string {
	return impersonate.Available()
}

// LoadProfiles reads additional profiles from a YAML catalog file.
func LoadProfiles(path string) (map[string]*impersonate.Profile, error) {
	return impersonate.LoadCatalog(path)
}

// NewConnector builds a TLS connector straight from settings.
func NewConnector(settings tlsconf.Settings) (*tlsconf.Connector, error) {
	return tlsconf.NewConnector(settings)
}

// ShapeHTTP2 wraps conn so its HTTP/2 client frames match settings.
// The returned error reports malformed ordering before any byte is
// written.
func ShapeHTTP2(conn net.Conn, settings http2conf.Settings) (*http2conf.FrameConn, error) {
	return http2conf.NewFrameConn(conn, settings)
}

// CachedDialer returns a dialer that resolves hostnames through a
// TTL cache, suitable as the base dialer of a connector.
func CachedDialer() tlsconf.DialContext {
	cache := dns.NewCache()
	return cache.DialContext
}
