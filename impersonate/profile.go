// Package impersonate aggregates TLS settings, HTTP/2 settings and a
// header-mutation strategy into profiles, one per target client
// identity. A profile is built once and reused by every client that
// impersonates that target.
package impersonate

import (
	"net/http"

	"github.com/1Maze/rquest/http2conf"
	"github.com/1Maze/rquest/tlsconf"
)

// HeaderStrategy mutates the default outgoing header set. It is applied
// exactly once when a request is created; it has no TLS-layer side
// effects and never runs on the handshake path.
type HeaderStrategy func(http.Header)

// Profile is one target identity: TLS settings, HTTP/2 settings and the
// default-header strategy. Immutable after construction and safe to
// share across concurrent clients.
type Profile struct {
	name    string
	tls     tlsconf.Settings
	http2   http2conf.Settings
	headers HeaderStrategy
}

// NewProfile builds a profile. headers may be nil when the identity
// mutates no default headers.
func NewProfile(name string, tls tlsconf.Settings, http2 http2conf.Settings, headers HeaderStrategy) *Profile {
	return &Profile{
		name:    name,
		tls:     tls,
		http2:   http2,
		headers: headers,
	}
}

// Name returns the identity name, e.g. "chrome-133".
func (p *Profile) Name() string {
	return p.name
}

// TLS returns the profile's TLS settings snapshot.
func (p *Profile) TLS() tlsconf.Settings {
	return p.tls
}

// HTTP2 returns the profile's HTTP/2 settings snapshot.
func (p *Profile) HTTP2() http2conf.Settings {
	return p.http2
}

// ApplyHeaders runs the header strategy over h.
func (p *Profile) ApplyHeaders(h http.Header) {
	if p.headers != nil {
		p.headers(h)
	}
}

// NewConnector derives the TLS connector for this identity.
func (p *Profile) NewConnector() (*tlsconf.Connector, error) {
	return tlsconf.NewConnector(p.tls)
}
