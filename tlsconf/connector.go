package tlsconf

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"
)

// DialContext establishes the base transport an HTTPSConnector secures.
type DialContext func(ctx context.Context, network, addr string) (net.Conn, error)

// Connector owns the connect layers for one impersonated identity and
// hands out per-connection secured transports. It is immutable after
// construction: every connection it produces observes the identical
// configuration.
type Connector struct {
	sni                 bool
	echGrease           bool
	applicationSettings bool
	versionPref         HTTPVersionPref

	layer   *connectLayer
	wsLayer *connectLayer
}

// NewConnector builds a Connector from a Settings snapshot. The main
// layer follows the settings' own version preference; when that
// preference allows HTTP/2 a second layer forced to http/1.1 is derived
// for websocket upgrades, which are always negotiated over HTTP/1.1.
func NewConnector(s Settings) (*Connector, error) {
	layer, err := newConnectLayer(s, s.versionPref)
	if err != nil {
		return nil, err
	}

	var wsLayer *connectLayer
	if s.versionPref.allowsHTTP2() {
		wsLayer, err = newConnectLayer(s, HTTPVersion1)
		if err != nil {
			return nil, err
		}
	}

	return &Connector{
		sni:                 s.sni,
		echGrease:           s.echGrease,
		applicationSettings: s.applicationSettings,
		versionPref:         s.versionPref,
		layer:               layer,
		wsLayer:             wsLayer,
	}, nil
}

// CreateConnector wraps a base transport with the right connect layer
// and registers the handshake-setup callback. isWebsocket selects the
// http/1.1-forced layer when one exists. No network I/O happens here.
func (c *Connector) CreateConnector(base DialContext, isWebsocket bool) *HTTPSConnector {
	layer := c.layer
	if isWebsocket && c.wsLayer != nil {
		layer = c.wsLayer
	}

	// ALPS is keyed by the connector's version preference, not by the
	// per-call websocket flag: it describes the primary protocol
	// capability of the identity being impersonated.
	echGrease, sni, alps, pref := c.echGrease, c.sni, c.applicationSettings, c.versionPref
	return &HTTPSConnector{
		layer: layer,
		base:  base,
		setup: func(hc *handshakeConfig) {
			hc.echGrease = echGrease
			hc.verifyHostname = sni
			if alps {
				hc.alps = pref.alpsProtocols()
			}
		},
	}
}

// HTTPSConnector produces secured transports from base connections.
// The setup callback runs exactly once per connection attempt, at
// handshake-setup time, before any bytes are exchanged.
type HTTPSConnector struct {
	layer *connectLayer
	base  DialContext
	setup func(*handshakeConfig)
}

// Wrap secures an established base connection. It configures the
// backend connection but performs no I/O; the caller drives the
// handshake (directly or through the surrounding transport).
func (h *HTTPSConnector) Wrap(conn net.Conn, host string) (*SecuredConn, error) {
	var hc handshakeConfig
	h.setup(&hc)

	conf := h.layer.conf.Clone()
	if hc.verifyHostname {
		conf.ServerName = host
	} else {
		// No SNI and no hostname check, but the chain is still
		// verified against the resolved roots unless verification is
		// off altogether.
		conf.ServerName = ""
		if !conf.InsecureSkipVerify {
			conf.InsecureSkipVerify = true
			conf.VerifyPeerCertificate = chainOnlyVerifier(conf.RootCAs)
		}
	}

	spec, err := buildHelloSpec(h.layer, hc)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(conn, conf, utls.HelloCustom)
	if err := uconn.ApplyPreset(spec); err != nil {
		return nil, &BackendError{Op: "apply_preset", Err: err}
	}

	return &SecuredConn{UConn: uconn}, nil
}

// DialTLSContext dials through the base transport, wraps the connection
// and completes the handshake. Its signature matches the DialTLSContext
// hooks of the surrounding HTTP transports.
func (h *HTTPSConnector) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	dial := h.base
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	conn, err := dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	sc, err := h.Wrap(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := sc.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return sc, nil
}

// SecuredConn is a per-connection secured transport.
type SecuredConn struct {
	*utls.UConn
}

// TLSInfo returns the post-handshake snapshot, or nil before the
// handshake has completed.
func (c *SecuredConn) TLSInfo() *TLSInfo {
	state := c.ConnectionState()
	if !state.HandshakeComplete {
		return nil
	}
	info := &TLSInfo{version: versionFromWire(state.Version)}
	if len(state.PeerCertificates) > 0 {
		info.peerCertificate = state.PeerCertificates[0].Raw
	}
	return info
}

// NegotiatedProtocol returns the ALPN protocol agreed during the
// handshake, or "" before completion.
func (c *SecuredConn) NegotiatedProtocol() string {
	return c.ConnectionState().NegotiatedProtocol
}

// chainOnlyVerifier validates the peer chain against roots without
// checking the hostname, for connections configured without SNI.
func chainOnlyVerifier(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("no peer certificate presented")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parse peer certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}
