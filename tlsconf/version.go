package tlsconf

import (
	utls "github.com/refraction-networking/utls"
)

// Version is a TLS protocol version. The zero value means "unset" and
// leaves the backend default untouched.
type Version struct {
	v uint16
}

var (
	// VersionTLS10 is version 1.0 of the TLS protocol.
	VersionTLS10 = Version{utls.VersionTLS10}
	// VersionTLS11 is version 1.1 of the TLS protocol.
	VersionTLS11 = Version{utls.VersionTLS11}
	// VersionTLS12 is version 1.2 of the TLS protocol.
	VersionTLS12 = Version{utls.VersionTLS12}
	// VersionTLS13 is version 1.3 of the TLS protocol.
	VersionTLS13 = Version{utls.VersionTLS13}
)

// versionFromWire maps a negotiated wire value to a Version.
// Unknown values map to the zero Version.
func versionFromWire(v uint16) Version {
	switch v {
	case utls.VersionTLS10, utls.VersionTLS11, utls.VersionTLS12, utls.VersionTLS13:
		return Version{v}
	}
	return Version{}
}

// String returns the conventional name of the version.
func (v Version) String() string {
	switch v.v {
	case utls.VersionTLS10:
		return "TLS 1.0"
	case utls.VersionTLS11:
		return "TLS 1.1"
	case utls.VersionTLS12:
		return "TLS 1.2"
	case utls.VersionTLS13:
		return "TLS 1.3"
	}
	return "unknown"
}

// HTTPVersionPref selects which HTTP versions the connector advertises
// over ALPN.
type HTTPVersionPref int

const (
	// HTTPVersionAll advertises h2 and http/1.1, in that order.
	HTTPVersionAll HTTPVersionPref = iota
	// HTTPVersion1 advertises http/1.1 only.
	HTTPVersion1
	// HTTPVersion2 advertises h2 only.
	HTTPVersion2
)

// alpnProtocols returns the exact ALPN list for a version preference.
// The order is fixed: fingerprinting distinguishes clients by it.
func (p HTTPVersionPref) alpnProtocols() []string {
	switch p {
	case HTTPVersion1:
		return []string{"http/1.1"}
	case HTTPVersion2:
		return []string{"h2"}
	default:
		return []string{"h2", "http/1.1"}
	}
}

// alpsProtocols returns the protocols to register application settings
// for. ALPS describes the primary negotiated protocol capability of the
// impersonated client, so the mixed preference registers h2 only.
func (p HTTPVersionPref) alpsProtocols() []string {
	if p == HTTPVersion1 {
		return []string{"http/1.1"}
	}
	return []string{"h2"}
}

// allowsHTTP2 reports whether the preference can negotiate h2.
func (p HTTPVersionPref) allowsHTTP2() bool {
	return p == HTTPVersion2 || p == HTTPVersionAll
}
