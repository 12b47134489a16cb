package tlsconf

import (
	"crypto/x509"

	utls "github.com/refraction-networking/utls"
)

// TrustStorePolicy selects which compiled-in root store a connect layer
// uses when no explicit store is supplied. An explicit store always
// wins over the policy.
type TrustStorePolicy int

const (
	// TrustNoOverride leaves the backend default store untouched.
	TrustNoOverride TrustStorePolicy = iota
	// TrustNativeOnly loads the operating system store.
	TrustNativeOnly
	// TrustWebOnly loads the registered web-trust bundle.
	TrustWebOnly
	// TrustWebPreferredOverNative loads the web-trust bundle when one
	// is registered and falls back to the native store otherwise.
	TrustWebPreferredOverNative
)

// webRootsProvider supplies the compiled-in web-trust bundle. It is nil
// unless the embedding build registers one; resolution then falls
// through to the native store or the backend default.
var webRootsProvider func() (*x509.CertPool, error)

// RegisterWebRoots registers the loader for the web-trust bundle used
// by TrustWebOnly and TrustWebPreferredOverNative. Call it once during
// program initialization, before any connector is constructed.
func RegisterWebRoots(load func() (*x509.CertPool, error)) {
	webRootsProvider = load
}

// ConnectorOverride builds the low-level backend configuration a
// connect layer starts from, replacing the default client-mode one.
type ConnectorOverride func() (*utls.Config, error)

// Settings is the normalized TLS-layer configuration for one
// impersonated identity. Build it with NewSettings; the value is
// immutable afterwards and safe to share across concurrent use.
type Settings struct {
	sni                  bool
	versionPref          HTTPVersionPref
	echGrease            bool
	applicationSettings  bool
	certsVerification    bool
	minVersion           Version
	maxVersion           Version
	ocspStapling         bool
	signedCertTimestamps bool
	sessionTicket        *bool
	grease               *bool
	permuteExtensions    *bool
	curves               string
	sigAlgsList          string
	cipherList           string
	certCompression      []CertCompression
	rootCAs              *x509.CertPool
	rootCAsLoader        func() (*x509.CertPool, error)
	trustPolicy          TrustStorePolicy
	preSharedKey         bool
	echConfigList        []byte
	helloID              utls.ClientHelloID
	connector            ConnectorOverride
}

// Option configures Settings.
type Option func(*Settings)

// NewSettings builds a Settings value. Every option has a default and
// no option can fail here; validation of cryptographic inputs is
// deferred to connector construction.
func NewSettings(opts ...Option) Settings {
	s := Settings{
		sni:               true,
		certsVerification: true,
		versionPref:       HTTPVersionAll,
		helloID:           utls.HelloChrome_Auto,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithSNI toggles sending SNI and verifying the peer hostname.
func WithSNI(enabled bool) Option {
	return func(s *Settings) { s.sni = enabled }
}

// WithHTTPVersionPref sets the HTTP version preference driving the ALPN
// list and the dual-layer derivation for websockets.
func WithHTTPVersionPref(pref HTTPVersionPref) Option {
	return func(s *Settings) { s.versionPref = pref }
}

// WithECHGrease toggles sending GREASE Encrypted ClientHello data.
func WithECHGrease(enabled bool) Option {
	return func(s *Settings) { s.echGrease = enabled }
}

// WithApplicationSettings toggles registering ALPS for the preferred
// protocol at handshake setup.
func WithApplicationSettings(enabled bool) Option {
	return func(s *Settings) { s.applicationSettings = enabled }
}

// WithCertsVerification toggles certificate chain verification.
func WithCertsVerification(enabled bool) Option {
	return func(s *Settings) { s.certsVerification = enabled }
}

// WithMinVersion bounds the protocol version from below.
func WithMinVersion(v Version) Option {
	return func(s *Settings) { s.minVersion = v }
}

// WithMaxVersion bounds the protocol version from above.
func WithMaxVersion(v Version) Option {
	return func(s *Settings) { s.maxVersion = v }
}

// WithOCSPStapling requests OCSP stapling from the peer.
func WithOCSPStapling() Option {
	return func(s *Settings) { s.ocspStapling = true }
}

// WithSignedCertTimestamps requests signed certificate timestamps.
func WithSignedCertTimestamps() Option {
	return func(s *Settings) { s.signedCertTimestamps = true }
}

// WithSessionTicket explicitly enables or disables session tickets.
// When unset the backend default is left untouched.
func WithSessionTicket(enabled bool) Option {
	return func(s *Settings) { s.sessionTicket = &enabled }
}

// WithGrease explicitly enables or disables GREASE values. When unset
// the backend default is left untouched.
func WithGrease(enabled bool) Option {
	return func(s *Settings) { s.grease = &enabled }
}

// WithPermuteExtensions explicitly enables or disables ClientHello
// extension permutation. When unset the backend default is left
// untouched.
func WithPermuteExtensions(enabled bool) Option {
	return func(s *Settings) { s.permuteExtensions = &enabled }
}

// WithCurves overrides the supported-groups list. The string is a
// colon-separated list of curve names, e.g.
// "X25519:P-256:P-384". Parsed at connector construction.
func WithCurves(list string) Option {
	return func(s *Settings) { s.curves = list }
}

// WithSigAlgsList overrides the signature-algorithms list. The string
// is a colon-separated list of scheme names, e.g.
// "ecdsa_secp256r1_sha256:rsa_pss_rsae_sha256". Parsed at connector
// construction.
func WithSigAlgsList(list string) Option {
	return func(s *Settings) { s.sigAlgsList = list }
}

// WithCipherList overrides the cipher-suite list. The string is a
// colon-separated list of suite names, e.g.
// "TLS_AES_128_GCM_SHA256:TLS_AES_256_GCM_SHA384". Parsed at connector
// construction.
func WithCipherList(list string) Option {
	return func(s *Settings) { s.cipherList = list }
}

// WithCertCompression registers certificate-compression algorithms in
// the advertised order.
func WithCertCompression(algs ...CertCompression) Option {
	return func(s *Settings) { s.certCompression = algs }
}

// WithRootCAs supplies an explicit trust store. It always wins over
// the trust-store policy.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(s *Settings) { s.rootCAs = pool }
}

// WithRootCAsLoader supplies a trust-store loader invoked once at
// connector construction. A loader failure aborts construction.
func WithRootCAsLoader(load func() (*x509.CertPool, error)) Option {
	return func(s *Settings) { s.rootCAsLoader = load }
}

// WithTrustStorePolicy sets the compiled-in store resolution policy.
func WithTrustStorePolicy(p TrustStorePolicy) Option {
	return func(s *Settings) { s.trustPolicy = p }
}

// WithPreSharedKey enables the TLS session-resumption cache.
func WithPreSharedKey(enabled bool) Option {
	return func(s *Settings) { s.preSharedKey = enabled }
}

// WithECHConfigList supplies a real ECH configuration list (as fetched
// from the HTTPS DNS record) instead of GREASE-only ECH.
func WithECHConfigList(configList []byte) Option {
	return func(s *Settings) { s.echConfigList = configList }
}

// WithClientHelloID sets the base ClientHello identity the layer
// derives its extension set and order from.
func WithClientHelloID(id utls.ClientHelloID) Option {
	return func(s *Settings) { s.helloID = id }
}

// WithConnectorOverride replaces the default low-level backend
// configuration builder.
func WithConnectorOverride(build ConnectorOverride) Option {
	return func(s *Settings) { s.connector = build }
}

// VersionPref returns the HTTP version preference of the settings.
func (s Settings) VersionPref() HTTPVersionPref {
	return s.versionPref
}
