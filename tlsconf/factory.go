package tlsconf

import (
	"crypto/x509"

	"github.com/1Maze/rquest/keylog"
	utls "github.com/refraction-networking/utls"
)

// connectLayer is the finished, immutable product of the factory: the
// backend configuration template plus the pre-parsed ClientHello
// overrides. Layers are shared by reference across every connection of
// a connector and are never mutated after construction, so cloning a
// handle never re-runs the fallible construction steps.
type connectLayer struct {
	conf    *utls.Config
	helloID utls.ClientHelloID
	alpn    []string

	curves          []utls.CurveID
	sigAlgs         []utls.SignatureScheme
	ciphers         []uint16
	certCompression []utls.CertCompressionAlgo
	ocspStapling    bool
	sctRequest      bool
	sessionTicket   *bool
	grease          *bool
	permute         *bool

	cache        *sessionCache
	cacheEnabled bool
}

// newConnectLayer turns a Settings snapshot and an HTTP version
// preference into a connect layer. The preference may differ from the
// settings' own preference when deriving the websocket-forced layer.
//
// Any backend rejection aborts construction entirely; there is no
// partial or best-effort fallback.
func newConnectLayer(s Settings, pref HTTPVersionPref) (*connectLayer, error) {
	// Base low-level configuration: caller override if present,
	// otherwise a fresh client-mode one.
	var conf *utls.Config
	if s.connector != nil {
		base, err := s.connector()
		if err != nil {
			return nil, &BackendError{Op: "connector_override", Err: err}
		}
		conf = base.Clone()
	} else {
		conf = &utls.Config{}
	}

	// Certificate verification mode.
	conf.InsecureSkipVerify = !s.certsVerification

	// ALPN follows the version preference, never the settings' own.
	alpn := pref.alpnProtocols()
	conf.NextProtos = alpn

	// Protocol version bounds.
	if s.minVersion != (Version{}) {
		conf.MinVersion = s.minVersion.v
	}
	if s.maxVersion != (Version{}) {
		conf.MaxVersion = s.maxVersion.v
	}

	layer := &connectLayer{
		conf:          conf,
		helloID:       s.helloID,
		alpn:          alpn,
		ocspStapling:  s.ocspStapling,
		sctRequest:    s.signedCertTimestamps,
		sessionTicket: s.sessionTicket,
		grease:        s.grease,
		permute:       s.permuteExtensions,
	}

	// Explicitly disabled session tickets also disable them at the
	// record layer, not just in the advertised extension set.
	if s.sessionTicket != nil && !*s.sessionTicket {
		conf.SessionTicketsDisabled = true
	}

	// Cryptographic parameter lists: parsed here, each may fail with a
	// backend parse error.
	var err error
	if s.curves != "" {
		if layer.curves, err = parseCurves(s.curves); err != nil {
			return nil, err
		}
	}
	if s.sigAlgsList != "" {
		if layer.sigAlgs, err = parseSigAlgs(s.sigAlgsList); err != nil {
			return nil, err
		}
	}
	if s.cipherList != "" {
		if layer.ciphers, err = parseCiphers(s.cipherList); err != nil {
			return nil, err
		}
		conf.CipherSuites = layer.ciphers
	}

	// Certificate compression registration.
	for _, cc := range s.certCompression {
		alg, err := cc.algo()
		if err != nil {
			return nil, err
		}
		layer.certCompression = append(layer.certCompression, alg)
	}

	// Trust store resolution: explicit store > web bundle > native
	// store > backend default.
	pool, err := resolveTrustStore(s)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		conf.RootCAs = pool
	}

	if len(s.echConfigList) > 0 {
		conf.EncryptedClientHelloConfigList = s.echConfigList
	}

	if w := keylog.Writer(); w != nil {
		conf.KeyLogWriter = w
	}

	// Session-bearing wrapper: fixed capacity, enabled iff the settings
	// request pre-shared keys.
	layer.cache = newSessionCache(sessionCacheCapacity)
	layer.cacheEnabled = s.preSharedKey
	if s.preSharedKey {
		conf.ClientSessionCache = layer.cache
	}

	// Surface unbuildable hello identities now rather than on the
	// first connection.
	if _, err := buildHelloSpec(layer, handshakeConfig{verifyHostname: true}); err != nil {
		return nil, err
	}

	return layer, nil
}

// resolveTrustStore picks the root pool for a layer. A nil pool with a
// nil error means the backend default is used unmodified.
func resolveTrustStore(s Settings) (*x509.CertPool, error) {
	if s.rootCAs != nil {
		return s.rootCAs, nil
	}
	if s.rootCAsLoader != nil {
		pool, err := s.rootCAsLoader()
		if err != nil {
			return nil, &TrustStoreError{Err: err}
		}
		return pool, nil
	}

	switch s.trustPolicy {
	case TrustWebOnly:
		if webRootsProvider == nil {
			return nil, &TrustStoreError{Err: errNoWebRoots}
		}
		pool, err := webRootsProvider()
		if err != nil {
			return nil, &TrustStoreError{Err: err}
		}
		return pool, nil

	case TrustWebPreferredOverNative:
		if webRootsProvider != nil {
			pool, err := webRootsProvider()
			if err != nil {
				return nil, &TrustStoreError{Err: err}
			}
			return pool, nil
		}
		fallthrough

	case TrustNativeOnly:
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, &TrustStoreError{Err: err}
		}
		return pool, nil

	default:
		return nil, nil
	}
}
