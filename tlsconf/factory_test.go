package tlsconf

import (
	"crypto/x509"
	"errors"
	"reflect"
	"testing"

	utls "github.com/refraction-networking/utls"
)

func TestConnectLayerALPNFollowsPref(t *testing.T) {
	s := NewSettings()

	tests := []struct {
		name string
		pref HTTPVersionPref
		want []string
	}{
		{"all", HTTPVersionAll, []string{"h2", "http/1.1"}},
		{"http1", HTTPVersion1, []string{"http/1.1"}},
		{"http2", HTTPVersion2, []string{"h2"}},
	}

	for _, tt := range tests {
		layer, err := newConnectLayer(s, tt.pref)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if !reflect.DeepEqual(layer.conf.NextProtos, tt.want) {
			t.Errorf("%s: expected NextProtos %v, got %v", tt.name, tt.want, layer.conf.NextProtos)
		}
	}
}

func TestConnectLayerVersionBounds(t *testing.T) {
	s := NewSettings(
		WithMinVersion(VersionTLS12),
		WithMaxVersion(VersionTLS13),
	)
	layer, err := newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layer.conf.MinVersion != utls.VersionTLS12 {
		t.Errorf("expected min version 0x%x, got 0x%x", utls.VersionTLS12, layer.conf.MinVersion)
	}
	if layer.conf.MaxVersion != utls.VersionTLS13 {
		t.Errorf("expected max version 0x%x, got 0x%x", utls.VersionTLS13, layer.conf.MaxVersion)
	}
}

func TestConnectLayerSessionCache(t *testing.T) {
	// Cache attaches only when pre-shared keys are requested.
	s := NewSettings(WithPreSharedKey(true))
	layer, err := newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !layer.cacheEnabled {
		t.Error("expected session cache enabled with pre-shared key")
	}
	if layer.conf.ClientSessionCache == nil {
		t.Error("expected ClientSessionCache wired into the config")
	}
	if layer.cache.capacity != sessionCacheCapacity {
		t.Errorf("expected capacity %d, got %d", sessionCacheCapacity, layer.cache.capacity)
	}

	s = NewSettings()
	layer, err = newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layer.cacheEnabled {
		t.Error("expected session cache disabled without pre-shared key")
	}
	if layer.conf.ClientSessionCache != nil {
		t.Error("expected no ClientSessionCache without pre-shared key")
	}
}

func TestConnectLayerSessionTicketsDisabled(t *testing.T) {
	s := NewSettings(WithSessionTicket(false))
	layer, err := newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !layer.conf.SessionTicketsDisabled {
		t.Error("expected session tickets disabled at the record layer")
	}

	s = NewSettings(WithSessionTicket(true))
	layer, err = newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layer.conf.SessionTicketsDisabled {
		t.Error("expected session tickets enabled")
	}
}

func TestConnectLayerCertsVerification(t *testing.T) {
	s := NewSettings(WithCertsVerification(false))
	layer, err := newConnectLayer(s, HTTPVersionAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !layer.conf.InsecureSkipVerify {
		t.Error("expected verification off to set InsecureSkipVerify")
	}
}

func TestConnectLayerBadCurveListFails(t *testing.T) {
	s := NewSettings(WithCurves("X25519:NotACurve"))
	_, err := newConnectLayer(s, HTTPVersionAll)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Op != "set_curves" {
		t.Errorf("expected op set_curves, got %q", be.Op)
	}
}

func TestConnectLayerConnectorOverrideError(t *testing.T) {
	s := NewSettings(WithConnectorOverride(func() (*utls.Config, error) {
		return nil, errors.New("boom")
	}))
	_, err := newConnectLayer(s, HTTPVersionAll)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Op != "connector_override" {
		t.Errorf("expected op connector_override, got %q", be.Op)
	}
}

func TestResolveTrustStorePrecedence(t *testing.T) {
	explicit := x509.NewCertPool()
	webPool := x509.NewCertPool()

	saved := webRootsProvider
	defer func() { webRootsProvider = saved }()
	webRootsProvider = func() (*x509.CertPool, error) { return webPool, nil }

	// An explicit store wins over everything.
	s := NewSettings(WithRootCAs(explicit), WithTrustStorePolicy(TrustWebOnly))
	pool, err := resolveTrustStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != explicit {
		t.Error("expected the explicit pool to win over the trust policy")
	}

	// Web-only uses the registered bundle.
	s = NewSettings(WithTrustStorePolicy(TrustWebOnly))
	pool, err = resolveTrustStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != webPool {
		t.Error("expected the web bundle for the web-only policy")
	}

	// No override at all leaves the backend default untouched.
	s = NewSettings()
	pool, err = resolveTrustStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool != nil {
		t.Error("expected nil pool for the no-override policy")
	}
}

func TestResolveTrustStoreWebOnlyWithoutBundle(t *testing.T) {
	saved := webRootsProvider
	defer func() { webRootsProvider = saved }()
	webRootsProvider = nil

	s := NewSettings(WithTrustStorePolicy(TrustWebOnly))
	_, err := resolveTrustStore(s)
	var te *TrustStoreError
	if !errors.As(err, &te) {
		t.Fatalf("expected TrustStoreError, got %v", err)
	}
	if !errors.Is(err, errNoWebRoots) {
		t.Errorf("expected errNoWebRoots, got %v", te.Err)
	}
}

func TestResolveTrustStoreWebPreferredFallsBack(t *testing.T) {
	saved := webRootsProvider
	defer func() { webRootsProvider = saved }()
	webRootsProvider = nil

	s := NewSettings(WithTrustStorePolicy(TrustWebPreferredOverNative))
	pool, err := resolveTrustStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool == nil {
		t.Error("expected the native store when no web bundle is registered")
	}
}

func TestResolveTrustStoreLoaderError(t *testing.T) {
	s := NewSettings(WithRootCAsLoader(func() (*x509.CertPool, error) {
		return nil, errors.New("unreadable bundle")
	}))
	_, err := resolveTrustStore(s)
	var te *TrustStoreError
	if !errors.As(err, &te) {
		t.Fatalf("expected TrustStoreError, got %v", err)
	}
}
