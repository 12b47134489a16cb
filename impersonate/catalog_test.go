package impersonate

import (
	"errors"
	"testing"

	"github.com/1Maze/rquest/http2conf"
	"github.com/1Maze/rquest/tlsconf"
)

const testCatalog = `
profiles:
  - name: custom-chrome
    hello_id: chrome-133
    tls:
      alpn: all
      ech_grease: true
      application_settings: true
      pre_shared_key: true
      min_version: "1.2"
      max_version: "1.3"
      cert_compression: [brotli]
    http2:
      header_table_size: 65536
      initial_stream_window: 6291456
      initial_connection_window: 15728640
      max_header_list_size: 262144
      settings_order: [1, 2, 3, 4, 5, 6]
      pseudo_header_order: "m,a,s,p"
      priority:
        weight: 256
        exclusive: true
    headers:
      User-Agent: "custom agent"
  - name: legacy-http1
    hello_id: safari-16
    tls:
      alpn: http1
    http2:
      pseudo_header_order: "m,s,p,a"
`

func TestParseCatalog(t *testing.T) {
	profiles, err := ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	p, ok := profiles["custom-chrome"]
	if !ok {
		t.Fatal("expected the custom-chrome profile")
	}
	h2 := p.HTTP2()
	if h2.HeaderTableSize != 65536 {
		t.Errorf("expected header table 65536, got %d", h2.HeaderTableSize)
	}
	if h2.InitialConnectionWindowSize != 15728640 {
		t.Errorf("expected connection window 15728640, got %d", h2.InitialConnectionWindowSize)
	}
	want := []http2conf.PseudoHeader{
		http2conf.PseudoMethod, http2conf.PseudoAuthority,
		http2conf.PseudoScheme, http2conf.PseudoPath,
	}
	for i, ph := range h2.PseudoHeaderOrder {
		if ph != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ph)
		}
	}
	if h2.Priority == nil || h2.Priority.Weight != 256 || !h2.Priority.Exclusive {
		t.Errorf("expected exclusive priority weight 256, got %+v", h2.Priority)
	}
	if p.TLS().VersionPref() != tlsconf.HTTPVersionAll {
		t.Errorf("expected the all preference, got %v", p.TLS().VersionPref())
	}

	legacy := profiles["legacy-http1"]
	if legacy.TLS().VersionPref() != tlsconf.HTTPVersion1 {
		t.Errorf("expected the http1 preference, got %v", legacy.TLS().VersionPref())
	}
}

func TestParseCatalogMaterializesConnectors(t *testing.T) {
	profiles, err := ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	for name, p := range profiles {
		if _, err := p.NewConnector(); err != nil {
			t.Errorf("%s: connector construction failed: %v", name, err)
		}
	}
}

func TestParseCatalogUnknownHelloID(t *testing.T) {
	doc := `
profiles:
  - name: bad
    hello_id: mosaic-1
`
	_, err := ParseCatalog([]byte(doc))
	var ce *tlsconf.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestParseCatalogBadPseudoOrder(t *testing.T) {
	doc := `
profiles:
  - name: bad
    http2:
      pseudo_header_order: "m,q,s,p"
`
	if _, err := ParseCatalog([]byte(doc)); err == nil {
		t.Error("expected error for an unknown pseudo header")
	}
}

func TestParseCatalogIncompleteSettingsOrder(t *testing.T) {
	doc := `
profiles:
  - name: bad
    http2:
      settings_order: [1, 2]
`
	_, err := ParseCatalog([]byte(doc))
	if !errors.Is(err, http2conf.ErrMalformedOrder) {
		t.Fatalf("expected ErrMalformedOrder, got %v", err)
	}
}

func TestParseCatalogDuplicateName(t *testing.T) {
	doc := `
profiles:
  - name: twin
  - name: twin
`
	if _, err := ParseCatalog([]byte(doc)); err == nil {
		t.Error("expected error for duplicate profile names")
	}
}

func TestParseCatalogMissingName(t *testing.T) {
	doc := `
profiles:
  - hello_id: chrome-133
`
	if _, err := ParseCatalog([]byte(doc)); err == nil {
		t.Error("expected error for a profile without a name")
	}
}
