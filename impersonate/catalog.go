package impersonate

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	utls "github.com/refraction-networking/utls"

	"github.com/1Maze/rquest/http2conf"
	"github.com/1Maze/rquest/tlsconf"
)

// catalogDoc is the on-disk shape of a profile catalog.
type catalogDoc struct {
	Profiles []profileDoc `yaml:"profiles"`
}

type profileDoc struct {
	Name    string            `yaml:"name"`
	HelloID string            `yaml:"hello_id"`
	TLS     tlsDoc            `yaml:"tls"`
	HTTP2   http2Doc          `yaml:"http2"`
	Headers map[string]string `yaml:"headers"`
}

type tlsDoc struct {
	ALPN                string   `yaml:"alpn"`
	ECHGrease           bool     `yaml:"ech_grease"`
	ApplicationSettings bool     `yaml:"application_settings"`
	Grease              *bool    `yaml:"grease"`
	PermuteExtensions   *bool    `yaml:"permute_extensions"`
	SessionTicket       *bool    `yaml:"session_ticket"`
	PreSharedKey        bool     `yaml:"pre_shared_key"`
	MinVersion          string   `yaml:"min_version"`
	MaxVersion          string   `yaml:"max_version"`
	Curves              string   `yaml:"curves"`
	SigAlgs             string   `yaml:"sigalgs"`
	Ciphers             string   `yaml:"ciphers"`
	CertCompression     []string `yaml:"cert_compression"`
}

type http2Doc struct {
	HeaderTableSize         uint32       `yaml:"header_table_size"`
	EnablePush              bool         `yaml:"enable_push"`
	MaxConcurrentStreams    uint32       `yaml:"max_concurrent_streams"`
	InitialStreamWindow     uint32       `yaml:"initial_stream_window"`
	InitialConnectionWindow uint32       `yaml:"initial_connection_window"`
	MaxFrameSize            uint32       `yaml:"max_frame_size"`
	MaxHeaderListSize       uint32       `yaml:"max_header_list_size"`
	SettingsOrder           []uint16     `yaml:"settings_order"`
	PseudoHeaderOrder       string       `yaml:"pseudo_header_order"`
	Priority                *priorityDoc `yaml:"priority"`
}

type priorityDoc struct {
	Weight    uint16 `yaml:"weight"`
	StreamDep uint32 `yaml:"stream_dep"`
	Exclusive bool   `yaml:"exclusive"`
}

var helloIDs = map[string]utls.ClientHelloID{
	"chrome-120":  utls.HelloChrome_120,
	"chrome-131":  utls.HelloChrome_131,
	"chrome-133":  utls.HelloChrome_133,
	"firefox-120": utls.HelloFirefox_120,
	"safari-16":   utls.HelloSafari_16_0,
	"auto":        utls.HelloChrome_Auto,
}

// LoadCatalog reads a YAML profile catalog from path.
func LoadCatalog(path string) (map[string]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML profile catalog and materializes each
// entry into a Profile. Ordering fields are validated here so a bad
// catalog fails at load time rather than on first connection.
func ParseCatalog(data []byte) (map[string]*Profile, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile catalog: %w", err)
	}
	profiles := make(map[string]*Profile, len(doc.Profiles))
	for _, pd := range doc.Profiles {
		if pd.Name == "" {
			return nil, &tlsconf.ConfigError{Reason: "profile missing name"}
		}
		if _, dup := profiles[pd.Name]; dup {
			return nil, &tlsconf.ConfigError{Reason: "duplicate profile name " + pd.Name}
		}
		p, err := buildProfile(pd)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", pd.Name, err)
		}
		profiles[pd.Name] = p
	}
	return profiles, nil
}

func buildProfile(pd profileDoc) (*Profile, error) {
	opts, err := tlsOptions(pd)
	if err != nil {
		return nil, err
	}
	h2, err := http2Settings(pd.HTTP2)
	if err != nil {
		return nil, err
	}
	headers := pd.Headers
	strategy := func(h http.Header) {
		for k, v := range headers {
			h.Set(k, v)
		}
	}
	return NewProfile(pd.Name, tlsconf.NewSettings(opts...), h2, strategy), nil
}

func tlsOptions(pd profileDoc) ([]tlsconf.Option, error) {
	var opts []tlsconf.Option
	if pd.HelloID != "" {
		id, ok := helloIDs[pd.HelloID]
		if !ok {
			return nil, &tlsconf.ConfigError{Reason: "unknown hello_id " + pd.HelloID}
		}
		opts = append(opts, tlsconf.WithClientHelloID(id))
	}
	td := pd.TLS
	switch td.ALPN {
	case "", "all":
		opts = append(opts, tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersionAll))
	case "http1":
		opts = append(opts, tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersion1))
	case "http2":
		opts = append(opts, tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersion2))
	default:
		return nil, &tlsconf.ConfigError{Reason: "unknown alpn preference " + td.ALPN}
	}
	if td.ECHGrease {
		opts = append(opts, tlsconf.WithECHGrease(true))
	}
	if td.ApplicationSettings {
		opts = append(opts, tlsconf.WithApplicationSettings(true))
	}
	if td.Grease != nil {
		opts = append(opts, tlsconf.WithGrease(*td.Grease))
	}
	if td.PermuteExtensions != nil {
		opts = append(opts, tlsconf.WithPermuteExtensions(*td.PermuteExtensions))
	}
	if td.SessionTicket != nil {
		opts = append(opts, tlsconf.WithSessionTicket(*td.SessionTicket))
	}
	if td.PreSharedKey {
		opts = append(opts, tlsconf.WithPreSharedKey(true))
	}
	if td.MinVersion != "" {
		v, err := parseVersion(td.MinVersion)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tlsconf.WithMinVersion(v))
	}
	if td.MaxVersion != "" {
		v, err := parseVersion(td.MaxVersion)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tlsconf.WithMaxVersion(v))
	}
	if td.Curves != "" {
		opts = append(opts, tlsconf.WithCurves(td.Curves))
	}
	if td.SigAlgs != "" {
		opts = append(opts, tlsconf.WithSigAlgsList(td.SigAlgs))
	}
	if td.Ciphers != "" {
		opts = append(opts, tlsconf.WithCipherList(td.Ciphers))
	}
	if len(td.CertCompression) > 0 {
		algs := make([]tlsconf.CertCompression, 0, len(td.CertCompression))
		for _, name := range td.CertCompression {
			switch name {
			case "zlib":
				algs = append(algs, tlsconf.CertCompressionZlib)
			case "brotli":
				algs = append(algs, tlsconf.CertCompressionBrotli)
			case "zstd":
				algs = append(algs, tlsconf.CertCompressionZstd)
			default:
				return nil, &tlsconf.ConfigError{Reason: "unknown cert compression " + name}
			}
		}
		opts = append(opts, tlsconf.WithCertCompression(algs...))
	}
	return opts, nil
}

func parseVersion(s string) (tlsconf.Version, error) {
	switch s {
	case "1.0":
		return tlsconf.VersionTLS10, nil
	case "1.1":
		return tlsconf.VersionTLS11, nil
	case "1.2":
		return tlsconf.VersionTLS12, nil
	case "1.3":
		return tlsconf.VersionTLS13, nil
	}
	return tlsconf.Version{}, &tlsconf.ConfigError{Reason: "unknown TLS version " + s}
}

func http2Settings(hd http2Doc) (http2conf.Settings, error) {
	s := http2conf.Settings{
		HeaderTableSize:             hd.HeaderTableSize,
		EnablePush:                  hd.EnablePush,
		MaxConcurrentStreams:        hd.MaxConcurrentStreams,
		InitialStreamWindowSize:     hd.InitialStreamWindow,
		InitialConnectionWindowSize: hd.InitialConnectionWindow,
		MaxFrameSize:                hd.MaxFrameSize,
		MaxHeaderListSize:           hd.MaxHeaderListSize,
	}
	if len(hd.SettingsOrder) > 0 {
		order := make([]http2conf.SettingID, len(hd.SettingsOrder))
		for i, id := range hd.SettingsOrder {
			order[i] = http2conf.SettingID(id)
		}
		s.SettingsOrder = order
	}
	if hd.PseudoHeaderOrder != "" {
		order, err := parsePseudoOrder(hd.PseudoHeaderOrder)
		if err != nil {
			return http2conf.Settings{}, err
		}
		s.PseudoHeaderOrder = order
	}
	if hd.Priority != nil {
		s.Priority = &http2conf.Priority{
			Weight:    hd.Priority.Weight,
			StreamDep: hd.Priority.StreamDep,
			Exclusive: hd.Priority.Exclusive,
		}
	}
	if err := s.Validate(); err != nil {
		return http2conf.Settings{}, err
	}
	return s, nil
}

// parsePseudoOrder reads the compact "m,a,s,p" notation.
func parsePseudoOrder(s string) ([]http2conf.PseudoHeader, error) {
	parts := strings.Split(s, ",")
	order := make([]http2conf.PseudoHeader, 0, len(parts))
	for _, part := range parts {
		switch strings.TrimSpace(part) {
		case "m":
			order = append(order, http2conf.PseudoMethod)
		case "a":
			order = append(order, http2conf.PseudoAuthority)
		case "s":
			order = append(order, http2conf.PseudoScheme)
		case "p":
			order = append(order, http2conf.PseudoPath)
		default:
			return nil, &tlsconf.ConfigError{Reason: "unknown pseudo header " + part}
		}
	}
	return order, nil
}
