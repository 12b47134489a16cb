package impersonate

import (
	"net/http"
	"runtime"

	utls "github.com/refraction-networking/utls"

	"github.com/1Maze/rquest/http2conf"
	"github.com/1Maze/rquest/tlsconf"
)

// platformInfo carries the platform-dependent header values.
type platformInfo struct {
	userAgentOS        string
	platform           string
	firefoxUserAgentOS string
}

// currentPlatform derives platform header values from the runtime OS.
func currentPlatform() platformInfo {
	switch runtime.GOOS {
	case "windows":
		return platformInfo{
			userAgentOS:        "(Windows NT 10.0; Win64; x64)",
			platform:           "Windows",
			firefoxUserAgentOS: "(Windows NT 10.0; Win64; x64; rv:133.0)",
		}
	case "darwin":
		return platformInfo{
			userAgentOS:        "(Macintosh; Intel Mac OS X 10_15_7)",
			platform:           "macOS",
			firefoxUserAgentOS: "(Macintosh; Intel Mac OS X 10.15; rv:133.0)",
		}
	default:
		return platformInfo{
			userAgentOS:        "(X11; Linux x86_64)",
			platform:           "Linux",
			firefoxUserAgentOS: "(X11; Linux x86_64; rv:133.0)",
		}
	}
}

func headerDefaults(userAgent string, defaults map[string]string) HeaderStrategy {
	return func(h http.Header) {
		h.Set("User-Agent", userAgent)
		for k, v := range defaults {
			h.Set(k, v)
		}
	}
}

// Chrome133 returns the Chrome 133 identity.
func Chrome133() *Profile {
	p := currentPlatform()
	tls := tlsconf.NewSettings(
		tlsconf.WithClientHelloID(utls.HelloChrome_133),
		tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersionAll),
		tlsconf.WithECHGrease(true),
		tlsconf.WithApplicationSettings(true),
		tlsconf.WithCertCompression(tlsconf.CertCompressionBrotli),
		tlsconf.WithGrease(true),
		tlsconf.WithPermuteExtensions(true),
		tlsconf.WithPreSharedKey(true),
		tlsconf.WithMinVersion(tlsconf.VersionTLS12),
		tlsconf.WithMaxVersion(tlsconf.VersionTLS13),
	)
	h2 := http2conf.Settings{
		HeaderTableSize:             65536,
		EnablePush:                  false,
		InitialStreamWindowSize:     6291456,
		InitialConnectionWindowSize: 15728640,
		MaxHeaderListSize:           262144,
		Priority: &http2conf.Priority{
			Weight:    256,
			StreamDep: 0,
			Exclusive: true,
		},
		SettingsOrder: []http2conf.SettingID{
			http2conf.SettingHeaderTableSize,
			http2conf.SettingEnablePush,
			http2conf.SettingMaxConcurrentStreams,
			http2conf.SettingInitialWindowSize,
			http2conf.SettingMaxFrameSize,
			http2conf.SettingMaxHeaderListSize,
		},
		PseudoHeaderOrder: []http2conf.PseudoHeader{
			http2conf.PseudoMethod,
			http2conf.PseudoAuthority,
			http2conf.PseudoScheme,
			http2conf.PseudoPath,
		},
	}
	headers := headerDefaults(
		"Mozilla/5.0 "+p.userAgentOS+" AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
		map[string]string{
			// Low-entropy client hints only; high-entropy hints are
			// sent only after the server asks via Accept-CH.
			"sec-ch-ua":          `"Google Chrome";v="133", "Chromium";v="133", "Not_A Brand";v="24"`,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"` + p.platform + `"`,
			"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
			"Accept-Encoding":    "gzip, deflate, br, zstd",
			"Accept-Language":    "en-US,en;q=0.9",
			"Sec-Fetch-Site":     "none",
			"Sec-Fetch-Mode":     "navigate",
			"Sec-Fetch-User":     "?1",
			"Sec-Fetch-Dest":     "document",
			"Upgrade-Insecure-Requests": "1",
			"Priority":                  "u=0, i",
		},
	)
	return NewProfile("chrome-133", tls, h2, headers)
}

// Firefox133 returns the Firefox 133 identity.
func Firefox133() *Profile {
	p := currentPlatform()
	tls := tlsconf.NewSettings(
		tlsconf.WithClientHelloID(utls.HelloFirefox_120),
		tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersionAll),
		tlsconf.WithCertCompression(tlsconf.CertCompressionBrotli, tlsconf.CertCompressionZlib, tlsconf.CertCompressionZstd),
		tlsconf.WithPreSharedKey(true),
		tlsconf.WithMinVersion(tlsconf.VersionTLS12),
		tlsconf.WithMaxVersion(tlsconf.VersionTLS13),
	)
	h2 := http2conf.Settings{
		HeaderTableSize:             65536,
		EnablePush:                  true,
		InitialStreamWindowSize:     131072,
		InitialConnectionWindowSize: 12582912,
		MaxFrameSize:                16384,
		Priority: &http2conf.Priority{
			Weight:    42,
			StreamDep: 0,
			Exclusive: false,
		},
		SettingsOrder: []http2conf.SettingID{
			http2conf.SettingHeaderTableSize,
			http2conf.SettingEnablePush,
			http2conf.SettingInitialWindowSize,
			http2conf.SettingMaxFrameSize,
			http2conf.SettingMaxConcurrentStreams,
			http2conf.SettingMaxHeaderListSize,
		},
		PseudoHeaderOrder: []http2conf.PseudoHeader{
			http2conf.PseudoMethod,
			http2conf.PseudoPath,
			http2conf.PseudoAuthority,
			http2conf.PseudoScheme,
		},
	}
	headers := headerDefaults(
		"Mozilla/5.0 "+p.firefoxUserAgentOS+" Gecko/20100101 Firefox/133.0",
		map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
			"Accept-Encoding": "gzip, deflate, br",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
			"Sec-Fetch-Site":  "none",
			"Sec-Fetch-User":  "?1",
		},
	)
	return NewProfile("firefox-133", tls, h2, headers)
}

// Safari18 returns the Safari 18 identity.
func Safari18() *Profile {
	tls := tlsconf.NewSettings(
		tlsconf.WithClientHelloID(utls.HelloSafari_16_0),
		tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersionAll),
		tlsconf.WithCertCompression(tlsconf.CertCompressionZlib),
		tlsconf.WithMinVersion(tlsconf.VersionTLS10),
		tlsconf.WithMaxVersion(tlsconf.VersionTLS13),
	)
	h2 := http2conf.Settings{
		EnablePush:                  false,
		MaxConcurrentStreams:        100,
		InitialStreamWindowSize:     2097152,
		InitialConnectionWindowSize: 10551295,
		Priority: &http2conf.Priority{
			Weight:    255,
			StreamDep: 0,
			Exclusive: false,
		},
		SettingsOrder: []http2conf.SettingID{
			http2conf.SettingEnablePush,
			http2conf.SettingInitialWindowSize,
			http2conf.SettingMaxConcurrentStreams,
			http2conf.SettingHeaderTableSize,
			http2conf.SettingMaxFrameSize,
			http2conf.SettingMaxHeaderListSize,
		},
		PseudoHeaderOrder: []http2conf.PseudoHeader{
			http2conf.PseudoMethod,
			http2conf.PseudoScheme,
			http2conf.PseudoPath,
			http2conf.PseudoAuthority,
		},
	}
	headers := headerDefaults(
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
		map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, deflate, br",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
			"Sec-Fetch-Site":  "none",
		},
	)
	return NewProfile("safari-18", tls, h2, headers)
}

// OkHTTP returns the OkHttp (Android) identity. Its cryptographic
// parameter lists are carried declaratively, exercising the string
// overrides rather than a baked-in hello.
func OkHTTP() *Profile {
	tls := tlsconf.NewSettings(
		tlsconf.WithClientHelloID(utls.HelloChrome_120),
		tlsconf.WithHTTPVersionPref(tlsconf.HTTPVersionAll),
		tlsconf.WithCurves("X25519:P-256:P-384"),
		tlsconf.WithSigAlgsList("ecdsa_secp256r1_sha256:rsa_pss_rsae_sha256:rsa_pkcs1_sha256:ecdsa_secp384r1_sha384:rsa_pss_rsae_sha384:rsa_pkcs1_sha384:rsa_pss_rsae_sha512:rsa_pkcs1_sha512:rsa_pkcs1_sha1"),
		tlsconf.WithCipherList("TLS_AES_128_GCM_SHA256:TLS_AES_256_GCM_SHA384:TLS_CHACHA20_POLY1305_SHA256:TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:TLS_RSA_WITH_AES_128_GCM_SHA256:TLS_RSA_WITH_AES_256_GCM_SHA384:TLS_RSA_WITH_AES_128_CBC_SHA:TLS_RSA_WITH_AES_256_CBC_SHA"),
		tlsconf.WithSessionTicket(false),
		tlsconf.WithMinVersion(tlsconf.VersionTLS12),
		tlsconf.WithMaxVersion(tlsconf.VersionTLS13),
	)
	h2 := http2conf.Settings{
		InitialStreamWindowSize:     16777216,
		InitialConnectionWindowSize: 16777216,
		MaxConcurrentStreams:        0,
		PseudoHeaderOrder: []http2conf.PseudoHeader{
			http2conf.PseudoMethod,
			http2conf.PseudoPath,
			http2conf.PseudoAuthority,
			http2conf.PseudoScheme,
		},
	}
	headers := headerDefaults("okhttp/4.12.0", map[string]string{
		"Accept-Encoding": "gzip",
	})
	return NewProfile("okhttp-4", tls, h2, headers)
}

var presets = map[string]func() *Profile{
	"chrome-133":  Chrome133,
	"firefox-133": Firefox133,
	"safari-18":   Safari18,
	"okhttp-4":    OkHTTP,
}

// Get returns a preset profile by name, or Chrome133 as default.
func Get(name string) *Profile {
	if fn, ok := presets[name]; ok {
		return fn()
	}
	return Chrome133()
}

// Available returns the preset names.
func Available() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
