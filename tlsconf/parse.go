package tlsconf

import (
	"fmt"
	"strconv"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Curve, signature-algorithm and cipher lists arrive as colon-separated
// strings so profiles can carry them declaratively. They are parsed
// once, at connect-layer construction; a name the backend does not know
// is a construction failure, never a silent skip.

var curveNames = map[string]utls.CurveID{
	"X25519":                utls.X25519,
	"P-256":                 utls.CurveP256,
	"secp256r1":             utls.CurveP256,
	"prime256v1":            utls.CurveP256,
	"P-384":                 utls.CurveP384,
	"secp384r1":             utls.CurveP384,
	"P-521":                 utls.CurveP521,
	"secp521r1":             utls.CurveP521,
	"X25519MLKEM768":        utls.X25519MLKEM768,
	"X25519Kyber768Draft00": utls.X25519Kyber768Draft00,
}

var sigAlgNames = map[string]utls.SignatureScheme{
	"ecdsa_secp256r1_sha256": utls.ECDSAWithP256AndSHA256,
	"ecdsa_secp384r1_sha384": utls.ECDSAWithP384AndSHA384,
	"ecdsa_secp521r1_sha512": utls.ECDSAWithP521AndSHA512,
	"ecdsa_sha1":             utls.ECDSAWithSHA1,
	"rsa_pss_rsae_sha256":    utls.PSSWithSHA256,
	"rsa_pss_rsae_sha384":    utls.PSSWithSHA384,
	"rsa_pss_rsae_sha512":    utls.PSSWithSHA512,
	"rsa_pkcs1_sha256":       utls.PKCS1WithSHA256,
	"rsa_pkcs1_sha384":       utls.PKCS1WithSHA384,
	"rsa_pkcs1_sha512":       utls.PKCS1WithSHA512,
	"rsa_pkcs1_sha1":         utls.PKCS1WithSHA1,
	"ed25519":                utls.Ed25519,
}

var cipherNames = map[string]uint16{
	"TLS_AES_128_GCM_SHA256":                        utls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":                        utls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256":                  utls.TLS_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256":       utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":         utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384":       utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":         utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256": utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256":   utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA":          utls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA":            utls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA":            utls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	"TLS_RSA_WITH_AES_128_GCM_SHA256":               utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_RSA_WITH_AES_256_GCM_SHA384":               utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_RSA_WITH_AES_128_CBC_SHA":                  utls.TLS_RSA_WITH_AES_128_CBC_SHA,
	"TLS_RSA_WITH_AES_256_CBC_SHA":                  utls.TLS_RSA_WITH_AES_256_CBC_SHA,
}

func parseCurves(list string) ([]utls.CurveID, error) {
	parts, err := splitList(list)
	if err != nil {
		return nil, &BackendError{Op: "set_curves", Err: err}
	}
	curves := make([]utls.CurveID, 0, len(parts))
	for _, name := range parts {
		if id, ok := curveNames[name]; ok {
			curves = append(curves, id)
			continue
		}
		if v, ok := parseNumeric(name); ok {
			curves = append(curves, utls.CurveID(v))
			continue
		}
		return nil, &BackendError{Op: "set_curves", Err: fmt.Errorf("unknown curve %q", name)}
	}
	return curves, nil
}

func parseSigAlgs(list string) ([]utls.SignatureScheme, error) {
	parts, err := splitList(list)
	if err != nil {
		return nil, &BackendError{Op: "set_sigalgs_list", Err: err}
	}
	schemes := make([]utls.SignatureScheme, 0, len(parts))
	for _, name := range parts {
		if s, ok := sigAlgNames[name]; ok {
			schemes = append(schemes, s)
			continue
		}
		if v, ok := parseNumeric(name); ok {
			schemes = append(schemes, utls.SignatureScheme(v))
			continue
		}
		return nil, &BackendError{Op: "set_sigalgs_list", Err: fmt.Errorf("unknown signature algorithm %q", name)}
	}
	return schemes, nil
}

func parseCiphers(list string) ([]uint16, error) {
	parts, err := splitList(list)
	if err != nil {
		return nil, &BackendError{Op: "set_cipher_list", Err: err}
	}
	suites := make([]uint16, 0, len(parts))
	for _, name := range parts {
		if id, ok := cipherNames[name]; ok {
			suites = append(suites, id)
			continue
		}
		if v, ok := parseNumeric(name); ok {
			suites = append(suites, v)
			continue
		}
		return nil, &BackendError{Op: "set_cipher_list", Err: fmt.Errorf("unknown cipher %q", name)}
	}
	return suites, nil
}

// splitList splits a colon-separated list, rejecting empty members so a
// typo like "X25519::P-256" surfaces instead of vanishing.
func splitList(list string) ([]string, error) {
	parts := strings.Split(list, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty member in list %q", list)
		}
		out = append(out, p)
	}
	return out, nil
}

// parseNumeric accepts raw decimal or 0x-prefixed hex identifiers for
// values the name tables do not cover.
func parseNumeric(s string) (uint16, bool) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
