package tlsconf

import (
	utls "github.com/refraction-networking/utls"
)

// handshakeConfig is the per-connection configuration assembled by the
// connector callback at handshake-setup time, before any bytes are
// exchanged.
type handshakeConfig struct {
	echGrease      bool
	verifyHostname bool
	alps           []string
}

// buildHelloSpec derives the ClientHello for one connection attempt
// from the layer's base identity plus the recorded overrides. The
// fallible inputs were parsed at construction, so rebuilding per
// connection only fails if the backend cannot produce the base spec.
func buildHelloSpec(layer *connectLayer, hc handshakeConfig) (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(layer.helloID)
	if err != nil {
		return nil, &BackendError{Op: "client_hello_spec", Err: err}
	}

	if layer.conf.MinVersion != 0 {
		spec.TLSVersMin = layer.conf.MinVersion
	}
	if layer.conf.MaxVersion != 0 {
		spec.TLSVersMax = layer.conf.MaxVersion
	}
	if layer.ciphers != nil {
		spec.CipherSuites = layer.ciphers
	}

	exts := spec.Extensions

	// ALPN is always forced to the layer's list; everything else
	// touches the base identity only when explicitly requested.
	exts = setALPN(exts, layer.alpn)

	if layer.curves != nil {
		exts = setCurves(exts, layer.curves)
	}
	if layer.sigAlgs != nil {
		exts = setSigAlgs(exts, layer.sigAlgs)
	}
	if layer.certCompression != nil {
		exts = setCertCompression(exts, layer.certCompression)
	}
	if layer.ocspStapling {
		exts = ensureExtension(exts, &utls.StatusRequestExtension{}, isStatusRequest)
	}
	if layer.sctRequest {
		exts = ensureExtension(exts, &utls.SCTExtension{}, isSCT)
	}
	if layer.sessionTicket != nil {
		if *layer.sessionTicket {
			exts = ensureExtension(exts, &utls.SessionTicketExtension{}, isSessionTicket)
		} else {
			exts = removeExtensions(exts, isSessionTicket)
		}
	}
	if layer.grease != nil {
		if *layer.grease {
			exts = ensureLeadingGREASE(exts)
		} else {
			exts = removeExtensions(exts, isGREASEExt)
		}
	}

	if !hc.verifyHostname {
		exts = removeExtensions(exts, isSNI)
	}
	if hc.echGrease {
		exts = ensureExtension(exts, &utls.GREASEEncryptedClientHelloExtension{}, isECHGrease)
	} else {
		exts = removeExtensions(exts, isECHGrease)
	}
	if hc.alps != nil {
		exts = setALPS(exts, hc.alps)
	}

	// Any explicit order above stays authoritative: the backend shuffle
	// pins GREASE, padding and pre-shared-key positions and permutes
	// only the residual set.
	if layer.permute != nil && *layer.permute {
		exts = utls.ShuffleChromeTLSExtensions(exts)
	}

	spec.Extensions = exts
	return &spec, nil
}

func isSNI(e utls.TLSExtension) bool {
	_, ok := e.(*utls.SNIExtension)
	return ok
}

func isStatusRequest(e utls.TLSExtension) bool {
	_, ok := e.(*utls.StatusRequestExtension)
	return ok
}

func isSCT(e utls.TLSExtension) bool {
	_, ok := e.(*utls.SCTExtension)
	return ok
}

func isSessionTicket(e utls.TLSExtension) bool {
	_, ok := e.(*utls.SessionTicketExtension)
	return ok
}

func isGREASEExt(e utls.TLSExtension) bool {
	_, ok := e.(*utls.UtlsGREASEExtension)
	return ok
}

func isECHGrease(e utls.TLSExtension) bool {
	_, ok := e.(*utls.GREASEEncryptedClientHelloExtension)
	return ok
}

func isPadding(e utls.TLSExtension) bool {
	_, ok := e.(*utls.UtlsPaddingExtension)
	return ok
}

// setALPN rewrites the advertised protocol list in place, appending the
// extension when the base identity lacks one.
func setALPN(exts []utls.TLSExtension, alpn []string) []utls.TLSExtension {
	for _, e := range exts {
		if a, ok := e.(*utls.ALPNExtension); ok {
			a.AlpnProtocols = alpn
			return exts
		}
	}
	return insertBeforePadding(exts, &utls.ALPNExtension{AlpnProtocols: alpn})
}

// setCurves replaces the supported groups and narrows the key share to
// the first curve. Real clients generate a share only for the preferred
// group; the server retries if it wants another one.
func setCurves(exts []utls.TLSExtension, curves []utls.CurveID) []utls.TLSExtension {
	for _, e := range exts {
		switch ext := e.(type) {
		case *utls.SupportedCurvesExtension:
			ext.Curves = curves
		case *utls.KeyShareExtension:
			ext.KeyShares = []utls.KeyShare{{Group: curves[0]}}
		}
	}
	return exts
}

func setSigAlgs(exts []utls.TLSExtension, schemes []utls.SignatureScheme) []utls.TLSExtension {
	for _, e := range exts {
		if ext, ok := e.(*utls.SignatureAlgorithmsExtension); ok {
			ext.SupportedSignatureAlgorithms = schemes
			return exts
		}
	}
	return insertBeforePadding(exts, &utls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: schemes})
}

func setCertCompression(exts []utls.TLSExtension, algs []utls.CertCompressionAlgo) []utls.TLSExtension {
	for _, e := range exts {
		if ext, ok := e.(*utls.UtlsCompressCertExtension); ok {
			ext.Algorithms = algs
			return exts
		}
	}
	return insertBeforePadding(exts, &utls.UtlsCompressCertExtension{Algorithms: algs})
}

func setALPS(exts []utls.TLSExtension, protocols []string) []utls.TLSExtension {
	for _, e := range exts {
		if ext, ok := e.(*utls.ApplicationSettingsExtension); ok {
			ext.SupportedProtocols = protocols
			return exts
		}
	}
	return insertBeforePadding(exts, &utls.ApplicationSettingsExtension{SupportedProtocols: protocols})
}

// ensureExtension appends ext unless present satisfies an existing one.
func ensureExtension(exts []utls.TLSExtension, ext utls.TLSExtension, present func(utls.TLSExtension) bool) []utls.TLSExtension {
	for _, e := range exts {
		if present(e) {
			return exts
		}
	}
	return insertBeforePadding(exts, ext)
}

// ensureLeadingGREASE makes sure the hello starts with a GREASE
// extension, the position Chrome pins it to.
func ensureLeadingGREASE(exts []utls.TLSExtension) []utls.TLSExtension {
	for _, e := range exts {
		if isGREASEExt(e) {
			return exts
		}
	}
	return append([]utls.TLSExtension{&utls.UtlsGREASEExtension{}}, exts...)
}

func removeExtensions(exts []utls.TLSExtension, match func(utls.TLSExtension) bool) []utls.TLSExtension {
	out := exts[:0]
	for _, e := range exts {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}

// insertBeforePadding inserts ext before the padding extension so the
// padding keeps absorbing the length variance, or appends when the
// identity carries no padding.
func insertBeforePadding(exts []utls.TLSExtension, ext utls.TLSExtension) []utls.TLSExtension {
	for i, e := range exts {
		if isPadding(e) {
			out := make([]utls.TLSExtension, 0, len(exts)+1)
			out = append(out, exts[:i]...)
			out = append(out, ext)
			out = append(out, exts[i:]...)
			return out
		}
	}
	return append(exts, ext)
}
