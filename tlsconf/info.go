package tlsconf

// TLSInfo is an immutable snapshot of TLS-layer facts captured once per
// completed handshake. It has no lifecycle beyond the connection it
// describes.
type TLSInfo struct {
	peerCertificate []byte
	version         Version
}

// PeerCertificate returns the DER-encoded leaf certificate of the peer,
// or nil when the peer presented none.
func (i *TLSInfo) PeerCertificate() []byte {
	return i.peerCertificate
}

// Version returns the negotiated protocol version.
func (i *TLSInfo) Version() Version {
	return i.version
}
