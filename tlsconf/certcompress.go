package tlsconf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	utls "github.com/refraction-networking/utls"
)

// CertCompression identifies a TLS certificate-compression algorithm
// (RFC 8879). The zero value means "not configured".
type CertCompression uint16

const (
	// CertCompressionZlib is the zlib algorithm (id 1).
	CertCompressionZlib CertCompression = 1
	// CertCompressionBrotli is the brotli algorithm (id 2). Chrome
	// advertises this one.
	CertCompressionBrotli CertCompression = 2
	// CertCompressionZstd is the zstd algorithm (id 3).
	CertCompressionZstd CertCompression = 3
)

// String returns the IANA name of the algorithm.
func (c CertCompression) String() string {
	switch c {
	case CertCompressionZlib:
		return "zlib"
	case CertCompressionBrotli:
		return "brotli"
	case CertCompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("cert-compression(%d)", uint16(c))
}

// algo maps the identifier onto the backend constant. Registering an
// unknown identifier fails connect-layer construction.
func (c CertCompression) algo() (utls.CertCompressionAlgo, error) {
	switch c {
	case CertCompressionZlib:
		return utls.CertCompressionZlib, nil
	case CertCompressionBrotli:
		return utls.CertCompressionBrotli, nil
	case CertCompressionZstd:
		return utls.CertCompressionZstd, nil
	}
	return 0, &BackendError{Op: "add_cert_compression_alg", Err: fmt.Errorf("unsupported algorithm %d", uint16(c))}
}

// Compress compresses a certificate message with the algorithm. Exposed
// so callers shaping their own handshake messages do not need to pick
// codec libraries themselves.
func (c CertCompression) Compress(msg []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case CertCompressionZlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(msg); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case CertCompressionBrotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(msg); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case CertCompressionZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(msg); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, &BackendError{Op: "cert_compression", Err: fmt.Errorf("unsupported algorithm %d", uint16(c))}
	}
	return buf.Bytes(), nil
}

// Decompress inflates a compressed certificate message. uncompressedLen
// is the length declared in the CompressedCertificate message; a
// mismatch is an error per RFC 8879.
func (c CertCompression) Decompress(msg []byte, uncompressedLen int) ([]byte, error) {
	var r io.Reader
	switch c {
	case CertCompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(msg))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case CertCompressionBrotli:
		r = brotli.NewReader(bytes.NewReader(msg))
	case CertCompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(msg))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, &BackendError{Op: "cert_decompression", Err: fmt.Errorf("unsupported algorithm %d", uint16(c))}
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(uncompressedLen)+1))
	if err != nil {
		return nil, err
	}
	if len(out) != uncompressedLen {
		return nil, fmt.Errorf("cert decompression: declared %d bytes, got %d", uncompressedLen, len(out))
	}
	return out, nil
}
