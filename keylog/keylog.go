// Package keylog provides the SSLKEYLOGFILE sink connect layers write
// pre-master secrets to, so captured handshakes can be decrypted with
// Wireshark while validating a fingerprint.
//
// The sink is picked up from the SSLKEYLOGFILE environment variable at
// startup; SetFile and SetWriter override it at runtime. Connector
// construction reads the sink once per layer, so changes apply to
// layers built afterwards.
package keylog

import (
	"io"
	"os"
	"sync"
)

var (
	mu     sync.RWMutex
	writer io.Writer
)

func init() {
	path := os.Getenv("SSLKEYLOGFILE")
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		// Debug facility only; a bad path never breaks connectors.
		return
	}
	writer = f
}

// Writer returns the configured key log sink, or nil when key logging
// is off.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return writer
}

// SetFile points key logging at a file, overriding SSLKEYLOGFILE.
// An empty path disables logging.
func SetFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if closer, ok := writer.(io.Closer); ok {
		closer.Close()
	}
	writer = nil

	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	writer = f
	return nil
}

// SetWriter installs a custom sink, e.g. a buffer in tests. Passing nil
// disables logging.
func SetWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if closer, ok := writer.(io.Closer); ok {
		closer.Close()
	}
	writer = w
}

// Close releases a file sink opened by this package.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if closer, ok := writer.(io.Closer); ok {
		err = closer.Close()
	}
	writer = nil
	return err
}
