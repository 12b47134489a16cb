package tlsconf

import (
	"errors"
	"fmt"
)

// errNoWebRoots is reported when a web-only trust policy is configured
// but no web-trust bundle was registered in this build.
var errNoWebRoots = errors.New("no web-trust bundle registered")

// ConfigError is a deterministic, caller-fixable configuration mistake:
// a malformed curve, cipher or signature-algorithm string, or an
// incomplete settings order. It is never retried or repaired.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "tlsconf: " + e.Reason
}

// BackendError wraps a failure reported by the TLS backend (or by
// parsing inputs destined for it) during connect-layer construction.
// The underlying error is surfaced verbatim, not translated away.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("tlsconf: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// TrustStoreError reports a custom trust store that is invalid or
// unreadable, or a failure loading a compiled-in store.
type TrustStoreError struct {
	Err error
}

func (e *TrustStoreError) Error() string {
	return fmt.Sprintf("tlsconf: trust store: %v", e.Err)
}

func (e *TrustStoreError) Unwrap() error {
	return e.Err
}
