// Package http2conf captures HTTP/2 connection parameters together with
// their exact transmission order. Fingerprinting distinguishes clients
// by SETTINGS-frame field order and request pseudo-header order, not
// only by the values, so both orders are explicit, total and validated.
package http2conf

import (
	"errors"
	"fmt"
)

// SettingID identifies one HTTP/2 SETTINGS parameter (RFC 9113 §6.5.2).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// settingsUniverse is the closed enumeration a SettingsOrder must be a
// permutation of.
var settingsUniverse = []SettingID{
	SettingHeaderTableSize,
	SettingEnablePush,
	SettingMaxConcurrentStreams,
	SettingInitialWindowSize,
	SettingMaxFrameSize,
	SettingMaxHeaderListSize,
}

// String returns the RFC name of the setting.
func (id SettingID) String() string {
	switch id {
	case SettingHeaderTableSize:
		return "HEADER_TABLE_SIZE"
	case SettingEnablePush:
		return "ENABLE_PUSH"
	case SettingMaxConcurrentStreams:
		return "MAX_CONCURRENT_STREAMS"
	case SettingInitialWindowSize:
		return "INITIAL_WINDOW_SIZE"
	case SettingMaxFrameSize:
		return "MAX_FRAME_SIZE"
	case SettingMaxHeaderListSize:
		return "MAX_HEADER_LIST_SIZE"
	}
	return fmt.Sprintf("SETTINGS(0x%x)", uint16(id))
}

// PseudoHeader is one of the four HTTP/2 request pseudo-headers.
type PseudoHeader string

const (
	PseudoMethod    PseudoHeader = ":method"
	PseudoScheme    PseudoHeader = ":scheme"
	PseudoAuthority PseudoHeader = ":authority"
	PseudoPath      PseudoHeader = ":path"
)

var pseudoUniverse = []PseudoHeader{PseudoMethod, PseudoScheme, PseudoAuthority, PseudoPath}

// Priority carries the raw stream-priority parameters attached to the
// first request stream of a connection. Weight is the logical weight
// (Chrome uses 256); the wire encodes weight-1.
type Priority struct {
	Weight    uint16
	StreamDep uint32
	Exclusive bool
}

// Settings is the HTTP/2 half of an impersonation profile. The value is
// treated as immutable once built and shared across connections.
//
// A nil SettingsOrder or PseudoHeaderOrder means the RFC order
// (ascending IDs; :method,:scheme,:authority,:path). A non-nil order
// must be an exact permutation of its universe; Validate rejects
// anything partial or duplicated, and the orders are never silently
// repaired.
type Settings struct {
	InitialStreamWindowSize     uint32
	InitialConnectionWindowSize uint32
	MaxConcurrentStreams        uint32
	MaxHeaderListSize           uint32
	HeaderTableSize             uint32
	MaxFrameSize                uint32
	EnablePush                  bool

	Priority          *Priority
	SettingsOrder     []SettingID
	PseudoHeaderOrder []PseudoHeader
}

// ErrMalformedOrder reports a SettingsOrder or PseudoHeaderOrder that is
// not a permutation of its universe.
var ErrMalformedOrder = errors.New("http2conf: malformed order")

// Validate checks both transmission orders. It is called by the frame
// layer on first use when the caller skipped it.
func (s *Settings) Validate() error {
	if s.SettingsOrder != nil {
		if err := validateSettingsOrder(s.SettingsOrder); err != nil {
			return err
		}
	}
	if s.PseudoHeaderOrder != nil {
		if err := validatePseudoOrder(s.PseudoHeaderOrder); err != nil {
			return err
		}
	}
	return nil
}

func validateSettingsOrder(order []SettingID) error {
	if len(order) != len(settingsUniverse) {
		return fmt.Errorf("%w: settings order has %d members, want %d", ErrMalformedOrder, len(order), len(settingsUniverse))
	}
	seen := make(map[SettingID]bool, len(order))
	for _, id := range order {
		if !knownSetting(id) {
			return fmt.Errorf("%w: unknown settings member %s", ErrMalformedOrder, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate settings member %s", ErrMalformedOrder, id)
		}
		seen[id] = true
	}
	return nil
}

func validatePseudoOrder(order []PseudoHeader) error {
	if len(order) != len(pseudoUniverse) {
		return fmt.Errorf("%w: pseudo-header order has %d members, want %d", ErrMalformedOrder, len(order), len(pseudoUniverse))
	}
	seen := make(map[PseudoHeader]bool, len(order))
	for _, ph := range order {
		if !knownPseudo(ph) {
			return fmt.Errorf("%w: unknown pseudo-header %q", ErrMalformedOrder, string(ph))
		}
		if seen[ph] {
			return fmt.Errorf("%w: duplicate pseudo-header %q", ErrMalformedOrder, string(ph))
		}
		seen[ph] = true
	}
	return nil
}

func knownSetting(id SettingID) bool {
	for _, u := range settingsUniverse {
		if id == u {
			return true
		}
	}
	return false
}

func knownPseudo(ph PseudoHeader) bool {
	for _, u := range pseudoUniverse {
		if ph == u {
			return true
		}
	}
	return false
}

// settingsOrder returns the effective order.
func (s *Settings) settingsOrder() []SettingID {
	if s.SettingsOrder != nil {
		return s.SettingsOrder
	}
	return settingsUniverse
}

// pseudoHeaderOrder returns the effective order.
func (s *Settings) pseudoHeaderOrder() []PseudoHeader {
	if s.PseudoHeaderOrder != nil {
		return s.PseudoHeaderOrder
	}
	return pseudoUniverse
}

// settingValue returns the configured value for id and whether the
// parameter is transmitted at all. ENABLE_PUSH is always transmitted
// (browsers send an explicit 0 or 1); other parameters are transmitted
// when non-zero.
func (s *Settings) settingValue(id SettingID) (uint32, bool) {
	switch id {
	case SettingHeaderTableSize:
		return s.HeaderTableSize, s.HeaderTableSize > 0
	case SettingEnablePush:
		if s.EnablePush {
			return 1, true
		}
		return 0, true
	case SettingMaxConcurrentStreams:
		return s.MaxConcurrentStreams, s.MaxConcurrentStreams > 0
	case SettingInitialWindowSize:
		return s.InitialStreamWindowSize, s.InitialStreamWindowSize > 0
	case SettingMaxFrameSize:
		return s.MaxFrameSize, s.MaxFrameSize > 0
	case SettingMaxHeaderListSize:
		return s.MaxHeaderListSize, s.MaxHeaderListSize > 0
	}
	return 0, false
}
