package http2conf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/net/http2/hpack"
)

// captureConn records everything written to it.
type captureConn struct {
	buf bytes.Buffer
}

func (c *captureConn) Write(p []byte) (int, error)        { return c.buf.Write(p) }
func (c *captureConn) Read(p []byte) (int, error)         { return 0, nil }
func (c *captureConn) Close() error                       { return nil }
func (c *captureConn) LocalAddr() net.Addr                { return nil }
func (c *captureConn) RemoteAddr() net.Addr               { return nil }
func (c *captureConn) SetDeadline(t time.Time) error      { return nil }
func (c *captureConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *captureConn) SetWriteDeadline(t time.Time) error { return nil }

func rawFrame(frameType, flags byte, streamID uint32, payload []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(payload))
	writeFrameHeader(frame, len(payload), frameType, flags, streamID)
	copy(frame[frameHeaderLen:], payload)
	return frame
}

// parseSettings decodes a SETTINGS payload into (id, value) pairs.
func parseSettings(t *testing.T, payload []byte) []SettingID {
	t.Helper()
	if len(payload)%6 != 0 {
		t.Fatalf("settings payload length %d not a multiple of 6", len(payload))
	}
	var order []SettingID
	for i := 0; i < len(payload); i += 6 {
		order = append(order, SettingID(binary.BigEndian.Uint16(payload[i:i+2])))
	}
	return order
}

func TestFrameConnRewritesSettings(t *testing.T) {
	capture := &captureConn{}
	settings := Settings{
		HeaderTableSize:         65536,
		EnablePush:              false,
		InitialStreamWindowSize: 6291456,
		MaxHeaderListSize:       262144,
		SettingsOrder: []SettingID{
			SettingHeaderTableSize, SettingEnablePush, SettingMaxConcurrentStreams,
			SettingInitialWindowSize, SettingMaxFrameSize, SettingMaxHeaderListSize,
		},
	}
	fc, err := NewFrameConn(capture, settings)
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	// A stock client SETTINGS frame in a different order.
	var stock bytes.Buffer
	binary.Write(&stock, binary.BigEndian, uint16(SettingInitialWindowSize))
	binary.Write(&stock, binary.BigEndian, uint32(4194304))
	binary.Write(&stock, binary.BigEndian, uint16(SettingHeaderTableSize))
	binary.Write(&stock, binary.BigEndian, uint32(4096))

	if _, err := fc.Write(append(append([]byte{}, clientPreface...), rawFrame(frameTypeSettings, 0, 0, stock.Bytes())...)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := capture.buf.Bytes()
	if !bytes.HasPrefix(out, clientPreface) {
		t.Fatal("expected the client preface first")
	}
	out = out[len(clientPreface):]
	if out[3] != frameTypeSettings {
		t.Fatalf("expected a SETTINGS frame, got type 0x%x", out[3])
	}

	payload := out[frameHeaderLen:]
	order := parseSettings(t, payload)
	want := []SettingID{SettingHeaderTableSize, SettingEnablePush, SettingInitialWindowSize, SettingMaxHeaderListSize}
	if len(order) != len(want) {
		t.Fatalf("expected %d settings transmitted, got %d (%v)", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}

	// Values survive the rewrite.
	if got := binary.BigEndian.Uint32(payload[2:6]); got != 65536 {
		t.Errorf("HEADER_TABLE_SIZE: expected 65536, got %d", got)
	}
	if got := binary.BigEndian.Uint32(payload[8:12]); got != 0 {
		t.Errorf("ENABLE_PUSH: expected 0, got %d", got)
	}
}

func TestFrameConnSettingsAckPassesThrough(t *testing.T) {
	capture := &captureConn{}
	fc, err := NewFrameConn(capture, Settings{HeaderTableSize: 65536})
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	first := rawFrame(frameTypeSettings, 0, 0, nil)
	ack := rawFrame(frameTypeSettings, 0x1, 0, nil)
	input := append(append(append([]byte{}, clientPreface...), first...), ack...)
	if _, err := fc.Write(input); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := capture.buf.Bytes()[len(clientPreface):]
	// First frame was replaced; skip it.
	firstLen := frameHeaderLen + int(uint32(out[0])<<16|uint32(out[1])<<8|uint32(out[2]))
	ackOut := out[firstLen:]
	if !bytes.Equal(ackOut, ack) {
		t.Error("expected the SETTINGS ACK forwarded unmodified")
	}
}

func TestFrameConnRewritesWindowUpdate(t *testing.T) {
	capture := &captureConn{}
	fc, err := NewFrameConn(capture, Settings{InitialConnectionWindowSize: 15728640})
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	stock := make([]byte, 4)
	binary.BigEndian.PutUint32(stock, 1048576)
	input := append(append([]byte{}, clientPreface...), rawFrame(frameTypeWindowUpdate, 0, 0, stock)...)
	if _, err := fc.Write(input); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := capture.buf.Bytes()[len(clientPreface):]
	if out[3] != frameTypeWindowUpdate {
		t.Fatalf("expected a WINDOW_UPDATE frame, got type 0x%x", out[3])
	}
	increment := binary.BigEndian.Uint32(out[frameHeaderLen : frameHeaderLen+4])
	if increment != 15728640-65535 {
		t.Errorf("expected increment %d, got %d", 15728640-65535, increment)
	}
}

func TestFrameConnWindowUpdatePassthroughWhenUnconfigured(t *testing.T) {
	capture := &captureConn{}
	fc, err := NewFrameConn(capture, Settings{})
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	stock := make([]byte, 4)
	binary.BigEndian.PutUint32(stock, 1048576)
	original := rawFrame(frameTypeWindowUpdate, 0, 0, stock)
	input := append(append([]byte{}, clientPreface...), original...)
	if _, err := fc.Write(input); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := capture.buf.Bytes()[len(clientPreface):]
	if !bytes.Equal(out, original) {
		t.Error("expected the original WINDOW_UPDATE forwarded when no connection window is configured")
	}
}

func TestFrameConnReordersPseudoHeaders(t *testing.T) {
	capture := &captureConn{}
	settings := Settings{
		PseudoHeaderOrder: []PseudoHeader{PseudoMethod, PseudoAuthority, PseudoScheme, PseudoPath},
		Priority:          &Priority{Weight: 256, StreamDep: 0, Exclusive: true},
	}
	fc, err := NewFrameConn(capture, settings)
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	// Stock ordering: method, path, scheme, authority.
	var block bytes.Buffer
	enc := hpack.NewEncoder(&block)
	for _, f := range []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: "user-agent", Value: "test"},
	} {
		enc.WriteField(f)
	}

	// END_STREAM | END_HEADERS on stream 1.
	input := append(append([]byte{}, clientPreface...), rawFrame(frameTypeHeaders, 0x5, 1, block.Bytes())...)
	if _, err := fc.Write(input); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := capture.buf.Bytes()[len(clientPreface):]
	if out[3] != frameTypeHeaders {
		t.Fatalf("expected a HEADERS frame, got type 0x%x", out[3])
	}
	flags := out[4]
	if flags&0x20 == 0 {
		t.Error("expected the PRIORITY flag set")
	}
	if flags&0x5 != 0x5 {
		t.Errorf("expected END_STREAM and END_HEADERS preserved, got flags 0x%x", flags)
	}

	payload := out[frameHeaderLen:]
	dep := binary.BigEndian.Uint32(payload[:4])
	if dep&0x80000000 == 0 {
		t.Error("expected the exclusive bit set")
	}
	if dep&0x7fffffff != 0 {
		t.Errorf("expected stream dependency 0, got %d", dep&0x7fffffff)
	}
	if payload[4] != 255 {
		t.Errorf("expected wire weight 255 for logical weight 256, got %d", payload[4])
	}

	decoder := hpack.NewDecoder(4096, nil)
	fields, err := decoder.DecodeFull(payload[5:])
	if err != nil {
		t.Fatalf("decode rewritten block: %v", err)
	}
	wantNames := []string{":method", ":authority", ":scheme", ":path", "user-agent"}
	if len(fields) != len(wantNames) {
		t.Fatalf("expected %d fields, got %d", len(wantNames), len(fields))
	}
	for i, f := range fields {
		if f.Name != wantNames[i] {
			t.Errorf("field %d: expected %s, got %s", i, wantNames[i], f.Name)
		}
	}
}

func TestFrameConnNonHTTP2Passthrough(t *testing.T) {
	capture := &captureConn{}
	fc, err := NewFrameConn(capture, Settings{HeaderTableSize: 65536})
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	request := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if _, err := fc.Write(request); err != nil {
		t.Fatalf("Write: %v", err)
	}
	body := []byte("more plain bytes")
	if _, err := fc.Write(body); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := append(append([]byte{}, request...), body...)
	if !bytes.Equal(capture.buf.Bytes(), want) {
		t.Error("expected non-h2 traffic forwarded byte for byte")
	}
}

func TestNewFrameConnRejectsMalformedOrder(t *testing.T) {
	_, err := NewFrameConn(&captureConn{}, Settings{
		SettingsOrder: []SettingID{SettingHeaderTableSize},
	})
	if !errors.Is(err, ErrMalformedOrder) {
		t.Fatalf("expected ErrMalformedOrder, got %v", err)
	}
}

func TestFrameConnPartialFrameBuffered(t *testing.T) {
	capture := &captureConn{}
	fc, err := NewFrameConn(capture, Settings{HeaderTableSize: 65536})
	if err != nil {
		t.Fatalf("NewFrameConn: %v", err)
	}

	frame := rawFrame(frameTypeSettings, 0, 0, make([]byte, 12))
	input := append(append([]byte{}, clientPreface...), frame...)

	// Feed the stream one byte at a time; the shaper must hold
	// incomplete frames and still emit exactly one SETTINGS frame.
	for _, b := range input {
		if _, err := fc.Write([]byte{b}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	out := capture.buf.Bytes()
	if !bytes.HasPrefix(out, clientPreface) {
		t.Fatal("expected the client preface first")
	}
	out = out[len(clientPreface):]
	if len(out) < frameHeaderLen || out[3] != frameTypeSettings {
		t.Fatalf("expected a SETTINGS frame, got %v", out)
	}
	rest := out[frameHeaderLen+int(uint32(out[0])<<16|uint32(out[1])<<8|uint32(out[2])):]
	if len(rest) != 0 {
		t.Errorf("expected exactly one frame, %d trailing bytes", len(rest))
	}
}
