package http2conf

import (
	"bytes"
	"encoding/binary"
	"net"
	"sync"

	"golang.org/x/net/http2/hpack"
)

// HTTP/2 frame types the shaper touches.
const (
	frameTypeHeaders      = 0x1
	frameTypeSettings     = 0x4
	frameTypeWindowUpdate = 0x8
)

const frameHeaderLen = 9

// connWindowBase is the RFC 9113 initial connection flow-control
// window. The first WINDOW_UPDATE raises it to the configured
// connection window, so the increment is the difference.
const connWindowBase = 65535

// FrameConn wraps the client side of an HTTP/2 connection and rewrites
// the fingerprint-relevant frames on the way out: the first SETTINGS
// frame is re-emitted in the configured order, the first connection
// WINDOW_UPDATE carries the configured window delta, and request
// HEADERS frames are re-encoded with the configured pseudo-header order
// and stream priority. Everything else passes through untouched.
type FrameConn struct {
	net.Conn
	settings Settings

	mu            sync.Mutex
	buf           bytes.Buffer
	passthrough   bool
	wrotePreface  bool
	wroteSettings bool
	wroteWindow   bool
	hpackBuf      bytes.Buffer
	hpackEncoder  *hpack.Encoder
}

var clientPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// NewFrameConn validates the settings orders and wraps conn. This is
// the "at first use" validation point for settings built without
// calling Validate.
func NewFrameConn(conn net.Conn, settings Settings) (*FrameConn, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	c := &FrameConn{
		Conn:     conn,
		settings: settings,
	}
	c.hpackEncoder = hpack.NewEncoder(&c.hpackBuf)
	return c, nil
}

// Write intercepts outgoing frames, replacing the shaped ones.
func (c *FrameConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.passthrough {
		return c.Conn.Write(p)
	}

	c.buf.Write(p)
	originalLen := len(p)

	for c.buf.Len() > 0 {
		data := c.buf.Bytes()

		if !c.wrotePreface {
			if len(data) < len(clientPreface) {
				break
			}
			if !bytes.Equal(data[:len(clientPreface)], clientPreface) {
				// Not an HTTP/2 client stream; stop shaping and flush
				// everything buffered so far unframed.
				c.passthrough = true
				if _, err := c.Conn.Write(data); err != nil {
					return 0, err
				}
				c.buf.Reset()
				return originalLen, nil
			}
			if _, err := c.Conn.Write(clientPreface); err != nil {
				return 0, err
			}
			c.buf.Next(len(clientPreface))
			c.wrotePreface = true
			continue
		}

		if len(data) < frameHeaderLen {
			break
		}
		length := (uint32(data[0]) << 16) | (uint32(data[1]) << 8) | uint32(data[2])
		frameType := data[3]
		flags := data[4]
		frameSize := int(frameHeaderLen + length)
		if len(data) < frameSize {
			break
		}

		switch frameType {
		case frameTypeSettings:
			// Replace the client's first SETTINGS; ACKs and any later
			// SETTINGS pass through.
			if !c.wroteSettings && flags&0x1 == 0 {
				if _, err := c.Conn.Write(c.settingsFrame()); err != nil {
					return 0, err
				}
				c.wroteSettings = true
				c.buf.Next(frameSize)
				continue
			}

		case frameTypeWindowUpdate:
			if !c.wroteWindow {
				c.wroteWindow = true
				if frame := c.windowUpdateFrame(); frame != nil {
					if _, err := c.Conn.Write(frame); err != nil {
						return 0, err
					}
					c.buf.Next(frameSize)
					continue
				}
			}

		case frameTypeHeaders:
			streamID := binary.BigEndian.Uint32(data[5:9]) & 0x7fffffff
			if flags&0x4 != 0 && streamID > 0 { // END_HEADERS on a request stream
				frame, err := c.headersFrame(data[:frameSize])
				if err == nil {
					if _, err := c.Conn.Write(frame); err != nil {
						return 0, err
					}
					c.buf.Next(frameSize)
					continue
				}
				// On a decode failure the original frame goes out
				// unmodified rather than breaking the connection.
			}
		}

		if _, err := c.Conn.Write(data[:frameSize]); err != nil {
			return 0, err
		}
		c.buf.Next(frameSize)
	}

	return originalLen, nil
}

// settingsFrame builds the SETTINGS frame in the configured order,
// transmitting the members settingValue reports as present.
func (c *FrameConn) settingsFrame() []byte {
	var payload bytes.Buffer
	for _, id := range c.settings.settingsOrder() {
		val, ok := c.settings.settingValue(id)
		if !ok {
			continue
		}
		binary.Write(&payload, binary.BigEndian, uint16(id))
		binary.Write(&payload, binary.BigEndian, val)
	}

	frame := make([]byte, frameHeaderLen+payload.Len())
	writeFrameHeader(frame, payload.Len(), frameTypeSettings, 0, 0)
	copy(frame[frameHeaderLen:], payload.Bytes())
	return frame
}

// windowUpdateFrame builds the connection WINDOW_UPDATE raising the
// flow-control window to the configured connection window, or nil when
// no connection window is configured.
func (c *FrameConn) windowUpdateFrame() []byte {
	if c.settings.InitialConnectionWindowSize <= connWindowBase {
		return nil
	}
	increment := c.settings.InitialConnectionWindowSize - connWindowBase

	frame := make([]byte, frameHeaderLen+4)
	writeFrameHeader(frame, 4, frameTypeWindowUpdate, 0, 0)
	binary.BigEndian.PutUint32(frame[frameHeaderLen:], increment&0x7fffffff)
	return frame
}

// headersFrame re-encodes a HEADERS frame: pseudo-headers in the
// configured order, regular headers in their original order, and the
// configured PRIORITY parameters on the wire.
func (c *FrameConn) headersFrame(original []byte) ([]byte, error) {
	originalFlags := original[4]
	streamID := binary.BigEndian.Uint32(original[5:9]) & 0x7fffffff

	hasPadding := originalFlags&0x8 != 0
	hasPriority := originalFlags&0x20 != 0

	blockStart := frameHeaderLen
	if hasPadding {
		blockStart++
	}
	if hasPriority {
		blockStart += 5
	}
	block := original[blockStart:]
	if hasPadding {
		padLen := int(original[frameHeaderLen])
		if padLen < len(block) {
			block = block[:len(block)-padLen]
		}
	}

	tableSize := c.settings.HeaderTableSize
	if tableSize == 0 {
		tableSize = 4096
	}
	decoder := hpack.NewDecoder(tableSize, nil)
	fields, err := decoder.DecodeFull(block)
	if err != nil {
		return nil, err
	}

	pseudo := make(map[PseudoHeader]string, 4)
	regular := fields[:0]
	for _, f := range fields {
		switch f.Name {
		case string(PseudoMethod), string(PseudoScheme), string(PseudoAuthority), string(PseudoPath):
			pseudo[PseudoHeader(f.Name)] = f.Value
		default:
			regular = append(regular, f)
		}
	}

	c.hpackBuf.Reset()
	for _, ph := range c.settings.pseudoHeaderOrder() {
		if val, ok := pseudo[ph]; ok {
			c.hpackEncoder.WriteField(hpack.HeaderField{Name: string(ph), Value: val})
		}
	}
	for _, f := range regular {
		c.hpackEncoder.WriteField(f)
	}
	newBlock := c.hpackBuf.Bytes()

	// Keep END_STREAM and END_HEADERS; padding and the original
	// priority are dropped with the re-encoding.
	newFlags := originalFlags & 0x5
	priorityLen := 0
	if c.settings.Priority != nil {
		newFlags |= 0x20
		priorityLen = 5
	}

	payloadLen := priorityLen + len(newBlock)
	frame := make([]byte, frameHeaderLen+payloadLen)
	writeFrameHeader(frame, payloadLen, frameTypeHeaders, newFlags, streamID)

	if p := c.settings.Priority; p != nil {
		dep := p.StreamDep & 0x7fffffff
		if p.Exclusive {
			dep |= 0x80000000
		}
		binary.BigEndian.PutUint32(frame[frameHeaderLen:], dep)
		weight := p.Weight
		if weight == 0 {
			weight = 1
		}
		frame[frameHeaderLen+4] = byte(weight - 1)
	}
	copy(frame[frameHeaderLen+priorityLen:], newBlock)

	return frame, nil
}

func writeFrameHeader(frame []byte, payloadLen int, frameType, flags byte, streamID uint32) {
	frame[0] = byte(payloadLen >> 16)
	frame[1] = byte(payloadLen >> 8)
	frame[2] = byte(payloadLen)
	frame[3] = frameType
	frame[4] = flags
	binary.BigEndian.PutUint32(frame[5:9], streamID&0x7fffffff)
}
