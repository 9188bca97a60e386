package paproto

import (
	"bytes"
	"encoding/binary"
	"io"
)

// HeaderSize is the fixed size in bytes of a PacketHeader.
const HeaderSize = 16

// MaxPayload is the largest payload a single Packet may carry.
const MaxPayload = 0xFFFF - HeaderSize

// sync is the 3-byte marker that opens every framed packet.
var sync = [3]byte{0xA3, 0x9D, 0x7A}

// Header is the fixed 16-byte, big-endian packet header described in the
// wire format: SYNC(3) | type(1) | size(2) | checksum(2) | ts_high(4) | ts_low(4).
type Header struct {
	PacketType PacketType
	PacketSize uint16 // header + payload
	Checksum   uint16
	TSHigh     uint32
	TSLow      uint32
}

// PayloadSize returns the payload length implied by PacketSize.
func (h Header) PayloadSize() int {
	return int(h.PacketSize) - HeaderSize
}

// Time returns the header's timestamp as NTP seconds since 1900-01-01 UTC.
func (h Header) Time() float64 {
	return ntpFromParts(h.TSHigh, h.TSLow)
}

// HeaderParams supplies the timestamp (and only the timestamp) when
// constructing a Header. Exactly one form must be set: Time, or the
// TSHigh/TSLow parts (a part left nil is taken as zero). Supplying both
// forms, or neither, is a programmer error.
type HeaderParams struct {
	Time   *float64
	TSHigh *uint32
	TSLow  *uint32
}

// NewHeader builds a Header for a payload of the given size. The checksum
// field is left zero; use setChecksum (via Encode) to fill it in once the
// payload is known.
func NewHeader(packetType PacketType, payloadSize int, p HeaderParams) (Header, error) {
	hasTime := p.Time != nil
	hasParts := p.TSHigh != nil || p.TSLow != nil
	if hasTime == hasParts {
		// both set, or neither set
		return Header{}, ErrInvalidHeader
	}

	h := Header{
		PacketType: packetType,
		PacketSize: uint16(HeaderSize + payloadSize),
	}
	if hasTime {
		h.TSHigh, h.TSLow = ntpParts(*p.Time)
	} else {
		if p.TSHigh != nil {
			h.TSHigh = *p.TSHigh
		}
		if p.TSLow != nil {
			h.TSLow = *p.TSLow
		}
	}
	return h, nil
}

// marshal writes the header's wire representation into buf[:HeaderSize].
func (h Header) marshal(buf []byte) {
	copy(buf[0:3], sync[:])
	buf[3] = byte(h.PacketType)
	binary.BigEndian.PutUint16(buf[4:6], h.PacketSize)
	binary.BigEndian.PutUint16(buf[6:8], h.Checksum)
	binary.BigEndian.PutUint32(buf[8:12], h.TSHigh)
	binary.BigEndian.PutUint32(buf[12:16], h.TSLow)
}

func unmarshalHeader(buf []byte) Header {
	return Header{
		PacketType: PacketType(buf[3]),
		PacketSize: binary.BigEndian.Uint16(buf[4:6]),
		Checksum:   binary.BigEndian.Uint16(buf[6:8]),
		TSHigh:     binary.BigEndian.Uint32(buf[8:12]),
		TSLow:      binary.BigEndian.Uint32(buf[12:16]),
	}
}

// lrc computes the longitudinal redundancy check (cumulative XOR) of data.
func lrc(data []byte) uint16 {
	var v byte
	for _, b := range data {
		v ^= b
	}
	return uint16(v)
}

// Packet is an immutable (header, payload) pair along with the exact bytes
// it was framed as, so Valid can re-verify the checksum even over corrupted
// wire data.
type Packet struct {
	Header  Header
	Payload []byte
	raw     []byte // header bytes + payload, exactly as sent or received
}

// Valid reports whether the packet's checksum verifies: the LRC of the full
// framed bytes (header, including its stored checksum, concatenated with the
// payload) must be zero.
func (p *Packet) Valid() bool {
	return lrc(p.raw) == 0
}

// Bytes returns the exact framed bytes (header + payload) for this packet.
func (p *Packet) Bytes() []byte {
	return p.raw
}

// Encode frames a single packet: payload must already be MaxPayload or
// smaller. The checksum is computed and stamped last.
func Encode(payload []byte, packetType PacketType, ntpTime float64) (*Packet, error) {
	t := ntpTime
	h, err := NewHeader(packetType, len(payload), HeaderParams{Time: &t})
	if err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderSize+len(payload))
	h.marshal(buf[:HeaderSize])
	copy(buf[HeaderSize:], payload)

	h.Checksum = lrc(buf)
	h.marshal(buf[:HeaderSize]) // re-stamp with the real checksum

	return &Packet{Header: h, Payload: buf[HeaderSize:], raw: buf}, nil
}

// Create splits payload into one or more packets of at most MaxPayload
// bytes, all timestamped with now. When len(payload) is an exact multiple
// of MaxPayload (including zero), the final packet is empty; downstream
// consumers use this trailing empty packet to detect end-of-fragmentation.
func Create(payload []byte, packetType PacketType, now float64) ([]*Packet, error) {
	var packets []*Packet
	for len(payload) >= MaxPayload {
		chunk := payload[:MaxPayload]
		payload = payload[MaxPayload:]
		pkt, err := Encode(chunk, packetType, now)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	pkt, err := Encode(payload, packetType, now)
	if err != nil {
		return nil, err
	}
	return append(packets, pkt), nil
}

// Decode looks for the first framed packet in buf. It returns (packet,
// remainder) on success. If buf contains no SYNC marker, it returns
// (nil, buf) unchanged. If a SYNC marker is found but the header or payload
// is not yet fully buffered, it returns (nil, buf[idx:]) — bytes before the
// marker are discarded, but the partial packet is retained for the next
// call once more data arrives.
func Decode(buf []byte) (*Packet, []byte) {
	idx := bytes.Index(buf, sync[:])
	if idx == -1 {
		return nil, buf
	}
	buf = buf[idx:]

	if len(buf) < HeaderSize {
		return nil, buf
	}
	h := unmarshalHeader(buf)
	if int(h.PacketSize) < HeaderSize {
		// Malformed size; skip past the sync marker we matched so we don't
		// spin on the same bad header forever.
		return nil, buf[len(sync):]
	}
	if len(buf) < int(h.PacketSize) {
		return nil, buf
	}

	framed := buf[:h.PacketSize]
	pkt := &Packet{
		Header:  h,
		Payload: framed[HeaderSize:],
		raw:     framed,
	}
	return pkt, buf[h.PacketSize:]
}

// StreamDecoder decodes one packet per call from an io.Reader, byte by byte,
// mirroring the framing rules of Decode over a live stream (e.g. a recorded
// datalog file opened for binary replay).
type StreamDecoder struct {
	r io.Reader
}

// NewStreamDecoder wraps r for sequential packet decoding.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{r: r}
}

// Next reads and returns the next packet from the stream. It returns io.EOF
// once the stream is exhausted; a trailing partial packet is discarded.
func (d *StreamDecoder) Next() (*Packet, error) {
	var window []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(d.r, one); err != nil {
			return nil, io.EOF
		}
		window = append(window, one[0])
		if len(window) > len(sync) {
			window = window[len(window)-len(sync):]
		}
		if len(window) == len(sync) && bytes.Equal(window, sync[:]) {
			break
		}
	}

	rest := make([]byte, HeaderSize-len(sync))
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return nil, io.EOF
	}

	headerBuf := make([]byte, HeaderSize)
	copy(headerBuf, sync[:])
	copy(headerBuf[len(sync):], rest)
	h := unmarshalHeader(headerBuf)

	payloadSize := h.PayloadSize()
	if payloadSize < 0 {
		return nil, io.EOF
	}
	payload := make([]byte, payloadSize)
	if payloadSize > 0 {
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return nil, io.EOF
		}
	}

	raw := make([]byte, 0, HeaderSize+payloadSize)
	raw = append(raw, headerBuf...)
	raw = append(raw, payload...)

	return &Packet{Header: h, Payload: payload, raw: raw}, nil
}

// LogString renders a packet the way the ASCII logger writes it: time, type,
// checksum verdict, and payload — matching the original port agent's
// logstring format.
func (p *Packet) LogString() string {
	crc := "CRC OK"
	if !p.Valid() {
		crc = "CRC BAD"
	}
	return formatLogLine(p.Header.Time(), p.Header.PacketType.String(), crc, p.Payload)
}
