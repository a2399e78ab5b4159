package wsproto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/unimrcp-community/ws-speechbridge/wserr"
)

// Frame is a decoded WebSocket frame, the result of ReadServerFrame.
type Frame struct {
	Opcode  Opcode
	Fin     bool
	Masked  bool
	Payload []byte
}

// MaskKey is a 4-byte client frame masking key.
type MaskKey [MaskKeyLen]byte

// ApplyMask XORs buf in place against key, cycling key every 4 bytes. It is
// its own inverse: applying it twice with the same key restores buf.
func ApplyMask(buf []byte, key MaskKey) {
	for i := range buf {
		buf[i] ^= key[i%MaskKeyLen]
	}
}

// HeaderLen returns the number of bytes BuildClientFrameHeader will emit for
// a frame of the given payload length, per spec.md §4.1: 6 for <126, 8 for
// <65536, 14 otherwise (2/4/10 header bytes plus a 4-byte mask key).
func HeaderLen(payloadLen int) int {
	switch {
	case payloadLen < 126:
		return 6
	case payloadLen < 1<<16:
		return 8
	default:
		return 14
	}
}

// BuildClientFrameHeader encodes a masked, fin=1 client frame header
// (opcode, length field, mask key) for payloadLen bytes. Control frames
// (opcode >= OpClose) must carry payloadLen <= MaxControlFramePayload; the
// caller is responsible for enforcing that (see Client.SendClose/SendPing).
func BuildClientFrameHeader(opcode Opcode, payloadLen int, key MaskKey) []byte {
	hdr := make([]byte, 0, HeaderLen(payloadLen))
	hdr = append(hdr, finBit|byte(opcode&0x0F))

	switch {
	case payloadLen < 126:
		hdr = append(hdr, maskBit|byte(payloadLen))
	case payloadLen < 1<<16:
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(payloadLen))
		hdr = append(hdr, maskBit|len16Marker)
		hdr = append(hdr, ext[:]...)
	default:
		var ext [8]byte
		// High 4 bytes are always zero: no payload this bridge handles
		// approaches 2^32 bytes, let alone 2^64.
		binary.BigEndian.PutUint64(ext[:], uint64(payloadLen))
		hdr = append(hdr, maskBit|len64Marker)
		hdr = append(hdr, ext[:]...)
	}
	return append(hdr, key[:]...)
}

// ReadServerFrame parses one WebSocket frame header and payload from r,
// applying the mask if the server happened to set one (spec.md §3:
// server-originated frames SHOULD be unmasked, but the parser tolerates
// either). maxFrameSize enforces spec.md §4.2's payload-size ceiling.
func ReadServerFrame(r *bufio.Reader, maxFrameSize int64) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	fin := hdr[0]&finBit != 0
	opcode := Opcode(hdr[0] & 0x0F)
	masked := hdr[1]&maskBit != 0
	payloadLen := int64(hdr[1] &^ maskBit)

	switch payloadLen {
	case len16Marker:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, fmt.Errorf("ws: read extended length: %w", err)
		}
		payloadLen = int64(binary.BigEndian.Uint16(ext[:]))
	case len64Marker:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, fmt.Errorf("ws: read extended length: %w", err)
		}
		payloadLen = int64(binary.BigEndian.Uint64(ext[:]))
	}

	if payloadLen > maxFrameSize {
		return Frame{}, fmt.Errorf("%w: %d > %d", wserr.ErrFrameTooLarge, payloadLen, maxFrameSize)
	}
	if opcode.IsControl() && (payloadLen > MaxControlFramePayload || !fin) {
		return Frame{}, fmt.Errorf("%w: control frame fin=%v len=%d", wserr.ErrProtocol, fin, payloadLen)
	}

	var key MaskKey
	if masked {
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return Frame{}, fmt.Errorf("ws: read mask key: %w", err)
		}
	}

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("ws: read payload: %w", err)
		}
	}
	if masked {
		ApplyMask(payload, key)
	}

	return Frame{Opcode: opcode, Fin: fin, Masked: masked, Payload: payload}, nil
}
