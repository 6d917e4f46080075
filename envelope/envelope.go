// Package envelope frames message bodies with the wire identity of their
// schema so a receiver can route a buffer before decoding it.
//
// Frame layout:
//
//	"##" | wire id (uint16, big endian) | body length (uint32, big endian) | body
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// Magic opens every frame.
	Magic = "##"
	// HeaderSize is the length of the frame header.
	HeaderSize = len(Magic) + 2 + 4
	// MaxBodySize bounds the body length a frame may declare.
	MaxBodySize = 16 << 20
)

var (
	ErrInvalidMagic       = errors.New("envelope: invalid magic")
	ErrFrameTruncated     = errors.New("envelope: frame truncated")
	ErrMessageTooLarge    = errors.New("envelope: message too large")
	ErrUnknownMessageType = errors.New("envelope: unknown message type")
	ErrTrailingData       = errors.New("envelope: trailing data after body")
)

// Marshal frames body under wire identity id.
func Marshal(id uint32, body []byte) ([]byte, error) {
	if id == 0 || id > math.MaxUint16 {
		return nil, fmt.Errorf("%w: wire id %d does not fit the header", ErrUnknownMessageType, id)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(body))
	copy(frame, Magic)
	binary.BigEndian.PutUint16(frame[2:], uint16(id))
	binary.BigEndian.PutUint32(frame[4:], uint32(len(body)))
	return append(frame, body...), nil
}

// Unmarshal splits a complete frame into its wire identity and body. The
// body shares frame's memory.
func Unmarshal(frame []byte) (uint32, []byte, error) {
	id, n, err := parseHeader(frame)
	if err != nil {
		return 0, nil, err
	}
	rest := frame[HeaderSize:]
	switch {
	case len(rest) < n:
		return 0, nil, fmt.Errorf("%w: body needs %d bytes, have %d", ErrFrameTruncated, n, len(rest))
	case len(rest) > n:
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest)-n)
	}
	return id, rest, nil
}

func parseHeader(header []byte) (uint32, int, error) {
	if len(header) < HeaderSize {
		return 0, 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrFrameTruncated, HeaderSize, len(header))
	}
	if string(header[:2]) != Magic {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMagic, header[:2])
	}
	id := uint32(binary.BigEndian.Uint16(header[2:]))
	n := binary.BigEndian.Uint32(header[4:])
	if n > MaxBodySize {
		return 0, 0, fmt.Errorf("%w: %d bytes declared", ErrMessageTooLarge, n)
	}
	return id, int(n), nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("%w: %v", ErrFrameTruncated, err)
		}
		return 0, nil, err
	}
	id, n, err := parseHeader(header)
	if err != nil {
		return 0, nil, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("%w: %v", ErrFrameTruncated, err)
		}
		return 0, nil, err
	}
	return id, body, nil
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, id uint32, body []byte) error {
	frame, err := Marshal(id, body)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
