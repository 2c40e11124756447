// Package frame implements the wire unit of the reservation protocol:
// a 4-byte big-endian length prefix followed by an opaque ASCII payload.
// One frame carries exactly one command or one response.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPayload bounds a single frame. Commands and replies are short; anything
// larger is a corrupt or hostile length word and the connection is dropped.
const MaxPayload = 4096

var ErrFrameTooLarge = fmt.Errorf("frame exceeds %d bytes", MaxPayload)

// Write sends msg as one length-prefixed frame.
func Write(w io.Writer, msg string) error {
	if len(msg) > MaxPayload {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := io.WriteString(w, msg); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Read blocks until one full frame arrives and returns its payload.
func Read(r io.Reader) (string, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", fmt.Errorf("read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxPayload {
		return "", ErrFrameTooLarge
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read frame payload: %w", err)
	}
	return string(buf), nil
}
