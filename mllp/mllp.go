// Package mllp implements the Minimal Lower Layer Protocol: the TCP
// framing HL7 v2 messages travel in, a start byte before the payload and
// a two-byte trailer after it. It provides framing helpers and a small
// client used to deliver a message and collect the acknowledgment.
package mllp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MLLP framing bytes.
const (
	// StartBlock opens every MLLP message (0x0B, vertical tab).
	StartBlock = 0x0B

	// EndBlock closes the message content (0x1C, file separator).
	EndBlock = 0x1C

	// CarriageReturn follows EndBlock to complete the trailer (0x0D).
	CarriageReturn = 0x0D
)

// MaxMessageSize bounds inbound messages (16 MB).
const MaxMessageSize = 16 * 1024 * 1024

// Errors returned by framing and client operations.
var (
	ErrInvalidStartBlock = errors.New("mllp: message does not start with start block (0x0B)")
	ErrInvalidEndBlock   = errors.New("mllp: message does not end with end block sequence (0x1C 0x0D)")
	ErrMessageTooLarge   = errors.New("mllp: message exceeds maximum allowed size")
)

// Frame wraps raw HL7 data with MLLP framing:
// StartBlock + data + EndBlock + CarriageReturn.
func Frame(data []byte) []byte {
	out := make([]byte, len(data)+3)
	out[0] = StartBlock
	copy(out[1:], data)
	out[len(data)+1] = EndBlock
	out[len(data)+2] = CarriageReturn
	return out
}

// Unframe strips MLLP framing and returns the raw HL7 data.
func Unframe(data []byte) ([]byte, error) {
	if len(data) < 3 || data[0] != StartBlock {
		return nil, ErrInvalidStartBlock
	}
	if data[len(data)-2] != EndBlock || data[len(data)-1] != CarriageReturn {
		return nil, ErrInvalidEndBlock
	}
	return data[1 : len(data)-2], nil
}

// ReadMessage reads one MLLP-framed message from r and returns the
// payload without framing. A missing trailing CarriageReturn after
// EndBlock is tolerated when the peer closes the connection there; a
// stream that does not open with StartBlock is a framing error.
func ReadMessage(r *bufio.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxMessageSize
	}

	first, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if first != StartBlock {
		return nil, ErrInvalidStartBlock
	}

	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, ErrInvalidEndBlock
			}
			return nil, err
		}
		if b == EndBlock {
			// Consume the trailing CR when present.
			if next, err := r.Peek(1); err == nil && len(next) > 0 && next[0] == CarriageReturn {
				_, _ = r.ReadByte()
			}
			return buf.Bytes(), nil
		}
		if buf.Len() >= maxSize {
			return nil, ErrMessageTooLarge
		}
		buf.WriteByte(b)
	}
}

// WriteMessage writes one MLLP-framed message to w.
func WriteMessage(w io.Writer, payload []byte) error {
	_, err := w.Write(Frame(payload))
	return err
}
