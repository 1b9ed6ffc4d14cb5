// Package nativemsg implements the browser native-messaging wire format: a
// 4-byte length in native byte order followed by that many bytes of UTF-8
// JSON. Requests and responses use the same framing.
package nativemsg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	ActionTriggerAssistant = "trigger_assistant"

	StatusSuccess = "success"
	StatusError   = "error"

	// DefaultMaxSize caps inbound payloads.
	DefaultMaxSize = 1 << 20

	prefixSize = 4
)

var (
	// ErrClosed means the stream ended before any byte of a frame arrived.
	ErrClosed = errors.New("nativemsg: stream closed")
	// ErrTooLarge means the declared payload length exceeds the limit.
	ErrTooLarge = errors.New("nativemsg: message too large")
	// ErrInvalidUTF8 means the payload is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("nativemsg: payload is not valid UTF-8")
)

// Request is the message sent by the extension. Unknown fields are ignored.
type Request struct {
	Action string `json:"action"`
}

// Response is the single reply written by the host.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Success builds a success response.
func Success(msg string) Response { return Response{Status: StatusSuccess, Message: msg} }

// Failure builds an error response.
func Failure(msg string) Response { return Response{Status: StatusError, Message: msg} }

// ReadFrame reads one raw frame payload from r.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	var prefix [prefixSize]byte
	n, err := io.ReadFull(r, prefix[:])
	switch {
	case n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
		return nil, ErrClosed
	case err != nil:
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	size := binary.NativeEndian.Uint32(prefix[:])
	if uint64(size) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, maxSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %d byte payload: %w", size, err)
	}
	return payload, nil
}

// Read reads one frame and decodes its JSON payload into v.
func Read(r io.Reader, v any, maxSize int) error {
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return err
	}
	if !utf8.Valid(payload) {
		return ErrInvalidUTF8
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Encode returns the complete frame for v.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrTooLarge
	}
	var buf bytes.Buffer
	buf.Grow(prefixSize + len(payload))
	var prefix [prefixSize]byte
	binary.NativeEndian.PutUint32(prefix[:], uint32(len(payload)))
	buf.Write(prefix[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Write frames v onto w in a single write and flushes w when it buffers.
func Write(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush frame: %w", err)
		}
	}
	return nil
}
