package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrTimeout means the transport returned fewer bytes than requested.
	ErrTimeout = errors.New("transport timeout")

	ErrUnexpectedSync      = errors.New("unexpected sync byte")
	ErrUnexpectedStartByte = errors.New("unexpected start byte")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrUnexpectedResponse  = errors.New("unexpected response")
	ErrPayloadTooLong      = errors.New("payload too long")
)

// Error is a protocol violation observed on the wire. Expected and Actual
// hold the bytes involved so callers can log them.
type Error struct {
	Kind     error
	Stage    string
	Expected []byte
	Actual   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v (expected % X, got % X)", e.Stage, e.Kind, e.Expected, e.Actual)
}

func (e *Error) Unwrap() error { return e.Kind }

// ShortReadError reports a read that came back with fewer bytes than the
// frame layout requires. It matches ErrTimeout.
type ShortReadError struct {
	Stage string
	Want  int
	Got   []byte
}

func (e *ShortReadError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("%s: no data within timeout (wanted %d bytes)", e.Stage, e.Want)
	}
	return fmt.Sprintf("%s: short read, got %d of %d bytes (% X)", e.Stage, len(e.Got), e.Want, e.Got)
}

func (e *ShortReadError) Unwrap() error { return ErrTimeout }
