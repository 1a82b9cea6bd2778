package protocol

import "fmt"

// Reader is the read half of the transport: it returns up to n bytes and
// returns fewer, possibly zero, when the read timeout elapses.
type Reader interface {
	ReadUpTo(n int) ([]byte, error)
}

// Response is one of Ack, ByteResult or DataFrame.
type Response interface {
	OK() bool
	fmt.Stringer
}

// Ack is the sync byte that precedes every answer: 0x01 success, 0x02 failure.
type Ack struct {
	Success bool
}

func (a Ack) OK() bool { return a.Success }

func (a Ack) String() string {
	if a.Success {
		return "ack"
	}
	return "nack"
}

// ByteResult is a terminal result code: 0x03 success, 0x04 failure.
type ByteResult struct {
	Success bool
}

func (r ByteResult) OK() bool { return r.Success }

func (r ByteResult) String() string {
	if r.Success {
		return "result(ok)"
	}
	return "result(fail)"
}

// DataFrame is a full frame sent back by the device after the sync byte.
type DataFrame struct {
	Command Command
	Payload []byte
}

func (d DataFrame) OK() bool { return true }

func (d DataFrame) String() string {
	return fmt.Sprintf("frame(%v, %d bytes)", d.Command, len(d.Payload))
}

func readFull(r Reader, n int, stage string) ([]byte, error) {
	b, err := r.ReadUpTo(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	if len(b) < n {
		return nil, &ShortReadError{Stage: stage, Want: n, Got: b}
	}
	return b, nil
}

// ReadSync reads the sync byte that starts every response.
func ReadSync(r Reader) (Ack, error) {
	b, err := readFull(r, 1, "sync")
	if err != nil {
		return Ack{}, err
	}
	switch b[0] {
	case SyncSuccess:
		return Ack{Success: true}, nil
	case SyncFailure:
		return Ack{Success: false}, nil
	}
	return Ack{}, &Error{
		Kind:     ErrUnexpectedSync,
		Stage:    "sync",
		Expected: []byte{SyncSuccess},
		Actual:   b,
	}
}

// ReadResult reads what follows a successful sync byte for commands that
// are not confirm-only: a single result code or a data frame. This is the
// split header layout: the start byte is read alone, then the 4-byte header,
// and the checksum covers that header and the payload.
func ReadResult(r Reader) (Response, error) {
	start, err := readFull(r, 1, "start byte")
	if err != nil {
		return nil, err
	}

	switch start[0] {
	case ResultSuccess, ResultFailure:
		return ByteResult{Success: start[0] == ResultSuccess}, nil
	case StartByte:
	default:
		return nil, &Error{
			Kind:     ErrUnexpectedStartByte,
			Stage:    "start byte",
			Expected: []byte{StartByte},
			Actual:   start,
		}
	}

	header, err := readFull(r, HeaderSize, "header")
	if err != nil {
		return nil, err
	}
	hdr, _ := DecodeHeader(header)

	var payload []byte
	if hdr.Length > 0 {
		if payload, err = readFull(r, int(hdr.Length), "payload"); err != nil {
			return nil, err
		}
	}

	sum, err := readFull(r, ChecksumSize, "checksum")
	if err != nil {
		return nil, err
	}
	if err := verifyChecksum(header, payload, sum); err != nil {
		return nil, err
	}
	return DataFrame{Command: hdr.Command, Payload: payload}, nil
}

// ReadResponse decodes one response. A failed sync byte is returned as
// Ack{false} without reading further.
func ReadResponse(r Reader, confirmOnly bool) (Response, error) {
	ack, err := ReadSync(r)
	if err != nil {
		return nil, err
	}
	if confirmOnly || !ack.Success {
		return ack, nil
	}
	return ReadResult(r)
}
