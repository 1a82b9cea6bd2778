package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame is a decoded bootloader frame.
type Frame struct {
	Command Command
	Payload []byte
}

// Header is the 4-byte frame header that the checksum covers together with
// the payload: command, little-endian length and a reserved zero byte.
type Header struct {
	Command  Command
	Length   uint16
	Reserved byte
}

// Bytes returns the 4-byte wire form of the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	b[0] = byte(h.Command)
	binary.LittleEndian.PutUint16(b[1:3], h.Length)
	b[3] = h.Reserved
	return b
}

// DecodeHeader parses the 4-byte header that follows the start byte.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header needs %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		Command:  Command(int8(b[0])),
		Length:   binary.LittleEndian.Uint16(b[1:3]),
		Reserved: b[3],
	}, nil
}

// Encode builds the wire frame for a command:
//
//	0x71 | cmd | len(2, LE) | 0x00 | payload | crc16xmodem(2, LE)
//
// The checksum covers cmd through payload.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%v: %d bytes: %w", cmd, len(payload), ErrPayloadTooLong)
	}

	hdr := Header{Command: cmd, Length: uint16(len(payload))}.Bytes()

	frame := make([]byte, 0, Overhead+len(payload))
	frame = append(frame, StartByte)
	frame = append(frame, hdr...)
	frame = append(frame, payload...)
	frame = binary.LittleEndian.AppendUint16(frame, checksumParts(hdr, payload))
	return frame, nil
}

// ParseFrame decodes a complete frame held in memory. This is the joined
// header layout: a 5-byte header that starts with the start byte, with the
// checksum computed over header[1:] and the payload.
func ParseFrame(frame []byte) (Frame, error) {
	if len(frame) < Overhead {
		return Frame{}, &ShortReadError{Stage: "frame", Want: Overhead, Got: frame}
	}
	if frame[0] != StartByte {
		return Frame{}, &Error{
			Kind:     ErrUnexpectedStartByte,
			Stage:    "frame",
			Expected: []byte{StartByte},
			Actual:   frame[:1],
		}
	}

	header := frame[:1+HeaderSize]
	hdr, _ := DecodeHeader(header[1:])

	end := len(header) + int(hdr.Length)
	if len(frame) < end+ChecksumSize {
		return Frame{}, &ShortReadError{Stage: "frame", Want: end + ChecksumSize, Got: frame}
	}
	payload := frame[len(header):end]

	if err := verifyChecksum(header[1:], payload, frame[end:end+ChecksumSize]); err != nil {
		return Frame{}, err
	}
	return Frame{Command: hdr.Command, Payload: payload}, nil
}

func verifyChecksum(header, payload, got []byte) error {
	want := binary.LittleEndian.AppendUint16(nil, checksumParts(header, payload))
	if got[0] != want[0] || got[1] != want[1] {
		return &Error{
			Kind:     ErrChecksumMismatch,
			Stage:    "checksum",
			Expected: want,
			Actual:   append([]byte(nil), got...),
		}
	}
	return nil
}
