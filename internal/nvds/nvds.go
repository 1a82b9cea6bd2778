// Package nvds reads and writes the QN902x NVDS block: a 4096-byte flash
// sector holding "NVDS" followed by key/value entries.
//
// Entry layout:
//
//	key(1) | type(1) = 6 | size(2, LE) | value(size) | 0xFF padding to 4 bytes
//
// A header with key and type both 0xFF ends the list; the rest of the
// sector is 0xFF.
package nvds

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// Size is the exact size of an NVDS block.
	Size = 4096

	// TypeMarker is the only entry type seen in valid blocks.
	TypeMarker = 6

	entryHeaderSize = 4
	sentinel        = 0xFF
	fill            = 0xFF
	maxValueSize    = 0xFFFF
)

// Signature starts every block.
var Signature = []byte("NVDS")

// Block is an ordered set of NVDS entries. Keys keep the order they were
// first seen in; setting an existing key replaces its value in place.
type Block struct {
	keys   []uint8
	values map[uint8][]byte
}

// NewBlock returns an empty block.
func NewBlock() *Block {
	return &Block{values: make(map[uint8][]byte)}
}

// Len returns the number of entries.
func (b *Block) Len() int { return len(b.keys) }

// Keys returns the keys in block order.
func (b *Block) Keys() []uint8 {
	return append([]uint8(nil), b.keys...)
}

// Get returns the raw value for key.
func (b *Block) Get(key uint8) ([]byte, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Set stores a copy of value under key.
func (b *Block) Set(key uint8, value []byte) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = append([]byte{}, value...)
}

// Delete removes key. It reports whether the key was present.
func (b *Block) Delete(key uint8) bool {
	if _, ok := b.values[key]; !ok {
		return false
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}

func padding(size int) int {
	return (4 - size%4) % 4
}

// Parse decodes an NVDS block. It does not require data to be exactly Size
// bytes; use Validate for that. If the entries end exactly at the end of
// data without a sentinel, the block ends there. When a key appears twice
// the later value wins and the key keeps its first position.
func Parse(data []byte) (*Block, error) {
	if len(data) < len(Signature) || !bytes.Equal(data[:len(Signature)], Signature) {
		return nil, &FormatError{Kind: ErrBadSignature, Offset: 0, Detail: fmt.Sprintf("got % X", data[:min(len(data), len(Signature))])}
	}

	b := NewBlock()
	off := len(Signature)
	for off < len(data) {
		if off+entryHeaderSize > len(data) {
			return nil, &FormatError{Kind: ErrTruncated, Offset: off, Detail: "partial entry header"}
		}
		key, marker := data[off], data[off+1]
		if key == sentinel && marker == sentinel {
			break
		}
		if marker != TypeMarker {
			return nil, &FormatError{
				Kind:   ErrUnexpectedTypeMarker,
				Offset: off + 1,
				Detail: fmt.Sprintf("key %d: expected %d, got 0x%02x", key, TypeMarker, marker),
			}
		}

		size := int(binary.LittleEndian.Uint16(data[off+2 : off+4]))
		start := off + entryHeaderSize
		if start+size > len(data) {
			return nil, &FormatError{
				Kind:   ErrTruncated,
				Offset: off,
				Detail: fmt.Sprintf("key %d: size %d, %d bytes left", key, size, len(data)-start),
			}
		}
		b.Set(key, data[start:start+size])

		off = start + size + padding(size)
	}
	return b, nil
}

// Serialize encodes the block into exactly Size bytes.
func (b *Block) Serialize() ([]byte, error) {
	out := make([]byte, 0, Size)
	out = append(out, Signature...)

	for _, key := range b.keys {
		value := b.values[key]
		if len(value) > maxValueSize {
			return nil, &FormatError{Kind: ErrValueTooLong, Offset: len(out), Detail: fmt.Sprintf("key %d: %d bytes", key, len(value))}
		}
		out = append(out, key, TypeMarker)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(value)))
		out = append(out, value...)
		out = append(out, bytes.Repeat([]byte{fill}, padding(len(value)))...)

		if len(out) > Size {
			return nil, &FormatError{Kind: ErrTooLarge, Offset: len(out), Detail: fmt.Sprintf("key %d ends past %d bytes", key, Size)}
		}
	}

	out = append(out, bytes.Repeat([]byte{fill}, Size-len(out))...)
	return out, nil
}

// Validate checks the signature and the exact block size.
func Validate(data []byte) error {
	if len(data) < len(Signature) || !bytes.Equal(data[:len(Signature)], Signature) {
		return &FormatError{Kind: ErrBadSignature, Offset: 0}
	}
	if len(data) != Size {
		return &FormatError{Kind: ErrBadLength, Offset: len(data), Detail: fmt.Sprintf("got %d bytes, want %d", len(data), Size)}
	}
	return nil
}
