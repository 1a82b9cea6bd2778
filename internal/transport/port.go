// Package transport provides the byte-oriented serial channel the bootloader
// client drives.
package transport

import "time"

// Port is a duplex byte channel. ReadUpTo returns fewer than n bytes,
// possibly none, when the read timeout elapses; that is not an error.
type Port interface {
	Open() error
	Close() error
	SetBaudRate(baud int) error
	SetReadTimeout(d time.Duration) error
	Write(p []byte) (int, error)
	Flush() error
	ReadUpTo(n int) ([]byte, error)
}
