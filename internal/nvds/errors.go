package nvds

import (
	"errors"
	"fmt"
)

// Format error kinds. Match them with errors.Is.
var (
	ErrBadSignature         = errors.New("missing NVDS signature")
	ErrBadLength            = errors.New("invalid NVDS length")
	ErrUnexpectedTypeMarker = errors.New("unexpected entry type marker")
	ErrTruncated            = errors.New("entry runs past end of block")
	ErrTooLarge             = errors.New("entries do not fit in block")
	ErrValueTooLong         = errors.New("value too long")
)

// FormatError is an NVDS block that does not follow the on-flash layout.
type FormatError struct {
	Kind   error
	Offset int
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("nvds: %v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("nvds: %v at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

func (e *FormatError) Unwrap() error { return e.Kind }
