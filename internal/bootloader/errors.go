package bootloader

import (
	"fmt"

	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// DeviceError means the device answered with an explicit failure code.
type DeviceError struct {
	Command  protocol.Command
	Response protocol.Response
	// Code is the raw failure byte: 0x02 for a failed sync, 0x04 for a
	// failed result.
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: device reported failure (%v, 0x%02X)", e.Command, e.Response, e.Code)
}

func newDeviceError(cmd protocol.Command, resp protocol.Response) *DeviceError {
	code := protocol.SyncFailure
	if _, ok := resp.(protocol.ByteResult); ok {
		code = protocol.ResultFailure
	}
	return &DeviceError{Command: cmd, Response: resp, Code: code}
}

// ConfigurationError reports connection parameters the device cannot use.
type ConfigurationError struct {
	Field  string
	Value  uint64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
}
