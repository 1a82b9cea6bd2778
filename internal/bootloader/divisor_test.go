package bootloader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivisor(t *testing.T) {
	tests := []struct {
		clock uint32
		baud  uint32
		want  uint32
	}{
		{16000000, 115200, 0x082C},
		{16000000, 9600, 0x680B},
		{16000000, 57600, 0x1117},
		{32000000, 115200, 0x1117},
		{16000000, 1000000, 0x0100},
		{8000000, 38400, 0x0D01},
	}
	for _, tt := range tests {
		got, err := Divisor(tt.clock, tt.baud)
		require.NoError(t, err, "%d/%d", tt.clock, tt.baud)
		assert.Equal(t, tt.want, got, "%d/%d", tt.clock, tt.baud)
	}
}

func TestDivisorPayload(t *testing.T) {
	div, err := Divisor(DefaultClockHz, DefaultBaudRate)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2c, 0x08, 0x00, 0x00}, le32(div))
}

func TestDivisorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		clock uint32
		baud  uint32
		field string
	}{
		{"zero clock", 0, 115200, "clock"},
		{"zero baud", 16000000, 0, "baud rate"},
		{"baud above clock/16", 1000000, 115200, "baud rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Divisor(tt.clock, tt.baud)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Contains(t, cfgErr.Field, tt.field)
		})
	}
}
