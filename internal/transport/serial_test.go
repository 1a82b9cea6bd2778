package transport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ Port = (*Serial)(nil)

func TestSerialDefaults(t *testing.T) {
	s := NewSerial(SerialConfig{PortPath: "/dev/ttyUSB0"}, nil)
	assert.Equal(t, 9600, s.baudRate)
	assert.Equal(t, 500*time.Millisecond, s.readTimeout)
	assert.Equal(t, 9600, s.mode().BaudRate)
	assert.Equal(t, 8, s.mode().DataBits)
}

func TestSerialClosed(t *testing.T) {
	s := NewSerial(SerialConfig{PortPath: "/dev/ttyUSB0"}, zap.NewNop())

	_, err := s.Write([]byte{0x33})
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.ReadUpTo(1)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Flush(), ErrNotOpen)
	assert.NoError(t, s.Close())
}

func TestSerialSettingsWhileClosed(t *testing.T) {
	s := NewSerial(SerialConfig{PortPath: "/dev/ttyUSB0"}, zap.NewNop())

	require.NoError(t, s.SetBaudRate(115200))
	require.NoError(t, s.SetReadTimeout(20*time.Millisecond))
	assert.Equal(t, 115200, s.mode().BaudRate)
	assert.Equal(t, 20*time.Millisecond, s.readTimeout)
}

func TestSerialOpenMissingDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyMissing")
	s := NewSerial(SerialConfig{PortPath: path}, zap.NewNop())

	err := s.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
