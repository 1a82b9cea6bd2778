package bootloader

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// scriptedPort replays canned device output and records what the client
// does to the port.
type scriptedPort struct {
	rx       []byte
	written  [][]byte
	timeouts []time.Duration
	bauds    []int
	writeErr error
}

func (p *scriptedPort) Open() error  { return nil }
func (p *scriptedPort) Close() error { return nil }
func (p *scriptedPort) Flush() error { return nil }

func (p *scriptedPort) SetBaudRate(baud int) error {
	p.bauds = append(p.bauds, baud)
	return nil
}

func (p *scriptedPort) SetReadTimeout(d time.Duration) error {
	p.timeouts = append(p.timeouts, d)
	return nil
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *scriptedPort) ReadUpTo(n int) ([]byte, error) {
	n = min(n, len(p.rx))
	out := p.rx[:n]
	p.rx = p.rx[n:]
	return out, nil
}

func TestCallRaisesTimeoutForResult(t *testing.T) {
	port := &scriptedPort{rx: []byte{protocol.SyncSuccess, protocol.ResultSuccess}}
	c := New(port)

	require.NoError(t, c.EraseSectors(1))
	assert.Equal(t, []time.Duration{ResultReadTimeout, LinkReadTimeout}, port.timeouts)
	assert.Equal(t, [][]byte{{0x71, 0x42, 0x04, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 0xce}}, port.written)
}

func TestCallConfirmOnlyKeepsTimeout(t *testing.T) {
	port := &scriptedPort{rx: []byte{protocol.SyncSuccess}}
	c := New(port)

	require.NoError(t, c.SetProgramAddress(0))
	assert.Empty(t, port.timeouts)
	assert.Equal(t, [][]byte{{0x71, 0x3b, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xb5, 0x51}}, port.written)
}

func TestCallResultTimeoutDisabled(t *testing.T) {
	port := &scriptedPort{rx: []byte{protocol.SyncSuccess, protocol.ResultSuccess}}
	c := New(port, WithResultTimeout(0))

	require.NoError(t, c.EraseSectors(1))
	assert.Empty(t, port.timeouts)
}

func TestCallFailureCodes(t *testing.T) {
	tests := []struct {
		name string
		rx   []byte
		call func(*Client) error
		code byte
	}{
		{"sync failure", []byte{protocol.SyncFailure}, func(c *Client) error { return c.Reboot() }, 0x02},
		{"sync failure on result command", []byte{protocol.SyncFailure}, func(c *Client) error { return c.EraseSectors(1) }, 0x02},
		{"result failure", []byte{protocol.SyncSuccess, protocol.ResultFailure}, func(c *Client) error { return c.EraseSectors(1) }, 0x04},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&scriptedPort{rx: tt.rx})
			err := tt.call(c)
			var devErr *DeviceError
			require.True(t, errors.As(err, &devErr), "got %v", err)
			assert.Equal(t, tt.code, devErr.Code)
		})
	}
}

func TestCallNoAnswer(t *testing.T) {
	c := New(&scriptedPort{})
	err := c.Reboot()
	assert.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestCallWriteError(t *testing.T) {
	boom := errors.New("unplugged")
	c := New(&scriptedPort{writeErr: boom})
	_, err := c.ChipID()
	assert.ErrorIs(t, err, boom)
}

func TestQueryRejectsByteResult(t *testing.T) {
	c := New(&scriptedPort{rx: []byte{protocol.SyncSuccess, protocol.ResultSuccess}})
	_, err := c.ChipID()
	assert.ErrorIs(t, err, protocol.ErrUnexpectedResponse)
}

func TestReadPageRejectsShortPage(t *testing.T) {
	frame, err := protocol.Encode(protocol.CmdReadPage, make([]byte, 100))
	require.NoError(t, err)
	c := New(&scriptedPort{rx: append([]byte{protocol.SyncSuccess}, frame...)})

	_, err = c.ReadPage()
	assert.ErrorIs(t, err, protocol.ErrUnexpectedResponse)
}

func TestProgramChunkBounds(t *testing.T) {
	c := New(&scriptedPort{})
	assert.Error(t, c.Program(nil))
	assert.Error(t, c.Program(make([]byte, PageSize+1)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "latching-divisor", StateLatchingDivisor.String())
	assert.Equal(t, "state(42)", State(42).String())
}
