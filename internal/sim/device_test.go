package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/qnflash/internal/nvds"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

func send(t *testing.T, d *Device, cmd protocol.Command, payload []byte) []byte {
	t.Helper()
	frame, err := protocol.Encode(cmd, payload)
	require.NoError(t, err)
	_, err = d.Write(frame)
	require.NoError(t, err)
	out, err := d.ReadUpTo(1 << 16)
	require.NoError(t, err)
	return out
}

func synced(t *testing.T) *Device {
	t.Helper()
	d := NewDevice(Config{})
	require.NoError(t, d.Open())
	_, err := d.Write([]byte{protocol.SyncRequest})
	require.NoError(t, err)
	out, err := d.ReadUpTo(1)
	require.NoError(t, err)
	require.Equal(t, []byte{protocol.SyncSuccess}, out)
	return d
}

func TestClosedDevice(t *testing.T) {
	d := NewDevice(Config{})
	_, err := d.Write([]byte{protocol.SyncRequest})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.ReadUpTo(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSyncOnlyAtBootstrapBaud(t *testing.T) {
	d := NewDevice(Config{})
	require.NoError(t, d.SetBaudRate(115200))
	require.NoError(t, d.Open())

	_, err := d.Write([]byte{protocol.SyncRequest})
	require.NoError(t, err)
	out, err := d.ReadUpTo(1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSyncAfter(t *testing.T) {
	d := NewDevice(Config{SyncAfter: 2})
	require.NoError(t, d.Open())

	for i := 0; i < 2; i++ {
		_, _ = d.Write([]byte{protocol.SyncRequest})
		out, _ := d.ReadUpTo(1)
		assert.Empty(t, out)
	}
	_, _ = d.Write([]byte{protocol.SyncRequest})
	out, _ := d.ReadUpTo(1)
	assert.Equal(t, []byte{protocol.SyncSuccess}, out)
}

func TestBaudSwitch(t *testing.T) {
	d := synced(t)
	assert.Equal(t, []byte{protocol.SyncSuccess}, send(t, d, protocol.CmdConfigureUART, []byte{0x2c, 0x08, 0x00, 0x00}))

	// Still at 9600: the device now runs at 115200 and hears noise.
	assert.Empty(t, send(t, d, protocol.CmdConfigureUART, []byte{0x2c, 0x08, 0x00, 0x00}))

	require.NoError(t, d.SetBaudRate(115200))
	assert.Equal(t, []byte{protocol.SyncSuccess}, send(t, d, protocol.CmdConfigureUART, []byte{0x2c, 0x08, 0x00, 0x00}))
}

func TestEraseProgramRead(t *testing.T) {
	d := NewDevice(Config{InitialFlash: []byte{1, 2, 3, 4}})
	require.NoError(t, d.Open())
	_, _ = d.Write([]byte{protocol.SyncRequest})
	_, _ = d.ReadUpTo(1)

	assert.Equal(t, []byte{1, 2, 3, 4}, d.Flash()[:4])

	send(t, d, protocol.CmdSetProgramAddress, []byte{0, 0, 0, 0})
	assert.Equal(t, []byte{protocol.SyncSuccess, protocol.ResultSuccess}, send(t, d, protocol.CmdSectorErase, []byte{1, 0, 0, 0}))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, d.Flash()[:4])

	send(t, d, protocol.CmdSetProgramAddress, []byte{0x10, 0, 0, 0})
	send(t, d, protocol.CmdProgram, []byte{0xaa, 0xbb})
	send(t, d, protocol.CmdProgram, []byte{0xcc})
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, d.Flash()[0x10:0x13])

	send(t, d, protocol.CmdSetProgramAddress, []byte{0x10, 0, 0, 0})
	out := send(t, d, protocol.CmdReadPage, []byte{0x00, 0x01, 0x00, 0x00})
	require.Equal(t, protocol.SyncSuccess, out[0])
	frame, err := protocol.ParseFrame(out[1:])
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdReadPage, frame.Command)
	require.Len(t, frame.Payload, 256)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xff}, frame.Payload[:4])
}

func TestBadChecksumAnswersFailure(t *testing.T) {
	d := synced(t)
	frame, err := protocol.Encode(protocol.CmdChipID, nil)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01

	_, err = d.Write(frame)
	require.NoError(t, err)
	out, err := d.ReadUpTo(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{protocol.SyncFailure}, out)
	assert.Empty(t, d.Frames())
}

func TestSplitWrites(t *testing.T) {
	d := synced(t)
	frame, err := protocol.Encode(protocol.CmdSetProgramAddress, []byte{0, 0x10, 0, 0})
	require.NoError(t, err)

	_, _ = d.Write(frame[:3])
	out, _ := d.ReadUpTo(1)
	assert.Empty(t, out)

	_, _ = d.Write(frame[3:])
	out, _ = d.ReadUpTo(1)
	assert.Equal(t, []byte{protocol.SyncSuccess}, out)
	assert.Equal(t, []protocol.Command{protocol.CmdSetProgramAddress}, d.Commands())
}

func TestUnknownCommand(t *testing.T) {
	d := synced(t)
	assert.Equal(t, []byte{protocol.SyncFailure}, send(t, d, protocol.Command(0x50), nil))
}

func TestDemoDeviceHoldsNVDS(t *testing.T) {
	d := NewDemoDevice()
	block := d.Flash()[:nvds.Size]
	require.NoError(t, nvds.Validate(block))

	b, err := nvds.Parse(block)
	require.NoError(t, err)
	name, ok := b.Get(nvds.KeyDeviceName)
	require.True(t, ok)
	assert.Equal(t, "Quintic BLE\x00", string(name))
}
