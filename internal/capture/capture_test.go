package capture

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/protocol"
	"github.com/shaunagostinho/qnflash/internal/sim"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecorderDisabled(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(Config{Path: dir}, zap.NewNop())
	rec.Record(Tx, []byte{0x33})

	assert.Empty(t, rec.Path())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecorderRows(t *testing.T) {
	rec := NewRecorder(Config{Enabled: true, Path: t.TempDir()}, zap.NewNop())
	rec.RecordBaud(9600)
	rec.Record(Tx, []byte{0x71, 0x4a})
	rec.Record(Rx, []byte{0x01})
	rec.Close()

	rows := readRows(t, rec.Path())
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"timestamp", "direction", "data"}, rows[0])
	assert.Equal(t, []string{"baud", "9600"}, rows[1][1:])
	assert.Equal(t, []string{"tx", "714a"}, rows[2][1:])
	assert.Equal(t, []string{"rx", "01"}, rows[3][1:])

	_, err := time.Parse(time.RFC3339Nano, rows[1][0])
	assert.NoError(t, err)
}

func TestRecorderRotates(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(Config{Enabled: true, Path: dir, MaxRows: 2}, zap.NewNop())
	for i := 0; i < 5; i++ {
		rec.Record(Tx, []byte{byte(i)})
	}
	rec.Close()

	files, err := filepath.Glob(filepath.Join(dir, "qnflash_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Len(t, readRows(t, rec.Path()), 2)
}

func TestPortRecordsSession(t *testing.T) {
	rec := NewRecorder(Config{Enabled: true, Path: t.TempDir()}, zap.NewNop())
	dev := sim.NewDevice(sim.Config{})
	c := bootloader.New(Wrap(dev, rec))

	require.NoError(t, c.Connect(context.Background()))
	_, err := c.ChipID()
	require.NoError(t, err)
	rec.Close()

	rp, err := LoadFile(rec.Path())
	require.NoError(t, err)
	assert.Equal(t, []int{9600, 115200}, rp.RecordedBauds())

	// A fresh client replays the recorded session byte for byte.
	c2 := bootloader.New(rp)
	require.NoError(t, c2.Connect(context.Background()))
	chip, err := c2.ChipID()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x21, 0x90, 0x02, 0x00}, chip)
	assert.True(t, rp.Done())
}

func TestReplayRecordedSession(t *testing.T) {
	rp, err := LoadFile("testdata/session.csv")
	require.NoError(t, err)
	c := bootloader.New(rp, bootloader.WithHandshakeTimeout(time.Second))

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, rp.RecordedBauds(), rp.Bauds())

	version, err := c.BootloaderVersion()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x00, 0x00}, version)

	chip, err := c.ChipID()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x21, 0x90, 0x02, 0x00}, chip)

	require.NoError(t, c.SetProgramAddress(0))
	require.NoError(t, c.EraseSectors(1))
	require.NoError(t, c.Reboot())
	assert.True(t, rp.Done())
}

func TestRecordedFramesParse(t *testing.T) {
	rp, err := LoadFile("testdata/session.csv")
	require.NoError(t, err)

	var frames int
	for _, ev := range rp.events {
		if ev.dir != Tx || len(ev.data) == 1 {
			continue
		}
		f, err := protocol.ParseFrame(ev.data)
		require.NoError(t, err, "% x", ev.data)
		frames++

		again, err := protocol.Encode(f.Command, f.Payload)
		require.NoError(t, err)
		assert.Equal(t, ev.data, again)
	}
	assert.Equal(t, 7, frames)
}

func TestReplayDiverged(t *testing.T) {
	rp, err := Load(strings.NewReader("timestamp,direction,data\nx,tx,7136000000700b\nx,rx,01\n"))
	require.NoError(t, err)

	_, err = rp.Write([]byte{0x71, 0x37})
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestReplayUnexpectedWrite(t *testing.T) {
	rp, err := Load(strings.NewReader("x,rx,01\n"))
	require.NoError(t, err)

	b, err := rp.ReadUpTo(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, b)

	_, err = rp.Write([]byte{0x33})
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestLoadRejectsBadRows(t *testing.T) {
	_, err := Load(strings.NewReader("x,sideways,00\n"))
	assert.Error(t, err)
	_, err = Load(strings.NewReader("x,tx,zz\n"))
	assert.Error(t, err)
	_, err = Load(strings.NewReader("x,tx\n"))
	assert.Error(t, err)
}
