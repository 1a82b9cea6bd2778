package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
)

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func TestModelProgress(t *testing.T) {
	m := newModel("program")
	m = update(t, m, stateMsg{to: bootloader.StateConnected})
	m = update(t, m, progressMsg{Operation: bootloader.OpProgram, Done: 512, Total: 1024})

	assert.Equal(t, 0.5, m.percent)
	view := m.View()
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "program 512/1024 bytes")
	assert.Contains(t, view, "50%")
}

func TestModelWarningsBounded(t *testing.T) {
	m := newModel("read")
	for i := 0; i < maxWarnings+3; i++ {
		m = update(t, m, warningMsg{msg: "invalid NVDS data"})
	}
	assert.Len(t, m.warnings, maxWarnings)
}

func TestModelDoneQuits(t *testing.T) {
	m := newModel("write")
	next, cmd := m.Update(doneMsg{err: errors.New("sector-erase: device reported failure")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	view := next.View()
	assert.Contains(t, view, "failed: sector-erase")
}

func TestBarFinish(t *testing.T) {
	var out bytes.Buffer
	b := NewBar(&out, "program")
	b.StateChanged(bootloader.StateDisconnected, bootloader.StateConnected)
	b.Progress(bootloader.Progress{Operation: bootloader.OpProgram, Done: 10, Total: 10})
	b.Finish(nil)
	b.Finish(nil)

	assert.Contains(t, out.String(), "done")
}

func TestPlain(t *testing.T) {
	var out bytes.Buffer
	p := NewPlain(&out, "read")

	p.StateChanged(bootloader.StateDisconnected, bootloader.StateSyncingAtLowBaud)
	for done := 256; done <= 4096; done += 256 {
		p.Progress(bootloader.Progress{Operation: bootloader.OpReadNVDS, Done: done, Total: 4096})
	}
	p.Warning("invalid NVDS data", errors.New("bad signature"))
	p.Finish(nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "read: syncing", lines[0])
	assert.Contains(t, out.String(), "read: read-nvds 4096/4096 bytes (100%)")
	assert.Contains(t, out.String(), "read: warning: invalid NVDS data: bad signature")
	assert.Equal(t, "read: done", lines[len(lines)-1])

	// 16 page events collapse to one line per tenth.
	var progressLines int
	for _, l := range lines {
		if strings.Contains(l, "read-nvds") {
			progressLines++
		}
	}
	assert.LessOrEqual(t, progressLines, 11)
}

func TestPlainFinishError(t *testing.T) {
	var out bytes.Buffer
	NewPlain(&out, "program").Finish(errors.New("handshake: timeout"))
	assert.Equal(t, "program: failed: handshake: timeout\n", out.String())
}
