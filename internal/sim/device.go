// Package sim emulates a QN902x bootloader behind a transport.Port so the
// client can run without hardware.
package sim

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/nvds"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

const (
	// FlashSize is the emulated flash size.
	FlashSize  = 128 * 1024
	SectorSize = 4096
)

// ErrClosed is returned by I/O on a closed Device.
var ErrClosed = errors.New("sim: port closed")

// Config holds the emulated chip properties and fault injection.
type Config struct {
	ClockHz       uint32
	Version       []byte
	ChipID        []byte
	FlashID       []byte
	InitialFlash  []byte
	ReadLatency   time.Duration
	SyncAfter     int
	FailCommands  map[protocol.Command]bool
	CorruptFrames bool
	Silent        bool
	SyncReply     byte
}

// Device is an emulated bootloader. It implements transport.Port.
type Device struct {
	mu  sync.Mutex
	cfg Config

	open        bool
	portBaud    int
	readTimeout time.Duration

	synced     bool
	syncWrites int
	latched    *uint32
	addr       uint32
	target     bootloader.LoadTarget
	rebooted   bool

	flash  []byte
	tx     []byte
	rx     []byte
	frames []protocol.Frame
}

// NewDevice creates an emulated bootloader with erased flash.
func NewDevice(cfg Config) *Device {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = bootloader.DefaultClockHz
	}
	if cfg.Version == nil {
		cfg.Version = []byte{0x02, 0x01, 0x00, 0x00}
	}
	if cfg.ChipID == nil {
		cfg.ChipID = []byte{0x21, 0x90, 0x02, 0x00}
	}
	if cfg.FlashID == nil {
		cfg.FlashID = []byte{0xc8, 0x40, 0x12, 0x00}
	}
	if cfg.SyncReply == 0 {
		cfg.SyncReply = protocol.SyncSuccess
	}

	flash := make([]byte, FlashSize)
	for i := range flash {
		flash[i] = 0xFF
	}
	copy(flash, cfg.InitialFlash)

	return &Device{
		cfg:      cfg,
		portBaud: bootloader.BootstrapBaudRate,
		flash:    flash,
	}
}

// NewDemoDevice returns a Device whose first sector holds a sample NVDS block.
func NewDemoDevice() *Device {
	b := nvds.NewBlock()
	b.Set(nvds.KeyDeviceAddress, []byte{0x56, 0x34, 0x12, 0x00, 0xbe, 0x08})
	b.Set(nvds.KeyDeviceName, []byte("Quintic BLE\x00"))
	b.Set(nvds.KeyClockDrift, []byte{0x64, 0x00})
	b.Set(nvds.KeyExternalWakeupTime, []byte{0x84, 0x03})
	b.Set(nvds.KeyOscillatorWakeupTime, []byte{0x84, 0x03})
	b.Set(nvds.KeyRadioWakeupTime, []byte{0x28, 0x00})
	b.Set(nvds.KeySleepEnable, []byte{0x00})
	b.Set(nvds.KeyXCSEL, []byte{0x11})
	block, _ := b.Serialize()

	return NewDevice(Config{
		InitialFlash: block,
		ReadLatency:  2 * time.Millisecond,
	})
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.rx = nil
	d.tx = nil
	return nil
}

func (d *Device) SetBaudRate(baud int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.portBaud = baud
	return nil
}

func (d *Device) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readTimeout = t
	return nil
}

func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	return nil
}

// ReadUpTo returns pending device output. With nothing pending it returns
// immediately, or after ReadLatency when one is configured.
func (d *Device) ReadUpTo(n int) ([]byte, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	if len(d.rx) == 0 {
		latency := d.cfg.ReadLatency
		d.mu.Unlock()
		if latency > 0 {
			time.Sleep(latency)
		}
		return nil, nil
	}
	defer d.mu.Unlock()

	n = min(n, len(d.rx))
	out := append([]byte(nil), d.rx[:n]...)
	d.rx = d.rx[n:]
	return out, nil
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return 0, ErrClosed
	}
	// Bytes sent at a rate the device UART is not running at are noise.
	if !d.baudMatches() {
		return len(p), nil
	}

	if !d.synced {
		for _, b := range p {
			if b != protocol.SyncRequest || d.cfg.Silent {
				continue
			}
			d.syncWrites++
			if d.syncWrites <= d.cfg.SyncAfter {
				continue
			}
			d.rx = append(d.rx, d.cfg.SyncReply)
			d.synced = d.cfg.SyncReply == protocol.SyncSuccess
			d.rebooted = false
			break
		}
		return len(p), nil
	}

	d.tx = append(d.tx, p...)
	d.drainFrames()
	return len(p), nil
}

func (d *Device) baudMatches() bool {
	if d.latched == nil {
		return d.portBaud == bootloader.BootstrapBaudRate
	}
	div, err := bootloader.Divisor(d.cfg.ClockHz, uint32(d.portBaud))
	return err == nil && div == *d.latched
}

// drainFrames handles every complete frame in the receive buffer.
func (d *Device) drainFrames() {
	for len(d.tx) > 0 {
		if d.tx[0] != protocol.StartByte {
			d.tx = d.tx[1:]
			continue
		}
		if len(d.tx) < 1+protocol.HeaderSize {
			return
		}
		hdr, _ := protocol.DecodeHeader(d.tx[1:])
		total := protocol.Overhead + int(hdr.Length)
		if len(d.tx) < total {
			return
		}

		frame, err := protocol.ParseFrame(d.tx[:total])
		d.tx = d.tx[total:]
		if err != nil {
			d.rx = append(d.rx, protocol.SyncFailure)
			continue
		}
		d.frames = append(d.frames, frame)
		d.handle(frame)
	}
}

func (d *Device) handle(f protocol.Frame) {
	if d.cfg.FailCommands[f.Command] {
		if f.Command.ConfirmOnly() {
			d.rx = append(d.rx, protocol.SyncFailure)
		} else {
			d.rx = append(d.rx, protocol.SyncSuccess, protocol.ResultFailure)
		}
		return
	}

	switch f.Command {
	case protocol.CmdConfigureUART:
		if len(f.Payload) != 4 {
			d.rx = append(d.rx, protocol.SyncFailure)
			return
		}
		div := binary.LittleEndian.Uint32(f.Payload)
		d.latched = &div
		d.ack()
	case protocol.CmdBootloaderVersion:
		d.reply(f.Command, d.cfg.Version)
	case protocol.CmdChipID:
		d.reply(f.Command, d.cfg.ChipID)
	case protocol.CmdFlashID:
		d.reply(f.Command, d.cfg.FlashID)
	case protocol.CmdSetLoadTarget:
		d.target = bootloader.LoadTarget(le32(f.Payload))
		d.ack()
	case protocol.CmdSetProgramAddress:
		d.addr = le32(f.Payload)
		d.ack()
	case protocol.CmdSectorErase:
		start := int(d.addr) / SectorSize * SectorSize
		end := min(start+int(le32(f.Payload))*SectorSize, len(d.flash))
		for i := start; i < end; i++ {
			d.flash[i] = 0xFF
		}
		d.result(true)
	case protocol.CmdProgram:
		if int(d.addr)+len(f.Payload) > len(d.flash) {
			d.result(false)
			return
		}
		copy(d.flash[d.addr:], f.Payload)
		d.addr += uint32(len(f.Payload))
		d.result(true)
	case protocol.CmdReadPage:
		n := int(le32(f.Payload))
		start := min(int(d.addr), len(d.flash))
		end := min(start+n, len(d.flash))
		d.addr += uint32(n)
		d.reply(f.Command, d.flash[start:end])
	case protocol.CmdReboot:
		d.ack()
		d.rebooted = true
		d.synced = false
		d.syncWrites = 0
		d.latched = nil
	case protocol.CmdVendorStep1, protocol.CmdVendorStep2:
		d.result(true)
	default:
		d.rx = append(d.rx, protocol.SyncFailure)
	}
}

func (d *Device) ack() {
	d.rx = append(d.rx, protocol.SyncSuccess)
}

func (d *Device) result(ok bool) {
	code := protocol.ResultSuccess
	if !ok {
		code = protocol.ResultFailure
	}
	d.rx = append(d.rx, protocol.SyncSuccess, code)
}

func (d *Device) reply(cmd protocol.Command, payload []byte) {
	frame, _ := protocol.Encode(cmd, payload)
	if d.cfg.CorruptFrames {
		frame[len(frame)-1] ^= 0xFF
	}
	d.rx = append(d.rx, protocol.SyncSuccess)
	d.rx = append(d.rx, frame...)
}

func le32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Flash returns a copy of the emulated flash.
func (d *Device) Flash() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.flash...)
}

// Frames returns every frame the device accepted, in order.
func (d *Device) Frames() []protocol.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Frame(nil), d.frames...)
}

// Commands returns the command of every accepted frame, in order.
func (d *Device) Commands() []protocol.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := make([]protocol.Command, len(d.frames))
	for i, f := range d.frames {
		cmds[i] = f.Command
	}
	return cmds
}

// Rebooted reports whether the device received a reboot command since the
// last sync.
func (d *Device) Rebooted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rebooted
}

// LoadTarget returns the last selected load target.
func (d *Device) LoadTarget() bootloader.LoadTarget {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// PortBaud returns the baud rate the host side last configured.
func (d *Device) PortBaud() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portBaud
}
