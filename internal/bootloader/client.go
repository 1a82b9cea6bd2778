// Package bootloader drives a QN902x serial bootloader: connection
// handshake, command/response exchange and flash programming sequences.
package bootloader

import (
	"encoding/binary"
	"fmt"

	"github.com/shaunagostinho/qnflash/internal/protocol"
	"github.com/shaunagostinho/qnflash/internal/transport"
)

// PageSize is the number of bytes a read-page command returns and the
// largest chunk a program command accepts.
const PageSize = 256

// LoadTarget selects where the bootloader loads data.
type LoadTarget uint32

const (
	LoadSRAM  LoadTarget = 0
	LoadFlash LoadTarget = 1
)

// VendorStep is an undocumented command sent verbatim. Its payload is
// opaque; only its place in the upload sequence is known.
type VendorStep struct {
	Command protocol.Command `yaml:"command" json:"command"`
	Payload []byte           `yaml:"payload" json:"payload"`
}

// Client talks to one bootloader over an exclusively owned port. The
// protocol has no request identifiers, so a Client is not safe for
// concurrent use: every call is one write followed by one response.
type Client struct {
	port  transport.Port
	cfg   Config
	obs   Observer
	state State
	err   error
}

// New creates a Client. The port is opened by Connect.
func New(port transport.Port, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		port: port,
		cfg:  cfg,
		obs:  cfg.Observer,
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Call sends one command frame and decodes its response. A failure code
// from the device is returned as *DeviceError.
func (c *Client) Call(cmd protocol.Command, payload []byte, confirmOnly bool) (protocol.Response, error) {
	frame, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}

	c.obs.FrameSent(cmd, payload)
	if _, err := c.port.Write(frame); err != nil {
		return nil, fmt.Errorf("%v: write: %w", cmd, err)
	}
	if err := c.port.Flush(); err != nil {
		return nil, fmt.Errorf("%v: flush: %w", cmd, err)
	}

	resp, err := c.readResponse(confirmOnly)
	c.obs.ResponseReceived(cmd, resp, err)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", cmd, err)
	}
	if !resp.OK() {
		return resp, newDeviceError(cmd, resp)
	}
	return resp, nil
}

func (c *Client) readResponse(confirmOnly bool) (protocol.Response, error) {
	ack, err := protocol.ReadSync(c.port)
	if err != nil {
		return nil, err
	}
	if confirmOnly || !ack.Success {
		return ack, nil
	}

	if c.cfg.ResultTimeout > 0 && c.cfg.ResultTimeout != c.cfg.LinkTimeout {
		if err := c.port.SetReadTimeout(c.cfg.ResultTimeout); err != nil {
			return nil, err
		}
		defer c.port.SetReadTimeout(c.cfg.LinkTimeout)
	}
	return protocol.ReadResult(c.port)
}

// query runs a data-bearing command and returns the payload of its frame.
func (c *Client) query(cmd protocol.Command, payload []byte) ([]byte, error) {
	resp, err := c.Call(cmd, payload, false)
	if err != nil {
		return nil, err
	}
	frame, ok := resp.(protocol.DataFrame)
	if !ok {
		return nil, fmt.Errorf("%v: expected data frame, got %v: %w", cmd, resp, protocol.ErrUnexpectedResponse)
	}
	return frame.Payload, nil
}

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// BootloaderVersion returns the raw version payload.
func (c *Client) BootloaderVersion() ([]byte, error) {
	return c.query(protocol.CmdBootloaderVersion, nil)
}

// ChipID returns the raw chip identifier.
func (c *Client) ChipID() ([]byte, error) {
	return c.query(protocol.CmdChipID, nil)
}

// FlashID returns the raw flash identifier.
func (c *Client) FlashID() ([]byte, error) {
	return c.query(protocol.CmdFlashID, nil)
}

// SetLoadTarget selects flash or SRAM as the load target.
func (c *Client) SetLoadTarget(target LoadTarget) error {
	_, err := c.Call(protocol.CmdSetLoadTarget, le32(uint32(target)), true)
	return err
}

// SetProgramAddress moves the device's program/read pointer.
func (c *Client) SetProgramAddress(addr uint32) error {
	_, err := c.Call(protocol.CmdSetProgramAddress, le32(addr), true)
	return err
}

// EraseSectors erases count sectors starting at the program address.
func (c *Client) EraseSectors(count uint32) error {
	_, err := c.Call(protocol.CmdSectorErase, le32(count), false)
	return err
}

// Program writes up to PageSize bytes at the program address. The device
// advances the address by len(data).
func (c *Client) Program(data []byte) error {
	if len(data) == 0 || len(data) > PageSize {
		return fmt.Errorf("%v: chunk of %d bytes, want 1..%d", protocol.CmdProgram, len(data), PageSize)
	}
	_, err := c.Call(protocol.CmdProgram, data, false)
	return err
}

// ReadPage reads one page at the program address and advances it.
func (c *Client) ReadPage() ([]byte, error) {
	page, err := c.query(protocol.CmdReadPage, le32(PageSize))
	if err != nil {
		return nil, err
	}
	if len(page) != PageSize {
		return nil, fmt.Errorf("%v: got %d bytes, want %d: %w", protocol.CmdReadPage, len(page), PageSize, protocol.ErrUnexpectedResponse)
	}
	return page, nil
}

// Reboot restarts the device.
func (c *Client) Reboot() error {
	_, err := c.Call(protocol.CmdReboot, nil, true)
	return err
}

// RunVendorStep sends an opaque vendor command.
func (c *Client) RunVendorStep(step VendorStep) error {
	_, err := c.Call(step.Command, step.Payload, false)
	return err
}
