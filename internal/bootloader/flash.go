package bootloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaunagostinho/qnflash/internal/nvds"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// Progress operation names.
const (
	OpReadNVDS  = "read-nvds"
	OpWriteNVDS = "write-nvds"
	OpProgram   = "program"
)

// FlashLayout holds the flash addresses and counts the sequences use.
type FlashLayout struct {
	NVDSAddress      uint32       `yaml:"nvds_address" json:"nvdsAddress"`
	NVDSEraseSectors uint32       `yaml:"nvds_erase_sectors" json:"nvdsEraseSectors"`
	AppBase          uint32       `yaml:"app_base" json:"appBase"`
	AppEraseSectors  uint32       `yaml:"app_erase_sectors" json:"appEraseSectors"`
	AppLoadOffset    uint32       `yaml:"app_load_offset" json:"appLoadOffset"`
	VendorSteps      []VendorStep `yaml:"vendor_steps" json:"vendorSteps"`
}

// DefaultLayout returns the QN902x layout: NVDS in the first sector,
// application erased from 0x1000 and loaded at 0x1100.
func DefaultLayout() FlashLayout {
	return FlashLayout{
		NVDSAddress:      0,
		NVDSEraseSectors: 1,
		AppBase:          0x1000,
		AppEraseSectors:  0x0f,
		AppLoadOffset:    0x1100,
		VendorSteps: []VendorStep{
			{Command: protocol.CmdVendorStep1, Payload: []byte{0x00, 0x00, 0x00, 0x10}},
			{Command: protocol.CmdVendorStep2, Payload: []byte{0xd4, 0x00, 0x00, 0x10}},
		},
	}
}

// ReadNVDS reads the 4096-byte NVDS block page by page. A block that fails
// validation is still returned; the problem is reported to the observer.
func (c *Client) ReadNVDS(ctx context.Context) ([]byte, error) {
	if err := c.SetProgramAddress(c.cfg.Layout.NVDSAddress); err != nil {
		return nil, fmt.Errorf("read nvds: %w", err)
	}

	pages := nvds.Size / PageSize
	data := make([]byte, 0, nvds.Size)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.ReadPage()
		if err != nil {
			return nil, fmt.Errorf("read nvds page %d: %w", i, err)
		}
		data = append(data, page...)
		c.obs.Progress(Progress{Operation: OpReadNVDS, Done: len(data), Total: nvds.Size})
	}

	if err := nvds.Validate(data); err != nil {
		c.obs.Warning("invalid NVDS data", err)
	}
	return data, nil
}

// WriteNVDS erases the NVDS sector and programs data into it. Data that is
// not a well-formed NVDS block is refused unless force is set.
func (c *Client) WriteNVDS(ctx context.Context, data []byte, force bool) error {
	if err := nvds.Validate(data); err != nil {
		if !force {
			return fmt.Errorf("write nvds: %w", err)
		}
		c.obs.Warning("writing invalid NVDS data", err)
	}
	if len(data) == 0 {
		return errors.New("write nvds: no data")
	}

	l := c.cfg.Layout
	if err := c.SetProgramAddress(l.NVDSAddress); err != nil {
		return fmt.Errorf("write nvds: %w", err)
	}
	if err := c.EraseSectors(l.NVDSEraseSectors); err != nil {
		return fmt.Errorf("write nvds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.SetProgramAddress(l.NVDSAddress); err != nil {
		return fmt.Errorf("write nvds: %w", err)
	}
	return c.programChunks(ctx, OpWriteNVDS, data)
}

// ProgramApplication erases the application area, uploads image and
// reboots the device.
func (c *Client) ProgramApplication(ctx context.Context, image []byte) error {
	if len(image) == 0 {
		return errors.New("program: empty image")
	}

	l := c.cfg.Layout
	if err := c.SetProgramAddress(l.AppBase); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	if err := c.EraseSectors(l.AppEraseSectors); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	if err := c.SetProgramAddress(l.AppLoadOffset); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	for _, step := range l.VendorSteps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.RunVendorStep(step); err != nil {
			return fmt.Errorf("program: %w", err)
		}
	}

	if err := c.programChunks(ctx, OpProgram, image); err != nil {
		return err
	}
	if err := c.Reboot(); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	return nil
}

func (c *Client) programChunks(ctx context.Context, op string, data []byte) error {
	for off := 0; off < len(data); off += PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+PageSize, len(data))
		if err := c.Program(data[off:end]); err != nil {
			return fmt.Errorf("%s at offset 0x%04x: %w", op, off, err)
		}
		c.obs.Progress(Progress{Operation: op, Done: end, Total: len(data)})
	}
	return nil
}
