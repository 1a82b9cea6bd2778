package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
)

// --- Device commands ---

type ReadCmd struct {
	File string `arg:"" type:"path" help:"Output file for the 4096-byte NVDS block"`
}

func (c *ReadCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, "read", func(ctx context.Context, client *bootloader.Client) error {
		data, err := client.ReadNVDS(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.File, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", c.File, err)
		}
		return nil
	})
}

type WriteCmd struct {
	File  string `arg:"" type:"existingfile" help:"NVDS block to write"`
	Force bool   `short:"f" help:"Write even if the file is not a valid NVDS block"`
}

func (c *WriteCmd) Run(globals *CLI, ctx context.Context) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	return globals.run(ctx, "write", func(ctx context.Context, client *bootloader.Client) error {
		return client.WriteNVDS(ctx, data, c.Force)
	})
}

type ProgramCmd struct {
	File string `arg:"" type:"existingfile" help:"Application binary"`
}

func (c *ProgramCmd) Run(globals *CLI, ctx context.Context) error {
	image, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	return globals.run(ctx, "program", func(ctx context.Context, client *bootloader.Client) error {
		return client.ProgramApplication(ctx, image)
	})
}

type InfoCmd struct{}

func (c *InfoCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, "info", func(ctx context.Context, client *bootloader.Client) error {
		queries := []struct {
			label string
			fn    func() ([]byte, error)
		}{
			{"Bootloader version", client.BootloaderVersion},
			{"Chip ID", client.ChipID},
			{"Flash ID", client.FlashID},
		}
		out := globals.stdout()
		for _, q := range queries {
			v, err := q.fn()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-20s %s\n", q.label+":", hex.EncodeToString(v))
		}
		return nil
	})
}

type RebootCmd struct{}

func (c *RebootCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, "reboot", func(_ context.Context, client *bootloader.Client) error {
		return client.Reboot()
	})
}
