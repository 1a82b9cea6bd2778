package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shaunagostinho/qnflash/internal/nvds"
)

// --- NVDS file commands (no device) ---

type NvdsCmd struct {
	Show   NvdsShowCmd   `cmd:"" help:"List the entries of an NVDS file"`
	Set    NvdsSetCmd    `cmd:"" help:"Set a key in an NVDS file, creating the file if needed"`
	Delete NvdsDeleteCmd `cmd:"" help:"Remove a key from an NVDS file"`
	Keys   NvdsKeysCmd   `cmd:"" help:"List the known NVDS keys"`
}

type NvdsShowCmd struct {
	File string `arg:"" type:"existingfile" help:"NVDS file"`
}

func (c *NvdsShowCmd) Run(globals *CLI) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	out := globals.stdout()
	if err := nvds.Validate(data); err != nil {
		fmt.Fprintf(out, "warning: %v\n", err)
	}
	block, err := nvds.Parse(data)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSIZE\tVALUE")
	for _, key := range block.Keys() {
		v, _ := block.Get(key)
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", key, nvds.Describe(key), len(v), nvds.FormatValue(key, v))
	}
	return tw.Flush()
}

type NvdsSetCmd struct {
	File  string `arg:"" type:"path" help:"NVDS file"`
	Key   uint8  `arg:"" help:"Entry key"`
	Value string `arg:"" help:"Value as hex, separators ':' and ' ' allowed"`
}

func (c *NvdsSetCmd) Run(globals *CLI) error {
	value, err := parseHex(c.Value)
	if err != nil {
		return err
	}
	block, err := loadBlock(c.File, true)
	if err != nil {
		return err
	}
	block.Set(c.Key, value)
	return saveBlock(c.File, block)
}

type NvdsDeleteCmd struct {
	File string `arg:"" type:"existingfile" help:"NVDS file"`
	Key  uint8  `arg:"" help:"Entry key"`
}

func (c *NvdsDeleteCmd) Run(globals *CLI) error {
	block, err := loadBlock(c.File, false)
	if err != nil {
		return err
	}
	if !block.Delete(c.Key) {
		return fmt.Errorf("key %d not present in %s", c.Key, c.File)
	}
	return saveBlock(c.File, block)
}

type NvdsKeysCmd struct{}

func (c *NvdsKeysCmd) Run(globals *CLI) error {
	tw := tabwriter.NewWriter(globals.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME")
	for _, key := range nvds.KnownKeys() {
		fmt.Fprintf(tw, "%d\t%s\n", key, nvds.Describe(key))
	}
	return tw.Flush()
}

func loadBlock(path string, create bool) (*nvds.Block, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && create {
		return nvds.NewBlock(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := nvds.Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nvds.Parse(data)
}

func saveBlock(path string, block *nvds.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// parseHex accepts "0a1b", "0x0a1b", "0a:1b" and "0a 1b".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", " ", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", s, err)
	}
	return b, nil
}
