// Package cli holds the qnflash command tree.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/shaunagostinho/qnflash/internal/config"
)

// CLI is the root command structure for qnflash.
type CLI struct {
	Config  string         `help:"Config file (default ~/.config/qnflash/config.yaml)" type:"path" placeholder:"FILE"`
	Port    string         `short:"p" help:"Serial port of the bootloader" placeholder:"PATH"`
	Baud    int            `short:"b" help:"Baud rate negotiated after sync"`
	Clock   float64        `help:"Device main clock in MHz"`
	Timeout *time.Duration `help:"Handshake timeout, 0 waits forever"`
	Verbose bool           `short:"v" help:"Log every frame"`
	Demo    bool           `help:"Talk to a simulated bootloader instead of a serial port"`
	Capture string         `help:"Record all traffic to CSV files in DIR" type:"path" placeholder:"DIR"`
	Monitor string         `help:"Serve the live monitor on ADDR (e.g. :8080)" placeholder:"ADDR"`
	Plain   bool           `help:"Plain progress lines instead of a progress bar"`

	Read    ReadCmd    `cmd:"" help:"Read the NVDS block to a file"`
	Write   WriteCmd   `cmd:"" help:"Write an NVDS block from a file"`
	Program ProgramCmd `cmd:"" help:"Upload an application image and reboot"`
	Info    InfoCmd    `cmd:"" help:"Show bootloader version, chip and flash IDs"`
	Reboot  RebootCmd  `cmd:"" help:"Reboot the device"`
	Nvds    NvdsCmd    `cmd:"" help:"Inspect and edit NVDS files offline"`

	Stdout io.Writer `kong:"-"`
	Status *os.File  `kong:"-"`
}

func (g *CLI) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *CLI) status() *os.File {
	if g.Status == nil {
		return os.Stderr
	}
	return g.Status
}

// loadConfig reads the config file and applies command line overrides.
func (g *CLI) loadConfig() (*config.Config, error) {
	path := g.Config
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if g.Port != "" {
		cfg.Serial.PortPath = g.Port
	}
	if g.Baud > 0 {
		cfg.Serial.BaudRate = g.Baud
	}
	if g.Clock > 0 {
		cfg.Serial.ClockMHz = g.Clock
	}
	if g.Timeout != nil {
		cfg.Link.HandshakeTimeout = *g.Timeout
	}
	if g.Verbose {
		cfg.Logging.Level = "debug"
	}
	if g.Capture != "" {
		cfg.Capture.Enabled = true
		cfg.Capture.Path = g.Capture
	}
	if g.Monitor != "" {
		cfg.Monitor.ListenAddr = g.Monitor
	}
	return cfg, nil
}
