package bootloader

import (
	"context"
	"fmt"
	"time"

	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// State is a handshake state.
type State int

const (
	StateDisconnected State = iota
	StateSyncingAtLowBaud
	StateLatchingDivisor
	StateSwitchingBaud
	StateConfirmingAtTargetBaud
	StateConnected
	StateFailed
)

var stateNames = [...]string{
	StateDisconnected:           "disconnected",
	StateSyncingAtLowBaud:       "syncing",
	StateLatchingDivisor:        "latching-divisor",
	StateSwitchingBaud:          "switching-baud",
	StateConfirmingAtTargetBaud: "confirming",
	StateConnected:              "connected",
	StateFailed:                 "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// State returns the current handshake state.
func (c *Client) State() State { return c.state }

// Err returns the reason of the last failed handshake, if any.
func (c *Client) Err() error { return c.err }

func (c *Client) setState(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.obs.StateChanged(from, s)
}

// Connect runs the bootloader handshake: sync at 9600 baud, latch the UART
// divisor for the target rate, reopen the port at that rate and confirm.
// Only the sync loop retries; any other failure is final.
func (c *Client) Connect(ctx context.Context) error {
	c.err = nil
	if err := c.connect(ctx); err != nil {
		c.err = err
		c.setState(StateFailed)
		return fmt.Errorf("handshake: %w", err)
	}
	c.setState(StateConnected)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	divisor, err := Divisor(c.cfg.ClockHz, uint32(c.cfg.BaudRate))
	if err != nil {
		return err
	}
	configure := le32(divisor)

	c.setState(StateSyncingAtLowBaud)
	if err := c.reopen(BootstrapBaudRate, SyncReadTimeout); err != nil {
		return err
	}
	if err := c.sync(ctx); err != nil {
		return err
	}

	// The divisor goes out while the port is still at 9600. The device
	// answers at the old rate and switches afterwards.
	c.setState(StateLatchingDivisor)
	if _, err := c.Call(protocol.CmdConfigureUART, configure, true); err != nil {
		return err
	}

	c.setState(StateSwitchingBaud)
	if err := c.reopen(c.cfg.BaudRate, c.cfg.LinkTimeout); err != nil {
		return err
	}

	c.setState(StateConfirmingAtTargetBaud)
	if _, err := c.Call(protocol.CmdConfigureUART, configure, true); err != nil {
		return err
	}
	return nil
}

func (c *Client) reopen(baud int, timeout time.Duration) error {
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("close port: %w", err)
	}
	if err := c.port.SetBaudRate(baud); err != nil {
		return fmt.Errorf("set baud %d: %w", baud, err)
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	if err := c.port.Open(); err != nil {
		return fmt.Errorf("open port at %d baud: %w", baud, err)
	}
	return nil
}

// sync writes the sync byte until the bootloader acknowledges it or the
// handshake deadline passes.
func (c *Client) sync(ctx context.Context) error {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := c.port.Write([]byte{protocol.SyncRequest}); err != nil {
			return fmt.Errorf("sync: write: %w", err)
		}
		resp, err := c.port.ReadUpTo(1)
		if err != nil {
			return fmt.Errorf("sync: read: %w", err)
		}

		if len(resp) > 0 {
			if resp[0] == protocol.SyncSuccess {
				return nil
			}
			return &protocol.Error{
				Kind:     protocol.ErrUnexpectedResponse,
				Stage:    "sync",
				Expected: []byte{protocol.SyncSuccess},
				Actual:   resp,
			}
		}

		if c.cfg.HandshakeTimeout > 0 && time.Since(start) > c.cfg.HandshakeTimeout {
			return fmt.Errorf("sync: no answer within %v: %w", c.cfg.HandshakeTimeout, protocol.ErrTimeout)
		}
	}
}
