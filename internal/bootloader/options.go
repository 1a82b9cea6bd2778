package bootloader

import "time"

// Defaults used by New.
const (
	DefaultBaudRate         = 115200
	DefaultClockHz          = 16000000
	DefaultHandshakeTimeout = 10 * time.Second

	BootstrapBaudRate = 9600
	SyncReadTimeout   = 20 * time.Millisecond
	LinkReadTimeout   = 500 * time.Millisecond
	ResultReadTimeout = 5 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// BaudRate is the link speed negotiated during the handshake.
	BaudRate int

	// ClockHz is the device main clock, used for the UART divisor.
	ClockHz uint32

	// HandshakeTimeout bounds the sync loop. Zero or negative waits forever.
	HandshakeTimeout time.Duration

	// LinkTimeout is the per-read timeout once connected.
	LinkTimeout time.Duration

	// ResultTimeout is the per-read timeout while waiting for the result of
	// a command that is not confirm-only. Erase and program take a while.
	ResultTimeout time.Duration

	Layout   FlashLayout
	Observer Observer
}

func defaultConfig() Config {
	return Config{
		BaudRate:         DefaultBaudRate,
		ClockHz:          DefaultClockHz,
		HandshakeTimeout: DefaultHandshakeTimeout,
		LinkTimeout:      LinkReadTimeout,
		ResultTimeout:    ResultReadTimeout,
		Layout:           DefaultLayout(),
		Observer:         NopObserver{},
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithBaudRate sets the target baud rate negotiated during Connect.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithClock sets the device main clock in Hz.
func WithClock(hz uint32) Option {
	return func(c *Config) {
		if hz > 0 {
			c.ClockHz = hz
		}
	}
}

// WithHandshakeTimeout bounds how long Connect keeps sending sync bytes.
//
// Example:
//
//	client := bootloader.New(port, bootloader.WithHandshakeTimeout(0)) // wait forever
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithResultTimeout sets the read timeout used while a command result is
// pending. Zero keeps the link timeout.
func WithResultTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ResultTimeout = d
	}
}

// WithLinkTimeout sets the read timeout used after the baud switch.
func WithLinkTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.LinkTimeout = d
		}
	}
}

// WithLayout replaces the flash addresses used by the programming sequences.
func WithLayout(l FlashLayout) Option {
	return func(c *Config) {
		c.Layout = l
	}
}

// WithObserver sets the event observer. Use MultiObserver for several.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.Observer = o
		}
	}
}
