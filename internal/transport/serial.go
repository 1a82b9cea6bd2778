package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrNotOpen is returned by I/O on a closed Serial port.
var ErrNotOpen = errors.New("serial port not open")

// SerialConfig holds connection settings for a Serial port.
type SerialConfig struct {
	PortPath    string        `yaml:"port_path" json:"portPath"`
	BaudRate    int           `yaml:"baud_rate" json:"baudRate"`
	ReadTimeout time.Duration `yaml:"read_timeout" json:"readTimeout"`
}

// Serial implements Port on top of go.bug.st/serial, 8N1.
type Serial struct {
	mu          sync.Mutex
	path        string
	baudRate    int
	readTimeout time.Duration
	port        serial.Port
	log         *zap.Logger
}

// NewSerial creates a closed Serial port. Call Open before any I/O.
func NewSerial(cfg SerialConfig, log *zap.Logger) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Serial{
		path:        cfg.PortPath,
		baudRate:    cfg.BaudRate,
		readTimeout: cfg.ReadTimeout,
		log:         log.Named("serial"),
	}
}

func (s *Serial) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the device with the current baud rate and read timeout.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	port, err := serial.Open(s.path, s.mode())
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", s.path, err)
	}
	if err := port.SetReadTimeout(s.readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serial: failed to set timeout: %w", err)
	}
	port.ResetInputBuffer()
	s.port = port

	s.log.Debug("opened", zap.String("port", s.path), zap.Int("baud", s.baudRate),
		zap.Duration("read_timeout", s.readTimeout))
	return nil
}

// Close closes the device. Closing a closed port is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.log.Debug("closed", zap.String("port", s.path))
	return err
}

// SetBaudRate changes the baud rate, applying it immediately if open.
func (s *Serial) SetBaudRate(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baudRate = baud
	if s.port == nil {
		return nil
	}
	return s.port.SetMode(s.mode())
}

// SetReadTimeout changes how long a single read waits for data.
func (s *Serial) SetReadTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readTimeout = d
	if s.port == nil {
		return nil
	}
	return s.port.SetReadTimeout(d)
}

func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return 0, ErrNotOpen
	}
	return s.port.Write(p)
}

// Flush blocks until everything written has been transmitted.
func (s *Serial) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrNotOpen
	}
	return s.port.Drain()
}

// ReadUpTo reads until n bytes arrived or a read returns nothing within the
// read timeout.
func (s *Serial) ReadUpTo(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil, ErrNotOpen
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		k, err := s.port.Read(buf[:n-len(out)])
		if err != nil {
			return out, fmt.Errorf("serial: read %s: %w", s.path, err)
		}
		if k == 0 {
			break
		}
		out = append(out, buf[:k]...)
	}
	return out, nil
}
