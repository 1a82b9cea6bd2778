// Package capture records the raw bytes exchanged with the bootloader to
// CSV files and replays them as a port.
package capture

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Direction tags a capture row.
type Direction string

const (
	Tx   Direction = "tx"
	Rx   Direction = "rx"
	Baud Direction = "baud"
)

// Config holds capture configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	MaxRows int    `yaml:"max_rows" json:"maxRows"`
}

const defaultMaxRows = 100_000

var csvHeader = []string{"timestamp", "direction", "data"}

// Recorder writes timestamped traffic rows to CSV files, starting a new
// file every MaxRows rows.
type Recorder struct {
	mu      sync.Mutex
	log     *zap.Logger
	dir     string
	maxRows int
	enabled bool

	file   *os.File
	writer *csv.Writer
	path   string
	rows   int
	seq    int
}

// NewRecorder creates a Recorder. Files are created lazily on the first row.
func NewRecorder(cfg Config, log *zap.Logger) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "captures"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	return &Recorder{
		log:     log.Named("capture"),
		dir:     cfg.Path,
		maxRows: cfg.MaxRows,
		enabled: cfg.Enabled,
	}
}

// SetEnabled toggles recording at runtime.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on {
		r.closeFile()
	}
}

// Path returns the file currently written, or "" before the first row.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Record appends one row. Traffic rows carry hex data; baud rows carry the
// rate in decimal.
func (r *Recorder) Record(dir Direction, data []byte) {
	r.record(dir, hex.EncodeToString(data))
}

// RecordBaud notes a port rate change.
func (r *Recorder) RecordBaud(baud int) {
	r.record(Baud, strconv.Itoa(baud))
}

func (r *Recorder) record(dir Direction, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}

	now := time.Now()
	if r.writer == nil || r.rows >= r.maxRows {
		if err := r.rotateFile(now); err != nil {
			r.log.Error("rotate failed", zap.Error(err))
			return
		}
	}

	if err := r.writer.Write([]string{now.Format(time.RFC3339Nano), string(dir), value}); err != nil {
		r.log.Error("write failed", zap.Error(err))
		return
	}
	r.writer.Flush()
	r.rows++
}

// Close flushes and closes the current file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	r.seq++
	name := fmt.Sprintf("qnflash_%s_%03d.csv", now.Format("2006-01-02_150405"), r.seq)
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.path = path
	r.writer = csv.NewWriter(f)
	r.rows = 0

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	r.log.Info("opened capture", zap.String("path", path))
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}
