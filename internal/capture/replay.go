package capture

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

// ErrDiverged means the client wrote something other than what was
// recorded.
var ErrDiverged = errors.New("capture: replay diverged from recording")

type event struct {
	dir  Direction
	data []byte
	baud int
}

// Replay is a port that plays a recorded session back. Writes must match
// the recorded tx rows; the rx rows recorded after a tx row become readable
// once that row has been written in full.
type Replay struct {
	mu     sync.Mutex
	events []event
	next   int
	txLeft []byte
	rx     []byte
	bauds  []int
}

// Load parses a capture CSV.
func Load(r io.Reader) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(records) > 0 && records[0][0] == csvHeader[0] {
		records = records[1:]
	}

	rp := &Replay{}
	for i, rec := range records {
		ev := event{dir: Direction(rec[1])}
		switch ev.dir {
		case Tx, Rx:
			ev.data, err = hex.DecodeString(rec[2])
		case Baud:
			ev.baud, err = strconv.Atoi(rec[2])
		default:
			err = fmt.Errorf("unknown direction %q", rec[1])
		}
		if err != nil {
			return nil, fmt.Errorf("capture row %d: %w", i+1, err)
		}
		rp.events = append(rp.events, ev)
	}
	rp.release()
	return rp, nil
}

// LoadFile opens and parses a capture file.
func LoadFile(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// release queues rx rows up to the next tx row.
func (r *Replay) release() {
	for r.next < len(r.events) {
		ev := r.events[r.next]
		switch ev.dir {
		case Tx:
			r.txLeft = ev.data
			r.next++
			return
		case Rx:
			r.rx = append(r.rx, ev.data...)
		}
		r.next++
	}
}

func (r *Replay) Open() error                        { return nil }
func (r *Replay) Close() error                       { return nil }
func (r *Replay) Flush() error                       { return nil }
func (r *Replay) SetReadTimeout(time.Duration) error { return nil }

func (r *Replay) SetBaudRate(baud int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bauds = append(r.bauds, baud)
	return nil
}

func (r *Replay) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < len(p); {
		if len(r.txLeft) == 0 {
			return i, fmt.Errorf("%w: unexpected write % x", ErrDiverged, p[i:])
		}
		n := min(len(r.txLeft), len(p)-i)
		if !bytes.Equal(r.txLeft[:n], p[i:i+n]) {
			return i, fmt.Errorf("%w: wrote % x, recorded % x", ErrDiverged, p[i:i+n], r.txLeft[:n])
		}
		r.txLeft = r.txLeft[n:]
		i += n
		if len(r.txLeft) == 0 {
			r.release()
		}
	}
	return len(p), nil
}

func (r *Replay) ReadUpTo(n int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(n, len(r.rx))
	out := append([]byte(nil), r.rx[:n]...)
	r.rx = r.rx[n:]
	return out, nil
}

// Done reports whether every recorded row has been played.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next >= len(r.events) && len(r.txLeft) == 0 && len(r.rx) == 0
}

// Bauds returns the rates the client selected during replay.
func (r *Replay) Bauds() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.bauds...)
}

// RecordedBauds returns the rates selected in the recording.
func (r *Replay) RecordedBauds() []int {
	var out []int
	for _, ev := range r.events {
		if ev.dir == Baud {
			out = append(out, ev.baud)
		}
	}
	return out
}
