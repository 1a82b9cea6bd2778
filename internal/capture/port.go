package capture

import (
	"time"

	"github.com/shaunagostinho/qnflash/internal/transport"
)

// Port records all traffic of the wrapped port.
type Port struct {
	inner transport.Port
	rec   *Recorder
}

// Wrap decorates p so every write and non-empty read is recorded.
func Wrap(p transport.Port, rec *Recorder) *Port {
	return &Port{inner: p, rec: rec}
}

func (p *Port) Open() error  { return p.inner.Open() }
func (p *Port) Close() error { return p.inner.Close() }
func (p *Port) Flush() error { return p.inner.Flush() }

func (p *Port) SetReadTimeout(d time.Duration) error { return p.inner.SetReadTimeout(d) }

func (p *Port) SetBaudRate(baud int) error {
	p.rec.RecordBaud(baud)
	return p.inner.SetBaudRate(baud)
}

func (p *Port) Write(b []byte) (int, error) {
	n, err := p.inner.Write(b)
	if n > 0 {
		p.rec.Record(Tx, b[:n])
	}
	return n, err
}

func (p *Port) ReadUpTo(n int) ([]byte, error) {
	b, err := p.inner.ReadUpTo(n)
	if len(b) > 0 {
		p.rec.Record(Rx, b)
	}
	return b, err
}
