package monitor

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics counts bootloader traffic. It implements bootloader.Observer.
type Metrics struct {
	FramesSent        *prometheus.CounterVec
	Responses         *prometheus.CounterVec
	ProtocolErrors    *prometheus.CounterVec
	BytesProgrammed   prometheus.Counter
	HandshakeDuration *prometheus.HistogramVec // result=connected|failed

	mu             sync.Mutex
	handshakeStart time.Time
	pendingProgram int
}

// NewMetrics registers and returns the bootloader metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qnflash_frames_sent_total",
			Help: "Command frames sent to the bootloader.",
		}, []string{"cmd"}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qnflash_responses_total",
			Help: "Decoded bootloader responses by kind.",
		}, []string{"kind"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qnflash_protocol_errors_total",
			Help: "Failed exchanges by error kind.",
		}, []string{"kind"}),
		BytesProgrammed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qnflash_bytes_programmed_total",
			Help: "Payload bytes acknowledged by program commands.",
		}),
		HandshakeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qnflash_handshake_duration_seconds",
			Help:    "Time from the first sync byte to the end of the handshake.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
	}
	reg.MustRegister(m.FramesSent, m.Responses, m.ProtocolErrors, m.BytesProgrammed, m.HandshakeDuration)
	return m
}

func (m *Metrics) StateChanged(_, to bootloader.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch to {
	case bootloader.StateSyncingAtLowBaud:
		m.handshakeStart = time.Now()
	case bootloader.StateConnected, bootloader.StateFailed:
		if m.handshakeStart.IsZero() {
			return
		}
		result := "connected"
		if to == bootloader.StateFailed {
			result = "failed"
		}
		m.HandshakeDuration.WithLabelValues(result).Observe(time.Since(m.handshakeStart).Seconds())
		m.handshakeStart = time.Time{}
	}
}

func (m *Metrics) FrameSent(cmd protocol.Command, payload []byte) {
	m.FramesSent.WithLabelValues(cmd.String()).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingProgram = 0
	if cmd == protocol.CmdProgram {
		m.pendingProgram = len(payload)
	}
}

func (m *Metrics) ResponseReceived(_ protocol.Command, resp protocol.Response, err error) {
	m.mu.Lock()
	pending := m.pendingProgram
	m.pendingProgram = 0
	m.mu.Unlock()

	if err != nil {
		m.ProtocolErrors.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	m.Responses.WithLabelValues(ResponseKind(resp)).Inc()
	if resp.OK() && pending > 0 {
		m.BytesProgrammed.Add(float64(pending))
	}
}

func (m *Metrics) Progress(bootloader.Progress) {}
func (m *Metrics) Warning(string, error)        {}

// ResponseKind names a response for metrics and the event stream.
func ResponseKind(resp protocol.Response) string {
	switch r := resp.(type) {
	case protocol.Ack:
		if r.Success {
			return "ack"
		}
		return "nack"
	case protocol.ByteResult:
		if r.Success {
			return "result_ok"
		}
		return "result_fail"
	case protocol.DataFrame:
		return "data"
	}
	return "unknown"
}

// ErrorKind classifies an exchange error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		return "timeout"
	case errors.Is(err, protocol.ErrUnexpectedSync):
		return "unexpected_sync"
	case errors.Is(err, protocol.ErrUnexpectedStartByte):
		return "unexpected_start_byte"
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, protocol.ErrUnexpectedResponse):
		return "unexpected_response"
	}
	return "transport"
}
