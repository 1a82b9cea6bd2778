package bootloader

import "github.com/shaunagostinho/qnflash/internal/protocol"

// Progress describes how far a flash sequence has got.
type Progress struct {
	// Operation is "read-nvds", "write-nvds" or "program".
	Operation string
	Done      int
	Total     int
}

// Fraction returns completion between 0 and 1.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Observer receives diagnostic and progress events from a Client. Methods
// are called synchronously from the goroutine driving the Client and must
// return quickly.
type Observer interface {
	StateChanged(from, to State)
	FrameSent(cmd protocol.Command, payload []byte)
	ResponseReceived(cmd protocol.Command, resp protocol.Response, err error)
	Progress(p Progress)
	Warning(msg string, err error)
}

// NopObserver ignores every event. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)                                   {}
func (NopObserver) FrameSent(protocol.Command, []byte)                          {}
func (NopObserver) ResponseReceived(protocol.Command, protocol.Response, error) {}
func (NopObserver) Progress(Progress)                                           {}
func (NopObserver) Warning(string, error)                                       {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m MultiObserver) FrameSent(cmd protocol.Command, payload []byte) {
	for _, o := range m {
		o.FrameSent(cmd, payload)
	}
}

func (m MultiObserver) ResponseReceived(cmd protocol.Command, resp protocol.Response, err error) {
	for _, o := range m {
		o.ResponseReceived(cmd, resp, err)
	}
}

func (m MultiObserver) Progress(p Progress) {
	for _, o := range m {
		o.Progress(p)
	}
}

func (m MultiObserver) Warning(msg string, err error) {
	for _, o := range m {
		o.Warning(msg, err)
	}
}
