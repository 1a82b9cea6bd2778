// Package ui renders flashing progress in the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// Reporter is a bootloader observer that must be finished once the
// operation ends.
type Reporter interface {
	bootloader.Observer
	Finish(err error)
}

// New returns a progress bar on out when out is a terminal and plain is
// false, otherwise line-oriented output.
func New(out *os.File, title string, plain bool) Reporter {
	if plain || !isatty.IsTerminal(out.Fd()) {
		return NewPlain(out, title)
	}
	return NewBar(out, title)
}

// Bar drives a bubbletea progress bar from observer events. Events are
// forwarded to the program's goroutine with Send.
type Bar struct {
	bootloader.NopObserver

	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewBar starts the progress program writing to out.
func NewBar(out io.Writer, title string) *Bar {
	b := &Bar{
		program: tea.NewProgram(newModel(title),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler()),
		done: make(chan struct{}),
	}
	go func() {
		defer close(b.done)
		b.program.Run()
	}()
	return b
}

func (b *Bar) StateChanged(_, to bootloader.State) { b.program.Send(stateMsg{to: to}) }
func (b *Bar) Progress(p bootloader.Progress)      { b.program.Send(progressMsg(p)) }
func (b *Bar) Warning(msg string, err error)       { b.program.Send(warningMsg{msg: msg, err: err}) }

// Finish renders the final state and waits for the program to exit.
func (b *Bar) Finish(err error) {
	b.once.Do(func() {
		b.program.Send(doneMsg{err: err})
		<-b.done
	})
}

// Plain prints one line per state change, every tenth of progress and
// every warning.
type Plain struct {
	mu    sync.Mutex
	out   io.Writer
	title string
	step  map[string]int
}

func NewPlain(out io.Writer, title string) *Plain {
	return &Plain{out: out, title: title, step: make(map[string]int)}
}

func (p *Plain) StateChanged(_, to bootloader.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: %s\n", p.title, to)
}

func (p *Plain) FrameSent(protocol.Command, []byte)                          {}
func (p *Plain) ResponseReceived(protocol.Command, protocol.Response, error) {}

func (p *Plain) Progress(pr bootloader.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := int(pr.Fraction() * 10)
	if last, ok := p.step[pr.Operation]; ok && step <= last && pr.Done < pr.Total {
		return
	}
	p.step[pr.Operation] = step
	fmt.Fprintf(p.out, "%s: %s %d/%d bytes (%.0f%%)\n", p.title, pr.Operation, pr.Done, pr.Total, pr.Fraction()*100)
}

func (p *Plain) Warning(msg string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		fmt.Fprintf(p.out, "%s: warning: %s: %v\n", p.title, msg, err)
		return
	}
	fmt.Fprintf(p.out, "%s: warning: %s\n", p.title, msg)
}

func (p *Plain) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		fmt.Fprintf(p.out, "%s: failed: %v\n", p.title, err)
		return
	}
	fmt.Fprintf(p.out, "%s: done\n", p.title)
}
