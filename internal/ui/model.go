package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
)

type stateMsg struct{ to bootloader.State }

type progressMsg bootloader.Progress

type warningMsg struct {
	msg string
	err error
}

type doneMsg struct{ err error }

// maxWarnings bounds the warning lines kept on screen.
const maxWarnings = 5

type model struct {
	styles   Styles
	title    string
	bar      progress.Model
	state    bootloader.State
	op       string
	done     int
	total    int
	percent  float64
	warnings []string
	finished bool
	err      error
}

func newModel(title string) model {
	return model{
		styles: DefaultStyles(),
		title:  title,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = msg.to
	case progressMsg:
		p := bootloader.Progress(msg)
		m.op = p.Operation
		m.done = p.Done
		m.total = p.Total
		m.percent = p.Fraction()
	case warningMsg:
		line := msg.msg
		if msg.err != nil {
			line += ": " + msg.err.Error()
		}
		m.warnings = append(m.warnings, line)
		if len(m.warnings) > maxWarnings {
			m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
		}
	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), 60)
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title))
	b.WriteString(" ")
	b.WriteString(m.styles.State.Render(m.state.String()))
	b.WriteString("\n")

	if m.op != "" {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s %d/%d bytes", m.op, m.done, m.total)))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(m.percent))
		b.WriteString("\n")
	}

	for _, w := range m.warnings {
		b.WriteString(m.styles.Warning.Render("! " + w))
		b.WriteString("\n")
	}

	if m.finished {
		if m.err != nil {
			b.WriteString(m.styles.Error.Render("failed: " + m.err.Error()))
		} else {
			b.WriteString(m.styles.Success.Render("done"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
