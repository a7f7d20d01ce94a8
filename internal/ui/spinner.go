package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner shows activity on stderr while a blocking call runs. It only
// animates when stderr is a terminal and output is not quiet.
type Spinner struct {
	message string
	output  *Output
	program *tea.Program
	done    chan struct{}
}

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
}

type spinnerDoneMsg struct{}

func initialSpinnerModel(message string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)
	return spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.message)
}

func NewSpinner(output *Output, message string) *Spinner {
	return &Spinner{
		message: message,
		output:  output,
		done:    make(chan struct{}),
	}
}

func (s *Spinner) animated() bool {
	if s.output.quiet || s.output.Structured() {
		return false
	}
	stat, err := os.Stderr.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

func (s *Spinner) Start() {
	if !s.animated() {
		close(s.done)
		return
	}
	model := initialSpinnerModel(s.message)
	s.program = tea.NewProgram(&model, tea.WithOutput(os.Stderr), tea.WithInput(nil))

	go func() {
		_, _ = s.program.Run()
		close(s.done)
	}()
}

func (s *Spinner) halt() {
	if s.program != nil {
		s.program.Send(spinnerDoneMsg{})
	}
	<-s.done
}

// Stop halts the spinner and reports success.
func (s *Spinner) Stop(message string) {
	s.halt()
	if !s.output.Structured() {
		s.output.Success(message)
	}
}

// Run shows the spinner while fn runs.
func (s *Spinner) Run(fn func() error) error {
	s.Start()
	err := fn()
	s.halt()
	return err
}
