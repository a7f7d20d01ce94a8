package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/danizen/sqlextras/pkg/logger"
)

// Progress tracks work over a known number of sources on stderr. When
// stderr is not a terminal steps are only logged at debug level.
type Progress struct {
	total   int
	current int
	output  *Output
	program *tea.Program
	done    chan struct{}
}

type progressModel struct {
	progress progress.Model
	message  string
	percent  float64
}

type progressUpdateMsg struct {
	percent float64
	message string
}

type progressDoneMsg struct{}

func initialProgressModel(message string) progressModel {
	p := progress.New(
		progress.WithGradient(string(ColorPrimary), string(ColorAccent)),
		progress.WithWidth(40),
	)
	return progressModel{
		progress: p,
		message:  message,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return nil
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-20, 20), 60)
	case progressUpdateMsg:
		m.percent = msg.percent
		if msg.message != "" {
			m.message = msg.message
		}
	case progressDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	return fmt.Sprintf("%s\n%s", m.progress.ViewAs(m.percent), Muted.Render(m.message))
}

func NewProgress(output *Output, total int) *Progress {
	return &Progress{
		total:  total,
		output: output,
		done:   make(chan struct{}),
	}
}

func (p *Progress) interactive() bool {
	if p.output.quiet || p.total < 2 {
		return false
	}
	stat, err := os.Stderr.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

func (p *Progress) Start() {
	if !p.interactive() {
		close(p.done)
		return
	}
	model := initialProgressModel("")
	p.program = tea.NewProgram(&model, tea.WithOutput(os.Stderr), tea.WithInput(nil))

	go func() {
		_, _ = p.program.Run()
		close(p.done)
	}()
}

// Step marks one more source as handled.
func (p *Progress) Step(message string) {
	p.current++
	if p.program == nil {
		logger.Debug("progress", "step", p.current, "total", p.total, "source", message)
		return
	}
	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	p.program.Send(progressUpdateMsg{percent: percent, message: message})
}

// Done stops the display and waits for it to exit.
func (p *Progress) Done() {
	if p.program != nil {
		p.program.Send(progressDoneMsg{})
	}
	<-p.done
}
