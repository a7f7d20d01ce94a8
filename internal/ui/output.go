package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatPlain OutputFormat = "plain"
)

// Formats lists the accepted --output values.
var Formats = []OutputFormat{FormatTable, FormatJSON, FormatYAML, FormatPlain}

// ParseFormat resolves an --output value.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want table, json, yaml or plain)", s)
}

// Output writes messages and results. Messages are suppressed in quiet mode,
// results never are.
type Output struct {
	format  OutputFormat
	writer  io.Writer
	noColor bool
	quiet   bool
}

func NewOutput(format OutputFormat, noColor, quiet bool) *Output {
	return &Output{
		format:  format,
		writer:  os.Stdout,
		noColor: noColor,
		quiet:   quiet,
	}
}

func (o *Output) SetWriter(w io.Writer) {
	o.writer = w
}

func (o *Output) Format() OutputFormat { return o.format }

// Structured reports whether results are written as JSON or YAML.
func (o *Output) Structured() bool {
	return o.format == FormatJSON || o.format == FormatYAML
}

func (o *Output) Print(msg string) {
	if o.quiet {
		return
	}
	_, _ = fmt.Fprintln(o.writer, msg)
}

func (o *Output) Printf(format string, args ...interface{}) {
	o.Print(fmt.Sprintf(format, args...))
}

func (o *Output) status(icon string, style lipgloss.Style, msg string) {
	if o.quiet {
		return
	}
	if o.noColor {
		_, _ = fmt.Fprintf(o.writer, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintln(o.writer, style.Render(icon)+" "+msg)
}

func (o *Output) Success(msg string) { o.status(IconSuccess, Success, msg) }
func (o *Output) Warning(msg string) { o.status(IconWarning, Warning, msg) }
func (o *Output) Info(msg string)    { o.status(IconInfo, Info, msg) }

// Error is written even in quiet mode.
func (o *Output) Error(msg string) {
	if o.noColor {
		_, _ = fmt.Fprintf(o.writer, "%s %s\n", IconError, msg)
		return
	}
	_, _ = fmt.Fprintln(o.writer, Error.Render(IconError+" "+msg))
}

func (o *Output) Title(msg string) {
	if o.quiet {
		return
	}
	if o.noColor {
		_, _ = fmt.Fprintln(o.writer, msg)
		return
	}
	_, _ = fmt.Fprintln(o.writer, Title.Render(msg))
}

func (o *Output) KeyValue(key, value string) {
	if o.quiet {
		return
	}
	if o.noColor {
		_, _ = fmt.Fprintf(o.writer, "  %s: %s\n", key, value)
		return
	}
	_, _ = fmt.Fprintf(o.writer, "  %s: %s\n", Muted.Render(key), value)
}

func (o *Output) JSON(data interface{}) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (o *Output) YAML(data interface{}) error {
	enc := yaml.NewEncoder(o.writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// Data writes data in the configured structured format. It is a no-op for
// table and plain output, which callers render themselves.
func (o *Output) Data(data interface{}) error {
	switch o.format {
	case FormatJSON:
		return o.JSON(data)
	case FormatYAML:
		return o.YAML(data)
	default:
		return nil
	}
}

// IsInteractive reports whether output goes to a terminal.
func (o *Output) IsInteractive() bool {
	if f, ok := o.writer.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// Table collects rows for text output. Plain format writes rows as
// tab-separated lines without a header.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		output:  output,
	}
}

func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Render() {
	w := t.output.writer
	switch {
	case t.output.format == FormatPlain:
		for _, row := range t.rows {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	case t.output.noColor:
		t.renderPadded()
	default:
		tbl := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(Muted).
			Headers(t.headers...).
			Rows(t.rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return HeaderStyle
				}
				return CellStyle
			})
		_, _ = fmt.Fprintln(w, tbl.Render())
	}
}

func (t *Table) renderPadded() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, col := range row {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	line := func(cols []string) {
		cells := make([]string, len(cols))
		for i, col := range cols {
			if i == len(cols)-1 || i >= len(widths) {
				cells[i] = col
				continue
			}
			cells[i] = padRight(col, widths[i])
		}
		_, _ = fmt.Fprintln(t.output.writer, strings.Join(cells, "  "))
	}
	line(t.headers)
	for _, row := range t.rows {
		line(row)
	}
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
