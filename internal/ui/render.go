package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/internal/storage"
)

// Actions writes extracted actions in source order.
func (o *Output) Actions(actions []ddl.Action) error {
	if o.Structured() {
		if actions == nil {
			actions = []ddl.Action{}
		}
		return o.Data(actions)
	}
	t := NewTable(o, "ACTION", "TYPE", "NAME")
	for _, a := range actions {
		t.AddRow(o.verb(a.Action()), o.styled(TypeStyle, a.Object().Type()), a.Object().Name())
	}
	t.Render()
	return nil
}

// Objects writes a set of objects sorted by type then name.
func (o *Output) Objects(set ddl.ObjectSet) error {
	if o.Structured() {
		if set == nil {
			set = ddl.NewObjectSet()
		}
		return o.Data(set)
	}
	t := NewTable(o, "TYPE", "NAME")
	for _, obj := range set.Sorted() {
		t.AddRow(o.styled(TypeStyle, obj.Type()), obj.Name())
	}
	t.Render()
	return nil
}

type tokenRow struct {
	Kind   string `json:"kind" yaml:"kind"`
	Value  string `json:"value" yaml:"value"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

// Tokens writes top-level tokens with their positions. Whitespace is left out
// unless all is set.
func (o *Output) Tokens(tokens []lexer.Token, all bool) error {
	rows := make([]tokenRow, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == lexer.KindWhitespace && !all {
			continue
		}
		rows = append(rows, tokenRow{
			Kind:   tok.Kind.String(),
			Value:  tok.Value,
			Line:   tok.Pos.Line,
			Column: tok.Pos.Column,
		})
	}
	if o.Structured() {
		return o.Data(rows)
	}
	t := NewTable(o, "POS", "KIND", "VALUE")
	for _, r := range rows {
		t.AddRow(fmt.Sprintf("%d:%d", r.Line, r.Column), r.Kind, strconv.Quote(r.Value))
	}
	t.Render()
	return nil
}

// Scans writes ledger entries newest first.
func (o *Output) Scans(scans []*storage.Scan) error {
	if o.Structured() {
		if scans == nil {
			scans = []*storage.Scan{}
		}
		return o.Data(scans)
	}
	t := NewTable(o, "ID", "SOURCE", "ACTIONS", "DIALECT", "SCANNED")
	for _, s := range scans {
		t.AddRow(
			s.ID.String(),
			s.Source,
			strconv.Itoa(s.ActionCount),
			s.Dialect,
			s.ScannedAt.Local().Format(time.DateTime),
		)
	}
	t.Render()
	return nil
}

type scanDetail struct {
	storage.Scan `yaml:",inline"`
	Actions      []ddl.Action `json:"actions" yaml:"actions"`
}

// Scan writes one ledger entry with the actions it recorded.
func (o *Output) Scan(scan *storage.Scan, actions []ddl.Action) error {
	if actions == nil {
		actions = []ddl.Action{}
	}
	if o.Structured() {
		return o.Data(scanDetail{Scan: *scan, Actions: actions})
	}
	if o.format != FormatPlain {
		o.Title(scan.Source)
		o.KeyValue("id", scan.ID.String())
		o.KeyValue("encoding", scan.Encoding)
		o.KeyValue("dialect", scan.Dialect)
		o.KeyValue("checksum", scan.Checksum)
		o.KeyValue("scanned", scan.ScannedAt.Local().Format(time.DateTime))
		o.Print("")
	}
	return o.Actions(actions)
}

func (o *Output) styled(style lipgloss.Style, s string) string {
	if o.noColor || o.format == FormatPlain {
		return s
	}
	return style.Render(s)
}

func (o *Output) verb(action string) string {
	switch {
	case strings.HasPrefix(action, "CREATE"):
		return o.styled(CreateStyle, action)
	case action == "DROP", action == "TRUNCATE":
		return o.styled(DropStyle, action)
	default:
		return o.styled(AlterStyle, action)
	}
}
