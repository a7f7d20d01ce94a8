package ddl

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/danizen/sqlextras/internal/lexer"
	"github.com/danizen/sqlextras/pkg/logger"
)

// Extractor pulls DDL actions out of SQL text. It holds no per-call state and
// may be shared between goroutines.
type Extractor struct {
	lexer  lexer.Lexer
	logger *log.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger that receives skipped-segment warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an extractor that tokenizes with lx.
func NewExtractor(lx lexer.Lexer, opts ...Option) *Extractor {
	e := &Extractor{lexer: lx, logger: logger.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lexer returns the tokenizer in use.
func (e *Extractor) Lexer() lexer.Lexer { return e.lexer }

// Segment extracts the action described by one segment.
func (e *Extractor) Segment(seg Segment) (Action, error) {
	toks := seg.Tokens

	kw, ok := nextDDLKeyword(toks, 0)
	if !ok {
		return Action{}, ErrNoDDLKeyword
	}
	ti, ok := nextTypeKeyword(toks, kw+1)
	if !ok {
		return Action{}, ErrNoTypeKeyword
	}
	ii, ok := nextIdentifier(toks, ti+1)
	if !ok {
		return Action{}, ErrNoIdentifier
	}

	typ, _ := ParseType(toks[ti].Value)
	name := objectName(toks[ii], typ)
	return NewAction(toks[kw].Value, NewObject(toks[ti].Value, name)), nil
}

// Actions extracts one action per well-formed segment, in source order.
// Segments that lack an anchor are logged and skipped.
func (e *Extractor) Actions(tokens []lexer.Token) []Action {
	var actions []Action
	for _, seg := range Segments(tokens) {
		a, err := e.Segment(seg)
		if err != nil {
			head := seg.Tokens[0]
			e.logger.Warn("skipping DDL segment",
				"reason", err,
				"keyword", head.Upper(),
				"line", head.Pos.Line,
				"column", head.Pos.Column,
			)
			continue
		}
		actions = append(actions, a)
	}
	return actions
}

// ExtractActions decodes r with the named encoding and extracts its actions.
// Read and decode failures abort the call without partial results.
func (e *Extractor) ExtractActions(r io.Reader, encoding string) ([]Action, error) {
	tokens, err := lexer.TokenizeReader(e.lexer, r, encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return e.Actions(tokens), nil
}

// ActionsFromFile extracts the actions of the SQL file at path.
func (e *Extractor) ActionsFromFile(path, encoding string) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	actions, err := e.ExtractActions(f, encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return actions, nil
}

// ExtractObjects returns the distinct objects touched by the DDL in r.
func (e *Extractor) ExtractObjects(r io.Reader, encoding string) (ObjectSet, error) {
	actions, err := e.ExtractActions(r, encoding)
	if err != nil {
		return nil, err
	}
	return ObjectsOf(actions), nil
}

// ObjectsFromFile returns the distinct objects touched by the SQL file at path.
func (e *Extractor) ObjectsFromFile(path, encoding string) (ObjectSet, error) {
	actions, err := e.ActionsFromFile(path, encoding)
	if err != nil {
		return nil, err
	}
	return ObjectsOf(actions), nil
}
