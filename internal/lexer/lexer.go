package lexer

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrUnknownDialect = errors.New("unknown SQL dialect")
	ErrScan           = errors.New("scan SQL")
)

// Dialect selects how SQL text is split into lexemes.
type Dialect string

const (
	// DialectGeneric uses the built-in scanner.
	DialectGeneric Dialect = "generic"
	// DialectPostgres takes lexeme boundaries from the PostgreSQL scanner.
	DialectPostgres Dialect = "postgres"
)

// Dialects lists the supported dialects.
var Dialects = []Dialect{DialectGeneric, DialectPostgres}

// ParseDialect resolves a dialect name. The empty string selects the generic dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic", "ansi":
		return DialectGeneric, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Lexer splits SQL text into statements of classified tokens.
type Lexer interface {
	Dialect() Dialect
	Statements(sql string) ([]Statement, error)
}

// New returns the lexer for a dialect.
func New(d Dialect) (Lexer, error) {
	switch d {
	case DialectGeneric, "":
		return genericLexer{}, nil
	case DialectPostgres:
		return postgresLexer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
	}
}

type genericLexer struct{}

func (genericLexer) Dialect() Dialect { return DialectGeneric }

func (genericLexer) Statements(sql string) ([]Statement, error) {
	return statements(scanLexemes(sql)), nil
}

// Tokenize lexes sql and flattens the statements into one token sequence.
func Tokenize(lx Lexer, sql string) ([]Token, error) {
	stmts, err := lx.Statements(sql)
	if err != nil {
		return nil, err
	}
	return Flatten(stmts), nil
}

// TokenizeReader decodes r with the named encoding and tokenizes the text.
func TokenizeReader(lx Lexer, r io.Reader, encoding string) ([]Token, error) {
	sql, err := Decode(r, encoding)
	if err != nil {
		return nil, err
	}
	return Tokenize(lx, sql)
}
