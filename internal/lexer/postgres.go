package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// postgresLexer asks the PostgreSQL scanner where lexemes start and end, which
// gets dollar quoting, escape strings and nested comments exactly right. The
// gaps between scanned tokens are whitespace.
type postgresLexer struct{}

func (postgresLexer) Dialect() Dialect { return DialectPostgres }

func (postgresLexer) Statements(sql string) ([]Statement, error) {
	lexemes, err := pgLexemes(sql)
	if err != nil {
		return nil, err
	}
	return statements(lexemes), nil
}

func pgLexemes(sql string) ([]lexeme, error) {
	result, err := pg_query.Scan(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScan, err)
	}

	lexemes := make([]lexeme, 0, 2*len(result.Tokens)+1)
	off := 0
	for _, tok := range result.Tokens {
		start, end := int(tok.Start), int(tok.End)
		if start < off || end > len(sql) || start > end {
			return nil, fmt.Errorf("%w: token out of range [%d:%d]", ErrScan, start, end)
		}
		if start > off {
			lexemes = append(lexemes, lexeme{kind: lexWhitespace, text: sql[off:start]})
		}
		text := sql[start:end]
		lexemes = append(lexemes, lexeme{kind: pgLexKind(text), text: text})
		off = end
	}
	if off < len(sql) {
		lexemes = append(lexemes, lexeme{kind: lexWhitespace, text: sql[off:]})
	}
	return lexemes, nil
}

// pgLexKind maps the text of a scanned PostgreSQL token onto a lexeme kind.
func pgLexKind(text string) lexKind {
	if text == "" {
		return lexOther
	}
	upper := strings.ToUpper(text)
	first, _ := utf8.DecodeRuneInString(text)
	switch {
	case strings.HasPrefix(text, "--"), strings.HasPrefix(text, "/*"):
		return lexComment
	case first == '\'', first == '$' && len(text) > 1 && !unicode.IsDigit(rune(text[1])):
		return lexString
	case len(text) > 1 && text[1] == '\'' && isStringPrefix(first):
		return lexString
	case strings.HasPrefix(upper, "U&'"):
		return lexString
	case first == '"', strings.HasPrefix(upper, `U&"`):
		return lexQuotedName
	case unicode.IsDigit(first), first == '.' && len(text) > 1:
		return lexNumber
	case isIdentStart(first):
		return lexWord
	}

	switch text {
	case "(":
		return lexOpenParen
	case ")":
		return lexCloseParen
	case ",":
		return lexComma
	case ";":
		return lexSemicolon
	case ".":
		return lexDot
	}
	if strings.ContainsRune(operatorChars, first) {
		return lexOperator
	}
	return lexOther
}
