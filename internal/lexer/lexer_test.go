package lexer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func significant(tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		if t.Kind == KindWhitespace || t.Kind == KindComment {
			continue
		}
		out = append(out, t)
	}
	return out
}

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func tokenize(t *testing.T, sql string) []Token {
	t.Helper()
	tokens, err := Tokenize(genericLexer{}, sql)
	assert.NoError(t, err)
	return tokens
}

func TestTokenizeIsLossless(t *testing.T) {
	inputs := []string{
		"CREATE TABLE a (id int);\nCREATE INDEX idx ON a (id);",
		"-- leading comment\n/* block /* nested */ still */ DROP VIEW v;",
		"CREATE FUNCTION f(x int) RETURNS int AS $$ SELECT x + 1; $$ LANGUAGE sql;",
		"SELECT 'it''s', E'a\\'b', \"Quoted\"\"Name\", [bracket name] FROM t",
		"unterminated 'string",
	}
	for _, sql := range inputs {
		var b strings.Builder
		for _, tok := range tokenize(t, sql) {
			b.WriteString(tok.Value)
		}
		assert.Equal(t, sql, b.String())
	}
}

func TestWordClassification(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Kind
	}{
		{"ddl keywords", "create alter drop truncate", []Kind{KindDDL, KindDDL, KindDDL, KindDDL}},
		{"type keywords", "TABLE view Sequence", []Kind{KindKeyword, KindKeyword, KindKeyword}},
		{"plain name", "customers", []Kind{KindIdentifier}},
		{"quoted name", `"Table"`, []Kind{KindIdentifier}},
		{"literals", "'x' 42 1.5e3", []Kind{KindLiteral, KindLiteral, KindLiteral}},
		{"operators", "a >= b", []Kind{KindIdentifier, KindOperator, KindIdentifier}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, kinds(significant(tokenize(t, tt.input))))
		})
	}
}

func TestCreateOrReplaceFolds(t *testing.T) {
	tokens := significant(tokenize(t, "create  or\nreplace view v as select 1"))
	assert.Equal(t, KindDDL, tokens[0].Kind)
	assert.Equal(t, "create or replace", tokens[0].Value)
	assert.Equal(t, KindKeyword, tokens[1].Kind)
	assert.Equal(t, "view", tokens[1].Value)
}

func TestCreateWithoutReplace(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE OR TABLE"))
	assert.Equal(t, []Kind{KindDDL, KindKeyword, KindKeyword}, kinds(tokens))
	assert.Equal(t, "CREATE", tokens[0].Value)
}

func TestCompoundIdentifier(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE VIEW public.my_view AS SELECT 1"))
	ident := tokens[2]
	assert.Equal(t, KindIdentifier, ident.Kind)
	assert.Equal(t, "public.my_view", ident.Value)
	assert.True(t, ident.IsCompound())
	assert.Equal(t, []Kind{KindName, KindPunctuation, KindName}, kinds(ident.Children))
	assert.Equal(t, "public", ident.Children[0].Value)
	assert.Equal(t, "my_view", ident.Children[2].Value)
}

func TestKeywordInsideDottedName(t *testing.T) {
	tokens := significant(tokenize(t, "DROP TABLE app.table"))
	assert.Equal(t, KindIdentifier, tokens[2].Kind)
	assert.Equal(t, "app.table", tokens[2].Value)
}

func TestKeywordAfterObjectKeywordIsName(t *testing.T) {
	tests := []struct {
		input    string
		expected []Kind
	}{
		{"CREATE TABLE comment (id int)", []Kind{KindDDL, KindKeyword, KindIdentifier, KindParenthesis}},
		{"DROP TABLE IF EXISTS role", []Kind{KindDDL, KindKeyword, KindKeyword, KindKeyword, KindIdentifier}},
		{"CREATE INDEX /* pk */ key ON t (k)", []Kind{KindDDL, KindKeyword, KindIdentifier, KindKeyword, KindIdentifier, KindParenthesis}},
		{"CREATE INDEX ON t (k)", []Kind{KindDDL, KindKeyword, KindKeyword, KindIdentifier, KindParenthesis}},
		{"CREATE MATERIALIZED VIEW v", []Kind{KindDDL, KindKeyword, KindKeyword, KindIdentifier}},
		{"CREATE TABLE t (key text)", []Kind{KindDDL, KindKeyword, KindIdentifier, KindParenthesis}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, kinds(significant(tokenize(t, tt.input))), tt.input)
	}
}

func TestFunctionToken(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE FUNCTION util.add(a INT, b INT) RETURNS INT"))
	fn := tokens[2]
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, "util.add(a INT, b INT)", fn.Value)
	assert.Equal(t, 2, len(fn.Children))
	assert.Equal(t, KindIdentifier, fn.Children[0].Kind)
	assert.Equal(t, "util.add", fn.Children[0].Value)
	assert.Equal(t, KindParenthesis, fn.Children[1].Kind)
}

func TestNameBeforeSpacedParenthesisIsIdentifier(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE TABLE orders (id int)"))
	assert.Equal(t, []Kind{KindDDL, KindKeyword, KindIdentifier, KindParenthesis}, kinds(tokens))
}

func TestParenthesisHidesNestedTokens(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE TABLE t (a int, CHECK (a > 0))"))
	assert.Equal(t, 4, len(tokens))
	paren := tokens[3]
	assert.Equal(t, "(a int, CHECK (a > 0))", paren.Value)
	assert.Equal(t, "(", paren.Children[0].Value)
	assert.Equal(t, ")", paren.Children[len(paren.Children)-1].Value)
}

func TestUnclosedParenthesisRunsToEnd(t *testing.T) {
	tokens := significant(tokenize(t, "CREATE TABLE t (a int, b text"))
	assert.Equal(t, 4, len(tokens))
	assert.Equal(t, KindParenthesis, tokens[3].Kind)
	assert.Equal(t, "(a int, b text", tokens[3].Value)
}

func TestUnclosedParenthesisStopsAtSemicolon(t *testing.T) {
	stmts, err := genericLexer{}.Statements("CREATE TABLE t (a int (3; CREATE VIEW v")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(stmts))

	first := significant(stmts[0].Tokens)
	assert.Equal(t, []Kind{KindDDL, KindKeyword, KindIdentifier, KindParenthesis, KindPunctuation}, kinds(first))
	assert.Equal(t, "(a int (3", first[3].Value)

	second := significant(stmts[1].Tokens)
	assert.Equal(t, []Kind{KindDDL, KindKeyword, KindIdentifier}, kinds(second))
}

func TestDollarQuotedBodyIsLiteral(t *testing.T) {
	sql := "AS $body$ BEGIN CREATE TABLE x (); END $body$"
	tokens := significant(tokenize(t, sql))
	assert.Equal(t, []Kind{KindKeyword, KindLiteral}, kinds(tokens))
}

func TestStatementsSplitAtTopLevelSemicolons(t *testing.T) {
	stmts, err := genericLexer{}.Statements("CREATE TABLE a (x int); CREATE INDEX i ON a (x);  ")
	assert.NoError(t, err)
	assert.Equal(t, 3, len(stmts))
	last := stmts[0].Tokens[len(stmts[0].Tokens)-1]
	assert.Equal(t, ";", last.Value)

	flat := Flatten(stmts)
	total := 0
	for _, s := range stmts {
		total += len(s.Tokens)
	}
	assert.Equal(t, total, len(flat))
}

func TestPositions(t *testing.T) {
	tokens := significant(tokenize(t, "-- header\n  CREATE TABLE t"))
	assert.Equal(t, Position{Line: 2, Column: 3, Offset: 12}, tokens[0].Pos)
	assert.Equal(t, Position{Line: 2, Column: 10, Offset: 19}, tokens[1].Pos)
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{"", DialectGeneric, false},
		{"generic", DialectGeneric, false},
		{"PostgreSQL", DialectPostgres, false},
		{"pg", DialectPostgres, false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.input)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrUnknownDialect))
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := New("oracle")
	assert.True(t, errors.Is(err, ErrUnknownDialect))
}

func TestDecode(t *testing.T) {
	t.Run("default utf-8 strips bom", func(t *testing.T) {
		got, err := Decode(strings.NewReader("\ufeffCREATE TABLE é"), "")
		assert.NoError(t, err)
		assert.Equal(t, "CREATE TABLE é", got)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := Decode(bytes.NewReader([]byte{'a', 0xff, 'b'}), "utf-8")
		assert.True(t, errors.Is(err, ErrDecode))
	})

	t.Run("latin1", func(t *testing.T) {
		got, err := Decode(bytes.NewReader([]byte("caf\xe9")), "latin1")
		assert.NoError(t, err)
		assert.Equal(t, "café", got)
	})

	t.Run("utf-16 with bom", func(t *testing.T) {
		got, err := Decode(bytes.NewReader([]byte{0xff, 0xfe, 'h', 0, 'i', 0}), "utf-16le")
		assert.NoError(t, err)
		assert.Equal(t, "hi", got)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := Decode(strings.NewReader("x"), "no-such-charset")
		assert.True(t, errors.Is(err, ErrUnknownEncoding))
	})
}

func TestTokenizeReaderPropagatesDecodeErrors(t *testing.T) {
	_, err := TokenizeReader(genericLexer{}, bytes.NewReader([]byte{0xc3}), "utf-8")
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, IsKeyword("create"))
	assert.True(t, IsKeyword("Synonym"))
	assert.False(t, IsKeyword("customers"))
}
