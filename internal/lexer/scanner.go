package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexKind classifies raw lexemes before grouping.
type lexKind int

const (
	lexWhitespace lexKind = iota
	lexComment
	lexWord
	lexQuotedName
	lexString
	lexNumber
	lexOpenParen
	lexCloseParen
	lexComma
	lexSemicolon
	lexDot
	lexOperator
	lexOther
)

// lexeme is an ungrouped slice of the source. Lexemes are contiguous: joining
// their text reproduces the input.
type lexeme struct {
	kind lexKind
	text string
	pos  Position
}

const operatorChars = "+-*/<>=~!@#%^&|?:"

// scanner splits SQL text into lexemes. Unterminated strings, quoted names and
// comments run to the end of input.
type scanner struct {
	src string
	off int
}

func scanLexemes(src string) []lexeme {
	s := &scanner{src: src}
	lexemes := make([]lexeme, 0, len(src)/4+1)
	for s.off < len(s.src) {
		start := s.off
		kind := s.next()
		lexemes = append(lexemes, lexeme{kind: kind, text: s.src[start:s.off]})
	}
	return lexemes
}

func (s *scanner) peek(n int) rune {
	off := s.off
	for i := 0; i < n && off < len(s.src); i++ {
		_, w := utf8.DecodeRuneInString(s.src[off:])
		off += w
	}
	if off >= len(s.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.src[off:])
	return r
}

func (s *scanner) advance() {
	if s.off < len(s.src) {
		_, w := utf8.DecodeRuneInString(s.src[s.off:])
		s.off += w
	}
}

func (s *scanner) advanceWhile(pred func(rune) bool) {
	for s.off < len(s.src) && pred(s.peek(0)) {
		s.advance()
	}
}

func (s *scanner) next() lexKind {
	r := s.peek(0)
	switch {
	case unicode.IsSpace(r):
		s.advanceWhile(unicode.IsSpace)
		return lexWhitespace
	case r == '-' && s.peek(1) == '-':
		s.readLineComment()
		return lexComment
	case r == '/' && s.peek(1) == '*':
		s.readBlockComment()
		return lexComment
	case r == '\'':
		s.readQuoted('\'', false)
		return lexString
	case isStringPrefix(r) && s.peek(1) == '\'':
		s.advance()
		s.readQuoted('\'', r == 'E' || r == 'e')
		return lexString
	case r == '"':
		s.readQuoted('"', false)
		return lexQuotedName
	case r == '`':
		s.readQuoted('`', false)
		return lexQuotedName
	case r == '[' && isIdentStart(s.peek(1)):
		s.readBracketed()
		return lexQuotedName
	case r == '$' && s.readDollarQuoted():
		return lexString
	case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(s.peek(1))):
		s.readNumber()
		return lexNumber
	case isIdentStart(r):
		s.advanceWhile(isIdentPart)
		return lexWord
	case r == '(':
		s.advance()
		return lexOpenParen
	case r == ')':
		s.advance()
		return lexCloseParen
	case r == ',':
		s.advance()
		return lexComma
	case r == ';':
		s.advance()
		return lexSemicolon
	case r == '.':
		s.advance()
		return lexDot
	case strings.ContainsRune(operatorChars, r):
		s.readOperator()
		return lexOperator
	default:
		s.advance()
		return lexOther
	}
}

func (s *scanner) readLineComment() {
	for s.off < len(s.src) && s.peek(0) != '\n' {
		s.advance()
	}
}

// readBlockComment consumes a /* */ comment, honoring nesting.
func (s *scanner) readBlockComment() {
	depth := 0
	for s.off < len(s.src) {
		switch {
		case s.peek(0) == '/' && s.peek(1) == '*':
			depth++
			s.advance()
			s.advance()
		case s.peek(0) == '*' && s.peek(1) == '/':
			depth--
			s.advance()
			s.advance()
			if depth == 0 {
				return
			}
		default:
			s.advance()
		}
	}
}

// readQuoted consumes a delimited run where a doubled delimiter stands for
// itself. With backslash set, a backslash escapes the next rune.
func (s *scanner) readQuoted(delim rune, backslash bool) {
	s.advance()
	for s.off < len(s.src) {
		r := s.peek(0)
		switch {
		case backslash && r == '\\':
			s.advance()
			s.advance()
		case r == delim && s.peek(1) == delim:
			s.advance()
			s.advance()
		case r == delim:
			s.advance()
			return
		default:
			s.advance()
		}
	}
}

func (s *scanner) readBracketed() {
	for s.off < len(s.src) {
		r := s.peek(0)
		s.advance()
		if r == ']' {
			return
		}
	}
}

// readDollarQuoted consumes $tag$...$tag$ and reports whether the input at the
// current offset opens a dollar quote at all.
func (s *scanner) readDollarQuoted() bool {
	rest := s.src[s.off+1:]
	end := strings.IndexByte(rest, '$')
	if end < 0 {
		return false
	}
	tag := rest[:end]
	for i, r := range tag {
		if !isIdentPart(r) || r == '$' || (i == 0 && unicode.IsDigit(r)) {
			return false
		}
	}
	delim := "$" + tag + "$"
	body := s.src[s.off+len(delim):]
	closeAt := strings.Index(body, delim)
	if closeAt < 0 {
		s.off = len(s.src)
		return true
	}
	s.off += len(delim) + closeAt + len(delim)
	return true
}

func (s *scanner) readNumber() {
	s.advanceWhile(unicode.IsDigit)
	if s.peek(0) == '.' && unicode.IsDigit(s.peek(1)) {
		s.advance()
		s.advanceWhile(unicode.IsDigit)
	}
	if r := s.peek(0); r == 'e' || r == 'E' {
		next := s.peek(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(s.peek(2))) {
			s.advance()
			s.advance()
			s.advanceWhile(unicode.IsDigit)
		}
	}
}

func (s *scanner) readOperator() {
	for s.off < len(s.src) {
		r := s.peek(0)
		if !strings.ContainsRune(operatorChars, r) {
			return
		}
		// a comment opener ends the operator run
		if (r == '-' && s.peek(1) == '-') || (r == '/' && s.peek(1) == '*') {
			return
		}
		s.advance()
	}
}

func isStringPrefix(r rune) bool {
	switch r {
	case 'E', 'e', 'N', 'n', 'B', 'b', 'X', 'x':
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '#'
}

// locate fills in lexeme positions by walking their text in order.
func locate(lexemes []lexeme) {
	pos := Position{Line: 1, Column: 1}
	for i := range lexemes {
		lexemes[i].pos = pos
		for _, r := range lexemes[i].text {
			if r == '\n' {
				pos.Line++
				pos.Column = 1
			} else {
				pos.Column++
			}
		}
		pos.Offset += len(lexemes[i].text)
	}
}
