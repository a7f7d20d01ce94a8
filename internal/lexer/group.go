package lexer

import (
	"strings"
)

// grouper folds lexemes into classified tokens.
type grouper struct {
	lx []lexeme
	i  int
}

// statements groups lexemes and splits the result at top-level semicolons.
func statements(lexemes []lexeme) []Statement {
	locate(lexemes)
	g := &grouper{lx: lexemes}

	var stmts []Statement
	var cur []Token
	for g.i < len(g.lx) {
		tok := g.token()
		cur = append(cur, tok)
		if tok.Kind == KindPunctuation && tok.Value == ";" {
			stmts = append(stmts, Statement{Tokens: cur})
			cur = nil
		}
	}
	if len(cur) > 0 {
		stmts = append(stmts, Statement{Tokens: cur})
	}
	return stmts
}

func (g *grouper) at(offset int) (lexeme, bool) {
	j := g.i + offset
	if j < 0 || j >= len(g.lx) {
		return lexeme{}, false
	}
	return g.lx[j], true
}

func (g *grouper) kindAt(offset int) lexKind {
	l, ok := g.at(offset)
	if !ok {
		return -1
	}
	return l.kind
}

// token consumes one top-level token starting at the current lexeme.
func (g *grouper) token() Token {
	l := g.lx[g.i]
	switch l.kind {
	case lexWord:
		if g.startsChain() {
			return g.identifier()
		}
		upper := strings.ToUpper(l.text)
		kind := classifyWord(upper)
		if kind == KindKeyword && !objectKeywords[upper] && !nameGuards[upper] && g.namesObject() {
			kind = KindName
		}
		if kind == KindName {
			return g.identifier()
		}
		if upper == "CREATE" {
			if tok, ok := g.createOrReplace(); ok {
				return tok
			}
		}
		g.i++
		return Token{Kind: kind, Value: l.text, Pos: l.pos}
	case lexQuotedName:
		return g.identifier()
	case lexOpenParen:
		return g.parenthesis()
	}

	g.i++
	return Token{Kind: simpleKind(l.kind), Value: l.text, Pos: l.pos}
}

func simpleKind(k lexKind) Kind {
	switch k {
	case lexWhitespace:
		return KindWhitespace
	case lexComment:
		return KindComment
	case lexString, lexNumber:
		return KindLiteral
	case lexOperator, lexOther:
		return KindOperator
	default:
		return KindPunctuation
	}
}

// startsChain reports whether the current word is the head of a dotted name,
// in which case it is a name even when it spells a keyword.
func (g *grouper) startsChain() bool {
	return g.kindAt(1) == lexDot && isNamePart(g.kindAt(2))
}

// namesObject reports whether the current word comes right after an object
// keyword, looking back over whitespace, comments and guards such as
// IF NOT EXISTS.
func (g *grouper) namesObject() bool {
	for j := g.i - 1; j >= 0; j-- {
		l := g.lx[j]
		switch l.kind {
		case lexWhitespace, lexComment:
			continue
		case lexWord:
			upper := strings.ToUpper(l.text)
			if nameGuards[upper] && upper != "ON" && upper != "BODY" {
				continue
			}
			return objectKeywords[upper] && (j == 0 || g.lx[j-1].kind != lexDot)
		}
		return false
	}
	return false
}

func isNamePart(k lexKind) bool {
	return k == lexWord || k == lexQuotedName
}

// identifier consumes NAME ("." NAME)* and, when an argument list follows
// without intervening whitespace, wraps it into a function token.
func (g *grouper) identifier() Token {
	first := g.lx[g.i]
	children := []Token{{Kind: KindName, Value: first.text, Pos: first.pos}}
	g.i++
	for g.kindAt(0) == lexDot && isNamePart(g.kindAt(1)) {
		dot, name := g.lx[g.i], g.lx[g.i+1]
		children = append(children,
			Token{Kind: KindPunctuation, Value: dot.text, Pos: dot.pos},
			Token{Kind: KindName, Value: name.text, Pos: name.pos},
		)
		g.i += 2
	}
	ident := Token{Kind: KindIdentifier, Value: joinValues(children), Pos: first.pos, Children: children}

	if g.kindAt(0) != lexOpenParen {
		return ident
	}
	args := g.parenthesis()
	return Token{
		Kind:     KindFunction,
		Value:    ident.Value + args.Value,
		Pos:      ident.Pos,
		Children: []Token{ident, args},
	}
}

// parenthesis consumes "(" through the matching ")". An unclosed group ends
// before the next semicolon, or at the end of input, so the statements after
// it still split.
func (g *grouper) parenthesis() Token {
	open := g.lx[g.i]
	g.i++
	children := []Token{{Kind: KindPunctuation, Value: open.text, Pos: open.pos}}
	for g.i < len(g.lx) {
		l := g.lx[g.i]
		if l.kind == lexSemicolon {
			break
		}
		if l.kind == lexCloseParen {
			children = append(children, Token{Kind: KindPunctuation, Value: l.text, Pos: l.pos})
			g.i++
			break
		}
		children = append(children, g.token())
	}
	return Token{Kind: KindParenthesis, Value: joinValues(children), Pos: open.pos, Children: children}
}

// createOrReplace folds CREATE OR REPLACE into a single DDL keyword.
func (g *grouper) createOrReplace() (Token, bool) {
	j := g.i + 1
	words := []string{g.lx[g.i].text}
	for _, want := range []string{"OR", "REPLACE"} {
		if j >= len(g.lx) || g.lx[j].kind != lexWhitespace {
			return Token{}, false
		}
		j++
		if j >= len(g.lx) || g.lx[j].kind != lexWord || !strings.EqualFold(g.lx[j].text, want) {
			return Token{}, false
		}
		words = append(words, g.lx[j].text)
		j++
	}
	tok := Token{Kind: KindDDL, Value: strings.Join(words, " "), Pos: g.lx[g.i].pos}
	g.i = j
	return tok, true
}

func joinValues(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Value)
	}
	return b.String()
}
