// Package lexer turns SQL text into a flat sequence of classified tokens.
//
// Tokens are grouped the way the DDL extractor needs them: dotted names become
// identifiers, a name directly followed by an argument list becomes a function,
// and parenthesized runs become a single parenthesis token.
package lexer

import (
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	KindWhitespace Kind = iota
	KindComment
	KindPunctuation
	KindOperator
	KindLiteral
	KindKeyword
	KindDDL
	KindName
	KindIdentifier
	KindFunction
	KindParenthesis
)

func (k Kind) String() string {
	switch k {
	case KindWhitespace:
		return "WHITESPACE"
	case KindComment:
		return "COMMENT"
	case KindPunctuation:
		return "PUNCTUATION"
	case KindOperator:
		return "OPERATOR"
	case KindLiteral:
		return "LITERAL"
	case KindKeyword:
		return "KEYWORD"
	case KindDDL:
		return "DDL"
	case KindName:
		return "NAME"
	case KindIdentifier:
		return "IDENTIFIER"
	case KindFunction:
		return "FUNCTION"
	case KindParenthesis:
		return "PARENTHESIS"
	default:
		return "UNKNOWN"
	}
}

// Position is the location of a token's first byte in the source.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token is a classified unit of SQL text.
//
// Group kinds carry their constituents in Children:
//   - KindIdentifier: names separated by "." punctuation; one child for a simple identifier
//   - KindFunction: the name identifier followed by its parenthesis
//   - KindParenthesis: everything from "(" to the matching ")"
type Token struct {
	Kind     Kind
	Value    string
	Pos      Position
	Children []Token
}

// Upper returns the token text upper-cased.
func (t Token) Upper() string {
	return strings.ToUpper(t.Value)
}

// IsGroup reports whether the token is built from sub-tokens.
func (t Token) IsGroup() bool {
	return t.Kind == KindIdentifier || t.Kind == KindFunction || t.Kind == KindParenthesis
}

// IsCompound reports whether an identifier has more than one constituent.
func (t Token) IsCompound() bool {
	return t.Kind == KindIdentifier && len(t.Children) > 1
}

// String returns the token kind and text.
func (t Token) String() string {
	return t.Kind.String() + ": " + t.Value
}

// Statement is the run of tokens up to and including a top-level ";".
type Statement struct {
	Tokens []Token
}

// Flatten concatenates the tokens of every statement in order.
func Flatten(stmts []Statement) []Token {
	n := 0
	for _, s := range stmts {
		n += len(s.Tokens)
	}
	tokens := make([]Token, 0, n)
	for _, s := range stmts {
		tokens = append(tokens, s.Tokens...)
	}
	return tokens
}
