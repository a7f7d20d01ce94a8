package ddl

import (
	"errors"

	"github.com/danizen/sqlextras/internal/lexer"
)

var (
	ErrNoDDLKeyword  = errors.New("no DDL keyword")
	ErrNoTypeKeyword = errors.New("no object type keyword")
	ErrNoIdentifier  = errors.New("no identifier")
)

// nextDDLKeyword returns the index of the first DDL keyword at or after from.
func nextDDLKeyword(tokens []lexer.Token, from int) (int, bool) {
	for i := from; i < len(tokens); i++ {
		if tokens[i].Kind == lexer.KindDDL {
			return i, true
		}
	}
	return -1, false
}

// nextTypeKeyword returns the index of the first keyword at or after from that
// names an object type.
func nextTypeKeyword(tokens []lexer.Token, from int) (int, bool) {
	for i := from; i < len(tokens); i++ {
		if tokens[i].Kind == lexer.KindKeyword && IsType(tokens[i].Value) {
			return i, true
		}
	}
	return -1, false
}

// nextIdentifier returns the index of the first identifier or function token
// at or after from.
func nextIdentifier(tokens []lexer.Token, from int) (int, bool) {
	for i := from; i < len(tokens); i++ {
		switch tokens[i].Kind {
		case lexer.KindIdentifier, lexer.KindFunction:
			return i, true
		}
	}
	return -1, false
}

// objectName derives the object name from an identifier or function anchor.
func objectName(anchor lexer.Token, typ Type) string {
	if anchor.Kind == lexer.KindFunction && len(anchor.Children) > 0 {
		// The name before an argument list, or a view's column list
		anchor = anchor.Children[0]
	}
	switch {
	case anchor.IsCompound() && typ == TypeView && anchor.Children[0].Kind == lexer.KindName:
		return anchor.Children[len(anchor.Children)-1].Value
	default:
		return anchor.Value
	}
}
