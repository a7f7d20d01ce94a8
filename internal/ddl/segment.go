package ddl

import "github.com/danizen/sqlextras/internal/lexer"

// Segment is a run of tokens that starts at a DDL keyword and ends before the
// next one.
type Segment struct {
	// Start is the index of the first token in the full stream.
	Start  int
	Tokens []lexer.Token
}

// Segments splits tokens at every DDL keyword. Tokens before the first DDL
// keyword belong to no segment.
func Segments(tokens []lexer.Token) []Segment {
	var idx []int
	for i, t := range tokens {
		if t.Kind == lexer.KindDDL {
			idx = append(idx, i)
		}
	}

	segs := make([]Segment, 0, len(idx))
	for n, start := range idx {
		end := len(tokens)
		if n+1 < len(idx) {
			end = idx[n+1]
		}
		segs = append(segs, Segment{Start: start, Tokens: tokens[start:end]})
	}
	return segs
}
