package parser

import (
	"strings"

	"github.com/danizen/sqlextras/internal/ddl"
	"github.com/danizen/sqlextras/internal/lexer"
)

// Diff lists the actions only one side found.
type Diff struct {
	// Found by the PostgreSQL parser but not by the extractor
	Missing []ddl.Action `json:"missing" yaml:"missing"`
	// Found by the extractor but not by the PostgreSQL parser
	Extra []ddl.Action `json:"extra" yaml:"extra"`
}

// Empty reports whether both sides agree.
func (d Diff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// Compare matches extracted actions against the actions the PostgreSQL parser
// finds in the same text. Both are compared as multisets, ignoring order and
// identifier quoting.
func Compare(extracted, parsed []ddl.Action) Diff {
	pending := make(map[string]int, len(parsed))
	for _, a := range parsed {
		pending[key(a)]++
	}

	diff := Diff{Missing: []ddl.Action{}, Extra: []ddl.Action{}}
	for _, a := range extracted {
		k := key(a)
		if pending[k] > 0 {
			pending[k]--
			continue
		}
		diff.Extra = append(diff.Extra, a)
	}
	for _, a := range parsed {
		k := key(a)
		if pending[k] > 0 {
			pending[k]--
			diff.Missing = append(diff.Missing, a)
		}
	}
	return diff
}

// Check extracts decoded sql with extractor and compares the result with the parser.
func Check(extractor *ddl.Extractor, sql string) (Diff, error) {
	parsed, err := Actions(sql)
	if err != nil {
		return Diff{}, err
	}
	tokens, err := lexer.Tokenize(extractor.Lexer(), sql)
	if err != nil {
		return Diff{}, err
	}
	return Compare(extractor.Actions(tokens), parsed), nil
}

func key(a ddl.Action) string {
	name := strings.ReplaceAll(a.Object().Name(), `"`, "")
	return a.Action() + " " + a.Object().Type() + " " + name
}
