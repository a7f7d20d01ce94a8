// Package ddl extracts DDL actions, the (action, object type, object name)
// triples, from a classified SQL token stream.
package ddl

import (
	"fmt"
	"strings"
)

// Type is a kind of schema object a DDL statement can act on.
type Type string

const (
	TypeView      Type = "VIEW"
	TypeTrigger   Type = "TRIGGER"
	TypeProcedure Type = "PROCEDURE"
	TypeFunction  Type = "FUNCTION"
	TypeIndex     Type = "INDEX"
	TypeTable     Type = "TABLE"
	TypeSequence  Type = "SEQUENCE"
	TypePackage   Type = "PACKAGE"
	TypeSynonym   Type = "SYNONYM"
)

// Types is the closed set of recognized object types.
var Types = [...]Type{
	TypeView,
	TypeTrigger,
	TypeProcedure,
	TypeFunction,
	TypeIndex,
	TypeTable,
	TypeSequence,
	TypePackage,
	TypeSynonym,
}

var typeSet = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(Types))
	for _, t := range Types {
		m[t] = struct{}{}
	}
	return m
}()

// ParseType resolves a type keyword case-insensitively.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := typeSet[t]
	return t, ok
}

// IsType reports whether s names a recognized object type.
func IsType(s string) bool {
	_, ok := ParseType(s)
	return ok
}

func (t Type) String() string { return string(t) }

// Set implements pflag.Value so a Type can be bound to a command-line flag.
func (t *Type) Set(s string) error {
	parsed, ok := ParseType(s)
	if !ok {
		return fmt.Errorf("unknown object type %q", s)
	}
	*t = parsed
	return nil
}

// Type implements pflag.Value.
func (t *Type) Type() string { return "type" }
