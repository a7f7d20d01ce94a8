package lexer

import "strings"

// ddlKeywords start a data definition statement.
var ddlKeywords = map[string]bool{
	"CREATE":   true,
	"ALTER":    true,
	"DROP":     true,
	"TRUNCATE": true,
}

// keywords is the vocabulary of non-DDL words treated as keywords. Words that
// commonly double as object names (NAME, DATA, TYPE, VALUE...) are left out so
// they lex as names.
var keywords = map[string]bool{
	// object types
	"VIEW": true, "TRIGGER": true, "PROCEDURE": true, "FUNCTION": true, "INDEX": true,
	"TABLE": true, "SEQUENCE": true, "PACKAGE": true, "SYNONYM": true,
	"SCHEMA": true, "DATABASE": true, "EXTENSION": true, "DOMAIN": true, "ROLE": true,
	"TABLESPACE": true, "COLUMN": true, "CONSTRAINT": true, "MATERIALIZED": true, "BODY": true,

	// statement modifiers
	"OR": true, "REPLACE": true, "IF": true, "NOT": true, "EXISTS": true, "UNIQUE": true,
	"TEMP": true, "TEMPORARY": true, "GLOBAL": true, "LOCAL": true, "UNLOGGED": true,
	"CONCURRENTLY": true, "PUBLIC": true, "EDITIONABLE": true, "NONEDITIONABLE": true,
	"FORCE": true, "NOFORCE": true, "RECURSIVE": true, "CASCADE": true, "RESTRICT": true,

	// clauses
	"ON": true, "AS": true, "IS": true, "TO": true, "FOR": true, "EACH": true, "ROW": true,
	"BEFORE": true, "AFTER": true, "INSTEAD": true, "OF": true, "EXECUTE": true,
	"RETURNS": true, "RETURN": true, "LANGUAGE": true, "BEGIN": true, "END": true,
	"DECLARE": true, "USING": true, "WITH": true, "WITHOUT": true, "DEFAULT": true,
	"ADD": true, "RENAME": true, "SET": true, "OWNER": true, "START": true,
	"INCREMENT": true, "BY": true, "MINVALUE": true, "MAXVALUE": true, "CACHE": true,
	"CYCLE": true, "NOCYCLE": true, "PRIMARY": true, "FOREIGN": true, "KEY": true,
	"REFERENCES": true, "CHECK": true, "NULL": true, "IN": true, "OUT": true, "INOUT": true,

	// queries
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "ORDER": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true,
	"UNION": true, "ALL": true, "DISTINCT": true, "AND": true, "BETWEEN": true,
	"LIKE": true, "CASE": true, "WHEN": true, "THEN": true, "ELSE": true,
	"INSERT": true, "INTO": true, "VALUES": true, "UPDATE": true, "DELETE": true,
	"GRANT": true, "REVOKE": true, "COMMENT": true, "COMMIT": true, "ROLLBACK": true,

	// types
	"INT": true, "INTEGER": true, "BIGINT": true, "SMALLINT": true, "SERIAL": true,
	"BIGSERIAL": true, "NUMERIC": true, "DECIMAL": true, "NUMBER": true, "REAL": true,
	"FLOAT": true, "DOUBLE": true, "PRECISION": true, "BOOLEAN": true, "CHAR": true,
	"CHARACTER": true, "VARCHAR": true, "VARCHAR2": true, "NVARCHAR": true, "TEXT": true,
	"CLOB": true, "BLOB": true, "DATE": true, "TIME": true, "TIMESTAMP": true,
	"INTERVAL": true, "UUID": true, "JSON": true, "JSONB": true, "BYTEA": true,
}

// objectKeywords name an object kind. The word that follows one is the
// object's name even when it spells a keyword, unless it is a guard or
// another object keyword.
var objectKeywords = map[string]bool{
	"VIEW": true, "TRIGGER": true, "PROCEDURE": true, "FUNCTION": true, "INDEX": true,
	"TABLE": true, "SEQUENCE": true, "PACKAGE": true, "SYNONYM": true,
	"SCHEMA": true, "DATABASE": true, "EXTENSION": true, "DOMAIN": true,
	"TABLESPACE": true, "COLUMN": true, "CONSTRAINT": true, "MATERIALIZED": true,
}

// nameGuards may sit between an object keyword and the object's name.
var nameGuards = map[string]bool{
	"IF": true, "NOT": true, "EXISTS": true, "CONCURRENTLY": true, "ON": true, "BODY": true,
}

// classifyWord returns the kind of an unquoted word given its upper-cased text.
func classifyWord(upper string) Kind {
	switch {
	case ddlKeywords[upper]:
		return KindDDL
	case keywords[upper]:
		return KindKeyword
	default:
		return KindName
	}
}

// IsKeyword reports whether word lexes as a keyword (DDL or otherwise).
func IsKeyword(word string) bool {
	k := classifyWord(strings.ToUpper(word))
	return k == KindDDL || k == KindKeyword
}
