package ddl

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/charmbracelet/log"

	"github.com/danizen/sqlextras/internal/lexer"
)

func newExtractor(t *testing.T, d lexer.Dialect) *Extractor {
	t.Helper()
	lx, err := lexer.New(d)
	assert.NoError(t, err)
	return NewExtractor(lx, WithLogger(log.New(io.Discard)))
}

func actionsOf(t *testing.T, sql string) []Action {
	t.Helper()
	actions, err := newExtractor(t, lexer.DialectGeneric).ExtractActions(strings.NewReader(sql), "")
	assert.NoError(t, err)
	return actions
}

func TestNoDDLYieldsNoActions(t *testing.T) {
	inputs := []string{
		"",
		"SELECT * FROM t WHERE x = 1",
		"INSERT INTO t VALUES ('CREATE TABLE x')",
		"-- CREATE TABLE commented\nUPDATE t SET a = 1",
	}
	for _, sql := range inputs {
		assert.Equal(t, 0, len(actionsOf(t, sql)))
	}
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		sql  string
		name string
	}{
		{"CREATE TABLE orders (id int, name text)", "ORDERS"},
		{"create table Customers(id int)", "CUSTOMERS"},
		{"CREATE TABLE line_items\n(\n  id serial\n);", "LINE_ITEMS"},
	}
	for _, tt := range tests {
		actions := actionsOf(t, tt.sql)
		assert.Equal(t, []Action{NewAction("CREATE", NewObject("TABLE", tt.name))}, actions)
	}
}

func TestCreateOrReplaceViewDropsSchemaAndBody(t *testing.T) {
	for _, d := range lexer.Dialects {
		t.Run(string(d), func(t *testing.T) {
			actions, err := newExtractor(t, d).ExtractActions(
				strings.NewReader("CREATE OR REPLACE VIEW sch.myview AS SELECT * FROM t"), "")
			assert.NoError(t, err)
			assert.Equal(t, 1, len(actions))
			assert.Equal(t, "CREATE OR REPLACE", actions[0].Action())
			assert.Equal(t, "VIEW", actions[0].Object().Type())
			assert.Equal(t, "MYVIEW", actions[0].Object().Name())
		})
	}
}

func TestCreateFunctionUsesNameBeforeArguments(t *testing.T) {
	actions := actionsOf(t, "CREATE FUNCTION myfunc(a INT) RETURNS INT AS $$ SELECT a $$ LANGUAGE sql;")
	assert.Equal(t, []Action{NewAction("CREATE", NewObject("FUNCTION", "MYFUNC"))}, actions)
}

func TestBackToBackStatements(t *testing.T) {
	actions := actionsOf(t, "CREATE TABLE a (id int); CREATE INDEX idx ON a (id);")
	assert.Equal(t, []Action{
		NewAction("CREATE", NewObject("TABLE", "A")),
		NewAction("CREATE", NewObject("INDEX", "IDX")),
	}, actions)
}

func TestUnclosedParenthesisKeepsLaterStatements(t *testing.T) {
	actions := actionsOf(t, "CREATE TABLE a (id int;\nCREATE TABLE b (id int);\nCREATE VIEW c AS SELECT 1;")
	assert.Equal(t, []Action{
		NewAction("CREATE", NewObject("TABLE", "A")),
		NewAction("CREATE", NewObject("TABLE", "B")),
		NewAction("CREATE", NewObject("VIEW", "C")),
	}, actions)
}

func TestMalformedSegmentsAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	lx, err := lexer.New(lexer.DialectGeneric)
	assert.NoError(t, err)
	e := NewExtractor(lx, WithLogger(log.New(&buf)))

	sql := "ALTER SESSION SET x = 1;\nCREATE TABLE b (x int);\nDROP;"
	tokens, err := lexer.Tokenize(lx, sql)
	assert.NoError(t, err)

	segs := Segments(tokens)
	assert.Equal(t, 3, len(segs))

	actions := e.Actions(tokens)
	assert.Equal(t, []Action{NewAction("CREATE", NewObject("TABLE", "B"))}, actions)
	assert.Contains(t, buf.String(), "WARN skipping DDL segment")
	assert.Contains(t, buf.String(), ErrNoTypeKeyword.Error())
}

func TestSegmentErrors(t *testing.T) {
	lx, err := lexer.New(lexer.DialectGeneric)
	assert.NoError(t, err)
	e := NewExtractor(lx, WithLogger(log.New(io.Discard)))

	tests := []struct {
		sql  string
		want error
	}{
		{"DROP;", ErrNoTypeKeyword},
		{"DROP TABLE;", ErrNoIdentifier},
		{"CREATE WIDGET w;", ErrNoTypeKeyword},
	}
	for _, tt := range tests {
		tokens, err := lexer.Tokenize(lx, tt.sql)
		assert.NoError(t, err)
		segs := Segments(tokens)
		assert.Equal(t, 1, len(segs))
		_, err = e.Segment(segs[0])
		assert.True(t, errors.Is(err, tt.want), "%s: got %v", tt.sql, err)
	}

	_, err = e.Segment(Segment{})
	assert.True(t, errors.Is(err, ErrNoDDLKeyword))
}

func TestAnchorsDoNotCrossSegments(t *testing.T) {
	actions := actionsOf(t, "DROP; CREATE TABLE t (x int)")
	assert.Equal(t, []Action{NewAction("CREATE", NewObject("TABLE", "T"))}, actions)
}

func TestDuplicateObjectsCollapse(t *testing.T) {
	e := newExtractor(t, lexer.DialectGeneric)
	set, err := e.ExtractObjects(strings.NewReader("CREATE TABLE a (x int);\ncreate table A (x int);"), "")
	assert.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Contains(NewObject("table", "a")))
}

func TestObjectNormalization(t *testing.T) {
	assert.Equal(t, NewObject("TABLE", "FOO"), NewObject("table", "Foo"))
	assert.True(t, NewObject("table", "Foo") == NewObject("TABLE", "FOO"))
	assert.Equal(t, "CREATE OR REPLACE", NewAction("create or replace", NewObject("view", "v")).Action())

	m := map[Object]int{NewObject("view", "v"): 1}
	assert.Equal(t, 1, m[NewObject("VIEW", "V")])
}

func TestObjectKinds(t *testing.T) {
	tests := []struct {
		sql  string
		want Action
	}{
		{"DROP TABLE IF EXISTS sch.t", NewAction("DROP", NewObject("TABLE", "SCH.T"))},
		{"TRUNCATE TABLE audit_log", NewAction("TRUNCATE", NewObject("TABLE", "AUDIT_LOG"))},
		{"ALTER TABLE app.users ADD COLUMN age int", NewAction("ALTER", NewObject("TABLE", "APP.USERS"))},
		{"CREATE UNIQUE INDEX ux_users_email ON users (email)", NewAction("CREATE", NewObject("INDEX", "UX_USERS_EMAIL"))},
		{"CREATE MATERIALIZED VIEW mv AS SELECT 1", NewAction("CREATE", NewObject("VIEW", "MV"))},
		{"CREATE SEQUENCE order_seq START 1", NewAction("CREATE", NewObject("SEQUENCE", "ORDER_SEQ"))},
		{"CREATE TRIGGER trg BEFORE INSERT ON t FOR EACH ROW EXECUTE FUNCTION f()", NewAction("CREATE", NewObject("TRIGGER", "TRG"))},
		{"CREATE PROCEDURE refresh_all(days int) AS BEGIN NULL; END", NewAction("CREATE", NewObject("PROCEDURE", "REFRESH_ALL"))},
		{"CREATE OR REPLACE PACKAGE BODY billing AS", NewAction("CREATE OR REPLACE", NewObject("PACKAGE", "BILLING"))},
		{"CREATE PUBLIC SYNONYM emp FOR hr.employees", NewAction("CREATE", NewObject("SYNONYM", "EMP"))},
		{`CREATE TABLE "Mixed Case" (id int)`, NewAction("CREATE", NewObject("TABLE", `"MIXED CASE"`))},
		{"CREATE VIEW sch.v(a, b) AS SELECT 1, 2", NewAction("CREATE", NewObject("VIEW", "V"))},
		{"CREATE FUNCTION util.add(a int) RETURNS int", NewAction("CREATE", NewObject("FUNCTION", "UTIL.ADD"))},
		{"CREATE TABLE comment (id int)", NewAction("CREATE", NewObject("TABLE", "COMMENT"))},
		{"DROP TABLE IF EXISTS role", NewAction("DROP", NewObject("TABLE", "ROLE"))},
	}
	for _, tt := range tests {
		actions := actionsOf(t, tt.sql)
		assert.Equal(t, 1, len(actions), tt.sql)
		assert.Equal(t, tt.want, actions[0], tt.sql)
	}
}

func TestDDLInsideBodiesAndCommentsIsIgnored(t *testing.T) {
	sql := `/* CREATE TABLE hidden (x int); */
CREATE FUNCTION make_tables() RETURNS void AS $body$
BEGIN
  EXECUTE 'CREATE TABLE dynamic (x int)';
END
$body$ LANGUAGE plpgsql;`
	actions := actionsOf(t, sql)
	assert.Equal(t, []Action{NewAction("CREATE", NewObject("FUNCTION", "MAKE_TABLES"))}, actions)
}

func TestActionsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.sql")
	assert.NoError(t, os.WriteFile(path, []byte("CREATE TABLE caf\xe9 (x int);\nDROP VIEW v;"), 0o644))

	e := newExtractor(t, lexer.DialectGeneric)
	actions, err := e.ActionsFromFile(path, "latin1")
	assert.NoError(t, err)
	assert.Equal(t, []Action{
		NewAction("CREATE", NewObject("TABLE", "CAFÉ")),
		NewAction("DROP", NewObject("VIEW", "V")),
	}, actions)

	objects, err := e.ObjectsFromFile(path, "latin1")
	assert.NoError(t, err)
	assert.Equal(t, []Object{NewObject("TABLE", "CAFÉ"), NewObject("VIEW", "V")}, objects.Sorted())

	_, err = e.ActionsFromFile(path, "utf-8")
	assert.True(t, errors.Is(err, lexer.ErrDecode))

	_, err = e.ActionsFromFile(filepath.Join(dir, "missing.sql"), "")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestJSONShape(t *testing.T) {
	a := NewAction("drop", NewObject("index", "idx"))
	data, err := json.Marshal(a)
	assert.NoError(t, err)
	assert.Equal(t, `{"action":"DROP","type":"INDEX","name":"IDX"}`, string(data))

	var back Action
	assert.NoError(t, json.Unmarshal([]byte(`{"action":"create","type":"table","name":"t"}`), &back))
	assert.Equal(t, NewAction("CREATE", NewObject("TABLE", "T")), back)

	set := NewObjectSet(NewObject("view", "b"), NewObject("table", "z"), NewObject("table", "a"))
	data, err = json.Marshal(set)
	assert.NoError(t, err)
	assert.Equal(t, `[{"type":"TABLE","name":"A"},{"type":"TABLE","name":"Z"},{"type":"VIEW","name":"B"}]`, string(data))
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType(" view ")
	assert.True(t, ok)
	assert.Equal(t, TypeView, typ)

	_, ok = ParseType("SCHEMA")
	assert.False(t, ok)

	assert.Equal(t, 9, len(Types))
	for _, typ := range Types {
		assert.True(t, IsType(strings.ToLower(string(typ))))
	}

	var flag Type
	assert.NoError(t, flag.Set("synonym"))
	assert.Equal(t, TypeSynonym, flag)
	assert.Error(t, flag.Set("schema"))
}
