// Package parser derives DDL actions from the PostgreSQL grammar. It serves
// as a reference to check the token-based extractor against.
package parser

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/danizen/sqlextras/internal/ddl"
)

var ErrParse = errors.New("parse sql")

// Statement is one parsed statement and the action it performs, if any.
type Statement struct {
	// Byte offset of the statement in the parsed text
	Offset int
	Action ddl.Action
	IsDDL  bool
}

// Parse parses sql with the PostgreSQL parser and classifies each statement.
func Parse(sql string) ([]Statement, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	stmts := make([]Statement, 0, len(tree.Stmts))
	for _, raw := range tree.Stmts {
		st := Statement{Offset: int(raw.StmtLocation)}
		if raw.Stmt != nil {
			st.Action, st.IsDDL = classifyStatement(raw.Stmt)
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

// Actions returns the actions of the DDL statements in sql, in order.
func Actions(sql string) ([]ddl.Action, error) {
	stmts, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	var actions []ddl.Action
	for _, st := range stmts {
		if st.IsDDL {
			actions = append(actions, st.Action)
		}
	}
	return actions, nil
}

func create(replace bool) string {
	if replace {
		return "CREATE OR REPLACE"
	}
	return "CREATE"
}

func action(verb string, typ ddl.Type, name string) (ddl.Action, bool) {
	if name == "" {
		return ddl.Action{}, false
	}
	return ddl.NewAction(verb, ddl.NewObject(string(typ), name)), true
}

func classifyStatement(stmt *pg_query.Node) (ddl.Action, bool) {
	switch n := stmt.Node.(type) {
	case *pg_query.Node_CreateStmt:
		return action("CREATE", ddl.TypeTable, rangeVarName(n.CreateStmt.Relation))

	case *pg_query.Node_CreateTableAsStmt:
		typ := ddl.TypeTable
		if n.CreateTableAsStmt.Objtype == pg_query.ObjectType_OBJECT_MATVIEW {
			typ = ddl.TypeView
		}
		if n.CreateTableAsStmt.Into == nil {
			return ddl.Action{}, false
		}
		return action("CREATE", typ, objectName(typ, n.CreateTableAsStmt.Into.Rel))

	case *pg_query.Node_ViewStmt:
		return action(create(n.ViewStmt.Replace), ddl.TypeView, objectName(ddl.TypeView, n.ViewStmt.View))

	case *pg_query.Node_IndexStmt:
		return action("CREATE", ddl.TypeIndex, n.IndexStmt.Idxname)

	case *pg_query.Node_CreateSeqStmt:
		return action("CREATE", ddl.TypeSequence, rangeVarName(n.CreateSeqStmt.Sequence))

	case *pg_query.Node_AlterSeqStmt:
		return action("ALTER", ddl.TypeSequence, rangeVarName(n.AlterSeqStmt.Sequence))

	case *pg_query.Node_CreateFunctionStmt:
		typ := ddl.TypeFunction
		if n.CreateFunctionStmt.IsProcedure {
			typ = ddl.TypeProcedure
		}
		return action(create(n.CreateFunctionStmt.Replace), typ, joinNames(n.CreateFunctionStmt.Funcname))

	case *pg_query.Node_AlterFunctionStmt:
		typ, ok := objectType(n.AlterFunctionStmt.Objtype)
		if !ok || n.AlterFunctionStmt.Func == nil {
			return ddl.Action{}, false
		}
		return action("ALTER", typ, joinNames(n.AlterFunctionStmt.Func.Objname))

	case *pg_query.Node_CreateTrigStmt:
		return action(create(n.CreateTrigStmt.Replace), ddl.TypeTrigger, n.CreateTrigStmt.Trigname)

	case *pg_query.Node_AlterTableStmt:
		typ, ok := objectType(n.AlterTableStmt.Objtype)
		if !ok {
			return ddl.Action{}, false
		}
		return action("ALTER", typ, objectName(typ, n.AlterTableStmt.Relation))

	case *pg_query.Node_RenameStmt:
		typ, ok := objectType(n.RenameStmt.RenameType)
		if !ok {
			// RENAME COLUMN and friends alter the relation
			typ, ok = objectType(n.RenameStmt.RelationType)
		}
		if !ok || n.RenameStmt.Relation == nil {
			return ddl.Action{}, false
		}
		return action("ALTER", typ, objectName(typ, n.RenameStmt.Relation))

	case *pg_query.Node_DropStmt:
		return classifyDropStmt(n.DropStmt)

	case *pg_query.Node_TruncateStmt:
		// Only the first relation, as with every other statement
		for _, rel := range n.TruncateStmt.Relations {
			if rv, ok := rel.Node.(*pg_query.Node_RangeVar); ok {
				return action("TRUNCATE", ddl.TypeTable, rangeVarName(rv.RangeVar))
			}
		}
	}
	return ddl.Action{}, false
}

func objectType(t pg_query.ObjectType) (ddl.Type, bool) {
	switch t {
	case pg_query.ObjectType_OBJECT_TABLE:
		return ddl.TypeTable, true
	case pg_query.ObjectType_OBJECT_VIEW, pg_query.ObjectType_OBJECT_MATVIEW:
		return ddl.TypeView, true
	case pg_query.ObjectType_OBJECT_INDEX:
		return ddl.TypeIndex, true
	case pg_query.ObjectType_OBJECT_SEQUENCE:
		return ddl.TypeSequence, true
	case pg_query.ObjectType_OBJECT_FUNCTION:
		return ddl.TypeFunction, true
	case pg_query.ObjectType_OBJECT_PROCEDURE:
		return ddl.TypeProcedure, true
	case pg_query.ObjectType_OBJECT_TRIGGER:
		return ddl.TypeTrigger, true
	default:
		return "", false
	}
}

// classifyDropStmt reports the first dropped object.
func classifyDropStmt(ds *pg_query.DropStmt) (ddl.Action, bool) {
	typ, ok := objectType(ds.RemoveType)
	if !ok || len(ds.Objects) == 0 {
		return ddl.Action{}, false
	}

	var parts []string
	switch obj := ds.Objects[0].Node.(type) {
	case *pg_query.Node_List:
		parts = stringParts(obj.List.Items)
	case *pg_query.Node_ObjectWithArgs:
		parts = stringParts(obj.ObjectWithArgs.Objname)
	}
	if len(parts) == 0 {
		return ddl.Action{}, false
	}

	// DROP TRIGGER lists the table before the trigger name; views are named
	// without their schema.
	if typ == ddl.TypeTrigger || typ == ddl.TypeView {
		parts = parts[len(parts)-1:]
	}
	return action("DROP", typ, strings.Join(parts, "."))
}

// objectName qualifies rv with its schema, except for views.
func objectName(typ ddl.Type, rv *pg_query.RangeVar) string {
	if rv == nil {
		return ""
	}
	if typ == ddl.TypeView {
		return rv.Relname
	}
	return rangeVarName(rv)
}

func rangeVarName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return ""
	}
	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}
	return rv.Relname
}

func stringParts(nodes []*pg_query.Node) []string {
	var parts []string
	for _, item := range nodes {
		if s, ok := item.Node.(*pg_query.Node_String_); ok {
			parts = append(parts, s.String_.Sval)
		}
	}
	return parts
}

func joinNames(nodes []*pg_query.Node) string {
	return strings.Join(stringParts(nodes), ".")
}
