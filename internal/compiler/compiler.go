// Package compiler lowers the AST (C2) into a Notion CallDescriptor
// (C5), resolving WHERE predicates into Notion filter fragments and
// bind parameters through the type engine (C3). Compile is a pure
// function: it never talks to a notionclient.Client.
package compiler

import (
	"fmt"
	"strings"
	"time"

	"normlite/internal/ast"
	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/schema"
	"normlite/internal/types"
)

// CallDescriptor is the compiled, ready-to-invoke shape of one
// statement: the Notion endpoint/request pair, the resolved payload,
// and the bind parameters used to resolve it (kept for diagnostics).
type CallDescriptor struct {
	Endpoint notionclient.Endpoint
	Request  notionclient.Request
	Payload  notionclient.Payload
	Params   map[string]any
	Table    *schema.Table // for CreateTable, the newly built table, whose remote id is still empty
}

// Compile dispatches on node's concrete type — a single switch, no
// virtual method dispatch (spec.md §9 DESIGN NOTES).
func Compile(node ast.Node, md *schema.MetaData, params map[string]any) (CallDescriptor, error) {
	switch n := node.(type) {
	case *ast.CreateTable:
		return compileCreateTable(n)
	case *ast.Insert:
		return compileInsert(n, md, params)
	case *ast.Select:
		return compileSelect(n, md, params)
	case *ast.DropTable:
		return compileDropTable(n, md)
	default:
		return CallDescriptor{}, &normerr.InternalError{Reason: fmt.Sprintf("compiler: unsupported node %T", node)}
	}
}

func compileCreateTable(n *ast.CreateTable) (CallDescriptor, error) {
	properties := notionclient.Payload{}
	userColumns := make([]*schema.Column, 0, len(n.Columns))
	for _, col := range n.Columns {
		engine, err := types.FromColumnType(col.Type)
		if err != nil {
			return CallDescriptor{}, err
		}
		properties[col.Name] = engine.ColSpec()
		userColumns = append(userColumns, schema.NewColumn(col.Name, engine, col.PrimaryKey))
	}

	table, err := schema.NewTable(n.Table, "notion", userColumns)
	if err != nil {
		return CallDescriptor{}, err
	}
	for _, col := range table.Columns().All() {
		if _, ok := properties[col.Name]; !ok {
			properties[col.Name] = col.Engine.ColSpec()
		}
	}

	payload := notionclient.Payload{
		"title":      []any{notionclient.Payload{"text": notionclient.Payload{"content": n.Table}}},
		"properties": properties,
		"parent":     notionclient.Payload{"page_id": notionclient.RootPageID},
	}
	return CallDescriptor{Endpoint: notionclient.EndpointDatabases, Request: notionclient.RequestCreate, Payload: payload, Table: table}, nil
}

func compileInsert(n *ast.Insert, md *schema.MetaData, params map[string]any) (CallDescriptor, error) {
	table, ok := md.Get(n.Table)
	if !ok {
		return CallDescriptor{}, &normerr.ArgumentError{Reason: fmt.Sprintf("insert: unregistered table %q", n.Table)}
	}
	if len(n.Columns) != len(n.Values) {
		return CallDescriptor{}, &normerr.InternalError{Reason: "insert: column/value count mismatch reached the compiler"}
	}

	properties := notionclient.Payload{}
	for i, colName := range n.Columns {
		col, ok := table.FindColumn(colName)
		if !ok {
			return CallDescriptor{}, &normerr.ArgumentError{Reason: fmt.Sprintf("insert: table %q has no column %q", n.Table, colName)}
		}
		value, err := resolveOperand(n.Values[i], params)
		if err != nil {
			return CallDescriptor{}, err
		}
		fragment, err := col.Engine.Bind(value)
		if err != nil {
			return CallDescriptor{}, err
		}
		properties[colName] = fragment
	}

	payload := notionclient.Payload{
		"parent":     notionclient.Payload{"database_id": table.RemoteID()},
		"properties": properties,
	}
	return CallDescriptor{Endpoint: notionclient.EndpointPages, Request: notionclient.RequestCreate, Payload: payload, Params: params, Table: table}, nil
}

func compileSelect(n *ast.Select, md *schema.MetaData, params map[string]any) (CallDescriptor, error) {
	table, ok := md.Get(n.Table)
	if !ok {
		return CallDescriptor{}, &normerr.ArgumentError{Reason: fmt.Sprintf("select: unregistered table %q", n.Table)}
	}

	payload := notionclient.Payload{"database_id": table.RemoteID()}
	if n.Where != nil {
		filter, err := compileWhere(n.Where.Expr, table, params)
		if err != nil {
			return CallDescriptor{}, err
		}
		payload["filter"] = filter
	}
	return CallDescriptor{Endpoint: notionclient.EndpointDatabases, Request: notionclient.RequestQuery, Payload: payload, Params: params, Table: table}, nil
}

func compileDropTable(n *ast.DropTable, md *schema.MetaData) (CallDescriptor, error) {
	table, ok := md.Get(n.Table)
	if !ok {
		return CallDescriptor{}, &normerr.ArgumentError{Reason: fmt.Sprintf("drop table: unregistered table %q", n.Table)}
	}
	payload := notionclient.Payload{
		"database_id": table.RemoteID(),
		"archived":    true,
	}
	return CallDescriptor{Endpoint: notionclient.EndpointDatabases, Request: notionclient.RequestUpdate, Payload: payload, Table: table}, nil
}

var comparisonVerbs = map[string]string{
	"=":  "equals",
	"!=": "does_not_equal",
	"<":  "less_than",
	"<=": "less_than_or_equal_to",
	">":  "greater_than",
	">=": "greater_than_or_equal_to",
}

var negatedComparison = map[string]string{
	"=":  "!=",
	"!=": "=",
	"<":  ">=",
	"<=": ">",
	">":  "<=",
	">=": "<",
}

// compileWhere lowers a WHERE predicate into a Notion filter object,
// per spec.md §4.5's operator table. AND/OR become {and:[...]}/
// {or:[...]}; NOT is pushed inward via De Morgan's laws, since the
// Notion filter grammar has no generic negation combinator.
func compileWhere(expr ast.Expression, table *schema.Table, params map[string]any) (notionclient.Payload, error) {
	op, ok := expr.(*ast.BinaryOp)
	if !ok {
		return nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: unsupported expression %T", expr)}
	}

	switch strings.ToUpper(op.Op) {
	case "AND", "OR":
		left, err := compileWhere(op.Left, table, params)
		if err != nil {
			return nil, err
		}
		right, err := compileWhere(op.Right, table, params)
		if err != nil {
			return nil, err
		}
		return notionclient.Payload{strings.ToLower(op.Op): []any{left, right}}, nil
	case "NOT":
		return compileWhere(negate(op.Left), table, params)
	default:
		return compileComparison(op, table, params)
	}
}

// negate returns expr's De Morgan negation: flips comparison operators
// and swaps AND/OR, pushing NOT down to the leaves.
func negate(expr ast.Expression) ast.Expression {
	op, ok := expr.(*ast.BinaryOp)
	if !ok {
		return expr
	}
	switch strings.ToUpper(op.Op) {
	case "AND":
		return &ast.BinaryOp{Op: "OR", Left: negate(op.Left), Right: negate(op.Right)}
	case "OR":
		return &ast.BinaryOp{Op: "AND", Left: negate(op.Left), Right: negate(op.Right)}
	case "NOT":
		return op.Left
	default:
		if flipped, ok := negatedComparison[op.Op]; ok {
			return &ast.BinaryOp{Op: flipped, Left: op.Left, Right: op.Right}
		}
		return expr
	}
}

func compileComparison(op *ast.BinaryOp, table *schema.Table, params map[string]any) (notionclient.Payload, error) {
	verb, ok := comparisonVerbs[op.Op]
	if !ok {
		return nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: unsupported operator %q", op.Op)}
	}

	ident, ok := op.Left.(*ast.Identifier)
	if !ok {
		return nil, &normerr.ArgumentError{Reason: "where: left operand must reference a column"}
	}
	col, ok := table.FindColumn(ident.Name)
	if !ok {
		return nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: table %q has no column %q", table.Name, ident.Name)}
	}

	native, err := resolveOperand(op.Right, params)
	if err != nil {
		return nil, err
	}
	key, value, err := filterValue(col.Engine, native)
	if err != nil {
		return nil, err
	}
	return notionclient.Payload{
		"property": ident.Name,
		key:        notionclient.Payload{verb: value},
	}, nil
}

func resolveOperand(expr ast.Expression, params map[string]any) (any, error) {
	switch e := expr.(type) {
	case *ast.Param:
		value, ok := params[e.Name]
		if !ok {
			return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("missing bind parameter %q", e.Name)}
		}
		return value, nil
	case *ast.Constant:
		return e.Value, nil
	default:
		return nil, &normerr.ArgumentError{Reason: fmt.Sprintf("unsupported operand %T", expr)}
	}
}

// filterValue returns the Notion property type key and the raw
// (unwrapped) comparison value for a WHERE leaf. Filter values are
// unwrapped natives (e.g. a bare string), unlike Bind's full property
// fragment shape (e.g. the title's {"text":{"content":...}} wrapper).
func filterValue(engine types.Engine, native any) (string, any, error) {
	switch engine.(type) {
	case types.Integer, types.Numeric, types.Money:
		return "number", native, nil
	case types.Boolean:
		return "checkbox", native, nil
	case types.ArchivalFlag:
		return "checkbox", native, nil
	case types.Date:
		t, ok := native.(time.Time)
		if !ok {
			return "", nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: expected time.Time, got %#v", native)}
		}
		// Keep the native time.Time rather than pre-formatting: MemoryClient
		// compares this against extractValue's decoded time.Time in-process,
		// while json.Marshal still renders it as RFC3339 for a real request.
		return "date", t.UTC(), nil
	case types.String:
		str, ok := native.(string)
		if !ok {
			return "", nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: expected string, got %#v", native)}
		}
		if engine.(types.String).IsTitle {
			return "title", str, nil
		}
		return "rich_text", str, nil
	case types.UUID, types.ObjectID:
		return "rich_text", native, nil
	default:
		return "", nil, &normerr.ArgumentError{Reason: fmt.Sprintf("where: unsupported column type %s", engine.Tag())}
	}
}
