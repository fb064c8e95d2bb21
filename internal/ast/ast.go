// Package ast defines the tagged-variant AST produced by internal/parser.
// Every node is immutable after construction and knows its children;
// dispatch is a single switch over the concrete type (see DESIGN NOTES
// in spec.md §9), not virtual method dispatch.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is the closed set of AST node types. The unexported marker
// method keeps the variant set closed to this package.
type Node interface {
	node()
	// String renders the node back to canonical SQL. Used to satisfy
	// the lex->parse idempotence property: parsing the canonical
	// rendering of a node must yield an equal AST.
	String() string
}

// Expression is the subset of Node usable as a value-producing
// expression (WHERE operands, INSERT values).
type Expression interface {
	Node
	expr()
}

// ColumnType names one of the type engine's declared SQL surface
// types, with optional size/currency arguments.
type ColumnType struct {
	Name     string // INT, VARCHAR, TITLE_VARCHAR, BOOL, DATE, NUMBER, MONEY
	Size     int    // VARCHAR(n) / TITLE_VARCHAR(n)
	Currency string // MONEY(currency)
}

func (t ColumnType) String() string {
	switch strings.ToUpper(t.Name) {
	case "VARCHAR", "TITLE_VARCHAR":
		return fmt.Sprintf("%s(%d)", t.Name, t.Size)
	case "MONEY":
		return fmt.Sprintf("%s(%s)", t.Name, t.Currency)
	default:
		return t.Name
	}
}

// ColumnDef is one column declaration inside CREATE TABLE.
type ColumnDef struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
}

func (c *ColumnDef) node() {}
func (c *ColumnDef) String() string {
	if c.PrimaryKey {
		return fmt.Sprintf("%s %s PRIMARY KEY", c.Name, c.Type)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// CreateTable is `CREATE TABLE name (col type [, ...])`.
type CreateTable struct {
	Table   string
	Columns []*ColumnDef
}

func (c *CreateTable) node() {}
func (c *CreateTable) String() string {
	parts := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		parts[i] = col.String()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", c.Table, strings.Join(parts, ", "))
}

// DropTable is `DROP TABLE name`.
type DropTable struct {
	Table string
}

func (d *DropTable) node() {}
func (d *DropTable) String() string {
	return fmt.Sprintf("DROP TABLE %s", d.Table)
}

// Insert is `INSERT INTO name (cols) VALUES (lits_or_:params)`.
type Insert struct {
	Table   string
	Columns []string
	Values  []Expression
}

func (i *Insert) node() {}
func (i *Insert) String() string {
	vals := make([]string, len(i.Values))
	for idx, v := range i.Values {
		vals[idx] = v.String()
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", i.Table, strings.Join(i.Columns, ", "), strings.Join(vals, ", "))
}

// Select is `SELECT cols|* FROM name [WHERE expr]`.
type Select struct {
	Table   string
	Columns []string // nil/empty means "*"
	Star    bool
	Where   *Where
}

func (s *Select) node() {}
func (s *Select) String() string {
	cols := "*"
	if !s.Star {
		cols = strings.Join(s.Columns, ", ")
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", cols, s.Table)
	if s.Where != nil {
		sql += " WHERE " + s.Where.Expr.String()
	}
	return sql
}

// Where wraps the predicate expression of a SELECT.
type Where struct {
	Expr Expression
}

func (w *Where) node()          {}
func (w *Where) String() string { return "WHERE " + w.Expr.String() }

// BinaryOp is a comparison (`=`,`!=`,`<`,`<=`,`>`,`>=`) or logical
// (`AND`,`OR`) combination of two expressions.
type BinaryOp struct {
	Op    string
	Left  Expression
	Right Expression
}

func (b *BinaryOp) node() {}
func (b *BinaryOp) expr() {}
func (b *BinaryOp) String() string {
	if b.Op == "NOT" {
		return fmt.Sprintf("NOT %s", b.Left)
	}
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Identifier references a column name.
type Identifier struct {
	Name string
}

func (i *Identifier) node()          {}
func (i *Identifier) expr()          {}
func (i *Identifier) String() string { return i.Name }

// ConstantKind classifies a literal's lexical origin.
type ConstantKind int

const (
	ConstantNumber ConstantKind = iota
	ConstantString
	ConstantBool
)

// Constant is a literal value (NUMBER, STRING, or boolean keyword).
type Constant struct {
	Kind  ConstantKind
	Raw   string // original lexeme
	Value any    // int64, string, or bool
}

func (c *Constant) node() {}
func (c *Constant) expr() {}
func (c *Constant) String() string {
	switch c.Kind {
	case ConstantString:
		return "'" + strings.ReplaceAll(c.Raw, "'", "''") + "'"
	default:
		return c.Raw
	}
}

// Param is a named bind placeholder, written `:name` in SQL text.
type Param struct {
	Name string
}

func (p *Param) node()          {}
func (p *Param) expr()          {}
func (p *Param) String() string { return ":" + p.Name }

// OrderItem names one column of an ORDER BY clause. The parser does
// not currently construct this node (no ORDER BY production exists in
// the grammar); it is kept to complete the tagged variant set named
// by the data model for forward compatibility.
type OrderItem struct {
	Column     string
	Descending bool
}

func (o *OrderItem) node() {}
func (o *OrderItem) String() string {
	if o.Descending {
		return o.Column + " DESC"
	}
	return o.Column
}

// ParseInt64 is a small helper used by the parser and compiler to turn
// a NUMBER token's lexeme into an int64.
func ParseInt64(lexeme string) (int64, error) {
	return strconv.ParseInt(lexeme, 10, 64)
}
