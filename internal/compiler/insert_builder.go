package compiler

import (
	"fmt"

	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/schema"
)

// InsertBuilder is the generative Insert executable from spec.md §4.5:
// Values sets the VALUES clause (positional or keyword, never both),
// Returning extends the default (_no_id, _no_archived) returning
// tuple. Only the generative Insert exists in this codebase — there is
// no OldInsert equivalent (spec.md §9 Open Question (b)).
type InsertBuilder struct {
	table     *schema.Table
	mode      string // "", "positional", "keyword"
	values    map[string]any
	returning []string
	err       error
}

// NewInsert starts a builder targeting table, with the default
// returning tuple (_no_id, _no_archived).
func NewInsert(table *schema.Table) *InsertBuilder {
	return &InsertBuilder{
		table:     table,
		values:    map[string]any{},
		returning: []string{schema.ImplicitObjectIDColumn, schema.ImplicitArchivedColumn},
	}
}

// Values sets keyword values: column name -> native value.
func (b *InsertBuilder) Values(kwargs map[string]any) *InsertBuilder {
	if b.mode == "positional" {
		b.err = &normerr.ArgumentError{Reason: "insert: cannot mix positional and keyword values"}
		return b
	}
	b.mode = "keyword"
	for k, v := range kwargs {
		b.values[k] = v
	}
	return b
}

// ValuesPositional sets values by column position, matching cols 1:1
// with vals.
func (b *InsertBuilder) ValuesPositional(cols []string, vals []any) *InsertBuilder {
	if b.mode == "keyword" {
		b.err = &normerr.ArgumentError{Reason: "insert: cannot mix positional and keyword values"}
		return b
	}
	if len(cols) != len(vals) {
		b.err = &normerr.ArgumentError{Reason: "insert: positional column/value count mismatch"}
		return b
	}
	b.mode = "positional"
	for i, col := range cols {
		b.values[col] = vals[i]
	}
	return b
}

// Returning appends cols to the returning tuple. A column the table
// does not own fails ArgumentError.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	for _, col := range cols {
		if !b.table.Columns().Contains(col) {
			b.err = &normerr.ArgumentError{Reason: fmt.Sprintf("insert: returning: table %q has no column %q", b.table.Name, col)}
			return b
		}
		b.returning = append(b.returning, col)
	}
	return b
}

// Build compiles the staged values into a CallDescriptor, bypassing
// the SQL front end entirely — the path a programmatic caller uses
// instead of parsing INSERT text.
func (b *InsertBuilder) Build() (CallDescriptor, error) {
	if b.err != nil {
		return CallDescriptor{}, b.err
	}

	properties := notionclient.Payload{}
	for name, value := range b.values {
		col, ok := b.table.FindColumn(name)
		if !ok {
			return CallDescriptor{}, &normerr.ArgumentError{Reason: fmt.Sprintf("insert: table %q has no column %q", b.table.Name, name)}
		}
		fragment, err := col.Engine.Bind(value)
		if err != nil {
			return CallDescriptor{}, err
		}
		properties[name] = fragment
	}

	payload := notionclient.Payload{
		"parent":     notionclient.Payload{"database_id": b.table.RemoteID()},
		"properties": properties,
	}
	return CallDescriptor{
		Endpoint: notionclient.EndpointPages,
		Request:  notionclient.RequestCreate,
		Payload:  payload,
		Params:   b.values,
		Table:    b.table,
	}, nil
}
