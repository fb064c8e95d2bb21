// Package dbapi implements the DBAPI-style cursor surface (C8): Row,
// ResultMetadata, the base Cursor, the transaction-aware cursor, and
// the composite (multi-resultset) cursor.
package dbapi

import (
	"fmt"

	"normlite/internal/normerr"
)

// ColumnDescriptor is one entry of a Cursor's description, the
// DBAPI-style 7-tuple collapsed to its two meaningful fields here
// (the remaining five are always nil per spec.md §4.8 and carry no
// information in this implementation).
type ColumnDescriptor struct {
	Name     string
	TypeCode string
}

// ResultMetadata names a Row's columns and whether the statement that
// produced it returns rows at all.
type ResultMetadata struct {
	Keys        []string
	index       map[string]int
	ReturnsRows bool
}

// NoResultMetadata is the sentinel metadata for statements that do not
// return rows (CREATE TABLE, UPDATE, DELETE). Any accessor use raises.
var NoResultMetadata = &ResultMetadata{ReturnsRows: false}

// NewResultMetadata builds metadata over keys, in order.
func NewResultMetadata(keys []string) *ResultMetadata {
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}
	return &ResultMetadata{Keys: keys, index: index, ReturnsRows: true}
}

// IndexOf returns the ordinal of column name.
func (m *ResultMetadata) IndexOf(name string) (int, bool) {
	if !m.ReturnsRows {
		return 0, false
	}
	i, ok := m.index[name]
	return i, ok
}

// Row is a read-only ordered tuple over its metadata's keys. Attribute
// assignment has no setter: the type offers none.
type Row struct {
	metadata *ResultMetadata
	values   []any
}

// NewRow builds a Row bound to metadata. len(values) must equal
// len(metadata.Keys).
func NewRow(metadata *ResultMetadata, values []any) (*Row, error) {
	if !metadata.ReturnsRows {
		return nil, &normerr.InterfaceError{Reason: "cannot build a row over no-result metadata"}
	}
	if len(values) != len(metadata.Keys) {
		return nil, &normerr.InternalError{Reason: fmt.Sprintf("row: expected %d values, got %d", len(metadata.Keys), len(values))}
	}
	return &Row{metadata: metadata, values: values}, nil
}

// Metadata returns the row's metadata.
func (r *Row) Metadata() *ResultMetadata { return r.metadata }

// At returns the value at ordinal i.
func (r *Row) At(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("row: index %d out of range", i)}
	}
	return r.values[i], nil
}

// Get returns the value of column name.
func (r *Row) Get(name string) (any, error) {
	i, ok := r.metadata.IndexOf(name)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("row: unknown column %q", name)}
	}
	return r.values[i], nil
}

// Values returns a copy of the row's positional values.
func (r *Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}
