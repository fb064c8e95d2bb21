// Package schema implements the schema registry (C4): Column,
// ColumnCollection, Table, and the process-scoped MetaData catalog
// that the compiler and reflection orchestrator consult.
package schema

import (
	"context"
	"fmt"
	"sync"

	"normlite/internal/normerr"
	"normlite/internal/types"
)

// ImplicitObjectIDColumn and ImplicitArchivedColumn name the two
// columns every Table auto-appends on construction (spec.md §3).
const (
	ImplicitObjectIDColumn = "_no_id"
	ImplicitArchivedColumn = "_no_archived"
)

// Column is created detached; Parent is set exactly once when the
// column is appended to a Table via ColumnCollection.Add. Parent is a
// non-owning back-reference: the Table owns the ColumnCollection, the
// Column only points back, so there is no owning cycle.
type Column struct {
	Name       string
	Engine     types.Engine
	PrimaryKey bool
	parent     *Table
}

// NewColumn creates a detached column. It has no parent until added to
// a Table.
func NewColumn(name string, engine types.Engine, primaryKey bool) *Column {
	return &Column{Name: name, Engine: engine, PrimaryKey: primaryKey}
}

// Parent returns the Table this column belongs to, or nil if detached.
func (c *Column) Parent() *Table { return c.parent }

// ColumnCollection is an ordered sequence of Columns with a parallel
// name->index map and set for fast membership. Mutation happens only
// through Add; iteration order is insertion order.
type ColumnCollection struct {
	owner   *Table
	ordered []*Column
	byName  map[string]int
}

func newColumnCollection(owner *Table) *ColumnCollection {
	return &ColumnCollection{owner: owner, byName: make(map[string]int)}
}

// Add appends col, setting its Parent to the owning Table. Fails with
// *normerr.DuplicateColumnError if a column with the same name already
// exists.
func (cc *ColumnCollection) Add(col *Column) error {
	if _, exists := cc.byName[col.Name]; exists {
		return &normerr.DuplicateColumnError{Table: cc.owner.Name, Column: col.Name}
	}
	col.parent = cc.owner
	cc.byName[col.Name] = len(cc.ordered)
	cc.ordered = append(cc.ordered, col)
	return nil
}

// Len reports the number of columns.
func (cc *ColumnCollection) Len() int { return len(cc.ordered) }

// At returns the column at ordinal index i.
func (cc *ColumnCollection) At(i int) (*Column, bool) {
	if i < 0 || i >= len(cc.ordered) {
		return nil, false
	}
	return cc.ordered[i], true
}

// Get returns the column named name.
func (cc *ColumnCollection) Get(name string) (*Column, bool) {
	i, ok := cc.byName[name]
	if !ok {
		return nil, false
	}
	return cc.ordered[i], true
}

// Contains reports whether a column named name exists.
func (cc *ColumnCollection) Contains(name string) bool {
	_, ok := cc.byName[name]
	return ok
}

// All returns the columns in insertion order. The returned slice is a
// copy; mutating it does not affect the collection.
func (cc *ColumnCollection) All() []*Column {
	out := make([]*Column, len(cc.ordered))
	copy(out, cc.ordered)
	return out
}

// Names returns column names in insertion order.
func (cc *ColumnCollection) Names() []string {
	out := make([]string, len(cc.ordered))
	for i, c := range cc.ordered {
		out[i] = c.Name
	}
	return out
}

// ReadOnlyColumns borrows a ColumnCollection and exposes only its
// accessors. It does not duplicate storage; every mutation method
// surfaces the same failure.
type ReadOnlyColumns struct {
	cc *ColumnCollection
}

// ReadOnly returns a read-only view over cc.
func (cc *ColumnCollection) ReadOnly() ReadOnlyColumns { return ReadOnlyColumns{cc: cc} }

func (r ReadOnlyColumns) Len() int                        { return r.cc.Len() }
func (r ReadOnlyColumns) At(i int) (*Column, bool)        { return r.cc.At(i) }
func (r ReadOnlyColumns) Get(name string) (*Column, bool) { return r.cc.Get(name) }
func (r ReadOnlyColumns) Contains(name string) bool       { return r.cc.Contains(name) }
func (r ReadOnlyColumns) All() []*Column                  { return r.cc.All() }
func (r ReadOnlyColumns) Names() []string                 { return r.cc.Names() }

// Add always fails: this view is read-only.
func (r ReadOnlyColumns) Add(*Column) error {
	return &normerr.InvalidRequestError{Reason: "column collection is read-only"}
}

// PrimaryKeyConstraint is the ordered set of columns with
// PrimaryKey=true: user-declared primary columns in declaration order,
// with the implicit _no_id column last.
type PrimaryKeyConstraint struct {
	columns []*Column
}

// Columns returns the primary key's columns in order.
func (pk *PrimaryKeyConstraint) Columns() []*Column {
	out := make([]*Column, len(pk.columns))
	copy(out, pk.columns)
	return out
}

// Table is a named set of columns plus its primary key constraint. On
// construction with user columns, two implicit columns are appended:
// _no_id (ObjectID, primary key) and _no_archived (ArchivalFlag).
type Table struct {
	Name     string
	Dialect  string
	columns  *ColumnCollection
	pk       *PrimaryKeyConstraint
	remoteID string
}

// RemoteID is the Notion database id this table is bound to, set once
// a CREATE TABLE statement's compiled call has been committed.
func (t *Table) RemoteID() string { return t.remoteID }

// SetRemoteID binds the table to a committed Notion database id. It is
// the compiler/connection layer's responsibility to call this exactly
// once, right after the creating operation commits.
func (t *Table) SetRemoteID(id string) { t.remoteID = id }

// NewTable builds a Table named name in the given dialect from
// userColumns, then appends the two implicit columns. Fails with
// *normerr.DuplicateColumnError if userColumns contains a name
// collision, or collides with an implicit column name.
func NewTable(name, dialect string, userColumns []*Column) (*Table, error) {
	t := &Table{Name: name, Dialect: dialect}
	t.columns = newColumnCollection(t)

	for _, col := range userColumns {
		if err := t.columns.Add(col); err != nil {
			return nil, err
		}
	}
	if err := t.columns.Add(NewColumn(ImplicitObjectIDColumn, types.ObjectID{}, true)); err != nil {
		return nil, err
	}
	if err := t.columns.Add(NewColumn(ImplicitArchivedColumn, types.ArchivalFlag{}, false)); err != nil {
		return nil, err
	}

	var pkCols []*Column
	for _, col := range t.columns.All() {
		if col.PrimaryKey {
			pkCols = append(pkCols, col)
		}
	}
	t.pk = &PrimaryKeyConstraint{columns: pkCols}
	return t, nil
}

// Columns returns the table's mutable column collection.
func (t *Table) Columns() *ColumnCollection { return t.columns }

// PrimaryKey returns the table's primary key constraint.
func (t *Table) PrimaryKey() *PrimaryKeyConstraint { return t.pk }

// FindColumn looks up a column by name.
func (t *Table) FindColumn(name string) (*Column, bool) { return t.columns.Get(name) }

// Reflector is the capability internal/reflect provides: the two
// single-command primitives that drive MetaData.Reflect. Kept as an
// interface here (rather than importing internal/reflect directly) to
// avoid a schema<->reflect import cycle.
type Reflector interface {
	HasTable(ctx context.Context, name string) (bool, error)
	ReflectTable(ctx context.Context, table *Table) error
}

// MetaData is the process-scoped name->Table registry.
type MetaData struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMetaData creates an empty registry.
func NewMetaData() *MetaData {
	return &MetaData{tables: make(map[string]*Table)}
}

// Add registers table. Fails with *normerr.InvalidRequestError if a
// table with the same name is already registered.
func (md *MetaData) Add(table *Table) error {
	md.mu.Lock()
	defer md.mu.Unlock()
	if _, exists := md.tables[table.Name]; exists {
		return &normerr.InvalidRequestError{Reason: fmt.Sprintf("table %q already registered", table.Name)}
	}
	md.tables[table.Name] = table
	return nil
}

// Contains reports whether name is registered.
func (md *MetaData) Contains(name string) bool {
	md.mu.RLock()
	defer md.mu.RUnlock()
	_, ok := md.tables[name]
	return ok
}

// Get returns the registered table named name.
func (md *MetaData) Get(name string) (*Table, bool) {
	md.mu.RLock()
	defer md.mu.RUnlock()
	t, ok := md.tables[name]
	return t, ok
}

// Remove drops a table from the registry, used by DROP TABLE.
func (md *MetaData) Remove(name string) {
	md.mu.Lock()
	defer md.mu.Unlock()
	delete(md.tables, name)
}

// TableNames returns the registered table names in no particular
// order.
func (md *MetaData) TableNames() []string {
	md.mu.RLock()
	defer md.mu.RUnlock()
	names := make([]string, 0, len(md.tables))
	for name := range md.tables {
		names = append(names, name)
	}
	return names
}

// Reflect iterates every registered table and passes each one the
// reflector reports as present remotely to ReflectTable. No table is
// skipped for already having columns, and reflection does not add
// columns to a table.
func (md *MetaData) Reflect(ctx context.Context, r Reflector) error {
	md.mu.RLock()
	tables := make([]*Table, 0, len(md.tables))
	for _, t := range md.tables {
		tables = append(tables, t)
	}
	md.mu.RUnlock()

	for _, t := range tables {
		ok, err := r.HasTable(ctx, t.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := r.ReflectTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
