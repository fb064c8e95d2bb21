// Package reflect implements the two single-call reflection
// primitives (C12): HasTable and ReflectTable, composed by
// schema.MetaData.Reflect. Unlike a multi-dialect introspection
// registry, there is exactly one backing store here, so the registry
// pattern collapses to a single Reflector bound to a notionclient.Client.
package reflect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/rowmodel"
	"normlite/internal/schema"
	"normlite/internal/types"
)

// Reflector implements schema.Reflector against a single Notion
// client. The Notion API's capability set (spec.md §4.6) has no
// generic "find database by title" search call, so this type keeps
// its own name->database id registry, populated by Register whenever
// a CREATE TABLE commits.
type Reflector struct {
	client notionclient.Client

	mu  sync.Mutex
	ids map[string]string
}

// New creates a Reflector bound to client.
func New(client notionclient.Client) *Reflector {
	return &Reflector{client: client, ids: make(map[string]string)}
}

// Register records that table name is backed by the Notion database
// databaseID. Called once, right after a CREATE TABLE commits.
func (r *Reflector) Register(name, databaseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[name] = databaseID
}

// Unregister forgets name, so it no longer resolves to a remote id.
// Called once, right after a DROP TABLE commits.
func (r *Reflector) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, name)
}

func (r *Reflector) remoteID(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[name]
	return id, ok
}

// HasTable reports whether name is known to be backed by a live,
// non-archived Notion database.
func (r *Reflector) HasTable(ctx context.Context, name string) (bool, error) {
	id, ok := r.remoteID(name)
	if !ok {
		return false, nil
	}
	resp, err := r.client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestRetrieve, notionclient.Payload{"database_id": id})
	if err != nil {
		var dbErr *normerr.DatabaseError
		if errors.As(err, &dbErr) {
			return false, nil
		}
		return false, err
	}
	archived, _ := resp["archived"].(bool)
	return !archived, nil
}

// ReflectTable retrieves table's backing database and validates its
// properties against table's declared columns: both implicit columns
// must be present, and every declared column must have a matching
// reflected property. Failures report as *normerr.InvalidRequestError.
func (r *Reflector) ReflectTable(ctx context.Context, table *schema.Table) error {
	id, ok := r.remoteID(table.Name)
	if !ok {
		return &normerr.InvalidRequestError{Reason: fmt.Sprintf("reflect: table %q has no known remote id", table.Name)}
	}

	resp, err := r.client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestRetrieve, notionclient.Payload{"database_id": id})
	if err != nil {
		return err
	}
	table.SetRemoteID(id)

	order := table.Columns().Names()
	dbRow, err := rowmodel.FlattenDatabaseSchema(resp, order)
	if err != nil {
		return err
	}
	applyDeclaredTags(table, dbRow)

	return validate(table, dbRow)
}

// applyDeclaredTags overrides each reflected column's wire-inferred Tag
// with the locally declared column's own Engine.Tag() where one exists.
// This resolves ambiguity the wire shape alone cannot (Integer, Numeric,
// and an unrecognized-currency Money all reflect as the same "number"
// property), since ReflectTable, unlike DescribeTable, always has the
// original declaration to consult.
func applyDeclaredTags(table *schema.Table, dbRow *rowmodel.DatabaseSchemaRow) {
	declared := make(map[string]types.Tag, table.Columns().Len())
	for _, col := range table.Columns().All() {
		declared[col.Name] = col.Engine.Tag()
	}
	for i, pv := range dbRow.Columns {
		if tag, ok := declared[pv.Name]; ok {
			dbRow.Columns[i].Type = tag
		}
	}
}

// DescribeTable retrieves name's backing database and returns its
// reflected columns, without requiring a caller-supplied schema.Table
// to validate against — used by cmd/normlite's inspect subcommand,
// which has no local column declarations to check against.
func (r *Reflector) DescribeTable(ctx context.Context, name string) (*rowmodel.DatabaseSchemaRow, error) {
	id, ok := r.remoteID(name)
	if !ok {
		return nil, &normerr.InvalidRequestError{Reason: fmt.Sprintf("reflect: table %q has no known remote id", name)}
	}
	resp, err := r.client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestRetrieve, notionclient.Payload{"database_id": id})
	if err != nil {
		return nil, err
	}
	return rowmodel.FlattenDatabaseSchema(resp, rowmodel.PropertyNames(resp))
}

func validate(table *schema.Table, dbRow *rowmodel.DatabaseSchemaRow) error {
	present := make(map[string]bool, len(dbRow.Columns))
	for _, c := range dbRow.Columns {
		present[c.Name] = true
	}

	for _, col := range table.Columns().All() {
		if !present[col.Name] {
			return &normerr.InvalidRequestError{Reason: fmt.Sprintf("reflect: table %q missing reflected column %q (type %s)", table.Name, col.Name, col.Engine.Tag())}
		}
	}
	return nil
}
