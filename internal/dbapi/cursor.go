package dbapi

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"normlite/internal/compiler"
	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/rowmodel"
)

// Paramstyle is always "named" (spec.md §4.8).
const Paramstyle = "named"

// Cursor executes exactly one CallDescriptor against a Client and
// exposes the resulting rows. It is not restartable: once fetchall has
// drained the result set, further fetches return empty.
type Cursor struct {
	client notionclient.Client

	description  []ColumnDescriptor
	rowcount     int64
	lastrowid    *big.Int
	lastObjectID string
	metadata     *ResultMetadata
	rows        []*Row
	pos         int
	executed    bool
	closed      bool
}

// NewCursor creates a cursor bound to client.
func NewCursor(client notionclient.Client) *Cursor {
	return &Cursor{client: client, rowcount: -1}
}

// Paramstyle reports the cursor's bind-parameter style.
func (c *Cursor) Paramstyle() string { return Paramstyle }

// Description returns the cursor's column descriptors, or nil when
// the statement does not return rows.
func (c *Cursor) Description() []ColumnDescriptor { return c.description }

// RowCount returns the number of rows the last execute produced, or -1
// before any execute.
func (c *Cursor) RowCount() int64 { return c.rowcount }

// LastRowID returns the 128-bit integer interpretation of the last
// modified object's UUID, or nil if no object was modified.
func (c *Cursor) LastRowID() *big.Int { return c.lastrowid }

// LastObjectID returns the raw Notion object id backing LastRowID, or
// "" if no object was modified. Used by rollback compensation, which
// needs the id string rather than its integer reinterpretation.
func (c *Cursor) LastObjectID() string { return c.lastObjectID }

// Execute invokes desc against the client and parses the result set.
// Only one execute is meaningful per cursor; a second call replaces
// the prior result set, matching the DBAPI convention this follows.
func (c *Cursor) Execute(ctx context.Context, desc compiler.CallDescriptor) error {
	if c.closed {
		return &normerr.ResourceClosedError{Resource: "cursor"}
	}
	if err := validatePayload(desc); err != nil {
		return err
	}
	rebindTableID(desc)

	resp, err := c.client.Invoke(ctx, desc.Endpoint, desc.Request, desc.Payload)
	if err != nil {
		return err
	}

	c.executed = true
	c.pos = 0
	return c.parseResponse(desc, resp)
}

// rebindTableID refreshes a descriptor's database id from its bound
// Table immediately before the call fires. A statement compiled
// against a table created earlier in the same still-open transaction
// sees "" at compile time, since the CREATE TABLE's own database id
// is only known once its deferred call runs; by the time this
// statement's own deferred call runs, commit order guarantees the
// CREATE TABLE already ran and set the table's remote id.
func rebindTableID(desc compiler.CallDescriptor) {
	if desc.Table == nil || desc.Table.RemoteID() == "" {
		return
	}
	id := desc.Table.RemoteID()
	switch {
	case desc.Endpoint == notionclient.EndpointPages && desc.Request == notionclient.RequestCreate:
		if parent, ok := desc.Payload["parent"].(notionclient.Payload); ok {
			parent["database_id"] = id
		}
	case desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestQuery:
		desc.Payload["database_id"] = id
	case desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestUpdate:
		desc.Payload["database_id"] = id
	}
}

func validatePayload(desc compiler.CallDescriptor) error {
	if desc.Endpoint == notionclient.EndpointPages && desc.Request == notionclient.RequestCreate {
		if _, ok := desc.Payload["parent"]; !ok {
			return &normerr.InterfaceError{Reason: "pages.create: missing parent"}
		}
		if _, ok := desc.Payload["properties"]; !ok {
			return &normerr.InterfaceError{Reason: "pages.create: missing properties"}
		}
	}
	return nil
}

func (c *Cursor) parseResponse(desc compiler.CallDescriptor, resp notionclient.Payload) error {
	switch {
	case desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestQuery:
		return c.parsePages(desc, listResults(resp))
	case desc.Endpoint == notionclient.EndpointPages && desc.Request == notionclient.RequestCreate:
		return c.parsePages(desc, []any{resp})
	case desc.Endpoint == notionclient.EndpointPages && desc.Request == notionclient.RequestUpdate:
		return c.parsePages(desc, []any{resp})
	case desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestCreate:
		c.noRows()
		if id, ok := resp["id"].(string); ok {
			c.setLastRowID(id)
			if desc.Table != nil {
				desc.Table.SetRemoteID(id)
			}
		}
		return nil
	default:
		c.noRows()
		if id, ok := resp["id"].(string); ok {
			c.setLastRowID(id)
		}
		return nil
	}
}

func (c *Cursor) parsePages(desc compiler.CallDescriptor, items []any) error {
	if desc.Table == nil {
		return &normerr.InternalError{Reason: "cursor: page response with no bound table"}
	}

	keys := desc.Table.Columns().Names()
	metadata := NewResultMetadata(keys)
	description := make([]ColumnDescriptor, len(keys))
	for i, k := range keys {
		col, _ := desc.Table.FindColumn(k)
		description[i] = ColumnDescriptor{Name: k, TypeCode: string(col.Engine.Tag())}
	}

	rows := make([]*Row, 0, len(items))
	var lastID string
	for _, item := range items {
		payload, ok := item.(notionclient.Payload)
		if !ok {
			return &normerr.InternalError{Reason: fmt.Sprintf("cursor: unexpected result item %#v", item)}
		}
		flat, err := rowmodel.FlattenPage(desc.Table, payload)
		if err != nil {
			return err
		}
		values := make([]any, len(flat.Properties))
		for i, p := range flat.Properties {
			values[i] = p.Value
		}
		row, err := NewRow(metadata, values)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		lastID = flat.ID
	}

	c.metadata = metadata
	c.description = description
	c.rows = rows
	c.rowcount = int64(len(rows))
	if lastID != "" {
		c.setLastRowID(lastID)
	}
	return nil
}

func (c *Cursor) noRows() {
	c.metadata = NoResultMetadata
	c.description = nil
	c.rows = nil
	c.rowcount = -1
}

func (c *Cursor) setLastRowID(id string) {
	u, err := uuid.Parse(id)
	if err != nil {
		return
	}
	c.lastrowid = new(big.Int).SetBytes(u[:])
	c.lastObjectID = id
}

func listResults(resp notionclient.Payload) []any {
	results, _ := resp["results"].([]any)
	return results
}

// FetchOne returns the next row, or nil once the result set is
// exhausted. Fails on a closed cursor or a cursor never executed.
func (c *Cursor) FetchOne() (*Row, error) {
	if c.closed {
		return nil, &normerr.ResourceClosedError{Resource: "cursor"}
	}
	if !c.executed {
		return nil, &normerr.InterfaceError{Reason: "cursor: fetch before execute"}
	}
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, nil
}

// FetchAll returns every remaining row and exhausts the cursor; a
// subsequent call returns an empty slice.
func (c *Cursor) FetchAll() ([]*Row, error) {
	if c.closed {
		return nil, &normerr.ResourceClosedError{Resource: "cursor"}
	}
	if !c.executed {
		return nil, &normerr.InterfaceError{Reason: "cursor: fetch before execute"}
	}
	out := c.rows[c.pos:]
	c.pos = len(c.rows)
	return out, nil
}

// ExecuteMany is reserved; this system never batches statements.
func (c *Cursor) ExecuteMany(context.Context, []compiler.CallDescriptor) error {
	return &normerr.InterfaceError{Reason: "executemany is not implemented"}
}

// Close marks the cursor closed; further operations fail.
func (c *Cursor) Close() { c.closed = true }
