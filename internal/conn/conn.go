// Package conn implements the Connection (C11): the high-level
// execute/commit/rollback API that drives the compiler, the
// transaction manager, and the reflection orchestrator as one unit,
// grounded on the teacher's begin/exec/commit/rollback loop
// (internal/apply/apply.go's applyWithTransaction).
package conn

import (
	"context"
	"fmt"

	"normlite/internal/ast"
	"normlite/internal/compiler"
	"normlite/internal/dbapi"
	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/reflect"
	"normlite/internal/schema"
	"normlite/internal/txn"
)

// schemaResource is the fixed lock resource name guarding every
// CREATE TABLE/DROP TABLE: schema mutation is exclusive against every
// other schema mutation in flight, independent of which table is
// named (spec.md §4.11).
const schemaResource = "schema"

// Connection is a single client's serialized view of the store: one
// open transaction at a time, one compiled statement at a time.
// Connection itself is not safe for concurrent use — exactly the
// teacher's Applier, which owns one *sql.DB handle per invocation.
type Connection struct {
	client    notionclient.Client
	md        *schema.MetaData
	txns      *txn.Manager
	reflector *reflect.Reflector

	currentTx    *txn.Transaction
	composite    *dbapi.CompositeCursor
	stagedTables []*schema.Table // tables from CREATE TABLEs staged in currentTx, provisionally registered
	stagedDrops  []*schema.Table // tables from DROP TABLEs staged in currentTx, unregistered only on commit
}

// New builds a Connection over client, sharing md and reflector with
// any other Connection that should observe the same schema state. It
// owns a private transaction manager, fit for a single-connection
// caller (internal/config-driven CLI use).
func New(client notionclient.Client, md *schema.MetaData, reflector *reflect.Reflector) *Connection {
	return NewManagerBacked(client, md, reflector, txn.NewManager())
}

// NewManagerBacked builds a Connection sharing an existing transaction
// manager, for callers that open many Connections against one store
// and need their locks to actually contend (internal/proxyhttp: one
// manager shared by every transaction, the way two real clients of one
// store would serialize against each other).
func NewManagerBacked(client notionclient.Client, md *schema.MetaData, reflector *reflect.Reflector, txns *txn.Manager) *Connection {
	return &Connection{
		client:    client,
		md:        md,
		txns:      txns,
		reflector: reflector,
	}
}

// Begin opens a transaction if none is already active and returns its
// id. Exported for a caller (internal/proxyhttp) that needs a bare
// transaction id before any statement is staged.
func (c *Connection) Begin() string {
	if c.currentTx == nil {
		c.currentTx = c.txns.Begin()
	}
	return c.currentTx.ID.String()
}

// Execute compiles stmt and stages it against the connection's
// current transaction, opening one implicitly if none is active. The
// returned cursor is transaction-aware: its result accessors fail
// until Commit runs the staged operation.
func (c *Connection) Execute(ctx context.Context, stmt ast.Node, params map[string]any) (*dbapi.TransactionCursor, error) {
	if c.currentTx == nil {
		c.currentTx = c.txns.Begin()
	}

	desc, err := compiler.Compile(stmt, c.md, params)
	if err != nil {
		return nil, err
	}

	switch stmt.(type) {
	case *ast.CreateTable:
		if desc.Table != nil {
			// Registered provisionally (remote id still empty) so a
			// later statement in the same open transaction can resolve
			// the table before this CREATE TABLE itself has committed.
			// rebindTableID (internal/dbapi) fills in the remote id once
			// this operation's own deferred call runs.
			if err := c.md.Add(desc.Table); err != nil {
				return nil, err
			}
			c.stagedTables = append(c.stagedTables, desc.Table)
		}
	case *ast.DropTable:
		if desc.Table != nil {
			// Unlike CREATE TABLE, the catalog/reflector entry stays live
			// until commit actually succeeds: if the transaction aborts,
			// the table was never archived remotely, so nothing to unwind.
			c.stagedDrops = append(c.stagedDrops, desc.Table)
		}
	}

	resourceID, mode, err := resourceAndLock(stmt, desc)
	if err != nil {
		return nil, err
	}

	cursor := dbapi.NewTransactionCursor(c.client, desc, c)
	op := txn.NewCursorOperation(c.client, cursor)
	if err := c.txns.StageOperation(c.currentTx.ID, resourceID, mode, op); err != nil {
		return nil, err
	}
	if err := cursor.Execute(ctx); err != nil {
		return nil, err
	}
	return cursor, nil
}

// Stage implements dbapi.Stager. The real staging work already
// happened in Execute (StageOperation); this is the hook
// TransactionCursor.Execute calls, kept a no-op so every mutating path
// runs through the same StageOperation call site.
func (c *Connection) Stage(*dbapi.TransactionCursor) error { return nil }

// resourceAndLock derives the (resource_id, lock_mode) pair for stmt,
// per spec.md §4.11's table: CREATE TABLE -> (schema, EXCLUSIVE),
// INSERT -> (table, EXCLUSIVE), UPDATE/DELETE -> (table, EXCLUSIVE),
// SELECT -> (table, SHARED). DROP TABLE is schema-exclusive, same as
// CREATE TABLE: it also mutates the catalog.
func resourceAndLock(stmt ast.Node, desc compiler.CallDescriptor) (string, txn.LockMode, error) {
	switch n := stmt.(type) {
	case *ast.CreateTable:
		return schemaResource, txn.ExclusiveLock, nil
	case *ast.DropTable:
		return schemaResource, txn.ExclusiveLock, nil
	case *ast.Insert:
		return n.Table, txn.ExclusiveLock, nil
	case *ast.Select:
		return n.Table, txn.SharedLock, nil
	default:
		if desc.Table != nil {
			return desc.Table.Name, txn.ExclusiveLock, nil
		}
		return "", "", &normerr.InternalError{Reason: fmt.Sprintf("conn: cannot derive resource/lock for %T", stmt)}
	}
}

// Commit runs the two-phase commit protocol over every statement
// staged since the last Commit/Rollback. On success it registers any
// newly created table with the reflector and assembles a composite
// cursor over every operation whose Result contributes a result set
// (each committed SELECT), in commit order.
func (c *Connection) Commit(ctx context.Context) error {
	if c.currentTx == nil {
		return &normerr.TransactionError{TxID: "", State: "NONE", Verb: "commit"}
	}
	tx := c.currentTx
	staged := c.stagedTables
	drops := c.stagedDrops
	c.stagedTables = nil
	c.stagedDrops = nil

	if err := c.txns.Commit(ctx, tx.ID); err != nil {
		c.currentTx = nil
		c.unregisterTables(staged)
		return err
	}

	for _, table := range staged {
		c.reflector.Register(table.Name, table.RemoteID())
	}
	for _, table := range drops {
		c.md.Remove(table.Name)
		c.reflector.Unregister(table.Name)
	}

	var children []dbapi.ResultCursor
	for _, op := range tx.Operations() {
		if result, hasRows := op.Result(); hasRows {
			children = append(children, result)
		}
	}

	c.composite = dbapi.NewCompositeCursor(children)
	c.currentTx = nil
	return nil
}

// unregisterTables removes md entries provisionally added for CREATE
// TABLEs that were staged but never committed, so a retried CREATE
// TABLE with the same name does not collide against a dead entry.
func (c *Connection) unregisterTables(tables []*schema.Table) {
	for _, table := range tables {
		c.md.Remove(table.Name)
	}
}

// Rollback aborts the current transaction. Any previously assembled
// composite cursor remains reachable via LastResult, per spec.md
// §4.11. Rollback does not close that composite's cursors: they stay
// readable.
func (c *Connection) Rollback(ctx context.Context) error {
	if c.currentTx == nil {
		return &normerr.TransactionError{TxID: "", State: "NONE", Verb: "rollback"}
	}
	tx := c.currentTx
	staged := c.stagedTables
	c.stagedTables = nil
	c.stagedDrops = nil // never registered, so nothing to unwind
	c.currentTx = nil
	err := c.txns.Rollback(ctx, tx.ID)
	c.unregisterTables(staged)
	return err
}

// LastResult returns the composite cursor assembled by the most
// recent successful Commit, if any.
func (c *Connection) LastResult() (*dbapi.CompositeCursor, bool) {
	return c.composite, c.composite != nil
}

// InTransaction reports whether a transaction is currently open.
func (c *Connection) InTransaction() bool { return c.currentTx != nil }

// TransactionID returns the open transaction's id, or "", false if
// none is open. Used by internal/proxyhttp to key its connection-per-
// transaction map.
func (c *Connection) TransactionID() (string, bool) {
	if c.currentTx == nil {
		return "", false
	}
	return c.currentTx.ID.String(), true
}
