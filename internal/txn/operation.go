package txn

import (
	"context"

	"normlite/internal/dbapi"
	"normlite/internal/notionclient"
)

// Operation is the capability set every staged unit of work exposes to
// the transaction manager (spec.md §3's polymorphic Operation). This
// codebase's only concrete variant wraps a dbapi.TransactionCursor;
// the CreateTable/Insert/Select/Update/Delete distinction lives in the
// cursor's compiled CallDescriptor, not in separate Go types, since
// every variant's commit/rollback behavior reduces to "invoke the
// client, then optionally issue a compensating archive".
type Operation interface {
	// Stage performs any preparation that must happen inside the
	// commit critical path, after the lock is held. The call
	// descriptor is already compiled by the time an Operation is
	// staged, so this is a no-op placeholder kept to match spec.md's
	// named hook.
	Stage() error
	// DoCommit invokes the client for real. Must be safe to treat as
	// a single authoritative attempt: the transaction manager never
	// calls it more than once per operation per commit.
	DoCommit(ctx context.Context) error
	// DoRollback undoes a successful DoCommit, called only when this
	// operation's DoCommit previously succeeded in the same
	// transaction.
	DoRollback(ctx context.Context) error
	// Result returns the cursor to surface in the connection's
	// composite cursor, and whether it contributes a result set there.
	Result() (dbapi.ResultCursor, bool)
}

// CursorOperation adapts a dbapi.TransactionCursor to Operation.
type CursorOperation struct {
	client notionclient.Client
	cursor *dbapi.TransactionCursor
}

// NewCursorOperation wraps cursor for staging with a transaction.
func NewCursorOperation(client notionclient.Client, cursor *dbapi.TransactionCursor) *CursorOperation {
	return &CursorOperation{client: client, cursor: cursor}
}

func (o *CursorOperation) Stage() error { return nil }

func (o *CursorOperation) DoCommit(ctx context.Context) error {
	if err := o.cursor.RunDeferred(ctx); err != nil {
		return err
	}
	return nil
}

// DoRollback issues a compensating archive for mutating operations
// (pages.create, databases.create); read-only operations (query) have
// nothing to undo.
func (o *CursorOperation) DoRollback(ctx context.Context) error {
	desc := o.cursor.Descriptor()
	switch {
	case desc.Endpoint == notionclient.EndpointPages && desc.Request == notionclient.RequestCreate:
		id, ok := o.cursor.CommittedID()
		if !ok {
			return nil
		}
		_, err := o.client.Invoke(ctx, notionclient.EndpointPages, notionclient.RequestUpdate, notionclient.Payload{
			"page_id":  id,
			"archived": true,
		})
		return err
	case desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestCreate:
		id, ok := o.cursor.CommittedID()
		if !ok {
			return nil
		}
		_, err := o.client.Invoke(ctx, notionclient.EndpointDatabases, notionclient.RequestUpdate, notionclient.Payload{
			"database_id": id,
			"archived":    true,
		})
		return err
	default:
		return nil
	}
}

// Result implements Operation. Only a committed query (SELECT)
// contributes a result set; CREATE TABLE, INSERT and DROP TABLE do not.
func (o *CursorOperation) Result() (dbapi.ResultCursor, bool) {
	desc := o.cursor.Descriptor()
	isQuery := desc.Endpoint == notionclient.EndpointDatabases && desc.Request == notionclient.RequestQuery
	return o.cursor.Base(), isQuery && o.cursor.ReturnsRows()
}
