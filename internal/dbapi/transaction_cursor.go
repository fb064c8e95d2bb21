package dbapi

import (
	"context"
	"math/big"

	"normlite/internal/compiler"
	"normlite/internal/normerr"
	"normlite/internal/notionclient"
)

// Stager is the capability a connection provides to a
// TransactionCursor: instead of invoking the client immediately,
// Execute hands the cursor to the connection's current transaction,
// which defers the real client call until commit (spec.md §4.8's
// transaction-aware cursor).
type Stager interface {
	Stage(cursor *TransactionCursor) error
}

// TransactionCursor wraps a base Cursor and defers execution to a
// transaction commit. Before commit, every accessor fails: the result
// set does not exist yet.
type TransactionCursor struct {
	client     notionclient.Client
	descriptor compiler.CallDescriptor
	stager     Stager
	base       *Cursor
	committed  bool
}

// NewTransactionCursor creates a cursor staged for deferred execution
// against client once its owning transaction commits.
func NewTransactionCursor(client notionclient.Client, descriptor compiler.CallDescriptor, stager Stager) *TransactionCursor {
	return &TransactionCursor{client: client, descriptor: descriptor, stager: stager}
}

// Execute stages the operation with the connection; it never talks to
// the client directly.
func (tc *TransactionCursor) Execute(context.Context) error {
	return tc.stager.Stage(tc)
}

// RunDeferred performs the real client call. Called by the owning
// operation's DoCommit at commit time; its error is DoCommit's error.
func (tc *TransactionCursor) RunDeferred(ctx context.Context) error {
	tc.base = NewCursor(tc.client)
	err := tc.base.Execute(ctx, tc.descriptor)
	tc.committed = err == nil
	return err
}

// Descriptor returns the staged call descriptor.
func (tc *TransactionCursor) Descriptor() compiler.CallDescriptor { return tc.descriptor }

// Base returns the underlying Cursor once committed, nil beforehand.
// Used to assemble a CompositeCursor's child result cursors.
func (tc *TransactionCursor) Base() *Cursor { return tc.base }

// CommittedID returns the Notion object id the committed call
// produced, if any.
func (tc *TransactionCursor) CommittedID() (string, bool) {
	if !tc.committed || tc.base.LastObjectID() == "" {
		return "", false
	}
	return tc.base.LastObjectID(), true
}

func (tc *TransactionCursor) requireCommitted() error {
	if !tc.committed {
		return &normerr.InterfaceError{Reason: "transaction cursor: accessed before commit"}
	}
	return nil
}

// Description forwards to the base cursor once committed.
func (tc *TransactionCursor) Description() ([]ColumnDescriptor, error) {
	if err := tc.requireCommitted(); err != nil {
		return nil, err
	}
	return tc.base.Description(), nil
}

// RowCount forwards to the base cursor once committed.
func (tc *TransactionCursor) RowCount() (int64, error) {
	if err := tc.requireCommitted(); err != nil {
		return 0, err
	}
	return tc.base.RowCount(), nil
}

// LastRowID forwards to the base cursor once committed.
func (tc *TransactionCursor) LastRowID() (*big.Int, error) {
	if err := tc.requireCommitted(); err != nil {
		return nil, err
	}
	return tc.base.LastRowID(), nil
}

// FetchOne forwards to the base cursor once committed.
func (tc *TransactionCursor) FetchOne() (*Row, error) {
	if err := tc.requireCommitted(); err != nil {
		return nil, err
	}
	return tc.base.FetchOne()
}

// FetchAll forwards to the base cursor once committed.
func (tc *TransactionCursor) FetchAll() ([]*Row, error) {
	if err := tc.requireCommitted(); err != nil {
		return nil, err
	}
	return tc.base.FetchAll()
}

// ReturnsRows reports whether the staged statement produces a result
// set, once known (after commit).
func (tc *TransactionCursor) ReturnsRows() bool {
	return tc.committed && tc.base.metadata != nil && tc.base.metadata.ReturnsRows
}
