// Package txn implements the lock manager (C9) and transaction
// manager (C10): non-blocking shared/exclusive locking and a
// two-phase commit protocol over staged operations.
package txn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"normlite/internal/normerr"
)

// State is a Transaction's position in the commit state machine.
type State string

const (
	StateActive             State = "ACTIVE"
	StatePartiallyCommitted State = "PARTIALLY_COMMITTED"
	StateCommitted          State = "COMMITTED"
	StateFailed             State = "FAILED"
	StateAborted            State = "ABORTED"
)

// stagedOp is one entry of a Transaction's operation list: the
// resource/lock-mode pair the connection derived, plus the Operation
// itself.
type stagedOp struct {
	resourceID string
	mode       LockMode
	op         Operation
	committed  bool
}

// Transaction tracks one client transaction's state and its ordered
// staged operations.
type Transaction struct {
	ID         uuid.UUID
	State      State
	operations []*stagedOp
}

// Manager mints and tracks transactions, and owns the lock table. Both
// active_txs and the lock table are guarded by the same mutex, held
// only for state mutation (spec.md §5) — never across a client call.
type Manager struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Transaction
	locks  map[string][]holder
}

// NewManager creates an empty transaction manager.
func NewManager() *Manager {
	return &Manager{active: make(map[uuid.UUID]*Transaction), locks: make(map[string][]holder)}
}

// Begin mints a new ACTIVE transaction.
func (m *Manager) Begin() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &Transaction{ID: uuid.New(), State: StateActive}
	m.active[tx.ID] = tx
	return tx
}

// StageOperation appends op to tid's transaction, to be executed at
// commit time. Fails with *normerr.TransactionError if tid is not
// ACTIVE.
func (m *Manager) StageOperation(tid uuid.UUID, resourceID string, mode LockMode, op Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.active[tid]
	if !ok || tx.State != StateActive {
		return &normerr.TransactionError{TxID: tid.String(), State: string(stateOrUnknown(tx)), Verb: "stage"}
	}
	tx.operations = append(tx.operations, &stagedOp{resourceID: resourceID, mode: mode, op: op})
	return nil
}

func stateOrUnknown(tx *Transaction) State {
	if tx == nil {
		return "UNKNOWN"
	}
	return tx.State
}

// Commit runs the two-phase commit protocol over tid's staged
// operations, in insertion order. On any failure it aborts, rolling
// back previously committed operations in reverse order.
func (m *Manager) Commit(ctx context.Context, tid uuid.UUID) error {
	tx, err := m.requireActive(tid, "commit")
	if err != nil {
		return err
	}

	m.setState(tid, StatePartiallyCommitted)

	for _, so := range tx.operations {
		if err := m.tryAcquireLocked(so.resourceID, tid, so.mode); err != nil {
			m.abort(ctx, tid, tx)
			return err
		}
		if err := so.op.Stage(); err != nil {
			m.abort(ctx, tid, tx)
			return err
		}
		if err := so.op.DoCommit(ctx); err != nil {
			m.abort(ctx, tid, tx)
			return err
		}
		so.committed = true
	}

	m.setState(tid, StateCommitted)
	m.releaseLocked(tid)
	return nil
}

// Rollback aborts tid directly. Only meaningful while ACTIVE, since no
// operation has committed yet at that point; any operations staged
// are simply discarded.
func (m *Manager) Rollback(ctx context.Context, tid uuid.UUID) error {
	tx, err := m.requireActive(tid, "rollback")
	if err != nil {
		return err
	}
	m.abort(ctx, tid, tx)
	return nil
}

// abort runs do_rollback on every operation flagged committed, in
// reverse order, then releases locks and transitions to ABORTED.
func (m *Manager) abort(ctx context.Context, tid uuid.UUID, tx *Transaction) {
	m.setState(tid, StateFailed)
	for i := len(tx.operations) - 1; i >= 0; i-- {
		so := tx.operations[i]
		if !so.committed {
			continue
		}
		_ = so.op.DoRollback(ctx)
	}
	m.releaseLocked(tid)
	m.setState(tid, StateAborted)
}

func (m *Manager) requireActive(tid uuid.UUID, verb string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.active[tid]
	if !ok || tx.State != StateActive {
		return nil, &normerr.TransactionError{TxID: tid.String(), State: string(stateOrUnknown(tx)), Verb: verb}
	}
	return tx, nil
}

func (m *Manager) setState(tid uuid.UUID, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.active[tid]; ok {
		tx.State = state
	}
}

func (m *Manager) tryAcquireLocked(resource string, tid uuid.UUID, mode LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tryAcquire(resource, tid, mode)
}

func (m *Manager) releaseLocked(tid uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseAll(tid)
}

// Get returns the transaction tracked for tid, if any.
func (m *Manager) Get(tid uuid.UUID) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.active[tid]
	return tx, ok
}

// Operations returns tx's staged Operations (without their resource
// ids), in insertion order, for the connection to assemble a
// composite cursor after commit.
func (tx *Transaction) Operations() []Operation {
	out := make([]Operation, len(tx.operations))
	for i, so := range tx.operations {
		out[i] = so.op
	}
	return out
}
