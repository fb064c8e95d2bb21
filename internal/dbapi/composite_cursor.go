package dbapi

import (
	"math/big"

	"normlite/internal/normerr"
)

// ResultCursor is the read surface CompositeCursor forwards to its
// current child: the base Cursor of a committed TransactionCursor
// (TransactionCursor.Base), shared with that TransactionCursor.
type ResultCursor interface {
	Description() []ColumnDescriptor
	RowCount() int64
	LastRowID() *big.Int
	FetchOne() (*Row, error)
	FetchAll() ([]*Row, error)
}

// CompositeCursor holds one child result cursor per committed
// operation that produced a result set, in commit order. NextSet is
// the only legal way to advance.
type CompositeCursor struct {
	children []ResultCursor
	idx      int
}

// NewCompositeCursor builds a composite cursor over children, already
// positioned at the first child (if any).
func NewCompositeCursor(children []ResultCursor) *CompositeCursor {
	return &CompositeCursor{children: children, idx: 0}
}

// NextSet advances to the next child result set. Returns false when no
// more sets remain.
func (cc *CompositeCursor) NextSet() bool {
	if cc.idx >= len(cc.children) {
		return false
	}
	cc.idx++
	return cc.idx < len(cc.children)
}

func (cc *CompositeCursor) current() (ResultCursor, error) {
	if cc.idx < 0 || cc.idx >= len(cc.children) {
		return nil, &normerr.InterfaceError{Reason: "composite cursor: no current result set"}
	}
	return cc.children[cc.idx], nil
}

// Description forwards to the current child.
func (cc *CompositeCursor) Description() ([]ColumnDescriptor, error) {
	c, err := cc.current()
	if err != nil {
		return nil, err
	}
	return c.Description(), nil
}

// RowCount forwards to the current child.
func (cc *CompositeCursor) RowCount() (int64, error) {
	c, err := cc.current()
	if err != nil {
		return 0, err
	}
	return c.RowCount(), nil
}

// LastRowID forwards to the current child.
func (cc *CompositeCursor) LastRowID() (*big.Int, error) {
	c, err := cc.current()
	if err != nil {
		return nil, err
	}
	return c.LastRowID(), nil
}

// FetchOne forwards to the current child.
func (cc *CompositeCursor) FetchOne() (*Row, error) {
	c, err := cc.current()
	if err != nil {
		return nil, err
	}
	return c.FetchOne()
}

// FetchAll forwards to the current child.
func (cc *CompositeCursor) FetchAll() ([]*Row, error) {
	c, err := cc.current()
	if err != nil {
		return nil, err
	}
	return c.FetchAll()
}
