package txn

import (
	"github.com/google/uuid"

	"normlite/internal/normerr"
)

// LockMode is a lock's acquisition mode.
type LockMode string

const (
	SharedLock    LockMode = "SHARED"
	ExclusiveLock LockMode = "EXCLUSIVE"
)

type holder struct {
	tid  uuid.UUID
	mode LockMode
}

// tryAcquire attempts to grant tid a mode lock on resource, mutating
// m.locks in place. Callers must hold m.mu. Acquisition never blocks:
// a conflict fails immediately with *normerr.AcquireLockFailed.
func (m *Manager) tryAcquire(resource string, tid uuid.UUID, mode LockMode) error {
	existing := m.locks[resource]

	for _, h := range existing {
		if h.tid == tid && h.mode == mode {
			return nil // re-acquiring the same (tid, mode) is idempotent
		}
	}

	if mode == SharedLock {
		var conflicting []string
		for _, h := range existing {
			if h.mode == ExclusiveLock && h.tid != tid {
				conflicting = append(conflicting, h.tid.String())
			}
		}
		if len(conflicting) > 0 {
			return &normerr.AcquireLockFailed{Resource: resource, Mode: string(mode), ConflictingHolders: conflicting}
		}
		m.locks[resource] = append(existing, holder{tid: tid, mode: mode})
		return nil
	}

	// ExclusiveLock: excludes every other holder. A sole existing
	// SHARED holder with the same tid may upgrade.
	var conflicting []string
	for _, h := range existing {
		if h.tid != tid {
			conflicting = append(conflicting, h.tid.String())
		}
	}
	if len(conflicting) > 0 {
		return &normerr.AcquireLockFailed{Resource: resource, Mode: string(mode), ConflictingHolders: conflicting}
	}

	kept := existing[:0]
	for _, h := range existing {
		if h.tid != tid {
			kept = append(kept, h)
		}
	}
	kept = append(kept, holder{tid: tid, mode: mode})
	m.locks[resource] = kept
	return nil
}

// releaseAll removes every lock entry held by tid, across every
// resource, in one pass. Callers must hold m.mu.
func (m *Manager) releaseAll(tid uuid.UUID) {
	for resource, holders := range m.locks {
		kept := holders[:0]
		for _, h := range holders {
			if h.tid != tid {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(m.locks, resource)
		} else {
			m.locks[resource] = kept
		}
	}
}
