package session

import "fmt"

// Status is the lifecycle state of a managed entity within a session.
type Status int

const (
	// StatusManaged is a live entity tracked for dirty checking.
	StatusManaged Status = iota + 1
	// StatusReadOnly is a managed entity excluded from dirty checking.
	StatusReadOnly
	// StatusDeleted is an entity scheduled for deletion at flush.
	StatusDeleted
	// StatusGone is an entity whose deletion has been flushed.
	StatusGone
	// StatusSaving is an entity in the middle of its initial insert.
	StatusSaving
)

// String returns the lowercase spelling of the status.
func (s Status) String() string {
	switch s {
	case StatusManaged:
		return "managed"
	case StatusReadOnly:
		return "read-only"
	case StatusDeleted:
		return "deleted"
	case StatusGone:
		return "gone"
	case StatusSaving:
		return "saving"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// LockMode is the lock level held on a managed entity.
type LockMode int

const (
	// LockNone holds no lock.
	LockNone LockMode = iota
	// LockRead holds a shared read lock.
	LockRead
	// LockWrite holds an exclusive write lock.
	LockWrite
	// LockForceIncrement holds a write lock and forces a version bump.
	LockForceIncrement
)

// String returns the lowercase spelling of the lock mode.
func (m LockMode) String() string {
	switch m {
	case LockNone:
		return "none"
	case LockRead:
		return "read"
	case LockWrite:
		return "write"
	case LockForceIncrement:
		return "force-increment"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}
