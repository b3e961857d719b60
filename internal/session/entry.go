package session

import (
	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
	"github.com/revlog/revlog/internal/state"
)

// ExtraStateKey identifies an extra-state capability attached to an entry.
// Capabilities are opaque to the session core; features register their own
// keys and values.
type ExtraStateKey string

// EntityEntry tracks everything the session knows about one managed
// entity: status, loaded/deleted state snapshots, version, lock mode,
// database existence, and extensible capability slots.
//
// Snapshots are ordered sequences of property values following the
// binding's property order. Entries are created when an entity becomes
// managed, mutated on every flush-relevant state change, and destroyed
// when the session ends or the entity is evicted.
type EntityEntry struct {
	binding *meta.EntityBinding
	id      string

	status           Status
	lockMode         LockMode
	loadedState      []state.Value
	deletedState     []state.Value
	version          state.Value
	existsInDatabase bool

	// extra holds capability state keyed by capability key. A typed
	// registry with O(1) access replaces per-feature entry subclassing.
	extra map[ExtraStateKey]any
}

// newEntityEntry creates an entry for an entity becoming managed.
func newEntityEntry(binding *meta.EntityBinding, id string, status Status, loadedState []state.Value, version state.Value, existsInDatabase bool) *EntityEntry {
	return &EntityEntry{
		binding:          binding,
		id:               id,
		status:           status,
		lockMode:         LockNone,
		loadedState:      loadedState,
		version:          version,
		existsInDatabase: existsInDatabase,
	}
}

// EntityName returns the entity type name.
func (e *EntityEntry) EntityName() string { return e.binding.Name }

// ID returns the entity identity.
func (e *EntityEntry) ID() string { return e.id }

// Status returns the current lifecycle status.
func (e *EntityEntry) Status() Status { return e.status }

// SetStatus transitions the entry's lifecycle status.
func (e *EntityEntry) SetStatus(s Status) { e.status = s }

// LockMode returns the current lock mode.
func (e *EntityEntry) LockMode() LockMode { return e.lockMode }

// SetLockMode updates the lock mode.
func (e *EntityEntry) SetLockMode(m LockMode) { e.lockMode = m }

// LoadedState returns the loaded snapshot, nil when state was never loaded.
func (e *EntityEntry) LoadedState() []state.Value { return e.loadedState }

// DeletedState returns the snapshot captured at deletion scheduling.
func (e *EntityEntry) DeletedState() []state.Value { return e.deletedState }

// SetDeletedState captures the snapshot for a scheduled deletion.
func (e *EntityEntry) SetDeletedState(s []state.Value) { e.deletedState = s }

// Version returns the current version value, nil for unversioned entities.
func (e *EntityEntry) Version() state.Value { return e.version }

// ExistsInDatabase reports whether a database row backs this entity.
func (e *EntityEntry) ExistsInDatabase() bool { return e.existsInDatabase }

// LoadedValue returns the loaded snapshot value of the named property, or
// nil when the property is unknown or state was never loaded.
func (e *EntityEntry) LoadedValue(property string) state.Value {
	idx := e.binding.PropertyIndex(property)
	if idx < 0 || e.loadedState == nil || idx >= len(e.loadedState) {
		return nil
	}
	return e.loadedState[idx]
}

// PostInsert records a completed initial insert: the entity now exists in
// the database with the inserted state as its loaded snapshot.
func (e *EntityEntry) PostInsert(insertedState []state.Value) {
	e.loadedState = insertedState
	e.status = StatusManaged
	e.existsInDatabase = true
}

// PostUpdate records a completed update, replacing the loaded snapshot and
// advancing the version.
func (e *EntityEntry) PostUpdate(updatedState []state.Value, nextVersion state.Value) {
	e.loadedState = updatedState
	if nextVersion != nil {
		e.version = nextVersion
	}
	if e.status == StatusReadOnly {
		// An update flushed for a read-only entry means the caller made it
		// modifiable again beforehand; normalize.
		e.status = StatusManaged
	}
}

// PostDelete records a flushed deletion.
func (e *EntityEntry) PostDelete() {
	e.status = StatusGone
	e.existsInDatabase = false
}

// ForceLocked applies a forced version increment lock.
func (e *EntityEntry) ForceLocked(nextVersion state.Value) {
	e.version = nextVersion
	e.lockMode = LockForceIncrement
}

// IsModifiable reports whether flush may write this entity.
func (e *EntityEntry) IsModifiable() bool {
	return e.status != StatusReadOnly
}

// RequiresDirtyCheck reports whether flush must dirty-check this entity.
// Read-only entries are never dirty-checked.
func (e *EntityEntry) RequiresDirtyCheck() bool {
	return e.IsModifiable()
}

// IsNullifiable reports whether outgoing references to this entity must be
// nulled out during an insert cycle: the entity is mid-save, or an early
// insert is pending and no row exists yet.
func (e *EntityEntry) IsNullifiable(earlyInsert bool) bool {
	if e.status == StatusSaving {
		return true
	}
	return earlyInsert && !e.existsInDatabase
}

// SetReadOnly toggles dirty tracking for the entry. Only valid for
// managed or already read-only entries; anything else is a misuse.
func (e *EntityEntry) SetReadOnly(readOnly bool) error {
	if e.status != StatusManaged && e.status != StatusReadOnly {
		return audit.NewMisuseError("cannot set read-only on %s entity %s#%s", e.status, e.EntityName(), e.id)
	}
	if readOnly {
		e.status = StatusReadOnly
	} else {
		e.status = StatusManaged
	}
	return nil
}

// AddExtraState attaches capability state to the entry. Registering the
// same key twice is a misuse.
func (e *EntityEntry) AddExtraState(key ExtraStateKey, value any) error {
	if e.extra == nil {
		e.extra = make(map[ExtraStateKey]any)
	}
	if _, dup := e.extra[key]; dup {
		return audit.NewMisuseError("extra state %q already registered on %s#%s", key, e.EntityName(), e.id)
	}
	e.extra[key] = value
	return nil
}

// ExtraState retrieves capability state by key.
func (e *EntityEntry) ExtraState(key ExtraStateKey) (any, bool) {
	v, ok := e.extra[key]
	return v, ok
}
