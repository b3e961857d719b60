package session

import (
	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
	"github.com/revlog/revlog/internal/state"
)

// EntityKey identifies a managed entity within a session.
type EntityKey struct {
	EntityName string
	ID         string
}

// CollectionEntry is the per-session tracking record for one persistent
// collection instance: its declared role and its owner.
type CollectionEntry struct {
	// Role is the declared collection role, e.g. "Order.items".
	Role string
	// DeclaredOwnerName is the entity type declaring the collection; may
	// be a supertype of the runtime owner.
	DeclaredOwnerName string
	// OwnerID is the owning entity's identity.
	OwnerID string
}

type collectionKey struct {
	role    string
	ownerID string
}

// PersistenceContext is the session-scoped store of entity entries and
// collection entries. Exclusively owned by one session; no locking.
type PersistenceContext struct {
	registry    *meta.Registry
	entries     map[EntityKey]*EntityEntry
	collections map[collectionKey]*CollectionEntry
}

// newPersistenceContext creates an empty context over the registry.
func newPersistenceContext(registry *meta.Registry) *PersistenceContext {
	return &PersistenceContext{
		registry:    registry,
		entries:     make(map[EntityKey]*EntityEntry),
		collections: make(map[collectionKey]*CollectionEntry),
	}
}

// AddEntity registers an entity becoming managed and returns its entry.
// Unknown entity types are an unsupported mapping.
func (pc *PersistenceContext) AddEntity(entityName, id string, status Status, loadedState []state.Value, version state.Value, existsInDatabase bool) (*EntityEntry, error) {
	binding, ok := pc.registry.Binding(entityName)
	if !ok {
		return nil, audit.NewUnsupportedMappingError(entityName, "", "entity type is not bound")
	}

	entry := newEntityEntry(binding, id, status, loadedState, version, existsInDatabase)
	pc.entries[EntityKey{EntityName: entityName, ID: id}] = entry
	return entry, nil
}

// Entry returns the entry for the given key, nil when not managed.
func (pc *PersistenceContext) Entry(key EntityKey) *EntityEntry {
	return pc.entries[key]
}

// EvictEntity removes an entity (and its collections) from the context.
func (pc *PersistenceContext) EvictEntity(key EntityKey) {
	delete(pc.entries, key)
	for ck := range pc.collections {
		if ck.ownerID == key.ID {
			entity, _, err := meta.SplitRole(ck.role)
			if err == nil && entity == key.EntityName {
				delete(pc.collections, ck)
			}
		}
	}
}

// AddCollection registers tracking metadata for a collection instance.
// The role's declaring entity must be bound.
func (pc *PersistenceContext) AddCollection(role, ownerID string) (*CollectionEntry, error) {
	declaring, _, err := meta.SplitRole(role)
	if err != nil {
		return nil, audit.NewUnsupportedMappingError("", role, err.Error())
	}
	if _, ok := pc.registry.Binding(declaring); !ok {
		return nil, audit.NewUnsupportedMappingError(declaring, role, "collection role declared by unbound entity")
	}

	entry := &CollectionEntry{
		Role:              role,
		DeclaredOwnerName: declaring,
		OwnerID:           ownerID,
	}
	pc.collections[collectionKey{role: role, ownerID: ownerID}] = entry
	return entry, nil
}

// CollectionEntryFor returns the tracking record for (role, ownerID), nil
// when untracked.
func (pc *PersistenceContext) CollectionEntryFor(role, ownerID string) *CollectionEntry {
	return pc.collections[collectionKey{role: role, ownerID: ownerID}]
}

// EntityCount returns the number of managed entities.
func (pc *PersistenceContext) EntityCount() int {
	return len(pc.entries)
}

// Clear drops all tracked state. Called when the session closes.
func (pc *PersistenceContext) Clear() {
	pc.entries = make(map[EntityKey]*EntityEntry)
	pc.collections = make(map[collectionKey]*CollectionEntry)
}
