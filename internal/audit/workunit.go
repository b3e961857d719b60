package audit

import (
	"github.com/revlog/revlog/internal/meta"
	"github.com/revlog/revlog/internal/state"
)

// Kind is the explicit discriminant over the closed work-unit variant set.
// Flushing switches exhaustively over Kind instead of relying on dynamic
// dispatch.
type Kind int

const (
	// KindCollectionChange signals that an owner entity's state changed due
	// to a collection mutation; it carries no collection deltas itself.
	KindCollectionChange Kind = iota + 1
	// KindPersistentCollectionChange carries the raw add/remove/update
	// deltas for one collection.
	KindPersistentCollectionChange
	// KindFakeBidirectional synthesizes a change record for the other side
	// of a one-directionally-mapped but logically bidirectional relation,
	// wrapping a nested unit.
	KindFakeBidirectional
)

// String returns the trace spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindCollectionChange:
		return "collection_change"
	case KindPersistentCollectionChange:
		return "persistent_collection_change"
	case KindFakeBidirectional:
		return "fake_bidirectional"
	default:
		return "unknown"
	}
}

// WorkUnit is a sealed interface over the closed set of mutation-intent
// records. Only CollectionChangeUnit, PersistentCollectionChangeUnit, and
// FakeBidirectionalRelationUnit implement it.
//
// Units capture WHAT must be written to history independent of WHEN it is
// written. They are created during event handling, owned exclusively by
// the Process queue until flush, and never mutated after enqueue except to
// coalesce.
type WorkUnit interface {
	workUnit() // Sealed - only the three variants implement it

	Kind() Kind
	// EntityName is the target entity type name (runtime type for units
	// targeting related entities).
	EntityName() string
	// EntityID is the target entity identity.
	EntityID() string
	// RevisionType is the unit-level revision classification.
	RevisionType() RevisionType
	// ContainsWork reports whether the unit carries any actual change;
	// empty units are short-circuited and never produce audit rows.
	ContainsWork() bool
	// Seq is the logical-clock stamp assigned at enqueue.
	Seq() int64
}

// CollectionChangeUnit records that an entity's state changed because one
// of its collection properties (or the inverse side of a relation) was
// mutated.
type CollectionChangeUnit struct {
	entityName string
	entityID   string
	property   string
	obj        any
	seq        int64
}

// NewCollectionChangeUnit creates a unit targeting (entityName, entityID)
// for the given changed property. obj is the live entity object, retained
// for late identity resolution.
func NewCollectionChangeUnit(entityName, property, entityID string, obj any) *CollectionChangeUnit {
	return &CollectionChangeUnit{
		entityName: entityName,
		entityID:   entityID,
		property:   property,
		obj:        obj,
	}
}

func (u *CollectionChangeUnit) workUnit() {}

// Kind implements WorkUnit.
func (u *CollectionChangeUnit) Kind() Kind { return KindCollectionChange }

// EntityName implements WorkUnit.
func (u *CollectionChangeUnit) EntityName() string { return u.entityName }

// EntityID implements WorkUnit.
func (u *CollectionChangeUnit) EntityID() string { return u.entityID }

// Property returns the changed property name.
func (u *CollectionChangeUnit) Property() string { return u.property }

// Object returns the live entity object, may be nil.
func (u *CollectionChangeUnit) Object() any { return u.obj }

// RevisionType implements WorkUnit; a collection-driven owner change is
// always a modification.
func (u *CollectionChangeUnit) RevisionType() RevisionType { return RevisionMod }

// ContainsWork implements WorkUnit.
func (u *CollectionChangeUnit) ContainsWork() bool { return true }

// Seq implements WorkUnit.
func (u *CollectionChangeUnit) Seq() int64 { return u.seq }

// PersistentCollectionChangeUnit captures the raw per-element deltas of one
// collection mutation.
type PersistentCollectionChangeUnit struct {
	entityName string
	ownerID    string
	property   string
	changes    []ElementChange
	seq        int64
}

// NewPersistentCollectionChangeUnit creates a unit carrying the computed
// element deltas for (entityName, ownerID)'s collection property.
func NewPersistentCollectionChangeUnit(entityName, property, ownerID string, changes []ElementChange) *PersistentCollectionChangeUnit {
	return &PersistentCollectionChangeUnit{
		entityName: entityName,
		ownerID:    ownerID,
		property:   property,
		changes:    changes,
	}
}

func (u *PersistentCollectionChangeUnit) workUnit() {}

// Kind implements WorkUnit.
func (u *PersistentCollectionChangeUnit) Kind() Kind { return KindPersistentCollectionChange }

// EntityName implements WorkUnit.
func (u *PersistentCollectionChangeUnit) EntityName() string { return u.entityName }

// EntityID implements WorkUnit.
func (u *PersistentCollectionChangeUnit) EntityID() string { return u.ownerID }

// Property returns the collection property name.
func (u *PersistentCollectionChangeUnit) Property() string { return u.property }

// Changes returns the element deltas in deterministic order.
func (u *PersistentCollectionChangeUnit) Changes() []ElementChange { return u.changes }

// RevisionType implements WorkUnit; element-level types live on the
// individual changes.
func (u *PersistentCollectionChangeUnit) RevisionType() RevisionType { return RevisionMod }

// ContainsWork implements WorkUnit: true iff any element delta exists.
func (u *PersistentCollectionChangeUnit) ContainsWork() bool { return len(u.changes) > 0 }

// Seq implements WorkUnit.
func (u *PersistentCollectionChangeUnit) Seq() int64 { return u.seq }

// FakeBidirectionalRelationUnit synthesizes the change record for the
// target side of a relation that is mapped one-directionally but is
// logically bidirectional. It wraps the nested unit generated for the
// related entity and carries the element's revision type and position so
// ordered-collection semantics can be reconstructed.
type FakeBidirectionalRelationUnit struct {
	entityName  string // runtime type of the related entity
	entityID    string
	refProperty string // collection property on the owning side
	ownerID     string
	owner       any
	relation    *meta.RelationDescription
	revType     RevisionType
	index       int
	nested      *CollectionChangeUnit
	seq         int64
}

// NewFakeBidirectionalRelationUnit creates a synthetic relation-change unit
// for one changed element of a fake-bidirectional collection.
func NewFakeBidirectionalRelationUnit(
	entityName, entityID, refProperty, ownerID string,
	owner any,
	relation *meta.RelationDescription,
	revType RevisionType,
	index int,
	nested *CollectionChangeUnit,
) *FakeBidirectionalRelationUnit {
	return &FakeBidirectionalRelationUnit{
		entityName:  entityName,
		entityID:    entityID,
		refProperty: refProperty,
		ownerID:     ownerID,
		owner:       owner,
		relation:    relation,
		revType:     revType,
		index:       index,
		nested:      nested,
	}
}

func (u *FakeBidirectionalRelationUnit) workUnit() {}

// Kind implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) Kind() Kind { return KindFakeBidirectional }

// EntityName implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) EntityName() string { return u.entityName }

// EntityID implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) EntityID() string { return u.entityID }

// ReferencingProperty returns the collection property on the owning side.
func (u *FakeBidirectionalRelationUnit) ReferencingProperty() string { return u.refProperty }

// OwnerID returns the collection owner's identity.
func (u *FakeBidirectionalRelationUnit) OwnerID() string { return u.ownerID }

// Relation returns the relation description that triggered the synthetic
// unit.
func (u *FakeBidirectionalRelationUnit) Relation() *meta.RelationDescription { return u.relation }

// Index returns the element's position within the ordered collection.
func (u *FakeBidirectionalRelationUnit) Index() int { return u.index }

// Nested returns the wrapped unit targeting the related entity.
func (u *FakeBidirectionalRelationUnit) Nested() *CollectionChangeUnit { return u.nested }

// RevisionType implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) RevisionType() RevisionType { return u.revType }

// ContainsWork implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) ContainsWork() bool { return u.nested != nil }

// Seq implements WorkUnit.
func (u *FakeBidirectionalRelationUnit) Seq() int64 { return u.seq }

// TraceObject serializes a work unit for golden traces and diagnostics.
// Exhaustive over the closed variant set.
func TraceObject(u WorkUnit) state.Object {
	obj := state.Object{
		"kind":     state.String(u.Kind().String()),
		"entity":   state.String(u.EntityName()),
		"id":       state.String(u.EntityID()),
		"rev_type": state.String(u.RevisionType().String()),
		"seq":      state.Int(u.Seq()),
	}

	switch unit := u.(type) {
	case *CollectionChangeUnit:
		obj["property"] = state.String(unit.Property())
	case *PersistentCollectionChangeUnit:
		obj["property"] = state.String(unit.Property())
		changes := make(state.Array, len(unit.Changes()))
		for i, ch := range unit.Changes() {
			changes[i] = ch.Data
		}
		obj["changes"] = changes
	case *FakeBidirectionalRelationUnit:
		obj["property"] = state.String(unit.Relation().MappedBy)
		obj["referencing_property"] = state.String(unit.ReferencingProperty())
		obj["index"] = state.Int(int64(unit.Index()))
		obj["owner_id"] = state.String(unit.OwnerID())
		obj["nested"] = TraceObject(unit.Nested())
	}

	return obj
}
