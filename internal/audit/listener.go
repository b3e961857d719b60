package audit

import (
	"strings"

	"github.com/revlog/revlog/internal/meta"
)

// SessionState is the narrow view of the owning session the listener needs:
// transaction liveness and runtime type resolution for live objects.
//
// Runtime types can differ from a relation's statically declared target
// when the real object is a subtype; the listener never inspects object
// internals itself.
type SessionState interface {
	// TransactionActive reports whether a transaction is in progress.
	TransactionActive() bool
	// BestGuessEntityName resolves the runtime entity type name of a live
	// object reference.
	BestGuessEntityName(obj any) (string, error)
}

// CollectionEvent is one collection mutation raised by the session engine.
type CollectionEvent struct {
	// Role is the declared collection role, e.g. "Order.items".
	Role string
	// DeclaredOwnerName is the entity type that declares the collection;
	// may be a supertype of OwnerEntityName.
	DeclaredOwnerName string
	// OwnerEntityName is the runtime type of the affected owner.
	OwnerEntityName string
	// OwnerID is the affected owner's identity, empty when unresolved.
	OwnerID string
	// Owner is the affected owner object, may be nil.
	Owner any
	// OldSnapshot is the pre-mutation collection state in order.
	OldSnapshot []Element
	// NewSnapshot is the post-mutation collection state in order.
	NewSnapshot []Element
}

// CollectionListener decides, for every collection mutation event, whether
// a revision is needed and which work units to enqueue.
//
// Per event the listener is a small state machine: SKIP (no revision
// needed), PLAIN (ordinary or non-relation collection), or
// FAKE_BIDIRECTIONAL (collection that is really the inverse side of a
// to-one relation). The fake and plain paths are mutually exclusive.
type CollectionListener struct {
	registry *meta.Registry
	opts     Options
}

// NewCollectionListener creates a listener over the given mapping metadata.
func NewCollectionListener(registry *meta.Registry, opts Options) *CollectionListener {
	return &CollectionListener{registry: registry, opts: opts}
}

// OnCollectionChange handles one mutation event, appending the resulting
// work units to proc.
//
// The absence of an active transaction is a fatal precondition failure.
// The absence of a relation description is a valid, expected case (plain
// value collection) and never an error.
func (l *CollectionListener) OnCollectionChange(sess SessionState, proc *Process, ev CollectionEvent) error {
	if !l.shouldGenerateRevision(ev) {
		return nil
	}

	if !sess.TransactionActive() {
		return NewNoActiveTransactionError(ev.OwnerEntityName, ev.Role)
	}

	refProperty, err := l.referencingProperty(ev)
	if err != nil {
		return err
	}

	rd := l.registry.LookupRelation(ev.OwnerEntityName, refProperty)
	if rd != nil && rd.IsFakeBidirectional() {
		return l.fakeBidirectionalUnits(sess, proc, ev, refProperty, rd)
	}
	return l.plainUnits(sess, proc, ev, refProperty, rd)
}

// shouldGenerateRevision holds iff collection changes trigger revisions in
// configuration AND the owning entity type is under audit versioning.
func (l *CollectionListener) shouldGenerateRevision(ev CollectionEvent) bool {
	return l.opts.RevisionOnCollectionChange && l.registry.IsVersioned(ev.OwnerEntityName)
}

// referencingProperty derives the collection property name from the role
// string by stripping the declaring entity prefix and separator.
func (l *CollectionListener) referencingProperty(ev CollectionEvent) (string, error) {
	prefix := ev.DeclaredOwnerName + "."
	if !strings.HasPrefix(ev.Role, prefix) || len(ev.Role) == len(prefix) {
		return "", NewUnsupportedMappingError(ev.DeclaredOwnerName, ev.Role,
			"collection role does not match its declaring entity")
	}
	return ev.Role[len(prefix):], nil
}

// plainUnits handles ordinary one-directional or non-relation collections:
// one PersistentCollectionChangeUnit, plus - when it contains work - the
// owner CollectionChangeUnit and, for true bidirectional relations, one
// symmetric CollectionChangeUnit per changed element on the target side.
func (l *CollectionListener) plainUnits(
	sess SessionState,
	proc *Process,
	ev CollectionEvent,
	refProperty string,
	rd *meta.RelationDescription,
) error {
	identity, err := l.elementIdentity(ev, refProperty, rd)
	if err != nil {
		return err
	}

	changes, err := mapCollectionChanges(l.opts, identity, ev.OldSnapshot, ev.NewSnapshot)
	if err != nil {
		return err
	}

	unit := NewPersistentCollectionChangeUnit(ev.OwnerEntityName, refProperty, ev.OwnerID, changes)
	proc.Add(unit)

	if !unit.ContainsWork() {
		// No-op mutation: no owner unit, no audit noise.
		return nil
	}

	// There are some changes: a revision is also generated for the
	// collection owner.
	proc.Add(NewCollectionChangeUnit(ev.OwnerEntityName, refProperty, ev.OwnerID, ev.Owner))

	return l.symmetricUnits(sess, proc, ev, unit, rd)
}

// symmetricUnits generates the target-side owner-change units for a true
// bidirectional relation. rd may be nil for collections of plain values.
func (l *CollectionListener) symmetricUnits(
	sess SessionState,
	proc *Process,
	ev CollectionEvent,
	unit *PersistentCollectionChangeUnit,
	rd *meta.RelationDescription,
) error {
	if !l.opts.RevisionOnCollectionChange {
		return nil
	}
	if rd == nil || !rd.Bidirectional {
		return nil
	}

	relatedBinding, ok := l.registry.Binding(rd.ToEntityName)
	if !ok {
		return NewUnsupportedMappingError(ev.OwnerEntityName, rd.FromPropertyName,
			"relation target entity is not bound")
	}

	toProperties := l.registry.ToPropertyNames(ev.OwnerEntityName, rd.FromPropertyName, rd.ToEntityName)
	if len(toProperties) == 0 {
		return NewUnsupportedMappingError(ev.OwnerEntityName, rd.FromPropertyName,
			"bidirectional relation has no inverse property")
	}
	// Candidates are pre-sorted; taking the first keeps the tie-break
	// stable across runs.
	toProperty := toProperties[0]

	for _, ch := range unit.Changes() {
		relatedID, err := relatedBinding.IDMapper.MapToID(ch.Element.Object)
		if err != nil {
			return NewMisuseError("resolve related entity id for %s.%s: %v", rd.ToEntityName, toProperty, err)
		}
		realName, err := sess.BestGuessEntityName(ch.Element.Object)
		if err != nil {
			return err
		}
		proc.Add(NewCollectionChangeUnit(realName, toProperty, relatedID, ch.Element.Object))
	}
	return nil
}

// fakeBidirectionalUnits handles collections that are really the inverse
// side of a to-one relation: per changed element, a nested
// CollectionChangeUnit targeting the related side wrapped in a
// FakeBidirectionalRelationUnit, then one owner CollectionChangeUnit.
func (l *CollectionListener) fakeBidirectionalUnits(
	sess SessionState,
	proc *Process,
	ev CollectionEvent,
	refProperty string,
	rd *meta.RelationDescription,
) error {
	relatedBinding, ok := l.registry.Binding(rd.ToEntityName)
	if !ok {
		return NewUnsupportedMappingError(ev.OwnerEntityName, refProperty,
			"relation target entity is not bound")
	}

	identity := entityIdentity(relatedBinding)
	changes, err := mapCollectionChanges(l.opts, identity, ev.OldSnapshot, ev.NewSnapshot)
	if err != nil {
		return err
	}

	for _, ch := range changes {
		relatedID, err := relatedBinding.IDMapper.MapToID(ch.Element.Object)
		if err != nil {
			return NewMisuseError("resolve related entity id for %s.%s: %v", rd.ToEntityName, rd.MappedBy, err)
		}

		// The real entity may be a subtype of the declared relation target.
		realName, err := sess.BestGuessEntityName(ch.Element.Object)
		if err != nil {
			return err
		}

		nested := NewCollectionChangeUnit(realName, rd.MappedBy, relatedID, ch.Element.Object)
		proc.Add(NewFakeBidirectionalRelationUnit(
			realName, relatedID, refProperty, ev.OwnerID,
			ev.Owner, rd, ch.Type, ch.Index, nested,
		))
	}

	// The owning entity always gets a change record too.
	proc.Add(NewCollectionChangeUnit(ev.OwnerEntityName, refProperty, ev.OwnerID, ev.Owner))
	return nil
}

// elementIdentity picks the identity function for a collection: target
// entity IDMapper for relation collections, content hash for value
// collections.
func (l *CollectionListener) elementIdentity(ev CollectionEvent, refProperty string, rd *meta.RelationDescription) (identityFunc, error) {
	if rd == nil {
		return valueIdentity, nil
	}
	binding, ok := l.registry.Binding(rd.ToEntityName)
	if !ok {
		return nil, NewUnsupportedMappingError(ev.OwnerEntityName, refProperty,
			"relation target entity is not bound")
	}
	return entityIdentity(binding), nil
}

// entityIdentity keys elements by the target binding's IDMapper, falling
// back to content identity for elements without a live object.
func entityIdentity(binding *meta.EntityBinding) identityFunc {
	return func(el Element) (string, error) {
		if el.Object == nil {
			return valueIdentity(el)
		}
		return binding.IDMapper.MapToID(el.Object)
	}
}
