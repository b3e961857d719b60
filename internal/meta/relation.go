package meta

// Cardinality distinguishes to-one from to-many relations.
type Cardinality int

const (
	// ToOne is a single-valued relation (foreign key on the owning side).
	ToOne Cardinality = iota + 1
	// ToMany is a multi-valued relation (collection on the owning side).
	ToMany
)

// String returns the mapping-file spelling of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case ToOne:
		return "one"
	case ToMany:
		return "many"
	default:
		return "unknown"
	}
}

// RelationDescription is immutable per (owning entity, property) metadata
// describing one persistent relation.
//
// MappedBy is set only when the collection is declared as the audited
// inverse of a to-one foreign key - a collection that looks owned in the
// object model but is actually backed by a column on the target entity.
// Such "fake bidirectional" collections get synthetic work units for the
// target side (see the audit package).
//
// Bidirectional is computed at registry build time: true iff at least one
// property on the target entity has a relation pointing back at the owning
// entity. A true bidirectional to-many uses the plain + symmetric audit
// path, never the fake path.
type RelationDescription struct {
	FromEntityName   string
	FromPropertyName string
	ToEntityName     string
	MappedBy         string
	Bidirectional    bool
	Cardinality      Cardinality
}

// IsFakeBidirectional reports whether this relation must be audited through
// the synthetic relation-change path.
func (rd *RelationDescription) IsFakeBidirectional() bool {
	return rd.MappedBy != ""
}
