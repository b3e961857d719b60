package meta

import (
	"fmt"
	"sort"
)

// Registry is the immutable snapshot of mapping metadata shared by all
// sessions. Built once by a Builder; read-only afterwards, so concurrent
// readers need no locking.
type Registry struct {
	bindings map[string]*EntityBinding
	// chains holds the precomputed linear supertype list per entity,
	// child first, self included. Replaces recursive parent walks.
	chains map[string][]string
	// inverse holds sorted inverse property candidates keyed by
	// (fromEntity, fromProperty, toEntity).
	inverse map[inverseKey][]string
}

type inverseKey struct {
	fromEntity   string
	fromProperty string
	toEntity     string
}

// Binding returns the binding for the named entity type.
func (r *Registry) Binding(entityName string) (*EntityBinding, bool) {
	b, ok := r.bindings[entityName]
	return b, ok
}

// IsVersioned reports whether the named entity type is under audit
// versioning. Unknown entities are not versioned.
func (r *Registry) IsVersioned(entityName string) bool {
	b, ok := r.bindings[entityName]
	return ok && b.Versioned
}

// SupertypeChain returns the precomputed supertype chain for the entity,
// child first, self included. Nil for unknown entities.
func (r *Registry) SupertypeChain(entityName string) []string {
	return r.chains[entityName]
}

// LookupRelation resolves the relation description for (entityName,
// propertyName), walking the entity's supertype chain child-first until
// found or exhausted. Returns nil when no description exists - a plain
// value collection, which is an expected case and never an error.
//
// Deterministic and side-effect-free.
func (r *Registry) LookupRelation(entityName, propertyName string) *RelationDescription {
	for _, name := range r.chains[entityName] {
		b := r.bindings[name]
		if rd, ok := b.Relations[propertyName]; ok {
			return rd
		}
	}
	return nil
}

// ToPropertyNames returns the property names on toEntity whose relations
// point back at (fromEntity, fromProperty)'s declaring side. The slice is
// sorted lexicographically at build time; symmetric work-unit generation
// always selects the first element, keeping the tie-break stable across
// runs.
func (r *Registry) ToPropertyNames(fromEntity, fromProperty, toEntity string) []string {
	return r.inverse[inverseKey{fromEntity, fromProperty, toEntity}]
}

// EntityNames returns all bound entity names in sorted order.
func (r *Registry) EntityNames() []string {
	names := make([]string, 0, len(r.bindings))
	for n := range r.bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builder accumulates entity bindings and produces an immutable Registry.
// The explicit bootstrap pass replaces the original's reflection-driven
// global registry.
type Builder struct {
	bindings []*EntityBinding
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers an entity binding. Relations may reference entities added
// later; resolution happens in Build.
func (bl *Builder) Add(b *EntityBinding) *Builder {
	bl.bindings = append(bl.bindings, b)
	return bl
}

// Build validates the accumulated bindings and produces the registry:
//   - parent references must resolve and be acyclic
//   - relation targets must resolve
//   - mapped_by properties must exist on the target entity
//   - default table names are derived where omitted
//   - supertype chains and inverse property sets are precomputed
//   - Bidirectional flags are derived (true iff an inverse property
//     resolves on the target side)
func (bl *Builder) Build() (*Registry, error) {
	r := &Registry{
		bindings: make(map[string]*EntityBinding, len(bl.bindings)),
		chains:   make(map[string][]string, len(bl.bindings)),
		inverse:  make(map[inverseKey][]string),
	}

	for _, b := range bl.bindings {
		if b.Name == "" {
			return nil, fmt.Errorf("binding with empty entity name")
		}
		if _, dup := r.bindings[b.Name]; dup {
			return nil, fmt.Errorf("duplicate entity binding %q", b.Name)
		}
		if b.Table == "" {
			b.Table = DefaultTableName(b.Name)
		}
		r.bindings[b.Name] = b
	}

	// Precompute supertype chains, detecting unknown parents and cycles.
	for name := range r.bindings {
		chain, err := r.computeChain(name)
		if err != nil {
			return nil, err
		}
		r.chains[name] = chain
	}

	// Resolve relation endpoints.
	for name, b := range r.bindings {
		for prop, rd := range b.Relations {
			rd.FromEntityName = name
			rd.FromPropertyName = prop

			target, ok := r.bindings[rd.ToEntityName]
			if !ok {
				return nil, fmt.Errorf("entity %q relation %q: unknown target entity %q", name, prop, rd.ToEntityName)
			}
			if rd.MappedBy != "" {
				if !r.chainHasProperty(rd.ToEntityName, rd.MappedBy) {
					return nil, fmt.Errorf("entity %q relation %q: mapped_by property %q not found on %q", name, prop, rd.MappedBy, target.Name)
				}
			}
		}
	}

	// Derive bidirectionality and inverse property sets. A relation is
	// bidirectional iff some property on the target's chain points back at
	// the owning entity (or one of its supertypes).
	for name, b := range r.bindings {
		for prop, rd := range b.Relations {
			candidates := r.inversePropertyNames(name, rd.ToEntityName)
			rd.Bidirectional = len(candidates) > 0
			if len(candidates) > 0 {
				r.inverse[inverseKey{name, prop, rd.ToEntityName}] = candidates
			}
		}
	}

	return r, nil
}

// computeChain walks parent links iteratively, child first.
func (r *Registry) computeChain(name string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("entity %q: inheritance cycle through %q", name, cur)
		}
		seen[cur] = true

		b, ok := r.bindings[cur]
		if !ok {
			return nil, fmt.Errorf("entity %q: unknown parent entity %q", name, cur)
		}
		chain = append(chain, cur)
		cur = b.ParentName
	}
	return chain, nil
}

// chainHasProperty reports whether the entity or any supertype declares the
// property (persistent property or relation).
func (r *Registry) chainHasProperty(entityName, property string) bool {
	for cur := entityName; cur != ""; {
		b, ok := r.bindings[cur]
		if !ok {
			return false
		}
		if b.HasProperty(property) {
			return true
		}
		cur = b.ParentName
	}
	return false
}

// inversePropertyNames collects properties on the target's chain whose
// relations point back at fromEntity or one of its supertypes, sorted.
func (r *Registry) inversePropertyNames(fromEntity, toEntity string) []string {
	fromChain := make(map[string]bool)
	for _, n := range r.chains[fromEntity] {
		fromChain[n] = true
	}

	seen := make(map[string]bool)
	var names []string
	for _, tname := range r.chains[toEntity] {
		tb := r.bindings[tname]
		for tprop, trd := range tb.Relations {
			if seen[tprop] {
				continue
			}
			if fromChain[trd.ToEntityName] {
				seen[tprop] = true
				names = append(names, tprop)
			}
		}
	}
	sort.Strings(names)
	return names
}
