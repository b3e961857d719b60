package meta

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// IDMapper resolves the identity of a live entity object.
// Injected per entity binding; the core never inspects object internals.
type IDMapper interface {
	// MapToID returns the stable identifier string for the given object.
	MapToID(obj any) (string, error)
}

// IDMapperFunc adapts a function to the IDMapper interface.
type IDMapperFunc func(obj any) (string, error)

// MapToID implements IDMapper.
func (f IDMapperFunc) MapToID(obj any) (string, error) {
	return f(obj)
}

// PropertyType classifies a persistent property's value shape.
type PropertyType string

const (
	PropertyString    PropertyType = "string"
	PropertyInt       PropertyType = "int"
	PropertyBool      PropertyType = "bool"
	PropertyTime      PropertyType = "time"
	PropertyComposite PropertyType = "composite"
)

// TemporalPrecision narrows a time-typed property to one component.
type TemporalPrecision string

const (
	PrecisionDate TemporalPrecision = "date"
	PrecisionTime TemporalPrecision = "time"
)

// PropertyMeta holds declared type metadata for one persistent property.
// Precision is set only for time-typed properties.
type PropertyMeta struct {
	Type      PropertyType
	Precision TemporalPrecision
}

// EntityBinding is the per-entity-type mapping metadata consumed by the
// session and audit layers. Immutable after registry build.
type EntityBinding struct {
	// Name is the entity type name, e.g. "Order".
	Name string

	// ParentName is the supertype entity name, or "" for root types.
	ParentName string

	// Versioned reports whether the entity is under audit versioning.
	// Only versioned entities ever produce work units.
	Versioned bool

	// IDProperty names the identifier property.
	IDProperty string

	// Properties is the ordered persistent property list; loaded state
	// snapshots in session entries follow this order.
	Properties []string

	// Relations maps owning-side property name to its description.
	Relations map[string]*RelationDescription

	// PropertyMeta maps property name to declared type metadata.
	// Properties without a declaration are absent; nil when the mapping
	// declares none.
	PropertyMeta map[string]PropertyMeta

	// Table is the primary table name. Defaults to the plural snake-case
	// form of the entity name when the mapping omits it.
	Table string

	// IDMapper resolves identities of live objects of this type.
	IDMapper IDMapper
}

// AuditTable returns the audit table name for the binding given the
// configured suffix.
func (b *EntityBinding) AuditTable(suffix string) string {
	return b.Table + suffix
}

// HasProperty reports whether the binding declares the named persistent
// property (directly, not through a supertype).
func (b *EntityBinding) HasProperty(name string) bool {
	for _, p := range b.Properties {
		if p == name {
			return true
		}
	}
	_, ok := b.Relations[name]
	return ok
}

// PropertyIndex returns the state-array position of the named property,
// or -1 when the binding does not declare it.
func (b *EntityBinding) PropertyIndex(name string) int {
	for i, p := range b.Properties {
		if p == name {
			return i
		}
	}
	return -1
}

// DefaultTableName derives a table name from an entity type name:
// plural snake case, e.g. "OrderItem" -> "order_items".
func DefaultTableName(entityName string) string {
	return inflection.Plural(toSnakeCase(entityName))
}

// CollectionRole builds the canonical role string for a collection
// property, e.g. Role("Order", "items") == "Order.items".
func CollectionRole(entityName, propertyName string) string {
	return entityName + "." + propertyName
}

// SplitRole splits a collection role into the declaring entity name and
// property name. Returns an error for malformed roles.
func SplitRole(role string) (entityName, propertyName string, err error) {
	idx := strings.LastIndex(role, ".")
	if idx <= 0 || idx == len(role)-1 {
		return "", "", fmt.Errorf("malformed collection role %q", role)
	}
	return role[:idx], role[idx+1:], nil
}

// toSnakeCase converts CamelCase to snake_case.
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
