package mapping

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
)

// CompileEntity parses a CUE value into an entity binding.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Order: { ... }`)
//	b, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Order")))
func CompileEntity(v cue.Value) (*meta.EntityBinding, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	b := &meta.EntityBinding{
		Versioned: true,
		Relations: make(map[string]*meta.RelationDescription),
	}

	// Parse entity name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		b.Name = labels[len(labels)-1].String()
	}

	// Parse id property (required)
	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return nil, &CompileError{
			Field:   "id",
			Message: "id property is required",
			Pos:     v.Pos(),
		}
	}
	id, err := idVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	b.IDProperty = id

	// Parse versioned flag (optional, defaults to true)
	versionedVal := v.LookupPath(cue.ParsePath("versioned"))
	if versionedVal.Exists() {
		versioned, err := versionedVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.Versioned = versioned
	}

	// Parse parent (optional)
	parentVal := v.LookupPath(cue.ParsePath("parent"))
	if parentVal.Exists() {
		parent, err := parentVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.ParentName = parent
	}

	// Parse table override (optional, derived from the name otherwise)
	tableVal := v.LookupPath(cue.ParsePath("table"))
	if tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		b.Table = table
	}

	// Parse properties (ordered persistent property list)
	b.Properties, err = parseProperties(v, b.IDProperty)
	if err != nil {
		return nil, err
	}

	// Parse relations
	if err := parseRelations(v, b); err != nil {
		return nil, err
	}

	// Parse per-property type metadata
	if err := parsePropertyMeta(v, b); err != nil {
		return nil, err
	}

	b.IDMapper = defaultIDMapper(b.Name, b.IDProperty)
	return b, nil
}

// parseProperties extracts the ordered property list. The id property is
// always first; the mapping lists the rest.
func parseProperties(v cue.Value, idProperty string) ([]string, error) {
	properties := []string{idProperty}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return properties, nil
	}

	iter, err := propsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	seen := map[string]bool{idProperty: true}
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if seen[name] {
			return nil, &CompileError{
				Field:   "properties",
				Message: fmt.Sprintf("duplicate property %q", name),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[name] = true
		properties = append(properties, name)
	}

	return properties, nil
}

// parsePropertyMeta extracts the optional per-property type block, e.g.:
//
//	property: placed_at: {
//		type:      "time"
//		precision: "date"
//	}
func parsePropertyMeta(v cue.Value, b *meta.EntityBinding) error {
	metaVal := v.LookupPath(cue.ParsePath("property"))
	if !metaVal.Exists() {
		return nil
	}

	iter, err := metaVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		propName := iter.Label()
		if !b.HasProperty(propName) {
			return &CompileError{
				Field:   fmt.Sprintf("property.%s", propName),
				Message: fmt.Sprintf("property %q is not declared by the entity", propName),
				Pos:     iter.Value().Pos(),
			}
		}
		pm, err := parsePropertyType(iter.Value(), b.Name, propName)
		if err != nil {
			return err
		}
		if b.PropertyMeta == nil {
			b.PropertyMeta = make(map[string]meta.PropertyMeta)
		}
		b.PropertyMeta[propName] = pm
	}

	return nil
}

// parsePropertyType parses one property's type metadata. Temporal precision
// is only meaningful on time-typed properties; applying it to a composite
// (or any other non-temporal) value is a caller error, reported as MISUSE.
func parsePropertyType(v cue.Value, entityName, propName string) (meta.PropertyMeta, error) {
	pm := meta.PropertyMeta{Type: meta.PropertyString}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		typeName, err := typeVal.String()
		if err != nil {
			return pm, formatCUEError(err)
		}
		switch typeName {
		case "string":
			pm.Type = meta.PropertyString
		case "int":
			pm.Type = meta.PropertyInt
		case "bool":
			pm.Type = meta.PropertyBool
		case "time":
			pm.Type = meta.PropertyTime
		case "composite":
			pm.Type = meta.PropertyComposite
		case "float":
			return pm, &CompileError{
				Field:   fmt.Sprintf("property.%s.type", propName),
				Message: "float-typed properties cannot be serialized canonically",
				Pos:     typeVal.Pos(),
			}
		default:
			return pm, &CompileError{
				Field:   fmt.Sprintf("property.%s.type", propName),
				Message: fmt.Sprintf("unknown property type %q", typeName),
				Pos:     typeVal.Pos(),
			}
		}
	}

	precVal := v.LookupPath(cue.ParsePath("precision"))
	if precVal.Exists() {
		prec, err := precVal.String()
		if err != nil {
			return pm, formatCUEError(err)
		}
		switch prec {
		case "date":
			pm.Precision = meta.PrecisionDate
		case "time":
			pm.Precision = meta.PrecisionTime
		default:
			return pm, &CompileError{
				Field:   fmt.Sprintf("property.%s.precision", propName),
				Message: fmt.Sprintf("unknown temporal precision %q (want \"date\" or \"time\")", prec),
				Pos:     precVal.Pos(),
			}
		}
		if pm.Type != meta.PropertyTime {
			return pm, &CompileError{
				Field:   fmt.Sprintf("property.%s.precision", propName),
				Message: fmt.Sprintf("temporal precision cannot be applied to a %s value", pm.Type),
				Pos:     precVal.Pos(),
				Err:     audit.NewMisuseError("temporal precision on non-temporal property %s.%s", entityName, propName),
			}
		}
	}

	return pm, nil
}

// parseRelations extracts relation descriptions from the entity.
func parseRelations(v cue.Value, b *meta.EntityBinding) error {
	relVal := v.LookupPath(cue.ParsePath("relation"))
	if !relVal.Exists() {
		return nil
	}

	iter, err := relVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		propName := iter.Label()
		relValue := iter.Value()

		rd, err := parseRelation(relValue, b.Name, propName)
		if err != nil {
			return err
		}
		b.Relations[propName] = rd
	}

	return nil
}

// parseRelation parses a single relation description.
func parseRelation(v cue.Value, entityName, propName string) (*meta.RelationDescription, error) {
	rd := &meta.RelationDescription{
		FromEntityName:   entityName,
		FromPropertyName: propName,
		Cardinality:      meta.ToMany,
	}

	// Parse target (required)
	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("relation.%s.target", propName),
			Message: "relation target is required",
			Pos:     v.Pos(),
		}
	}
	target, err := targetVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	rd.ToEntityName = target

	// Parse kind (optional, "many" default)
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch kind {
		case "one":
			rd.Cardinality = meta.ToOne
		case "many":
			rd.Cardinality = meta.ToMany
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("relation.%s.kind", propName),
				Message: fmt.Sprintf("unknown relation kind %q (want \"one\" or \"many\")", kind),
				Pos:     kindVal.Pos(),
			}
		}
	}

	// Parse mapped_by (optional; marks the audited inverse of a foreign key)
	mappedByVal := v.LookupPath(cue.ParsePath("mapped_by"))
	if mappedByVal.Exists() {
		mappedBy, err := mappedByVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if rd.Cardinality == meta.ToOne {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relation.%s.mapped_by", propName),
				Message: "mapped_by is only valid on to-many relations",
				Pos:     mappedByVal.Pos(),
			}
		}
		rd.MappedBy = mappedBy
	}

	// Parse key kind (optional). Map-keyed collections cannot be expressed
	// as ordered element changes and are rejected up front.
	keyVal := v.LookupPath(cue.ParsePath("key"))
	if keyVal.Exists() {
		key, err := keyVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch key {
		case "list", "set":
			// Ordered or unordered element collections are fine.
		case "map":
			return nil, &CompileError{
				Field:   fmt.Sprintf("relation.%s.key", propName),
				Message: "map-keyed collections are not supported for auditing",
				Pos:     keyVal.Pos(),
			}
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("relation.%s.key", propName),
				Message: fmt.Sprintf("unknown collection key kind %q", key),
				Pos:     keyVal.Pos(),
			}
		}
	}

	return rd, nil
}

// CompileOptions parses the optional top-level options struct into audit
// options, starting from the defaults.
func CompileOptions(v cue.Value) (audit.Options, error) {
	opts := audit.DefaultOptions()
	if !v.Exists() {
		return opts, nil
	}
	if err := v.Err(); err != nil {
		return opts, formatCUEError(err)
	}

	roccVal := v.LookupPath(cue.ParsePath("revision_on_collection_change"))
	if roccVal.Exists() {
		rocc, err := roccVal.Bool()
		if err != nil {
			return opts, formatCUEError(err)
		}
		opts.RevisionOnCollectionChange = rocc
	}

	fieldVal := v.LookupPath(cue.ParsePath("revision_field"))
	if fieldVal.Exists() {
		field, err := fieldVal.String()
		if err != nil {
			return opts, formatCUEError(err)
		}
		if field == "" {
			return opts, &CompileError{
				Field:   "revision_field",
				Message: "revision_field must not be empty",
				Pos:     fieldVal.Pos(),
			}
		}
		opts.RevisionFieldName = field
	}

	suffixVal := v.LookupPath(cue.ParsePath("table_suffix"))
	if suffixVal.Exists() {
		suffix, err := suffixVal.String()
		if err != nil {
			return opts, formatCUEError(err)
		}
		opts.AuditTableSuffix = suffix
	}

	return opts, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error // underlying cause, when one exists
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
