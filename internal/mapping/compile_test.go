package mapping

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
)

func TestCompileEntityBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Order: {
			id: "id"
			properties: ["customer", "total"]

			relation: items: {
				target:    "OrderLine"
				kind:      "many"
				mapped_by: "order"
			}
		}
	`)

	require.NoError(t, v.Err())
	entityVal := v.LookupPath(cue.ParsePath("entity.Order"))

	b, err := CompileEntity(entityVal)
	require.NoError(t, err)

	assert.Equal(t, "Order", b.Name)
	assert.Equal(t, "id", b.IDProperty)
	assert.True(t, b.Versioned)
	assert.Equal(t, []string{"id", "customer", "total"}, b.Properties)
	require.Contains(t, b.Relations, "items")
	rd := b.Relations["items"]
	assert.Equal(t, "OrderLine", rd.ToEntityName)
	assert.Equal(t, meta.ToMany, rd.Cardinality)
	assert.Equal(t, "order", rd.MappedBy)
	assert.NotNil(t, b.IDMapper)
}

func TestCompileEntityMissingID(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			properties: ["name"]
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "id", compileErr.Field)
}

func TestCompileEntityUnversioned(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: AuditLog: {
			id:        "id"
			versioned: false
		}
	`)

	b, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.AuditLog")))
	require.NoError(t, err)
	assert.False(t, b.Versioned)
}

func TestCompileEntityParentAndTable(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: SpecialOrder: {
			id:     "id"
			parent: "Order"
			table:  "special_orders"
		}
	`)

	b, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.SpecialOrder")))
	require.NoError(t, err)
	assert.Equal(t, "Order", b.ParentName)
	assert.Equal(t, "special_orders", b.Table)
}

func TestCompileEntityDuplicateProperty(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			properties: ["name", "name"]
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "properties", compileErr.Field)
}

func TestCompileEntityMissingRelationTarget(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			relation: items: {
				kind: "many"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "relation.items.target", compileErr.Field)
}

func TestCompileEntityMapKeyedCollectionRejected(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			relation: lookup: {
				target: "Other"
				key:    "map"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "relation.lookup.key", compileErr.Field)
	assert.Contains(t, compileErr.Message, "map-keyed")
}

func TestCompileEntityMappedByOnToOneRejected(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			relation: owner: {
				target:    "Other"
				kind:      "one"
				mapped_by: "children"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "relation.owner.mapped_by", compileErr.Field)
}

func TestCompileEntityPropertyMeta(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Order: {
			id: "id"
			properties: ["placed_at", "address", "total"]

			property: placed_at: {
				type:      "time"
				precision: "date"
			}
			property: address: type: "composite"
		}
	`)

	b, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Order")))
	require.NoError(t, err)

	require.Contains(t, b.PropertyMeta, "placed_at")
	assert.Equal(t, meta.PropertyTime, b.PropertyMeta["placed_at"].Type)
	assert.Equal(t, meta.PrecisionDate, b.PropertyMeta["placed_at"].Precision)

	require.Contains(t, b.PropertyMeta, "address")
	assert.Equal(t, meta.PropertyComposite, b.PropertyMeta["address"].Type)

	// Undeclared metadata stays absent.
	assert.NotContains(t, b.PropertyMeta, "total")
}

func TestCompileEntityTemporalPrecisionOnComposite(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			properties: ["address"]

			property: address: {
				type:      "composite"
				precision: "date"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "property.address.precision", compileErr.Field)
	assert.Contains(t, compileErr.Message, "temporal precision")
	assert.True(t, audit.IsMisuse(err))
}

func TestCompileEntityFloatPropertyRejected(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			properties: ["weight"]

			property: weight: type: "float"
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "property.weight.type", compileErr.Field)
	assert.Contains(t, compileErr.Message, "canonically")
}

func TestCompileEntityPropertyMetaForUndeclaredProperty(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"

			property: ghost: type: "string"
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "property.ghost", compileErr.Field)
}

func TestCompileEntityUnknownTemporalPrecision(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			properties: ["placed_at"]

			property: placed_at: {
				type:      "time"
				precision: "epoch"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)
	assert.False(t, audit.IsMisuse(err))
}

func TestCompileEntityUnknownRelationKind(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Bad: {
			id: "id"
			relation: items: {
				target: "Other"
				kind:   "some"
			}
		}
	`)

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	require.Error(t, err)
}

func TestCompileOptionsDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{}`)

	opts, err := CompileOptions(v.LookupPath(cue.ParsePath("options")))
	require.NoError(t, err)
	assert.True(t, opts.RevisionOnCollectionChange)
	assert.Equal(t, "revtype", opts.RevisionFieldName)
	assert.Equal(t, "_aud", opts.AuditTableSuffix)
}

func TestCompileOptionsOverrides(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		options: {
			revision_on_collection_change: false
			revision_field:                "rev_kind"
			table_suffix:                  "_history"
		}
	`)

	opts, err := CompileOptions(v.LookupPath(cue.ParsePath("options")))
	require.NoError(t, err)
	assert.False(t, opts.RevisionOnCollectionChange)
	assert.Equal(t, "rev_kind", opts.RevisionFieldName)
	assert.Equal(t, "_history", opts.AuditTableSuffix)
}

func TestCompileOptionsEmptyRevisionField(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		options: revision_field: ""
	`)

	_, err := CompileOptions(v.LookupPath(cue.ParsePath("options")))
	require.Error(t, err)
}

func TestDefaultIDMapper(t *testing.T) {
	mapper := defaultIDMapper("Order", "id")

	id, err := mapper.MapToID(map[string]any{"id": "order-1"})
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)

	id, err = mapper.MapToID(map[string]any{"id": int64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = mapper.MapToID(map[string]any{"name": "no id"})
	assert.Error(t, err)

	_, err = mapper.MapToID(nil)
	assert.Error(t, err)

	_, err = mapper.MapToID("not an object")
	assert.Error(t, err)
}
