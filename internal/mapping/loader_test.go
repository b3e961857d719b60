package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMapping drops a CUE mapping file into a fresh temp dir.
func writeMapping(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "entities.cue"), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

func TestLoadMappingsBasic(t *testing.T) {
	dir := writeMapping(t, `
entity: {
	Order: {
		id: "id"
		properties: ["customer"]
		relation: items: {
			target:    "OrderLine"
			mapped_by: "order"
		}
	}
	OrderLine: {
		id: "id"
		properties: ["order", "sku"]
		relation: order: {
			target: "Order"
			kind:   "one"
		}
	}
}
options: revision_field: "revtype"
`)

	result, errs := LoadMappings(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result.Registry)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, []string{"Order", "OrderLine"}, result.Registry.EntityNames())
	assert.Equal(t, "revtype", result.Options.RevisionFieldName)

	rd := result.Registry.LookupRelation("Order", "items")
	require.NotNil(t, rd)
	assert.True(t, rd.IsFakeBidirectional())
	// OrderLine.order points back at Order, so the relation is also
	// structurally bidirectional.
	assert.True(t, rd.Bidirectional)
}

func TestLoadMappingsMissingDir(t *testing.T) {
	_, errs := LoadMappings(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	require.Len(t, errs, 1)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadMappingsNoCUEFiles(t *testing.T) {
	_, errs := LoadMappings(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)
}

func TestLoadMappingsNoEntities(t *testing.T) {
	dir := writeMapping(t, `options: table_suffix: "_aud"`)

	_, errs := LoadMappings(dir, LoadModeFailFast)
	require.Len(t, errs, 1)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeGeneric, loadErr.Code)
}

func TestLoadMappingsCollectAll(t *testing.T) {
	dir := writeMapping(t, `
entity: {
	First: {
		properties: ["name"]
	}
	Second: {
		id: "id"
		relation: items: {
			kind: "many"
		}
	}
}
`)

	_, errs := LoadMappings(dir, LoadModeCollectAll)
	// Both broken entities reported: missing id and missing relation target.
	require.Len(t, errs, 2)

	codes := []string{}
	for _, err := range errs {
		loadErr, ok := err.(*LoadError)
		require.True(t, ok)
		codes = append(codes, loadErr.Code)
	}
	assert.Contains(t, codes, ErrCodeEntityID)
	assert.Contains(t, codes, ErrCodeRelationTarget)
}

func TestLoadMappingsFailFast(t *testing.T) {
	dir := writeMapping(t, `
entity: {
	First: {
		properties: ["name"]
	}
	Second: {
		id: "id"
		relation: items: {
			kind: "many"
		}
	}
}
`)

	_, errs := LoadMappings(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
}

func TestLoadMappingsUnknownRelationTarget(t *testing.T) {
	dir := writeMapping(t, `
entity: Order: {
	id: "id"
	relation: items: {
		target: "Missing"
	}
}
`)

	result, errs := LoadMappings(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Nil(t, result.Registry)

	loadErr, ok := errs[0].(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRegistryBuild, loadErr.Code)
}

func TestLoadMappingsInheritanceChain(t *testing.T) {
	dir := writeMapping(t, `
entity: {
	BaseEntity: {
		id: "id"
		properties: ["created_at"]
	}
	Order: {
		id:     "id"
		parent: "BaseEntity"
		properties: ["customer"]
	}
}
`)

	result, errs := LoadMappings(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result.Registry)

	assert.Equal(t, []string{"Order", "BaseEntity"}, result.Registry.SupertypeChain("Order"))
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeEntityID, MapFieldToErrorCode("id"))
	assert.Equal(t, ErrCodeEntityProps, MapFieldToErrorCode("properties"))
	assert.Equal(t, ErrCodeRelationTarget, MapFieldToErrorCode("relation.items.target"))
	assert.Equal(t, ErrCodeRelationShape, MapFieldToErrorCode("relation.items.key"))
	assert.Equal(t, ErrCodeEntityProps, MapFieldToErrorCode("property.placed_at.precision"))
	assert.Equal(t, ErrCodeOptions, MapFieldToErrorCode("revision_field"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("something"))
}
