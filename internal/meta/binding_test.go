package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableName(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{"Order", "orders"},
		{"OrderItem", "order_items"},
		{"Customer", "customers"},
		{"Category", "categories"},
		{"HTTPLog", "http_logs"},
		{"Person", "people"},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultTableName(tt.entity))
		})
	}
}

func TestCollectionRole(t *testing.T) {
	assert.Equal(t, "Order.items", CollectionRole("Order", "items"))
}

func TestSplitRole(t *testing.T) {
	entity, prop, err := SplitRole("Order.items")
	require.NoError(t, err)
	assert.Equal(t, "Order", entity)
	assert.Equal(t, "items", prop)

	// Dotted package-style entity names split at the last dot.
	entity, prop, err = SplitRole("shop.Order.items")
	require.NoError(t, err)
	assert.Equal(t, "shop.Order", entity)
	assert.Equal(t, "items", prop)
}

func TestSplitRoleMalformed(t *testing.T) {
	for _, role := range []string{"", "items", ".items", "Order."} {
		_, _, err := SplitRole(role)
		assert.Error(t, err, "role %q", role)
	}
}

func TestHasProperty(t *testing.T) {
	b := &EntityBinding{
		Name:       "Order",
		Properties: []string{"id", "total"},
		Relations: map[string]*RelationDescription{
			"items": {ToEntityName: "OrderLine", Cardinality: ToMany},
		},
	}

	assert.True(t, b.HasProperty("id"))
	assert.True(t, b.HasProperty("total"))
	assert.True(t, b.HasProperty("items"))
	assert.False(t, b.HasProperty("missing"))
}

func TestPropertyIndex(t *testing.T) {
	b := &EntityBinding{Properties: []string{"id", "customer", "tags"}}

	assert.Equal(t, 0, b.PropertyIndex("id"))
	assert.Equal(t, 2, b.PropertyIndex("tags"))
	assert.Equal(t, -1, b.PropertyIndex("missing"))
}

func TestIDMapperFunc(t *testing.T) {
	mapper := IDMapperFunc(func(obj any) (string, error) {
		return obj.(string), nil
	})

	id, err := mapper.MapToID("order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)
}

func TestCardinalityString(t *testing.T) {
	assert.Equal(t, "one", ToOne.String())
	assert.Equal(t, "many", ToMany.String())
	assert.Equal(t, "unknown", Cardinality(0).String())
}
