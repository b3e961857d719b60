package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), String("b")))
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Int(2)))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Bool(true), Bool(false)))
	assert.True(t, Equal(Null{}, Null{}))
}

func TestEqualCrossType(t *testing.T) {
	// Same underlying representation, different value type.
	assert.False(t, Equal(Int(1), Bool(true)))
	assert.False(t, Equal(String("1"), Int(1)))
	assert.False(t, Equal(Null{}, String("")))
}

func TestEqualNil(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Null{}))
	assert.False(t, Equal(String("x"), nil))
}

func TestEqualArrays(t *testing.T) {
	assert.True(t, Equal(Array{Int(1), String("a")}, Array{Int(1), String("a")}))
	assert.False(t, Equal(Array{Int(1), Int(2)}, Array{Int(2), Int(1)}))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(1), Int(2)}))
	assert.True(t, Equal(Array{}, Array{}))
}

func TestEqualObjects(t *testing.T) {
	a := Object{"id": String("x"), "qty": Int(2)}
	b := Object{"qty": Int(2), "id": String("x")}
	assert.True(t, Equal(a, b))

	c := Object{"id": String("x"), "qty": Int(3)}
	assert.False(t, Equal(a, c))

	d := Object{"id": String("x")}
	assert.False(t, Equal(a, d))
}

func TestEqualNested(t *testing.T) {
	a := Object{"lines": Array{Object{"sku": String("w")}}}
	b := Object{"lines": Array{Object{"sku": String("w")}}}
	c := Object{"lines": Array{Object{"sku": String("v")}}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestNewObject(t *testing.T) {
	obj := NewObject(
		P("status", String("open")),
		P("total", Int(5)),
	)

	assert.Equal(t, String("open"), obj["status"])
	assert.Equal(t, Int(5), obj["total"])
	assert.Len(t, obj, 2)
}

func TestSortedKeysASCII(t *testing.T) {
	obj := Object{"b": Int(1), "a": Int(2), "c": Int(3)}
	assert.Equal(t, []string{"a", "b", "c"}, obj.SortedKeys())
}

func TestSortedKeysPrefix(t *testing.T) {
	// A shorter key sorts before its extension.
	obj := Object{"ab": Int(1), "a": Int(2)}
	assert.Equal(t, []string{"a", "ab"}, obj.SortedKeys())
}

func TestSortedKeysSurrogateOrder(t *testing.T) {
	// UTF-16 ordering: the surrogate pair (first unit 0xD834) precedes
	// U+FF01 even though its UTF-8 encoding is byte-wise greater.
	obj := Object{"\U0001D306": Int(1), "！": Int(2)}
	assert.Equal(t, []string{"\U0001D306", "！"}, obj.SortedKeys())
}
