package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKnownValue(t *testing.T) {
	// SHA256("revlog/state/v1" + 0x00 + `{"name":"widget","qty":3}`)
	obj := Object{"name": String("widget"), "qty": Int(3)}

	got, err := Hash(obj)
	require.NoError(t, err)
	assert.Equal(t,
		"30a2d14ca37caf0c594f4683868fe21c01de74e0780a493cb79a839b90a33469",
		got)
}

func TestHashKeyOrderIndependent(t *testing.T) {
	a := Object{"x": Int(1), "y": Int(2)}
	b := Object{"y": Int(2), "x": Int(1)}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashDiffersFromRevisionChecksum(t *testing.T) {
	// Same bytes hashed under different domains must not collide.
	obj := Object{"entity": String("Order"), "id": String("order-1")}

	sh, err := Hash(obj)
	require.NoError(t, err)
	rc, err := RevisionChecksum([]Object{obj})
	require.NoError(t, err)
	assert.NotEqual(t, sh, rc)
}

func TestRevisionChecksumKnownValue(t *testing.T) {
	rc, err := RevisionChecksum([]Object{
		{"entity": String("Order"), "id": String("order-1")},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"e8dd7388b2c2687688308a195129c56b9afc425c097b03f45dd2222e0befeb62",
		rc)
}

func TestRevisionChecksumOrderSensitive(t *testing.T) {
	a := Object{"id": String("a")}
	b := Object{"id": String("b")}

	c1, err := RevisionChecksum([]Object{a, b})
	require.NoError(t, err)
	c2, err := RevisionChecksum([]Object{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestHashRejectsNull(t *testing.T) {
	_, err := Hash(Object{"x": Null{}})
	require.Error(t, err)
}

func TestMustHashPanicsOnNull(t *testing.T) {
	assert.Panics(t, func() {
		MustHash(Object{"x": Null{}})
	})
}
