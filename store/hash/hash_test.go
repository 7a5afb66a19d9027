package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestDeterministic(t *testing.T) {
	assert := assert.New(t)

	a := Digest([]byte("division1"))
	b := Digest([]byte("division1"))
	assert.Equal(a, b)
	assert.NotEqual(a, Digest([]byte("division2")))
	assert.Len(a, 64) // sha256 hex
}

func TestCanonicalRecordSortsKeys(t *testing.T) {
	assert := assert.New(t)

	a, err := CanonicalRecord(map[string]any{"name": "d1", "active": true})
	assert.NoError(err)
	b, err := CanonicalRecord(map[string]any{"active": true, "name": "d1"})
	assert.NoError(err)
	assert.Equal(a, b)
}

func TestCanonicalTargetSetIgnoresInputOrder(t *testing.T) {
	assert := assert.New(t)

	a := CanonicalTargetSet([]uint64{3, 1, 2})
	b := CanonicalTargetSet([]uint64{1, 2, 3})
	assert.Equal(a, b)
}

func TestConcat(t *testing.T) {
	assert.Equal(t, "abc", Concat("a", "b", "c"))
	assert.Equal(t, "", Concat())
}
