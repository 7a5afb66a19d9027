package diff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrecord/recordvcs/engine"
	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/substrate/memstore"
)

func newEngineWithTag(t *testing.T) *engine.Engine {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterKind(registry.KindSchema{Kind: "tag", ScalarFields: []string{"name"}}))
	require.NoError(t, reg.RegisterKind(registry.KindSchema{
		Kind:  "division",
		Slots: map[string]registry.KindID{"tags": "tag"},
	}))
	return engine.New(memstore.New(), reg)
}

func TestForVersionCreationDiff(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newEngineWithTag(t)
	ctx := context.Background()

	v, err := e.CreateInitialVersion(ctx, "division", map[string]any{"name": "d0"})
	require.NoError(err)

	fields, slots, err := ForVersion([]*engine.Version{v})
	require.NoError(err)

	require.Len(fields, 1)
	assert.Equal("name", fields[0].Field)
	assert.Nil(fields[0].Before)
	assert.Equal("d0", fields[0].After)

	require.Len(slots, 1)
	assert.Equal("tags", slots[0].Slot)
	assert.Empty(slots[0].Added)
	assert.Empty(slots[0].Removed)
}

func TestForVersionFieldAndSlotDiff(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newEngineWithTag(t)
	ctx := context.Background()

	tag, err := e.CreateInitialVersion(ctx, "tag", map[string]any{"name": "cat1"})
	require.NoError(err)

	d0, err := e.CreateInitialVersion(ctx, "division", map[string]any{"name": "d0"})
	require.NoError(err)

	d1 := d0.Clone()
	d1.Scalars["name"] = "d0 renamed"
	_, err = e.SetSlot(ctx, d1, "tags", []uint64{tag.Eternal.ID})
	require.NoError(err)

	fields, slots, err := ForVersion([]*engine.Version{d1, d0})
	require.NoError(err)

	require.Len(fields, 1)
	assert.Equal("d0", fields[0].Before)
	assert.Equal("d0 renamed", fields[0].After)

	require.Len(slots, 1)
	assert.Equal([]uint64{tag.Eternal.ID}, slots[0].Added)
	assert.Empty(slots[0].Removed)
}
