package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrecord/recordvcs/substrate"
)

func TestCreateInitialVersionAssignsEternalAndExternalID(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	v, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "division1"})
	require.NoError(err)
	assert.NotZero(v.PK)
	assert.NotZero(v.Eternal.ID)
	assert.NotEmpty(v.ExternalID)
	assert.False(v.IsSealed())
}

func TestCloneSharesSlotsUntilReassigned(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	t1, err := e.CreateInitialVersion(ctx, kindTag, map[string]any{"name": "cat1"})
	require.NoError(err)
	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)
	_, err = e.SetSlot(ctx, d0, "tags", []uint64{t1.Eternal.ID})
	require.NoError(err)

	clone := d0.Clone()
	assert.Same(d0.Slots["tags"], clone.Slots["tags"])
	assert.NotEqual(d0.ExternalID, clone.ExternalID)
	assert.Equal(d0.Eternal, clone.Eternal)
}

func TestSaveVersionRejectsSealed(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	v, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)
	require.NoError(e.FinalizeVersion(ctx, v))

	v.Scalars["name"] = "changed"
	assert.Error(e.SaveVersion(ctx, v))
}

func TestSaveOrCreateCopyOnWrite(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)
	require.NoError(e.FinalizeVersion(ctx, d0))

	d0.Scalars["name"] = "d0 renamed"
	saved, err := e.SaveOrCreateVersion(ctx, d0, false)
	require.NoError(err)

	assert.Equal(d0.Eternal, saved.Eternal)
	assert.NotEqual(d0.PK, saved.PK)

	var reloaded *Version
	require.NoError(e.Store.View(ctx, func(tx substrate.Tx) error {
		var err error
		reloaded, err = loadVersionTx(tx, d0.Kind, d0.PK)
		return err
	}))
	assert.Equal("d0", reloaded.Scalars["name"])
}
