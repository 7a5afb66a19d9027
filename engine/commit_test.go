package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrecord/recordvcs/engine/errs"
	"github.com/gitrecord/recordvcs/substrate"
)

func TestCommitSealsVersionAndIsolatesClone(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "division1"})
	require.NoError(err)
	d1 := d0.Clone()

	c0 := e.NewCommit(nil)
	require.NoError(e.AddVersions(c0, []*Version{d0}))
	require.NoError(e.Commit(ctx, c0))

	assert.NotEmpty(d0.Checksum)
	assert.NotEmpty(c0.Checksum)

	d1.Scalars["name"] = "division one"
	require.NoError(e.SaveVersion(ctx, d1))

	var reloaded *Version
	require.NoError(e.Store.View(ctx, func(tx substrate.Tx) error {
		var err error
		reloaded, err = loadVersionTx(tx, d0.Kind, d0.PK)
		return err
	}))
	assert.Equal("division1", reloaded.Scalars["name"])
}

func TestCommitRejectsUnsealedParent(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	parent := e.NewCommit(nil)
	child := e.NewCommit(parent)

	err := e.Commit(ctx, child)
	require.Error(err)
	assert.True(errors.Is(err, errs.ParentNotCommitted))
}

func TestCommitIsIdempotentNoOp(t *testing.T) {
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	c0 := e.NewCommit(nil)
	require.NoError(e.Commit(ctx, c0))
	checksum := c0.Checksum
	require.NoError(e.Commit(ctx, c0))
	require.Equal(checksum, c0.Checksum)
}

func TestRemoveObjectsAndCommit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)

	c0 := e.NewCommit(nil)
	require.NoError(e.AddVersions(c0, []*Version{d0}))
	require.NoError(e.Commit(ctx, c0))

	c1 := e.NewCommit(c0)
	require.NoError(e.RemoveObjects(c1, []Removable{d0}))
	require.NoError(e.Commit(ctx, c1))

	v, err := e.VersionFor(ctx, c1, d0.Eternal)
	require.NoError(err)
	assert.Nil(v)
}
