package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAssignmentOnDraft(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	t1, err := e.CreateInitialVersion(ctx, kindTag, map[string]any{"name": "cat1"})
	require.NoError(err)
	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)

	result, err := e.ApplyAssignment(ctx, d0, Assignment{
		Scalars: map[string]any{"name": "d0 renamed"},
		Slots:   map[string][]uint64{"tags": {t1.Eternal.ID}},
	}, false)
	require.NoError(err)

	assert.Same(d0, result)
	assert.Equal("d0 renamed", result.Scalars["name"])
	assert.ElementsMatch([]uint64{t1.Eternal.ID}, result.Slots["tags"].TargetIDs())
}

func TestApplyAssignmentClonesSealedTarget(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	d0, err := e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)
	require.NoError(e.FinalizeVersion(ctx, d0))

	result, err := e.ApplyAssignment(ctx, d0, Assignment{
		Scalars: map[string]any{"name": "d0 renamed"},
	}, false)
	require.NoError(err)

	assert.NotSame(d0, result)
	assert.Equal(d0.Eternal, result.Eternal)
	assert.Equal("d0", d0.Scalars["name"])
	assert.Equal("d0 renamed", result.Scalars["name"])
	assert.False(result.IsSealed())
}
