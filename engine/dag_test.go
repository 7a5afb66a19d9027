package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildScenario3 builds spec.md §8 Scenario 3's fixture: c0 (adds d0), c1
// (parent c0, adds d1 a clone of d0), c2 (parent c1, adds d2 and d3, removes
// d0's eternal), c2b (parent c1, adds clones of d2 and d3, no removal).
func buildScenario3(t *testing.T, e *Engine, ctx context.Context) (c0, c1, c2, c2b *Commit, d0, d1, d2, d3 *Version) {
	t.Helper()
	require := require.New(t)

	var err error
	d0, err = e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d0"})
	require.NoError(err)

	c0 = e.NewCommit(nil)
	require.NoError(e.AddVersions(c0, []*Version{d0}))
	require.NoError(e.Commit(ctx, c0))

	d1 = d0.Clone()
	c1 = e.NewCommit(c0)
	require.NoError(e.AddVersions(c1, []*Version{d1}))
	require.NoError(e.Commit(ctx, c1))

	d2, err = e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d2"})
	require.NoError(err)
	d3, err = e.CreateInitialVersion(ctx, kindDivision, map[string]any{"name": "d3"})
	require.NoError(err)

	c2 = e.NewCommit(c1)
	require.NoError(e.AddVersions(c2, []*Version{d2, d3}))
	require.NoError(e.RemoveObjects(c2, []Removable{d0}))
	require.NoError(e.Commit(ctx, c2))

	d2b := d2.Clone()
	d3b := d3.Clone()
	c2b = e.NewCommit(c1)
	require.NoError(e.AddVersions(c2b, []*Version{d2b, d3b}))
	require.NoError(e.Commit(ctx, c2b))

	return c0, c1, c2, c2b, d0, d1, d2, d3
}

func TestAncestorsAndDescendants(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	c0, c1, c2, c2b, _, _, _, _ := buildScenario3(t, e, ctx)

	ancestors, err := e.Ancestors(ctx, c2)
	require.NoError(err)
	require.Len(ancestors, 2)
	assert.Equal(c1.PK, ancestors[0].PK)
	assert.Equal(c0.PK, ancestors[1].PK)

	descC0, err := e.Descendants(ctx, c0)
	require.NoError(err)
	assert.ElementsMatch(pks(c1, c2, c2b), pksOf(descC0))

	descC1, err := e.Descendants(ctx, c1)
	require.NoError(err)
	assert.ElementsMatch(pks(c2, c2b), pksOf(descC1))
}

func TestVersionForAfterRemoveAndBranch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	_, _, c2, c2b, _, d1, _, _ := buildScenario3(t, e, ctx)

	v, err := e.VersionFor(ctx, c2, d1.Eternal)
	require.NoError(err)
	assert.Nil(v)

	v, err = e.VersionFor(ctx, c2b, d1.Eternal)
	require.NoError(err)
	require.NotNil(v)
	assert.Equal(d1.Eternal, v.Eternal)
}

func TestRelevantHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	c0, c1, c2, c2b, d0, _, _, d3 := buildScenario3(t, e, ctx)

	history, err := e.RelevantHistory(ctx, c2, d3.Eternal)
	require.NoError(err)
	assert.Equal(pks(c2), pksOf(history))

	history, err = e.RelevantHistory(ctx, c2b, d0.Eternal)
	require.NoError(err)
	assert.Equal(pks(c1, c0), pksOf(history))
}

func TestVersionSetsAfterRemove(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	e := newTestEngine(t)
	ctx := context.Background()

	_, _, c2, _, _, _, d2, d3 := buildScenario3(t, e, ctx)

	sets, err := e.VersionSets(ctx, c2)
	require.NoError(err)

	divisions := sets[kindDivision]
	gotEternals := make(map[uint64]bool, len(divisions))
	for id := range divisions {
		gotEternals[id] = true
	}
	assert.Equal(map[uint64]bool{d2.Eternal.ID: true, d3.Eternal.ID: true}, gotEternals)
}

func pks(commits ...*Commit) []uint64 {
	out := make([]uint64, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.PK)
	}
	return out
}

func pksOf(commits []*Commit) []uint64 {
	out := make([]uint64, 0, len(commits))
	for _, c := range commits {
		out = append(out, c.PK)
	}
	return out
}
