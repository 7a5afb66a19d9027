package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/substrate/memstore"
)

const (
	kindDivision registry.KindID = "division"
	kindTag      registry.KindID = "tag"
	kindTeam     registry.KindID = "team"
)

// newTestEngine returns an Engine over a fresh memstore, with Division, Tag,
// and Team registered per spec.md §8's scenario fixtures: Division has a
// set-pointer slot "tags" targeting Tag.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterKind(registry.KindSchema{Kind: kindTag, ScalarFields: []string{"name"}}))
	require.NoError(t, reg.RegisterKind(registry.KindSchema{Kind: kindTeam, ScalarFields: []string{"name"}}))
	require.NoError(t, reg.RegisterKind(registry.KindSchema{
		Kind:         kindDivision,
		ScalarFields: []string{"name"},
		Slots:        map[string]registry.KindID{"tags": kindTag},
	}))
	return New(memstore.New(), reg)
}
