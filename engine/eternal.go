// Package engine implements the commit/version/pointer core of spec.md §4:
// Digest, Eternal identity, SetPointer, Version, Commit, and the DAG query
// engine. Persistence is delegated to a substrate.Store; this package holds
// no global state beyond the registry and LRU cache an *Engine is
// constructed with.
package engine

import "github.com/gitrecord/recordvcs/registry"

// EternalRef identifies one logical entity of a given kind, stable across
// all of its Versions (spec.md §3 "Eternal (E)"). EternalRefs hold no
// mutable state; they exist purely as join targets.
type EternalRef struct {
	Kind registry.KindID
	ID   uint64
}

// IsZero reports whether r is the zero EternalRef (no entity).
func (r EternalRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}
