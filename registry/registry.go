// Package registry replaces the source's metaclass-driven schema
// registration (VersionMeta in djangit/models/commit.py) with an explicit,
// process-wide, read-mostly map populated at startup, per spec.md §9's
// REDESIGN FLAGS ("Metaclass / decorator registration → explicit schema
// registry").
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// KindID names a tracked record kind (e.g. "division", "tag", "team").
type KindID string

// KindSchema describes one tracked kind: its scalar field names (informative
// only — the engine does not enforce a schema on field values) and its
// set-pointer slots, each naming the target kind it points at.
type KindSchema struct {
	Kind         KindID
	ScalarFields []string
	// Slots maps a set-pointer slot name to the KindID of the target entities
	// it references. The target kind need not itself be tracked (spec.md §3:
	// "or, equivalently, to plain target ids when the target kind is
	// untracked").
	Slots map[string]KindID
}

// Registry is the process-wide, read-mostly tracked-kinds table. The zero
// value is not usable; construct with New.
type Registry struct {
	mu sync.RWMutex
	// kinds is populated once at startup (schema-registration time) and read
	// freely afterward; the mutex only guards against concurrent first-use of
	// RegisterKind / SetPointer model interning per spec.md §5.
	kinds map[KindID]*KindSchema
	// pointerModels interns one logical SetPointer "model" per target kind,
	// so two version kinds pointing at the same target kind share the
	// interning identity (spec.md §4.3).
	pointerModels map[KindID]struct{}
	// order records kind registration order and is the fixed, documented
	// iteration order required by spec.md §4.5 step 3 ("kinds are iterated
	// in a deterministic order ... implementations MUST fix this order").
	order []KindID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		kinds:         make(map[KindID]*KindSchema),
		pointerModels: make(map[KindID]struct{}),
	}
}

// RegisterKind installs schema for a tracked kind. It is idempotent for a
// schema with the same slots and returns an error if schema.Kind is already
// registered with different slots, or if a slot names an empty target kind.
// ScalarFields are not compared: a re-registration that differs only in
// ScalarFields succeeds and keeps the first registration's fields.
func (r *Registry) RegisterKind(schema KindSchema) error {
	if schema.Kind == "" {
		return fmt.Errorf("registry: kind id must not be empty")
	}
	for slot, target := range schema.Slots {
		if target == "" {
			return fmt.Errorf("registry: kind %q slot %q: unknown target kind", schema.Kind, slot)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.kinds[schema.Kind]; ok {
		if !schemasEqual(existing, &schema) {
			return fmt.Errorf("registry: kind %q already registered with a different schema", schema.Kind)
		}
		return nil
	}

	r.kinds[schema.Kind] = &KindSchema{
		Kind:         schema.Kind,
		ScalarFields: append([]string(nil), schema.ScalarFields...),
		Slots:        copySlots(schema.Slots),
	}
	r.order = append(r.order, schema.Kind)

	for _, target := range schema.Slots {
		r.pointerModels[target] = struct{}{}
	}

	return nil
}

func copySlots(s map[string]KindID) map[string]KindID {
	out := make(map[string]KindID, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func schemasEqual(a, b *KindSchema) bool {
	if len(a.Slots) != len(b.Slots) {
		return false
	}
	for k, v := range a.Slots {
		if b.Slots[k] != v {
			return false
		}
	}
	return true
}

// Kind returns the schema for kind, or (nil, false) if untracked.
func (r *Registry) Kind(kind KindID) (*KindSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[kind]
	return k, ok
}

// TrackedKinds returns all registered kind ids in fixed registration order.
// This is the iteration order spec.md §4.5 requires commit-checksum
// computation to fix and document.
func (r *Registry) TrackedKinds() []KindID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]KindID(nil), r.order...)
	return out
}

// SortedTrackedKinds returns tracked kinds sorted lexically. Used where a
// deterministic-but-registration-order-independent traversal is acceptable
// (e.g. diagnostics); commit checksums always use TrackedKinds.
func (r *Registry) SortedTrackedKinds() []KindID {
	out := r.TrackedKinds()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsInternedPointerTarget reports whether target has at least one slot,
// anywhere in the registry, pointing at it — i.e. whether a SetPointer
// "model" has been interned for that target kind.
func (r *Registry) IsInternedPointerTarget(target KindID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pointerModels[target]
	return ok
}
