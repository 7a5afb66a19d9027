// Package diff computes the structured, presentation-agnostic diff data
// SPEC_FULL.md §4.1 supplements from original_source/djangit/diffs.py's
// Diff and TagM2MDiff. It has no knowledge of HTML or templating — spec.md
// §1 explicitly keeps "rendering/diffing of field values for display" in a
// presentation layer; this package only produces the data such a layer
// would consume.
package diff

import (
	"fmt"
	"sort"

	"github.com/gitrecord/recordvcs/engine"
)

// FieldDiff is the before/after snapshot of one scalar field between a
// Version and its predecessor.
type FieldDiff struct {
	Field  string
	Before any // nil means "no predecessor value" (a creation diff)
	After  any
}

// SlotDiff is the added/removed target-id sets of one set-pointer slot
// between a Version and its predecessor.
type SlotDiff struct {
	Slot    string
	Added   []uint64
	Removed []uint64
}

// ForVersion compares history[0] (the Version being diffed) against
// history[1] (its immediate predecessor in relevant_history_with_respect_to
// order), if present. A single-element history produces a creation diff:
// every scalar field's Before is nil and every slot's target ids are
// reported entirely Added, mirroring Diff.__init__'s field=None "creation"
// case in the source. An empty (or nil) history returns an error.
func ForVersion(history []*engine.Version) ([]FieldDiff, []SlotDiff, error) {
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("diff: ForVersion requires at least one version")
	}
	current := history[0]
	var previous *engine.Version
	if len(history) > 1 {
		previous = history[1]
	}

	fieldDiffs := fieldDiffs(current, previous)
	slotDiffs := slotDiffs(current, previous)
	return fieldDiffs, slotDiffs, nil
}

func fieldDiffs(current, previous *engine.Version) []FieldDiff {
	names := make([]string, 0, len(current.Scalars))
	for name := range current.Scalars {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]FieldDiff, 0, len(names))
	for _, name := range names {
		after := current.Scalars[name]
		var before any
		if previous != nil {
			before = previous.Scalars[name]
		}
		out = append(out, FieldDiff{Field: name, Before: before, After: after})
	}
	return out
}

func slotDiffs(current, previous *engine.Version) []SlotDiff {
	names := make([]string, 0, len(current.Slots))
	for name := range current.Slots {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]SlotDiff, 0, len(names))
	for _, name := range names {
		after := targetSet(current.Slots[name])
		var before map[uint64]struct{}
		if previous != nil {
			before = targetSet(previous.Slots[name])
		} else {
			before = map[uint64]struct{}{}
		}

		var added, removed []uint64
		for id := range after {
			if _, ok := before[id]; !ok {
				added = append(added, id)
			}
		}
		for id := range before {
			if _, ok := after[id]; !ok {
				removed = append(removed, id)
			}
		}
		sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
		sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })

		out = append(out, SlotDiff{Slot: name, Added: added, Removed: removed})
	}
	return out
}

func targetSet(p *engine.SetPointer) map[uint64]struct{} {
	out := map[uint64]struct{}{}
	if p == nil {
		return out
	}
	for _, id := range p.TargetIDs() {
		out[id] = struct{}{}
	}
	return out
}
