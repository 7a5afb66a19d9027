// This file implements the supplemented mass-assignment protocol of
// SPEC_FULL.md §4.2, the Go-native analogue of the source's
// VersionModelForm.save(): applying a bag of scalar field values and
// set-pointer slot reassignments to a draft Version in one call.
package engine

import "context"

// Assignment bundles the scalar-field and slot updates ApplyAssignment
// applies to a Version in one call.
type Assignment struct {
	// Scalars overwrites the named scalar fields on the target draft.
	Scalars map[string]any
	// Slots maps a slot name to the desired set of target ids for that
	// slot, applied via the same copy-on-write SetSlot used by the
	// consumer-facing set_m2m surface.
	Slots map[string][]uint64
}

// ApplyAssignment is the Go-native analogue of VersionModelForm.save(): if
// v is sealed or forceNew is set it first clones v, then writes a.Scalars
// onto that target (v itself otherwise), applies each of a.Slots in
// slot-name-sorted order (for determinism), and finally saves the target
// via SaveOrCreateVersion(false). Like the source's form, a Version that
// was sealed when passed in is transparently cloned rather than rejected.
func (e *Engine) ApplyAssignment(ctx context.Context, v *Version, a Assignment, forceNew bool) (*Version, error) {
	target := v
	if v.IsSealed() || forceNew {
		target = v.Clone()
	}

	for k, val := range a.Scalars {
		target.Scalars[k] = val
	}

	for _, slot := range sortedSlotNames(a.Slots) {
		if _, err := e.SetSlot(ctx, target, slot, a.Slots[slot]); err != nil {
			return nil, err
		}
	}

	return e.SaveOrCreateVersion(ctx, target, false)
}
