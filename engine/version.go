package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/gitrecord/recordvcs/engine/errs"
	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/store/hash"
	"github.com/gitrecord/recordvcs/substrate"
)

// Version is the in-memory representation of spec.md §3's "Version (V)":
// one immutable revision of a tracked entity, with scalar fields and
// set-pointer slots.
type Version struct {
	Kind registry.KindID
	PK   uint64 // 0 means draft and not yet persisted under its own row
	// ExternalID is a UUID assigned the moment this Version value is
	// constructed (CreateInitialVersion or Clone), letting a caller hold a
	// stable external reference to a draft before it has a PK (a Clone's PK
	// is 0 until the first SaveVersion/FinalizeVersion assigns one) or a
	// checksum. Grounded on the teacher's direct dependency on
	// github.com/google/uuid.
	ExternalID string
	Eternal    EternalRef
	Checksum   string // "" means draft
	Scalars    map[string]any
	// Slots maps a declared slot name to its current SetPointer. A present
	// key with a nil value, and an absent key, both mean "unset".
	// CreateInitialVersion populates Slots with every declared slot name
	// (Clone copies the keys); a Version reloaded from the substrate carries
	// only the slots that are set.
	Slots map[string]*SetPointer
}

// IsSealed reports whether v has been finalized.
func (v *Version) IsSealed() bool { return v.Checksum != "" }

func versionDigest(kind registry.KindID, eternal EternalRef, scalars map[string]any) (string, error) {
	fields := make(map[string]any, len(scalars)+1)
	for k, v := range scalars {
		fields[k] = v
	}
	fields["eternal_id"] = eternal.ID
	canon, err := hash.CanonicalRecord(fields)
	if err != nil {
		return "", fmt.Errorf("engine: canonicalizing %s version: %w", kind, err)
	}
	return hash.DigestString(canon), nil
}

func versionToRow(v *Version) substrate.VersionRow {
	slots := make(map[string]substrate.PointerRef, len(v.Slots))
	for name, p := range v.Slots {
		if p == nil {
			continue
		}
		slots[name] = substrate.PointerRef{TargetKind: substrate.KindID(p.TargetKind), PK: p.PK, Set: true}
	}
	scalars := make(map[string]any, len(v.Scalars))
	for k, val := range v.Scalars {
		scalars[k] = val
	}
	return substrate.VersionRow{
		Kind:       substrate.KindID(v.Kind),
		PK:         v.PK,
		ExternalID: v.ExternalID,
		EternalID:  v.Eternal.ID,
		Checksum:   v.Checksum,
		Scalars:    scalars,
		Slots:      slots,
	}
}

// CreateInitialVersion allocates a fresh Eternal and an immediately
// persisted draft Version linked to it, matching spec.md §4.4's
// create_initial.
func (e *Engine) CreateInitialVersion(ctx context.Context, kind registry.KindID, scalars map[string]any) (*Version, error) {
	schema, ok := e.Registry.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("engine: kind %q is not registered", kind)
	}

	v := &Version{
		Kind:       kind,
		ExternalID: uuid.NewString(),
		Scalars:    copyScalars(scalars),
		Slots:      make(map[string]*SetPointer, len(schema.Slots)),
	}
	for slot := range schema.Slots {
		v.Slots[slot] = nil
	}

	err := e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		eternalID, err := tx.NextEternalID(substrate.KindID(kind))
		if err != nil {
			return err
		}
		v.Eternal = EternalRef{Kind: kind, ID: eternalID}

		pk, err := tx.NextVersionPK(substrate.KindID(kind))
		if err != nil {
			return err
		}
		v.PK = pk
		return tx.PutVersion(versionToRow(v))
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func copyScalars(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns an unsaved copy of v: same Eternal and scalar fields,
// checksum cleared, distinct (zero) identity. Set-pointer slots are shared
// with v until a slot is reassigned via SetSlot, per spec.md §4.4 and the
// resolved Open Question in spec.md §9.3.
func (v *Version) Clone() *Version {
	clone := &Version{
		Kind:       v.Kind,
		ExternalID: uuid.NewString(),
		Eternal:    v.Eternal,
		Checksum:   "",
		Scalars:    copyScalars(v.Scalars),
		Slots:      make(map[string]*SetPointer, len(v.Slots)),
	}
	for name, p := range v.Slots {
		clone.Slots[name] = p // shared until reassigned (copy-on-write)
	}
	return clone
}

// SaveVersion performs a direct, low-level write of a draft version's
// current in-memory scalar fields and slot assignments, mirroring
// VersionedModel.save() in the source: it raises LockedInformation if v is
// already sealed.
func (e *Engine) SaveVersion(ctx context.Context, v *Version) error {
	if v.IsSealed() {
		e.Metrics.LockedWriteRejections.Inc()
		err := lockedVersionWrite(v)
		e.Log.Warn().Str("kind", string(v.Kind)).Uint64("pk", v.PK).Err(err).Msg("rejected write to sealed version")
		return err
	}
	return e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		if v.PK == 0 {
			pk, err := tx.NextVersionPK(substrate.KindID(v.Kind))
			if err != nil {
				return err
			}
			v.PK = pk
		}
		return tx.PutVersion(versionToRow(v))
	})
}

// SaveOrCreateVersion implements spec.md §4.4's save_or_create: if v is
// sealed or forceNew, v is cloned and the clone saved and returned;
// otherwise v itself is saved in place and returned.
func (e *Engine) SaveOrCreateVersion(ctx context.Context, v *Version, forceNew bool) (*Version, error) {
	if v.IsSealed() || forceNew {
		clone := v.Clone()
		if err := e.SaveVersion(ctx, clone); err != nil {
			return nil, err
		}
		return clone, nil
	}
	if err := e.SaveVersion(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetSlot implements spec.md §4.4's set_set_slot / the universal set_m2m:
// it delegates to the slot's current SetPointer's save_or_create (or
// allocates a fresh pointer if the slot was unset); if the resulting
// pointer is not identical to the previous one, the slot is updated and v
// is saved (raising LockedInformation if v is sealed, matching
// HasManyToManyPointerFields.set_m2m calling self.save()).
func (e *Engine) SetSlot(ctx context.Context, v *Version, slot string, targetIDs []uint64) (*SetPointer, error) {
	schema, ok := e.Registry.Kind(v.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: kind %q is not registered", v.Kind)
	}
	targetKind, ok := schema.Slots[slot]
	if !ok {
		return nil, fmt.Errorf("engine: kind %q has no slot %q", v.Kind, slot)
	}

	prev := v.Slots[slot]
	next, err := e.SaveOrCreatePointer(ctx, prev, targetKind, dedupe(targetIDs), false)
	if err != nil {
		return nil, err
	}

	if !samePointer(prev, next) {
		v.Slots[slot] = next
		if err := e.SaveVersion(ctx, v); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func samePointer(a, b *SetPointer) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || (a.PK == b.PK && a.PK != 0)
}

// FinalizeVersion seals v by computing its checksum, matching spec.md
// §4.4's finalize_version(). It does not finalize v's slots' SetPointers —
// that is the seal protocol's job (spec.md §4.5 step 2) — only v's own
// scalar-field checksum.
func (e *Engine) FinalizeVersion(ctx context.Context, v *Version) error {
	if v.IsSealed() {
		return nil
	}
	checksum, err := versionDigest(v.Kind, v.Eternal, v.Scalars)
	if err != nil {
		return err
	}
	v.Checksum = checksum
	err = e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		if v.PK == 0 {
			pk, err := tx.NextVersionPK(substrate.KindID(v.Kind))
			if err != nil {
				return err
			}
			v.PK = pk
		}
		return tx.PutVersion(versionToRow(v))
	})
	if err != nil {
		v.Checksum = ""
		return err
	}
	e.Metrics.VersionsSealed.Inc()
	e.Log.Debug().Str("kind", string(v.Kind)).Uint64("pk", v.PK).Str("checksum", v.Checksum).Msg("version sealed")
	return nil
}

// finalizeVersionTx is the transaction-scoped variant used by Commit.Commit
// so that version (and, by extension, slot pointer) finalization
// participates in the commit's single atomic transaction.
func finalizeVersionTx(tx substrate.Tx, v *Version) (string, error) {
	if v.IsSealed() {
		return v.Checksum, nil
	}
	checksum, err := versionDigest(v.Kind, v.Eternal, v.Scalars)
	if err != nil {
		return "", err
	}
	if v.PK == 0 {
		pk, err := tx.NextVersionPK(substrate.KindID(v.Kind))
		if err != nil {
			return "", err
		}
		v.PK = pk
	}
	v.Checksum = checksum
	if err := tx.PutVersion(versionToRow(v)); err != nil {
		v.Checksum = ""
		return "", err
	}
	return checksum, nil
}

func lockedVersionWrite(v *Version) error {
	return errs.Locked("version " + string(v.Kind) + "#" + strconv.FormatUint(v.PK, 10) + " is sealed")
}

// sortedSlotNames returns the keys of slots sorted, used wherever slot
// application order must be deterministic (e.g. ApplyAssignment).
func sortedSlotNames(slots map[string][]uint64) []string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
