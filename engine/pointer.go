package engine

import (
	"context"
	"strconv"

	"github.com/google/btree"

	"github.com/gitrecord/recordvcs/engine/errs"
	"github.com/gitrecord/recordvcs/engine/metrics"
	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/store/hash"
	"github.com/gitrecord/recordvcs/substrate"
)

// SetPointer is the in-memory representation of spec.md §3's "SetPointer
// (P)": an indirection object interning a set-valued field's target ids.
// One SetPointer "model" exists per target kind (registry.Registry enforces
// the interning; this struct is just the per-instance value).
type SetPointer struct {
	TargetKind registry.KindID
	PK         uint64 // 0 means draft and not yet persisted
	Checksum   string // "" means draft

	// targets holds the referenced ids in a sorted btree, giving
	// deterministic ascending iteration for digesting (spec.md §4.1:
	// "sort the referenced target ids numerically") and for TargetIDs'
	// ascending result. Grounded on the teacher's direct
	// dependency on github.com/google/btree.
	targets *btree.BTreeG[uint64]
}

func lessUint64(a, b uint64) bool { return a < b }

func newTargetTree(ids []uint64) *btree.BTreeG[uint64] {
	t := btree.NewG(32, lessUint64)
	for _, id := range ids {
		t.ReplaceOrInsert(id)
	}
	return t
}

func newSetPointer(targetKind registry.KindID, ids []uint64) *SetPointer {
	return &SetPointer{TargetKind: targetKind, targets: newTargetTree(ids)}
}

// IsSealed reports whether the pointer has been finalized.
func (p *SetPointer) IsSealed() bool { return p.Checksum != "" }

// TargetIDs returns the referenced ids in ascending order.
func (p *SetPointer) TargetIDs() []uint64 {
	out := make([]uint64, 0, p.targets.Len())
	p.targets.Ascend(func(id uint64) bool {
		out = append(out, id)
		return true
	})
	return out
}

// equalsSet reports whether p references exactly the ids in want, per
// spec.md §4.3's save_or_create equality check ("if new_ids equals the
// current set").
func (p *SetPointer) equalsSet(want []uint64) bool {
	if p.targets.Len() != len(dedupe(want)) {
		return false
	}
	for _, id := range want {
		if !p.targets.Has(id) {
			return false
		}
	}
	return true
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func pointerDigest(targetIDs []uint64) string {
	return hash.DigestString(hash.CanonicalTargetSet(targetIDs))
}

func pointerToRow(p *SetPointer) substrate.PointerRow {
	return substrate.PointerRow{
		TargetKind: substrate.KindID(p.TargetKind),
		PK:         p.PK,
		Checksum:   p.Checksum,
		TargetIDs:  p.TargetIDs(),
	}
}

func pointerFromRow(row substrate.PointerRow) *SetPointer {
	p := newSetPointer(registry.KindID(row.TargetKind), row.TargetIDs)
	p.PK = row.PK
	p.Checksum = row.Checksum
	return p
}

// CreatePointer allocates a new, draft SetPointer referencing ids and
// persists it immediately (spec.md §4.3: "create(target_ids) -> P: allocate
// a draft pointer and associate the target ids").
func (e *Engine) CreatePointer(ctx context.Context, targetKind registry.KindID, ids []uint64) (*SetPointer, error) {
	p := newSetPointer(targetKind, ids)
	err := e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		pk, err := tx.NextPointerPK(substrate.KindID(targetKind))
		if err != nil {
			return err
		}
		p.PK = pk
		return tx.PutPointer(pointerToRow(p))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveOrCreatePointer implements spec.md §4.3's save_or_create: if newIDs
// equals p's current set, p is returned unchanged; otherwise, if p is
// sealed or forceNew, a new draft pointer is allocated; otherwise p is
// mutated in place. p may be nil, meaning "no pointer yet assigned", in
// which case a fresh pointer is always allocated.
func (e *Engine) SaveOrCreatePointer(ctx context.Context, p *SetPointer, targetKind registry.KindID, newIDs []uint64, forceNew bool) (*SetPointer, error) {
	if p == nil {
		return e.CreatePointer(ctx, targetKind, newIDs)
	}
	if p.equalsSet(newIDs) {
		return p, nil
	}
	if p.IsSealed() || forceNew {
		return e.CreatePointer(ctx, targetKind, newIDs)
	}

	// Mutate p in place rather than allocating a new *SetPointer: callers
	// (notably a Version's Slots entry) hold p by pointer, and samePointer's
	// identity check in SetSlot depends on that reference staying valid —
	// returning a distinct value here left the original p, and anything
	// still pointing at it, holding the stale target set.
	old := p.targets
	p.targets = newTargetTree(newIDs)
	err := e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		return tx.PutPointer(pointerToRow(p))
	})
	if err != nil {
		p.targets = old
		return nil, err
	}
	return p, nil
}

// FinalizePointer seals p by computing its checksum, matching spec.md
// §4.3's finalize(). Sealing an already-sealed pointer is a no-op, treating
// resealing as the source's strict reading of "once sealed, immutable"
// rather than raising LockedInformation for an idempotent reseal of
// identical content.
func (e *Engine) FinalizePointer(ctx context.Context, p *SetPointer) error {
	if p.IsSealed() {
		return nil
	}
	p.Checksum = pointerDigest(p.TargetIDs())
	err := e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		return tx.PutPointer(pointerToRow(p))
	})
	if err != nil {
		p.Checksum = ""
		return err
	}
	e.Metrics.PointersSealed.Inc()
	e.Log.Debug().Str("target_kind", string(p.TargetKind)).Uint64("pk", p.PK).Str("checksum", p.Checksum).Msg("pointer sealed")
	return nil
}

// finalizePointerTx is the transaction-scoped variant used by Commit() so
// that pointer finalization participates in the commit's single atomic
// transaction (spec.md §5).
func finalizePointerTx(tx substrate.Tx, m *metrics.Metrics, p *SetPointer) error {
	if p.IsSealed() {
		return nil
	}
	p.Checksum = pointerDigest(p.TargetIDs())
	if err := tx.PutPointer(pointerToRow(p)); err != nil {
		p.Checksum = ""
		return err
	}
	if m != nil {
		m.PointersSealed.Inc()
	}
	return nil
}

// SavePointer performs a direct, low-level write of a draft pointer's
// current in-memory target set, mirroring ManyToManyPointerBase.save() in
// the source: it raises LockedInformation if p is already sealed, and is
// bypassed (not called) by FinalizePointer, whose own write seals the
// pointer rather than editing a draft.
func (e *Engine) SavePointer(ctx context.Context, p *SetPointer) error {
	if p.IsSealed() {
		e.Metrics.LockedWriteRejections.Inc()
		err := lockedPointerWrite(p)
		e.Log.Warn().Str("target_kind", string(p.TargetKind)).Uint64("pk", p.PK).Err(err).Msg("rejected write to sealed pointer")
		return err
	}
	return e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		return tx.PutPointer(pointerToRow(p))
	})
}

// lockedPointerWrite is a small helper so every pointer mutation path
// consistently reports LockedInformation with a useful message.
func lockedPointerWrite(p *SetPointer) error {
	return errs.Locked("set-pointer " + string(p.TargetKind) + "#" + strconv.FormatUint(p.PK, 10) + " is sealed")
}
