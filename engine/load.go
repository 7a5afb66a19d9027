package engine

import (
	"fmt"

	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/substrate"
)

// loadVersionTx reconstructs a *Version (including its slots' SetPointers)
// from the substrate inside an open transaction.
func loadVersionTx(tx substrate.Tx, kind registry.KindID, pk uint64) (*Version, error) {
	row, ok, err := tx.GetVersion(substrate.KindID(kind), pk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("engine: no version %s#%d", kind, pk)
	}

	v := &Version{
		Kind:       registry.KindID(row.Kind),
		PK:         row.PK,
		ExternalID: row.ExternalID,
		Eternal:    EternalRef{Kind: kind, ID: row.EternalID},
		Checksum:   row.Checksum,
		Scalars:    row.Scalars,
		Slots:      make(map[string]*SetPointer, len(row.Slots)),
	}
	for slotName, ref := range row.Slots {
		if !ref.Set {
			continue
		}
		prow, ok, err := tx.GetPointer(substrate.KindID(ref.TargetKind), ref.PK)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("engine: no pointer %s#%d", ref.TargetKind, ref.PK)
		}
		v.Slots[slotName] = pointerFromRow(prow)
	}
	return v, nil
}

// loadCommitTx reconstructs a *Commit, and its entire ancestor chain, from
// the substrate inside an open transaction.
//
// TODO: this re-resolves the full ancestor chain on every load rather than
// caching intermediate commits; fine at the scale this engine targets, but
// a hot path for a long branch history.
func (e *Engine) loadCommitTx(tx substrate.Tx, pk uint64) (*Commit, error) {
	row, ok, err := tx.GetCommit(pk)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("engine: no commit #%d", pk)
	}

	c := &Commit{
		PK:          row.PK,
		Checksum:    row.Checksum,
		CommittedAt: row.CommittedAt,
		Time:        row.Time,
		ParentPK:    row.ParentPK,
		Added:       make(map[registry.KindID][]*Version),
		Removed:     make(map[registry.KindID][]EternalRef),
	}

	for rowKind, pks := range row.Added {
		kind := registry.KindID(rowKind)
		versions := make([]*Version, 0, len(pks))
		for _, vpk := range pks {
			v, err := loadVersionTx(tx, kind, vpk)
			if err != nil {
				return nil, err
			}
			versions = append(versions, v)
		}
		c.Added[kind] = versions
	}
	for rowKind, ids := range row.Removed {
		kind := registry.KindID(rowKind)
		refs := make([]EternalRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, EternalRef{Kind: kind, ID: id})
		}
		c.Removed[kind] = refs
	}

	if row.ParentPK != nil {
		parent, err := e.loadCommitTx(tx, *row.ParentPK)
		if err != nil {
			return nil, err
		}
		c.parent = parent
	}

	return c, nil
}
