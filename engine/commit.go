package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gitrecord/recordvcs/engine/errs"
	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/store/hash"
	"github.com/gitrecord/recordvcs/substrate"
)

// Commit is the in-memory representation of spec.md §3's "Commit (C)": a
// node in the DAG enumerating added Versions and removed Eternals, with a
// parent pointer and a checksum that is null until sealed.
type Commit struct {
	PK          uint64 // 0 means draft
	Checksum    string // "" means draft
	CommittedAt *time.Time
	Time        time.Time

	parent   *Commit // in-memory link, present when built by NewCommit
	ParentPK *uint64 // authoritative parent identity once known

	Added   map[registry.KindID][]*Version
	Removed map[registry.KindID][]EternalRef
}

// IsSealed reports whether c has been committed.
func (c *Commit) IsSealed() bool { return c.Checksum != "" }

// Parent returns c's in-memory parent link, or nil for a root commit. It
// never touches the store. NewCommit and Engine.loadCommitTx both set the
// link; a Commit that carries only ParentPK has parent == nil here, and
// Engine.ParentOf resolves such a parent from the substrate.
func (c *Commit) Parent() *Commit { return c.parent }

// NewCommit constructs a draft Commit. parent may be nil (a root commit) or
// any Commit, sealed or not — spec.md §4.5 only requires the parent to be
// sealed by the time Commit() is called, not at construction time.
func (e *Engine) NewCommit(parent *Commit) *Commit {
	c := &Commit{
		Time:    time.Now(),
		Added:   make(map[registry.KindID][]*Version),
		Removed: make(map[registry.KindID][]EternalRef),
		parent:  parent,
	}
	if parent != nil && parent.PK != 0 {
		pk := parent.PK
		c.ParentPK = &pk
	}
	return c
}

// AddVersions groups versions by kind and replaces added_versions[K] with
// the given set for each kind present, per spec.md §4.5's add_versions
// ("set semantics, not append"). Kinds absent from versions are untouched.
func (e *Engine) AddVersions(c *Commit, versions []*Version) error {
	if c.IsSealed() {
		e.Metrics.LockedWriteRejections.Inc()
		err := errs.Locked("commit is sealed")
		e.Log.Warn().Uint64("pk", c.PK).Err(err).Msg("rejected write to sealed commit")
		return err
	}
	byKind := make(map[registry.KindID][]*Version)
	for _, v := range versions {
		byKind[v.Kind] = append(byKind[v.Kind], v)
	}
	for kind, vs := range byKind {
		c.Added[kind] = vs
	}
	return nil
}

// Removable is anything RemoveObjects can coerce to an EternalRef: a
// *Version (coerced via its Eternal) or an EternalRef directly.
type Removable interface{}

// RemoveObjects coerces each item to its Eternal, groups by kind, and
// replaces removed_eternals[K] accordingly, per spec.md §4.5's
// remove_objects.
func (e *Engine) RemoveObjects(c *Commit, items []Removable) error {
	if c.IsSealed() {
		e.Metrics.LockedWriteRejections.Inc()
		err := errs.Locked("commit is sealed")
		e.Log.Warn().Uint64("pk", c.PK).Err(err).Msg("rejected write to sealed commit")
		return err
	}
	byKind := make(map[registry.KindID][]EternalRef)
	for _, item := range items {
		var ref EternalRef
		switch t := item.(type) {
		case *Version:
			ref = t.Eternal
		case EternalRef:
			ref = t
		default:
			return fmt.Errorf("engine: RemoveObjects: unsupported item type %T", item)
		}
		byKind[ref.Kind] = append(byKind[ref.Kind], ref)
	}
	for kind, refs := range byKind {
		c.Removed[kind] = refs
	}
	return nil
}

// Commit seals c: the seal protocol of spec.md §4.5. It finalizes every
// unsealed added Version and, for each, any unsealed slot SetPointer; then
// computes c's checksum and stamps committed_at; all inside one atomic
// substrate transaction. Resealing an already-sealed commit is a no-op,
// consistent with the no-op choice made for Version and SetPointer
// finalization (spec.md §8's round-trip law).
func (e *Engine) Commit(ctx context.Context, c *Commit) error {
	if c.IsSealed() {
		return nil
	}
	if c.parent != nil && !c.parent.IsSealed() {
		e.Metrics.ParentNotCommittedTotal.Inc()
		err := errs.ParentUnsealed("commit's parent has not been sealed")
		e.Log.Warn().Err(err).Msg("refusing to seal commit with unsealed parent")
		return err
	}

	// A boltstore transaction can be retried by backoff.Retry after a
	// transient failure rolls it back, re-invoking this closure from
	// scratch — but finalizeVersionTx/finalizePointerTx mutate v.Checksum,
	// v.PK, and p.Checksum as a side effect, and their own IsSealed()
	// no-op guard (meant to make a *direct* reseal idempotent) would
	// otherwise make a retried attempt skip re-writing anything a failed
	// prior attempt already "sealed" in memory, even though that attempt's
	// writes never reached the store. Snapshot every version/pointer this
	// commit touches before the first attempt, and reset to that snapshot
	// at the top of each attempt, so every attempt starts unsealed and
	// actually re-writes its rows.
	type versionState struct {
		checksum string
		pk       uint64
	}
	origVersions := make(map[*Version]versionState)
	origPointers := make(map[*SetPointer]string)
	for _, kind := range e.Registry.TrackedKinds() {
		for _, v := range c.Added[kind] {
			origVersions[v] = versionState{checksum: v.Checksum, pk: v.PK}
			for _, p := range v.Slots {
				if p != nil {
					origPointers[p] = p.Checksum
				}
			}
		}
	}

	err := e.Store.WithTransaction(ctx, func(tx substrate.Tx) error {
		for v, state := range origVersions {
			v.Checksum = state.checksum
			v.PK = state.pk
		}
		for p, checksum := range origPointers {
			p.Checksum = checksum
		}

		addedPKs := make(map[substrate.KindID][]uint64)
		removedIDs := make(map[substrate.KindID][]uint64)
		var checksumInput string

		for _, kind := range e.Registry.TrackedKinds() {
			versions := c.Added[kind]
			var kindChecksums string
			pks := make([]uint64, 0, len(versions))
			for _, v := range versions {
				checksum, err := finalizeVersionTx(tx, v)
				if err != nil {
					return err
				}
				for _, slotName := range sortedVersionSlotNames(v) {
					p := v.Slots[slotName]
					if p == nil {
						continue
					}
					if err := finalizePointerTx(tx, e.Metrics, p); err != nil {
						return err
					}
				}
				kindChecksums += checksum
				pks = append(pks, v.PK)
			}
			if len(pks) > 0 {
				addedPKs[substrate.KindID(kind)] = pks
			}
			checksumInput += kindChecksums
		}

		for kind, refs := range c.Removed {
			ids := make([]uint64, 0, len(refs))
			for _, ref := range refs {
				ids = append(ids, ref.ID)
			}
			removedIDs[substrate.KindID(kind)] = ids
		}

		parentChecksum := ""
		if c.parent != nil {
			parentChecksum = c.parent.Checksum
		}
		c.Checksum = hash.DigestString(hash.Concat(checksumInput, parentChecksum))

		pk, err := tx.NextCommitPK()
		if err != nil {
			return err
		}
		c.PK = pk
		now := time.Now()
		c.CommittedAt = &now
		if c.parent != nil {
			parentPK := c.parent.PK
			c.ParentPK = &parentPK
		}

		row := substrate.CommitRow{
			PK:          c.PK,
			Checksum:    c.Checksum,
			CommittedAt: c.CommittedAt,
			Time:        c.Time,
			ParentPK:    c.ParentPK,
			Added:       addedPKs,
			Removed:     removedIDs,
		}
		return tx.PutCommit(row)
	})
	if err != nil {
		c.Checksum = ""
		c.PK = 0
		c.CommittedAt = nil
		for v, state := range origVersions {
			v.Checksum = state.checksum
			v.PK = state.pk
		}
		for p, checksum := range origPointers {
			p.Checksum = checksum
		}
		return err
	}

	for _, state := range origVersions {
		if state.checksum == "" {
			e.Metrics.VersionsSealed.Inc()
		}
	}
	e.Metrics.CommitsSealed.Inc()
	e.Log.Debug().Uint64("pk", c.PK).Str("checksum", c.Checksum).Msg("commit sealed")
	return nil
}

func sortedVersionSlotNames(v *Version) []string {
	names := make([]string, 0, len(v.Slots))
	for name := range v.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
