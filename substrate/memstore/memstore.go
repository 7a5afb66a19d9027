// Package memstore is an in-memory substrate.Store, grounded on the
// teacher's go/chunks in-memory chunk store (chunks.NewTestStore /
// MemoryStore): a mutex-guarded map standing in for the relational
// substrate, suitable for unit tests and small embeddings that do not need
// durability across process restarts.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/gitrecord/recordvcs/substrate"
)

type versionKey struct {
	kind substrate.KindID
	pk   uint64
}

type pointerKey struct {
	target substrate.KindID
	pk     uint64
}

// Store is a process-local, in-memory substrate.Store.
type Store struct {
	mu sync.Mutex

	nextEternal map[substrate.KindID]uint64
	nextVersion map[substrate.KindID]uint64
	nextPointer map[substrate.KindID]uint64
	nextCommit  uint64

	versions map[versionKey]substrate.VersionRow
	pointers map[pointerKey]substrate.PointerRow
	commits  map[uint64]substrate.CommitRow
	children map[uint64][]uint64 // parentPK -> child PKs, in insertion order
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		nextEternal: make(map[substrate.KindID]uint64),
		nextVersion: make(map[substrate.KindID]uint64),
		nextPointer: make(map[substrate.KindID]uint64),
		versions:    make(map[versionKey]substrate.VersionRow),
		pointers:    make(map[pointerKey]substrate.PointerRow),
		commits:     make(map[uint64]substrate.CommitRow),
		children:    make(map[uint64][]uint64),
	}
}

// tx implements substrate.Tx directly against the Store's maps while s.mu is
// held for the whole transaction, giving the single-writer serializability
// spec.md §5 asks of "the substrate's serialization".
type tx struct {
	s *Store
}

// WithTransaction runs fn holding the store mutex for the duration, rolling
// back (discarding) no partial state since all writes are applied directly;
// memstore instead snapshots before fn runs and restores the snapshot if fn
// errors, giving the same atomicity guarantee spec.md §5 requires.
func (s *Store) WithTransaction(ctx context.Context, fn func(t substrate.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// View runs fn with the store mutex held, read-only by convention.
func (s *Store) View(ctx context.Context, fn func(t substrate.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{s: s})
}

func (s *Store) Close() error { return nil }

type snapshot struct {
	nextEternal map[substrate.KindID]uint64
	nextVersion map[substrate.KindID]uint64
	nextPointer map[substrate.KindID]uint64
	nextCommit  uint64
	versions    map[versionKey]substrate.VersionRow
	pointers    map[pointerKey]substrate.PointerRow
	commits     map[uint64]substrate.CommitRow
	children    map[uint64][]uint64
}

func (s *Store) snapshot() snapshot {
	cp := snapshot{
		nextEternal: copyUintMap(s.nextEternal),
		nextVersion: copyUintMap(s.nextVersion),
		nextPointer: copyUintMap(s.nextPointer),
		nextCommit:  s.nextCommit,
		versions:    make(map[versionKey]substrate.VersionRow, len(s.versions)),
		pointers:    make(map[pointerKey]substrate.PointerRow, len(s.pointers)),
		commits:     make(map[uint64]substrate.CommitRow, len(s.commits)),
		children:    make(map[uint64][]uint64, len(s.children)),
	}
	for k, v := range s.versions {
		cp.versions[k] = v.Clone()
	}
	for k, v := range s.pointers {
		cp.pointers[k] = v.Clone()
	}
	for k, v := range s.commits {
		cp.commits[k] = v.Clone()
	}
	for k, v := range s.children {
		cp.children[k] = append([]uint64(nil), v...)
	}
	return cp
}

func (s *Store) restore(cp snapshot) {
	s.nextEternal = cp.nextEternal
	s.nextVersion = cp.nextVersion
	s.nextPointer = cp.nextPointer
	s.nextCommit = cp.nextCommit
	s.versions = cp.versions
	s.pointers = cp.pointers
	s.commits = cp.commits
	s.children = cp.children
}

func copyUintMap(m map[substrate.KindID]uint64) map[substrate.KindID]uint64 {
	out := make(map[substrate.KindID]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tx) NextEternalID(kind substrate.KindID) (uint64, error) {
	t.s.nextEternal[kind]++
	return t.s.nextEternal[kind], nil
}

func (t *tx) NextVersionPK(kind substrate.KindID) (uint64, error) {
	t.s.nextVersion[kind]++
	return t.s.nextVersion[kind], nil
}

func (t *tx) NextPointerPK(target substrate.KindID) (uint64, error) {
	t.s.nextPointer[target]++
	return t.s.nextPointer[target], nil
}

func (t *tx) NextCommitPK() (uint64, error) {
	t.s.nextCommit++
	return t.s.nextCommit, nil
}

func (t *tx) PutVersion(row substrate.VersionRow) error {
	t.s.versions[versionKey{row.Kind, row.PK}] = row.Clone()
	return nil
}

func (t *tx) GetVersion(kind substrate.KindID, pk uint64) (substrate.VersionRow, bool, error) {
	row, ok := t.s.versions[versionKey{kind, pk}]
	if !ok {
		return substrate.VersionRow{}, false, nil
	}
	return row.Clone(), true, nil
}

func (t *tx) PutPointer(row substrate.PointerRow) error {
	t.s.pointers[pointerKey{row.TargetKind, row.PK}] = row.Clone()
	return nil
}

func (t *tx) GetPointer(target substrate.KindID, pk uint64) (substrate.PointerRow, bool, error) {
	row, ok := t.s.pointers[pointerKey{target, pk}]
	if !ok {
		return substrate.PointerRow{}, false, nil
	}
	return row.Clone(), true, nil
}

func (t *tx) PutCommit(row substrate.CommitRow) error {
	if row.ParentPK != nil {
		children := t.s.children[*row.ParentPK]
		found := false
		for _, pk := range children {
			if pk == row.PK {
				found = true
				break
			}
		}
		if !found {
			t.s.children[*row.ParentPK] = append(children, row.PK)
		}
	}
	t.s.commits[row.PK] = row.Clone()
	return nil
}

func (t *tx) GetCommit(pk uint64) (substrate.CommitRow, bool, error) {
	row, ok := t.s.commits[pk]
	if !ok {
		return substrate.CommitRow{}, false, nil
	}
	return row.Clone(), true, nil
}

func (t *tx) ChildrenOf(parentPK uint64) ([]uint64, error) {
	out := append([]uint64(nil), t.s.children[parentPK]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
