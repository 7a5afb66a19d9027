// Package substrate is the engine's view of the "relational persistence
// substrate" that spec.md §1 declares out of scope and treats as an opaque
// transactional key-value/row store. It defines the row shapes of spec.md
// §6's persisted layout and the minimal transactional contract the engine
// needs: atomic multi-row commit, stable row identity, and set-valued
// association tables.
//
// Two implementations are provided: memstore (in-memory, for tests and
// development) and boltstore (durable, backed by github.com/boltdb/bolt).
package substrate

import (
	"context"
	"time"
)

// KindID names a tracked record kind. Duplicated here (rather than imported
// from registry) to keep substrate free of a dependency on the schema
// registry — the substrate only moves bytes and rows, it does not interpret
// schema.
type KindID string

// PointerRef names a slot's current SetPointer, or is the zero value when
// the slot is unset.
type PointerRef struct {
	TargetKind KindID
	PK         uint64
	Set        bool
}

// VersionRow is the persisted row for one Version (spec.md §6: "primary
// key, eternal_ref, checksum, scalar fields ..., one nullable foreign key
// per set-pointer slot").
type VersionRow struct {
	Kind     KindID
	PK       uint64
	// ExternalID is a stable, external-facing identifier for this version
	// row (a UUID string), distinct from PK: PK is an internal
	// auto-increment join key whose numbering is an implementation detail,
	// while ExternalID is safe to hand to a caller that references a draft
	// version before it has a checksum to identify it by.
	ExternalID string
	EternalID  uint64
	Checksum   string // empty == draft
	Scalars    map[string]any
	Slots      map[string]PointerRef
}

// Clone returns a deep copy of the row, since rows are handed out of the
// substrate by value-ish convention but contain maps.
func (v VersionRow) Clone() VersionRow {
	out := v
	out.Scalars = make(map[string]any, len(v.Scalars))
	for k, val := range v.Scalars {
		out.Scalars[k] = val
	}
	out.Slots = make(map[string]PointerRef, len(v.Slots))
	for k, val := range v.Slots {
		out.Slots[k] = val
	}
	return out
}

// PointerRow is the persisted row for one SetPointer (spec.md §6: "primary
// key, checksum, and a many-to-many association").
type PointerRow struct {
	TargetKind KindID
	PK         uint64
	Checksum   string // empty == draft
	TargetIDs  []uint64
}

func (p PointerRow) Clone() PointerRow {
	out := p
	out.TargetIDs = append([]uint64(nil), p.TargetIDs...)
	return out
}

// CommitRow is the persisted row for one Commit (spec.md §6: "primary key,
// checksum, committed_at, time, nullable parent_ref", plus the per-kind
// adds_<k> / removes_<k> association tables).
type CommitRow struct {
	PK          uint64
	Checksum    string // empty == draft
	CommittedAt *time.Time
	Time        time.Time
	ParentPK    *uint64
	Added       map[KindID][]uint64 // kind -> version PKs added by this commit
	Removed     map[KindID][]uint64 // kind -> eternal ids removed by this commit
}

func (c CommitRow) Clone() CommitRow {
	out := c
	out.Added = cloneUint64Map(c.Added)
	out.Removed = cloneUint64Map(c.Removed)
	return out
}

func cloneUint64Map(m map[KindID][]uint64) map[KindID][]uint64 {
	out := make(map[KindID][]uint64, len(m))
	for k, v := range m {
		out[k] = append([]uint64(nil), v...)
	}
	return out
}

// Tx is the set of operations the engine performs against the substrate
// inside a single transaction. Every mutating method call must become
// durable together, or not at all, when the enclosing Store.WithTransaction
// call returns nil.
type Tx interface {
	NextEternalID(kind KindID) (uint64, error)
	NextVersionPK(kind KindID) (uint64, error)
	NextPointerPK(target KindID) (uint64, error)
	NextCommitPK() (uint64, error)

	PutVersion(row VersionRow) error
	GetVersion(kind KindID, pk uint64) (VersionRow, bool, error)

	PutPointer(row PointerRow) error
	GetPointer(target KindID, pk uint64) (PointerRow, bool, error)

	PutCommit(row CommitRow) error
	GetCommit(pk uint64) (CommitRow, bool, error)

	// ChildrenOf returns the PKs of commits whose ParentPK == parentPK, in a
	// stable, deterministic order (substrate id order, per spec.md §4.6).
	ChildrenOf(parentPK uint64) ([]uint64, error)
}

// Store is the handle applications hold. All engine entry points take a
// Store and open their own transaction (or read-only view); the engine never
// holds a Tx across a public API boundary.
type Store interface {
	// WithTransaction runs fn inside a single atomic transaction. If fn
	// returns an error, every write fn performed is rolled back and the
	// Store is left exactly as it was.
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a read-only snapshot. Implementations may permit
	// writes through the same Tx (memstore does, trusting callers), but
	// callers performing DAG queries should treat it as read-only per
	// spec.md §4.6 ("All queries are read-only").
	View(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources (file handles, connections) held by the
	// store.
	Close() error
}
