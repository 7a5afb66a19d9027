// Package boltstore is a durable substrate.Store backed by
// github.com/boltdb/bolt, a direct dependency of the teacher's go.mod. Bolt
// gives us exactly the primitive spec.md §5 asks for: a single-writer,
// serializable transaction that either commits all of its writes or none of
// them.
//
// Bucket layout mirrors spec.md §6's persisted layout:
//
//	versions/<kind>      hash bucket, key = big-endian PK, value = JSON VersionRow
//	pointers/<kind>      hash bucket, key = big-endian PK, value = JSON PointerRow
//	commits              key = big-endian PK, value = JSON CommitRow
//	children             key = big-endian parentPK, value = JSON []uint64
//	counters             key = counter name, value = big-endian uint64
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/cenkalti/backoff/v4"

	"github.com/gitrecord/recordvcs/substrate"
)

var (
	bucketCommits  = []byte("commits")
	bucketChildren = []byte("children")
	bucketCounters = []byte("counters")
)

func versionsBucketName(kind substrate.KindID) []byte { return []byte("versions/" + string(kind)) }
func pointersBucketName(kind substrate.KindID) []byte { return []byte("pointers/" + string(kind)) }

// Store is a bolt-backed substrate.Store.
type Store struct {
	db *bolt.DB
	// MaxRetries bounds how many times a transaction is retried on a
	// transient bolt contention error before the error is surfaced to the
	// caller. Zero means "use the package default" (3).
	MaxRetries int
}

// Open opens (creating if absent) a bolt database file at path.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	if err := db.Update(func(btx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCommits, bucketChildren, bucketCounters} {
			if _, err := btx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// WithTransaction retries transient bolt contention a bounded number of
// times with exponential backoff before surfacing the final error, matching
// the teacher's use of github.com/cenkalti/backoff/v4 for retrying
// contended operations.
func (s *Store) WithTransaction(ctx context.Context, fn func(t substrate.Tx) error) error {
	retries := s.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries))
	bo = backoff.WithContext(bo, ctx)

	return backoff.Retry(func() error {
		err := s.db.Update(func(btx *bolt.Tx) error {
			return fn(&tx{btx: btx})
		})
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func isRetryable(err error) bool {
	return err == bolt.ErrDatabaseNotOpen || err == bolt.ErrTxNotWritable
}

// View runs fn inside a read-only bolt transaction.
func (s *Store) View(ctx context.Context, fn func(t substrate.Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx, readOnly: true})
	})
}

type tx struct {
	btx      *bolt.Tx
	readOnly bool
}

func (t *tx) nextSeq(name []byte) (uint64, error) {
	if t.readOnly {
		return 0, fmt.Errorf("boltstore: cannot allocate id in a read-only transaction")
	}
	b := t.btx.Bucket(bucketCounters)
	cur := uint64(0)
	if v := b.Get(name); v != nil {
		cur = binary.BigEndian.Uint64(v)
	}
	cur++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, cur)
	if err := b.Put(name, buf); err != nil {
		return 0, err
	}
	return cur, nil
}

func (t *tx) NextEternalID(kind substrate.KindID) (uint64, error) {
	return t.nextSeq([]byte("eternal/" + string(kind)))
}

func (t *tx) NextVersionPK(kind substrate.KindID) (uint64, error) {
	return t.nextSeq([]byte("version/" + string(kind)))
}

func (t *tx) NextPointerPK(target substrate.KindID) (uint64, error) {
	return t.nextSeq([]byte("pointer/" + string(target)))
}

func (t *tx) NextCommitPK() (uint64, error) {
	return t.nextSeq([]byte("commit"))
}

func pkKey(pk uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, pk)
	return buf
}

func (t *tx) PutVersion(row substrate.VersionRow) error {
	b, err := t.btx.CreateBucketIfNotExists(versionsBucketName(row.Kind))
	if err != nil {
		return err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return b.Put(pkKey(row.PK), data)
}

func (t *tx) GetVersion(kind substrate.KindID, pk uint64) (substrate.VersionRow, bool, error) {
	b := t.btx.Bucket(versionsBucketName(kind))
	if b == nil {
		return substrate.VersionRow{}, false, nil
	}
	data := b.Get(pkKey(pk))
	if data == nil {
		return substrate.VersionRow{}, false, nil
	}
	var row substrate.VersionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return substrate.VersionRow{}, false, err
	}
	return row, true, nil
}

func (t *tx) PutPointer(row substrate.PointerRow) error {
	b, err := t.btx.CreateBucketIfNotExists(pointersBucketName(row.TargetKind))
	if err != nil {
		return err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return b.Put(pkKey(row.PK), data)
}

func (t *tx) GetPointer(target substrate.KindID, pk uint64) (substrate.PointerRow, bool, error) {
	b := t.btx.Bucket(pointersBucketName(target))
	if b == nil {
		return substrate.PointerRow{}, false, nil
	}
	data := b.Get(pkKey(pk))
	if data == nil {
		return substrate.PointerRow{}, false, nil
	}
	var row substrate.PointerRow
	if err := json.Unmarshal(data, &row); err != nil {
		return substrate.PointerRow{}, false, err
	}
	return row, true, nil
}

func (t *tx) PutCommit(row substrate.CommitRow) error {
	b := t.btx.Bucket(bucketCommits)
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if err := b.Put(pkKey(row.PK), data); err != nil {
		return err
	}
	if row.ParentPK != nil {
		kids, err := t.childrenOf(*row.ParentPK)
		if err != nil {
			return err
		}
		present := false
		for _, pk := range kids {
			if pk == row.PK {
				present = true
				break
			}
		}
		if !present {
			kids = append(kids, row.PK)
		}
		data, err := json.Marshal(kids)
		if err != nil {
			return err
		}
		cb := t.btx.Bucket(bucketChildren)
		if err := cb.Put(pkKey(*row.ParentPK), data); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) GetCommit(pk uint64) (substrate.CommitRow, bool, error) {
	b := t.btx.Bucket(bucketCommits)
	data := b.Get(pkKey(pk))
	if data == nil {
		return substrate.CommitRow{}, false, nil
	}
	var row substrate.CommitRow
	if err := json.Unmarshal(data, &row); err != nil {
		return substrate.CommitRow{}, false, err
	}
	return row, true, nil
}

func (t *tx) childrenOf(parentPK uint64) ([]uint64, error) {
	b := t.btx.Bucket(bucketChildren)
	data := b.Get(pkKey(parentPK))
	if data == nil {
		return nil, nil
	}
	var kids []uint64
	if err := json.Unmarshal(data, &kids); err != nil {
		return nil, err
	}
	return kids, nil
}

func (t *tx) ChildrenOf(parentPK uint64) ([]uint64, error) {
	return t.childrenOf(parentPK)
}
