// This file implements spec.md §4.6's DAG query engine: ancestors,
// descendants, version_for, version_sets, and
// relevant_history_with_respect_to. All queries are read-only.
package engine

import (
	"context"

	"github.com/gitrecord/recordvcs/registry"
	"github.com/gitrecord/recordvcs/substrate"
)

// ParentOf returns c's parent commit, resolving it from the substrate if c
// carries a ParentPK but no in-memory parent link. Returns (nil, nil) for a
// root commit.
func (e *Engine) ParentOf(ctx context.Context, c *Commit) (*Commit, error) {
	if c.parent != nil {
		return c.parent, nil
	}
	if c.ParentPK == nil {
		return nil, nil
	}
	var parent *Commit
	err := e.Store.View(ctx, func(tx substrate.Tx) error {
		p, err := e.loadCommitTx(tx, *c.ParentPK)
		if err != nil {
			return err
		}
		parent = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parent, nil
}

// Ancestors returns c's parents transitively, nearest parent first, root
// last. A root commit's ancestor list is empty.
func (e *Engine) Ancestors(ctx context.Context, c *Commit) ([]*Commit, error) {
	var out []*Commit
	cur := c
	for {
		parent, err := e.ParentOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return out, nil
		}
		out = append(out, parent)
		cur = parent
	}
}

// Descendants returns every commit whose parent chain includes c, visited
// depth-first with each node emitted before its own descendants. Sibling
// order follows the substrate's deterministic child order (ChildrenOf).
// c must be sealed: only sealed commits are indexed as someone's parent.
func (e *Engine) Descendants(ctx context.Context, c *Commit) ([]*Commit, error) {
	var out []*Commit
	err := e.Store.View(ctx, func(tx substrate.Tx) error {
		return e.collectDescendants(tx, c.PK, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) collectDescendants(tx substrate.Tx, parentPK uint64, out *[]*Commit) error {
	childPKs, err := tx.ChildrenOf(parentPK)
	if err != nil {
		return err
	}
	for _, pk := range childPKs {
		child, err := e.loadCommitTx(tx, pk)
		if err != nil {
			return err
		}
		*out = append(*out, child)
		if err := e.collectDescendants(tx, pk, out); err != nil {
			return err
		}
	}
	return nil
}

// VersionFor implements version_for(C, E): the live Version of eternal at
// commit c, or nil if c (or an ancestor) removed it and nothing re-added it
// since, or if it was never added in c's history.
func (e *Engine) VersionFor(ctx context.Context, c *Commit, eternal EternalRef) (*Version, error) {
	if c.IsSealed() && e.versionForCache != nil {
		if v, ok := e.versionForCache.Get(versionForKey{c.PK, eternal.Kind, eternal.ID}); ok {
			return v, nil
		}
	}

	v, err := e.versionForUncached(ctx, c, eternal)
	if err != nil {
		return nil, err
	}

	if c.IsSealed() && e.versionForCache != nil {
		e.versionForCache.Add(versionForKey{c.PK, eternal.Kind, eternal.ID}, v)
	}
	return v, nil
}

func (e *Engine) versionForUncached(ctx context.Context, c *Commit, eternal EternalRef) (*Version, error) {
	for _, ref := range c.Removed[eternal.Kind] {
		if ref.ID == eternal.ID {
			return nil, nil
		}
	}
	for _, v := range c.Added[eternal.Kind] {
		if v.Eternal == eternal {
			return v, nil
		}
	}
	parent, err := e.ParentOf(ctx, c)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	return e.VersionFor(ctx, parent, eternal)
}

// VersionSets implements version_sets(C): the live Version set at c, one
// entry per kind, each keyed by eternal id per spec.md §4.6/§6's stated
// contract ("one entry per live Eternal ... keyed by eternal id").
//
// This resolves spec.md §9's Open Question 1 and 2 with the semantically
// coherent behavior the tests exercise: a commit's locally added versions
// override its parent's (not get filtered out by them), and the removed
// filter compares by eternal-id membership, not by dict/object identity.
func (e *Engine) VersionSets(ctx context.Context, c *Commit) (map[registry.KindID]map[uint64]*Version, error) {
	return e.versionSetsByEternal(ctx, c)
}

// versionSetsByEternal is the recursive core of VersionSets, keeping
// Versions keyed by eternal id so "replace parent's version of any entity
// this commit re-adds" and "remove entries this commit's removed_eternals
// names" are both plain map operations.
//
// TODO: recomputes the parent's version set on every call rather than
// caching it per commit PK; acceptable at this engine's target scale, flagged
// in the source as the same "separate query per ancestor" cost.
func (e *Engine) versionSetsByEternal(ctx context.Context, c *Commit) (map[registry.KindID]map[uint64]*Version, error) {
	parent, err := e.ParentOf(ctx, c)
	if err != nil {
		return nil, err
	}

	base := make(map[registry.KindID]map[uint64]*Version)
	if parent != nil {
		parentSets, err := e.versionSetsByEternal(ctx, parent)
		if err != nil {
			return nil, err
		}
		for kind, m := range parentSets {
			cm := make(map[uint64]*Version, len(m))
			for id, v := range m {
				cm[id] = v
			}
			base[kind] = cm
		}
	}

	for kind, versions := range c.Added {
		m, ok := base[kind]
		if !ok {
			m = make(map[uint64]*Version)
			base[kind] = m
		}
		for _, v := range versions {
			m[v.Eternal.ID] = v
		}
	}
	for kind, refs := range c.Removed {
		m, ok := base[kind]
		if !ok {
			continue
		}
		for _, ref := range refs {
			delete(m, ref.ID)
		}
	}
	return base, nil
}

// RelevantHistory implements relevant_history_with_respect_to(C, E): the
// commits in [c, ancestors(c)...], reverse-generational order, that either
// added a Version of eternal or removed it.
func (e *Engine) RelevantHistory(ctx context.Context, c *Commit, eternal EternalRef) ([]*Commit, error) {
	ancestors, err := e.Ancestors(ctx, c)
	if err != nil {
		return nil, err
	}
	chain := append([]*Commit{c}, ancestors...)

	var out []*Commit
	for _, cm := range chain {
		if commitTouchesEternal(cm, eternal) {
			out = append(out, cm)
		}
	}
	return out, nil
}

func commitTouchesEternal(c *Commit, eternal EternalRef) bool {
	for _, v := range c.Added[eternal.Kind] {
		if v.Eternal == eternal {
			return true
		}
	}
	for _, ref := range c.Removed[eternal.Kind] {
		if ref == eternal {
			return true
		}
	}
	return false
}
