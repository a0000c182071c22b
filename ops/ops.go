// Package ops implements the binary operator dispatch table from
// spec.md §4.F: a per-operator DispatchGroup of a sorted cache plus a
// definition vector, with specificity-ordered resolution on a cache
// miss, and built-in fast paths for the primitive cross-product.
package ops

import (
	"sort"
	"sync"

	"github.com/ty-lang/tyrt/value"
)

// key packs two class/type ids the way spec.md §4.F does: "key = (t1
// << 32) | t2".
type key uint64

func makeKey(t1, t2 int) key { return key(uint64(uint32(t1))<<32 | uint64(uint32(t2))) }

type cacheEntry struct {
	k   key
	ref value.Value
}

type def struct {
	t1, t2 int
	ref    value.Value
	order  int // registration order, for tie-break
}

// Subtyper is implemented by class.Table: ⊑ in spec.md §4.F's matching
// rule ("a definition matches when t1 ⊑ def.t1 ∧ t2 ⊑ def.t2") is the
// class package's IsSubclass.
type Subtyper interface {
	IsSubclass(a, b int) bool
}

// Group is one operator's dispatch group: spec.md §4.F "DispatchGroup
// (rwlock + sorted cache + definition vector)".
type Group struct {
	mu    sync.RWMutex
	cache []cacheEntry
	defs  []def
}

// Table holds one Group per interned operator id.
type Table struct {
	mu     sync.Mutex
	groups map[int]*Group
	sub    Subtyper
}

func NewTable(sub Subtyper) *Table {
	return &Table{groups: map[int]*Group{}, sub: sub}
}

func (t *Table) group(op int) *Group {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[op]
	if !ok {
		g = &Group{}
		t.groups[op] = g
	}
	return g
}

// Register installs a definition for operand classes (t1, t2),
// invalidating the group's cache (spec.md §4.F: "Registration
// invalidates the group's cache").
func (t *Table) Register(op, t1, t2 int, ref value.Value) {
	g := t.group(op)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defs = append(g.defs, def{t1: t1, t2: t2, ref: ref, order: len(g.defs)})
	g.cache = nil
}

// NoImpl is the sentinel Dispatch returns when no definition matches.
var NoImpl = value.Value{}

// Dispatch implements spec.md §4.F's 4-step protocol.
func (t *Table) Dispatch(op, t1, t2 int) (value.Value, bool) {
	g := t.group(op)
	k := makeKey(t1, t2)

	g.mu.RLock()
	if ref, ok := g.lookupCache(k); ok {
		g.mu.RUnlock()
		return ref, true
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check under the write lock: another goroutine may have
	// populated the cache while we waited.
	if ref, ok := g.lookupCache(k); ok {
		return ref, true
	}

	var best *def
	for i := range g.defs {
		d := &g.defs[i]
		if !t.sub.IsSubclass(t1, d.t1) || !t.sub.IsSubclass(t2, d.t2) {
			continue
		}
		if best == nil || moreSpecific(t, d, best) {
			best = d
		}
	}
	if best == nil {
		return NoImpl, false
	}
	g.insertCache(k, best.ref)
	return best.ref, true
}

// moreSpecific reports whether a is strictly more specific than b:
// a's operand classes are subclasses of b's but not vice versa. Ties
// between incomparable matches keep whichever was registered first
// (spec.md §4.F: "tie between incomparable matches is resolved in
// registration order"), so moreSpecific only ever replaces best with a
// strictly narrower match.
func moreSpecific(t *Table, a, b *def) bool {
	aNarrower := t.sub.IsSubclass(a.t1, b.t1) && t.sub.IsSubclass(a.t2, b.t2)
	bNarrower := t.sub.IsSubclass(b.t1, a.t1) && t.sub.IsSubclass(b.t2, a.t2)
	if aNarrower && !bNarrower {
		return true
	}
	if bNarrower && !aNarrower {
		return false
	}
	// Incomparable (or identical specificity): keep the earlier
	// registration.
	return a.order < b.order
}

func (g *Group) lookupCache(k key) (value.Value, bool) {
	i := sort.Search(len(g.cache), func(i int) bool { return g.cache[i].k >= k })
	if i < len(g.cache) && g.cache[i].k == k {
		return g.cache[i].ref, true
	}
	return value.Value{}, false
}

func (g *Group) insertCache(k key, ref value.Value) {
	i := sort.Search(len(g.cache), func(i int) bool { return g.cache[i].k >= k })
	g.cache = append(g.cache, cacheEntry{})
	copy(g.cache[i+1:], g.cache[i:])
	g.cache[i] = cacheEntry{k: k, ref: ref}
}
