// Package intern implements the bi-map from names to small integer ids
// used throughout the runtime for member names, tag names, and built-in
// method slots. Ids are stable for the lifetime of the process and are
// assigned in insertion order.
package intern

import "sync"

// Table is a string<->id bi-map. The zero value is ready to use.
type Table struct {
	mu   sync.RWMutex
	ids  map[string]int
	name []string
}

// New returns an empty, ready-to-use Table.
func New() *Table {
	return &Table{ids: make(map[string]int)}
}

// Intern returns the id for name, assigning a new one on first sight.
// Intern is idempotent: repeated calls with the same bytes return the
// same id for the lifetime of t.
func (t *Table) Intern(name string) int {
	t.mu.RLock()
	if id, ok := t.ids[name]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	if t.ids == nil {
		t.ids = make(map[string]int)
	}
	id := len(t.name)
	t.ids[name] = id
	t.name = append(t.name, name)
	return id
}

// NameOf returns the name that was interned as id, if any.
func (t *Table) NameOf(id int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.name) {
		return "", false
	}
	return t.name[id], true
}

// MustNameOf panics if id was never interned; used by call sites that
// only ever pass ids obtained from Intern itself.
func (t *Table) MustNameOf(id int) string {
	name, ok := t.NameOf(id)
	if !ok {
		panic("intern: unknown id")
	}
	return name
}

// Len reports how many distinct names have been interned.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.name)
}

// Lookup returns the id for name without interning it.
func (t *Table) Lookup(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[name]
	return id, ok
}

// Seed pre-populates the table from a compiler-produced snapshot
// (bytecode.Program.Interned), preserving the original ids exactly.
func (t *Table) Seed(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = make(map[string]int, len(names))
	t.name = append([]string(nil), names...)
	for i, n := range t.name {
		t.ids[n] = i
	}
}
