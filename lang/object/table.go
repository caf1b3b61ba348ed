package object

const tableMaxLoad = 0.75

// entry is one slot of a Table. An empty slot has Key == nil, Value == nil.
// A tombstone (a deleted entry kept to preserve probe sequences) has
// Key == nil, Value == True.
type entry struct {
	Key   *ObjString
	Value Value
}

// Table is an open-addressed hash table keyed by interned strings, linear
// probing, capacity always a power of two. It backs class method tables,
// instance field tables, and the Heap's string-intern set.
type Table struct {
	count   int // occupied slots: live entries plus tombstones (Delete does not decrement it)
	entries []entry
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{} }

// Count returns the number of occupied slots: live key/value pairs plus any
// tombstones left by Delete since the last growth.
func (t *Table) Count() int { return t.count }

// Get returns the value stored for key, and whether it was present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key, growing the table first if this insertion
// would push the load factor over tableMaxLoad. Returns true if key was not
// already present.
func (t *Table) Set(key *ObjString, value Value) bool {
	if len(t.entries) == 0 || float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	e := t.findEntry(t.entries, key)
	isNew := e.Key == nil
	if isNew && e.Value == nil {
		// a fresh empty slot, not a tombstone being reused
		t.count++
	}
	e.Key = key
	e.Value = value
	return isNew
}

// Delete removes key, leaving a tombstone in its slot so later probes that
// skipped over it during insertion still find their target. Reports whether
// key was present.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = True // tombstone marker
	return true
}

// Has reports whether key is present.
func (t *Table) Has(key *ObjString) bool {
	_, ok := t.Get(key)
	return ok
}

// findEntry locates the slot key belongs in (or its tombstone/empty slot,
// for insertion) via linear probing over capacity = len(entries), which the
// caller guarantees is a power of two.
func (t *Table) findEntry(entries []entry, key *ObjString) *entry {
	mask := uint32(len(entries) - 1)
	index := key.hash & mask
	var tombstone *entry
	for {
		e := &entries[index]
		switch {
		case e.Key == nil:
			if e.Value == nil {
				// truly empty: return the tombstone we passed, if any, so it
				// gets reused instead of growing the probe chain further
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		case e.Key == key:
			return e
		}
		index = (index + 1) & mask
	}
}

// FindInterned looks up a string by its raw bytes and precomputed hash
// without requiring a pre-existing *ObjString key object, the hook the
// Heap's string interner uses to check "do we already have this string"
// before allocating a new ObjString for it.
func (t *Table) FindInterned(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		switch {
		case e.Key == nil:
			if e.Value == nil {
				return nil
			}
			// tombstone: keep probing
		case e.Key.hash == hash && e.Key.chars == chars:
			return e.Key
		}
		index = (index + 1) & mask
	}
}

// grow doubles the table's capacity (or allocates the initial 8-slot table),
// re-probing every live entry into the fresh array and dropping tombstones,
// which is why Count is recomputed from scratch rather than carried over.
func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	fresh := make([]entry, newCap)
	t.count = 0
	for _, e := range t.entries {
		if e.Key == nil {
			continue
		}
		dst := t.findEntry(fresh, e.Key)
		dst.Key = e.Key
		dst.Value = e.Value
		t.count++
	}
	t.entries = fresh
}

// RemoveUnmarkedKeys deletes every entry whose key string has not been
// marked by the collector's trace. Used only on the Heap's intern set: it is
// the mechanism that lets the table hold weak references to its keys, so a
// string that nothing else reaches can still be collected.
func (t *Table) RemoveUnmarkedKeys() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil && !e.Key.marked() {
			e.Key = nil
			e.Value = True
		}
	}
}

// Each calls fn for every live key/value pair, in table slot order. fn must
// not mutate the table.
func (t *Table) Each(fn func(key *ObjString, value Value)) {
	for _, e := range t.entries {
		if e.Key != nil {
			fn(e.Key, e.Value)
		}
	}
}
