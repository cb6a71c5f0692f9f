package ir

import "github.com/basilc/corec/internal/compiler/symtab"

// LiveSet is a bit-set of local ids, used for live-in/live-out (spec.md
// §4.5); the dominator/dominance-frontier sets (spec.md §4.4) are plain
// map[BlockID]bool instead. It is backed by a map rather than a dense bitvector: the teacher's CFG passes
// (faddat-wazero's ssa/pass_cfg.go) likewise favor maps keyed by *basicBlock
// over bitvectors for block-level sets, and function-local id spaces here
// are small enough that a map's simplicity outweighs a bitvector's density.
type LiveSet map[symtab.LocalID]struct{}

// NewLiveSet returns an empty LiveSet.
func NewLiveSet() LiveSet { return make(LiveSet) }

// Contains reports whether id is a member.
func (s LiveSet) Contains(id symtab.LocalID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id, returning true if this changed the set.
func (s LiveSet) Add(id symtab.LocalID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id from the set.
func (s LiveSet) Remove(id symtab.LocalID) {
	delete(s, id)
}

// UnionInto adds every member of other into s, reporting whether s changed.
func (s LiveSet) UnionInto(other LiveSet) bool {
	changed := false
	for id := range other {
		if s.Add(id) {
			changed = true
		}
	}
	return changed
}

// Clone returns an independent copy of s.
func (s LiveSet) Clone() LiveSet {
	c := make(LiveSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Equal reports whether s and other contain exactly the same ids.
func (s LiveSet) Equal(other LiveSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
