// Package symtab implements the process-wide interning tables described in
// spec.md §2 and §4.2: labels, locals, and string constants are interned to
// dense, append-only ids. Anonymous names follow the basil compiler's
// original naming scheme (".L<N>" for labels, ".t<N>" for locals, ".CC<N>"
// for string constants) recovered from original_source/compiler/ir.cpp and
// ssa.cpp.
package symtab

import (
	"fmt"

	"github.com/basilc/corec/internal/compiler/symtab/typeref"
)

// LabelID is a dense, append-only identifier for an interned label.
type LabelID uint32

// LocalID is a dense, append-only identifier for an interned local
// (a temporary or named variable slot).
type LocalID uint32

// ConstantID is a dense, append-only identifier for an interned constant.
type ConstantID uint32

// Local is the per-local bookkeeping entry described in spec.md §3.
//
// After register allocation exactly one of Reg >= 0 or Offset != 0 holds,
// unless the value is provably dead, in which case the allocator assigns it
// the designated scratch register and its Offset stays 0 (spec.md §4.6
// step 4).
type Local struct {
	Name   string
	SSANum uint32
	Type   typeref.Type
	Reg    int32 // -1 if not assigned to a physical register.
	Offset int32 // 0 if not spilled to the frame.
}

// Constant is a string (or other byte-payload) constant entry. The payload
// always carries a terminating zero byte, matching ssa.cpp's string constant
// encoding; the label addresses the first payload byte.
type Constant struct {
	Name string
	Data []byte
	Type typeref.Type
}

// Table is the process-wide, append-only, insertion-ordered interning table
// for labels, locals, and constants. It is safe to share a single Table
// across every Function compiled in a process, matching spec.md §5's
// "process-wide label/local/constant tables" shared-resource model.
type Table struct {
	labels    []string
	labelIdx  map[string]LabelID
	anonLabel uint32

	locals    []Local
	localIdx  map[string]LocalID
	anonLocal uint32

	constants []Constant
	anonConst uint32
}

// New returns an empty, ready-to-use Table.
func New() *Table {
	return &Table{
		labelIdx: make(map[string]LabelID),
		localIdx: make(map[string]LocalID),
	}
}

// InternLabel interns name, returning its existing id if already present.
func (t *Table) InternLabel(name string) LabelID {
	if id, ok := t.labelIdx[name]; ok {
		return id
	}
	id := LabelID(len(t.labels))
	t.labels = append(t.labels, name)
	t.labelIdx[name] = id
	return id
}

// AnonLabel mints a fresh, never-before-used label named ".L<N>".
func (t *Table) AnonLabel() LabelID {
	name := fmt.Sprintf(".L%d", t.anonLabel)
	t.anonLabel++
	return t.InternLabel(name)
}

// Label returns the name of a previously interned label. Panics if id is
// out of bounds, per spec.md §7's "out-of-bounds" error kind.
func (t *Table) Label(id LabelID) string {
	return t.labels[id]
}

// NumLabels reports how many labels have been interned so far.
func (t *Table) NumLabels() int { return len(t.labels) }

// CreateLocal registers a new local entry. If name is empty, a fresh
// anonymous name ".t<N>" is minted, matching ir.cpp's anonymous_locals
// counter. Locals are never deduplicated by name: each call allocates a
// fresh id, since two locals may legitimately share a source name across
// SSA renumbering.
func (t *Table) CreateLocal(name string, typ typeref.Type) LocalID {
	if name == "" {
		name = fmt.Sprintf(".t%d", t.anonLocal)
		t.anonLocal++
	}
	id := LocalID(len(t.locals))
	t.locals = append(t.locals, Local{Name: name, Type: typ, Reg: -1})
	return id
}

// Local returns a pointer to the local's mutable bookkeeping entry, so that
// register allocation can write Reg/Offset in place.
func (t *Table) Local(id LocalID) *Local {
	return &t.locals[id]
}

// NumLocals reports how many locals have been interned so far.
func (t *Table) NumLocals() int { return len(t.locals) }

// InternConstant interns a byte payload (e.g. a string literal) as a new
// constant, appending a terminating zero byte as ssa.cpp does, and returns
// the label that addresses it. The constant itself is also recorded.
func (t *Table) InternConstant(payload []byte, typ typeref.Type) (ConstantID, LabelID) {
	name := fmt.Sprintf(".CC%d", t.anonConst)
	t.anonConst++

	data := make([]byte, len(payload)+1)
	copy(data, payload)
	// data[len(payload)] is already the zero terminator.

	id := ConstantID(len(t.constants))
	t.constants = append(t.constants, Constant{Name: name, Data: data, Type: typ})
	return id, t.InternLabel(name)
}

// Constant returns a previously interned constant entry.
func (t *Table) Constant(id ConstantID) *Constant {
	return &t.constants[id]
}

// NumConstants reports how many constants have been interned so far.
func (t *Table) NumConstants() int { return len(t.constants) }
