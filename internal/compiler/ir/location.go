// Package ir implements the Basil compiler core's intermediate
// representation: Location, Instruction, BasicBlock and Function (spec.md
// §3), the IR Builder (§4.1), SSA construction (§4.3), dominance (§4.4),
// liveness (§4.5), the pass manager (§2, §6) and the cleanup passes (§4.8).
//
// The package mirrors the shape of _examples/faddat-wazero's
// internal/engine/wazevo/ssa package (an arena of basic blocks linked by
// id, a linked list of instructions per block, a builder that owns the
// lifetime of everything it allocates) but implements classic Cytron-style
// SSA with an explicit PHI opcode and dominance frontiers, rather than the
// teacher's block-argument SSA, per spec.md §3/§4.3.
package ir

import (
	"fmt"

	"github.com/basilc/corec/internal/compiler/symtab"
)

// LocationTag is the tag of the Location sum type (spec.md §3).
type LocationTag uint8

const (
	// LocNone denotes the absence of an operand (a void-typed result).
	LocNone LocationTag = iota
	// LocLocal carries a dense id into the local table.
	LocLocal
	// LocImmediate carries a signed 64-bit integer constant.
	LocImmediate
	// LocConstant carries a dense id into the constant table.
	LocConstant
	// LocLabel carries a dense id into the label table.
	LocLabel
	// LocRegister carries a target-specific physical register id.
	LocRegister
)

// Location is a tagged value describing the "address" of an IR operand.
//
// Invariants (spec.md §3): Immediate is always a signed 64-bit integer;
// Local/Constant/Label carry a dense id into the corresponding interning
// table; Register carries a target-specific physical register id. Never
// reinterpret-cast between variants (spec.md §9) — read only the field that
// matches Tag.
type Location struct {
	Tag       LocationTag
	Local     symtab.LocalID
	Immediate int64
	Constant  symtab.ConstantID
	Label     symtab.LabelID
	Register  int32
}

// NoneLoc is the canonical LocNone value.
var NoneLoc = Location{Tag: LocNone}

// LocalLoc builds a Location addressing a local.
func LocalLoc(id symtab.LocalID) Location { return Location{Tag: LocLocal, Local: id} }

// ImmediateLoc builds a Location holding a signed 64-bit immediate.
func ImmediateLoc(v int64) Location { return Location{Tag: LocImmediate, Immediate: v} }

// ConstantLoc builds a Location addressing an interned constant.
func ConstantLoc(id symtab.ConstantID) Location { return Location{Tag: LocConstant, Constant: id} }

// LabelLoc builds a Location addressing an interned label.
func LabelLoc(id symtab.LabelID) Location { return Location{Tag: LocLabel, Label: id} }

// RegisterLoc builds a Location naming a physical register.
func RegisterLoc(reg int32) Location { return Location{Tag: LocRegister, Register: reg} }

// IsNone reports whether this Location denotes the absence of an operand.
func (l Location) IsNone() bool { return l.Tag == LocNone }

// String implements fmt.Stringer for debug dumps.
func (l Location) String() string {
	switch l.Tag {
	case LocNone:
		return "-"
	case LocLocal:
		return fmt.Sprintf("local%d", l.Local)
	case LocImmediate:
		return fmt.Sprintf("#%d", l.Immediate)
	case LocConstant:
		return fmt.Sprintf("const%d", l.Constant)
	case LocLabel:
		return fmt.Sprintf("label%d", l.Label)
	case LocRegister:
		return fmt.Sprintf("reg%d", l.Register)
	default:
		panic("BUG: unknown Location tag")
	}
}
