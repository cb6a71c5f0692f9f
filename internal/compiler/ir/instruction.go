package ir

import (
	"fmt"
	"strings"

	"github.com/basilc/corec/internal/compiler/symtab/typeref"
)

// Opcode enumerates every IR instruction kind named in spec.md §3.
//
// The teacher's own Opcode (faddat-wazero's internal/engine/wazevo/ssa
// Instruction) is a near-empty stub in this snapshot ("TODO: adds fields");
// this type keeps the teacher's "uint32 enum with per-variant doc comment"
// shape but replaces the cranelift-derived wasm opcode set with spec.md's
// three-address opcode set.
type Opcode uint32

const (
	OpLoad Opcode = 1 + iota
	OpStore
	OpLoadArg
	OpGoto
	OpIfZero
	OpCall
	OpAddress
	OpNot
	OpLoadPtr
	OpStorePtr
	OpRet
	OpLabel
	OpAssign
	OpPhi
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg // declared per spec.md §9 Open Question; treated as a no-op until given semantics.

	// OpIfNotZero is not in spec.md §3's canonical opcode list, but §4.8's
	// cleanup_nops explicitly produces it ("rewrite as IF_NOT_ZERO T") when
	// narrowing a two-target conditional branch down to one target. It is
	// only ever produced by cleanup, never by the builder.
	OpIfNotZero
)

var opcodeNames = map[Opcode]string{
	OpLoad: "load", OpStore: "store", OpLoadArg: "load_arg", OpGoto: "goto",
	OpIfZero: "if_zero", OpCall: "call", OpAddress: "address", OpNot: "not",
	OpLoadPtr: "load_ptr", OpStorePtr: "store_ptr", OpRet: "ret", OpLabel: "label",
	OpAssign: "assign", OpPhi: "phi", OpAdd: "add", OpSub: "sub", OpMul: "mul",
	OpDiv: "div", OpRem: "rem", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpNeg: "neg", OpIfNotZero: "if_not_zero",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("opcode(%d)", uint32(o))
}

// binaryOpcodes is the set of opcodes with exactly two source operands and a
// value-producing destination (arithmetic, logic, comparison).
var binaryOpcodes = map[Opcode]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpRem: true,
	OpAnd: true, OpOr: true, OpXor: true,
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
}

// voidOpcodes never produce a destination value (spec.md §3).
var voidOpcodes = map[Opcode]bool{
	OpStore: true, OpStorePtr: true, OpGoto: true, OpIfZero: true,
	OpIfNotZero: true, OpRet: true, OpLabel: true,
}

// IsBinary reports whether op takes exactly two source operands and
// produces a value.
func (o Opcode) IsBinary() bool { return binaryOpcodes[o] }

// IsVoid reports whether op never produces a destination value.
func (o Opcode) IsVoid() bool { return voidOpcodes[o] }

// IsComparison reports whether op is one of the six comparison opcodes.
func (o Opcode) IsComparison() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsTerminator reports whether op ends a basic block.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpGoto, OpIfZero, OpIfNotZero, OpRet:
		return true
	}
	return false
}

// Instruction is the atomic unit of the IR (spec.md §3): an opcode, typed
// operands, a lazily-materialized destination, a successor list (populated
// incrementally as instructions are appended, per spec.md §4.1), and
// liveness bit-sets.
//
// destSet tracks whether Dest has actually been materialized yet, since the
// zero Location (LocNone) is also the legitimate destination of void
// instructions; without it, a value-producing instruction whose first
// .Dest() call hasn't happened yet would be indistinguishable from one that
// is genuinely void.
type Instruction struct {
	Opcode Opcode
	Type   typeref.Type

	dest    Location
	destSet bool

	// Src holds the ordered source operands. For binary ops, Src[0] is the
	// left operand and Src[1] is the right operand.
	Src []Location

	// DestSymbol, when non-empty, marks this instruction as a pre-SSA
	// definition of the named source variable (spec.md §4.3's "def"): SSA
	// construction mints a fresh numbered local for Dest and records the
	// mapping in the function's variable table instead of leaving the
	// lazily-materialized anonymous destination in place. This is how
	// defining-blocks are discovered — from the destination of every
	// assignment, per spec.md §9's Open Question, not from Src[0] as the
	// literal (buggy) wording of §4.3 step 1 describes.
	DestSymbol string

	// Block-id operands (GOTO/IF targets), stored as indices into the
	// owning Function's block slice. Populated by the builder; consumed
	// (and, during cleanup, rewritten) by linearize_cfg/cleanup_nops.
	Targets []int

	// PhiArgs parallels a join block's predecessor order (spec.md §4.3
	// step 5): PhiArgs[i] is the operand pulled from predecessor i. Only
	// meaningful when Opcode == OpPhi; kept separate from Src so that
	// phi-elimination can consume it without disturbing Src's "ordered
	// source operand" meaning used elsewhere (e.g. liveness).
	PhiArgs []Location

	// CallLabel is the callee for OpCall; operands in Src are the
	// argument locations in call order.
	CallLabel Location

	// live-in / live-out local id bit-sets, populated by the liveness pass
	// (spec.md §4.5) and consumed by the register allocator (spec.md §4.6).
	LiveIn, LiveOut LiveSet

	// owner is set by BasicBlock.Append so Dest() can mint a fresh local
	// with the right symbol table and function context.
	owner *Function

	// Successors, in instruction order. For a terminator this is unused;
	// the CFG edge lives on the BasicBlock instead (spec.md §4.1 "Edge
	// discipline").
	next *Instruction
}

// newInstruction builds a bare instruction; callers fill in Src/Targets.
func newInstruction(op Opcode, typ typeref.Type) *Instruction {
	return &Instruction{Opcode: op, Type: typ, dest: NoneLoc}
}

// Dest lazily materializes the destination local on first access, per
// spec.md §4.1's "add_insn" rule: a value-producing instruction whose
// destination is NONE mints a fresh local of the instruction's result type.
// Void-opcoded instructions always return NoneLoc.
func (i *Instruction) Dest() Location {
	if i.Opcode.IsVoid() || i.Type == nil || i.Type.IsVoid() {
		return NoneLoc
	}
	if !i.destSet {
		if i.owner == nil {
			panic("BUG: Dest() called before the instruction was appended to a block")
		}
		id := i.owner.Tab.CreateLocal("", i.Type)
		i.dest = LocalLoc(id)
		i.destSet = true
	}
	return i.dest
}

// SetDest forces the destination location, used by SSA renaming (which
// rewrites the destination of PHI/def instructions in place) and by
// phi-elimination (which synthesizes new ASSIGN instructions).
func (i *Instruction) SetDest(l Location) {
	i.dest = l
	i.destSet = true
}

// Next returns the next instruction in the owning block, or nil at the tail.
func (i *Instruction) Next() *Instruction { return i.next }

// Format renders a debug-dump line for this instruction, used by
// Function.Format, in the teacher's dump style (e.g. faddat-wazero's
// ssa/opt_test.go comparing against b.Format()).
func (i *Instruction) Format() string {
	var b strings.Builder
	if d := i.Dest(); !d.IsNone() {
		fmt.Fprintf(&b, "%s = ", d)
	}
	fmt.Fprintf(&b, "%s", i.Opcode)
	if i.Opcode == OpPhi {
		parts := make([]string, len(i.PhiArgs))
		for idx, a := range i.PhiArgs {
			parts[idx] = a.String()
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(parts, ", "))
		return b.String()
	}
	if i.Opcode == OpCall {
		parts := make([]string, len(i.Src))
		for idx, a := range i.Src {
			parts[idx] = a.String()
		}
		fmt.Fprintf(&b, " %s(%s)", i.CallLabel, strings.Join(parts, ", "))
		return b.String()
	}
	for _, s := range i.Src {
		fmt.Fprintf(&b, " %s", s)
	}
	for _, t := range i.Targets {
		fmt.Fprintf(&b, " blk%d", t)
	}
	return b.String()
}
