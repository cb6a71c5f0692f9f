package ir

import (
	"fmt"

	"github.com/basilc/corec/internal/compiler/symtab"
)

// BlockID is the dense, monotonic id of a BasicBlock within its owning
// Function's block arena.
type BlockID uint32

// PendingPhi records that some join-point symbol needs a φ materialized at
// the head of this block once SSA renumbering begins (spec.md §4.3 step 2).
type PendingPhi struct {
	Symbol string
	Inst   *Instruction // materialized lazily by SSA construction step 4.
}

// BasicBlock is an ordered instruction list together with the CFG edges and
// analysis bit-sets spec.md §3 describes: predecessors/successors,
// dominator-set, immediate-dominator, dominance-frontier, the SSA
// vars_in/vars_out maps, and the pending-φ set.
//
// Ownership follows the teacher's arena-of-blocks-with-integer-ids model
// (faddat-wazero's ssa/basic_block.go, generalized per spec.md §9's design
// note on the cyclic block graph): a BasicBlock never outlives its owning
// Function, and predecessor/successor edges are stored as slices of *BasicBlock
// pointers into that arena rather than reference-counted handles.
type BasicBlock struct {
	ID  BlockID
	uid uint64 // monotonic allocation order, independent of ID reuse during cleanup.

	root, tail *Instruction

	Preds []*BasicBlock
	Succs []*BasicBlock

	// Dominance (spec.md §4.4).
	Dom      map[BlockID]bool
	IDom     *BasicBlock
	Frontier map[BlockID]bool

	// SSA construction (spec.md §4.3): per-symbol ssa-numbered value
	// entering/leaving this block.
	VarsIn  map[string]*Variable
	VarsOut map[string]*Variable

	// PendingPhis is keyed by source-symbol; SSA construction step 4
	// materializes each into a real PHI instruction at the block head.
	PendingPhis map[string]*PendingPhi

	// LayoutOrder is assigned exactly once by linearize_cfg (spec.md §4.8)
	// and is final for the remainder of lowering.
	LayoutOrder int

	label      symtab.LabelID
	labelIsSet bool
	owner      *Function
}

// Variable is { source-symbol, ssa-number } (spec.md §3). Two variables are
// equal iff both fields match.
type Variable struct {
	Symbol string
	SSANum uint32
	Value  Location // the local this (symbol, ssa-number) pair currently denotes.
}

// Name returns the debug name of this block, matching the teacher's
// "blk<N>" convention (faddat-wazero's ssa/basic_block.go Name()).
func (b *BasicBlock) Name() string { return fmt.Sprintf("blk%d", b.ID) }

// Root returns the first instruction in the block, or nil if empty.
func (b *BasicBlock) Root() *Instruction { return b.root }

// Tail returns the last instruction in the block, or nil if empty.
func (b *BasicBlock) Tail() *Instruction { return b.tail }

// Label lazily interns and returns this block's label, used by lowering
// when a branch target or fallthrough needs an addressable symbol.
func (b *BasicBlock) Label() symtab.LabelID {
	if !b.labelIsSet {
		b.label = b.owner.Tab.AnonLabel()
		b.labelIsSet = true
	}
	return b.label
}

// Append adds an instruction to the tail of this block's instruction list.
// This is the builder's add_insn (spec.md §4.1): sequential instructions
// chain through Instruction.next; GOTO/IF edges are recorded on the block,
// not the instruction (the "edge discipline" of spec.md §4.1).
func (b *BasicBlock) Append(inst *Instruction) {
	inst.owner = b.owner
	if b.tail != nil {
		b.tail.next = inst
	} else {
		b.root = inst
	}
	b.tail = inst
}

// AddSuccessor wires a CFG edge from b to succ (the builder's add_block,
// spec.md §4.1), recording the reverse predecessor edge too.
func (b *BasicBlock) AddSuccessor(succ *BasicBlock) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}

// Instructions returns the instructions in this block as a slice, in
// program order. Convenience for passes that prefer random access or
// in-place filtering over manual linked-list walking.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for cur := b.root; cur != nil; cur = cur.next {
		out = append(out, cur)
	}
	return out
}

// SetInstructions replaces the block's instruction list wholesale, relinking
// the next pointers. Used by cleanup passes (spec.md §4.8) that filter or
// rewrite a block's instructions in place.
func (b *BasicBlock) SetInstructions(insts []*Instruction) {
	b.root, b.tail = nil, nil
	for _, inst := range insts {
		inst.next = nil
		if b.tail != nil {
			b.tail.next = inst
		} else {
			b.root = inst
		}
		b.tail = inst
	}
}
