package ir

import (
	"fmt"
	"strings"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
)

// Pass is one of the fixed analysis/optimization passes named in spec.md
// §6. The pass manager (spec.md §2 "Pass Manager") tracks, per Function,
// which of these are currently valid.
type Pass int

const (
	PassEnforceSSA Pass = iota
	PassDominanceFrontier
	PassLiveness
	PassReachingDefs
	PassDeadCodeElim
	PassCommonSubexprElim
	PassGlobalValueNumbering
	PassConstantFolding
	PassOptimizeArithmetic
	PassLinearizeCFG
	PassPhiElimination
	PassCleanupNops
	numPasses
)

// unimplementedPasses are acknowledged by spec.md §1 as future work; running
// them panics, per spec.md §7's "Unimplemented" error kind.
var unimplementedPasses = map[Pass]bool{
	PassReachingDefs:         true,
	PassDeadCodeElim:         true,
	PassCommonSubexprElim:    true,
	PassGlobalValueNumbering: true,
	PassConstantFolding:      true,
	PassOptimizeArithmetic:   true,
}

// Function is a CFG (entry, exit, active block) together with the
// bookkeeping SSA construction needs (spec.md §3): the variable table, the
// per-symbol defining-blocks lists, the per-symbol ssa counters, nested
// inner functions, the frame size the register allocator grows, and the
// pass-validity set the pass manager consults.
type Function struct {
	Label symtab.LabelID
	Type  typeref.Type
	Tab   *symtab.Table

	blocks      []*BasicBlock
	nextUID     uint64
	Entry, Exit *BasicBlock
	active      *BasicBlock

	// VarTable maps a (symbol, ssa-number) pair to the Location it denotes,
	// i.e. spec.md §3's "the per-function variable table maps Variable to
	// dense index used inside instructions" generalized to map directly to
	// the materialized Location (the Location *is* the dense index, since
	// Location.Local already carries symtab's dense LocalID).
	VarTable map[Variable]Location

	// DefiningBlocks maps a source-symbol to the blocks containing an
	// assignment to it. Populated by SSA construction step 1.
	DefiningBlocks map[string][]*BasicBlock

	// varSlot maps a pre-SSA source-symbol to the single canonical LocalID
	// the builder hands out for every ReadVar/WriteVar of that symbol
	// before SSA construction runs. SSA construction recognizes a Src
	// operand as "a variable" when it names one of these locals (spec.md
	// §3's Variable == {source-symbol, ssa-number}, generalized so the
	// pre-SSA placeholder name doubles as the lookup key).
	varSlot map[string]symtab.LocalID
	// varType remembers the declared type of each variable symbol, needed
	// when SSA construction materializes a PHI for a symbol that has no
	// local reads in the current block to infer it from.
	varType map[string]typeref.Type

	// ssaCounters is the current ssa-number per source-symbol, bumped on
	// every def during renaming (spec.md §4.3 step 4).
	ssaCounters map[string]uint32

	// Inner holds nested inner functions (spec.md §3 "Function"); this core
	// does not interpret them further, it only keeps them alive for the
	// lifetime of the owning Function, matching spec.md §3's "Functions own
	// their blocks, instructions, and nested functions."
	Inner []*Function

	// FrameSize is the number of bytes the register allocator has spilled
	// to the frame (spec.md §4.6 step 1: "frame size grows by 8 bytes").
	FrameSize int32

	validPasses map[Pass]bool

	finished bool
}

// NewFunction creates a Function with an implicit entry block (spec.md §3
// "Lifecycle"), ready for the builder to append instructions to.
func NewFunction(label symtab.LabelID, typ typeref.Type, tab *symtab.Table) *Function {
	f := &Function{
		Label:          label,
		Type:           typ,
		Tab:            tab,
		VarTable:       make(map[Variable]Location),
		DefiningBlocks: make(map[string][]*BasicBlock),
		ssaCounters:    make(map[string]uint32),
		validPasses:    make(map[Pass]bool),
		varSlot:        make(map[string]symtab.LocalID),
		varType:        make(map[string]typeref.Type),
	}
	entry := f.newBlockInternal()
	f.Entry = entry
	f.active = entry
	return f
}

func (f *Function) newBlockInternal() *BasicBlock {
	id := BlockID(len(f.blocks))
	b := &BasicBlock{
		ID:          id,
		uid:         f.nextUID,
		Dom:         make(map[BlockID]bool),
		Frontier:    make(map[BlockID]bool),
		VarsIn:      make(map[string]*Variable),
		VarsOut:     make(map[string]*Variable),
		PendingPhis: make(map[string]*PendingPhi),
		owner:       f,
	}
	f.nextUID++
	f.blocks = append(f.blocks, b)
	return b
}

// NewBlock appends a disconnected block (the builder's new_block,
// spec.md §4.1).
func (f *Function) NewBlock() *BasicBlock { return f.newBlockInternal() }

// SetActive switches the builder's insertion point (spec.md §4.1).
func (f *Function) SetActive(b *BasicBlock) { f.active = b }

// Active returns the block instructions are currently appended to.
func (f *Function) Active() *BasicBlock { return f.active }

// Blocks returns the function's current block list: every block in
// allocation order until linearize_cfg runs, after which it holds only the
// reachable blocks in layout order, minus any block cleanup_nops removed.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// RemoveBlocks replaces the function's block list, used by cleanup_nops
// (spec.md §4.8) after dropping empty blocks.
func (f *Function) RemoveBlocks(kept []*BasicBlock) { f.blocks = kept }

// bumpSSA increments and returns the new ssa-number for symbol.
func (f *Function) bumpSSA(symbol string) uint32 {
	n := f.ssaCounters[symbol] + 1
	f.ssaCounters[symbol] = n
	return n
}

// resetSSA clears every symbol's ssa counter back to 0 (spec.md §4.3 step 3).
func (f *Function) resetSSA() {
	f.ssaCounters = make(map[string]uint32)
}

// Finish closes the function with an unconditional goto to a newly minted
// exit block containing `ret result` (spec.md §4.1's finish(), §3's
// Lifecycle). Panics if already finished: a Function's exit wiring is
// created exactly once (spec.md §5 "Resource acquisition").
func (f *Function) Finish(resultType typeref.Type, result Location) {
	if f.finished {
		panic("BUG: Finish called twice on the same function")
	}
	exit := f.newBlockInternal()
	f.Exit = exit

	gotoInst := newInstruction(OpGoto, typeref.Void)
	gotoInst.Targets = []int{int(exit.ID)}
	f.active.Append(gotoInst)
	f.active.AddSuccessor(exit)

	f.SetActive(exit)
	ret := newInstruction(OpRet, resultType)
	if !result.IsNone() {
		ret.Src = []Location{result}
	}
	exit.Append(ret)

	f.finished = true
}

// Require lazily runs pass if it is not currently valid (spec.md §6's
// require(fn, pass_kind)). run is supplied by the caller (the pass
// implementations live in ssa.go/liveness.go/cleanup.go, which depend on
// Function but would create an import cycle if Function depended on them).
func (f *Function) Require(p Pass, run func()) {
	if unimplementedPasses[p] {
		panic(fmt.Sprintf("BUG: pass %d is not implemented", p))
	}
	if f.validPasses[p] {
		return
	}
	run()
	f.validPasses[p] = true
}

// Invalidate marks pass as stale (spec.md §6's invalidate(fn, pass_kind)).
func (f *Function) Invalidate(p Pass) {
	delete(f.validPasses, p)
}

// InvalidateAll marks every pass stale, used when a transformation (like SSA
// renaming itself) makes every downstream analysis stale.
func (f *Function) InvalidateAll() {
	f.validPasses = make(map[Pass]bool)
}

// Valid reports whether pass is currently valid.
func (f *Function) Valid(p Pass) bool { return f.validPasses[p] }

// Format renders every block and instruction for debug dumps, in the
// teacher's Format() style (faddat-wazero's ssa/opt_test.go compares against
// b.Format()); no test in this tree compares against it.
func (f *Function) Format() string {
	var sb strings.Builder
	for _, blk := range f.blocks {
		fmt.Fprintf(&sb, "%s:\n", blk.Name())
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			fmt.Fprintf(&sb, "\t%s\n", cur.Format())
		}
	}
	return sb.String()
}
