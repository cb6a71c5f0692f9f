package ir

import (
	"testing"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
	"github.com/stretchr/testify/require"
)

func TestCleanupNopsDropsRedundantGoto(t *testing.T) {
	tab := symtab.New()
	b := NewBuilder(tab, "redundant_goto", typeref.I64)
	mid := b.NewBlock()
	b.Goto(mid)
	b.SetActive(mid)
	b.Finish(typeref.I64, b.Int(0))

	LinearizeCFG(b.F)
	PhiElimination(b.F)
	CleanupNops(b.F)

	entry := b.F.Entry
	last := entry.Tail()
	require.Nil(t, last, "a goto to the immediate fallthrough block must be removed, leaving the goto-only entry empty")
}

func TestCleanupNopsNarrowsConditionalBranch(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)
	LinearizeCFG(b.F)
	PhiElimination(b.F)
	CleanupNops(b.F)

	for _, blk := range b.F.Blocks() {
		term := blk.Tail()
		if term == nil {
			continue
		}
		if term.Opcode == OpIfZero || term.Opcode == OpIfNotZero {
			require.Len(t, term.Targets, 1, "cleanup_nops narrows a two-target conditional to one once layout is known")
		}
	}
}

// blockByID finds a block in f by id, failing the test if absent.
func blockByID(t *testing.T, f *Function, id BlockID) *BasicBlock {
	t.Helper()
	for _, blk := range f.Blocks() {
		if blk.ID == id {
			return blk
		}
	}
	t.Fatalf("no block with id %d", id)
	return nil
}

// immediateAssignedIn returns the literal value assigned by blk's own
// WriteVar, ignoring any later phi-elimination copy (those copy a Local, not
// an Immediate, so they don't match).
func immediateAssignedIn(t *testing.T, blk *BasicBlock) int64 {
	t.Helper()
	for cur := blk.Root(); cur != nil; cur = cur.Next() {
		if cur.Opcode == OpAssign && len(cur.Src) == 1 && cur.Src[0].Tag == LocImmediate {
			return cur.Src[0].Immediate
		}
	}
	t.Fatalf("block %d has no immediate assignment", blk.ID)
	return 0
}

// TestCleanupNarrowsConditionalBranchWithCorrectPolarity traces the narrowed
// branch in buildBranch's "if x == 0 { r = 1 } else { r = 2 }" scenario
// (spec.md §8) through both the explicit target and the implicit
// fallthrough, and checks each lands on the block matching its cond value —
// guarding against narrow_branches swapping which case gets OpIfNotZero.
func TestCleanupNarrowsConditionalBranchWithCorrectPolarity(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)
	LinearizeCFG(b.F)
	PhiElimination(b.F)
	CleanupNops(b.F)

	entry := b.F.Entry
	term := entry.Tail()
	require.True(t, term.Opcode == OpIfZero || term.Opcode == OpIfNotZero, "entry must end in a narrowed conditional")
	require.Len(t, term.Targets, 1)

	explicit := blockByID(t, b.F, BlockID(term.Targets[0]))
	fallthroughBlk := fallthroughOf(b.F, entry)
	require.NotNil(t, fallthroughBlk, "entry must have a fallthrough successor for the narrowed branch to rely on")

	var zeroBlk, nonzeroBlk *BasicBlock
	if term.Opcode == OpIfZero {
		zeroBlk, nonzeroBlk = explicit, fallthroughBlk
	} else {
		nonzeroBlk, zeroBlk = explicit, fallthroughBlk
	}

	require.EqualValues(t, 1, immediateAssignedIn(t, nonzeroBlk),
		"cond nonzero (x == 0) must reach the block assigning r = 1")
	require.EqualValues(t, 2, immediateAssignedIn(t, zeroBlk),
		"cond zero (x != 0) must reach the block assigning r = 2")
}

func TestPhiEliminationRemovesAllPhis(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)
	LinearizeCFG(b.F)
	PhiElimination(b.F)

	for _, blk := range b.F.Blocks() {
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			require.NotEqual(t, OpPhi, cur.Opcode)
		}
	}
}
