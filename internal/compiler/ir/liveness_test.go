package ir

import (
	"testing"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
	"github.com/stretchr/testify/require"
)

func TestComputeLivenessStraightLine(t *testing.T) {
	tab := symtab.New()
	b := NewBuilder(tab, "straight", typeref.I64)

	x := b.LoadArg(typeref.I64, 0)
	y := b.LoadArg(typeref.I64, 1)
	prod := b.Mul(typeref.I64, x, y)
	sum := b.Add(typeref.I64, prod, b.Int(1))
	b.Finish(typeref.I64, sum)

	RunPipeline(b.F)

	entry := b.F.Entry
	var mulInst *Instruction
	for cur := entry.Root(); cur != nil; cur = cur.Next() {
		if cur.Opcode == OpMul {
			mulInst = cur
		}
	}
	require.NotNil(t, mulInst)
	require.True(t, mulInst.LiveOut.Contains(mulInst.dest.Local), "the product must stay live across the add that consumes it")
}

func TestComputeLivenessRetKillsPriorLiveSet(t *testing.T) {
	tab := symtab.New()
	b := NewBuilder(tab, "identity", typeref.I64)
	x := b.LoadArg(typeref.I64, 0)
	b.Finish(typeref.I64, x)

	RunPipeline(b.F)

	ret := b.F.Exit.Tail()
	require.Equal(t, OpRet, ret.Opcode)
	require.Empty(t, ret.LiveOut, "return has no successors, so nothing is live across it")
}

func TestComputeLivenessPanicsOnPhi(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)
	LinearizeCFG(b.F)
	// Deliberately skip PhiElimination.
	require.Panics(t, func() { ComputeLiveness(b.F) })
}
