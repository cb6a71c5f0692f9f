package regalloc

import (
	"testing"

	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
	"github.com/stretchr/testify/require"
)

var testRegs = RegisterSet{
	Allocatable: []int32{1, 2, 3},
	Scratch:     99,
}

func TestAllocateGivesDistinctRegistersWithinOverlap(t *testing.T) {
	tab := symtab.New()
	b := ir.NewBuilder(tab, "straight", typeref.I64)
	x := b.LoadArg(typeref.I64, 0)
	y := b.LoadArg(typeref.I64, 1)
	prod := b.Mul(typeref.I64, x, y)
	sum := b.Add(typeref.I64, prod, b.Int(1))
	b.Finish(typeref.I64, sum)

	ir.RunPipeline(b.F)
	alloc := Allocate(b.F, testRegs)

	xReg, ok := alloc.RegisterOf(x.Local)
	require.True(t, ok)
	yReg, ok := alloc.RegisterOf(y.Local)
	require.True(t, ok)
	require.NotEqual(t, xReg, yReg, "overlapping live ranges must not share a register")
}

func TestAllocateSpillsWhenOutOfRegisters(t *testing.T) {
	tab := symtab.New()
	b := ir.NewBuilder(tab, "manyvals", typeref.I64)

	a := b.LoadArg(typeref.I64, 0)
	c := b.LoadArg(typeref.I64, 1)
	d := b.LoadArg(typeref.I64, 2)
	e := b.LoadArg(typeref.I64, 3)

	// A single call with four arguments keeps all four live at once, unlike
	// a chain of binary ops whose pairwise live ranges never overlap by more
	// than two.
	callee := b.Sym("g4")
	sum := b.Call(typeref.I64, ir.LabelLoc(callee), a, c, d, e)
	b.Finish(typeref.I64, sum)

	ir.RunPipeline(b.F)
	before := b.F.FrameSize
	alloc := Allocate(b.F, RegisterSet{Allocatable: []int32{1, 2}, Scratch: 99})

	require.NotEmpty(t, alloc.FrameOffset, "four simultaneously-live values with only two registers must spill")
	require.Greater(t, b.F.FrameSize, before)
}

func TestAllocateDeadValueUsesScratchRegister(t *testing.T) {
	tab := symtab.New()
	b := ir.NewBuilder(tab, "dead", typeref.I64)
	x := b.LoadArg(typeref.I64, 0)
	_ = b.Add(typeref.I64, x, b.Int(1)) // result never used.
	b.Finish(typeref.I64, b.None())

	ir.RunPipeline(b.F)
	alloc := Allocate(b.F, testRegs)

	for _, blk := range b.F.Blocks() {
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			if cur.Opcode == ir.OpAdd {
				d := cur.Dest()
				reg, ok := alloc.RegisterOf(d.Local)
				require.True(t, ok)
				require.Equal(t, testRegs.Scratch, reg)
			}
		}
	}
}
