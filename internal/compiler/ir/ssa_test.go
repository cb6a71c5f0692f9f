package ir

import (
	"testing"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
	"github.com/stretchr/testify/require"
)

// buildBranch constructs: if x == 0 { r = 1 } else { r = 2 }; return r — the
// branch-with-φ end-to-end scenario from spec.md §8.
func buildBranch(t *testing.T) *Builder {
	tab := symtab.New()
	b := NewBuilder(tab, "branch", typeref.I64)

	x := b.LoadArg(typeref.I64, 0)
	cond := b.Eq(x, b.Int(0))

	thenBlk := b.NewBlock()
	elseBlk := b.NewBlock()
	joinBlk := b.NewBlock()

	b.If(cond, thenBlk, elseBlk)

	b.SetActive(thenBlk)
	b.WriteVar("r", typeref.I64, b.Int(1))
	b.Goto(joinBlk)

	b.SetActive(elseBlk)
	b.WriteVar("r", typeref.I64, b.Int(2))
	b.Goto(joinBlk)

	b.SetActive(joinBlk)
	result := b.ReadVar("r", typeref.I64)
	b.Finish(typeref.I64, result)

	return b
}

func TestEnforceSSAPlacesPhiAtJoinBlock(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)

	var joinBlk *BasicBlock
	for _, blk := range b.F.Blocks() {
		if len(blk.Preds) == 2 {
			joinBlk = blk
		}
	}
	require.NotNil(t, joinBlk, "expected a join block with two predecessors")

	phi := joinBlk.Root()
	require.NotNil(t, phi)
	require.Equal(t, OpPhi, phi.Opcode)
	require.Len(t, phi.PhiArgs, 2, "phi operand count must equal predecessor count")

	for i, pred := range joinBlk.Preds {
		v, ok := pred.VarsOut["r"]
		require.True(t, ok)
		require.Equal(t, v.Value, phi.PhiArgs[i], "phi operand i must equal predecessor i's vars_out")
	}
}

func TestEnforceSSAAtMostOneWriterPerBlockPerVariable(t *testing.T) {
	b := buildBranch(t)
	EnforceSSA(b.F)

	for _, blk := range b.F.Blocks() {
		writes := make(map[symtab.LocalID]int)
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			if cur.Opcode == OpPhi {
				continue
			}
			if cur.destSet && cur.dest.Tag == LocLocal {
				writes[cur.dest.Local]++
			}
		}
		for _, n := range writes {
			require.LessOrEqual(t, n, 1, "at most one non-phi writer per block per local")
		}
	}
}

// buildLoop constructs an up-counting sum loop:
//
//	s = 0; i = 0
//	loop:
//	  if i == n { goto done }
//	  s = s + i; i = i + 1; goto loop
//	done:
//	  return s
//
// matching spec.md §8's "Loop" scenario shape (a φ for both s and i in the
// loop header).
func buildLoop(t *testing.T) *Builder {
	tab := symtab.New()
	b := NewBuilder(tab, "sumloop", typeref.I64)

	n := b.LoadArg(typeref.I64, 0)
	b.WriteVar("s", typeref.I64, b.Int(0))
	b.WriteVar("i", typeref.I64, b.Int(0))

	header := b.NewBlock()
	body := b.NewBlock()
	done := b.NewBlock()

	b.Goto(header)

	b.SetActive(header)
	i0 := b.ReadVar("i", typeref.I64)
	cond := b.Eq(i0, n)
	b.If(cond, done, body)

	b.SetActive(body)
	s1 := b.Add(typeref.I64, b.ReadVar("s", typeref.I64), b.ReadVar("i", typeref.I64))
	b.WriteVar("s", typeref.I64, s1)
	i1 := b.Add(typeref.I64, b.ReadVar("i", typeref.I64), b.Int(1))
	b.WriteVar("i", typeref.I64, i1)
	b.Goto(header)

	b.SetActive(done)
	result := b.ReadVar("s", typeref.I64)
	b.Finish(typeref.I64, result)

	return b
}

func TestEnforceSSALoopHeaderGetsPhisForBothVariables(t *testing.T) {
	b := buildLoop(t)
	EnforceSSA(b.F)

	var header *BasicBlock
	for _, blk := range b.F.Blocks() {
		if len(blk.Preds) == 2 {
			header = blk
		}
	}
	require.NotNil(t, header)

	phiCount := 0
	for cur := header.Root(); cur != nil && cur.Opcode == OpPhi; cur = cur.Next() {
		phiCount++
		require.Len(t, cur.PhiArgs, 2)
	}
	require.Equal(t, 2, phiCount, "loop header needs a phi for both s and i")
}

func TestEnforceSSAPrunesTrivialPhis(t *testing.T) {
	tab := symtab.New()
	b := NewBuilder(tab, "straight", typeref.I64)
	b.WriteVar("a", typeref.I64, b.Int(1))
	mid := b.NewBlock()
	b.Goto(mid)
	b.SetActive(mid)
	result := b.ReadVar("a", typeref.I64)
	b.Finish(typeref.I64, result)

	EnforceSSA(b.F)

	for _, blk := range b.F.Blocks() {
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			require.NotEqual(t, OpPhi, cur.Opcode, "single-predecessor join must not keep a trivial phi")
		}
	}
}
