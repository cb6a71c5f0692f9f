package amd64

import (
	"testing"

	"github.com/basilc/corec/internal/compiler/backend"
	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/regalloc"
	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
	"github.com/stretchr/testify/require"
)

// record captures one EmitLabel/EmitInstruction call for assertions,
// standing in for golang-asm's obj.Prog the way the teacher's backend
// tests stub out a mockCompiler rather than drive a real assembler
// (faddat-wazero's backend/compiler_test.go).
type record struct {
	label string
	mn    backend.Mnemonic
	cond  backend.Cond
	ops   []backend.Operand
}

type fakeEmitter struct {
	records []record
}

func (f *fakeEmitter) EmitLabel(sym backend.Symbol) {
	f.records = append(f.records, record{label: sym.Name})
}

func (f *fakeEmitter) EmitInstruction(mn backend.Mnemonic, cond backend.Cond, operands ...backend.Operand) {
	f.records = append(f.records, record{mn: mn, cond: cond, ops: append([]backend.Operand(nil), operands...)})
}

func (f *fakeEmitter) mnemonics() []backend.Mnemonic {
	var out []backend.Mnemonic
	for _, r := range f.records {
		if r.label == "" {
			out = append(out, r.mn)
		}
	}
	return out
}

func buildFn(t *testing.T, name string) (*ir.Builder, *symtab.Table) {
	t.Helper()
	tab := symtab.New()
	return ir.NewBuilder(tab, name, typeref.I64), tab
}

func TestLowerIdentityReturnsArgument(t *testing.T) {
	b, tab := buildFn(t, "identity")
	x := b.LoadArg(typeref.I64, 0)
	b.Finish(typeref.I64, x)

	ir.RunPipeline(b.F)
	alloc := regalloc.Allocate(b.F, Registers)

	fe := &fakeEmitter{}
	m := NewMachine(tab, fe)
	m.PrepareFunction(b.F)
	m.OpenFrame("identity", b.F.FrameSize)
	for _, blk := range b.F.Blocks() {
		m.StartBlock(blk)
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			m.LowerInstr(cur, alloc)
		}
		m.EndBlock(blk)
	}
	m.CloseFrame("identity", b.F.FrameSize)

	mns := fe.mnemonics()
	require.Contains(t, mns, backend.Mov, "loading the argument and returning it both move through registers")
	require.Equal(t, backend.Ret, mns[len(mns)-1])
}

func TestLowerArithmeticUsesAddAndMul(t *testing.T) {
	b, tab := buildFn(t, "muladd")
	x := b.LoadArg(typeref.I64, 0)
	y := b.LoadArg(typeref.I64, 1)
	prod := b.Mul(typeref.I64, x, y)
	sum := b.Add(typeref.I64, prod, b.Int(1))
	b.Finish(typeref.I64, sum)

	ir.RunPipeline(b.F)
	alloc := regalloc.Allocate(b.F, Registers)

	fe := &fakeEmitter{}
	m := NewMachine(tab, fe)
	m.PrepareFunction(b.F)
	for _, blk := range b.F.Blocks() {
		m.StartBlock(blk)
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			m.LowerInstr(cur, alloc)
		}
	}

	mns := fe.mnemonics()
	require.Contains(t, mns, backend.IMul)
	require.Contains(t, mns, backend.Lea, "adding 1 to the product into a different register should lower to the LEA peephole")
}

func TestLowerBranchEmitsConditionalJump(t *testing.T) {
	b, tab := buildFn(t, "branch")
	x := b.LoadArg(typeref.I64, 0)
	cond := b.Eq(x, b.Int(0))
	thenBlk, elseBlk, joinBlk := b.F.NewBlock(), b.F.NewBlock(), b.F.NewBlock()
	b.If(cond, thenBlk, elseBlk)

	b.F.SetActive(thenBlk)
	b.WriteVar("r", typeref.I64, b.Int(1))
	b.Goto(joinBlk)

	b.F.SetActive(elseBlk)
	b.WriteVar("r", typeref.I64, b.Int(2))
	b.Goto(joinBlk)

	b.F.SetActive(joinBlk)
	r := b.ReadVar("r", typeref.I64)
	b.Finish(typeref.I64, r)

	ir.RunPipeline(b.F)
	alloc := regalloc.Allocate(b.F, Registers)

	fe := &fakeEmitter{}
	m := NewMachine(tab, fe)
	m.PrepareFunction(b.F)
	for _, blk := range b.F.Blocks() {
		m.StartBlock(blk)
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			m.LowerInstr(cur, alloc)
		}
	}

	mns := fe.mnemonics()
	require.Contains(t, mns, backend.Cmp)
	require.Contains(t, mns, backend.Jcc)
}

func TestLowerCallSavesLiveRegistersAcrossTheCall(t *testing.T) {
	b, tab := buildFn(t, "caller")
	kept := b.LoadArg(typeref.I64, 0)
	callee := b.Sym("g")
	_ = b.Call(typeref.I64, ir.LabelLoc(callee))
	sum := b.Add(typeref.I64, kept, b.Int(1))
	b.Finish(typeref.I64, sum)

	ir.RunPipeline(b.F)
	alloc := regalloc.Allocate(b.F, Registers)

	fe := &fakeEmitter{}
	m := NewMachine(tab, fe)
	m.PrepareFunction(b.F)
	for _, blk := range b.F.Blocks() {
		m.StartBlock(blk)
		for cur := blk.Root(); cur != nil; cur = cur.Next() {
			m.LowerInstr(cur, alloc)
		}
	}

	mns := fe.mnemonics()
	require.Contains(t, mns, backend.Call)
	require.Contains(t, mns, backend.Push, "kept's register must be saved across the call")
	require.Contains(t, mns, backend.Pop, "kept's register must be restored after the call")
}

func TestLowerNonEntryOpcodePanics(t *testing.T) {
	tab := symtab.New()
	fe := &fakeEmitter{}
	m := NewMachine(tab, fe)

	phi := &ir.Instruction{Opcode: ir.OpPhi}
	require.Panics(t, func() { m.LowerInstr(phi, &regalloc.Allocation{}) })
}
