// Package compiler drives the whole middle/back-end pipeline spec.md §2
// describes end to end: IR construction (done by the caller via ir.Builder)
// feeds SSA construction and cleanup (ir.RunPipeline), whose output feeds
// linear-scan register allocation (regalloc.Allocate), whose output feeds
// target lowering (a backend.Machine).
//
// Grounded on the teacher's top-level driver shape (faddat-wazero's
// internal/engine/wazevo/backend/compiler.go Compile()): a single function
// that runs a fixed ordered sequence of phases over one Function and hands
// the result to a Machine, generalized from the teacher's SSA-value/
// VReg-based driver to this core's flat, physical-register-id pipeline.
package compiler

import (
	"github.com/basilc/corec/internal/compiler/backend"
	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/regalloc"
)

// Compile lowers f entirely: SSA construction and cleanup, register
// allocation against m's register set, then per-block instruction
// selection through m, wrapped in m's prologue/epilogue.
//
// f must not have been compiled already; m.Reset() is not called here so a
// caller compiling several functions against one Machine controls that
// sequencing itself (each Function's frame/label state is independent, but
// a Machine implementation may keep per-instruction scratch state that
// wants clearing between functions).
func Compile(f *ir.Function, m backend.Machine) *regalloc.Allocation {
	ir.RunPipeline(f)

	alloc := regalloc.Allocate(f, m.RegisterSet())

	if prep, ok := m.(interface{ PrepareFunction(*ir.Function) }); ok {
		prep.PrepareFunction(f)
	}

	label := f.Tab.Label(f.Label)
	m.OpenFrame(label, f.FrameSize)
	for _, b := range f.Blocks() {
		m.StartBlock(b)
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			m.LowerInstr(cur, alloc)
		}
		m.EndBlock(b)
	}
	m.CloseFrame(label, f.FrameSize)

	return alloc
}
