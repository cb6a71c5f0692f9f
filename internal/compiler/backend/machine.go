package backend

import (
	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/regalloc"
)

// Machine is a backend for one target (spec.md §4.7's "x86-64 Lowering"
// component, kept abstract so a second target could be added without
// touching the driver in compile.go).
//
// Grounded on the teacher's Machine interface (faddat-wazero's
// internal/engine/wazevo/backend/machine.go): StartBlock/LowerInstr/
// EndBlock/Reset kept verbatim in shape, but LowerInstr here walks forward
// over the already-linearized, PHI-free, liveness-and-allocation-complete
// instruction stream instead of reverse over a pre-regalloc SSA block (this
// core's register allocator and cleanup passes already did that work, so
// the machine only has to select and legalize, not schedule).
type Machine interface {
	// RegisterSet reports the allocatable registers and the scratch register
	// this target exposes, so compile.go can hand them to the register
	// allocator before lowering begins (spec.md §4.6's target-specific
	// allocatable set).
	RegisterSet() regalloc.RegisterSet
	ArgRegisters() []int32
	ReturnRegister() int32

	// StartBlock is called when lowering of the given block begins.
	StartBlock(b *ir.BasicBlock)

	// LowerInstr lowers one instruction, given the allocator's result for
	// looking up where any operand Location landed.
	LowerInstr(inst *ir.Instruction, alloc *regalloc.Allocation)

	// EndBlock is called when lowering of the current block is finished.
	EndBlock(b *ir.BasicBlock)

	// OpenFrame emits the prologue for a function of the given frame size
	// (spec.md §4.7 "Frame open/close"); CloseFrame emits the epilogue
	// plus the final RET (or, for the distinguished `_start` label, the
	// exit syscall in place of the whole epilogue).
	OpenFrame(label string, frameSize int32)
	CloseFrame(label string, frameSize int32)

	// Reset clears per-function lowering state between compilations.
	Reset()
}
