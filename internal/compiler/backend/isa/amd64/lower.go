package amd64

import (
	"fmt"

	"github.com/basilc/corec/internal/compiler/backend"
	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/regalloc"
	"github.com/basilc/corec/internal/compiler/symtab"
)

// Machine implements backend.Machine for x86-64, translating each IR
// opcode into one or a small group of machine instructions via the
// legalization rules spec.md §4.7 spells out.
//
// Grounded on the teacher's per-target lowering shape (faddat-wazero's
// internal/engine/wazevo/backend/isa/arm64/lower_instr.go: one method per
// opcode family, a clobber/scratch convention for memory-memory
// legalization), but driving a flat post-allocation instruction stream
// instead of re-walking SSA values, since this core's cleanup passes and
// register allocator already did that work before lowering starts.
type Machine struct {
	emit   backend.Emitter
	tab    *symtab.Table
	blocks map[ir.BlockID]*ir.BasicBlock
}

// NewMachine builds a Machine emitting through e, resolving locals/labels/
// constants against tab.
func NewMachine(tab *symtab.Table, e backend.Emitter) *Machine {
	return &Machine{emit: e, tab: tab}
}

// PrepareFunction records f's block arena so GOTO/IF targets (stored as
// BlockID on the instruction per spec.md §4.1's edge discipline) can be
// resolved to the label StartBlock bound for that block. compile.go calls
// this once per function before lowering its blocks in layout order.
func (m *Machine) PrepareFunction(f *ir.Function) {
	m.blocks = make(map[ir.BlockID]*ir.BasicBlock, len(f.Blocks()))
	for _, b := range f.Blocks() {
		m.blocks[b.ID] = b
	}
}

func (m *Machine) labelFor(id ir.BlockID) backend.Symbol {
	b, ok := m.blocks[id]
	if !ok {
		panic(fmt.Sprintf("BUG: branch target blk%d is not part of the prepared function", id))
	}
	return backend.LocalSymbol(m.tab.Label(b.Label()))
}

func (m *Machine) RegisterSet() regalloc.RegisterSet { return Registers }
func (m *Machine) ArgRegisters() []int32             { return ArgRegisters }
func (m *Machine) ReturnRegister() int32             { return ReturnRegister }

func (m *Machine) Reset() {}

func (m *Machine) StartBlock(b *ir.BasicBlock) {
	m.emit.EmitLabel(backend.LocalSymbol(m.blockSymbolName(b)))
}

func (m *Machine) EndBlock(b *ir.BasicBlock) {}

func (m *Machine) blockSymbolName(b *ir.BasicBlock) string {
	return m.tab.Label(b.Label())
}

// OpenFrame emits spec.md §4.7's prologue: `push rbp; mov rbp, rsp; sub
// rsp, size` when the frame is non-empty.
func (m *Machine) OpenFrame(label string, frameSize int32) {
	m.emit.EmitLabel(backend.GlobalSymbol(label))
	if frameSize > 0 {
		m.emit.EmitInstruction(backend.Push, 0, backend.R64(RBP))
		m.emit.EmitInstruction(backend.Mov, 0, backend.R64(RBP), backend.R64(RSP))
		m.emit.EmitInstruction(backend.Sub, 0, backend.R64(RSP), backend.Imm64(int64(frameSize)))
	}
}

// CloseFrame emits spec.md §4.7's epilogue: `mov rsp, rbp; pop rbp; ret`,
// except for the special `_start` label, which emits the Linux exit
// syscall (rax=60, rdi=0) in place of the whole epilogue (no frame
// teardown and no RET).
func (m *Machine) CloseFrame(label string, frameSize int32) {
	if label == "_start" {
		m.emit.EmitInstruction(backend.Mov, 0, backend.R64(RAX), backend.Imm64(60))
		m.emit.EmitInstruction(backend.Xor, 0, backend.R64(RDI), backend.R64(RDI))
		m.emit.EmitInstruction(backend.Syscall, 0)
		return
	}
	if frameSize > 0 {
		m.emit.EmitInstruction(backend.Mov, 0, backend.R64(RSP), backend.R64(RBP))
		m.emit.EmitInstruction(backend.Pop, 0, backend.R64(RBP))
	}
	m.emit.EmitInstruction(backend.Ret, 0)
}

// operandOf resolves an IR Location to a machine Operand via the
// allocator's decision for that local (spec.md §4.7 assumes every operand
// has already been placed by register allocation before lowering runs).
func (m *Machine) operandOf(loc ir.Location, alloc *regalloc.Allocation) backend.Operand {
	switch loc.Tag {
	case ir.LocLocal:
		if reg, ok := alloc.RegisterOf(loc.Local); ok {
			return backend.R64(reg)
		}
		if off, ok := alloc.FrameOffset[loc.Local]; ok {
			return backend.M64(RBP, off)
		}
		panic(fmt.Sprintf("BUG: local %d was never assigned a register or frame offset", loc.Local))
	case ir.LocImmediate:
		return backend.Imm64(loc.Immediate)
	case ir.LocConstant:
		c := m.tab.Constant(loc.Constant)
		return backend.Label64(backend.LocalSymbol(c.Name))
	case ir.LocLabel:
		return backend.Label64(backend.LocalSymbol(m.tab.Label(loc.Label)))
	case ir.LocRegister:
		return backend.R64(loc.Register)
	default:
		panic("BUG: cannot lower a NONE operand")
	}
}

func isMem(o backend.Operand) bool { return o.Kind == backend.OperandMem }

// move legalizes a two-operand move, routing memory-to-memory through clob
// and eliding a no-op same-register move (spec.md §4.7 "Move").
func (m *Machine) move(dest, src backend.Operand, clob int32) {
	if dest.Kind == backend.OperandReg && src.Kind == backend.OperandReg && dest.Reg == src.Reg {
		return
	}
	if isMem(dest) && isMem(src) {
		m.emit.EmitInstruction(backend.Mov, 0, backend.R64(clob), src)
		m.emit.EmitInstruction(backend.Mov, 0, dest, backend.R64(clob))
		return
	}
	m.emit.EmitInstruction(backend.Mov, 0, dest, src)
}

var condForOpcode = map[ir.Opcode]backend.Cond{
	ir.OpEq: backend.CondEqual, ir.OpNe: backend.CondNotEqual,
	ir.OpLt: backend.CondLess, ir.OpLe: backend.CondLessEqual,
	ir.OpGt: backend.CondGreater, ir.OpGe: backend.CondGreaterEqual,
}

// LowerInstr lowers one instruction per spec.md §4.7.
func (m *Machine) LowerInstr(inst *ir.Instruction, alloc *regalloc.Allocation) {
	switch inst.Opcode {
	case ir.OpLabel:
		return
	case ir.OpPhi:
		panic("unimplemented: PHI reached lowering; phi_elim must run first")
	case ir.OpAssign, ir.OpNeg:
		dest := m.operandOf(inst.Dest(), alloc)
		src := m.operandOf(inst.Src[0], alloc)
		m.move(dest, src, Clobbers[0])
	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor:
		m.lowerBinary(inst, alloc)
	case ir.OpMul:
		m.lowerMul(inst, alloc)
	case ir.OpDiv, ir.OpRem:
		m.lowerDivRem(inst, alloc)
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		m.lowerCompare(inst, alloc)
	case ir.OpNot:
		m.lowerNot(inst, alloc)
	case ir.OpLoad, ir.OpLoadPtr:
		m.lowerLoad(inst, alloc)
	case ir.OpStore, ir.OpStorePtr:
		m.lowerStore(inst, alloc)
	case ir.OpAddress:
		m.lowerAddress(inst, alloc)
	case ir.OpLoadArg:
		m.lowerLoadArg(inst, alloc)
	case ir.OpCall:
		m.lowerCall(inst, alloc)
	case ir.OpGoto:
		m.lowerGoto(inst)
	case ir.OpIfZero, ir.OpIfNotZero:
		m.lowerIf(inst, alloc)
	case ir.OpRet:
		m.lowerRet(inst, alloc)
	default:
		panic(fmt.Sprintf("BUG: no x86-64 lowering for opcode %s", inst.Opcode))
	}
}

func mnemonicFor(op ir.Opcode) backend.Mnemonic {
	switch op {
	case ir.OpAdd:
		return backend.Add
	case ir.OpSub:
		return backend.Sub
	case ir.OpAnd:
		return backend.And
	case ir.OpOr:
		return backend.Or
	case ir.OpXor:
		return backend.Xor
	default:
		panic("BUG: not a binary arithmetic/logic opcode")
	}
}

// lowerBinary implements spec.md §4.7's "Binary op" rule, including the add
// peephole (lea for reg+reg/reg+imm-into-a-register dest) and the
// degenerate inc/dec form for ±1.
func (m *Machine) lowerBinary(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	lhs := m.operandOf(inst.Src[0], alloc)
	rhs := m.operandOf(inst.Src[1], alloc)
	clob := backend.R64(Clobbers[0])

	if inst.Opcode == ir.OpAdd && dest.Kind == backend.OperandReg {
		if lhs.Kind == backend.OperandReg && dest.Reg == lhs.Reg {
			if rhs.Kind == backend.OperandImm && rhs.Imm == 1 {
				m.emit.EmitInstruction(backend.Inc, 0, dest)
				return
			}
			if rhs.Kind == backend.OperandImm && rhs.Imm == -1 {
				m.emit.EmitInstruction(backend.Dec, 0, dest)
				return
			}
			m.emit.EmitInstruction(backend.Add, 0, dest, rhs)
			return
		}
		if lhs.Kind == backend.OperandReg && rhs.Kind == backend.OperandImm {
			m.emit.EmitInstruction(backend.Lea, 0, dest, backend.M64(lhs.Reg, int32(rhs.Imm)))
			return
		}
		if lhs.Kind == backend.OperandReg && rhs.Kind == backend.OperandReg {
			m.emit.EmitInstruction(backend.Lea, 0, dest, backend.M64Indexed(lhs.Reg, rhs.Reg, 1, 0))
			return
		}
	}
	if inst.Opcode == ir.OpSub && dest.Kind == backend.OperandReg && lhs.Kind == backend.OperandReg && dest.Reg == lhs.Reg {
		if rhs.Kind == backend.OperandImm && rhs.Imm == 1 {
			m.emit.EmitInstruction(backend.Dec, 0, dest)
			return
		}
		if rhs.Kind == backend.OperandImm && rhs.Imm == -1 {
			m.emit.EmitInstruction(backend.Inc, 0, dest)
			return
		}
		m.emit.EmitInstruction(backend.Sub, 0, dest, rhs)
		return
	}

	mn := mnemonicFor(inst.Opcode)
	if isMem(dest) && (isMem(lhs) || isMem(rhs)) {
		m.emit.EmitInstruction(backend.Mov, 0, clob, lhs)
		m.emit.EmitInstruction(mn, 0, clob, rhs)
		m.emit.EmitInstruction(backend.Mov, 0, dest, clob)
		return
	}
	m.move(dest, lhs, Clobbers[0])
	m.emit.EmitInstruction(mn, 0, dest, rhs)
}

// lowerMul implements spec.md §4.7's "Mul": imul needs a register
// destination, and immediates must land in a clobber first.
func (m *Machine) lowerMul(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	lhs := m.operandOf(inst.Src[0], alloc)
	rhs := m.operandOf(inst.Src[1], alloc)
	clob := backend.R64(Clobbers[0])

	if rhs.Kind == backend.OperandImm {
		immReg := backend.R64(Clobbers[1])
		m.emit.EmitInstruction(backend.Mov, 0, immReg, rhs)
		rhs = immReg
	}

	if isMem(dest) {
		m.move(clob, lhs, Clobbers[1])
		m.emit.EmitInstruction(backend.IMul, 0, clob, rhs)
		m.emit.EmitInstruction(backend.Mov, 0, dest, clob)
		return
	}
	m.move(dest, lhs, Clobbers[0])
	m.emit.EmitInstruction(backend.IMul, 0, dest, rhs)
}

// lowerDivRem implements spec.md §4.7's "Div/Rem": dividend into RAX,
// CQO sign-extension, divisor into a clobber if it's an immediate, idiv;
// quotient from RAX, remainder from RDX.
func (m *Machine) lowerDivRem(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	lhs := m.operandOf(inst.Src[0], alloc)
	rhs := m.operandOf(inst.Src[1], alloc)

	m.move(backend.R64(RAX), lhs, Clobbers[0])
	m.emit.EmitInstruction(backend.Cqo, 0)

	divisor := rhs
	if rhs.Kind == backend.OperandImm {
		divisor = backend.R64(RCX)
		m.emit.EmitInstruction(backend.Mov, 0, divisor, rhs)
	}
	m.emit.EmitInstruction(backend.IDiv, 0, divisor)

	if inst.Opcode == ir.OpDiv {
		m.move(dest, backend.R64(RAX), RBX)
	} else {
		m.move(dest, backend.R64(RDX), RBX)
	}
}

// lowerCompare implements spec.md §4.7's "Comparisons": cmp then setcc into
// a zero-initialized destination.
func (m *Machine) lowerCompare(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	lhs := m.operandOf(inst.Src[0], alloc)
	rhs := m.operandOf(inst.Src[1], alloc)
	clob := backend.R64(Clobbers[0])

	cmpLHS := lhs
	if isMem(lhs) && isMem(rhs) {
		m.emit.EmitInstruction(backend.Mov, 0, clob, lhs)
		cmpLHS = clob
	}
	m.emit.EmitInstruction(backend.Cmp, 0, cmpLHS, rhs)
	m.emit.EmitInstruction(backend.Mov, 0, dest, backend.Imm64(0))
	m.emit.EmitInstruction(backend.SetCC, condForOpcode[inst.Opcode], dest)
}

// lowerNot implements spec.md §4.7's "Not": compare to zero, setcc EQUAL.
func (m *Machine) lowerNot(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	src := m.operandOf(inst.Src[0], alloc)
	m.emit.EmitInstruction(backend.Cmp, 0, src, backend.Imm64(0))
	m.emit.EmitInstruction(backend.Mov, 0, dest, backend.Imm64(0))
	m.emit.EmitInstruction(backend.SetCC, backend.CondEqual, dest)
}

// lowerLoad implements spec.md §4.7's "Load": resolve the address into a
// register (a clobber if it started in memory), then mov through
// [reg+offset].
func (m *Machine) lowerLoad(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	addr := m.operandOf(inst.Src[0], alloc)

	addrReg := addr
	if isMem(addr) {
		addrReg = backend.R64(Clobbers[0])
		m.move(addrReg, addr, Clobbers[1])
	}
	m.emit.EmitInstruction(backend.Mov, 0, dest, backend.M64(addrReg.Reg, 0))
}

// lowerStore implements spec.md §4.7's "Store", the STORE_PTR/STORE
// mirror of Load: resolve the address, then mov src into [reg+offset].
func (m *Machine) lowerStore(inst *ir.Instruction, alloc *regalloc.Allocation) {
	addr := m.operandOf(inst.Src[0], alloc)
	src := m.operandOf(inst.Src[1], alloc)

	addrReg := addr
	if isMem(addr) {
		addrReg = backend.R64(Clobbers[0])
		m.move(addrReg, addr, Clobbers[1])
	}
	srcOperand := src
	if isMem(src) {
		m.move(backend.R64(Clobbers[1]), src, Clobbers[1])
		srcOperand = backend.R64(Clobbers[1])
	}
	m.emit.EmitInstruction(backend.Mov, 0, backend.M64(addrReg.Reg, 0), srcOperand)
}

// lowerAddress implements "address-of": if dest is memory, lea into a
// clobber then move (spec.md §4.7's "LEA" rule).
func (m *Machine) lowerAddress(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	src := m.operandOf(inst.Src[0], alloc)
	srcMem, ok := src, src.Kind == backend.OperandMem
	if !ok {
		panic("BUG: address-of a non-memory location")
	}
	if isMem(dest) {
		clob := backend.R64(Clobbers[0])
		m.emit.EmitInstruction(backend.Lea, 0, clob, srcMem)
		m.emit.EmitInstruction(backend.Mov, 0, dest, clob)
		return
	}
	m.emit.EmitInstruction(backend.Lea, 0, dest, srcMem)
}

func (m *Machine) lowerLoadArg(inst *ir.Instruction, alloc *regalloc.Allocation) {
	dest := m.operandOf(inst.Dest(), alloc)
	idx := inst.Src[0].Immediate
	if int(idx) < len(ArgRegisters) {
		m.move(dest, backend.R64(ArgRegisters[idx]), Clobbers[0])
		return
	}
	// Arguments beyond the register sequence arrive on the caller's stack,
	// above the return address; RBP+16 is the first such slot once the
	// frame is open.
	stackDisp := int32(16 + 8*(int(idx)-len(ArgRegisters)))
	m.move(dest, backend.M64(RBP, stackDisp), Clobbers[0])
}

// lowerCall implements spec.md §4.7's "Call": save every register-resident
// local that is live across the call (live-in AND live-out at this
// instruction), place arguments, call, move the result out of RAX, then
// restore the saved registers in reverse.
func (m *Machine) lowerCall(inst *ir.Instruction, alloc *regalloc.Allocation) {
	var saved []int32
	for id := range inst.LiveIn {
		if !inst.LiveOut.Contains(id) {
			continue
		}
		if reg, ok := alloc.RegisterOf(id); ok {
			saved = append(saved, reg)
		}
	}
	for _, r := range saved {
		m.emit.EmitInstruction(backend.Push, 0, backend.R64(r))
	}

	// Stack arguments are pushed last-to-first so the first of them sits
	// lowest, at the callee's RBP+16 (see lowerLoadArg).
	for i := len(inst.Src) - 1; i >= len(ArgRegisters); i-- {
		m.emit.EmitInstruction(backend.Push, 0, m.operandOf(inst.Src[i], alloc))
	}
	for i, arg := range inst.Src {
		if i >= len(ArgRegisters) {
			break
		}
		m.move(backend.R64(ArgRegisters[i]), m.operandOf(arg, alloc), Clobbers[0])
	}

	callee := m.operandOf(inst.CallLabel, alloc)
	m.emit.EmitInstruction(backend.Call, 0, callee)
	if extra := len(inst.Src) - len(ArgRegisters); extra > 0 {
		m.emit.EmitInstruction(backend.Add, 0, backend.R64(RSP), backend.Imm64(int64(8*extra)))
	}

	if !inst.Dest().IsNone() {
		dest := m.operandOf(inst.Dest(), alloc)
		m.move(dest, backend.R64(RAX), Clobbers[1])
	}

	for i := len(saved) - 1; i >= 0; i-- {
		m.emit.EmitInstruction(backend.Pop, 0, backend.R64(saved[i]))
	}
}

func (m *Machine) lowerGoto(inst *ir.Instruction) {
	if len(inst.Targets) == 0 {
		return
	}
	target := m.labelFor(ir.BlockID(inst.Targets[0]))
	m.emit.EmitInstruction(backend.Jmp, 0, backend.Label64(target))
}

// lowerIf implements spec.md §4.7's "Jump/JumpIfZero": cmp to 0 plus a
// conditional jump for the zero-branch (IF_ZERO) or the nonzero branch
// (IF_NOT_ZERO, produced only by cleanup_nops). A two-target IF_ZERO that
// cleanup_nops left un-narrowed jumps to its nonzero target (Targets[0])
// and then unconditionally to its zero target (Targets[1]).
func (m *Machine) lowerIf(inst *ir.Instruction, alloc *regalloc.Allocation) {
	cond := m.operandOf(inst.Src[0], alloc)
	m.emit.EmitInstruction(backend.Cmp, 0, cond, backend.Imm64(0))
	if len(inst.Targets) == 2 {
		m.emit.EmitInstruction(backend.Jcc, backend.CondNotEqual, backend.Label64(m.labelFor(ir.BlockID(inst.Targets[0]))))
		m.emit.EmitInstruction(backend.Jmp, 0, backend.Label64(m.labelFor(ir.BlockID(inst.Targets[1]))))
		return
	}
	target := backend.Label64(m.labelFor(ir.BlockID(inst.Targets[0])))
	jccCond := backend.CondEqual
	if inst.Opcode == ir.OpIfNotZero {
		jccCond = backend.CondNotEqual
	}
	m.emit.EmitInstruction(backend.Jcc, jccCond, target)
}

func (m *Machine) lowerRet(inst *ir.Instruction, alloc *regalloc.Allocation) {
	if len(inst.Src) == 0 {
		return
	}
	result := m.operandOf(inst.Src[0], alloc)
	m.move(backend.R64(RAX), result, Clobbers[1])
}
