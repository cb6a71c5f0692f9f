// Package backend defines the lowering-side interfaces spec.md §6 names:
// the Code Emitter (the boundary between instruction selection and the
// byte-producing assembler) and the per-target Machine that drives it.
//
// Grounded on the teacher's backend package shape (faddat-wazero's
// internal/engine/wazevo/backend/machine.go), generalized from its
// arm64-only Machine/CompilationContext pair to the flat mnemonic/operand
// vocabulary spec.md §6 specifies directly, since this core lowers a flat
// post-cleanup instruction list rather than re-walking an SSA block graph
// at codegen time.
package backend

// Linkage is a symbol's visibility, mirroring spec.md §6's
// global(name)/local(name) symbol constructors.
type Linkage int

const (
	Local Linkage = iota
	Global
)

// Symbol names an emitted label.
type Symbol struct {
	Name    string
	Linkage Linkage
}

// GlobalSymbol builds a globally-visible symbol (spec.md §6 "global(name)").
func GlobalSymbol(name string) Symbol { return Symbol{Name: name, Linkage: Global} }

// LocalSymbol builds a file-local symbol (spec.md §6 "local(name)").
func LocalSymbol(name string) Symbol { return Symbol{Name: name, Linkage: Local} }

// OperandKind is the tag of the Operand sum type.
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandMem
	OperandImm
	OperandLabel
)

// Operand is a machine operand: a register, a memory reference ([base+disp]
// or [base+index*scale+disp]), a 64-bit immediate, or a label reference
// (spec.md §6's r64/m64/imm64/label64 constructors, collapsed into one
// struct with a kind tag rather than four constructor functions, matching
// Location's sum-type shape in the IR core).
type Operand struct {
	Kind OperandKind

	Reg int32 // OperandReg, or the base register of OperandMem.

	Index int32 // OperandMem only; -1 if unindexed.
	Scale int32 // OperandMem only; 1/2/4/8 when Index is set.
	Disp  int32 // OperandMem only.

	Imm int64 // OperandImm.

	Label Symbol // OperandLabel.
}

// R64 builds a 64-bit register operand.
func R64(reg int32) Operand { return Operand{Kind: OperandReg, Reg: reg} }

// M64 builds a [base+disp] memory operand.
func M64(base int32, disp int32) Operand {
	return Operand{Kind: OperandMem, Reg: base, Index: -1, Disp: disp}
}

// M64Indexed builds a [base+index*scale+disp] memory operand.
func M64Indexed(base, index, scale, disp int32) Operand {
	return Operand{Kind: OperandMem, Reg: base, Index: index, Scale: scale, Disp: disp}
}

// Imm64 builds a 64-bit immediate operand.
func Imm64(v int64) Operand { return Operand{Kind: OperandImm, Imm: v} }

// Label64 builds an operand referencing sym's address, used as a jump/call
// target or a RIP-relative data reference.
func Label64(sym Symbol) Operand { return Operand{Kind: OperandLabel, Label: sym} }

// Mnemonic enumerates the x86-64 instruction forms spec.md §6 requires the
// emitter to accept.
type Mnemonic int

const (
	Mov Mnemonic = iota
	Add
	Sub
	IMul
	IDiv
	Cdq
	Cqo
	Cmp
	SetCC
	Jcc
	Jmp
	Call
	Ret
	Push
	Pop
	Inc
	Dec
	Lea
	Syscall
	And
	Or
	Xor
)

// Cond is a condition code for SetCC/Jcc, covering the six IR comparisons
// (spec.md §3); there are no always-true/always-false forms.
type Cond int

const (
	CondEqual Cond = iota
	CondNotEqual
	CondLess
	CondLessEqual
	CondGreater
	CondGreaterEqual
)

// Emitter is the boundary between lowering and the byte-producing backend
// (spec.md §6). Lowering never inspects encoded bytes; it only issues
// labels and instructions in program order.
type Emitter interface {
	// EmitLabel binds sym to the current emission position.
	EmitLabel(sym Symbol)

	// EmitInstruction appends one machine instruction. cond is only
	// meaningful for SetCC/Jcc; operands follow Intel destination-first
	// order (the Emitter's concrete amd64 implementation, grounded on
	// github.com/twitchyliquid64/golang-asm's obj.Prog/obj.Addr, translates
	// them into obj.Prog's From=source/To=destination shape).
	EmitInstruction(m Mnemonic, cond Cond, operands ...Operand)
}
