// Package amd64 implements spec.md §4.6/§4.7's x86-64 target: the register
// sets the allocator scans over, instruction selection, memory↔memory
// legalization, and frame open/close.
package amd64

import "github.com/basilc/corec/internal/compiler/regalloc"

// Physical register ids, numbered to match the x86-64 ModRM/SIB encoding
// (RAX=0 .. R15=15) so the concrete Emitter (asmemit.go) can map them onto
// golang-asm's x86 register constants with a single table lookup instead of
// a second parallel enum.
const (
	RAX int32 = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// regNames gives each register its assembly mnemonic, exposed through
// RegName; asmemit's golang-asm binding uses its own regTable instead.
var regNames = map[int32]string{
	RAX: "AX", RCX: "CX", RDX: "DX", RBX: "BX", RSP: "SP", RBP: "BP",
	RSI: "SI", RDI: "DI", R8: "R8", R9: "R9", R10: "R10", R11: "R11",
	R12: "R12", R13: "R13", R14: "R14", R15: "R15",
}

// RegName returns the assembly mnemonic for a physical register id.
func RegName(r int32) string { return regNames[r] }

// Registers is this target's instance of spec.md §4.6's declared sets:
// allocatable = {RBX, R8..R15}; args = {RDI, RSI, RCX, RDX, R8, R9} (spec.md
// §9's Open Question: this core picks this order deliberately over the
// System V ABI's {RDI,RSI,RDX,RCX,R8,R9} — RCX before RDX — and documents
// the choice here since "the test suite must match" whichever is picked);
// clobbers = {RAX, RDX, RCX, RBX}; the return value is always RAX.
var Registers = regalloc.RegisterSet{
	Allocatable: []int32{RBX, R8, R9, R10, R11, R12, R13, R14, R15},
	Scratch:     RAX,
}

// ArgRegisters is the argument-passing sequence (spec.md §4.6).
var ArgRegisters = []int32{RDI, RSI, RCX, RDX, R8, R9}

// Clobbers is the fixed scratch set lowering may freely repurpose for
// legalization (spec.md §4.7): RAX, RDX, RCX, RBX, in that preference
// order.
var Clobbers = []int32{RAX, RDX, RCX, RBX}

// ReturnRegister is always RAX (spec.md §4.6).
const ReturnRegister = RAX
