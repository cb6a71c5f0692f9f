package amd64

import (
	"fmt"

	"github.com/basilc/corec/internal/compiler/backend"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// AsmEmitter is the concrete backend.Emitter for this target: it appends
// obj.Prog records to an in-memory program list through golang-asm's obj/x86
// package, the same `cmd/internal/obj` fork the teacher's go.mod already
// depends on, but stops at the Prog list — it never calls obj.Flushplist or
// anything that would turn the list into bytes, since final linking/
// assembly is out of scope (spec.md §1/§6).
type AsmEmitter struct {
	ctxt *obj.Link
	cur  *obj.Prog
	// Head is the first instruction emitted since the last Reset, nil until
	// the first EmitLabel/EmitInstruction call.
	Head *obj.Prog
}

// NewAsmEmitter builds an AsmEmitter targeting amd64/linux, matching the
// calling convention and syscall ABI reg.go and lower.go assume.
func NewAsmEmitter() *AsmEmitter {
	ctxt := obj.Linknew(&x86.Linkamd64)
	ctxt.Diag = func(format string, args ...interface{}) {
		panic(fmt.Sprintf("asmemit: %s", fmt.Sprintf(format, args...)))
	}
	return &AsmEmitter{ctxt: ctxt}
}

// Reset discards the accumulated program list so the Emitter can be reused
// for the next function.
func (e *AsmEmitter) Reset() {
	e.cur = nil
	e.Head = nil
}

func (e *AsmEmitter) append(p *obj.Prog) {
	p.Ctxt = e.ctxt
	if e.cur != nil {
		e.cur.Link = p
	} else {
		e.Head = p
	}
	e.cur = p
}

func (e *AsmEmitter) newProg() *obj.Prog {
	return &obj.Prog{Ctxt: e.ctxt}
}

// symAddr builds a branch/call/data-reference obj.Addr for sym: NAME_EXTERN
// for a Global symbol (visible to a future linker pass), NAME_STATIC for a
// Local one.
func (e *AsmEmitter) symAddr(sym backend.Symbol) obj.Addr {
	name := obj.NAME_STATIC
	if sym.Linkage == backend.Global {
		name = obj.NAME_EXTERN
	}
	return obj.Addr{
		Type: obj.TYPE_BRANCH,
		Name: name,
		Sym:  e.ctxt.Lookup(sym.Name),
	}
}

// EmitLabel binds sym to a no-op marker instruction at the current
// position, the same technique golang-asm's own assembler frontend uses to
// bind labels before a branch target is known (cmd/internal/obj's
// "pseudo-op carrying a symbol" convention).
func (e *AsmEmitter) EmitLabel(sym backend.Symbol) {
	p := e.newProg()
	p.As = obj.ANOP
	p.From = e.symAddr(sym)
	e.append(p)
}

var mnemonicTable = map[backend.Mnemonic]obj.As{
	backend.Mov:     x86.AMOVQ,
	backend.Add:     x86.AADDQ,
	backend.Sub:     x86.ASUBQ,
	backend.IMul:    x86.AIMULQ,
	backend.IDiv:    x86.AIDIVQ,
	backend.Cdq:     x86.ACDQ,
	backend.Cqo:     x86.ACQO,
	backend.Cmp:     x86.ACMPQ,
	backend.Jmp:     x86.AJMP,
	backend.Call:    x86.ACALL,
	backend.Ret:     x86.ARET,
	backend.Push:    x86.APUSHQ,
	backend.Pop:     x86.APOPQ,
	backend.Inc:     x86.AINCQ,
	backend.Dec:     x86.ADECQ,
	backend.Lea:     x86.ALEAQ,
	backend.Syscall: x86.ASYSCALL,
	backend.And:     x86.AANDQ,
	backend.Or:      x86.AORQ,
	backend.Xor:     x86.AXORQ,
}

var setccTable = map[backend.Cond]obj.As{
	backend.CondEqual:        x86.ASETEQ,
	backend.CondNotEqual:     x86.ASETNE,
	backend.CondLess:         x86.ASETLT,
	backend.CondLessEqual:    x86.ASETLE,
	backend.CondGreater:      x86.ASETGT,
	backend.CondGreaterEqual: x86.ASETGE,
}

var jccTable = map[backend.Cond]obj.As{
	backend.CondEqual:        x86.AJEQ,
	backend.CondNotEqual:     x86.AJNE,
	backend.CondLess:         x86.AJLT,
	backend.CondLessEqual:    x86.AJLE,
	backend.CondGreater:      x86.AJGT,
	backend.CondGreaterEqual: x86.AJGE,
}

// regTable maps our ModRM-order register ids to golang-asm's x86 register
// constants, a direct table lookup per reg.go's numbering comment.
var regTable = map[int32]int16{
	RAX: x86.REG_AX, RCX: x86.REG_CX, RDX: x86.REG_DX, RBX: x86.REG_BX,
	RSP: x86.REG_SP, RBP: x86.REG_BP, RSI: x86.REG_SI, RDI: x86.REG_DI,
	R8: x86.REG_R8, R9: x86.REG_R9, R10: x86.REG_R10, R11: x86.REG_R11,
	R12: x86.REG_R12, R13: x86.REG_R13, R14: x86.REG_R14, R15: x86.REG_R15,
}

// addrOf converts a backend.Operand into the obj.Addr golang-asm expects.
func (e *AsmEmitter) addrOf(o backend.Operand) obj.Addr {
	switch o.Kind {
	case backend.OperandReg:
		return obj.Addr{Type: obj.TYPE_REG, Reg: regTable[o.Reg]}
	case backend.OperandMem:
		a := obj.Addr{Type: obj.TYPE_MEM, Reg: regTable[o.Reg], Offset: int64(o.Disp)}
		if o.Index >= 0 {
			a.Index = regTable[o.Index]
			a.Scale = int8(o.Scale)
		}
		return a
	case backend.OperandImm:
		return obj.Addr{Type: obj.TYPE_CONST, Offset: o.Imm}
	case backend.OperandLabel:
		return e.symAddr(o.Label)
	default:
		panic("BUG: unknown operand kind")
	}
}

// EmitInstruction appends one obj.Prog. Per spec.md §6's destination-first
// convention, a two-operand call supplies (dest, src) and is translated to
// golang-asm's (From=src, To=dest) Prog shape; a one-operand call (unary
// ops, Jmp/Call/Push/Pop/SetCC) only fills To.
func (e *AsmEmitter) EmitInstruction(mn backend.Mnemonic, cond backend.Cond, operands ...backend.Operand) {
	p := e.newProg()

	switch mn {
	case backend.SetCC:
		p.As = setccTable[cond]
	case backend.Jcc:
		p.As = jccTable[cond]
	default:
		as, ok := mnemonicTable[mn]
		if !ok {
			panic(fmt.Sprintf("BUG: no x86-64 mnemonic mapping for %v", mn))
		}
		p.As = as
	}

	switch len(operands) {
	case 0:
		// Cdq/Cqo/Syscall/Ret take no explicit operands.
	case 1:
		to := e.addrOf(operands[0])
		p.To = to
	case 2:
		dest := e.addrOf(operands[0])
		src := e.addrOf(operands[1])
		p.From = src
		p.To = dest
	default:
		panic("BUG: more than two operands is not a representable x86-64 instruction form")
	}

	e.append(p)
}
