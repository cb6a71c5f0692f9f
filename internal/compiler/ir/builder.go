package ir

import (
	"math"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
)

// Builder is the caller-facing IR construction surface (spec.md §4.1, §6's
// "in-function IR entry points"). All constructors are pure beyond
// interning, matching spec.md §6.
//
// A Builder wraps exactly one Function plus the process-wide symtab.Table
// it interns into, mirroring the teacher's pattern of a per-function
// *builder driving a shared ssa package (faddat-wazero's ssa/builder.go),
// but without that package's wasm-frontend-specific state.
type Builder struct {
	F   *Function
	Tab *symtab.Table
}

// NewBuilder starts building a new function named name with result type
// typ, sharing tab as the process-wide interning table (spec.md §5's shared
// resource model).
func NewBuilder(tab *symtab.Table, name string, typ typeref.Type) *Builder {
	label := tab.InternLabel(name)
	return &Builder{F: NewFunction(label, typ, tab), Tab: tab}
}

// ---- value constructors (spec.md §6) ----

// Var looks up the Location currently denoting (symbol, ssaNum) in the
// variable table. Panics with the spec.md §7 "Malformed-IR" diagnostic if
// no such definition exists yet. Only meaningful after SSA construction has
// run; before that, use ReadVar/WriteVar below.
func (b *Builder) Var(symbol string, ssaNum uint32) Location {
	v := Variable{Symbol: symbol, SSANum: ssaNum}
	loc, ok := b.F.VarTable[v]
	if !ok {
		panic("malformed IR: use of undefined variable " + symbol)
	}
	return loc
}

// ReadVar records a pre-SSA read of the source variable named symbol,
// returning a placeholder Location that SSA construction's renaming pass
// (spec.md §4.3 step 4) rewrites in place to the variable's current
// SSA-numbered Location. Used as a source operand wherever the caller
// wants "the current value of symbol" before SSA numbers exist yet. Every
// ReadVar/WriteVar for the same symbol within a function shares one
// canonical placeholder local, so SSA construction can recognize all of
// them as referring to the same source-symbol.
func (b *Builder) ReadVar(symbol string, typ typeref.Type) Location {
	return LocalLoc(b.varSlot(symbol, typ))
}

func (b *Builder) varSlot(symbol string, typ typeref.Type) symtab.LocalID {
	if id, ok := b.F.varSlot[symbol]; ok {
		return id
	}
	id := b.Tab.CreateLocal(symbol, typ)
	b.F.varSlot[symbol] = id
	b.F.varType[symbol] = typ
	return id
}

// WriteVar emits a pre-SSA definition of the source variable named symbol
// with value src. SSA construction (spec.md §4.3 step 1, corrected per the
// §9 Open Question) discovers defining blocks from DestSymbol, mints a
// fresh SSA-numbered local for the destination, and records it in the
// function's variable table.
func (b *Builder) WriteVar(symbol string, typ typeref.Type, src Location) {
	b.varSlot(symbol, typ) // ensure the symbol is registered even if never read.
	inst := newInstruction(OpAssign, typ)
	inst.DestSymbol = symbol
	inst.Src = []Location{src}
	b.addInsn(inst)
}

// Temp creates an anonymous local of type typ (ir_temp).
func (b *Builder) Temp(typ typeref.Type) Location {
	return LocalLoc(b.Tab.CreateLocal("", typ))
}

// Int builds an immediate integer Location (ir_int).
func (b *Builder) Int(v int64) Location { return ImmediateLoc(v) }

// Float builds an immediate Location for a 32-bit float, bit-cast into the
// 64-bit immediate slot (ir_float); the float/double distinction is carried
// entirely by the instruction's Type, since spec.md §3 fixes Immediate as
// always a signed 64-bit integer.
func (b *Builder) Float(v float32) Location {
	return ImmediateLoc(int64(int32(math.Float32bits(v))))
}

// Double builds an immediate Location for a 64-bit float (ir_double).
func (b *Builder) Double(v float64) Location {
	return ImmediateLoc(int64(math.Float64bits(v)))
}

// Bool builds an immediate 0/1 Location (ir_bool).
func (b *Builder) Bool(v bool) Location {
	if v {
		return ImmediateLoc(1)
	}
	return ImmediateLoc(0)
}

// Char builds an immediate Location from a single byte (ir_char).
func (b *Builder) Char(c byte) Location { return ImmediateLoc(int64(c)) }

// String interns payload as a constant and returns its Location (ir_string).
func (b *Builder) String(s string) Location {
	_, label := b.Tab.InternConstant([]byte(s), typeref.Ptr)
	return LabelLoc(label)
}

// Sym interns name as a label and returns its id (ir_sym): used for callee
// names and data symbols that are not necessarily branch targets.
func (b *Builder) Sym(name string) symtab.LabelID { return b.Tab.InternLabel(name) }

// Type is a passthrough identity helper (ir_type): the Type Handle is
// already opaque, so there is nothing to intern.
func (b *Builder) Type(t typeref.Type) typeref.Type { return t }

// LabelOf returns blk's Location, interning its label lazily (ir_label).
func (b *Builder) LabelOf(blk *BasicBlock) Location { return LabelLoc(blk.Label()) }

// None returns the canonical absent-operand Location (ir_none).
func (b *Builder) None() Location { return NoneLoc }

// ---- block/control-flow builder operations (spec.md §4.1) ----

// NewBlock appends a disconnected block.
func (b *Builder) NewBlock() *BasicBlock { return b.F.NewBlock() }

// AddBlock adds a successor edge from the active block to blk.
func (b *Builder) AddBlock(blk *BasicBlock) { b.F.Active().AddSuccessor(blk) }

// SetActive switches the insertion point.
func (b *Builder) SetActive(blk *BasicBlock) { b.F.SetActive(blk) }

// addInsn appends inst to the active block (spec.md §4.1's add_insn),
// handling lazy destination materialization implicitly via Instruction.Dest.
func (b *Builder) addInsn(inst *Instruction) *Instruction {
	b.F.Active().Append(inst)
	return inst
}

// CreateLocal registers a local (ir_temp's underlying primitive, also
// exposed directly per spec.md §4.1's create_local).
func (b *Builder) CreateLocal(name string, typ typeref.Type) symtab.LocalID {
	return b.Tab.CreateLocal(name, typ)
}

// Finish closes the function (spec.md §4.1's finish()).
func (b *Builder) Finish(resultType typeref.Type, result Location) {
	b.F.Finish(resultType, result)
}

// ---- one constructor per opcode (spec.md §3) ----

func (b *Builder) binary(op Opcode, typ typeref.Type, l, r Location) Location {
	inst := newInstruction(op, typ)
	inst.Src = []Location{l, r}
	b.addInsn(inst)
	return inst.Dest()
}

func (b *Builder) Add(typ typeref.Type, l, r Location) Location { return b.binary(OpAdd, typ, l, r) }
func (b *Builder) Sub(typ typeref.Type, l, r Location) Location { return b.binary(OpSub, typ, l, r) }
func (b *Builder) Mul(typ typeref.Type, l, r Location) Location { return b.binary(OpMul, typ, l, r) }
func (b *Builder) Div(typ typeref.Type, l, r Location) Location { return b.binary(OpDiv, typ, l, r) }
func (b *Builder) Rem(typ typeref.Type, l, r Location) Location { return b.binary(OpRem, typ, l, r) }
func (b *Builder) And(typ typeref.Type, l, r Location) Location { return b.binary(OpAnd, typ, l, r) }
func (b *Builder) Or(typ typeref.Type, l, r Location) Location  { return b.binary(OpOr, typ, l, r) }
func (b *Builder) Xor(typ typeref.Type, l, r Location) Location { return b.binary(OpXor, typ, l, r) }

func (b *Builder) Eq(l, r Location) Location { return b.binary(OpEq, typeref.Bool, l, r) }
func (b *Builder) Ne(l, r Location) Location { return b.binary(OpNe, typeref.Bool, l, r) }
func (b *Builder) Lt(l, r Location) Location { return b.binary(OpLt, typeref.Bool, l, r) }
func (b *Builder) Le(l, r Location) Location { return b.binary(OpLe, typeref.Bool, l, r) }
func (b *Builder) Gt(l, r Location) Location { return b.binary(OpGt, typeref.Bool, l, r) }
func (b *Builder) Ge(l, r Location) Location { return b.binary(OpGe, typeref.Bool, l, r) }

// Not builds a unary logical negation (spec.md §4.7 lowers this to "compare
// to zero, setcc EQUAL").
func (b *Builder) Not(src Location) Location {
	inst := newInstruction(OpNot, typeref.Bool)
	inst.Src = []Location{src}
	b.addInsn(inst)
	return inst.Dest()
}

// Neg is declared but has no semantics yet (spec.md §9 Open Question);
// it is accepted as a no-op identity until a caller supplies meaning.
func (b *Builder) Neg(typ typeref.Type, src Location) Location {
	inst := newInstruction(OpNeg, typ)
	inst.Src = []Location{src}
	b.addInsn(inst)
	return inst.Dest()
}

// Load reads from a local/stack slot location.
func (b *Builder) Load(typ typeref.Type, addr Location) Location {
	inst := newInstruction(OpLoad, typ)
	inst.Src = []Location{addr}
	b.addInsn(inst)
	return inst.Dest()
}

// Store writes src to addr (void effect).
func (b *Builder) Store(addr, src Location) {
	inst := newInstruction(OpStore, typeref.Void)
	inst.Src = []Location{addr, src}
	b.addInsn(inst)
}

// Address takes the address-of a local (spec.md §3 "address-of").
func (b *Builder) Address(src Location) Location {
	inst := newInstruction(OpAddress, typeref.Ptr)
	inst.Src = []Location{src}
	b.addInsn(inst)
	return inst.Dest()
}

// LoadPtr dereferences a pointer-typed Location.
func (b *Builder) LoadPtr(typ typeref.Type, ptr Location) Location {
	inst := newInstruction(OpLoadPtr, typ)
	inst.Src = []Location{ptr}
	b.addInsn(inst)
	return inst.Dest()
}

// StorePtr writes src through a pointer-typed Location (void effect).
// Liveness (spec.md §4.5) treats both ptr and src as uses: ptr is read as
// an address, not killed.
func (b *Builder) StorePtr(ptr, src Location) {
	inst := newInstruction(OpStorePtr, typeref.Void)
	inst.Src = []Location{ptr, src}
	b.addInsn(inst)
}

// LoadArg reads the idx-th incoming argument.
func (b *Builder) LoadArg(typ typeref.Type, idx int) Location {
	inst := newInstruction(OpLoadArg, typ)
	inst.Src = []Location{ImmediateLoc(int64(idx))}
	b.addInsn(inst)
	return inst.Dest()
}

// Call invokes callee with the given argument Locations, in order.
func (b *Builder) Call(typ typeref.Type, callee Location, args ...Location) Location {
	inst := newInstruction(OpCall, typ)
	inst.CallLabel = callee
	inst.Src = append([]Location(nil), args...)
	b.addInsn(inst)
	return inst.Dest()
}

// Ret closes the current block with a return of result (void-typed result
// is expressed by passing NoneLoc). Most callers should go through
// Builder.Finish instead; Ret is exposed directly per spec.md §3/§6 for
// functions with more than one return path (e.g. after a branch join).
func (b *Builder) Ret(result Location) {
	inst := newInstruction(OpRet, typeref.Void)
	if !result.IsNone() {
		inst.Src = []Location{result}
	}
	b.addInsn(inst)
}

// LabelInsn emits a LABEL pseudo-instruction, mostly useful for debug dumps;
// branch targets are otherwise addressed directly via BasicBlock, not by
// this instruction appearing in the stream.
func (b *Builder) LabelInsn(l symtab.LabelID) {
	inst := newInstruction(OpLabel, typeref.Void)
	inst.Src = []Location{LabelLoc(l)}
	b.addInsn(inst)
}

// Goto ends the active block with an unconditional jump to target.
func (b *Builder) Goto(target *BasicBlock) {
	inst := newInstruction(OpGoto, typeref.Void)
	inst.Targets = []int{int(target.ID)}
	b.F.Active().Append(inst)
	b.F.Active().AddSuccessor(target)
}

// If ends the active block with a two-way conditional branch: trueTarget is
// taken when cond is nonzero, falseTarget when cond is zero. Pre-cleanup
// this is always represented with both targets present on a single OpIfZero
// instruction; cleanup_nops (spec.md §4.8) later narrows it to a
// single-target OpIfZero or OpIfNotZero when one of the two targets is the
// block laid out next, and otherwise leaves both targets in place.
func (b *Builder) If(cond Location, trueTarget, falseTarget *BasicBlock) {
	inst := newInstruction(OpIfZero, typeref.Void)
	inst.Src = []Location{cond}
	inst.Targets = []int{int(trueTarget.ID), int(falseTarget.ID)}
	active := b.F.Active()
	active.Append(inst)
	active.AddSuccessor(trueTarget)
	active.AddSuccessor(falseTarget)
}

// Assign is an identity copy, used both directly and as the output of
// phi-elimination (spec.md §4.8).
func (b *Builder) Assign(typ typeref.Type, src Location) Location {
	inst := newInstruction(OpAssign, typ)
	inst.Src = []Location{src}
	b.addInsn(inst)
	return inst.Dest()
}
