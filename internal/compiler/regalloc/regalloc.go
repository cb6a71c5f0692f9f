// Package regalloc implements spec.md §4.6's linear-scan register
// allocator: live-range extraction over a flat, liveness-complete
// instruction list, a forward scan with a LIFO free-list of physical
// registers, frame-offset spilling when the free-list runs dry, and a
// scratch-register fallback for values that die before any use.
//
// Grounded on the teacher's allocator shape (faddat-wazero's
// backend/regalloc/regalloc.go), generalized from its register-file-backed
// linear scan down to a plain physical-register-id model — this core has no
// SSA value graph or register class hierarchy of its own to drive a
// full RegisterInfo implementation against.
package regalloc

import (
	"github.com/basilc/corec/internal/compiler/ir"
	"github.com/basilc/corec/internal/compiler/symtab"
)

// RegisterSet names the physical registers available to the allocator and
// the one dedicated scratch register reserved for dead-on-arrival values
// (spec.md §4.6's "a value that's never read still needs a register to
// satisfy the instruction format; fall back to a scratch register without
// extending any live range for it").
type RegisterSet struct {
	Allocatable []int32
	Scratch     int32
}

// Allocation is the result of running the allocator over one Function:
// each local lands in exactly one of Reg (kept in a physical register for
// its entire live range) or FrameOffset (spilled to the stack frame).
type Allocation struct {
	Reg         map[symtab.LocalID]int32
	FrameOffset map[symtab.LocalID]int32
}

// RegisterOf reports the physical register holding id, if any.
func (a *Allocation) RegisterOf(id symtab.LocalID) (int32, bool) {
	r, ok := a.Reg[id]
	return r, ok
}

// liveRange is a local's gen/kill pair (spec.md §4.6 step 1): the first
// index where it transitions from not-live-in to live-out (its "gen"
// point) and the last index where it is live-in but not live-out (its
// "kill" point). Either can be absent (-1), the "degenerate" case spec.md
// §7 names explicitly — resolved by the scratch-register fallback rather
// than treated as an error.
type liveRange struct {
	local     symtab.LocalID
	gen, kill int
}

func (r liveRange) degenerate() bool { return r.gen < 0 || r.kill < 0 }

// Allocate runs linear-scan register allocation over f, which must already
// have gone through ir.RunPipeline (flat layout, no φs, liveness complete).
// It mutates f.FrameSize, growing it by 8 bytes per spilled local, and
// returns each spilled local's frame offset as a negative displacement
// from the frame pointer (spec.md §4.6 step 1/3).
func Allocate(f *ir.Function, regs RegisterSet) *Allocation {
	insts := flatten(f)
	ranges := extractLiveRanges(insts, f.Tab.NumLocals())

	// Step 2: bucket each local's range into gens[start] / kills[end].
	gens := make(map[int][]*liveRange)
	kills := make(map[int][]*liveRange)
	var degenerate []*liveRange
	for _, r := range ranges {
		if r.degenerate() {
			degenerate = append(degenerate, r)
			continue
		}
		gens[r.gen] = append(gens[r.gen], r)
		kills[r.kill] = append(kills[r.kill], r)
	}

	alloc := &Allocation{
		Reg:         make(map[symtab.LocalID]int32),
		FrameOffset: make(map[symtab.LocalID]int32),
	}

	// free is a LIFO stack: the most recently retired register is handed
	// out first (spec.md §4.6 step 3's "LIFO free-list"), matching the
	// teacher's register-pool push/pop discipline (faddat-wazero's
	// backend/regalloc/regalloc.go allocatedRegSet).
	free := append([]int32(nil), regs.Allocatable...)
	pop := func() (int32, bool) {
		if len(free) == 0 {
			return 0, false
		}
		r := free[len(free)-1]
		free = free[:len(free)-1]
		return r, true
	}
	push := func(r int32) { free = append(free, r) }

	// Step 3: scan forward over every instruction index in the flat list.
	for i := range insts {
		for _, r := range gens[i] {
			if _, ok := alloc.Reg[r.local]; ok {
				continue
			}
			if reg, ok := pop(); ok {
				alloc.Reg[r.local] = reg
			} else {
				f.FrameSize += 8
				alloc.FrameOffset[r.local] = -f.FrameSize
			}
		}
		for _, r := range kills[i] {
			if reg, ok := alloc.Reg[r.local]; ok {
				push(reg)
			}
		}
	}

	// Step 4: anything left unassigned — including every degenerate range —
	// is provably dead and maps to the designated scratch register.
	for _, r := range degenerate {
		if _, ok := alloc.Reg[r.local]; !ok {
			if _, spilled := alloc.FrameOffset[r.local]; !spilled {
				alloc.Reg[r.local] = regs.Scratch
			}
		}
	}

	// Mirror the result into the symbol table's own Local entries, the
	// canonical home for a local's assigned-register/frame-offset pair
	// (spec.md §3): exactly one of Reg >= 0 or Offset != 0 holds afterward,
	// unless the value is provably dead, in which case it carries the
	// scratch register and a zero offset.
	for id := 0; id < f.Tab.NumLocals(); id++ {
		local := f.Tab.Local(symtab.LocalID(id))
		if reg, ok := alloc.Reg[symtab.LocalID(id)]; ok {
			local.Reg = reg
		}
		if off, ok := alloc.FrameOffset[symtab.LocalID(id)]; ok {
			local.Offset = off
		}
	}

	return alloc
}

func flatten(f *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	for _, b := range f.Blocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			out = append(out, cur)
		}
	}
	return out
}

// extractLiveRanges implements spec.md §4.6 step 1 literally: for every
// local in the table (0..numLocals), gen = first i where l ∈ out(i) ∧ l ∉
// in(i), kill = last j where l ∈ in(j) ∧ l ∉ out(j). Locals that never
// appear in any live-in/live-out set (provably dead before liveness even
// starts, e.g. a discarded expression result) come out fully degenerate,
// which is exactly the case spec.md §4.6 step 4 hands to the scratch
// register.
func extractLiveRanges(insts []*ir.Instruction, numLocals int) []*liveRange {
	ranges := make([]*liveRange, numLocals)
	for id := 0; id < numLocals; id++ {
		ranges[id] = &liveRange{local: symtab.LocalID(id), gen: -1, kill: -1}
	}

	for i, inst := range insts {
		for id := range inst.LiveOut {
			if !inst.LiveIn.Contains(id) && ranges[id].gen < 0 {
				ranges[id].gen = i
			}
		}
		for id := range inst.LiveIn {
			if !inst.LiveOut.Contains(id) {
				ranges[id].kill = i
			}
		}
	}
	return ranges
}
