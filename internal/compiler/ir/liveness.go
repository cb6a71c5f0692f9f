package ir

import "github.com/basilc/corec/internal/compiler/symtab"

// ComputeLiveness implements spec.md §4.5: an iterative backward dataflow
// over the instructions of f, assigning LiveIn/LiveOut on every
// Instruction.
//
// This is meant to run on the flat, PHI-free instruction stream produced by
// linearize_cfg + phi_elim (spec.md §4.8) — exactly the "flat instruction
// list per function with liveness complete" spec.md §4.6 hands to the
// register allocator. Encountering a PHI here means phi-elimination did not
// run first, which is the exact "Unimplemented" condition spec.md §7 names
// ("emitting a φ after phi-elim should have removed it (panic)").
func ComputeLiveness(f *Function) {
	f.Require(PassLiveness, func() {
		insts := flattenInstructions(f)
		for _, i := range insts {
			i.LiveIn = NewLiveSet()
			i.LiveOut = NewLiveSet()
		}

		for changed := true; changed; {
			changed = false
			for idx := len(insts) - 1; idx >= 0; idx-- {
				inst := insts[idx]
				if inst.Opcode == OpPhi {
					panic("unimplemented: PHI reached liveness; phi_elim must run first")
				}

				liveOut := NewLiveSet()
				for _, succ := range instructionSuccessors(inst) {
					liveOut.UnionInto(succ.LiveIn)
				}

				liveIn := liveOut.Clone()
				if d := inst.destLocal(); d != nil {
					liveIn.Remove(*d)
				}
				for _, s := range inst.Src {
					if s.Tag == LocLocal {
						liveIn.Add(s.Local)
					}
				}

				if !liveIn.Equal(inst.LiveIn) {
					inst.LiveIn = liveIn
					changed = true
				}
				if !liveOut.Equal(inst.LiveOut) {
					inst.LiveOut = liveOut
					changed = true
				}
			}
		}
	})
}

// destLocal returns the local id of this instruction's destination, if it
// has one already materialized; nil otherwise. Liveness never triggers
// lazy materialization (calling Dest() would mint a fresh local as a side
// effect, which liveness must not do).
func (i *Instruction) destLocal() *symtab.LocalID {
	if !i.destSet || i.dest.Tag != LocLocal {
		return nil
	}
	id := i.dest.Local
	return &id
}

// instructionSuccessors returns the instructions that may execute
// immediately after inst: the next instruction in the same block for a
// non-terminator, or the root instruction of each of the owning block's
// CFG successors for a terminator.
func instructionSuccessors(inst *Instruction) []*Instruction {
	if inst.next != nil {
		return []*Instruction{inst.next}
	}
	if inst.owner == nil {
		return nil
	}
	blk := inst.owner.blockContaining(inst)
	if blk == nil {
		return nil
	}
	var out []*Instruction
	for _, s := range blk.Succs {
		if r := s.Root(); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// blockContaining finds the block owning inst by scanning every block's
// instruction list. Acceptable cost here: liveness already visits every
// instruction each sweep, and this is only called for the handful of
// terminator instructions (one per block) rather than every instruction.
func (f *Function) blockContaining(inst *Instruction) *BasicBlock {
	for _, b := range f.blocks {
		for cur := b.root; cur != nil; cur = cur.next {
			if cur == inst {
				return b
			}
		}
	}
	return nil
}

func flattenInstructions(f *Function) []*Instruction {
	var out []*Instruction
	for _, b := range f.blocks {
		for cur := b.root; cur != nil; cur = cur.next {
			out = append(out, cur)
		}
	}
	return out
}
