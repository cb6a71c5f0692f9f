package ir

// This file implements spec.md §4.8's three cleanup passes: linearize_cfg,
// phi_elim, and cleanup_nops. They run in that order — each one depends on
// artifacts the previous one produces (layout order, then a PHI-free
// stream, then a stream safe to narrow and compact).

// LinearizeCFG assigns each reachable block a final layout position via
// reverse-postorder DFS from the entry block (spec.md §4.8), then reorders
// f.blocks to match. Unreachable blocks are dropped — they have no
// predecessor path from Entry and would never be emitted.
func LinearizeCFG(f *Function) {
	f.Require(PassLinearizeCFG, func() {
		var postorder []*BasicBlock
		visited := make(map[BlockID]bool)
		var walk func(b *BasicBlock)
		walk = func(b *BasicBlock) {
			if visited[b.ID] {
				return
			}
			visited[b.ID] = true
			for _, s := range b.Succs {
				walk(s)
			}
			postorder = append(postorder, b)
		}
		walk(f.Entry)

		ordered := make([]*BasicBlock, len(postorder))
		for i, b := range postorder {
			ordered[len(postorder)-1-i] = b
		}
		for i, b := range ordered {
			b.LayoutOrder = i
		}
		f.RemoveBlocks(ordered)
	})
}

// PhiElimination implements spec.md §4.8's phi_elim: for every φ, insert a
// copy on each predecessor edge (an ASSIGN writing the predecessor's
// argument into the φ's own destination local) immediately before that
// predecessor's terminator, then delete the φ itself. Downstream reads of
// the φ's destination local are untouched — they now simply observe
// whichever predecessor's copy last ran.
func PhiElimination(f *Function) {
	f.Require(PassPhiElimination, func() {
		for _, b := range f.blocks {
			var phis []*Instruction
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				if cur.Opcode == OpPhi {
					phis = append(phis, cur)
				}
			}
			for _, phi := range phis {
				for i, pred := range b.Preds {
					cp := newInstruction(OpAssign, phi.Type)
					cp.owner = f
					cp.Src = []Location{phi.PhiArgs[i]}
					cp.SetDest(phi.Dest())
					insertBeforeTerminator(pred, cp)
				}
			}
			if len(phis) > 0 {
				kept := make([]*Instruction, 0, len(b.Instructions()))
				for _, inst := range b.Instructions() {
					if inst.Opcode == OpPhi {
						continue
					}
					kept = append(kept, inst)
				}
				b.SetInstructions(kept)
			}
		}
	})
}

// insertBeforeTerminator splices inst immediately before b's terminator.
// Every block built through Builder ends in a terminator (Goto/IfZero/Ret),
// so b always has at least one instruction here.
func insertBeforeTerminator(b *BasicBlock, inst *Instruction) {
	insts := b.Instructions()
	term := insts[len(insts)-1]
	rest := insts[:len(insts)-1]
	out := append(append([]*Instruction{}, rest...), inst, term)
	b.SetInstructions(out)
}

// CleanupNops implements spec.md §4.8's cleanup_nops: narrow a two-target
// conditional branch to a single target when the other target is the
// immediately-following block in layout order, drop a GOTO whose sole
// target is already the fallthrough, and then remove any block other than
// the entry and exit that is left with no instructions (redirecting its
// predecessors' branch targets around it).
//
// Must run after LinearizeCFG (it needs LayoutOrder) and after
// PhiElimination (a φ surviving to here would panic during liveness, per
// spec.md §7).
func CleanupNops(f *Function) {
	f.Require(PassCleanupNops, func() {
		narrowBranches(f)
		removeRedundantGotos(f)
		removeEmptyBlocks(f)
	})
}

// fallthroughOf returns the block laid out immediately after b, or nil if b
// is last.
func fallthroughOf(f *Function, b *BasicBlock) *BasicBlock {
	for _, other := range f.blocks {
		if other.LayoutOrder == b.LayoutOrder+1 {
			return other
		}
	}
	return nil
}

func narrowBranches(f *Function) {
	for _, b := range f.blocks {
		term := b.Tail()
		if term == nil || term.Opcode != OpIfZero || len(term.Targets) != 2 {
			continue
		}
		ft := fallthroughOf(f, b)
		if ft == nil {
			continue
		}
		trueTarget, falseTarget := BlockID(term.Targets[0]), BlockID(term.Targets[1])
		switch ft.ID {
		case falseTarget:
			// Falling through to the zero-target already happens naturally;
			// a nonzero cond must now jump explicitly to the true target.
			term.Opcode = OpIfNotZero
			term.Targets = []int{int(trueTarget)}
		case trueTarget:
			// Falling through to the true target already happens naturally;
			// a zero cond must now jump explicitly to the false target.
			term.Targets = []int{int(falseTarget)}
		}
	}
}

func removeRedundantGotos(f *Function) {
	for _, b := range f.blocks {
		term := b.Tail()
		if term == nil || term.Opcode != OpGoto || len(term.Targets) != 1 {
			continue
		}
		ft := fallthroughOf(f, b)
		if ft != nil && ft.ID == BlockID(term.Targets[0]) {
			insts := b.Instructions()
			b.SetInstructions(insts[:len(insts)-1])
		}
	}
}

// removeEmptyBlocks drops any block with no instructions (this can only
// arise from removeRedundantGotos dropping the goto that was a block's only
// remaining instruction; ordinary builder usage always terminates every
// block). Predecessors branching to the dropped block are redirected to
// its sole successor, and the CFG edges are rewired to match.
func removeEmptyBlocks(f *Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range f.blocks {
			if b == f.Entry || b == f.Exit || b.Root() != nil {
				continue
			}
			if len(b.Succs) != 1 {
				continue
			}
			target := b.Succs[0]
			for _, pred := range b.Preds {
				retarget(pred, b.ID, target)
				replaceSucc(pred, b, target)
				target.Preds = append(target.Preds, pred)
			}
			target.Preds = removeBlock(target.Preds, b)
			removeFromSlice(&b.Succs, target)

			var kept []*BasicBlock
			for _, other := range f.blocks {
				if other.ID != b.ID {
					kept = append(kept, other)
				}
			}
			f.RemoveBlocks(kept)
			changed = true
			break
		}
	}
}

// retarget rewrites any Targets entry on pred's terminator that names
// oldID to point at replacement instead.
func retarget(pred *BasicBlock, oldID BlockID, replacement *BasicBlock) {
	term := pred.Tail()
	if term == nil {
		return
	}
	for i, t := range term.Targets {
		if BlockID(t) == oldID {
			term.Targets[i] = int(replacement.ID)
		}
	}
}

func replaceSucc(pred, old, replacement *BasicBlock) {
	for i, s := range pred.Succs {
		if s == old {
			pred.Succs[i] = replacement
		}
	}
}

func removeBlock(list []*BasicBlock, b *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	for _, x := range list {
		if x != b {
			out = append(out, x)
		}
	}
	return out
}

func removeFromSlice(list *[]*BasicBlock, b *BasicBlock) {
	*list = removeBlock(*list, b)
}
