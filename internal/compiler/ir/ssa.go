package ir

import (
	"github.com/basilc/corec/internal/compiler/symtab"
)

// EnforceSSA implements spec.md §4.3's Cytron-style minimal SSA
// construction: phi placement at iterated dominance frontiers followed by
// dominator-tree-order renaming.
//
// Per the Open Question in spec.md §9, defining-blocks are discovered from
// the *destination* of every assignment (Instruction.DestSymbol), not from
// an instruction's first source operand as the literal (buggy) wording of
// step 1 describes — this implementation corrects that, as the spec asks.
func EnforceSSA(f *Function) {
	f.Require(PassEnforceSSA, func() {
		ComputeDominanceFrontiers(f)

		symToID := invertVarSlots(f)
		placePhis(f)

		f.resetSSA()
		for _, b := range f.blocks {
			b.VarsIn = make(map[string]*Variable)
			b.VarsOut = make(map[string]*Variable)
		}

		domChildren := buildDomChildren(f)
		rename(f, f.Entry, domChildren, map[string]Location{}, symToID)

		fillPhiOperands(f)
		pruneTrivialPhis(f)
	})
}

// invertVarSlots returns localID -> symbol for every declared variable
// symbol, used to recognize a Src Location as "a read of variable sym"
// during the renaming walk (def discovery in placePhis uses DestSymbol).
func invertVarSlots(f *Function) map[symtab.LocalID]string {
	m := make(map[symtab.LocalID]string, len(f.varSlot))
	for sym, id := range f.varSlot {
		m[id] = sym
	}
	return m
}

// symbolOf reports the variable symbol a Location denotes, if any.
func symbolOf(loc Location, symToID map[symtab.LocalID]string) (string, bool) {
	if loc.Tag != LocLocal {
		return "", false
	}
	s, ok := symToID[loc.Local]
	return s, ok
}

// placePhis discovers defining blocks from instruction destinations (step 1,
// corrected) and iterates the worklist algorithm to a fixpoint over
// dominance frontiers (step 2).
func placePhis(f *Function) {
	f.DefiningBlocks = make(map[string][]*BasicBlock)
	definedIn := make(map[string]map[BlockID]bool)

	for _, b := range f.blocks {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			if cur.DestSymbol == "" {
				continue
			}
			sym := cur.DestSymbol
			if definedIn[sym] == nil {
				definedIn[sym] = make(map[BlockID]bool)
			}
			if !definedIn[sym][b.ID] {
				definedIn[sym][b.ID] = true
				f.DefiningBlocks[sym] = append(f.DefiningBlocks[sym], b)
			}
		}
	}

	for sym, defs := range f.DefiningBlocks {
		worklist := append([]*BasicBlock(nil), defs...)
		inWorklist := definedIn[sym]
		hasPhi := make(map[BlockID]bool)

		for len(worklist) > 0 {
			d := worklist[0]
			worklist = worklist[1:]
			for fid := range d.Frontier {
				fb := f.blockByID(fid)
				if hasPhi[fb.ID] {
					continue
				}
				fb.PendingPhis[sym] = &PendingPhi{Symbol: sym}
				hasPhi[fb.ID] = true
				if !inWorklist[fb.ID] {
					inWorklist[fb.ID] = true
					worklist = append(worklist, fb)
				}
			}
		}
	}
}

// blockByID resolves a BlockID to its *BasicBlock. Panics (out-of-bounds,
// spec.md §7) if the id is unknown — every BlockID in play here always
// originates from f.blocks.
func (f *Function) blockByID(id BlockID) *BasicBlock {
	for _, b := range f.blocks {
		if b.ID == id {
			return b
		}
	}
	panic("BUG: unknown block id")
}

// buildDomChildren groups blocks by their immediate dominator, giving the
// dominator tree's children lists used to drive renaming recursion.
func buildDomChildren(f *Function) map[BlockID][]*BasicBlock {
	children := make(map[BlockID][]*BasicBlock)
	for _, b := range f.blocks {
		if b.IDom == nil || b.ID == f.Entry.ID {
			continue
		}
		children[b.IDom.ID] = append(children[b.IDom.ID], b)
	}
	return children
}

// rename walks the dominator tree materializing phis, rewriting uses to the
// current SSA-numbered Location, and renumbering defs (spec.md §4.3 steps
// 3-4). current is copied (not mutated in place) before recursing into each
// child so that sibling subtrees never observe each other's definitions.
func rename(f *Function, b *BasicBlock, domChildren map[BlockID][]*BasicBlock, current map[string]Location, symToID map[symtab.LocalID]string) {
	local := make(map[string]Location, len(current))
	for k, v := range current {
		local[k] = v
	}

	// Materialize pending phis at the block head, in a stable order.
	var phiSymbols []string
	for sym := range b.PendingPhis {
		phiSymbols = append(phiSymbols, sym)
	}
	sortStrings(phiSymbols)

	var phiInsts []*Instruction
	for _, sym := range phiSymbols {
		typ := f.varType[sym]
		phi := newInstruction(OpPhi, typ)
		phi.owner = f
		id := f.Tab.CreateLocal("", typ)
		phi.SetDest(LocalLoc(id))
		b.PendingPhis[sym].Inst = phi
		local[sym] = phi.Dest()
		f.setVarsOut(b, sym, phi.Dest())
		num := f.bumpSSA(sym)
		f.VarTable[Variable{Symbol: sym, SSANum: num}] = phi.Dest()
		phiInsts = append(phiInsts, phi)
	}
	if len(phiInsts) > 0 {
		rest := b.root
		b.root = phiInsts[0]
		for i := 1; i < len(phiInsts); i++ {
			phiInsts[i-1].next = phiInsts[i]
		}
		phiInsts[len(phiInsts)-1].next = rest
		if rest == nil {
			b.tail = phiInsts[len(phiInsts)-1]
		}
	}

	for cur := b.root; cur != nil; cur = cur.next {
		if cur.Opcode == OpPhi {
			continue // already placed above; its PhiArgs are filled in fillPhiOperands.
		}
		for i, s := range cur.Src {
			if sym, ok := symbolOf(s, symToID); ok {
				loc, ok := local[sym]
				if !ok {
					panic("malformed IR: use of variable " + sym + " before any definition reaches " + b.Name())
				}
				cur.Src[i] = loc
			}
		}
		if cur.DestSymbol != "" {
			num := f.bumpSSA(cur.DestSymbol)
			id := f.Tab.CreateLocal("", cur.Type)
			loc := LocalLoc(id)
			cur.SetDest(loc)
			local[cur.DestSymbol] = loc
			f.VarTable[Variable{Symbol: cur.DestSymbol, SSANum: num}] = loc
		}
	}

	for sym, loc := range local {
		f.setVarsOut(b, sym, loc)
	}

	for _, child := range domChildren[b.ID] {
		rename(f, child, domChildren, local, symToID)
	}
}

func (f *Function) setVarsOut(b *BasicBlock, sym string, loc Location) {
	b.VarsOut[sym] = &Variable{Symbol: sym, Value: loc}
}

// fillPhiOperands implements step 5: fill operands of φs in the head of a
// block by pulling vars_out[symbol] from each predecessor, in predecessor
// order. This runs after every block has been renamed, so every
// predecessor's VarsOut (including loop back-edges) is populated.
func fillPhiOperands(f *Function) {
	for _, b := range f.blocks {
		for _, pp := range b.PendingPhis {
			phi := pp.Inst
			if phi == nil {
				continue
			}
			args := make([]Location, len(b.Preds))
			for i, p := range b.Preds {
				v, ok := p.VarsOut[pp.Symbol]
				if !ok {
					panic("BUG: predecessor " + p.Name() + " has no recorded value for " + pp.Symbol)
				}
				args[i] = v.Value
			}
			phi.PhiArgs = args
		}
	}
}

// pruneTrivialPhis removes φs with fewer than two operands as redundant
// (spec.md §4.3 step 6; confirmed literal against
// original_source/compiler/ssa.cpp:930's `src.size() < 2` check).
func pruneTrivialPhis(f *Function) {
	for _, b := range f.blocks {
		var kept []*Instruction
		for cur := b.root; cur != nil; cur = cur.next {
			if cur.Opcode == OpPhi && len(cur.PhiArgs) < 2 {
				continue
			}
			kept = append(kept, cur)
		}
		b.SetInstructions(kept)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
