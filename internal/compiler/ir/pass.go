package ir

// RunPipeline drives every required pass over f in the fixed order spec.md
// §2's "Data flow" diagram implies: SSA enforcement and its dominance
// analysis first, then the cleanup passes that turn the CFG into the flat,
// PHI-free form the register allocator needs, then liveness — computed
// fresh here, after phi_elim, so that every live range PhiElimination's
// inserted copies introduce is accounted for. compile.go calls this once
// per Function before handing it to the register allocator.
func RunPipeline(f *Function) {
	EnforceSSA(f)
	LinearizeCFG(f)
	PhiElimination(f)
	CleanupNops(f)
	f.Invalidate(PassLiveness)
	ComputeLiveness(f)
}
