package modwire

// A Blame documents how a package reached a resource's package space: the
// capability that ultimately provides it, and the chain of requirements
// traversed to reach that capability. ReqChain[0] is the root requirement
// (the one the resource itself declared); the last entry is the
// requirement actually wired to Capability.
type Blame struct {
	Capability Capability
	ReqChain   []Requirement
}

// RootRequirement returns the first requirement in the blame chain, or nil
// if the chain is empty (only possible for an export's own Blame, which
// carries no chain at all).
func (b Blame) RootRequirement() Requirement {
	if len(b.ReqChain) == 0 {
		return nil
	}
	return b.ReqChain[0]
}

// WiredRequirement returns the last requirement in the blame chain: the one
// actually bound to Capability.
func (b Blame) WiredRequirement() Requirement {
	if len(b.ReqChain) == 0 {
		return nil
	}
	return b.ReqChain[len(b.ReqChain)-1]
}

// extended returns a copy of b with req appended to the blame chain. The
// whole of b's chain is kept, in order, ahead of req.
func (b Blame) extended(req Requirement) Blame {
	chain := make([]Requirement, len(b.ReqChain)+1)
	copy(chain, b.ReqChain)
	chain[len(chain)-1] = req
	return Blame{Capability: b.Capability, ReqChain: chain}
}

// UsedBlames collects every Blame that reaches a given used capability
// through the "uses" merge, plus the set of root-cause capabilities that
// pulled each multiple-cardinality root requirement's candidate in (needed
// by the uses checker's clearCandidates mitigation).
type UsedBlames struct {
	Capability Capability
	Blames     []Blame
	// RootCauses maps a multiple-cardinality root requirement to the set
	// of capabilities, among that requirement's bound candidates, that are
	// responsible for pulling this use in.
	RootCauses map[Requirement]map[Capability]bool
}

func newUsedBlames(cap Capability) *UsedBlames {
	return &UsedBlames{Capability: cap, RootCauses: map[Requirement]map[Capability]bool{}}
}

// add records blame reaching cap via chain, attributed to matchingCap (the
// capability the outer merge was walking when it discovered this use; nil
// when the use was discovered via a required-capability wire rather than a
// generic-namespace requirement).
func (u *UsedBlames) add(chain []Requirement, matchingCap Capability) {
	u.Blames = append(u.Blames, Blame{Capability: u.Capability, ReqChain: chain})
	if len(chain) == 0 {
		return
	}
	root := chain[0]
	if !IsMultiple(root) {
		return
	}
	cause := matchingCap
	if cause == nil {
		cause = u.Capability
	}
	set := u.RootCauses[root]
	if set == nil {
		set = map[Capability]bool{}
		u.RootCauses[root] = set
	}
	set[cause] = true
}
