package modwire

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// checkUsesConstraints runs the uses-constraint checker over every host,
// reporting whether all of them are consistent. See spec §4.3.
func checkUsesConstraints(session *resolveSession, candidates *Candidates, allPackages map[Resource]*Packages, wireCands map[Resource][]wireCandidate, hosts []Resource) (bool, *ResolutionException) {
	var lastDiag *ResolutionException
	allOK := true
	for _, h := range hosts {
		ok, diag := checkResourceUses(session, candidates, allPackages, wireCands, h)
		if !ok {
			allOK = false
			if diag != nil {
				lastDiag = diag
			}
		}
	}
	return allOK, lastDiag
}

// checkResourceUses checks declared for uses-constraint conflicts, pushing
// permutations into session's queues as mitigations are found, and
// recursing into resources declared reaches through its first-candidate
// choices. See spec §4.3 steps 1-6.
func checkResourceUses(session *resolveSession, candidates *Candidates, allPackages map[Resource]*Packages, wireCands map[Resource][]wireCandidate, declared Resource) (bool, *ResolutionException) {
	if session.successfulResources.Contains(declared) {
		return true, nil
	}
	pkgs := allPackages[declared]
	if pkgs == nil {
		session.successfulResources.Add(declared)
		return true, nil
	}

	// 1. Fragment-import conflict: the same package imported from two
	// different resources.
	for pkg, blames := range pkgs.Imported {
		if len(blames) < 2 {
			continue
		}
		first := DeclaredResource(blames[0].Capability.Resource())
		for _, b := range blames[1:] {
			if DeclaredResource(b.Capability.Resource()) == first {
				continue
			}
			diag := &ResolutionException{
				Message: fmt.Sprintf("%v imports package %q from multiple sources", declared, pkg),
				Code:    CodeUsesConflict,
				Chains:  [][]Blame{{blames[0]}, {b}},
			}
			if nc := candidates.permutateIfNeeded(blames[0].WiredRequirement(), session.processedDeltas); nc != nil {
				session.usesPermutations.push(nc)
			}
			if nc := candidates.permutateIfNeeded(b.WiredRequirement(), session.processedDeltas); nc != nil {
				session.usesPermutations.push(nc)
			}
			return false, diag
		}
	}

	mutatedThisAttempt := map[Requirement]bool{}
	var diag *ResolutionException

	checkAgainstUsed := func(blamesByPkg map[string][]Blame) bool {
		ok := true
		for pkg, blames := range blamesByPkg {
			usedCaps := pkgs.Used[pkg]
			for candCap, ub := range usedCaps {
				if isCompatible(session, allPackages, candidates, wireCands, blames, candCap) {
					continue
				}

				// Relaxation is per blame: only a blame whose own root
				// requirement is multiple-cardinality, and for which
				// dropping root-cause candidates actually kept something,
				// is excused. Every other blame in ub still needs
				// mitigation, even when some of its siblings relaxed.
				relaxedRoots := map[Requirement]bool{}
				unresolved := make([]Blame, 0, len(ub.Blames))
				for _, blame := range ub.Blames {
					root := blame.RootRequirement()
					if root != nil && IsMultiple(root) {
						if causes, hasCauses := ub.RootCauses[root]; hasCauses {
							if relaxedRoots[root] || tryMultipleCardRelaxation(session, candidates, root, causes) {
								relaxedRoots[root] = true
								continue
							}
						}
					}
					unresolved = append(unresolved, blame)
				}
				if len(unresolved) == 0 {
					continue
				}

				ok = false
				if diag == nil {
					diag = &ResolutionException{
						Message: fmt.Sprintf("%v has incompatible uses constraints for package %q", declared, pkg),
						Code:    CodeUsesConflict,
					}
				}
				for _, b := range unresolved {
					diag.Chains = append(diag.Chains, []Blame{b})
				}

				unresolvedUB := &UsedBlames{Capability: ub.Capability, Blames: unresolved, RootCauses: ub.RootCauses}
				if rotate := mitigateUsesConflict(unresolvedUB, mutatedThisAttempt, candidates); len(rotate) > 0 {
					for req := range rotate {
						mutatedThisAttempt[req] = true
					}
					permuteAll(session, candidates, rotate)
				}
				seedImportPermutations(session, candidates, unresolvedUB, mutatedThisAttempt)
			}
		}
		return ok
	}

	exportsOK := checkAgainstUsed(exportBlamesByPackage(pkgs.Exported))
	importsOK := checkAgainstUsed(mergeImportedRequired(pkgs.Imported, pkgs.Required))
	if !exportsOK || !importsOK {
		return false, diag
	}

	session.successfulResources.Add(declared)

	// 6. Recurse into every resource declared reaches through a
	// first-candidate choice.
	for _, req := range declared.Requirements("") {
		if IsDynamic(req) || !session.ctx.IsEffective(req) {
			continue
		}
		caps := candidates.byReq[req]
		if len(caps) == 0 {
			continue
		}
		child := DeclaredResource(caps[0].Resource())
		if child == declared {
			continue
		}
		if ok, childDiag := checkResourceUses(session, candidates, allPackages, wireCands, child); !ok {
			if len(mutatedThisAttempt) == 0 {
				if nc := candidates.permutateIfNeeded(req, session.processedDeltas); nc != nil {
					session.importPermutations.push(nc)
				}
			}
			return false, childDiag
		}
	}

	return true, nil
}

// isCompatible reports whether candCap's transitive package sources are in
// an inclusion chain with currentBlames' combined sources: one set must
// contain the other.
func isCompatible(session *resolveSession, allPackages map[Resource]*Packages, candidates *Candidates, wireCands map[Resource][]wireCandidate, currentBlames []Blame, candCap Capability) bool {
	currentSources := mapset.NewThreadUnsafeSet[Capability]()
	for _, b := range currentBlames {
		for _, s := range getPackageSources(session, b.Capability, allPackages, candidates, wireCands).ToSlice() {
			currentSources.Add(s)
		}
	}
	candSources := getPackageSources(session, candCap, allPackages, candidates, wireCands)
	return currentSources.IsSubset(candSources) || candSources.IsSubset(currentSources)
}

// tryMultipleCardRelaxation attempts to resolve a conflict implicating a
// single multiple-cardinality root requirement by dropping its root-cause
// candidates instead of permuting. Surviving candidates are recorded on
// session.multipleCardCandidates for adoption if the rest of the attempt
// succeeds. Only the blame whose own root this is gets excused by a
// successful relaxation; every other blame sharing the same used capability
// still needs mitigation.
func tryMultipleCardRelaxation(session *resolveSession, candidates *Candidates, root Requirement, causes map[Capability]bool) bool {
	base := session.multipleCardCandidates
	if base == nil {
		base = candidates.copy()
	}
	if kept := base.clearCandidates(root, causes); len(kept) > 0 {
		session.multipleCardCandidates = base
		return true
	}
	return false
}

// mitigateUsesConflict walks each blame's requirement chain from tail to
// head looking for the first single-cardinality, not-yet-mutated
// requirement, and collects one such requirement per blame to rotate.
func mitigateUsesConflict(ub *UsedBlames, mutated map[Requirement]bool, candidates *Candidates) map[Requirement]bool {
	toRotate := map[Requirement]bool{}
	for _, blame := range ub.Blames {
		for i := len(blame.ReqChain) - 1; i >= 0; i-- {
			req := blame.ReqChain[i]
			if IsMultiple(req) || mutated[req] || toRotate[req] {
				continue
			}
			if len(candidates.byReq[req]) < 2 {
				continue
			}
			toRotate[req] = true
			break
		}
	}
	return toRotate
}

// permuteAll clones candidates, rotates every requirement in toRotate
// together, and enqueues the result as a single new uses-permutation.
func permuteAll(session *resolveSession, candidates *Candidates, toRotate map[Requirement]bool) {
	nc := candidates.copy()
	for req := range toRotate {
		caps := nc.byReq[req]
		if len(caps) < 2 {
			continue
		}
		rotated := make([]Capability, len(caps))
		copy(rotated, caps[1:])
		rotated[len(rotated)-1] = caps[0]
		nc.byReq[req] = rotated
	}
	if !session.processedDeltas.Contains(nc.getDelta()) {
		session.usesPermutations.push(nc)
	}
}

// seedImportPermutations seeds a secondary, lower-priority permutation for
// every not-yet-mutated requirement in ub's blame chains, so the search can
// backtrack on the original import decision once uses-permutations run
// out.
func seedImportPermutations(session *resolveSession, candidates *Candidates, ub *UsedBlames, mutated map[Requirement]bool) {
	for _, blame := range ub.Blames {
		for _, req := range blame.ReqChain {
			if mutated[req] {
				continue
			}
			if nc := candidates.permutateIfNeeded(req, session.processedDeltas); nc != nil {
				session.importPermutations.push(nc)
			}
		}
	}
}

func exportBlamesByPackage(exported map[string]Blame) map[string][]Blame {
	out := make(map[string][]Blame, len(exported))
	for pkg, b := range exported {
		out[pkg] = []Blame{b}
	}
	return out
}

// mergeImportedRequired merges required and imported blames by package
// name. On a package-name collision the imported blames replace the
// required ones; packages present in only one of the two maps keep their
// own blames, so both maps feed the uses check.
func mergeImportedRequired(imported, required map[string][]Blame) map[string][]Blame {
	out := make(map[string][]Blame, len(imported)+len(required))
	for pkg, b := range required {
		out[pkg] = append(out[pkg], b...)
	}
	for pkg, b := range imported {
		out[pkg] = b
	}
	return out
}
