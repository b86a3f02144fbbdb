package modwire

import (
	"context"
	"log/slog"
	"sort"

	"github.com/arnedal/modwire/internal/logging"
)

// Resolve runs the module resolver core: it populates candidates for every
// mandatory and optional resource ctx reports, merges fragments into their
// hosts, and searches permutations of candidate choices until it finds one
// whose package spaces are globally uses-consistent, or exhausts the
// search space. See spec §4.4.
//
// Resolve is a pure function of ctx: it neither mutates anything reachable
// through ctx nor retains state between calls.
func Resolve(ctx context.Context, rc ResolveContext) (WireMap, error) {
	mandatory := rc.MandatoryResources()
	optionalSet := append([]Resource(nil), rc.OptionalResources()...)

	for {
		session := newResolveSession(rc)
		candidates := newCandidates(rc)

		if diag := populateWorkingSet(candidates, mandatory, optionalSet); diag != nil {
			return nil, diag.Build()
		}
		if err := candidates.prepare(); err != nil {
			if re, ok := err.(*ResolutionException); ok {
				return nil, re.Build()
			}
			return nil, err
		}

		if !QuickFeasibilityCheck(mandatory, candidates.byReq) {
			return nil, (&ResolutionException{
				Message: "no selection of candidates can satisfy every mandatory requirement",
				Code:    CodeMissingMandatoryRequirement,
			}).Build()
		}

		session.usesPermutations.push(candidates)

		slog.DebugContext(ctx, "resolve: starting search", "mandatory", len(mandatory), "optional", len(optionalSet))
		wireMap, resErr := runSearchLoop(ctx, session)
		if resErr == nil {
			slog.DebugContext(ctx, "resolve: search succeeded")
			return wireMap, nil
		}

		if !isOptionalOnly(resErr, mandatory) {
			return nil, resErr.Build()
		}
		next := removeImplicated(optionalSet, resErr)
		if len(next) == len(optionalSet) {
			return nil, resErr.Build()
		}
		slog.DebugContext(ctx, "resolve: retrying with optional resources removed", "removed", len(optionalSet)-len(next))
		optionalSet = next
	}
}

func populateWorkingSet(candidates *Candidates, mandatory, optional []Resource) *ResolutionException {
	for _, r := range mandatory {
		if err := candidates.populate(r, modeMandatory); err != nil {
			if re, ok := err.(*ResolutionException); ok {
				return re
			}
			return &ResolutionException{Message: err.Error(), Code: CodeInternal}
		}
	}
	for _, r := range optional {
		_ = candidates.populate(r, modeOptional)
	}
	return nil
}

// runSearchLoop is spec §4.4's outer loop, steps 3-8.
func runSearchLoop(ctx context.Context, session *resolveSession) (WireMap, *ResolutionException) {
	var lastDiag *ResolutionException
	for {
		select {
		case <-ctx.Done():
			return nil, &ResolutionException{Message: "resolve canceled: " + ctx.Err().Error(), Code: CodeInternal}
		default:
		}

		candidates, ok := session.nextPermutation()
		if !ok {
			if lastDiag == nil {
				lastDiag = &ResolutionException{Message: "no permutation of candidates satisfies every uses constraint", Code: CodeUsesConflict}
			}
			return nil, lastDiag
		}
		slog.Log(ctx, logging.LevelVerbose, "resolve: trying permutation", "delta", candidates.getDelta())

		session.resetPerAttemptState()

		if candidates.checkSubstitutes(&session.usesPermutations, session.processedDeltas) {
			continue
		}

		hosts := hostsOf(candidates)
		allPackages, wireCands, err := computeAllPackageSpaces(ctx, session, candidates, hosts)
		if err != nil {
			if re, ok := err.(*ResolutionException); ok {
				lastDiag = keepShorterDiag(lastDiag, re)
			}
			continue
		}

		ok2, diag := checkUsesConstraints(session, candidates, allPackages, wireCands, hosts)
		if !ok2 {
			lastDiag = keepShorterDiag(lastDiag, diag)
			continue
		}

		final := candidates
		if session.multipleCardCandidates != nil {
			final = session.multipleCardCandidates
		}
		return buildWireMap(session, final, wireCands), nil
	}
}

func hostsOf(candidates *Candidates) []Resource {
	var hosts []Resource
	for _, r := range candidates.order {
		if IsFragment(r) {
			continue
		}
		hosts = append(hosts, r)
	}
	return hosts
}

// buildWireMap walks every populated resource and emits its wires, per
// spec §4.4 "Wire construction" and §6's ordering contract.
func buildWireMap(session *resolveSession, candidates *Candidates, wireCands map[Resource][]wireCandidate) WireMap {
	wm := WireMap{}
	for _, r := range candidates.order {
		var wires []Wire
		requirer := DeclaredResource(r)
		for _, req := range r.Requirements("") {
			if !session.ctx.IsEffective(req) {
				continue
			}
			// A dynamic requirement only has candidates here if
			// populateDynamic explicitly seeded it (the ResolveDynamic
			// path); ordinary populate never assigns one.
			caps := candidates.byReq[req]
			if len(caps) == 0 {
				continue
			}
			emit := func(cap Capability) {
				provider := DeclaredResource(cap.Resource())
				if isSelfWireExcluded(req.Namespace(), requirer, provider) {
					return
				}
				wires = append(wires, Wire{
					Requirer:    requirer,
					Requirement: req,
					Provider:    provider,
					Capability:  DeclaredCapability(cap),
				})
			}
			if IsMultiple(req) {
				for _, cap := range caps {
					emit(cap)
				}
			} else {
				emit(caps[0])
			}
		}
		if len(wires) > 0 {
			sortWires(wires)
			wm[requirer] = wires
		}
	}
	return wm
}

// isSelfWireExcluded reports whether a wire in one of the osgi.wiring.*
// namespaces would have requirer equal to provider, which the resolver
// never emits even when such a candidate is technically valid.
func isSelfWireExcluded(namespace string, requirer, provider Resource) bool {
	if requirer != provider {
		return false
	}
	switch namespace {
	case PackageNamespace, BundleNamespace, HostNamespace:
		return true
	default:
		return false
	}
}

// sortWires orders package wires first, then bundle/host wires, then
// everything else, matching spec §6's return-contract ordering.
func sortWires(wires []Wire) {
	rank := func(w Wire) int {
		switch w.Requirement.Namespace() {
		case PackageNamespace:
			return 0
		case BundleNamespace, HostNamespace:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(wires, func(i, j int) bool { return rank(wires[i]) < rank(wires[j]) })
}

// isOptionalOnly reports whether diag implicates only optional resources,
// never any resource in mandatory.
func isOptionalOnly(diag *ResolutionException, mandatory []Resource) bool {
	mandatorySet := map[Resource]bool{}
	for _, r := range mandatory {
		mandatorySet[DeclaredResource(r)] = true
	}
	implicated := implicatedResources(diag)
	if len(implicated) == 0 {
		return false
	}
	for r := range implicated {
		if mandatorySet[r] {
			return false
		}
	}
	return true
}

func removeImplicated(optional []Resource, diag *ResolutionException) []Resource {
	implicated := implicatedResources(diag)
	out := make([]Resource, 0, len(optional))
	for _, r := range optional {
		if !implicated[DeclaredResource(r)] {
			out = append(out, r)
		}
	}
	return out
}

// keepShorterDiag returns whichever of current and candidate cites the
// shorter blame chains, per spec §4.4 step 7: the search reports the
// shortest conflict observed across every permutation it tried, not just
// the most recent one. A diagnostic with no chains at all (e.g. the
// no-permutations-left fallback) never displaces one that has them.
func keepShorterDiag(current, candidate *ResolutionException) *ResolutionException {
	if candidate == nil {
		return current
	}
	if current == nil {
		return candidate
	}
	curLen, candLen := blameChainLen(current.Chains), blameChainLen(candidate.Chains)
	if curLen == 0 {
		return candidate
	}
	if candLen == 0 {
		return current
	}
	if candLen < curLen {
		return candidate
	}
	return current
}

func blameChainLen(chains [][]Blame) int {
	n := 0
	for _, c := range chains {
		n += len(c)
	}
	return n
}

func implicatedResources(diag *ResolutionException) map[Resource]bool {
	out := map[Resource]bool{}
	for _, req := range diag.Unresolved {
		out[DeclaredResource(req.Resource())] = true
	}
	for _, chain := range diag.Chains {
		for _, b := range chain {
			if len(b.ReqChain) > 0 {
				out[DeclaredResource(b.ReqChain[0].Resource())] = true
			}
		}
	}
	return out
}
