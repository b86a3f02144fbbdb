package modwire

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/arnedal/modwire/internal/syncmap"
	"golang.org/x/sync/errgroup"
)

// Packages is the per-resource package-space record computed fresh for
// every trial permutation: what the resource exports, what it imports and
// requires (with blame chains), and what its uses-constraints additionally
// pull into view. See spec §3 "Packages (per resource)" and §4.2.
type Packages struct {
	Resource Resource
	Exported map[string]Blame
	Imported map[string][]Blame
	Required map[string][]Blame
	// Used maps a used package name to the capabilities reached through
	// uses-constraints that provide it, each with its own blame chains.
	Used map[string]map[Capability]*UsedBlames
}

// wireCandidate is a (requirement, capability) pair that would become a
// real [Wire] if the current permutation were adopted.
type wireCandidate struct {
	Requirement Requirement
	Capability  Capability
}

// computeAllPackageSpaces computes wire candidates and Packages for every
// host in hosts. The per-host exported/imported/required computation has
// no cross-host dependency and runs concurrently via an errgroup, writing
// into a shared syncmap.Map; the uses-constraint merge that follows
// (computeUses) reads other hosts' already-computed Exported/Imported/
// Required maps and the shared packageSourcesCache, so it runs
// sequentially per host to avoid racing that cache.
func computeAllPackageSpaces(ctx context.Context, session *resolveSession, candidates *Candidates, hosts []Resource) (map[Resource]*Packages, map[Resource][]wireCandidate, error) {
	wireCands := make(map[Resource][]wireCandidate, len(hosts))
	for _, h := range hosts {
		wireCands[h] = computeWireCandidates(session, candidates, h)
	}

	var computed syncmap.Map[Resource, *Packages]
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hosts {
		host := h
		g.Go(func() error {
			pkgs, err := computePackages(session, candidates, host, wireCands)
			if err != nil {
				return err
			}
			computed.Swap(host, pkgs)
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	allPackages := computed.ToMap()
	for _, h := range hosts {
		computeUses(session, allPackages, candidates, wireCands, h)
	}
	return allPackages, wireCands, nil
}

func computeWireCandidates(session *resolveSession, candidates *Candidates, declared Resource) []wireCandidate {
	if wiring, ok := session.ctx.Wirings()[declared]; ok {
		var wcs []wireCandidate
		for _, w := range wiring.RequiredWires("") {
			wcs = append(wcs, wireCandidate{w.Requirement, w.Capability})
		}
		for _, req := range declared.Requirements("") {
			if !IsDynamic(req) {
				continue
			}
			if caps := candidates.byReq[req]; len(caps) > 0 {
				wcs = append(wcs, wireCandidate{req, caps[0]})
			}
		}
		return wcs
	}

	view := candidates.resourceView(declared)
	var wcs []wireCandidate
	for _, req := range view.Requirements("") {
		if IsDynamic(req) || !session.ctx.IsEffective(req) {
			continue
		}
		orig := DeclaredRequirement(req)
		caps := candidates.byReq[orig]
		if len(caps) == 0 {
			continue
		}
		if IsMultiple(orig) {
			for _, cap := range caps {
				wcs = append(wcs, wireCandidate{orig, cap})
			}
		} else {
			wcs = append(wcs, wireCandidate{orig, caps[0]})
		}
	}
	return wcs
}

func computePackages(session *resolveSession, candidates *Candidates, declared Resource, wireCands map[Resource][]wireCandidate) (*Packages, error) {
	view := candidates.resourceView(declared)
	pkgs := &Packages{
		Resource: view,
		Exported: map[string]Blame{},
		Imported: map[string][]Blame{},
		Required: map[string][]Blame{},
		Used:     map[string]map[Capability]*UsedBlames{},
	}

	for _, cap := range view.Capabilities(PackageNamespace) {
		pkg := PackageName(cap)
		if pkg == "" || isSubstituted(declared, cap, candidates) {
			continue
		}
		pkgs.Exported[pkg] = Blame{Capability: cap}
	}

	for _, wc := range wireCands[declared] {
		switch wc.Capability.Namespace() {
		case PackageNamespace:
			pkg := PackageName(wc.Capability)
			pkgs.Imported[pkg] = append(pkgs.Imported[pkg], Blame{Capability: wc.Capability, ReqChain: []Requirement{wc.Requirement}})
		case BundleNamespace:
			err := mergeRequiredPackages(pkgs, wc.Capability.Resource(), candidates, []Requirement{wc.Requirement}, wireCands, map[Resource]bool{})
			if err != nil {
				return nil, err
			}
		}
	}

	for _, wc := range wireCands[declared] {
		if !IsDynamic(wc.Requirement) {
			continue
		}
		pkg := PackageName(wc.Capability)
		if pkg == "" {
			continue
		}
		if _, ok := pkgs.Exported[pkg]; ok {
			return nil, dynamicallyVisibleErr(declared, pkg)
		}
		if _, ok := pkgs.Imported[pkg]; ok {
			return nil, dynamicallyVisibleErr(declared, pkg)
		}
		if _, ok := pkgs.Required[pkg]; ok {
			return nil, dynamicallyVisibleErr(declared, pkg)
		}
	}

	return pkgs, nil
}

func dynamicallyVisibleErr(declared Resource, pkg string) error {
	return &ResolutionException{
		Message: fmt.Sprintf("dynamic import of package %q by %v resolves to a package already visible to it", pkg, declared),
		Code:    CodeUsesConflict,
	}
}

// isSubstituted reports whether owner's own export capability exp has been
// substituted away by an import of the same package resolving to some
// other provider (spec §4.1 "Substitutable exports").
func isSubstituted(owner Resource, exp Capability, candidates *Candidates) bool {
	pkg := PackageName(exp)
	if pkg == "" {
		return false
	}
	for _, req := range owner.Requirements(PackageNamespace) {
		if !req.Matches(exp) {
			continue
		}
		if caps := candidates.byReq[req]; len(caps) > 0 && caps[0].Resource() != owner {
			return true
		}
	}
	return false
}

// mergeRequiredPackages folds provider's exported packages into
// pkgs.Required, following the provider's own reexported bundle-namespace
// wires transitively.
func mergeRequiredPackages(pkgs *Packages, provider Resource, candidates *Candidates, chain []Requirement, wireCands map[Resource][]wireCandidate, visited map[Resource]bool) error {
	if visited[provider] {
		return nil
	}
	visited[provider] = true

	view := candidates.resourceView(provider)
	for _, cap := range view.Capabilities(PackageNamespace) {
		if isSubstituted(provider, cap, candidates) {
			continue
		}
		pkg := PackageName(cap)
		if pkg == "" {
			continue
		}
		pkgs.Required[pkg] = append(pkgs.Required[pkg], Blame{Capability: cap, ReqChain: chain})
	}

	for _, wc := range wireCands[provider] {
		if wc.Capability.Namespace() != BundleNamespace || !IsReexport(wc.Requirement) {
			continue
		}
		nextChain := append(append([]Requirement(nil), chain...), wc.Requirement)
		if err := mergeRequiredPackages(pkgs, wc.Capability.Resource(), candidates, nextChain, wireCands, visited); err != nil {
			return err
		}
	}
	return nil
}

// computeUses adds the transitive consequences of every uses-constraint
// reachable from declared's wire candidates, imports, and requires into
// its Packages.Used map. See spec §4.2 "Used packages".
func computeUses(session *resolveSession, allPackages map[Resource]*Packages, candidates *Candidates, wireCands map[Resource][]wireCandidate, declared Resource) {
	pkgs := allPackages[declared]
	if pkgs == nil {
		return
	}

	_, resolved := session.ctx.Wirings()[declared]
	cands := wireCands[declared]
	dynamic := false
	if len(cands) > 0 && IsDynamic(cands[len(cands)-1].Requirement) {
		dynamic = true
	}
	if resolved && !dynamic {
		return
	}

	cycle := map[Capability]bool{}
	for _, wc := range cands {
		ns := wc.Requirement.Namespace()
		if ns == BundleNamespace || ns == PackageNamespace {
			continue
		}
		mergeUses(session, allPackages, candidates, wireCands, declared, pkgs, wc.Capability, []Requirement{wc.Requirement}, wc.Capability, cycle)
	}
	for _, blames := range pkgs.Imported {
		for _, b := range blames {
			mergeUses(session, allPackages, candidates, wireCands, declared, pkgs, b.Capability, []Requirement{b.WiredRequirement()}, nil, cycle)
		}
	}
	for _, blames := range pkgs.Required {
		for _, b := range blames {
			mergeUses(session, allPackages, candidates, wireCands, declared, pkgs, b.Capability, []Requirement{b.WiredRequirement()}, nil, cycle)
		}
	}
}

func mergeUses(session *resolveSession, allPackages map[Resource]*Packages, candidates *Candidates, wireCands map[Resource][]wireCandidate, declared Resource, pkgs *Packages, mergeCap Capability, blameReqs []Requirement, matchingCap Capability, cycle map[Capability]bool) {
	if DeclaredResource(mergeCap.Resource()) == declared {
		return
	}
	if cycle[mergeCap] {
		return
	}
	cycle[mergeCap] = true

	for _, sourceCap := range getPackageSources(session, mergeCap, allPackages, candidates, wireCands).ToSlice() {
		uses := Uses(sourceCap)
		if len(uses) == 0 {
			continue
		}
		sourcePkgs := allPackages[DeclaredResource(sourceCap.Resource())]
		if sourcePkgs == nil {
			continue
		}
		for _, usedPkg := range uses {
			sourceBlames := lookupBlames(sourcePkgs, usedPkg)
			if sourceBlames == nil {
				continue
			}
			usedSet := pkgs.Used[usedPkg]
			if usedSet == nil {
				usedSet = map[Capability]*UsedBlames{}
				pkgs.Used[usedPkg] = usedSet
			}
			for _, blame := range sourceBlames {
				chain := blameReqs
				if len(blame.ReqChain) > 0 {
					chain = append(append([]Requirement(nil), blameReqs...), blame.ReqChain[len(blame.ReqChain)-1])
				}
				ub := usedSet[blame.Capability]
				if ub == nil {
					ub = newUsedBlames(blame.Capability)
					usedSet[blame.Capability] = ub
				}
				ub.add(chain, matchingCap)
				mergeUses(session, allPackages, candidates, wireCands, declared, pkgs, blame.Capability, chain, matchingCap, cycle)
			}
		}
	}
}

// lookupBlames finds a used package's blame among a source resource's own
// package maps, in export > required > imported priority order.
func lookupBlames(pkgs *Packages, pkg string) []Blame {
	if exp, ok := pkgs.Exported[pkg]; ok {
		return []Blame{exp}
	}
	if req, ok := pkgs.Required[pkg]; ok {
		return req
	}
	if imp, ok := pkgs.Imported[pkg]; ok {
		return imp
	}
	return nil
}

// getPackageSources returns, computing and caching if necessary, the set
// of capabilities that can contribute cap's package to its declaring
// resource. See spec §4.2 "Package sources (transitive)".
func getPackageSources(session *resolveSession, cap Capability, allPackages map[Resource]*Packages, candidates *Candidates, wireCands map[Resource][]wireCandidate) mapset.Set[Capability] {
	if sources, ok := session.packageSourcesCache[cap]; ok {
		return sources
	}
	computePackageSourcesFor(session, DeclaredResource(cap.Resource()), allPackages, candidates, wireCands)
	if sources, ok := session.packageSourcesCache[cap]; ok {
		return sources
	}
	return mapset.NewThreadUnsafeSet[Capability]()
}

func computePackageSourcesFor(session *resolveSession, declared Resource, allPackages map[Resource]*Packages, candidates *Candidates, wireCands map[Resource][]wireCandidate) {
	view := candidates.resourceView(declared)
	var caps []Capability
	if wiring, ok := session.ctx.Wirings()[declared]; ok {
		caps = wiring.Capabilities("")
	} else {
		caps = view.Capabilities("")
	}

	pkgCaps := map[string]mapset.Set[Capability]{}
	for _, cap := range caps {
		if cap.Namespace() == PackageNamespace {
			pkg := PackageName(cap)
			set, ok := pkgCaps[pkg]
			if !ok {
				set = mapset.NewThreadUnsafeSet[Capability]()
				pkgCaps[pkg] = set
			}
			source := cap
			if DeclaredResource(cap.Resource()) != declared {
				source = newWrappedCapability(declared, cap)
			}
			session.packageSourcesCache[cap] = set
			set.Add(source)
			continue
		}
		if uses := Uses(cap); len(uses) > 0 {
			session.packageSourcesCache[cap] = mapset.NewThreadUnsafeSet[Capability](cap)
		} else {
			session.packageSourcesCache[cap] = mapset.NewThreadUnsafeSet[Capability]()
		}
	}

	pkgs := allPackages[declared]
	if pkgs == nil {
		return
	}
	for pkgName, set := range pkgCaps {
		for _, blame := range pkgs.Required[pkgName] {
			if set.Add(blame.Capability) {
				for _, s := range getPackageSources(session, blame.Capability, allPackages, candidates, wireCands).ToSlice() {
					set.Add(s)
				}
			}
		}
	}
}
