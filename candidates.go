package modwire

import (
	"crypto/sha256"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

type populateMode int

const (
	modeMandatory populateMode = iota
	modeOptional
)

// Candidates is the mutable, per-resolve-attempt structure mapping every
// populated requirement to its ordered candidate-capability list, plus the
// fragment/host wrap bookkeeping and the metadata needed to dedupe
// permutations cheaply. A fresh Candidates is created for each search run
// ([ResolveDynamic], and every pass of [Resolve]'s optional-removal retry
// loop) and cloned cheaply (via copy) for every permutation the search
// driver tries.
type Candidates struct {
	ctx ResolveContext

	byReq map[Requirement][]Capability
	order []Resource

	wraps       map[Resource]*wrappedResource
	fragmentsOf map[Resource][]Resource

	populated   mapset.Set[Resource]
	unsatisfied mapset.Set[Resource]

	prepared bool
}

func newCandidates(ctx ResolveContext) *Candidates {
	return &Candidates{
		ctx:         ctx,
		byReq:       map[Requirement][]Capability{},
		wraps:       map[Resource]*wrappedResource{},
		fragmentsOf: map[Resource][]Resource{},
		populated:   mapset.NewThreadUnsafeSet[Resource](),
		unsatisfied: mapset.NewThreadUnsafeSet[Resource](),
	}
}

// resourceView returns the wrap for r if fragments attached to it during
// prepare, otherwise r itself.
func (c *Candidates) resourceView(r Resource) Resource {
	if w, ok := c.wraps[r]; ok {
		return w
	}
	return r
}

// populate recursively pulls in providers for every non-dynamic, effective
// requirement of resource, populating each provider's resource with the
// same or a weakened mode (mandatory children stay mandatory; optional
// children propagate as optional). See spec §4.1.
func (c *Candidates) populate(resource Resource, mode populateMode) error {
	if c.populated.Contains(resource) {
		return nil
	}
	c.populated.Add(resource)
	c.order = append(c.order, resource)

	_, alreadyResolved := c.ctx.Wirings()[resource]

	for _, req := range resource.Requirements("") {
		if IsDynamic(req) || !c.ctx.IsEffective(req) {
			continue
		}
		if alreadyResolved {
			continue
		}

		caps := c.ctx.FindProviders(req)
		if len(caps) == 0 {
			if mode != modeMandatory || IsOptional(req) {
				c.unsatisfied.Add(resource)
				continue
			}
			return &ResolutionException{
				Message:    fmt.Sprintf("missing provider for mandatory requirement of %v in namespace %s", resource, req.Namespace()),
				Code:       CodeMissingMandatoryRequirement,
				Unresolved: []Requirement{req},
			}
		}
		c.byReq[req] = caps

		childMode := mode
		if IsOptional(req) && mode == modeMandatory {
			childMode = modeOptional
		}

		if req.Namespace() == HostNamespace {
			for _, cap := range caps {
				c.fragmentsOf[cap.Resource()] = append(c.fragmentsOf[cap.Resource()], resource)
			}
		}

		for _, cap := range caps {
			child := cap.Resource()
			if req.Namespace() == HostNamespace {
				if err := c.checkFragmentCycle(resource, child); err != nil {
					return err
				}
			}
			if err := c.populate(child, childMode); err != nil {
				if mode == modeMandatory && !IsOptional(req) {
					return err
				}
				c.unsatisfied.Add(resource)
			}
		}
	}
	return nil
}

// checkFragmentCycle reports an error if fragment transitively attaches to
// itself by following the host-namespace attachment chain starting at
// host (host's own host-namespace candidates, and so on).
func (c *Candidates) checkFragmentCycle(fragment, host Resource) error {
	visited := map[Resource]bool{}
	var walk func(r Resource) bool
	walk = func(r Resource) bool {
		if r == fragment {
			return true
		}
		if visited[r] {
			return false
		}
		visited[r] = true
		for _, hostReq := range r.Requirements(HostNamespace) {
			for _, cap := range c.byReq[hostReq] {
				if walk(cap.Resource()) {
					return true
				}
			}
		}
		return false
	}
	if walk(host) {
		return &ResolutionException{
			Message: fmt.Sprintf("fragment attachment cycle: %v attaches to %v transitively through itself", fragment, host),
			Code:    CodeFragmentCycle,
		}
	}
	return nil
}

// populateDynamic seeds a single dynamic requirement of an already-resolved
// host against a pre-ranked candidate list, then populates each match. See
// spec §4.1 and §4.5.
func (c *Candidates) populateDynamic(host Resource, req Requirement, matches []Capability) error {
	if len(matches) == 0 {
		return &ResolutionException{
			Message:    fmt.Sprintf("no providers for dynamic requirement of %v", host),
			Code:       CodeMissingMandatoryRequirement,
			Unresolved: []Requirement{req},
		}
	}
	if !c.populated.Contains(host) {
		c.populated.Add(host)
		c.order = append(c.order, host)
	}
	c.byReq[req] = append([]Capability(nil), matches...)
	for _, cap := range matches {
		if err := c.populate(cap.Resource(), modeMandatory); err != nil {
			return err
		}
	}
	return nil
}

// prepare merges each host's attached fragments into a wrapped host and
// registers the fragments' hosted capabilities with the context so they
// rank consistently among other candidates. See spec §4.1.
func (c *Candidates) prepare() error {
	for host, fragments := range c.fragmentsOf {
		if len(fragments) == 0 {
			continue
		}
		wrap := newWrappedResource(host, fragments)
		c.wraps[host] = wrap
		for _, cap := range wrap.caps {
			hc, ok := cap.(HostedCapability)
			if !ok {
				continue
			}
			for req, caps := range c.byReq {
				if req.Namespace() != hc.Namespace() || !req.Matches(hc) {
					continue
				}
				idx := c.ctx.InsertHostedCapability(caps, hc)
				c.byReq[req] = insertCapabilityAt(caps, idx, hc)
			}
		}
	}
	c.prepared = true
	return nil
}

func insertCapabilityAt(caps []Capability, idx int, cap Capability) []Capability {
	if idx < 0 || idx > len(caps) {
		idx = len(caps)
	}
	out := make([]Capability, 0, len(caps)+1)
	out = append(out, caps[:idx]...)
	out = append(out, cap)
	out = append(out, caps[idx:]...)
	return out
}

// checkSubstitutes enforces that a resource which both exports and imports
// the same package does not leave a downstream candidate list pinned to
// the self-export once the import substitutes a different provider; on a
// contradiction it seeds a permutation flipping the offending downstream
// candidate. Returns true if it pushed at least one permutation.
func (c *Candidates) checkSubstitutes(uses *permutationQueue, processed mapset.Set[string]) bool {
	pushed := false
	for _, res := range c.order {
		for _, exp := range res.Capabilities(PackageNamespace) {
			for _, imp := range res.Requirements(PackageNamespace) {
				if !imp.Matches(exp) {
					continue
				}
				own := c.byReq[imp]
				if len(own) == 0 || own[0].Resource() == res {
					continue // not substituted away
				}
				for req, cands := range c.byReq {
					if req.Namespace() != PackageNamespace || req.Resource() == res {
						continue
					}
					if len(cands) == 0 || cands[0] != exp {
						continue
					}
					if nc := c.permutateIfNeeded(req, processed); nc != nil {
						uses.push(nc)
						pushed = true
					}
				}
			}
		}
	}
	return pushed
}

// copy returns a shallow clone of c: a new candidate-list map (each list
// itself freshly sliced) with shared wrap/fragment bookkeeping, suitable
// as the starting point for a permutation.
func (c *Candidates) copy() *Candidates {
	nc := &Candidates{
		ctx:         c.ctx,
		byReq:       make(map[Requirement][]Capability, len(c.byReq)),
		order:       append([]Resource(nil), c.order...),
		wraps:       c.wraps,
		fragmentsOf: c.fragmentsOf,
		populated:   c.populated.Clone(),
		unsatisfied: c.unsatisfied.Clone(),
		prepared:    c.prepared,
	}
	for req, caps := range c.byReq {
		nc.byReq[req] = append([]Capability(nil), caps...)
	}
	return nc
}

// permutate returns a copy of c with req's first candidate rotated to the
// tail, or nil if req has fewer than two candidates.
func (c *Candidates) permutate(req Requirement) *Candidates {
	caps := c.byReq[req]
	if len(caps) < 2 {
		return nil
	}
	nc := c.copy()
	rotated := make([]Capability, len(caps))
	copy(rotated, caps[1:])
	rotated[len(rotated)-1] = caps[0]
	nc.byReq[req] = rotated
	return nc
}

// permutateIfNeeded is like permutate but returns nil if the resulting
// permutation's delta has already been seen in processed.
func (c *Candidates) permutateIfNeeded(req Requirement, processed mapset.Set[string]) *Candidates {
	nc := c.permutate(req)
	if nc == nil {
		return nil
	}
	if processed.Contains(nc.getDelta()) {
		return nil
	}
	return nc
}

// canRemoveCandidate reports whether req's candidate list could lose its
// first candidate and remain satisfiable.
func (c *Candidates) canRemoveCandidate(req Requirement) bool {
	return len(c.byReq[req]) >= 2 || IsOptional(req)
}

// removeFirstCandidate drops req's first candidate.
func (c *Candidates) removeFirstCandidate(req Requirement) {
	caps := c.byReq[req]
	if len(caps) == 0 {
		return
	}
	c.byReq[req] = caps[1:]
}

// clearCandidates retains, for a multiple-cardinality requirement, only
// the candidates not named in remove, and returns the surviving list.
func (c *Candidates) clearCandidates(req Requirement, remove map[Capability]bool) []Capability {
	caps := c.byReq[req]
	kept := make([]Capability, 0, len(caps))
	for _, cap := range caps {
		if !remove[cap] {
			kept = append(kept, cap)
		}
	}
	c.byReq[req] = kept
	return kept
}

// getDelta is a hashable fingerprint of the current permutation: the tuple
// of first-candidate choices over every populated requirement, with
// requirement keys stable-sorted before hashing so map-iteration-order
// nondeterminism can never manufacture a spurious "new" delta for an
// already-tried permutation (see the FELIX4478 regression this structurally
// avoids, in candidates_test.go).
func (c *Candidates) getDelta() string {
	type entry struct{ key, cap string }
	entries := make([]entry, 0, len(c.byReq))
	for req, caps := range c.byReq {
		if len(caps) == 0 {
			continue
		}
		entries = append(entries, entry{requirementSortKey(req), capabilitySortKey(caps[0])})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].cap < entries[j].cap
	})
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%s\x00", e.key, e.cap)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func requirementSortKey(req Requirement) string {
	return fmt.Sprintf("%s\x00%p\x00%s", req.Namespace(), DeclaredResource(req.Resource()), req.Filter())
}

func capabilitySortKey(cap Capability) string {
	return fmt.Sprintf("%p", DeclaredCapability(cap))
}
