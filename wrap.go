package modwire

// Fragments attach to hosts and hosts attach to fragments only at resolve
// time; the source entities never know about the combination. Rather than
// modeling that combination with inheritance, the wrap/hosted/declared
// trio below are tagged variants over the plain Resource/Capability/
// Requirement interfaces, each with an unwrap accessor. Every boundary-
// facing API (wires, diagnostics, the ResolveContext calls) deals only in
// declared entities; wraps exist solely inside the package-space
// calculator and the uses-constraint checker.

type unwrapper interface{ Unwrap() any }

// DeclaredResource follows r's wrap chain (if any) back to the resource a
// caller actually declared. A wrapped host unwraps to its host resource.
func DeclaredResource(r Resource) Resource {
	for {
		u, ok := r.(unwrapper)
		if !ok {
			return r
		}
		d, ok := u.Unwrap().(Resource)
		if !ok {
			return r
		}
		r = d
	}
}

// DeclaredCapability follows cap's wrap chain back to the capability a
// fragment or host actually declared.
func DeclaredCapability(cap Capability) Capability {
	for {
		u, ok := cap.(unwrapper)
		if !ok {
			return cap
		}
		d, ok := u.Unwrap().(Capability)
		if !ok {
			return cap
		}
		cap = d
	}
}

// DeclaredRequirement follows req's wrap chain back to the requirement a
// fragment actually declared.
func DeclaredRequirement(req Requirement) Requirement {
	for {
		u, ok := req.(unwrapper)
		if !ok {
			return req
		}
		d, ok := u.Unwrap().(Requirement)
		if !ok {
			return req
		}
		req = d
	}
}

// wrappedResource is the synthetic resource representing host with its
// attached fragments merged in: the host's own capabilities/requirements
// plus every fragment's, each fragment's requirement rewritten to name the
// wrap (not the fragment) as its requirer.
type wrappedResource struct {
	host      Resource
	fragments []Resource
	caps      []Capability
	reqs      []Requirement
}

var _ Resource = (*wrappedResource)(nil)

func newWrappedResource(host Resource, fragments []Resource) *wrappedResource {
	w := &wrappedResource{host: host, fragments: fragments}
	for _, c := range host.Capabilities("") {
		w.caps = append(w.caps, newWrappedCapability(w, c))
	}
	for _, r := range host.Requirements("") {
		w.reqs = append(w.reqs, newWrappedRequirement(w, r))
	}
	for _, f := range fragments {
		for _, c := range f.Capabilities("") {
			w.caps = append(w.caps, newHostedCapability(w, c))
		}
		for _, r := range f.Requirements("") {
			if r.Namespace() == HostNamespace {
				continue
			}
			w.reqs = append(w.reqs, newWrappedRequirement(w, r))
		}
	}
	return w
}

func (w *wrappedResource) Capabilities(namespace string) []Capability {
	return filterByNamespace(w.caps, namespace, func(c Capability) string { return c.Namespace() })
}

func (w *wrappedResource) Requirements(namespace string) []Requirement {
	return filterByNamespace(w.reqs, namespace, func(r Requirement) string { return r.Namespace() })
}

// Unwrap returns the host: the declared resource a wrapped host represents
// at the wire-construction boundary.
func (w *wrappedResource) Unwrap() any { return w.host }

// wrappedCapability rehomes a capability declared by a wrap's host (or by
// some other already-resolved resource reached during package-space
// computation) onto a specific wrap, so the wrap's owner is visible to
// consumers without mutating the original capability.
type wrappedCapability struct {
	declared Capability
	owner    Resource
}

var _ Capability = (*wrappedCapability)(nil)

func newWrappedCapability(owner Resource, declared Capability) *wrappedCapability {
	return &wrappedCapability{declared: declared, owner: owner}
}

func (w *wrappedCapability) Resource() Resource             { return w.owner }
func (w *wrappedCapability) Namespace() string               { return w.declared.Namespace() }
func (w *wrappedCapability) Attributes() map[string]any       { return w.declared.Attributes() }
func (w *wrappedCapability) Directives() map[string]string { return w.declared.Directives() }
func (w *wrappedCapability) Unwrap() any                     { return w.declared }

// wrappedRequirement rehomes a requirement declared by a wrap's host or an
// attached fragment onto the wrap, so the wrap (not the fragment) is the
// requirer seen while package spaces are computed. Populate and wire
// construction work on the declared requirement, which
// [DeclaredRequirement] recovers.
type wrappedRequirement struct {
	declared Requirement
	owner    Resource
}

var _ Requirement = (*wrappedRequirement)(nil)

func newWrappedRequirement(owner Resource, declared Requirement) *wrappedRequirement {
	return &wrappedRequirement{declared: declared, owner: owner}
}

func (w *wrappedRequirement) Resource() Resource             { return w.owner }
func (w *wrappedRequirement) Namespace() string               { return w.declared.Namespace() }
func (w *wrappedRequirement) Directives() map[string]string { return w.declared.Directives() }
func (w *wrappedRequirement) Filter() string                 { return w.declared.Filter() }
func (w *wrappedRequirement) Matches(cap Capability) bool     { return w.declared.Matches(cap) }
func (w *wrappedRequirement) Unwrap() any                     { return w.declared }

// HostedCapability is a capability originally declared by a fragment,
// re-homed onto the wrap it attaches to. Unlike a plain wrappedCapability,
// a HostedCapability's insertion point among a findProviders result is
// decided by the ResolveContext via InsertHostedCapability, since the
// context alone knows how a synthetic capability should rank among
// capabilities it did not itself enumerate.
type HostedCapability interface {
	Capability
	// Host returns the wrap this capability was hosted onto.
	Host() Resource
	// Declared returns the fragment's original, un-rehomed capability.
	Declared() Capability
}

type hostedCapability struct {
	declared Capability
	host     Resource
}

var _ HostedCapability = (*hostedCapability)(nil)

func newHostedCapability(host Resource, declared Capability) *hostedCapability {
	return &hostedCapability{declared: declared, host: host}
}

func (h *hostedCapability) Resource() Resource             { return h.host }
func (h *hostedCapability) Namespace() string               { return h.declared.Namespace() }
func (h *hostedCapability) Attributes() map[string]any       { return h.declared.Attributes() }
func (h *hostedCapability) Directives() map[string]string { return h.declared.Directives() }
func (h *hostedCapability) Host() Resource                   { return h.host }
func (h *hostedCapability) Declared() Capability             { return h.declared }
func (h *hostedCapability) Unwrap() any                       { return h.declared }
