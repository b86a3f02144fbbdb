package modwire

import (
	"slices"

	"github.com/arnedal/modwire/internal/itertools"
)

// A Resource is an identified unit declaring Capabilities and Requirements.
// Implementations are compared by reference identity: two distinct Resource
// values are never considered the same resource even if their declared
// contents happen to be equal, matching the object-identity model of the
// runtime this resolver is based on.
type Resource interface {
	// Capabilities returns the resource's declared capabilities. An empty
	// namespace returns all of them.
	Capabilities(namespace string) []Capability
	// Requirements returns the resource's declared requirements. An empty
	// namespace returns all of them.
	Requirements(namespace string) []Requirement
}

// A ResourceBuilder is the Resource returned by [NewResource]: a plain,
// mutable declaration used by tests, the CLI manifest loader, and anywhere
// else a concrete Resource is assembled incrementally rather than supplied
// by a context.
type ResourceBuilder interface {
	Resource
	AddCapability(Capability) ResourceBuilder
	AddRequirement(Requirement) ResourceBuilder
}

type declaredResource struct {
	name string
	caps []Capability
	reqs []Requirement
}

// NewResource returns a new, empty Resource. name is used only for String
// and diagnostic output; it has no bearing on resource identity.
func NewResource(name string) ResourceBuilder {
	return &declaredResource{name: name}
}

func (r *declaredResource) AddCapability(c Capability) ResourceBuilder {
	r.caps = append(r.caps, c)
	return r
}

func (r *declaredResource) AddRequirement(req Requirement) ResourceBuilder {
	r.reqs = append(r.reqs, req)
	return r
}

func (r *declaredResource) Capabilities(namespace string) []Capability {
	return filterByNamespace(r.caps, namespace, func(c Capability) string { return c.Namespace() })
}

func (r *declaredResource) Requirements(namespace string) []Requirement {
	return filterByNamespace(r.reqs, namespace, func(req Requirement) string { return req.Namespace() })
}

func (r *declaredResource) String() string {
	return r.name
}

func filterByNamespace[T any](items []T, namespace string, nsOf func(T) string) []T {
	if namespace == "" {
		return items
	}
	return slices.Collect(itertools.Filter(slices.Values(items), func(it T) bool { return nsOf(it) == namespace }))
}
