package modwire

// A Requirement is a typed demand a Resource makes, satisfied by matching
// its filter against the attributes of a same-namespace Capability.
type Requirement interface {
	Resource() Resource
	Namespace() string
	Directives() map[string]string
	Filter() string
	// Matches reports whether cap satisfies this requirement: same
	// namespace and the requirement's filter matches cap's attributes.
	Matches(cap Capability) bool
}

type declaredRequirement struct {
	resource   Resource
	namespace  string
	directives map[string]string
	filter     string
	parsed     *Filter
}

// NewRequirement returns a Requirement declared by resource in namespace,
// matched against candidate capabilities with filter (an LDAP-style filter
// per [ParseFilter]; the empty string matches every capability in the
// namespace). It panics if filter fails to parse, since a requirement with
// an unparsable filter cannot be declared by any well-formed caller.
func NewRequirement(resource Resource, namespace, filter string, directives map[string]string) Requirement {
	f, err := ParseFilter(filter)
	if err != nil {
		panic(err)
	}
	return &declaredRequirement{resource: resource, namespace: namespace, directives: directives, filter: filter, parsed: f}
}

func (r *declaredRequirement) Resource() Resource             { return r.resource }
func (r *declaredRequirement) Namespace() string               { return r.namespace }
func (r *declaredRequirement) Directives() map[string]string { return r.directives }
func (r *declaredRequirement) Filter() string                 { return r.filter }

func (r *declaredRequirement) Matches(cap Capability) bool {
	if cap.Namespace() != r.namespace {
		return false
	}
	return r.parsed.Match(cap.Attributes())
}
