package modwire

// A Wire is a single realised edge: requirer's requirement bound to
// provider's capability. Requirer, Requirement, Provider, and Capability
// always refer to declared (un-wrapped) entities, even when the wire was
// discovered through a wrapped host or a hosted capability — see
// [DeclaredResource], [DeclaredCapability], [DeclaredRequirement].
type Wire struct {
	Requirer    Resource
	Requirement Requirement
	Provider    Resource
	Capability  Capability
}

// A WireMap is the result of a successful resolve: for each newly-resolved
// resource, the ordered list of wires it gained.
type WireMap map[Resource][]Wire
