package modwire

// A Wiring describes an already-resolved Resource's realised wire set, as
// reported by a ResolveContext. The resolver core only ever reads a Wiring;
// it never mutates one.
type Wiring interface {
	Resource() Resource
	Capabilities(namespace string) []Capability
	Requirements(namespace string) []Requirement
	RequiredWires(namespace string) []Wire
}
