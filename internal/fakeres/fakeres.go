// Package fakeres makes it easy to assemble fake resources, capabilities,
// and requirements, plus a minimal [modwire.ResolveContext], to facilitate
// testing the resolver core without a real module manifest.
package fakeres

import (
	"sort"

	"github.com/arnedal/modwire"
)

// Option configures a [modwire.ResourceBuilder] under construction.
type Option func(modwire.ResourceBuilder)

// Capability returns an option adding a capability of namespace to the
// resource, with the given attributes and directives.
func Capability(namespace string, attrs map[string]any, dirs map[string]string) Option {
	return func(r modwire.ResourceBuilder) {
		r.AddCapability(modwire.NewCapability(r, namespace, attrs, dirs))
	}
}

// Exports returns an option adding an osgi.wiring.package export for pkg at
// version, with the given uses directive (comma-separated package names,
// may be empty).
func Exports(pkg, version, uses string) Option {
	attrs := map[string]any{modwire.PackageNamespace: pkg, modwire.AttrVersion: version}
	var dirs map[string]string
	if uses != "" {
		dirs = map[string]string{modwire.DirectiveUses: uses}
	}
	return Capability(modwire.PackageNamespace, attrs, dirs)
}

// Requirement returns an option adding a requirement of namespace to the
// resource, matched with filter and carrying dirs.
func Requirement(namespace, filter string, dirs map[string]string) Option {
	return func(r modwire.ResourceBuilder) {
		r.AddRequirement(modwire.NewRequirement(r, namespace, filter, dirs))
	}
}

// Imports returns an option adding a mandatory osgi.wiring.package
// requirement matching pkg, optionally dynamic or optional per dirs.
func Imports(pkg string, dirs map[string]string) Option {
	return Requirement(modwire.PackageNamespace, "(osgi.wiring.package="+pkg+")", dirs)
}

// Fragment returns an option adding a host-namespace requirement naming
// this resource as a fragment of a resource matching hostFilter.
func Fragment(hostFilter string) Option {
	return Requirement(modwire.HostNamespace, hostFilter, nil)
}

// New returns a new Resource named name with every opt applied in order.
func New(name string, opts ...Option) modwire.ResourceBuilder {
	r := modwire.NewResource(name)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Context is a minimal, fully in-memory [modwire.ResolveContext] for tests:
// candidate ranking and wiring state are populated directly rather than
// computed from a real manifest.
type Context struct {
	Mandatory []modwire.Resource
	Optional  []modwire.Resource
	Providers map[modwire.Requirement][]modwire.Capability
	Resolved  map[modwire.Resource]modwire.Wiring
}

// NewContext returns an empty Context ready for its fields to be filled in.
func NewContext() *Context {
	return &Context{
		Providers: map[modwire.Requirement][]modwire.Capability{},
		Resolved:  map[modwire.Resource]modwire.Wiring{},
	}
}

func (c *Context) MandatoryResources() []modwire.Resource { return c.Mandatory }
func (c *Context) OptionalResources() []modwire.Resource  { return c.Optional }

func (c *Context) FindProviders(req modwire.Requirement) []modwire.Capability {
	return c.Providers[req]
}

func (c *Context) Wirings() map[modwire.Resource]modwire.Wiring { return c.Resolved }

// InsertHostedCapability ranks a fragment-hosted capability by its host's
// resource identity among caps, falling back to the end of the list.
func (c *Context) InsertHostedCapability(caps []modwire.Capability, hosted modwire.HostedCapability) int {
	host := modwire.DeclaredResource(hosted.Host())
	for i, cap := range caps {
		if cap.Resource() == host {
			return i
		}
	}
	return len(caps)
}

// IsEffective delegates to [modwire.IsEffectiveAtResolve].
func (c *Context) IsEffective(req modwire.Requirement) bool {
	return modwire.IsEffectiveAtResolve(req)
}

// Bind registers cands, in order, as the candidates [Context.FindProviders]
// returns for req.
func (c *Context) Bind(req modwire.Requirement, cands ...modwire.Capability) {
	c.Providers[req] = cands
}

// BindAuto binds every requirement of requirer against provider's matching
// capabilities in the same namespace, in provider declaration order.
func BindAuto(c *Context, requirer modwire.Resource, providers ...modwire.Resource) {
	for _, req := range requirer.Requirements("") {
		var cands []modwire.Capability
		for _, p := range providers {
			for _, cap := range p.Capabilities(req.Namespace()) {
				if req.Matches(cap) {
					cands = append(cands, cap)
				}
			}
		}
		if len(cands) > 0 {
			c.Bind(req, sortedByResourceName(cands)...)
		}
	}
}

func sortedByResourceName(caps []modwire.Capability) []modwire.Capability {
	out := append([]modwire.Capability(nil), caps...)
	sort.SliceStable(out, func(i, j int) bool {
		return resourceName(out[i].Resource()) < resourceName(out[j].Resource())
	})
	return out
}

func resourceName(r modwire.Resource) string {
	type stringer interface{ String() string }
	if s, ok := r.(stringer); ok {
		return s.String()
	}
	return ""
}
