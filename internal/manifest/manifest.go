// Package manifest loads a YAML description of resources, capabilities,
// and requirements into a [modwire.ResolveContext], so cmd/modwire can drive
// a resolve from a file instead of a hand-built test fixture.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/arnedal/modwire"
)

// Doc is the top-level shape of a manifest file.
type Doc struct {
	Resources []ResourceDoc `yaml:"resources"`
	Mandatory []string      `yaml:"mandatory"`
	Optional  []string      `yaml:"optional"`
	Wirings   []WiringDoc   `yaml:"wirings"`
}

// WiringDoc describes a resource's already-resolved wires, so a manifest
// can seed a resolve that starts from partially-wired state rather than
// nothing, matching what a real ResolveContext reports for resources wired
// by a previous resolve.
type WiringDoc struct {
	Resource string    `yaml:"resource"`
	Wires    []WireDoc `yaml:"wires"`
}

// WireDoc names one already-resolved wire: the index (0-based, in
// declaration order) of the requirement it satisfies, and the name of the
// resource that provides it.
type WireDoc struct {
	Requirement int    `yaml:"requirement"`
	Provider    string `yaml:"provider"`
}

// ResourceDoc describes one resource: a name unique within the manifest,
// plus its declared capabilities and requirements.
type ResourceDoc struct {
	Name         string             `yaml:"name"`
	Capabilities []CapabilityDoc    `yaml:"capabilities"`
	Requirements []RequirementDoc   `yaml:"requirements"`
}

// CapabilityDoc describes one capability declaration.
type CapabilityDoc struct {
	Namespace  string            `yaml:"namespace"`
	Attributes map[string]any    `yaml:"attributes"`
	Directives map[string]string `yaml:"directives"`
}

// RequirementDoc describes one requirement declaration. Filter is an
// LDAP-style filter string per [modwire.ParseFilter]; the empty string
// matches every capability in Namespace.
type RequirementDoc struct {
	Namespace  string            `yaml:"namespace"`
	Filter     string            `yaml:"filter"`
	Directives map[string]string `yaml:"directives"`
}

// Load parses a manifest document and builds a [Context] plus the resources
// it names, addressable by the name given in the manifest.
func Load(data []byte) (*Context, map[string]modwire.Resource, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("manifest: parsing: %w", err)
	}

	byName := make(map[string]modwire.Resource, len(doc.Resources))
	all := make([]modwire.Resource, 0, len(doc.Resources))
	for _, rd := range doc.Resources {
		if rd.Name == "" {
			return nil, nil, fmt.Errorf("manifest: resource with empty name")
		}
		if _, dup := byName[rd.Name]; dup {
			return nil, nil, fmt.Errorf("manifest: duplicate resource name %q", rd.Name)
		}
		r := modwire.NewResource(rd.Name)
		for _, cd := range rd.Capabilities {
			r.AddCapability(modwire.NewCapability(r, cd.Namespace, cd.Attributes, cd.Directives))
		}
		for _, qd := range rd.Requirements {
			req, err := newRequirement(r, qd)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: resource %q: %w", rd.Name, err)
			}
			r.AddRequirement(req)
		}
		byName[rd.Name] = r
		all = append(all, r)
	}

	resolveNames := func(names []string) ([]modwire.Resource, error) {
		out := make([]modwire.Resource, 0, len(names))
		for _, n := range names {
			r, ok := byName[n]
			if !ok {
				return nil, fmt.Errorf("manifest: unknown resource %q", n)
			}
			out = append(out, r)
		}
		return out, nil
	}

	mandatory, err := resolveNames(doc.Mandatory)
	if err != nil {
		return nil, nil, err
	}
	optional, err := resolveNames(doc.Optional)
	if err != nil {
		return nil, nil, err
	}

	wirings, err := buildWirings(doc.Wirings, byName)
	if err != nil {
		return nil, nil, err
	}

	return &Context{all: all, mandatory: mandatory, optional: optional, resolved: wirings}, byName, nil
}

func buildWirings(docs []WiringDoc, byName map[string]modwire.Resource) (map[modwire.Resource]modwire.Wiring, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make(map[modwire.Resource]modwire.Wiring, len(docs))
	for _, wd := range docs {
		requirer, ok := byName[wd.Resource]
		if !ok {
			return nil, fmt.Errorf("manifest: wiring for unknown resource %q", wd.Resource)
		}
		reqs := requirer.Requirements("")
		wires := make([]modwire.Wire, 0, len(wd.Wires))
		for _, wire := range wd.Wires {
			if wire.Requirement < 0 || wire.Requirement >= len(reqs) {
				return nil, fmt.Errorf("manifest: resource %q: requirement index %d out of range", wd.Resource, wire.Requirement)
			}
			provider, ok := byName[wire.Provider]
			if !ok {
				return nil, fmt.Errorf("manifest: resource %q: wiring to unknown provider %q", wd.Resource, wire.Provider)
			}
			req := reqs[wire.Requirement]
			caps := provider.Capabilities(req.Namespace())
			var cap modwire.Capability
			for _, c := range caps {
				if req.Matches(c) {
					cap = c
					break
				}
			}
			if cap == nil {
				return nil, fmt.Errorf("manifest: resource %q: %q provides no capability matching requirement %d", wd.Resource, wire.Provider, wire.Requirement)
			}
			wires = append(wires, modwire.Wire{Requirer: requirer, Requirement: req, Provider: provider, Capability: cap})
		}
		out[requirer] = &wiring{resource: requirer, wires: wires}
	}
	return out, nil
}

// wiring is a static [modwire.Wiring] over wires declared up front by a
// manifest, rather than computed by a live resolve.
type wiring struct {
	resource modwire.Resource
	wires    []modwire.Wire
}

func (w *wiring) Resource() modwire.Resource                    { return w.resource }
func (w *wiring) Capabilities(namespace string) []modwire.Capability  { return w.resource.Capabilities(namespace) }
func (w *wiring) Requirements(namespace string) []modwire.Requirement { return w.resource.Requirements(namespace) }

func (w *wiring) RequiredWires(namespace string) []modwire.Wire {
	if namespace == "" {
		return w.wires
	}
	out := make([]modwire.Wire, 0, len(w.wires))
	for _, wr := range w.wires {
		if wr.Requirement.Namespace() == namespace {
			out = append(out, wr)
		}
	}
	return out
}

func newRequirement(r modwire.ResourceBuilder, qd RequirementDoc) (modwire.Requirement, error) {
	var req modwire.Requirement
	var panicked any
	func() {
		defer func() { panicked = recover() }()
		req = modwire.NewRequirement(r, qd.Namespace, qd.Filter, qd.Directives)
	}()
	if panicked != nil {
		return nil, fmt.Errorf("invalid filter %q in namespace %q: %v", qd.Filter, qd.Namespace, panicked)
	}
	return req, nil
}

// Context is a [modwire.ResolveContext] over a closed, static set of
// resources declared by a manifest, with no resolution arbitration beyond
// manifest declaration order. Any resources the manifest's "wirings"
// section names are reported as already resolved.
type Context struct {
	all       []modwire.Resource
	mandatory []modwire.Resource
	optional  []modwire.Resource
	resolved  map[modwire.Resource]modwire.Wiring
}

func (c *Context) MandatoryResources() []modwire.Resource { return c.mandatory }
func (c *Context) OptionalResources() []modwire.Resource  { return c.optional }

// FindProviders scans every resource in manifest order and returns the
// capabilities in req's namespace whose attributes satisfy req's filter.
func (c *Context) FindProviders(req modwire.Requirement) []modwire.Capability {
	var out []modwire.Capability
	for _, r := range c.all {
		for _, cap := range r.Capabilities(req.Namespace()) {
			if req.Matches(cap) {
				out = append(out, cap)
			}
		}
	}
	return out
}

// Wirings returns the resources the manifest's "wirings" section declares as
// already resolved, or nil if the manifest declares none.
func (c *Context) Wirings() map[modwire.Resource]modwire.Wiring { return c.resolved }

// InsertHostedCapability ranks a fragment-hosted capability right after its
// host's own capabilities, falling back to the end of the list.
func (c *Context) InsertHostedCapability(caps []modwire.Capability, hosted modwire.HostedCapability) int {
	host := modwire.DeclaredResource(hosted.Host())
	idx := len(caps)
	for i, cap := range caps {
		if cap.Resource() == host {
			idx = i + 1
		}
	}
	return idx
}

// IsEffective delegates to [modwire.IsEffectiveAtResolve].
func (c *Context) IsEffective(req modwire.Requirement) bool {
	return modwire.IsEffectiveAtResolve(req)
}
