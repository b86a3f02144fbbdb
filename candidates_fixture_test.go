package modwire

import "sort"

// testFixtureOption and the helpers below are a minimal, in-package
// equivalent of internal/fakeres's resource/context builders. They exist
// solely so that candidates_test.go (which needs unexported access to
// Candidates, getDelta, newCandidates, modeMandatory, and permutate, and so
// must stay in package modwire) can build fixtures without importing
// internal/fakeres — that package imports modwire itself, and an internal
// test file importing a package that imports the package under test is an
// import cycle.
type testFixtureOption func(ResourceBuilder)

func testFixtureCapability(namespace string, attrs map[string]any, dirs map[string]string) testFixtureOption {
	return func(r ResourceBuilder) {
		r.AddCapability(NewCapability(r, namespace, attrs, dirs))
	}
}

func testFixtureExports(pkg, version, uses string) testFixtureOption {
	attrs := map[string]any{PackageNamespace: pkg, AttrVersion: version}
	var dirs map[string]string
	if uses != "" {
		dirs = map[string]string{DirectiveUses: uses}
	}
	return testFixtureCapability(PackageNamespace, attrs, dirs)
}

func testFixtureRequirement(namespace, filter string, dirs map[string]string) testFixtureOption {
	return func(r ResourceBuilder) {
		r.AddRequirement(NewRequirement(r, namespace, filter, dirs))
	}
}

func testFixtureImports(pkg string, dirs map[string]string) testFixtureOption {
	return testFixtureRequirement(PackageNamespace, "(osgi.wiring.package="+pkg+")", dirs)
}

func testFixtureFragment(hostFilter string) testFixtureOption {
	return testFixtureRequirement(HostNamespace, hostFilter, nil)
}

func newTestFixture(name string, opts ...testFixtureOption) ResourceBuilder {
	r := NewResource(name)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// testFixtureContext is a minimal, fully in-memory ResolveContext for
// tests: candidate ranking and wiring state are populated directly rather
// than computed from a real manifest.
type testFixtureContext struct {
	Mandatory []Resource
	Optional  []Resource
	Providers map[Requirement][]Capability
	Resolved  map[Resource]Wiring
}

func newTestFixtureContext() *testFixtureContext {
	return &testFixtureContext{
		Providers: map[Requirement][]Capability{},
		Resolved:  map[Resource]Wiring{},
	}
}

func (c *testFixtureContext) MandatoryResources() []Resource { return c.Mandatory }
func (c *testFixtureContext) OptionalResources() []Resource  { return c.Optional }

func (c *testFixtureContext) FindProviders(req Requirement) []Capability {
	return c.Providers[req]
}

func (c *testFixtureContext) Wirings() map[Resource]Wiring { return c.Resolved }

func (c *testFixtureContext) InsertHostedCapability(caps []Capability, hosted HostedCapability) int {
	host := DeclaredResource(hosted.Host())
	for i, cap := range caps {
		if cap.Resource() == host {
			return i
		}
	}
	return len(caps)
}

func (c *testFixtureContext) IsEffective(req Requirement) bool {
	return IsEffectiveAtResolve(req)
}

func (c *testFixtureContext) Bind(req Requirement, cands ...Capability) {
	c.Providers[req] = cands
}

func testFixtureBindAuto(c *testFixtureContext, requirer Resource, providers ...Resource) {
	for _, req := range requirer.Requirements("") {
		var cands []Capability
		for _, p := range providers {
			for _, cap := range p.Capabilities(req.Namespace()) {
				if req.Matches(cap) {
					cands = append(cands, cap)
				}
			}
		}
		if len(cands) > 0 {
			c.Bind(req, testFixtureSortedByResourceName(cands)...)
		}
	}
}

func testFixtureSortedByResourceName(caps []Capability) []Capability {
	out := append([]Capability(nil), caps...)
	sort.SliceStable(out, func(i, j int) bool {
		return testFixtureResourceName(out[i].Resource()) < testFixtureResourceName(out[j].Resource())
	})
	return out
}

func testFixtureResourceName(r Resource) string {
	type stringer interface{ String() string }
	if s, ok := r.(stringer); ok {
		return s.String()
	}
	return ""
}
