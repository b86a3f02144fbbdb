// Package modwire resolves a set of module resources against each other's
// declared capabilities and requirements, the way an OSGi-style module
// system resolves bundles: it searches for an assignment of capability
// providers to requirements that also satisfies every resource's
// transitive "uses" class-space constraints.
//
// # Quick Start
//
// (The following is also available as a package-level example.)
//
// Build resources out of declared capabilities and requirements:
//
//	provider := modwire.NewResource("lib")
//	provider.AddCapability(modwire.NewCapability(provider, modwire.PackageNamespace,
//		map[string]any{modwire.AttrVersion: "1.0.0", "osgi.wiring.package": "acme.lib"}, nil))
//
//	consumer := modwire.NewResource("app")
//	consumer.AddRequirement(modwire.NewRequirement(consumer, modwire.PackageNamespace,
//		`(osgi.wiring.package=acme.lib)`, nil))
//
// Implement [ResolveContext] (or use a test helper that does) to tell the
// resolver which resources are mandatory, which capabilities satisfy which
// requirements, and what's already wired:
//
//	wires, err := modwire.Resolve(ctx, rc)
//	if err != nil {
//		return err
//	}
//
// [WireMap] maps each resource to the [Wire] values the resolver decided
// for it:
//
//	for _, w := range wires[consumer] {
//		fmt.Printf("%v satisfied by %v\n", w.Requirement, w.Capability)
//	}
//
// Once a resource is wired, [ResolveDynamic] resolves a single
// dynamic-import requirement against a ranked candidate list without
// rerunning the whole search:
//
//	newWires, err := modwire.ResolveDynamic(ctx, rc, consumer, dynamicReq, candidates)
package modwire
