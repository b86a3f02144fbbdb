package modwire

// Namespace strings identify the kind of capability or requirement, mirroring
// the osgi.wiring.* and osgi.* namespaces of the original modular runtime.
const (
	PackageNamespace              = "osgi.wiring.package"
	BundleNamespace                = "osgi.wiring.bundle"
	HostNamespace                  = "osgi.wiring.host"
	IdentityNamespace               = "osgi.identity"
	ExecutionEnvironmentNamespace = "osgi.ee"
)

// Directive names recognized on Requirements and Capabilities.
const (
	DirectiveResolution  = "resolution"
	DirectiveCardinality = "cardinality"
	DirectiveEffective   = "effective"
	DirectiveVisibility  = "visibility"
	DirectiveUses        = "uses"
)

// Directive values.
const (
	ResolutionMandatory = "mandatory"
	ResolutionOptional  = "optional"
	ResolutionDynamic   = "dynamic"

	CardinalitySingle   = "single"
	CardinalityMultiple = "multiple"

	VisibilityPrivate  = "private"
	VisibilityReexport = "reexport"

	EffectiveResolve = "resolve"
	EffectiveActive  = "active"
)

// AttrVersion is the attribute every namespace uses to carry a capability's
// version for candidate ordering and filter range comparisons.
const AttrVersion = "version"

// IsDynamic reports whether req defers satisfaction to [ResolveDynamic]
// rather than the initial populate/prepare/search loop.
func IsDynamic(req Requirement) bool {
	return req.Directives()[DirectiveResolution] == ResolutionDynamic
}

// IsOptional reports whether req's absence of a provider is tolerated.
func IsOptional(req Requirement) bool {
	return req.Directives()[DirectiveResolution] == ResolutionOptional
}

// IsMultiple reports whether req may bind more than one capability.
func IsMultiple(req Requirement) bool {
	return req.Directives()[DirectiveCardinality] == CardinalityMultiple
}

// IsReexport reports whether a bundle-namespace requirement propagates the
// provider's exports to the requirer's own consumers.
func IsReexport(req Requirement) bool {
	return req.Directives()[DirectiveVisibility] == VisibilityReexport
}

// IsEffectiveAtResolve reports whether req's effective directive (defaulting
// to "resolve" when absent) permits it to participate in resolution.
func IsEffectiveAtResolve(req Requirement) bool {
	if e, ok := req.Directives()[DirectiveEffective]; ok {
		return e == EffectiveResolve
	}
	return true
}

// IsFragment reports whether r declares a requirement in the host namespace,
// making it a fragment that attaches to some host resource rather than
// resolving on its own.
func IsFragment(r Resource) bool {
	return len(r.Requirements(HostNamespace)) > 0
}
