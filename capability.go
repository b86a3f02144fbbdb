package modwire

import "strings"

// A Capability is a typed assertion a Resource provides: a namespace, a set
// of attributes consulted by Requirement filters, and directives that are
// not matched against but change resolution behavior (notably "uses").
type Capability interface {
	Resource() Resource
	Namespace() string
	Attributes() map[string]any
	Directives() map[string]string
}

// Uses parses cap's uses directive into the package names whose providers
// must transitively agree with cap's own provider in any consumer's package
// space.
func Uses(cap Capability) []string {
	s := cap.Directives()[DirectiveUses]
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PackageName returns the "osgi.wiring.package" attribute value of a
// package-namespace capability, or "" if cap is not in that namespace or
// the attribute is missing or not a string.
func PackageName(cap Capability) string {
	if cap.Namespace() != PackageNamespace {
		return ""
	}
	v, ok := cap.Attributes()[PackageNamespace]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

type declaredCapability struct {
	resource   Resource
	namespace  string
	attributes map[string]any
	directives map[string]string
}

// NewCapability returns a Capability declared by resource in namespace, with
// the given attributes (matched against by filters) and directives.
func NewCapability(resource Resource, namespace string, attributes map[string]any, directives map[string]string) Capability {
	return &declaredCapability{resource: resource, namespace: namespace, attributes: attributes, directives: directives}
}

func (c *declaredCapability) Resource() Resource             { return c.resource }
func (c *declaredCapability) Namespace() string               { return c.namespace }
func (c *declaredCapability) Attributes() map[string]any       { return c.attributes }
func (c *declaredCapability) Directives() map[string]string { return c.directives }
