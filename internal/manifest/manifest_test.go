package manifest

import (
	"context"
	"testing"

	"github.com/arnedal/modwire"
)

const sampleYAML = `
resources:
  - name: A
    capabilities:
      - namespace: osgi.wiring.package
        attributes:
          osgi.wiring.package: x
          version: 1.0.0
  - name: B
    requirements:
      - namespace: osgi.wiring.package
        filter: "(osgi.wiring.package=x)"
mandatory: [B]
`

func TestLoadResolves(t *testing.T) {
	rc, byName, err := Load([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, b := byName["A"], byName["B"]
	if a == nil || b == nil {
		t.Fatalf("byName = %v, want A and B", byName)
	}

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	bw := wires[b]
	if len(bw) != 1 || bw[0].Provider != a {
		t.Errorf("wires[B] = %v, want exactly one wire to A", bw)
	}
}

func TestLoadUnknownMandatoryResource(t *testing.T) {
	_, _, err := Load([]byte("resources: []\nmandatory: [Missing]\n"))
	if err == nil {
		t.Fatal("Load: expected error for unknown mandatory resource, got nil")
	}
}

func TestLoadDuplicateResourceName(t *testing.T) {
	_, _, err := Load([]byte("resources:\n  - name: A\n  - name: A\n"))
	if err == nil {
		t.Fatal("Load: expected error for duplicate resource name, got nil")
	}
}

func TestLoadInvalidFilter(t *testing.T) {
	doc := `
resources:
  - name: A
    requirements:
      - namespace: osgi.wiring.package
        filter: "(("
`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("Load: expected error for unparsable filter, got nil")
	}
}

func TestLoadWirings(t *testing.T) {
	doc := `
resources:
  - name: A
    capabilities:
      - namespace: osgi.wiring.package
        attributes:
          osgi.wiring.package: x
          version: 1.0.0
  - name: B
    requirements:
      - namespace: osgi.wiring.package
        filter: "(osgi.wiring.package=x)"
wirings:
  - resource: B
    wires:
      - requirement: 0
        provider: A
`
	rc, byName, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := byName["B"]
	wiring, ok := rc.Wirings()[b]
	if !ok {
		t.Fatalf("Wirings()[B] missing")
	}
	wires := wiring.RequiredWires("")
	if len(wires) != 1 || wires[0].Provider != byName["A"] {
		t.Errorf("RequiredWires() = %v, want one wire to A", wires)
	}
}

func TestLoadWiringUnknownRequirementIndex(t *testing.T) {
	doc := `
resources:
  - name: A
  - name: B
wirings:
  - resource: B
    wires:
      - requirement: 0
        provider: A
`
	_, _, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("Load: expected error for out-of-range requirement index, got nil")
	}
}
