package modwire

import (
	"testing"
)

// TestGetDeltaStableAcrossMapOrder guards against the FELIX4478 regression:
// an early Felix resolver computed its permutation fingerprint by iterating
// a hash map directly, so two logically identical permutations could
// receive different deltas purely because of map iteration order, defeating
// dedup and sometimes looping forever. getDelta stable-sorts its entries
// before hashing specifically to avoid this.
func TestGetDeltaStableAcrossMapOrder(t *testing.T) {
	lib := newTestFixture("lib", testFixtureExports("acme.lib", "1.0.0", ""))
	libCap := lib.Capabilities(PackageNamespace)[0]
	app := newTestFixture("app", testFixtureImports("acme.lib", nil))
	req := app.Requirements(PackageNamespace)[0]

	other := newTestFixture("other", testFixtureExports("acme.other", "1.0.0", ""))
	otherCap := other.Capabilities(PackageNamespace)[0]
	app2 := newTestFixture("app2", testFixtureImports("acme.other", nil))
	req2 := app2.Requirements(PackageNamespace)[0]

	c := &Candidates{byReq: map[Requirement][]Capability{
		req:  {libCap},
		req2: {otherCap},
	}}

	want := c.getDelta()
	for i := 0; i < 50; i++ {
		if got := c.getDelta(); got != want {
			t.Fatalf("getDelta() not stable across calls: got %q, want %q", got, want)
		}
	}
}

func TestCandidatesPopulateMandatory(t *testing.T) {
	lib := newTestFixture("lib", testFixtureExports("acme.lib", "1.0.0", ""))
	app := newTestFixture("app", testFixtureImports("acme.lib", nil))

	rc := newTestFixtureContext()
	rc.Mandatory = []Resource{app}
	testFixtureBindAuto(rc, app, lib)

	c := newCandidates(rc)
	if err := c.populate(app, modeMandatory); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if !c.populated.Contains(app) || !c.populated.Contains(lib) {
		t.Errorf("populate did not pull in both app and lib")
	}
	req := app.Requirements(PackageNamespace)[0]
	if len(c.byReq[req]) != 1 || c.byReq[req][0].Resource() != lib {
		t.Errorf("byReq[req] = %v, want [lib's capability]", c.byReq[req])
	}
}

func TestCandidatesPopulateMissingMandatoryFails(t *testing.T) {
	app := newTestFixture("app", testFixtureImports("acme.lib", nil))
	rc := newTestFixtureContext()
	rc.Mandatory = []Resource{app}

	c := newCandidates(rc)
	err := c.populate(app, modeMandatory)
	if err == nil {
		t.Fatal("populate: expected error for missing mandatory provider, got nil")
	}
	re, ok := err.(*ResolutionException)
	if !ok {
		t.Fatalf("populate: error is %T, want *ResolutionException", err)
	}
	if re.Code != CodeMissingMandatoryRequirement {
		t.Errorf("Code = %v, want CodeMissingMandatoryRequirement", re.Code)
	}
}

func TestCandidatesPopulateFragmentCycle(t *testing.T) {
	a := newTestFixture("a", testFixtureFragment(`(osgi.wiring.host=b)`))
	b := newTestFixture("b", testFixtureFragment(`(osgi.wiring.host=a)`))
	a.AddCapability(NewCapability(a, HostNamespace, map[string]any{"osgi.wiring.host": "a"}, nil))
	b.AddCapability(NewCapability(b, HostNamespace, map[string]any{"osgi.wiring.host": "b"}, nil))

	rc := newTestFixtureContext()
	rc.Mandatory = []Resource{a}
	testFixtureBindAuto(rc, a, b)
	testFixtureBindAuto(rc, b, a)

	c := newCandidates(rc)
	err := c.populate(a, modeMandatory)
	if err == nil {
		t.Fatal("populate: expected fragment cycle error, got nil")
	}
	re, ok := err.(*ResolutionException)
	if !ok || re.Code != CodeFragmentCycle {
		t.Fatalf("populate: err = %v, want CodeFragmentCycle", err)
	}
}

func TestCandidatesPermutateRotatesAndDedupes(t *testing.T) {
	lib1 := newTestFixture("lib1", testFixtureExports("acme.lib", "1.0.0", ""))
	lib2 := newTestFixture("lib2", testFixtureExports("acme.lib", "2.0.0", ""))
	app := newTestFixture("app", testFixtureImports("acme.lib", nil))
	req := app.Requirements(PackageNamespace)[0]

	c := newCandidates(newTestFixtureContext())
	c.byReq[req] = []Capability{lib1.Capabilities(PackageNamespace)[0], lib2.Capabilities(PackageNamespace)[0]}

	nc := c.permutate(req)
	if nc == nil {
		t.Fatal("permutate: got nil, want a rotated copy")
	}
	if nc.byReq[req][0].Resource() != lib2 || nc.byReq[req][1].Resource() != lib1 {
		t.Errorf("permutate did not rotate candidates: %v", nc.byReq[req])
	}
	if c.byReq[req][0].Resource() != lib1 {
		t.Errorf("permutate mutated the original Candidates")
	}
}
