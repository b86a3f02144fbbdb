package modwire_test

import (
	"context"
	"testing"

	"github.com/arnedal/modwire/internal/fakeres"

	"github.com/arnedal/modwire"
)

// Scenario 1: single import. See spec §8 scenario 1.
func TestResolveSingleImport(t *testing.T) {
	a := fakeres.New("A", fakeres.Exports("x", "1.0.0", ""))
	b := fakeres.New("B", fakeres.Imports("x", nil))

	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{b}
	fakeres.BindAuto(rc, b, a)

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("modwire.Resolve: %v", err)
	}
	bw := wires[b]
	if len(bw) != 1 {
		t.Fatalf("wires[B] = %v, want exactly one wire", bw)
	}
	if bw[0].Provider != modwire.Resource(a) {
		t.Errorf("wires[B][0].Provider = %v, want A", bw[0].Provider)
	}
	if bw[0].Requirement.Namespace() != modwire.PackageNamespace {
		t.Errorf("wires[B][0].Requirement.Namespace() = %q, want %q", bw[0].Requirement.Namespace(), modwire.PackageNamespace)
	}
}

// Scenario 2: fragment payload. See spec §8 scenario 2.
func TestResolveFragmentPayload(t *testing.T) {
	h := fakeres.New("H", fakeres.Exports("h", "1.0.0", ""))
	h.AddCapability(modwire.NewCapability(h, modwire.HostNamespace, map[string]any{"osgi.wiring.host": "H"}, nil))
	f := fakeres.New("F", fakeres.Fragment(`(osgi.wiring.host=H)`), fakeres.Exports("f", "1.0.0", ""))

	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{h, f}
	fakeres.BindAuto(rc, f, h)

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("modwire.Resolve: %v", err)
	}
	fw := wires[f]
	if len(fw) != 1 {
		t.Fatalf("wires[F] = %v, want exactly the host wire", fw)
	}
	if fw[0].Requirement.Namespace() != modwire.HostNamespace {
		t.Errorf("wires[F][0].Requirement.Namespace() = %q, want %q", fw[0].Requirement.Namespace(), modwire.HostNamespace)
	}
	if fw[0].Provider != modwire.Resource(h) {
		t.Errorf("wires[F][0].Provider = %v, want H", fw[0].Provider)
	}
}

// Scenario 3: a uses conflict forces the search to backtrack. App imports
// "svc" from Impl and "api" directly from A2; Impl's own "svc" export uses
// "api", and Impl's own import of "api" initially prefers A1. That mismatch
// (A1 reached transitively through svc, A2 reached directly) is a uses
// conflict the checker can only fix by rotating Impl's api candidate list,
// never by touching App's own (single-candidate) import. See spec §8
// scenario 3.
func TestResolveUsesConflictForcesBacktrack(t *testing.T) {
	a1 := fakeres.New("A1", fakeres.Exports("api", "1.0.0", ""))
	a2 := fakeres.New("A2", fakeres.Exports("api", "1.0.0", ""))
	impl := fakeres.New("Impl", fakeres.Exports("svc", "1.0.0", "api"), fakeres.Imports("api", nil))
	app := fakeres.New("App", fakeres.Imports("svc", nil), fakeres.Imports("api", nil))

	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{app}

	implAPIReq := impl.Requirements(modwire.PackageNamespace)[0]
	rc.Bind(implAPIReq, a1.Capabilities(modwire.PackageNamespace)[0], a2.Capabilities(modwire.PackageNamespace)[0])

	appReqs := app.Requirements(modwire.PackageNamespace)
	svcReq, apiReq := appReqs[0], appReqs[1]
	rc.Bind(svcReq, impl.Capabilities(modwire.PackageNamespace)[0])
	rc.Bind(apiReq, a2.Capabilities(modwire.PackageNamespace)[0])

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("modwire.Resolve: %v", err)
	}

	aw := wires[app]
	if len(aw) != 2 || aw[0].Provider != modwire.Resource(impl) || aw[1].Provider != modwire.Resource(a2) {
		t.Fatalf("wires[App] = %v, want svc->Impl then api->A2", aw)
	}

	iw := wires[impl]
	if len(iw) != 1 || iw[0].Provider != modwire.Resource(a2) {
		t.Fatalf("wires[Impl] = %v, want Impl's own api import backtracked to A2", iw)
	}
}

// Scenario 5: dynamic import discovers a new wire. See spec §8 scenario 5.
func TestResolveDynamicDiscoversNewWire(t *testing.T) {
	h := fakeres.New("H")
	dynReq := modwire.NewRequirement(h, modwire.PackageNamespace, `(osgi.wiring.package=d.*)`, map[string]string{modwire.DirectiveResolution: modwire.ResolutionDynamic})
	h.AddRequirement(dynReq)

	d1 := fakeres.New("D1", fakeres.Exports("d.one", "1.0.0", ""))
	d2 := fakeres.New("D2", fakeres.Exports("d.two", "1.0.0", ""))

	rc := fakeres.NewContext()
	matches := []modwire.Capability{d2.Capabilities(modwire.PackageNamespace)[0], d1.Capabilities(modwire.PackageNamespace)[0]}

	wires, err := modwire.ResolveDynamic(context.Background(), rc, h, dynReq, matches)
	if err != nil {
		t.Fatalf("modwire.ResolveDynamic: %v", err)
	}
	hw := wires[h]
	if len(hw) != 1 {
		t.Fatalf("wires[H] = %v, want exactly one new wire", hw)
	}
	if hw[0].Provider != modwire.Resource(d2) {
		t.Errorf("wires[H][0].Provider = %v, want D2 (the preferred match)", hw[0].Provider)
	}
}

// Scenario 6: substitutable export. See spec §8 scenario 6.
func TestResolveSubstitutableExport(t *testing.T) {
	s := fakeres.New("S", fakeres.Exports("s", "1.0.0", ""), fakeres.Imports("s", nil))
	tr := fakeres.New("T", fakeres.Exports("s", "1.0.0", ""))
	u := fakeres.New("U", fakeres.Imports("s", nil))

	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{s, u}
	sReq := s.Requirements(modwire.PackageNamespace)[0]
	uReq := u.Requirements(modwire.PackageNamespace)[0]
	rc.Bind(sReq, tr.Capabilities(modwire.PackageNamespace)[0], s.Capabilities(modwire.PackageNamespace)[0])
	rc.Bind(uReq, tr.Capabilities(modwire.PackageNamespace)[0], s.Capabilities(modwire.PackageNamespace)[0])

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("modwire.Resolve: %v", err)
	}
	uw := wires[u]
	if len(uw) != 1 || uw[0].Provider != modwire.Resource(tr) {
		t.Errorf("wires[U] = %v, want exactly one wire to T", uw)
	}
	sw := wires[s]
	if len(sw) != 1 || sw[0].Provider != modwire.Resource(tr) {
		t.Errorf("wires[S] = %v, want exactly one wire to T for its own import", sw)
	}
}

func TestResolveMissingMandatoryFails(t *testing.T) {
	b := fakeres.New("B", fakeres.Imports("x", nil))
	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{b}

	_, err := modwire.Resolve(context.Background(), rc)
	if err == nil {
		t.Fatal("modwire.Resolve: expected error for missing mandatory provider, got nil")
	}
}

func TestResolveOptionalFailureDoesNotFailMandatory(t *testing.T) {
	a := fakeres.New("A", fakeres.Exports("x", "1.0.0", ""))
	b := fakeres.New("B", fakeres.Imports("x", nil))
	opt := fakeres.New("Opt", fakeres.Imports("missing", nil))

	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{b}
	rc.Optional = []modwire.Resource{opt}
	fakeres.BindAuto(rc, b, a)

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		t.Fatalf("modwire.Resolve: %v", err)
	}
	if len(wires[b]) != 1 {
		t.Errorf("wires[B] = %v, want exactly one wire despite Opt's unsatisfiable requirement", wires[b])
	}
}
