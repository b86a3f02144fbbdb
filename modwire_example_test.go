package modwire_test

import (
	"context"
	"fmt"

	"github.com/arnedal/modwire"
	"github.com/arnedal/modwire/internal/fakeres"
)

func Example() {
	// Build a provider exporting package "acme.lib" and a consumer that
	// imports it.
	lib := fakeres.New("lib", fakeres.Exports("acme.lib", "1.0.0", ""))
	app := fakeres.New("app", fakeres.Imports("acme.lib", nil))

	// A [modwire.ResolveContext] tells the resolver which resources are
	// mandatory and which capabilities satisfy which requirements.
	rc := fakeres.NewContext()
	rc.Mandatory = []modwire.Resource{app}
	fakeres.BindAuto(rc, app, lib)

	wires, err := modwire.Resolve(context.Background(), rc)
	if err != nil {
		panic(err)
	}

	for _, w := range wires[app] {
		fmt.Printf("%v satisfied by %v\n", w.Requirement.Namespace(), w.Provider)
	}
	// Output: osgi.wiring.package satisfied by lib
}
