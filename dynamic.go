package modwire

import (
	"context"
	"fmt"
)

// ResolveDynamic resolves a single dynamic requirement of an already-wired
// host against a pre-ranked list of candidate capabilities, reusing the
// same search loop as [Resolve]. It returns only the new dynamic wire plus
// the wires of any resource the dynamic import transitively pulled in for
// the first time. See spec §4.5.
func ResolveDynamic(ctx context.Context, rc ResolveContext, host Resource, req Requirement, matches []Capability) (WireMap, error) {
	if !IsDynamic(req) {
		return nil, fmt.Errorf("modwire: ResolveDynamic requires a dynamic requirement, got %v", req)
	}

	session := newResolveSession(rc)
	candidates := newCandidates(rc)

	if err := candidates.populateDynamic(host, req, matches); err != nil {
		if re, ok := err.(*ResolutionException); ok {
			return nil, re.Build()
		}
		return nil, err
	}
	for _, cap := range matches {
		child := cap.Resource()
		if child == host {
			continue
		}
		if err := candidates.populate(child, modeMandatory); err != nil {
			if re, ok := err.(*ResolutionException); ok {
				return nil, re.Build()
			}
			return nil, err
		}
	}
	if err := candidates.prepare(); err != nil {
		if re, ok := err.(*ResolutionException); ok {
			return nil, re.Build()
		}
		return nil, err
	}

	session.usesPermutations.push(candidates)

	wireMap, resErr := runSearchLoop(ctx, session)
	if resErr != nil {
		return nil, resErr.Build()
	}
	return wireMap, nil
}
