package modwire

import (
	"github.com/crillab/gophersat/solver"
)

// QuickFeasibilityCheck builds a lightweight SAT encoding of the candidate
// graph — one Boolean "selected" variable per resource, plus a clause per
// requirement forcing at least one of its candidates' resources to be
// selected whenever the requiring resource is selected — and asks a SAT
// solver whether any selection satisfies it.
//
// It is a cheap pre-filter [Resolve] can run before the uses-constraint
// search: an infeasible result rules out success before paying for a
// single permutation attempt. A feasible result is not a resolution: it
// only means the search loop has something left to try.
func QuickFeasibilityCheck(mandatory []Resource, byReq map[Requirement][]Capability) bool {
	vars := map[Resource]solver.Var{}
	var order []Resource
	varOf := func(r Resource) solver.Var {
		if v, ok := vars[r]; ok {
			return v
		}
		v := solver.Var(len(order))
		vars[r] = v
		order = append(order, r)
		return v
	}

	var constrs []solver.PBConstr
	for _, r := range mandatory {
		constrs = append(constrs, solver.PropClause(int(varOf(r).Int())))
	}
	for req, caps := range byReq {
		if len(caps) == 0 {
			continue
		}
		reqVar := varOf(req.Resource())
		clause := []int{-int(reqVar.Int())}
		for _, cap := range caps {
			clause = append(clause, int(varOf(cap.Resource()).Int()))
		}
		constrs = append(constrs, solver.PropClause(clause...))
	}
	if len(constrs) == 0 {
		return true
	}

	prob := solver.ParsePBConstrs(constrs)
	s := solver.New(prob)
	return s.Solve() == solver.Sat
}
