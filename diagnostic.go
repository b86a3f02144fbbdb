package modwire

import (
	"fmt"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrCode classifies a ResolutionException for programmatic handling by a
// caller. Spec §7's error kinds don't need a bespoke taxonomy of their own;
// [ResolutionException.Build] maps each ErrCode onto one of
// errbuilder-go's general-purpose codes, the same ones the rest of this
// repository's boundary errors use.
type ErrCode int

const (
	CodeMissingMandatoryRequirement ErrCode = iota
	CodeFragmentCycle
	CodeUsesConflict
	CodeInvalidFilter
	CodeInternal
)

func (c ErrCode) errbuilderCode() errbuilder.ErrCode {
	switch c {
	case CodeMissingMandatoryRequirement:
		return errbuilder.CodeNotFound
	case CodeFragmentCycle, CodeUsesConflict:
		return errbuilder.CodeFailedPrecondition
	case CodeInvalidFilter:
		return errbuilder.CodeInvalidArgument
	default:
		return errbuilder.CodeInternal
	}
}

// A ResolutionException is the error [Resolve] and [ResolveDynamic] return
// on failure. It carries a human-readable diagnostic citing the shortest
// implicated blame chains observed during the search, plus the set of
// unresolved requirements that are root causes (per spec §6 "Error
// contract" and §7).
type ResolutionException struct {
	Message    string
	Code       ErrCode
	Unresolved []Requirement
	// Chains holds the shortest conflicting blame chains found for each
	// reported conflict, for diagnostic formatting via [FormatBlameChains].
	Chains [][]Blame
	cause  error
}

func (e *ResolutionException) Error() string {
	msg := e.Message
	if len(e.Chains) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, FormatBlameChains(e.Chains))
	}
	if len(e.Unresolved) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (%d unresolved requirement(s))", msg, len(e.Unresolved))
}

func (e *ResolutionException) Unwrap() error { return e.cause }

// Build returns the errbuilder-go error this exception reports as, so
// callers that standardize on errbuilder for error handling (as the rest
// of this repository's boundary errors do) get one consistent error type
// regardless of whether they're looking at a ResolutionException or any
// other error this package returns. The returned error always wraps e as
// its cause, so a caller can still recover Unresolved and Chains with
// errors.As.
func (e *ResolutionException) Build() error {
	return errbuilder.New().WithCode(e.Code.errbuilderCode()).WithMsg(e.Error()).WithCause(e)
}

// FormatBlameChains renders chains one per line, in the order given, as
// "conflict N: " followed by the declared capability of each blame in the
// chain, joined by " -> ". The blames' requirement chains are not printed.
// The order of chains is whatever order the uses checker appended them in;
// callers should not depend on it.
func FormatBlameChains(chains [][]Blame) string {
	var sb strings.Builder
	for i, chain := range chains {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "conflict %d: ", i+1)
		for j, b := range chain {
			if j > 0 {
				sb.WriteString(" -> ")
			}
			fmt.Fprintf(&sb, "%v", DeclaredCapability(b.Capability))
		}
	}
	return sb.String()
}
