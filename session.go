package modwire

import mapset "github.com/deckarep/golang-set/v2"

// permutationQueue is a FIFO of Candidates snapshots, used for both the
// high-priority usesPermutations and the low-priority importPermutations
// queues described in spec §4.4.
type permutationQueue struct {
	items []*Candidates
}

func (q *permutationQueue) push(c *Candidates) { q.items = append(q.items, c) }

func (q *permutationQueue) pop() (*Candidates, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

func (q *permutationQueue) empty() bool { return len(q.items) == 0 }

// resolveSession owns every piece of mutable state a single [Resolve] or
// [ResolveDynamic] call needs: the two permutation queues, the set of
// already-tried deltas, and the per-attempt packageSourcesCache. A
// resolveSession is never shared across calls; see spec §5 "Concurrency &
// resource model".
type resolveSession struct {
	ctx ResolveContext

	usesPermutations   permutationQueue
	importPermutations permutationQueue
	processedDeltas    mapset.Set[string]

	// packageSourcesCache memoises the transitive sources of each
	// capability within one permutation attempt; cleared at the top of
	// every loop iteration (spec §4.2, §4.4 step 4).
	packageSourcesCache map[Capability]mapset.Set[Capability]

	// successfulResources caches uses-check success per resource within
	// one permutation attempt (spec §4.3 step 6).
	successfulResources mapset.Set[Resource]

	multipleCardCandidates *Candidates
}

func newResolveSession(ctx ResolveContext) *resolveSession {
	return &resolveSession{
		ctx:             ctx,
		processedDeltas: mapset.NewThreadUnsafeSet[string](),
	}
}

func (s *resolveSession) resetPerAttemptState() {
	s.packageSourcesCache = map[Capability]mapset.Set[Capability]{}
	s.successfulResources = mapset.NewThreadUnsafeSet[Resource]()
	s.multipleCardCandidates = nil
}

// nextPermutation dequeues the next untried permutation, preferring
// usesPermutations over importPermutations, skipping any whose delta has
// already been processed.
func (s *resolveSession) nextPermutation() (*Candidates, bool) {
	for {
		var c *Candidates
		var ok bool
		if c, ok = s.usesPermutations.pop(); !ok {
			if c, ok = s.importPermutations.pop(); !ok {
				return nil, false
			}
		}
		delta := c.getDelta()
		if s.processedDeltas.Contains(delta) {
			continue
		}
		s.processedDeltas.Add(delta)
		return c, true
	}
}
