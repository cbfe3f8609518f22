package split

import (
	"container/heap"
	"sort"

	"github.com/rs/zerolog"

	"fragsplit/cfa"
	"fragsplit/ir"
)

// PartitionStrategy decides which split points load together.  It receives
// the split points which are not part of the initial load sequence grouped by
// explicit tag: the split points of a group must end up in the same fragment.
type PartitionStrategy interface {
	// PartitionIntoFragments returns the exclusive fragments ordered by their
	// smallest split point ID.  Fragments the strategy discards are returned
	// with type Deleted: their split points load the leftover fragment.
	PartitionIntoFragments(initialSeqCfa *cfa.Analyzer, groups [][]*ir.SplitPoint) []*Fragment
}

// OneToOne is the partition strategy creating one exclusive fragment per group
// of split points.
type OneToOne struct{}

func (OneToOne) PartitionIntoFragments(_ *cfa.Analyzer, groups [][]*ir.SplitPoint) []*Fragment {
	fragments := make([]*Fragment, len(groups))
	for i, group := range groups {
		fragments[i] = NewFragment(Exclusive, group...)
	}

	sortByMinSplitPoint(fragments)
	return fragments
}

// MergeBySimilarity is the partition strategy which merges the pairs of split
// points sharing the most code until the target number of exclusive fragments
// is reached.
type MergeBySimilarity struct {
	// The number of exclusive fragments to aim for.
	Target int

	// Fragments whose estimated size is below MinSize are pooled together.  A
	// pool still below MinSize is discarded.  Zero disables pooling.
	MinSize int

	Log zerolog.Logger
}

func (ms *MergeBySimilarity) PartitionIntoFragments(initialSeqCfa *cfa.Analyzer, groups [][]*ir.SplitPoint) []*Fragment {
	var splitPoints []*ir.SplitPoint
	for _, group := range groups {
		splitPoints = append(splitPoints, group...)
	}

	index := ComputeLiveAtoms(initialSeqCfa, splitPoints)

	var fragments []*Fragment

	// Split points which are already part of a fragment.
	consumed := make(map[int]struct{})

	for _, group := range groups {
		if len(group) > 1 {
			fragments = append(fragments, NewFragment(Exclusive, group...))

			for _, sp := range group {
				consumed[sp.ID] = struct{}{}
			}
		}
	}

	byID := make(map[int]*ir.SplitPoint, len(splitPoints))
	for _, sp := range splitPoints {
		byID[sp.ID] = sp
	}

	// The number of fragments if merging stopped now.
	fragmentCount := len(fragments) + len(splitPoints) - len(consumed)

	pq := &pairQueue{}
	for _, pair := range index.pairs() {
		_, loGrouped := consumed[pair.lo]
		_, hiGrouped := consumed[pair.hi]
		if !loGrouped && !hiGrouped {
			pq.items = append(pq.items, pairCandidate{pair: pair, size: index.payload[pair]})
		}
	}
	heap.Init(pq)

	numMerged := 0
	for fragmentCount > ms.Target && pq.Len() > 0 {
		cand := heap.Pop(pq).(pairCandidate)

		_, loConsumed := consumed[cand.pair.lo]
		_, hiConsumed := consumed[cand.pair.hi]
		if loConsumed || hiConsumed {
			continue
		}

		fragments = append(fragments, NewFragment(Exclusive, byID[cand.pair.lo], byID[cand.pair.hi]))
		consumed[cand.pair.lo] = struct{}{}
		consumed[cand.pair.hi] = struct{}{}
		fragmentCount--
		numMerged++
	}

	for _, sp := range splitPoints {
		if _, ok := consumed[sp.ID]; !ok {
			fragments = append(fragments, NewFragment(Exclusive, sp))
		}
	}

	ms.Log.Debug().
		Int("split_points", len(splitPoints)).
		Int("merged_pairs", numMerged).
		Int("fragments", len(fragments)).
		Msg("merged split points by similarity")

	if ms.MinSize > 0 {
		fragments = ms.poolSmallFragments(index, fragments)
	}

	sortByMinSplitPoint(fragments)
	return fragments
}

// poolSmallFragments merges every fragment estimated smaller than the minimum
// size into a single fragment which is deleted if it is still too small.
func (ms *MergeBySimilarity) poolSmallFragments(index *LiveAtomsBySplitPoint, fragments []*Fragment) []*Fragment {
	var kept []*Fragment
	pool := NewFragment(Exclusive)
	numPooled := 0

	for _, frag := range fragments {
		if index.FragmentSize(frag.SplitPoints()) >= ms.MinSize {
			kept = append(kept, frag)
			continue
		}

		for _, sp := range frag.SplitPoints() {
			pool.AddSplitPoint(sp)
		}
		numPooled++
	}

	if numPooled == 0 {
		return kept
	}

	poolSize := index.FragmentSize(pool.SplitPoints())
	if poolSize < ms.MinSize {
		pool.delete()
	}

	ms.Log.Debug().
		Int("pooled_fragments", numPooled).
		Int("pool_size", poolSize).
		Bool("discarded", pool.Type() == Deleted).
		Msg("pooled small fragments")

	return append(kept, pool)
}

func sortByMinSplitPoint(fragments []*Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].minSplitPointID() < fragments[j].minSplitPointID()
	})
}

// -----------------------------------------------------------------------------

// pairCandidate is a pair of split points which could be merged.
type pairCandidate struct {
	pair spPair
	size int
}

// pairQueue is a max-heap of merge candidates by estimated size.  Candidates
// of equal size are ordered by ascending split point IDs.
type pairQueue struct {
	items []pairCandidate
}

func (pq *pairQueue) Len() int {
	return len(pq.items)
}

func (pq *pairQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]

	if a.size != b.size {
		return a.size > b.size
	}

	if a.pair.lo != b.pair.lo {
		return a.pair.lo < b.pair.lo
	}

	return a.pair.hi < b.pair.hi
}

func (pq *pairQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *pairQueue) Push(x interface{}) {
	pq.items = append(pq.items, x.(pairCandidate))
}

func (pq *pairQueue) Pop() interface{} {
	last := pq.items[len(pq.items)-1]
	pq.items = pq.items[:len(pq.items)-1]
	return last
}
