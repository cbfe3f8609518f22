package split

import (
	"github.com/willf/bitset"

	"fragsplit/cfa"
	"fragsplit/ir"
)

// Estimated byte costs of the code emitted for atoms.
const (
	methodBaseSize  = 60
	methodParamSize = 12
	fieldSize       = 8
	typeBaseSize    = 100
	typeMethodSize  = 10
)

// spPair identifies a set of one or two split points by ID.  hi is zero for a
// single split point.
type spPair struct {
	lo, hi int
}

// LiveAtomsBySplitPoint records, for every atom, the split points which make
// it live when the analysis at the end of the initial load sequence is
// extended by that split point alone.  It is only used to estimate how much
// code split points share.
type LiveAtomsBySplitPoint struct {
	atoms map[ir.Atom]*bitset.BitSet

	// The estimated size of the atoms made live by exactly the split points of
	// the pair.  Atoms made live by more than two split points are not
	// accounted for.
	payload map[spPair]int
}

// ComputeLiveAtoms builds the index for splitPoints starting from the analysis
// at the end of the initial load sequence.  seed is frozen.
func ComputeLiveAtoms(seed *cfa.Analyzer, splitPoints []*ir.SplitPoint) *LiveAtomsBySplitPoint {
	la := &LiveAtomsBySplitPoint{
		atoms:   make(map[ir.Atom]*bitset.BitSet),
		payload: make(map[spPair]int),
	}

	for _, sp := range splitPoints {
		a := cfa.NewFrom(seed)
		a.TraverseFromSplitPoint(sp)

		a.EachNewlyLive(func(atom ir.Atom) {
			bs, ok := la.atoms[atom]
			if !ok {
				bs = bitset.New(uint(sp.ID + 1))
				la.atoms[atom] = bs
			}

			bs.Set(uint(sp.ID))
		})
	}

	for atom, bs := range la.atoms {
		switch bs.Count() {
		case 1:
			lo, _ := bs.NextSet(0)
			la.payload[spPair{lo: int(lo)}] += atomSize(atom)
		case 2:
			lo, _ := bs.NextSet(0)
			hi, _ := bs.NextSet(lo + 1)
			la.payload[spPair{lo: int(lo), hi: int(hi)}] += atomSize(atom)
		}
	}

	return la
}

// atomSize estimates the size of the code emitted for atom.
func atomSize(atom ir.Atom) int {
	switch atom.Kind {
	case ir.AtomMethod:
		return methodBaseSize + methodParamSize*len(atom.Method.Params)
	case ir.AtomField:
		return fieldSize
	case ir.AtomType:
		return typeBaseSize + typeMethodSize*len(atom.Type.Methods)
	default:
		return len(atom.String)
	}
}

// SplitPointsOf returns the split points which make atom live on their own.
// It returns nil if no split point does.
func (la *LiveAtomsBySplitPoint) SplitPointsOf(atom ir.Atom) *bitset.BitSet {
	return la.atoms[atom]
}

// PairSize returns the estimated size of the code made live by exactly the
// split points with IDs a and b.
func (la *LiveAtomsBySplitPoint) PairSize(a, b int) int {
	if a > b {
		a, b = b, a
	}

	return la.payload[spPair{lo: a, hi: b}]
}

// FragmentSize estimates the size of a fragment holding splitPoints: the
// accumulated size of every recorded set of split points included in it.
func (la *LiveAtomsBySplitPoint) FragmentSize(splitPoints []*ir.SplitPoint) int {
	mask := bitset.New(0)
	for _, sp := range splitPoints {
		mask.Set(uint(sp.ID))
	}

	size := 0
	for pair, pairSize := range la.payload {
		if !mask.Test(uint(pair.lo)) {
			continue
		}

		if pair.hi == 0 || mask.Test(uint(pair.hi)) {
			size += pairSize
		}
	}

	return size
}

// pairs returns every recorded pair of distinct split points.
func (la *LiveAtomsBySplitPoint) pairs() []spPair {
	var pairs []spPair
	for pair := range la.payload {
		if pair.hi != 0 {
			pairs = append(pairs, pair)
		}
	}

	return pairs
}
