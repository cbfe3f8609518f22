package split

import (
	"sort"

	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/report"
)

// FragmentType enumerates the different kinds of fragments.
type FragmentType int

const (
	// Initial fragments load at startup: the initial download and one
	// fragment per split point of the initial load sequence.
	Initial FragmentType = iota

	// Exclusive fragments hold the code only reachable through their own
	// split points.
	Exclusive

	// NotExclusive is the type of the leftover fragment: the code reachable
	// after the initial load sequence which no exclusive fragment owns.
	NotExclusive

	// Deleted fragments were discarded by a partition strategy.  Their split
	// points load the leftover fragment.
	Deleted
)

func (ft FragmentType) String() string {
	switch ft {
	case Initial:
		return "initial"
	case Exclusive:
		return "exclusive"
	case NotExclusive:
		return "leftover"
	default:
		return "deleted"
	}
}

// noID marks a fragment whose ID has not been assigned yet.
const noID = -1

// Fragment is a unit of output: the code needed once its split points (or
// none, for the initial download) have been reached.
type Fragment struct {
	kind FragmentType
	id   int

	// Kept sorted by ID.
	splitPoints []*ir.SplitPoint

	statements []js.Statement
}

// NewFragment creates a new fragment owning the given split points.
func NewFragment(kind FragmentType, splitPoints ...*ir.SplitPoint) *Fragment {
	f := &Fragment{kind: kind, id: noID}
	for _, sp := range splitPoints {
		f.AddSplitPoint(sp)
	}

	return f
}

// Type returns the type of the fragment.
func (f *Fragment) Type() FragmentType {
	return f.kind
}

// IsExclusive returns whether the fragment is an exclusive fragment.
func (f *Fragment) IsExclusive() bool {
	return f.kind == Exclusive
}

// delete marks the fragment as discarded.
func (f *Fragment) delete() {
	f.kind = Deleted
}

// ID returns the ID of the fragment.  It is only valid once assigned.
func (f *Fragment) ID() int {
	return f.id
}

// HasID returns whether the fragment has been assigned an ID.
func (f *Fragment) HasID() bool {
	return f.id != noID
}

// SetID assigns the ID of the fragment.  IDs are assigned exactly once.
func (f *Fragment) SetID(id int) {
	if f.id != noID {
		report.ICE("fragment %d cannot be renumbered to %d", f.id, id)
	}

	f.id = id
}

// SplitPoints returns the split points of the fragment ordered by ID.
func (f *Fragment) SplitPoints() []*ir.SplitPoint {
	return f.splitPoints
}

// AddSplitPoint adds a split point to the fragment.  Adding a split point the
// fragment already owns does nothing.
func (f *Fragment) AddSplitPoint(sp *ir.SplitPoint) {
	i := sort.Search(len(f.splitPoints), func(i int) bool {
		return f.splitPoints[i].ID >= sp.ID
	})

	if i < len(f.splitPoints) && f.splitPoints[i].ID == sp.ID {
		return
	}

	f.splitPoints = append(f.splitPoints, nil)
	copy(f.splitPoints[i+1:], f.splitPoints[i:])
	f.splitPoints[i] = sp
}

// minSplitPointID returns the smallest split point ID of the fragment or zero
// if it has no split points.
func (f *Fragment) minSplitPointID() int {
	if len(f.splitPoints) == 0 {
		return 0
	}

	return f.splitPoints[0].ID
}

// Statements returns the statements of the fragment.
func (f *Fragment) Statements() []js.Statement {
	return f.statements
}

// SetStatements sets the statements of the fragment.
func (f *Fragment) SetStatements(stmts []js.Statement) {
	f.statements = stmts
}

// AddStatements appends statements to the fragment.
func (f *Fragment) AddStatements(stmts []js.Statement) {
	f.statements = append(f.statements, stmts...)
}
