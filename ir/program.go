package ir

// Program is the whole-program graph handed to the splitter.  It is built by a
// Builder and is read-only to the splitter except for the write-back surface:
// the fragment partitioning and the initial fragment id sequence.
type Program struct {
	// All declared types in declaration order.  The class literal holder is
	// always the last type.
	Types []*Type

	// The methods that run when the program starts.
	EntryMethods []*Method

	// Types that the code generator always needs: they are instantiated and
	// their static methods are live in the initial download.
	ImmortalTypes []*Type

	// All split points, ordered by ID.  The ID of a split point is its index
	// plus one.
	SplitPoints []*SplitPoint

	// The split points that load in a fixed order right after the initial
	// download.  It is validated upstream: see split.PickInitialLoadSequence.
	InitialSequence []*SplitPoint

	// The method called by every fragment once it has loaded.  It may be nil
	// when the program has no fragment loader.
	FragmentOnLoad *Method

	// The synthetic type holding the class literal of every declared type.
	ClassLiteralHolder *Type

	typesByName        map[string]*Type
	overriders         map[*Method][]*Method
	classLiteralFields map[*Type]*Field
	splitPointsByName  map[string][]*SplitPoint

	partitioning       *FragmentPartitioning
	initialFragmentIDs []int
}

// LookupType returns the type with the given name.
func (p *Program) LookupType(name string) (*Type, bool) {
	t, ok := p.typesByName[name]
	return t, ok
}

// Overriders returns the methods which directly override m.
func (p *Program) Overriders(m *Method) []*Method {
	return p.overriders[m]
}

// ClassLiteralField returns the field holding the class literal of t.
func (p *Program) ClassLiteralField(t *Type) *Field {
	return p.classLiteralFields[t]
}

// ClassLiteralFields returns every class literal field in declaration order.
func (p *Program) ClassLiteralFields() []*Field {
	if p.ClassLiteralHolder == nil {
		return nil
	}

	return p.ClassLiteralHolder.Fields
}

// SplitPointsNamed returns the split points carrying the given name.
func (p *Program) SplitPointsNamed(name string) []*SplitPoint {
	return p.splitPointsByName[name]
}

// SplitPointByID returns the split point with the given ID.
func (p *Program) SplitPointByID(id int) (*SplitPoint, bool) {
	if id < 1 || id > len(p.SplitPoints) {
		return nil, false
	}

	return p.SplitPoints[id-1], true
}

// IsClassLiteralHolder returns whether t is the synthetic class literal holder.
func (p *Program) IsClassLiteralHolder(t *Type) bool {
	return t != nil && t == p.ClassLiteralHolder
}

// -----------------------------------------------------------------------------

// FragmentPartitioning is the result of splitting written back into the
// program: which fragment each split point loads and how many fragments exist.
type FragmentPartitioning struct {
	fragmentForSplitPoint []int
	fragmentCount         int
}

// NewFragmentPartitioning creates a partitioning for split points 1 through
// splitPointCount.  Fragment 0 is always the initial download.
func NewFragmentPartitioning(splitPointCount, fragmentCount int) *FragmentPartitioning {
	return &FragmentPartitioning{
		fragmentForSplitPoint: make([]int, splitPointCount+1),
		fragmentCount:         fragmentCount,
	}
}

// SetFragmentFor records that the split point with the given ID loads
// fragment.
func (fp *FragmentPartitioning) SetFragmentFor(splitPointID, fragment int) {
	fp.fragmentForSplitPoint[splitPointID] = fragment
}

// FragmentFor returns the fragment loaded by the split point with the given ID.
func (fp *FragmentPartitioning) FragmentFor(splitPointID int) int {
	return fp.fragmentForSplitPoint[splitPointID]
}

// FragmentCount returns the total number of fragments.
func (fp *FragmentPartitioning) FragmentCount() int {
	return fp.fragmentCount
}

// LeftoverFragment returns the ID of the leftover fragment, which is always the
// last fragment.
func (fp *FragmentPartitioning) LeftoverFragment() int {
	return fp.fragmentCount - 1
}

// SetFragmentPartitioning installs the result of splitting.
func (p *Program) SetFragmentPartitioning(fp *FragmentPartitioning) {
	p.partitioning = fp
}

// FragmentPartitioning returns the installed partitioning or nil if the
// program was never split.
func (p *Program) FragmentPartitioning() *FragmentPartitioning {
	return p.partitioning
}

// SetInitialFragmentIDSequence installs the fragment IDs of the initial load
// sequence in load order.
func (p *Program) SetInitialFragmentIDSequence(ids []int) {
	p.initialFragmentIDs = ids
}

// InitialFragmentIDSequence returns the fragment IDs of the initial load
// sequence.
func (p *Program) InitialFragmentIDSequence() []int {
	return p.initialFragmentIDs
}
