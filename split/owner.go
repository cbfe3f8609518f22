package split

import "strconv"

// Owner is the assignment of an atom in the exclusivity map: either exclusive
// to a fragment or not exclusive to anything.  The zero value is not
// exclusive.
type Owner struct {
	frag *Fragment
}

// NotExclusiveOwner is the owner of atoms which no exclusive fragment owns.
var NotExclusiveOwner = Owner{}

// ExclusiveTo returns the owner for atoms exclusive to f.
func ExclusiveTo(f *Fragment) Owner {
	return Owner{frag: f}
}

// Fragment returns the fragment of an exclusive owner.
func (o Owner) Fragment() (*Fragment, bool) {
	return o.frag, o.frag != nil
}

// IsExclusive returns whether the owner is an exclusive fragment.
func (o Owner) IsExclusive() bool {
	return o.frag != nil
}

func (o Owner) String() string {
	if o.frag == nil {
		return "not exclusive"
	}

	return "exclusive to fragment " + strconv.Itoa(o.frag.ID())
}
