package split

import (
	"fragsplit/cfa"
	"fragsplit/ir"
	"fragsplit/liveness"
)

// ExclusivityMap assigns every atom that is live somewhere after the initial
// load sequence to the exclusive fragment that owns it.  Atoms missing from
// the map are not exclusive: they belong to the leftover fragment.
type ExclusivityMap struct {
	// The analysis of everything that can ever run.  Atoms it does not reach
	// are never live, whatever their owner.
	complete *cfa.Analyzer

	types   map[*ir.Type]*Fragment
	methods map[*ir.Method]*Fragment
	fields  map[*ir.Field]*Fragment
	strings map[string]*Fragment
}

func newExclusivityMap(complete *cfa.Analyzer) *ExclusivityMap {
	return &ExclusivityMap{
		complete: complete,
		types:    make(map[*ir.Type]*Fragment),
		methods:  make(map[*ir.Method]*Fragment),
		fields:   make(map[*ir.Field]*Fragment),
		strings:  make(map[string]*Fragment),
	}
}

// ComputeExclusivityMap computes which atoms are exclusive to which fragment.
// complements[i] is the analysis of everything reachable without going
// through the split points of fragments[i]: an atom is exclusive to
// fragments[i] iff it is live in complete but not in complements[i].  If an
// atom turns out to be exclusive to several fragments, the last one wins.
func ComputeExclusivityMap(fragments []*Fragment, complete *cfa.Analyzer, complements []*cfa.Analyzer) *ExclusivityMap {
	em := newExclusivityMap(complete)

	for i, frag := range fragments {
		comp := complements[i]

		complete.InstantiatedTypes().Each(func(t *ir.Type) {
			if !comp.InstantiatedTypes().Has(t) {
				em.types[t] = frag
			}
		})

		complete.LiveMethods().Each(func(m *ir.Method) {
			if !comp.LiveMethods().Has(m) {
				em.methods[m] = frag
			}
		})

		fieldVisitor := func(f *ir.Field) {
			if !comp.IsFieldLive(f) {
				em.fields[f] = frag
			}
		}

		complete.LiveFields().Each(fieldVisitor)
		complete.FieldsWritten().Each(fieldVisitor)

		complete.LiveStrings().Each(func(s string) {
			if !comp.LiveStrings().Has(s) {
				em.strings[s] = frag
			}
		})
	}

	return em
}

// -----------------------------------------------------------------------------

// TypeOwner returns the owner of t.
func (em *ExclusivityMap) TypeOwner(t *ir.Type) Owner {
	return Owner{frag: em.types[t]}
}

// MethodOwner returns the owner of m.
func (em *ExclusivityMap) MethodOwner(m *ir.Method) Owner {
	return Owner{frag: em.methods[m]}
}

// FieldOwner returns the owner of f.
func (em *ExclusivityMap) FieldOwner(f *ir.Field) Owner {
	return Owner{frag: em.fields[f]}
}

// StringOwner returns the owner of s.
func (em *ExclusivityMap) StringOwner(s string) Owner {
	return Owner{frag: em.strings[s]}
}

// Owner returns the owner of an atom.
func (em *ExclusivityMap) Owner(atom ir.Atom) Owner {
	switch atom.Kind {
	case ir.AtomType:
		return em.TypeOwner(atom.Type)
	case ir.AtomMethod:
		return em.MethodOwner(atom.Method)
	case ir.AtomField:
		return em.FieldOwner(atom.Field)
	default:
		return em.StringOwner(atom.String)
	}
}

// The demote functions move an atom to the leftover fragment.  They return
// whether the atom was exclusive before.

func (em *ExclusivityMap) demoteType(t *ir.Type) bool {
	_, ok := em.types[t]
	delete(em.types, t)
	return ok
}

func (em *ExclusivityMap) demoteMethod(m *ir.Method) bool {
	_, ok := em.methods[m]
	delete(em.methods, m)
	return ok
}

func (em *ExclusivityMap) demoteField(f *ir.Field) bool {
	_, ok := em.fields[f]
	delete(em.fields, f)
	return ok
}

func (em *ExclusivityMap) demoteString(s string) bool {
	_, ok := em.strings[s]
	delete(em.strings, s)
	return ok
}

// -----------------------------------------------------------------------------

// Predicate returns the predicate under which atoms owned by o or by no
// exclusive fragment are live.  Predicate(NotExclusiveOwner) describes the
// content of the leftover fragment.
func (em *ExclusivityMap) Predicate(o Owner) liveness.Predicate {
	return &exclusivityPredicate{em: em, live: func(actual Owner) bool {
		return actual == o || actual == NotExclusiveOwner
	}}
}

// AlreadyLoadedFor returns the predicate under which every atom not exclusive
// to f is live: everything f can rely on or has no business loading.
func (em *ExclusivityMap) AlreadyLoadedFor(f *Fragment) liveness.Predicate {
	owner := ExclusiveTo(f)
	return &exclusivityPredicate{em: em, live: func(actual Owner) bool {
		return actual != owner
	}}
}

// exclusivityPredicate is a liveness predicate driven by the owners of atoms.
type exclusivityPredicate struct {
	em   *ExclusivityMap
	live func(actual Owner) bool
}

func (ep *exclusivityPredicate) IsTypeLive(t *ir.Type) bool {
	return ep.em.complete.InstantiatedTypes().Has(t) && ep.live(ep.em.TypeOwner(t))
}

func (ep *exclusivityPredicate) IsMethodLive(m *ir.Method) bool {
	return ep.em.complete.LiveMethods().Has(m) && ep.live(ep.em.MethodOwner(m))
}

func (ep *exclusivityPredicate) IsFieldLive(f *ir.Field) bool {
	return ep.em.complete.IsFieldLive(f) && ep.live(ep.em.FieldOwner(f))
}

func (ep *exclusivityPredicate) IsStringLive(s string) bool {
	return ep.em.complete.LiveStrings().Has(s) && ep.live(ep.em.StringOwner(s))
}

func (ep *exclusivityPredicate) MiscellaneousStatementsAreLive() bool {
	return true
}
