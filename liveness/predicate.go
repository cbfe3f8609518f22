package liveness

import (
	"fragsplit/cfa"
	"fragsplit/ir"
)

// Predicate answers whether atoms are live at some point of program
// execution: at the end of the initial download, after a fragment has loaded,
// etc.  Statements which are not derived from any atom are live iff
// MiscellaneousStatementsAreLive holds.
type Predicate interface {
	IsTypeLive(t *ir.Type) bool
	IsMethodLive(m *ir.Method) bool
	IsFieldLive(f *ir.Field) bool
	IsStringLive(s string) bool
	MiscellaneousStatementsAreLive() bool
}

// Nothing is the predicate under which nothing is live.  It describes the
// program before any code has been downloaded.
type Nothing struct{}

func (Nothing) IsTypeLive(*ir.Type) bool { return false }
func (Nothing) IsMethodLive(*ir.Method) bool { return false }
func (Nothing) IsFieldLive(*ir.Field) bool { return false }
func (Nothing) IsStringLive(string) bool { return false }
func (Nothing) MiscellaneousStatementsAreLive() bool { return false }

// -----------------------------------------------------------------------------

// CFAPredicate is the predicate backed by a reachability analysis: an atom is
// live iff the analyzer discovered it.
type CFAPredicate struct {
	a *cfa.Analyzer
}

// FromAnalyzer creates a predicate backed by a.
func FromAnalyzer(a *cfa.Analyzer) *CFAPredicate {
	return &CFAPredicate{a: a}
}

func (cp *CFAPredicate) IsTypeLive(t *ir.Type) bool {
	return cp.a.InstantiatedTypes().Has(t)
}

func (cp *CFAPredicate) IsMethodLive(m *ir.Method) bool {
	return cp.a.LiveMethods().Has(m)
}

func (cp *CFAPredicate) IsFieldLive(f *ir.Field) bool {
	return cp.a.IsFieldLive(f)
}

func (cp *CFAPredicate) IsStringLive(s string) bool {
	return cp.a.LiveStrings().Has(s)
}

// MiscellaneousStatementsAreLive always holds: a predicate backed by an
// analysis describes a point at which the initial download has run.
func (cp *CFAPredicate) MiscellaneousStatementsAreLive() bool {
	return true
}
