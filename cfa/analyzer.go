package cfa

import (
	"errors"

	"fragsplit/ir"
	"fragsplit/report"
)

// DependencyRecorder is notified every time the analyzer discovers a live
// method.  The dependency chain lists the methods through which the method was
// reached, outermost first: it is empty for roots.
type DependencyRecorder interface {
	MethodIsLiveBecause(m *ir.Method, chain []*ir.Method)
}

// Analyzer is the reachability oracle: given roots, it computes everything
// transitively reachable from them.  Instance methods are only considered live
// once they are called and their type is instantiated: calls to methods whose
// type is not yet instantiated stay on the frontier until it is.
//
// An analyzer can be seeded from another one with NewFrom.  Doing so freezes
// the parent: it can still be queried but no longer extended.  Analyzers are
// not safe for concurrent use.
type Analyzer struct {
	prog   *ir.Program
	parent *Analyzer

	// Types which have been instantiated.
	instantiated *Set[*ir.Type]

	// Types whose static initializer has run.
	referenced *Set[*ir.Type]

	liveMethods *Set[*ir.Method]
	liveFields  *Set[*ir.Field]
	written     *Set[*ir.Field]
	strings     *Set[string]

	// Instance methods which may be dispatched to.  Those whose type is not
	// instantiated form the frontier of the traversal.
	called *Set[*ir.Method]

	frozen bool

	recorder DependencyRecorder

	// The chain of methods being traversed.
	chain []*ir.Method
}

// New creates a new analyzer for prog with nothing live.
func New(prog *ir.Program) *Analyzer {
	return &Analyzer{
		prog:         prog,
		instantiated: newSet[*ir.Type](),
		referenced:   newSet[*ir.Type](),
		liveMethods:  newSet[*ir.Method](),
		liveFields:   newSet[*ir.Field](),
		written:      newSet[*ir.Field](),
		strings:      newSet[string](),
		called:       newSet[*ir.Method](),
	}
}

// NewFrom creates a new analyzer which starts out with everything parent has
// discovered.  The parent is frozen.
func NewFrom(parent *Analyzer) *Analyzer {
	parent.frozen = true

	return &Analyzer{
		prog:         parent.prog,
		parent:       parent,
		instantiated: parent.instantiated.fork(),
		referenced:   parent.referenced.fork(),
		liveMethods:  parent.liveMethods.fork(),
		liveFields:   parent.liveFields.fork(),
		written:      parent.written.fork(),
		strings:      parent.strings.fork(),
		called:       parent.called.fork(),
	}
}

// SetDependencyRecorder sets the recorder notified of newly live methods.  An
// analyzer accepts at most one recorder.
func (a *Analyzer) SetDependencyRecorder(r DependencyRecorder) error {
	if a.recorder != nil {
		return errors.New("a dependency recorder is already set on this analyzer")
	}

	a.recorder = r
	return nil
}

// -----------------------------------------------------------------------------

// TraverseEntryMethods makes the entry methods live along with the immortal
// code-gen types.  When the program has split points, the method called by
// fragments once they have loaded is live from the start.
func (a *Analyzer) TraverseEntryMethods() {
	a.checkExtendable()

	for _, m := range a.prog.EntryMethods {
		a.rescueMethod(m)
	}

	for _, t := range a.prog.ImmortalTypes {
		a.instantiate(t)

		for _, m := range t.Methods {
			if m.IsStatic() {
				a.rescueMethod(m)
			}
		}
	}

	if len(a.prog.SplitPoints) > 0 && a.prog.FragmentOnLoad != nil {
		a.rescueMethod(a.prog.FragmentOnLoad)
	}
}

// TraverseFrom makes m and everything reachable from it live.
func (a *Analyzer) TraverseFrom(m *ir.Method) {
	a.checkExtendable()
	a.rescueMethod(m)
}

// TraverseFromInstantiationOf makes t instantiated along with everything that
// follows from it.
func (a *Analyzer) TraverseFromInstantiationOf(t *ir.Type) {
	a.checkExtendable()
	a.instantiate(t)
}

// TraverseFromSplitPoint extends the analysis with the code that runs once the
// fragment of sp has loaded: its callback.
func (a *Analyzer) TraverseFromSplitPoint(sp *ir.SplitPoint) {
	a.checkExtendable()

	cb := sp.OnSuccess
	if cb == nil {
		return
	}

	if cb.Kind == ir.Instance {
		a.instantiate(cb.Enclosing)
	}

	a.markLive(cb)
}

// TraverseFromSplitPoints extends the analysis with every split point.
func (a *Analyzer) TraverseFromSplitPoints() {
	for _, sp := range a.prog.SplitPoints {
		a.TraverseFromSplitPoint(sp)
	}
}

// TraverseEverything makes everything that could ever run live: the entry
// methods and every split point.
func (a *Analyzer) TraverseEverything() {
	a.TraverseEntryMethods()
	a.TraverseFromSplitPoints()
}

func (a *Analyzer) checkExtendable() {
	if a.frozen {
		report.ICE("attempted to extend an analyzer which has been used as a seed")
	}
}

// -----------------------------------------------------------------------------

// InstantiatedTypes returns the instantiated types.
func (a *Analyzer) InstantiatedTypes() *Set[*ir.Type] {
	return a.instantiated
}

// LiveMethods returns the live methods.
func (a *Analyzer) LiveMethods() *Set[*ir.Method] {
	return a.liveMethods
}

// LiveFields returns the fields which are read.
func (a *Analyzer) LiveFields() *Set[*ir.Field] {
	return a.liveFields
}

// FieldsWritten returns the fields which are written.
func (a *Analyzer) FieldsWritten() *Set[*ir.Field] {
	return a.written
}

// LiveStrings returns the live string literals.
func (a *Analyzer) LiveStrings() *Set[string] {
	return a.strings
}

// IsFieldLive returns whether f is read or written.
func (a *Analyzer) IsFieldLive(f *ir.Field) bool {
	return a.liveFields.Has(f) || a.written.Has(f)
}

// EachNewlyLive calls fn for every atom that is live in a but was not live in
// the analyzer it was seeded from.  For an analyzer created with New, every
// live atom is visited.
func (a *Analyzer) EachNewlyLive(fn func(ir.Atom)) {
	a.instantiated.eachOwn(func(t *ir.Type) {
		fn(ir.TypeAtom(t))
	})

	a.liveMethods.eachOwn(func(m *ir.Method) {
		fn(ir.MethodAtom(m))
	})

	seen := make(map[*ir.Field]struct{})
	visitField := func(f *ir.Field) {
		if _, ok := seen[f]; ok {
			return
		}

		seen[f] = struct{}{}
		if a.parent == nil || !a.parent.IsFieldLive(f) {
			fn(ir.FieldAtom(f))
		}
	}

	a.liveFields.eachOwn(visitField)
	a.written.eachOwn(visitField)

	a.strings.eachOwn(func(s string) {
		fn(ir.StringAtom(s))
	})
}

// -----------------------------------------------------------------------------

// rescueMethod handles a call to m.
func (a *Analyzer) rescueMethod(m *ir.Method) {
	if m == nil || a.liveMethods.Has(m) {
		return
	}

	if m.NeedsVtable() {
		// A virtual call may dispatch to m or to any of its overriders.
		if !a.called.add(m) {
			return
		}

		for _, o := range a.prog.Overriders(m) {
			a.rescueMethod(o)
		}

		if a.instantiated.Has(m.Enclosing) {
			a.markLive(m)
		}

		return
	}

	a.markLive(m)
}

// markLive makes m live and traverses its body.
func (a *Analyzer) markLive(m *ir.Method) {
	if !a.liveMethods.add(m) {
		return
	}

	if a.recorder != nil {
		chain := make([]*ir.Method, len(a.chain))
		copy(chain, a.chain)
		a.recorder.MethodIsLiveBecause(m, chain)
	}

	switch m.Kind {
	case ir.Constructor:
		a.instantiate(m.Enclosing)
	case ir.Static:
		a.reference(m.Enclosing)
	}

	a.chain = append(a.chain, m)
	a.traverseBody(m)
	a.chain = a.chain[:len(a.chain)-1]
}

func (a *Analyzer) traverseBody(m *ir.Method) {
	for _, callee := range m.Calls {
		a.rescueMethod(callee)
	}

	for _, t := range m.Instantiates {
		a.instantiate(t)
	}

	for _, f := range m.Reads {
		a.rescueField(f)
	}

	for _, f := range m.Writes {
		if a.written.add(f) && f.Static {
			a.rescueStaticField(f)
		}
	}

	for _, s := range m.Strings {
		a.strings.add(s)
	}

	for _, t := range m.ClassLiterals {
		a.rescueField(a.prog.ClassLiteralField(t))
	}

	// The callbacks of split points are deliberately not traversed: they only
	// run once their fragment has loaded.
}

// instantiate marks t and its supertypes as instantiated and makes every
// called method of t live.
func (a *Analyzer) instantiate(t *ir.Type) {
	if t == nil || !a.instantiated.add(t) {
		return
	}

	a.reference(t)
	a.instantiate(t.Super)

	for _, m := range t.Methods {
		if m.NeedsVtable() && a.called.Has(m) {
			a.markLive(m)
		}
	}
}

// reference runs the static initializer of t and of its supertypes.
func (a *Analyzer) reference(t *ir.Type) {
	if t == nil || !a.referenced.add(t) {
		return
	}

	a.reference(t.Super)

	if t.Clinit != nil {
		a.rescueMethod(t.Clinit)
	}
}

// rescueField handles a read of f.
func (a *Analyzer) rescueField(f *ir.Field) {
	if f == nil || !a.liveFields.add(f) || !f.Static {
		return
	}

	a.rescueStaticField(f)
}

// rescueStaticField handles a static field becoming live, whether it is read
// or written: its declaration is emitted along with its initializer so the
// initializer must be live too.
func (a *Analyzer) rescueStaticField(f *ir.Field) {
	if !a.prog.IsClassLiteralHolder(f.Enclosing) {
		a.reference(f.Enclosing)
	}

	init := f.Initializer
	if init == nil {
		return
	}

	for _, s := range init.AllStrings() {
		a.strings.add(s)
	}

	for _, lit := range init.ClassLiterals {
		a.rescueField(lit)
	}

	for _, m := range init.Methods {
		a.rescueMethod(m)
	}
}
