package cfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fragsplit/ir"
	"fragsplit/report"
)

// shapes is a small program:
//
//	Main.main calls Shape.area virtually and constructs Square.
//	Circle overrides area but is only constructed behind split point 1.
type shapes struct {
	prog *ir.Program

	main, squareNew, circleNew   *ir.Method
	area, squareArea, circleArea *ir.Method
	unused, onSuccess            *ir.Method
	shape, square, circle        *ir.Type
	name                         *ir.Field
	sp                           *ir.SplitPoint
}

func newShapes(t *testing.T) *shapes {
	s := &shapes{}
	b := ir.NewBuilder()

	mainType := b.Type("Main", nil)
	s.main = b.Method(mainType, "main", ir.Static)
	s.unused = b.Method(mainType, "unused", ir.Static)
	b.Entry(s.main)

	s.shape = b.Type("Shape", nil)
	s.area = b.Method(s.shape, "area", ir.Instance)
	s.name = b.Field(s.shape, "NAME", true)
	s.name.Initializer = &ir.Initializer{StringValue: "shape", IsStringValue: true}

	s.square = b.Type("Square", s.shape)
	s.squareNew = b.Method(s.square, "new", ir.Constructor)
	s.squareArea = b.Method(s.square, "area", ir.Instance)
	s.squareArea.Overrides = []*ir.Method{s.area}

	s.circle = b.Type("Circle", s.shape)
	s.circleNew = b.Method(s.circle, "new", ir.Constructor)
	s.circleArea = b.Method(s.circle, "area", ir.Instance)
	s.circleArea.Overrides = []*ir.Method{s.area}
	s.circleArea.Strings = []string{"pi"}

	cb := b.Type("Callback", nil)
	s.onSuccess = b.Method(cb, "onSuccess", ir.Instance)
	s.onSuccess.Calls = []*ir.Method{s.circleNew}
	s.onSuccess.ClassLiterals = []*ir.Type{s.circle}

	s.main.Calls = []*ir.Method{s.squareNew, s.area}
	s.main.Reads = []*ir.Field{s.name}
	s.sp = b.SplitPoint(s.main, s.onSuccess, "")

	prog, err := b.Build()
	require.NoError(t, err)
	s.prog = prog

	return s
}

func TestTraverseEntryMethods(t *testing.T) {
	s := newShapes(t)

	a := New(s.prog)
	a.TraverseEntryMethods()

	assert.True(t, a.LiveMethods().Has(s.main))
	assert.True(t, a.LiveMethods().Has(s.squareNew))
	assert.True(t, a.LiveMethods().Has(s.squareArea))
	assert.False(t, a.LiveMethods().Has(s.unused))

	// Shape.area is called but only dispatches to instantiated types.
	assert.True(t, a.LiveMethods().Has(s.area))
	assert.False(t, a.LiveMethods().Has(s.circleArea))
	assert.False(t, a.LiveMethods().Has(s.onSuccess))

	assert.True(t, a.InstantiatedTypes().Has(s.square))
	assert.True(t, a.InstantiatedTypes().Has(s.shape))
	assert.False(t, a.InstantiatedTypes().Has(s.circle))

	assert.True(t, a.LiveFields().Has(s.name))
	assert.True(t, a.LiveStrings().Has("shape"))
	assert.False(t, a.LiveStrings().Has("pi"))
}

func TestInstantiationResolvesPendingCalls(t *testing.T) {
	s := newShapes(t)

	a := New(s.prog)
	a.TraverseEntryMethods()

	child := NewFrom(a)
	child.TraverseFromInstantiationOf(s.circle)

	assert.True(t, child.LiveMethods().Has(s.circleArea))
	assert.True(t, child.LiveStrings().Has("pi"))
	assert.False(t, a.LiveMethods().Has(s.circleArea))
}

func TestTraverseFromSplitPoint(t *testing.T) {
	s := newShapes(t)

	initial := New(s.prog)
	initial.TraverseEntryMethods()

	ext := NewFrom(initial)
	ext.TraverseFromSplitPoint(s.sp)

	assert.True(t, ext.LiveMethods().Has(s.onSuccess))
	assert.True(t, ext.LiveMethods().Has(s.circleNew))
	assert.True(t, ext.LiveMethods().Has(s.circleArea))
	assert.True(t, ext.LiveFields().Has(s.prog.ClassLiteralField(s.circle)))

	// The superclass literal and the type name come along with the literal.
	assert.True(t, ext.LiveFields().Has(s.prog.ClassLiteralField(s.shape)))
	assert.True(t, ext.LiveStrings().Has("Circle"))

	var newly []ir.Atom
	ext.EachNewlyLive(func(atom ir.Atom) {
		newly = append(newly, atom)
	})

	assert.Contains(t, newly, ir.MethodAtom(s.circleArea))
	assert.Contains(t, newly, ir.TypeAtom(s.circle))
	assert.NotContains(t, newly, ir.MethodAtom(s.main))
	assert.NotContains(t, newly, ir.FieldAtom(s.name))
}

func TestTraverseEverythingIsSuperset(t *testing.T) {
	s := newShapes(t)

	initial := New(s.prog)
	initial.TraverseEntryMethods()

	everything := New(s.prog)
	everything.TraverseEverything()

	initial.LiveMethods().Each(func(m *ir.Method) {
		assert.True(t, everything.LiveMethods().Has(m), m.QualifiedName())
	})

	assert.Greater(t, everything.LiveMethods().Len(), initial.LiveMethods().Len())
}

func TestSeededAnalyzerSharesParentState(t *testing.T) {
	s := newShapes(t)

	parent := New(s.prog)
	parent.TraverseEntryMethods()
	before := parent.LiveMethods().Len()

	child := NewFrom(parent)
	assert.Equal(t, before, child.LiveMethods().Len())

	child.TraverseFrom(s.unused)
	assert.True(t, child.LiveMethods().Has(s.unused))
	assert.False(t, parent.LiveMethods().Has(s.unused))
	assert.Equal(t, before, parent.LiveMethods().Len())
	assert.Equal(t, before+1, child.LiveMethods().Len())
}

func TestExtendingFrozenAnalyzerPanics(t *testing.T) {
	s := newShapes(t)

	parent := New(s.prog)
	parent.TraverseEntryMethods()
	NewFrom(parent)

	assert.PanicsWithError(t, (&report.InternalError{
		Message: "attempted to extend an analyzer which has been used as a seed",
	}).Error(), func() {
		parent.TraverseFrom(s.unused)
	})
}

type chainRecorder struct {
	chains map[*ir.Method][]*ir.Method
}

func (cr *chainRecorder) MethodIsLiveBecause(m *ir.Method, chain []*ir.Method) {
	cr.chains[m] = chain
}

func TestDependencyRecorder(t *testing.T) {
	s := newShapes(t)

	rec := &chainRecorder{chains: make(map[*ir.Method][]*ir.Method)}
	a := New(s.prog)
	require.NoError(t, a.SetDependencyRecorder(rec))
	assert.Error(t, a.SetDependencyRecorder(rec))

	a.TraverseEntryMethods()

	assert.Empty(t, rec.chains[s.main])
	assert.Equal(t, []*ir.Method{s.main}, rec.chains[s.squareNew])
	assert.NotContains(t, rec.chains, s.unused)
}

func TestFieldsWrittenAreLive(t *testing.T) {
	b := ir.NewBuilder()
	main := b.Type("Main", nil)
	run := b.Method(main, "run", ir.Static)
	counter := b.Field(main, "counter", true)
	run.Writes = []*ir.Field{counter}
	b.Entry(run)

	prog, err := b.Build()
	require.NoError(t, err)

	a := New(prog)
	a.TraverseEntryMethods()

	assert.True(t, a.FieldsWritten().Has(counter))
	assert.False(t, a.LiveFields().Has(counter))
	assert.True(t, a.IsFieldLive(counter))
}

func TestWrittenFieldTraversesInitializer(t *testing.T) {
	b := ir.NewBuilder()
	main := b.Type("Main", nil)
	run := b.Method(main, "run", ir.Static)
	b.Entry(run)

	holder := b.Type("Holder", nil)
	factory := b.Method(holder, "create", ir.Static)
	greeting := b.Field(holder, "greeting", true)
	greeting.Initializer = &ir.Initializer{
		StringValue:   "hello",
		IsStringValue: true,
		Methods:       []*ir.Method{factory},
	}
	run.Writes = []*ir.Field{greeting}

	prog, err := b.Build()
	require.NoError(t, err)

	a := New(prog)
	a.TraverseEntryMethods()

	assert.False(t, a.LiveFields().Has(greeting))
	assert.True(t, a.LiveStrings().Has("hello"))
	assert.True(t, a.LiveMethods().Has(factory))
}

func TestStaticInitializerRunsOnReference(t *testing.T) {
	b := ir.NewBuilder()
	main := b.Type("Main", nil)
	run := b.Method(main, "run", ir.Static)
	b.Entry(run)

	config := b.Type("Config", nil)
	clinit := b.Clinit(config)
	clinit.Strings = []string{"defaults"}
	get := b.Method(config, "get", ir.Static)
	run.Calls = []*ir.Method{get}

	prog, err := b.Build()
	require.NoError(t, err)

	a := New(prog)
	a.TraverseEntryMethods()

	assert.True(t, a.LiveMethods().Has(clinit))
	assert.True(t, a.LiveStrings().Has("defaults"))
	assert.False(t, a.InstantiatedTypes().Has(config))
}
