package split

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gopkg.in/yaml.v3"

	"fragsplit/common"
	"fragsplit/depgraph"
	"fragsplit/extract"
	"fragsplit/gen"
	"fragsplit/ir"
	"fragsplit/js"
)

// numericEntryValues returns the values of the numeric entries of jsprog by
// key.  Every entry must be patched.
func numericEntryValues(t *testing.T, jsprog *js.Program) map[string][]int {
	values := make(map[string][]int)
	for _, entry := range js.NumericEntries(jsprog.Global) {
		assert.True(t, entry.Patched(), "entry %s is not patched", entry.Key)
		values[entry.Key] = append(values[entry.Key], entry.Value)
	}

	return values
}

// assertPartition checks that every split point belongs to exactly one
// fragment and that the partitioning written back agrees with the fragments.
func assertPartition(t *testing.T, prog *ir.Program, jsprog *js.Program, fragments []*Fragment) {
	fp := prog.FragmentPartitioning()
	require.NotNil(t, fp)
	assert.Equal(t, len(fragments), fp.FragmentCount())
	assert.Equal(t, len(fragments), jsprog.FragmentCount())

	owners := make(map[int]int)
	for i, frag := range fragments {
		assert.Equal(t, i, frag.ID())
		assert.Equal(t, frag.Statements(), jsprog.Fragment(i))

		for _, sp := range frag.SplitPoints() {
			_, dup := owners[sp.ID]
			assert.False(t, dup, "split point %d belongs to two fragments", sp.ID)
			owners[sp.ID] = i
		}
	}

	for _, sp := range prog.SplitPoints {
		owner, ok := owners[sp.ID]
		if assert.True(t, ok, "split point %d belongs to no fragment", sp.ID) {
			assert.Equal(t, owner, fp.FragmentFor(sp.ID))
		}
	}

	// Methods are never loaded twice.
	seen := make(map[*ir.Method]int)
	for i, frag := range fragments {
		for _, m := range methodsIn(frag.Statements()) {
			if prev, ok := seen[m]; ok {
				t.Errorf("%s is loaded by fragments %d and %d", m, prev, i)
			}

			seen[m] = i
		}
	}
}

func TestExecWithoutSplitPoints(t *testing.T) {
	b := ir.NewBuilder()
	mainType := b.Type("Main", nil)
	b.Entry(b.Method(mainType, "main", ir.Static))

	prog, err := b.Build()
	require.NoError(t, err)
	jsprog := gen.Generate(prog)
	global := append([]js.Statement(nil), jsprog.Global...)

	fragments, err := Exec(context.Background(), prog, jsprog, Options{})
	require.NoError(t, err)

	assert.Nil(t, fragments)
	assert.Equal(t, 1, jsprog.FragmentCount())
	assert.Equal(t, global, jsprog.Fragment(0))
	assert.Nil(t, prog.FragmentPartitioning())
}

func TestExecOneSplitPointPerFragment(t *testing.T) {
	a := newApp(t, "", "")

	fragments, err := Exec(context.Background(), a.prog, a.jsprog, Options{})
	require.NoError(t, err)

	require.Len(t, fragments, 4)
	assert.Equal(t, []FragmentType{Initial, Exclusive, Exclusive, NotExclusive}, fragmentTypes(fragments))
	assert.Equal(t, [][]int{nil, {1}, {2}, nil}, splitPointIDsOf(fragments))
	assertPartition(t, a.prog, a.jsprog, fragments)

	assert.ElementsMatch(t, []*ir.Method{a.main, a.onLoad, a.widgetNew, a.widgetRender}, methodsIn(fragments[0].Statements()))
	assert.ElementsMatch(t, []*ir.Method{a.dialogNew, a.dialogRender, a.onDialog}, methodsIn(fragments[1].Statements()))
	assert.ElementsMatch(t, []*ir.Method{a.chartNew, a.chartRender, a.chartPlot, a.onChart}, methodsIn(fragments[2].Statements()))
	assert.ElementsMatch(t, []*ir.Method{a.util}, methodsIn(fragments[3].Statements()))

	dc := defineClassFor(fragments[1].Statements(), a.dialog)
	require.NotNil(t, dc)
	assert.Equal(t, []*ir.Method{a.dialogNew}, dc.Ctors)
	assert.Nil(t, defineClassFor(fragments[1].Statements(), a.widget))

	// Every fragment but the initial download reports that it has loaded.
	for _, frag := range fragments[1:] {
		stmts := frag.Statements()
		require.NotEmpty(t, stmts)
		assert.Equal(t, extract.CreateOnLoadedCall(frag.ID()), stmts[len(stmts)-1:])
	}

	initial := fragments[0].Statements()
	assert.NotEqual(t, extract.CreateOnLoadedCall(0), initial[len(initial)-1:])

	values := numericEntryValues(t, a.jsprog)
	assert.Equal(t, []int{1, 2}, values[common.RunAsyncFragmentIndex])
	assert.Equal(t, []int{3}, values[common.RunAsyncFragmentCount])
}

// greeter is a program with a single split point: Main.main and Later.run
// both may write the static field Holder.greeting, initialized to "hello".
type greeter struct {
	prog     *ir.Program
	jsprog   *js.Program
	greeting *ir.Field
}

func newGreeter(t *testing.T, writtenByCallback bool) *greeter {
	g := &greeter{}
	b := ir.NewBuilder()

	mainType := b.Type("Main", nil)
	main := b.Method(mainType, "main", ir.Static)
	b.Entry(main)

	holder := b.Type("Holder", nil)
	g.greeting = b.Field(holder, "greeting", true)
	g.greeting.Initializer = &ir.Initializer{StringValue: "hello", IsStringValue: true}

	later := b.Type("Later", nil)
	run := b.Method(later, "run", ir.Static)
	run.Strings = []string{"later"}

	if writtenByCallback {
		run.Writes = []*ir.Field{g.greeting}
	} else {
		main.Writes = []*ir.Field{g.greeting}
	}

	b.SplitPoint(main, run, "")

	prog, err := b.Build()
	require.NoError(t, err)

	g.prog = prog
	g.jsprog = gen.Generate(prog)
	return g
}

// varFragment returns the index of the first fragment declaring a variable
// for which pred holds or -1.
func varFragment(fragments []*Fragment, pred func(v *js.Var) bool) int {
	for i, frag := range fragments {
		for _, stmt := range frag.Statements() {
			if vs, ok := stmt.(*js.Vars); ok {
				for _, v := range vs.Vars {
					if pred(v) {
						return i
					}
				}
			}
		}
	}

	return -1
}

func TestExecSingleSplitPoint(t *testing.T) {
	g := newGreeter(t, false)

	fragments, err := Exec(context.Background(), g.prog, g.jsprog, Options{})
	require.NoError(t, err)

	require.Len(t, fragments, 3)
	assert.Equal(t, []FragmentType{Initial, Exclusive, NotExclusive}, fragmentTypes(fragments))
	assert.Equal(t, [][]int{nil, {1}, nil}, splitPointIDsOf(fragments))
	assert.Equal(t, 1, g.prog.FragmentPartitioning().FragmentFor(1))
	assertPartition(t, g.prog, g.jsprog, fragments)

	values := numericEntryValues(t, g.jsprog)
	assert.Equal(t, []int{1}, values[common.RunAsyncFragmentIndex])
	assert.Equal(t, []int{2}, values[common.RunAsyncFragmentCount])
}

func TestExecWrittenFieldLoadsItsInitializer(t *testing.T) {
	for i, writtenByCallback := range []bool{false, true} {
		g := newGreeter(t, writtenByCallback)

		fragments, err := Exec(context.Background(), g.prog, g.jsprog, Options{})
		require.NoError(t, err)

		fieldFrag := varFragment(fragments, func(v *js.Var) bool { return v.Field == g.greeting })
		internFrag := varFragment(fragments, func(v *js.Var) bool { return v.IsLiteral && v.Literal == "hello" })

		assert.Equal(t, i, fieldFrag)
		assert.Equal(t, fieldFrag, internFrag)
	}
}

func TestExecTracesPhases(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	g := newGreeter(t, false)
	_, err := Exec(context.Background(), g.prog, g.jsprog, Options{})
	require.NoError(t, err)

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range rec.Ended() {
		spans[span.Name()] = span
	}

	exec, ok := spans["split.Exec"]
	require.True(t, ok)
	assert.Contains(t, exec.Attributes(), attribute.Int("split_points", 1))
	assert.Contains(t, exec.Attributes(), attribute.Int("initial_sequence", 0))
	assert.Contains(t, exec.Attributes(), attribute.Int("fragments", 3))

	for _, name := range []string{"split.InitialFragments", "split.Partition", "split.Exclusivity", "split.Extract"} {
		span, ok := spans[name]
		if assert.True(t, ok, "missing span %s", name) {
			assert.Equal(t, exec.SpanContext().SpanID(), span.Parent().SpanID())
		}
	}

	assert.Contains(t, spans["split.Partition"].Attributes(), attribute.Int("exclusive_fragments", 1))

	var exclusiveAtoms int64
	for _, kv := range spans["split.Exclusivity"].Attributes() {
		if kv.Key == "exclusive_atoms" {
			exclusiveAtoms = kv.Value.AsInt64()
		}
	}
	assert.Positive(t, exclusiveAtoms)
}

func TestExecInitialLoadSequence(t *testing.T) {
	a := newApp(t, "", "")
	a.prog.InitialSequence = []*ir.SplitPoint{a.spChart}

	fragments, err := Exec(context.Background(), a.prog, a.jsprog, Options{})
	require.NoError(t, err)

	require.Len(t, fragments, 4)
	assert.Equal(t, []FragmentType{Initial, Initial, Exclusive, NotExclusive}, fragmentTypes(fragments))
	assert.Equal(t, [][]int{nil, {2}, {1}, nil}, splitPointIDsOf(fragments))
	assert.Equal(t, []int{1}, a.prog.InitialFragmentIDSequence())
	assertPartition(t, a.prog, a.jsprog, fragments)

	assert.ElementsMatch(t, []*ir.Method{a.chartNew, a.chartRender, a.chartPlot, a.onChart, a.util}, methodsIn(fragments[1].Statements()))
	assert.ElementsMatch(t, []*ir.Method{a.dialogNew, a.dialogRender, a.onDialog}, methodsIn(fragments[2].Statements()))

	// Everything outside the exclusive fragment was loaded by the initial
	// load sequence.
	assert.Equal(t, extract.CreateOnLoadedCall(3), fragments[3].Statements())

	values := numericEntryValues(t, a.jsprog)
	assert.Equal(t, []int{2, 1}, values[common.RunAsyncFragmentIndex])
	assert.Equal(t, []int{3}, values[common.RunAsyncFragmentCount])
}

func TestExecTaggedSplitPointsShareFragment(t *testing.T) {
	for _, opts := range []Options{{}, {ExpectedFragmentCount: 3}} {
		a := newApp(t, "editor", "editor")

		fragments, err := Exec(context.Background(), a.prog, a.jsprog, opts)
		require.NoError(t, err)

		assert.Equal(t, []FragmentType{Initial, Exclusive, NotExclusive}, fragmentTypes(fragments))
		assert.Equal(t, [][]int{nil, {1, 2}, nil}, splitPointIDsOf(fragments))
		assertPartition(t, a.prog, a.jsprog, fragments)

		assert.Contains(t, methodsIn(fragments[1].Statements()), a.util)
		assert.Equal(t, extract.CreateOnLoadedCall(2), fragments[2].Statements())
	}
}

func TestExecDiscardedSplitPointsLoadLeftovers(t *testing.T) {
	a := newApp(t, "", "")

	fragments, err := Exec(context.Background(), a.prog, a.jsprog, Options{
		ExpectedFragmentCount: 10,
		MinFragmentSize:       100000,
	})
	require.NoError(t, err)

	assert.Equal(t, []FragmentType{Initial, NotExclusive}, fragmentTypes(fragments))
	assert.Equal(t, [][]int{nil, {1, 2}}, splitPointIDsOf(fragments))
	assertPartition(t, a.prog, a.jsprog, fragments)

	assert.ElementsMatch(t, []*ir.Method{
		a.dialogNew, a.dialogRender, a.chartNew, a.chartRender, a.chartPlot, a.util, a.onDialog, a.onChart,
	}, methodsIn(fragments[1].Statements()))

	values := numericEntryValues(t, a.jsprog)
	assert.Equal(t, []int{1, 1}, values[common.RunAsyncFragmentIndex])
	assert.Equal(t, []int{1}, values[common.RunAsyncFragmentCount])
}

func TestExecSplicesDispatchTables(t *testing.T) {
	l := newLazyDoc(t)
	jsprog := gen.Generate(l.prog)

	fragments, err := Exec(context.Background(), l.prog, jsprog, Options{})
	require.NoError(t, err)

	require.Len(t, fragments, 4)
	assertPartition(t, l.prog, jsprog, fragments)

	// Doc.show is exclusive to the second fragment, but Doc is not.
	dc := defineClassFor(fragments[1].Statements(), l.doc)
	require.NotNil(t, dc)
	assert.Equal(t, []*ir.Method{l.docNew}, dc.Ctors)

	second := fragments[2].Statements()
	require.NotEmpty(t, second)
	spliced, ok := second[0].(*js.DefineClass)
	require.True(t, ok)
	assert.Equal(t, l.doc, spliced.Type)
	assert.Empty(t, spliced.Ctors)
	assert.Equal(t, l.docShow, methodsIn(second)[0])

	leftoverDC := defineClassFor(fragments[3].Statements(), l.doc)
	require.NotNil(t, leftoverDC)
	assert.Empty(t, leftoverDC.Ctors)
}

func TestExecRecordsDependencyGraphs(t *testing.T) {
	a := newApp(t, "", "")

	buf := &bytes.Buffer{}
	echo := &bytes.Buffer{}
	_, err := Exec(context.Background(), a.prog, a.jsprog, Options{
		Recorder:        depgraph.NewYAMLRecorder(buf),
		StatementLogger: extract.NewEchoLogger(echo),
	})
	require.NoError(t, err)
	assert.Contains(t, echo.String(), "fragment 0 (initial): split points []\n")
	assert.Contains(t, echo.String(), "fragment 1 (exclusive): split points [1]\n")
	assert.Contains(t, echo.String(), "fragment 3 (leftover): split points []\n")

	type graph struct {
		Name    string `yaml:"name"`
		Extends string `yaml:"extends"`
	}

	var graphs []graph
	dec := yaml.NewDecoder(buf)
	for {
		var g graph
		if err := dec.Decode(&g); errors.Is(err, io.EOF) {
			break
		} else {
			require.NoError(t, err)
		}

		graphs = append(graphs, g)
	}

	assert.Equal(t, []graph{
		{Name: "initial"},
		{Name: "total"},
		{Name: "sp1", Extends: "initial"},
		{Name: "sp2", Extends: "initial"},
	}, graphs)
}

func TestExecReportsRecorderErrors(t *testing.T) {
	a := newApp(t, "", "")

	rec := depgraph.NewYAMLRecorder(&bytes.Buffer{})
	require.NoError(t, rec.Open())

	fragments, err := Exec(context.Background(), a.prog, a.jsprog, Options{Recorder: rec})
	assert.Error(t, err)
	assert.Nil(t, fragments)
	assert.Nil(t, a.prog.FragmentPartitioning())
}

func TestCheckFragments(t *testing.T) {
	a := newApp(t, "", "")

	numbered := func(frags ...*Fragment) []*Fragment {
		for i, frag := range frags {
			frag.SetID(i)
		}

		return frags
	}

	s := &splitter{prog: a.prog, fragments: numbered(
		NewFragment(Initial),
		NewFragment(Exclusive, a.spDialog, a.spChart),
		NewFragment(NotExclusive),
	)}
	assert.NotPanics(t, s.checkFragments)

	s.fragments = numbered(
		NewFragment(Initial),
		NewFragment(NotExclusive, a.spChart),
		NewFragment(Exclusive, a.spDialog),
	)
	assert.Panics(t, s.checkFragments)

	s.fragments = numbered(
		NewFragment(Initial),
		NewFragment(Exclusive, a.spDialog),
		NewFragment(NotExclusive),
	)
	assert.Panics(t, s.checkFragments)

	s.fragments = numbered(
		NewFragment(Initial),
		NewFragment(Exclusive, a.spDialog, a.spChart),
		NewFragment(NotExclusive, a.spChart),
	)
	assert.Panics(t, s.checkFragments)
}

func TestTotalScriptSize(t *testing.T) {
	assert.Equal(t, 0, TotalScriptSize(nil))
	assert.Equal(t, 42, TotalScriptSize([]int{30, 10, 2}))
}
