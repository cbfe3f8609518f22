package split

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fragsplit/gen"
	"fragsplit/ir"
	"fragsplit/js"
)

// app is a program with two split points:
//
//	Main.main creates a Widget and renders it.  Split point 1 creates a Dialog
//	and split point 2 creates a Chart: both are widgets.  Shared.util is
//	called from both callbacks.
type app struct {
	prog   *ir.Program
	jsprog *js.Program

	main, onLoad                              *ir.Method
	widgetNew, widgetRender                   *ir.Method
	dialogNew, dialogRender, onDialog         *ir.Method
	chartNew, chartRender, chartPlot, onChart *ir.Method
	util                                      *ir.Method
	widget, dialog, chart                     *ir.Type
	spDialog, spChart                         *ir.SplitPoint
}

func newApp(t *testing.T, dialogTag, chartTag string) *app {
	a := &app{}
	b := ir.NewBuilder()

	mainType := b.Type("Main", nil)
	a.main = b.Method(mainType, "main", ir.Static)
	b.Entry(a.main)

	loader := b.Type("Loader", nil)
	a.onLoad = b.Method(loader, "onLoad", ir.Static)
	b.FragmentOnLoad(a.onLoad)

	a.widget = b.Type("Widget", nil)
	a.widgetNew = b.Method(a.widget, "new", ir.Constructor)
	a.widgetRender = b.Method(a.widget, "render", ir.Instance)

	a.dialog = b.Type("Dialog", a.widget)
	a.dialogNew = b.Method(a.dialog, "new", ir.Constructor)
	a.dialogRender = b.Method(a.dialog, "render", ir.Instance)
	a.dialogRender.Overrides = []*ir.Method{a.widgetRender}
	a.dialogRender.Strings = []string{"dialog"}

	a.chart = b.Type("Chart", a.widget)
	a.chartNew = b.Method(a.chart, "new", ir.Constructor)
	a.chartRender = b.Method(a.chart, "render", ir.Instance)
	a.chartRender.Overrides = []*ir.Method{a.widgetRender}
	a.chartPlot = b.Method(a.chart, "plot", ir.Static, "int")
	a.chartPlot.Strings = []string{"axis"}

	shared := b.Type("Shared", nil)
	a.util = b.Method(shared, "util", ir.Static)
	a.util.Strings = []string{"shared"}

	callbacks := b.Type("Callbacks", nil)
	a.onDialog = b.Method(callbacks, "onDialog", ir.Static)
	a.onDialog.Calls = []*ir.Method{a.dialogNew, a.util}
	a.onChart = b.Method(callbacks, "onChart", ir.Static)
	a.onChart.Calls = []*ir.Method{a.chartNew, a.chartPlot, a.util}

	a.main.Calls = []*ir.Method{a.widgetNew, a.widgetRender}
	a.spDialog = b.SplitPoint(a.main, a.onDialog, dialogTag)
	a.spChart = b.SplitPoint(a.main, a.onChart, chartTag)

	prog, err := b.Build()
	require.NoError(t, err)

	a.prog = prog
	a.jsprog = gen.Generate(prog)
	return a
}

// suite is a program with four split points sharing code pairwise:
//
//	Lib.s12 (84 bytes) is shared by split points 1 and 2
//	Lib.s23 (60 bytes) is shared by split points 2 and 3
//	Lib.s34 (72 bytes) is shared by split points 3 and 4
//
// Each callback is worth 60 bytes on its own except for the callback of split
// point 4 which is worth 120.
type suite struct {
	prog          *ir.Program
	s12, s23, s34 *ir.Method
	splitPoints   []*ir.SplitPoint
}

func newSuite(t *testing.T) *suite {
	s := &suite{}
	b := ir.NewBuilder()

	mainType := b.Type("Main", nil)
	main := b.Method(mainType, "main", ir.Static)
	b.Entry(main)

	lib := b.Type("Lib", nil)
	s.s12 = b.Method(lib, "s12", ir.Static, "int", "int")
	s.s23 = b.Method(lib, "s23", ir.Static)
	s.s34 = b.Method(lib, "s34", ir.Static, "int")

	cbs := b.Type("Cb", nil)
	cb1 := b.Method(cbs, "cb1", ir.Static)
	cb1.Calls = []*ir.Method{s.s12}
	cb2 := b.Method(cbs, "cb2", ir.Static)
	cb2.Calls = []*ir.Method{s.s12, s.s23}
	cb3 := b.Method(cbs, "cb3", ir.Static)
	cb3.Calls = []*ir.Method{s.s23, s.s34}
	cb4 := b.Method(cbs, "cb4", ir.Static, "int", "int", "int", "int", "int")
	cb4.Calls = []*ir.Method{s.s34}

	for _, cb := range []*ir.Method{cb1, cb2, cb3, cb4} {
		s.splitPoints = append(s.splitPoints, b.SplitPoint(main, cb, ""))
	}

	prog, err := b.Build()
	require.NoError(t, err)

	s.prog = prog
	return s
}

// singletons groups each split point on its own.
func singletons(sps ...*ir.SplitPoint) [][]*ir.SplitPoint {
	groups := make([][]*ir.SplitPoint, len(sps))
	for i, sp := range sps {
		groups[i] = []*ir.SplitPoint{sp}
	}

	return groups
}

// methodsIn returns the methods declared by stmts.
func methodsIn(stmts []js.Statement) []*ir.Method {
	var methods []*ir.Method
	for _, stmt := range stmts {
		switch v := stmt.(type) {
		case *js.Function:
			methods = append(methods, v.Method)
		case *js.PrototypeMethod:
			methods = append(methods, v.Method)
		}
	}

	return methods
}

// defineClassFor returns the DefineClass statement of t in stmts or nil.
func defineClassFor(stmts []js.Statement, t *ir.Type) *js.DefineClass {
	for _, stmt := range stmts {
		if dc, ok := stmt.(*js.DefineClass); ok && dc.Type == t {
			return dc
		}
	}

	return nil
}

// splitPointIDsOf returns the split point IDs of each fragment.
func splitPointIDsOf(fragments []*Fragment) [][]int {
	ids := make([][]int, len(fragments))
	for i, frag := range fragments {
		ids[i] = splitPointIDs(frag)
	}

	return ids
}

// fragmentTypes returns the type of each fragment.
func fragmentTypes(fragments []*Fragment) []FragmentType {
	types := make([]FragmentType, len(fragments))
	for i, frag := range fragments {
		types[i] = frag.Type()
	}

	return types
}
