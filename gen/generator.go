package gen

import (
	"strconv"

	"fragsplit/common"
	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/util"
)

// Names of the runtime functions the generated code calls.
const (
	defineClassFn    = "defineClass"
	createForClassFn = "createForClass"
	runAsyncFn       = "runAsync"
	loaderInitFn     = "AsyncFragmentLoader.init"
)

// Generator is responsible for lowering the program graph into the single,
// linearized JavaScript statement stream that the splitter partitions.
type Generator struct {
	// prog is the program being lowered.
	prog *ir.Program

	// internNames maps each string literal to its interned variable.
	internNames map[string]string

	// stmts is the statement stream being built.
	stmts []js.Statement
}

// Generate lowers prog into a JavaScript program.  The statement stream is
// laid out in the order it must execute:
//
//  1. the prelude
//  2. the intern block of string literals
//  3. each type, supertypes first: its dispatch table, its functions, its
//     prototype methods and its static fields
//  4. the class literals, supertypes first
//  5. the fragment loader initialization and the entry method calls
func Generate(prog *ir.Program) *js.Program {
	g := &Generator{
		prog:        prog,
		internNames: make(map[string]string),
	}

	g.genPrelude()
	g.genInternBlock()

	ordered := supertypesFirst(prog.Types)
	for _, t := range ordered {
		if !prog.IsClassLiteralHolder(t) {
			g.genType(t)
		}
	}

	for _, t := range ordered {
		if lit := prog.ClassLiteralField(t); lit != nil {
			g.genClassLiteral(lit)
		}
	}

	g.genStartup()

	return js.NewProgram(g.stmts)
}

// -----------------------------------------------------------------------------

func (g *Generator) genPrelude() {
	g.stmts = append(g.stmts, &js.Vars{Vars: []*js.Var{
		{Name: "_"},
		{Name: "$wnd", Init: &js.NameRef{Name: "window"}},
	}})
}

func (g *Generator) genInternBlock() {
	strs := make(map[string]struct{})
	addAll := func(ss []string) {
		for _, s := range ss {
			strs[s] = struct{}{}
		}
	}

	for _, t := range g.prog.Types {
		for _, m := range t.Methods {
			addAll(m.Strings)
		}

		for _, f := range t.Fields {
			if f.Initializer != nil {
				addAll(f.Initializer.AllStrings())
			}
		}
	}

	if len(strs) == 0 {
		return
	}

	intern := &js.Vars{Intern: true}
	for i, s := range util.SortedKeys(strs) {
		name := "$intern_" + strconv.Itoa(i)
		g.internNames[s] = name

		intern.Vars = append(intern.Vars, &js.Var{
			Name:      name,
			Init:      &js.StringLit{Value: s},
			Literal:   s,
			IsLiteral: true,
		})
	}

	g.stmts = append(g.stmts, intern)
}

func (g *Generator) genType(t *ir.Type) {
	ctors := t.Constructors()

	needsTable := len(ctors) > 0
	for _, m := range t.Methods {
		if m.NeedsVtable() {
			needsTable = true
			break
		}
	}

	if needsTable {
		g.stmts = append(g.stmts, &js.DefineClass{Type: t, Ctors: ctors})
	}

	for _, m := range t.Methods {
		if m.NeedsVtable() {
			g.stmts = append(g.stmts, &js.PrototypeMethod{
				Type:   t,
				Method: m,
				Name:   js.MangleVirtual(m),
				Body:   g.genBody(m),
			})
		} else {
			g.stmts = append(g.stmts, &js.Function{
				Name:   js.MangleMethod(m),
				Method: m,
				Body:   g.genBody(m),
			})
		}
	}

	var statics []*js.Var
	for _, f := range t.Fields {
		if f.Static {
			statics = append(statics, &js.Var{
				Name:  js.MangleField(f),
				Init:  g.genInitializer(f.Initializer),
				Field: f,
			})
		}
	}

	if len(statics) > 0 {
		g.stmts = append(g.stmts, &js.Vars{Vars: statics})
	}
}

func (g *Generator) genClassLiteral(lit *ir.Field) {
	superLit := js.Expr(&js.NameRef{Name: "null"})
	if len(lit.Initializer.ClassLiterals) > 0 {
		superLit = &js.NameRef{Name: js.MangleField(lit.Initializer.ClassLiterals[0])}
	}

	args := []js.Expr{g.internRef(lit.Literalizes.Name), superLit}
	for _, m := range lit.Initializer.Methods {
		args = append(args, &js.NameRef{Name: js.MangleMethod(m)})
	}

	g.stmts = append(g.stmts, &js.Vars{Vars: []*js.Var{{
		Name:  js.MangleField(lit),
		Init:  &js.Call{Target: createForClassFn, Args: args},
		Field: lit,
	}}})
}

func (g *Generator) genStartup() {
	if len(g.prog.SplitPoints) > 0 {
		g.stmts = append(g.stmts, &js.ExprStmt{X: &js.Call{
			Target: loaderInitFn,
			Args:   []js.Expr{&js.NumericEntry{Key: common.RunAsyncFragmentCount}},
		}})
	}

	for _, m := range g.prog.EntryMethods {
		g.stmts = append(g.stmts, &js.ExprStmt{X: &js.Call{Target: js.MangleMethod(m)}})
	}
}

// -----------------------------------------------------------------------------

// genBody lowers the body summary of a method.
func (g *Generator) genBody(m *ir.Method) []js.Expr {
	var body []js.Expr

	for _, callee := range m.Calls {
		if callee.NeedsVtable() {
			body = append(body, &js.Call{Target: "this." + js.MangleVirtual(callee)})
		} else {
			body = append(body, &js.Call{Target: js.MangleMethod(callee)})
		}
	}

	for _, f := range m.Reads {
		body = append(body, &js.NameRef{Name: fieldRef(f)})
	}

	for _, f := range m.Writes {
		body = append(body, &js.Call{Target: "assign", Args: []js.Expr{&js.NameRef{Name: fieldRef(f)}}})
	}

	for _, s := range m.Strings {
		body = append(body, g.internRef(s))
	}

	for _, t := range m.ClassLiterals {
		if lit := g.prog.ClassLiteralField(t); lit != nil {
			body = append(body, &js.NameRef{Name: js.MangleField(lit)})
		}
	}

	for _, sp := range m.SplitPoints {
		body = append(body, &js.Call{
			Target: runAsyncFn,
			Args: []js.Expr{
				&js.NumericEntry{Key: common.RunAsyncFragmentIndex, Value: sp.ID},
				&js.NameRef{Name: callbackRef(sp.OnSuccess)},
			},
		})
	}

	return body
}

// genInitializer lowers the initializer of a static field.
func (g *Generator) genInitializer(init *ir.Initializer) js.Expr {
	if init == nil {
		return &js.NumberLit{Value: 0}
	}

	if init.IsStringValue {
		return g.internRef(init.StringValue)
	}

	var args []js.Expr
	for _, s := range init.Strings {
		args = append(args, g.internRef(s))
	}

	for _, lit := range init.ClassLiterals {
		args = append(args, &js.NameRef{Name: js.MangleField(lit)})
	}

	for _, m := range init.Methods {
		args = append(args, &js.Call{Target: js.MangleMethod(m)})
	}

	return &js.Call{Target: "init", Args: args}
}

func (g *Generator) internRef(s string) js.Expr {
	if name, ok := g.internNames[s]; ok {
		return &js.NameRef{Name: name}
	}

	return &js.StringLit{Value: s}
}

func fieldRef(f *ir.Field) string {
	if f.Static {
		return js.MangleField(f)
	}

	return "this." + f.Name
}

func callbackRef(m *ir.Method) string {
	if m.NeedsVtable() {
		return js.MangleVirtual(m)
	}

	return js.MangleMethod(m)
}

// supertypesFirst orders types so that every type comes after its superclass.
// Otherwise, declaration order is preserved.
func supertypesFirst(types []*ir.Type) []*ir.Type {
	ordered := make([]*ir.Type, 0, len(types))
	placed := make(map[*ir.Type]bool, len(types))

	var place func(t *ir.Type)
	place = func(t *ir.Type) {
		if t == nil || placed[t] {
			return
		}

		placed[t] = true
		place(t.Super)
		ordered = append(ordered, t)
	}

	for _, t := range types {
		place(t)
	}

	return ordered
}
