package js

import (
	"strconv"
	"strings"

	"fragsplit/ir"
)

// Statement is a top-level JavaScript statement of the generated program.
type Statement interface {
	String() string

	isStatement()
}

// Function declares the function implementing a method.  Static methods,
// constructors and private instance methods are emitted as functions.  The
// method is nil for functions not derived from the program.
type Function struct {
	Name   string
	Method *ir.Method
	Body   []Expr
}

// PrototypeMethod installs an instance method on the dispatch table of its
// type.  It requires that dispatch table to be the current one.
type PrototypeMethod struct {
	Type   *ir.Type
	Method *ir.Method
	Name   string
	Body   []Expr
}

// DefineClass registers the dispatch table of a type, links the type's
// constructors to it, and makes it the current dispatch table.
type DefineClass struct {
	Type  *ir.Type
	Ctors []*ir.Method
}

// Var is a single variable of a var statement.  A variable may implement a
// static field or hold an interned string literal; otherwise it is a variable
// the splitter does not recognize.
type Var struct {
	Name string
	Init Expr

	Field *ir.Field

	Literal   string
	IsLiteral bool
}

// Vars is a var statement declaring one or more variables.  Intern marks the
// block of interned string literals.
type Vars struct {
	Vars   []*Var
	Intern bool
}

// ExprStmt is any other statement.
type ExprStmt struct {
	X Expr
}

func (*Function) isStatement() {}
func (*PrototypeMethod) isStatement() {}
func (*DefineClass) isStatement() {}
func (*Vars) isStatement() {}
func (*ExprStmt) isStatement() {}

// -----------------------------------------------------------------------------

func (f *Function) String() string {
	return "function " + f.Name + "(){" + bodyString(f.Body) + "}"
}

func (pm *PrototypeMethod) String() string {
	return "_." + pm.Name + " = function " + pm.Name + "(){" + bodyString(pm.Body) + "};"
}

func (dc *DefineClass) String() string {
	sb := strings.Builder{}
	sb.WriteString("defineClass(")
	sb.WriteString(QuoteName(dc.Type.Name))

	if dc.Type.Super != nil {
		sb.WriteString(", ")
		sb.WriteString(QuoteName(dc.Type.Super.Name))
	} else {
		sb.WriteString(", null")
	}

	for _, ctor := range dc.Ctors {
		sb.WriteString(", ")
		sb.WriteString(MangleMethod(ctor))
	}

	sb.WriteString(");")
	return sb.String()
}

func (vs *Vars) String() string {
	sb := strings.Builder{}
	sb.WriteString("var ")

	for i, v := range vs.Vars {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(v.Name)
		if v.Init != nil {
			sb.WriteString(" = ")
			sb.WriteString(v.Init.String())
		}
	}

	sb.WriteRune(';')
	return sb.String()
}

func (es *ExprStmt) String() string {
	return es.X.String() + ";"
}

func bodyString(body []Expr) string {
	sb := strings.Builder{}
	for _, expr := range body {
		sb.WriteString(expr.String())
		sb.WriteRune(';')
	}

	return sb.String()
}

// -----------------------------------------------------------------------------

// MangleMethod returns the global JavaScript name of a method.
func MangleMethod(m *ir.Method) string {
	name := mangleIdent(m.Enclosing.Name) + "_" + mangleIdent(m.Name)
	for _, param := range m.Params {
		name += "__" + mangleIdent(param)
	}

	return name
}

// MangleVirtual returns the name under which an instance method is installed
// on dispatch tables.  Overriding methods share the name of the methods they
// override.
func MangleVirtual(m *ir.Method) string {
	for len(m.Overrides) > 0 {
		m = m.Overrides[0]
	}

	return mangleIdent(m.Name) + "_" + strconv.Itoa(len(m.Params))
}

// MangleField returns the global JavaScript name of a static field.
func MangleField(f *ir.Field) string {
	return mangleIdent(f.Enclosing.Name) + "_" + mangleIdent(f.Name)
}

// QuoteName returns a type name as a JavaScript string literal.
func QuoteName(name string) string {
	return (&StringLit{Value: name}).String()
}

func mangleIdent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
			return r
		default:
			return '_'
		}
	}, s)
}
