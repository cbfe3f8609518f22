package js

import (
	"strconv"
	"strings"
)

// Expr is a JavaScript expression.  Only the handful of shapes the splitter
// needs to see through are modelled.
type Expr interface {
	String() string
}

// NameRef is a reference to a global name.
type NameRef struct {
	Name string
}

func (nr *NameRef) String() string {
	return nr.Name
}

// StringLit is a string literal.
type StringLit struct {
	Value string
}

func (sl *StringLit) String() string {
	return strconv.Quote(sl.Value)
}

// NumberLit is an integer literal.
type NumberLit struct {
	Value int
}

func (nl *NumberLit) String() string {
	return strconv.Itoa(nl.Value)
}

// Call is a call of a named function.
type Call struct {
	Target string
	Args   []Expr
}

func (c *Call) String() string {
	sb := strings.Builder{}
	sb.WriteString(c.Target)
	sb.WriteRune('(')

	for i, arg := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString(arg.String())
	}

	sb.WriteRune(')')
	return sb.String()
}

// NumericEntry is an integer placeholder whose value is only known once the
// program has been split.  The key names the quantity it stands for.
type NumericEntry struct {
	Key   string
	Value int

	patched bool
}

func (ne *NumericEntry) String() string {
	return strconv.Itoa(ne.Value)
}

// Patch sets the final value of the entry.  It returns false if the entry was
// already patched.
func (ne *NumericEntry) Patch(value int) bool {
	if ne.patched {
		return false
	}

	ne.Value = value
	ne.patched = true
	return true
}

// Patched returns whether the entry holds its final value.
func (ne *NumericEntry) Patched() bool {
	return ne.patched
}

// -----------------------------------------------------------------------------

// Walk calls visit for every expression contained in stmt, outermost first.
func Walk(stmt Statement, visit func(Expr)) {
	switch v := stmt.(type) {
	case *Function:
		walkExprs(v.Body, visit)
	case *PrototypeMethod:
		walkExprs(v.Body, visit)
	case *Vars:
		for _, vr := range v.Vars {
			if vr.Init != nil {
				walkExpr(vr.Init, visit)
			}
		}
	case *ExprStmt:
		walkExpr(v.X, visit)
	}
}

func walkExprs(exprs []Expr, visit func(Expr)) {
	for _, expr := range exprs {
		walkExpr(expr, visit)
	}
}

func walkExpr(expr Expr, visit func(Expr)) {
	visit(expr)

	if call, ok := expr.(*Call); ok {
		walkExprs(call.Args, visit)
	}
}

// NumericEntries returns the numeric entries contained in stmts.
func NumericEntries(stmts []Statement) []*NumericEntry {
	var entries []*NumericEntry

	for _, stmt := range stmts {
		Walk(stmt, func(e Expr) {
			if ne, ok := e.(*NumericEntry); ok {
				entries = append(entries, ne)
			}
		})
	}

	return entries
}
