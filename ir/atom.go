package ir

import "strconv"

// AtomKind enumerates the kinds of atoms.
type AtomKind int

const (
	AtomType AtomKind = iota
	AtomMethod
	AtomField
	AtomString
)

// Atom is the unit of liveness: a type, a method, a field or a string literal.
// Atoms are comparable and can be used as map keys.
type Atom struct {
	Kind AtomKind

	Type   *Type
	Method *Method
	Field  *Field
	String string
}

func TypeAtom(t *Type) Atom { return Atom{Kind: AtomType, Type: t} }
func MethodAtom(m *Method) Atom { return Atom{Kind: AtomMethod, Method: m} }
func FieldAtom(f *Field) Atom { return Atom{Kind: AtomField, Field: f} }
func StringAtom(s string) Atom { return Atom{Kind: AtomString, String: s} }

// Describe returns a human readable description of the atom.
func (a Atom) Describe() string {
	switch a.Kind {
	case AtomType:
		return "type " + a.Type.Name
	case AtomMethod:
		return "method " + a.Method.QualifiedName()
	case AtomField:
		return "field " + a.Field.String()
	default:
		return "string " + strconv.Quote(a.String)
	}
}
