package ir

import (
	"fmt"
	"strings"
)

// Type is a declared class type.
type Type struct {
	Name string

	// The superclass.  It is nil for root types.
	Super *Type

	Methods []*Method
	Fields  []*Field

	// The static initializer.  It runs the first time any static member of
	// the type is referenced.  It may be nil.
	Clinit *Method

	// Enum class literals reference the static `values` and `valueOf`
	// methods of the enum.
	Enum bool
}

// MethodNamed returns the first method of t with the given name.
func (t *Type) MethodNamed(name string) *Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}

	return nil
}

// FieldNamed returns the field of t with the given name.
func (t *Type) FieldNamed(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// Constructors returns the constructors of t in declaration order.
func (t *Type) Constructors() []*Method {
	var ctors []*Method
	for _, m := range t.Methods {
		if m.Kind == Constructor {
			ctors = append(ctors, m)
		}
	}

	return ctors
}

// IsSubtypeOf returns whether t is other or inherits from it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	for ; t != nil; t = t.Super {
		if t == other {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// MethodKind enumerates the different kinds of methods.
type MethodKind int

const (
	Static MethodKind = iota
	Instance
	Constructor
)

// Method is a method together with a summary of the references made by its
// body.  The body summary is all the reachability analysis sees of the method.
type Method struct {
	Name      string
	Enclosing *Type
	Kind      MethodKind

	// Private instance methods are dispatched statically: they are emitted as
	// plain functions rather than installed on the dispatch table.
	Private bool

	Params []string

	// The methods that `m` directly overrides.
	Overrides []*Method

	// Methods called by the body.  Calling a constructor instantiates its
	// enclosing type.
	Calls []*Method

	// Types instantiated by the body without an explicit constructor call.
	Instantiates []*Type

	Reads  []*Field
	Writes []*Field

	// String literals used by the body.
	Strings []string

	// Types whose class literal is referenced by the body.
	ClassLiterals []*Type

	// The split points whose deferred-load call appears in the body.
	SplitPoints []*SplitPoint
}

// NeedsVtable returns whether the method is installed on the dispatch table of
// its enclosing type.
func (m *Method) NeedsVtable() bool {
	return m.Kind == Instance && !m.Private
}

// IsStatic returns whether the method can be called without an instance.
// Constructors count as static: calling one creates the instance.
func (m *Method) IsStatic() bool {
	return m.Kind != Instance
}

// Signature returns the name of the method followed by its parameter types:
// eg. `valueOf(String)`.
func (m *Method) Signature() string {
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(m.Params, ","))
}

// QualifiedName returns the name of the method qualified by its enclosing type
// and followed by its parameter types: eg. `Color::valueOf(String)`.
func (m *Method) QualifiedName() string {
	return m.Enclosing.Name + "::" + m.Signature()
}

func (m *Method) String() string {
	return m.Enclosing.Name + "." + m.Name
}

// -----------------------------------------------------------------------------

// Field is a field of a declared type.
type Field struct {
	Name      string
	Enclosing *Type
	Static    bool

	// The initializer of a static field.  It may be nil.
	Initializer *Initializer

	// The type whose class literal is stored in this field.  It is only set for
	// the fields of the class literal holder.
	Literalizes *Type
}

func (f *Field) String() string {
	return f.Enclosing.Name + "." + f.Name
}

// Initializer summarizes the expression a static field is initialized to.
type Initializer struct {
	// String literals used by the initializer.
	Strings []string

	// Class literal fields used by the initializer.
	ClassLiterals []*Field

	// Methods referenced by the initializer.
	Methods []*Method

	// Set when the initializer is exactly a string literal.
	StringValue   string
	IsStringValue bool
}

// AllStrings returns the string literals used by the initializer including its
// string value.
func (init *Initializer) AllStrings() []string {
	if init.IsStringValue {
		return append([]string{init.StringValue}, init.Strings...)
	}

	return init.Strings
}

// -----------------------------------------------------------------------------

// SplitPoint is a location in the program where execution may request that a
// deferred fragment be downloaded.  Split points are immutable once the
// program is built.
type SplitPoint struct {
	// The ID of the split point.  IDs are dense and start at 1.
	ID int

	// The name of the split point.  It is either given explicitly, in which
	// case split points sharing it load in the same fragment, or derived from
	// the method enclosing the deferred-load call.
	Name string

	HasExplicitTag bool

	// The method whose body makes the deferred-load call.
	LoadCall *Method

	// The callback invoked once the fragment has loaded.
	OnSuccess *Method
}

func (sp *SplitPoint) String() string {
	if sp.Name != "" {
		return fmt.Sprintf("#%d (%s)", sp.ID, sp.Name)
	}

	return fmt.Sprintf("#%d", sp.ID)
}
