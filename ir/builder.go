package ir

import (
	"errors"
	"fmt"

	"fragsplit/common"
)

// Builder assembles a Program.  Declarations are made through the builder;
// the body summaries of methods are filled in directly on the returned
// methods.  Build validates the program and computes its indices.
type Builder struct {
	types       []*Type
	typesByName map[string]*Type

	entryMethods  []*Method
	immortalTypes []*Type
	splitPoints   []*SplitPoint
	onLoad        *Method

	errs []error
}

// NewBuilder creates a new program builder.
func NewBuilder() *Builder {
	return &Builder{typesByName: make(map[string]*Type)}
}

// Type declares a new type.  The superclass may be nil.
func (b *Builder) Type(name string, super *Type) *Type {
	t := &Type{Name: name, Super: super}

	if _, ok := b.typesByName[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("type `%s` declared multiple times", name))
	} else if name == common.ClassLiteralHolderName {
		b.errs = append(b.errs, fmt.Errorf("type name `%s` is reserved", name))
	} else {
		b.typesByName[name] = t
	}

	b.types = append(b.types, t)
	return t
}

// Method declares a new method of t.
func (b *Builder) Method(t *Type, name string, kind MethodKind, params ...string) *Method {
	m := &Method{Name: name, Enclosing: t, Kind: kind, Params: params}

	for _, other := range t.Methods {
		if other.Signature() == m.Signature() {
			b.errs = append(b.errs, fmt.Errorf("method `%s` declared multiple times", m.QualifiedName()))
		}
	}

	t.Methods = append(t.Methods, m)
	return m
}

// Clinit declares the static initializer of t.
func (b *Builder) Clinit(t *Type) *Method {
	m := b.Method(t, "$clinit", Static)
	t.Clinit = m
	return m
}

// Field declares a new field of t.
func (b *Builder) Field(t *Type, name string, static bool) *Field {
	if t.FieldNamed(name) != nil {
		b.errs = append(b.errs, fmt.Errorf("field `%s.%s` declared multiple times", t.Name, name))
	}

	f := &Field{Name: name, Enclosing: t, Static: static}
	t.Fields = append(t.Fields, f)
	return f
}

// SplitPoint declares a new split point whose deferred-load call is made by
// loadCall.  The tag is the explicit name of the split point: it may be empty
// in which case the split point is named after loadCall.
func (b *Builder) SplitPoint(loadCall, onSuccess *Method, tag string) *SplitPoint {
	sp := &SplitPoint{
		ID:             len(b.splitPoints) + 1,
		LoadCall:       loadCall,
		OnSuccess:      onSuccess,
		HasExplicitTag: tag != "",
	}

	if tag != "" {
		sp.Name = tag
	} else if loadCall != nil {
		sp.Name = loadCall.QualifiedName()
	}

	if loadCall != nil {
		loadCall.SplitPoints = append(loadCall.SplitPoints, sp)
	}

	b.splitPoints = append(b.splitPoints, sp)
	return sp
}

// Entry marks m as an entry method.
func (b *Builder) Entry(m *Method) {
	b.entryMethods = append(b.entryMethods, m)
}

// Immortal marks t as an immortal code-gen type.
func (b *Builder) Immortal(t *Type) {
	b.immortalTypes = append(b.immortalTypes, t)
}

// FragmentOnLoad sets the method called by each fragment once it has loaded.
func (b *Builder) FragmentOnLoad(m *Method) {
	b.onLoad = m
}

// -----------------------------------------------------------------------------

// Build validates the declared program and returns it.  All validation errors
// are joined into the returned error.
func (b *Builder) Build() (*Program, error) {
	acyclic := true
	for _, t := range b.types {
		acyclic = b.checkSuperChain(t) && acyclic
	}

	if !acyclic {
		return nil, errors.Join(b.errs...)
	}

	for _, t := range b.types {
		for _, m := range t.Methods {
			for _, o := range m.Overrides {
				if o.Kind != Instance || m.Kind != Instance {
					b.errs = append(b.errs, fmt.Errorf("`%s` cannot override `%s`: only instance methods can be overridden", m.QualifiedName(), o.QualifiedName()))
				} else if o.Enclosing == t || !t.IsSubtypeOf(o.Enclosing) {
					b.errs = append(b.errs, fmt.Errorf("`%s` cannot override `%s`: not a supertype method", m.QualifiedName(), o.QualifiedName()))
				}
			}
		}
	}

	for _, sp := range b.splitPoints {
		if sp.OnSuccess == nil {
			b.errs = append(b.errs, fmt.Errorf("split point %s has no callback", sp))
		}
	}

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	prog := &Program{
		Types:              b.types,
		EntryMethods:       b.entryMethods,
		ImmortalTypes:      b.immortalTypes,
		SplitPoints:        b.splitPoints,
		FragmentOnLoad:     b.onLoad,
		typesByName:        b.typesByName,
		overriders:         make(map[*Method][]*Method),
		classLiteralFields: make(map[*Type]*Field),
		splitPointsByName:  make(map[string][]*SplitPoint),
	}

	for _, t := range b.types {
		for _, m := range t.Methods {
			for _, o := range m.Overrides {
				prog.overriders[o] = append(prog.overriders[o], m)
			}
		}
	}

	for _, sp := range b.splitPoints {
		if sp.Name != "" {
			prog.splitPointsByName[sp.Name] = append(prog.splitPointsByName[sp.Name], sp)
		}
	}

	b.buildClassLiterals(prog)

	return prog, nil
}

// checkSuperChain checks that the superclass chain of t is acyclic.
func (b *Builder) checkSuperChain(t *Type) bool {
	seen := make(map[*Type]struct{})
	for st := t; st != nil; st = st.Super {
		if _, ok := seen[st]; ok {
			b.errs = append(b.errs, fmt.Errorf("type `%s` inherits from itself", t.Name))
			return false
		}

		seen[st] = struct{}{}
	}

	return true
}

// buildClassLiterals creates the class literal holder and one class literal
// field per declared type.  The class literal of a type references the type's
// name, the class literal of its superclass, and the `values` and `valueOf`
// methods of enums.
func (b *Builder) buildClassLiterals(prog *Program) {
	holder := &Type{Name: common.ClassLiteralHolderName}

	for _, t := range b.types {
		f := &Field{
			Name:        t.Name + "_classLit",
			Enclosing:   holder,
			Static:      true,
			Literalizes: t,
		}

		holder.Fields = append(holder.Fields, f)
		prog.classLiteralFields[t] = f
	}

	for _, f := range holder.Fields {
		t := f.Literalizes
		init := &Initializer{Strings: []string{t.Name}}

		if t.Super != nil {
			init.ClassLiterals = append(init.ClassLiterals, prog.classLiteralFields[t.Super])
		}

		if t.Enum {
			for _, m := range t.Methods {
				if m.Kind == Static && (m.Name == "values" || m.Name == "valueOf") {
					init.Methods = append(init.Methods, m)
				}
			}
		}

		f.Initializer = init
	}

	prog.Types = append(prog.Types, holder)
	prog.typesByName[holder.Name] = holder
	prog.ClassLiteralHolder = holder
}

// -----------------------------------------------------------------------------

// FindMethods returns the methods of the named type with the given name.
func (p *Program) FindMethods(typeName, methodName string) []*Method {
	t, ok := p.typesByName[typeName]
	if !ok {
		return nil
	}

	var methods []*Method
	for _, m := range t.Methods {
		if m.Name == methodName {
			methods = append(methods, m)
		}
	}

	return methods
}
