package progfile

import (
	"strings"

	"fragsplit/ir"
	"fragsplit/report"
)

// loader resolves the references of a decoded program description and
// declares the program through an ir.Builder.  Declaration happens in two
// passes: first every type and member, then every reference.  This allows
// references to declarations that appear later in the file.
type loader struct {
	path string
	b    *ir.Builder

	types map[string]*ir.Type

	// The class literals used by field initializers.  Class literal fields
	// only exist once the program has been built.
	pendingLiterals []pendingLiteral

	errs []*report.ConfigError
}

type pendingLiteral struct {
	init *ir.Initializer
	t    *ir.Type
}

// methodDecl pairs a declared method with its description.
type methodDecl struct {
	m         *ir.Method
	body      *yamlBody
	overrides []ref
}

func newLoader(path string) *loader {
	return &loader{
		path:  path,
		b:     ir.NewBuilder(),
		types: make(map[string]*ir.Type),
	}
}

func (l *loader) errorf(r ref, msg string, args ...interface{}) {
	l.errs = append(l.errs, report.RaiseConfig(l.path, r.Line, r.Col, msg, args...))
}

func (l *loader) load(yp *yamlProgram) (*ir.Program, []*report.ConfigError) {
	declared := make([]*ir.Type, len(yp.Types))
	var methods []methodDecl

	for i, yt := range yp.Types {
		if yt.Name.Value == "" {
			l.errorf(yt.Name, "type %d has no name", i+1)
		}

		t := l.b.Type(yt.Name.Value, nil)
		t.Enum = yt.Enum
		declared[i] = t

		if _, ok := l.types[t.Name]; !ok {
			l.types[t.Name] = t
		}

		for _, yf := range yt.Fields {
			if yf.Name.Value == "" {
				l.errorf(yf.Name, "field of `%s` has no name", t.Name)
			}

			l.b.Field(t, yf.Name.Value, yf.Static)
		}

		if yt.Clinit != nil {
			methods = append(methods, methodDecl{m: l.b.Clinit(t), body: yt.Clinit})
		}

		for _, ym := range yt.Methods {
			if ym.Name.Value == "" {
				l.errorf(ym.Name, "method of `%s` has no name", t.Name)
			}

			kind, ok := methodKind(ym.Kind.Value)
			if !ok {
				l.errorf(ym.Kind, "unknown method kind `%s`: expected `static`, `instance` or `constructor`", ym.Kind.Value)
			}

			m := l.b.Method(t, ym.Name.Value, kind, ym.Params...)
			m.Private = ym.Private

			methods = append(methods, methodDecl{m: m, body: &ym.Body, overrides: ym.Overrides})
		}
	}

	for i, yt := range yp.Types {
		t := declared[i]

		if yt.Super != nil {
			t.Super = l.lookupType(*yt.Super)
		}

		for j, yf := range yt.Fields {
			if yf.Init != nil {
				l.resolveInitializer(t.Fields[j], yf.Init, yf.Name)
			}
		}
	}

	for _, md := range methods {
		for _, o := range md.overrides {
			if om := l.lookupMethod(o); om != nil {
				md.m.Overrides = append(md.m.Overrides, om)
			}
		}

		l.resolveBody(md.m, md.body)
	}

	for _, r := range yp.Entry {
		if m := l.lookupMethod(r); m != nil {
			l.b.Entry(m)
		}
	}

	for _, r := range yp.Immortal {
		if t := l.lookupType(r); t != nil {
			l.b.Immortal(t)
		}
	}

	if yp.OnLoad != nil {
		if m := l.lookupMethod(*yp.OnLoad); m != nil {
			l.b.FragmentOnLoad(m)
		}
	}

	if len(l.errs) > 0 {
		return nil, l.errs
	}

	prog, err := l.b.Build()
	if err != nil {
		// Build joins its errors.
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				l.errs = append(l.errs, report.RaiseConfig(l.path, 0, 0, "%s", e))
			}
		} else {
			l.errs = append(l.errs, report.RaiseConfig(l.path, 0, 0, "%s", err))
		}

		return nil, l.errs
	}

	for _, pl := range l.pendingLiterals {
		pl.init.ClassLiterals = append(pl.init.ClassLiterals, prog.ClassLiteralField(pl.t))
	}

	return prog, nil
}

func methodKind(name string) (ir.MethodKind, bool) {
	switch name {
	case "", "static":
		return ir.Static, true
	case "instance":
		return ir.Instance, true
	case "constructor":
		return ir.Constructor, true
	}

	return ir.Static, false
}

func (l *loader) resolveBody(m *ir.Method, body *yamlBody) {
	for _, r := range body.Calls {
		if callee := l.lookupMethod(r); callee != nil {
			m.Calls = append(m.Calls, callee)
		}
	}

	for _, r := range body.Instantiates {
		if t := l.lookupType(r); t != nil {
			m.Instantiates = append(m.Instantiates, t)
		}
	}

	for _, r := range body.Reads {
		if f := l.lookupField(r); f != nil {
			m.Reads = append(m.Reads, f)
		}
	}

	for _, r := range body.Writes {
		if f := l.lookupField(r); f != nil {
			m.Writes = append(m.Writes, f)
		}
	}

	m.Strings = append(m.Strings, body.Strings...)

	for _, r := range body.ClassLiterals {
		if t := l.lookupType(r); t != nil {
			m.ClassLiterals = append(m.ClassLiterals, t)
		}
	}

	// Split points are numbered in the order they appear in the file.
	for _, ysp := range body.SplitPoints {
		if cb := l.lookupMethod(ysp.OnSuccess); cb != nil {
			l.b.SplitPoint(m, cb, ysp.Tag)
		}
	}
}

func (l *loader) resolveInitializer(f *ir.Field, yi *yamlInitializer, at ref) {
	if !f.Static {
		l.errorf(at, "only static fields can have an initializer: `%s`", f)
		return
	}

	init := &ir.Initializer{Strings: yi.Strings}
	if yi.String != nil {
		init.StringValue = *yi.String
		init.IsStringValue = true
	}

	for _, r := range yi.ClassLiterals {
		if t := l.lookupType(r); t != nil {
			l.pendingLiterals = append(l.pendingLiterals, pendingLiteral{init: init, t: t})
		}
	}

	for _, r := range yi.Methods {
		if m := l.lookupMethod(r); m != nil {
			init.Methods = append(init.Methods, m)
		}
	}

	f.Initializer = init
}

// -----------------------------------------------------------------------------

func (l *loader) lookupType(r ref) *ir.Type {
	if t, ok := l.types[r.Value]; ok {
		return t
	}

	l.errorf(r, "cannot resolve type `%s`", r.Value)
	return nil
}

// splitMemberRef splits a member reference into its type and member parts.
func (l *loader) splitMemberRef(r ref, kind string) (*ir.Type, string, bool) {
	typeName, member, ok := strings.Cut(r.Value, ".")
	if !ok || typeName == "" || member == "" {
		l.errorf(r, "badly formatted %s reference `%s`: expected `Type.%s`", kind, r.Value, kind)
		return nil, "", false
	}

	t := l.lookupType(ref{Value: typeName, Line: r.Line, Col: r.Col})
	return t, member, t != nil
}

// lookupMethod resolves `Type.method` or `Type.method(params)`.  The parameter
// list can be omitted when the method name is not overloaded.
func (l *loader) lookupMethod(r ref) *ir.Method {
	t, sig, ok := l.splitMemberRef(r, "method")
	if !ok {
		return nil
	}

	name, params, hasParams := strings.Cut(sig, "(")
	if hasParams {
		if !strings.HasSuffix(params, ")") {
			l.errorf(r, "badly formatted method reference `%s`: missing `)`", r.Value)
			return nil
		}

		params = strings.ReplaceAll(strings.TrimSuffix(params, ")"), " ", "")
		for _, m := range t.Methods {
			if m.Name == name && strings.Join(m.Params, ",") == params {
				return m
			}
		}

		l.errorf(r, "cannot resolve method `%s` of `%s`", sig, t.Name)
		return nil
	}

	var found *ir.Method
	for _, m := range t.Methods {
		if m.Name == name {
			if found != nil {
				l.errorf(r, "method reference `%s` is ambiguous: `%s` is overloaded", r.Value, name)
				return nil
			}

			found = m
		}
	}

	if found == nil {
		l.errorf(r, "cannot resolve method `%s` of `%s`", name, t.Name)
	}

	return found
}

func (l *loader) lookupField(r ref) *ir.Field {
	t, name, ok := l.splitMemberRef(r, "field")
	if !ok {
		return nil
	}

	if f := t.FieldNamed(name); f != nil {
		return f
	}

	l.errorf(r, "cannot resolve field `%s` of `%s`", name, t.Name)
	return nil
}
