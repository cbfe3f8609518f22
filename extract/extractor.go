package extract

import (
	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/liveness"
	"fragsplit/report"
)

// onLoadFn is the function each fragment calls once it has been loaded.
const onLoadFn = "AsyncFragmentLoader.onLoad"

// StatementLogger receives the decision made for every statement of the
// global stream.  It is purely diagnostic.
type StatementLogger interface {
	LogStatement(stmt js.Statement, kept bool)
}

// nullLogger discards every decision.
type nullLogger struct{}

func (nullLogger) LogStatement(js.Statement, bool) {}

// Extractor extracts the statements of fragments out of the global statement
// stream of a program.
type Extractor struct {
	jsprog *js.Program
	logger StatementLogger
}

// New creates a new extractor for jsprog.
func New(jsprog *js.Program) *Extractor {
	return &Extractor{jsprog: jsprog, logger: nullLogger{}}
}

// SetStatementLogger sets the logger receiving every extraction decision.
func (e *Extractor) SetStatementLogger(logger StatementLogger) {
	if logger == nil {
		logger = nullLogger{}
	}

	e.logger = logger
}

// Extract returns the statements needed to go from the point described by
// alreadyLoaded to the point described by liveNow: the statements that are
// live under liveNow but not under alreadyLoaded, in the order they appear in
// the global stream.
//
// Dispatch tables are handled specially: the DefineClass statement of a type
// which is already loaded is withheld, and only emitted again, stripped of its
// constructors, if a later kept statement needs its dispatch table to be the
// current one.
func (e *Extractor) Extract(liveNow, alreadyLoaded liveness.Predicate) []js.Statement {
	var extracted []js.Statement

	// The type whose dispatch table is current in the extracted code.
	var currentVtableType *ir.Type

	// A withheld DefineClass which may be needed by upcoming statements.
	var pendingDefineClass *js.DefineClass

	for _, stmt := range e.jsprog.Global {
		var kept js.Statement

		switch v := stmt.(type) {
		case *js.DefineClass:
			minimal, liveCtors := MinimalDefineClass(v, liveNow, alreadyLoaded)
			typeNewlyLive := liveNow.IsTypeLive(v.Type) && !alreadyLoaded.IsTypeLive(v.Type)

			if typeNewlyLive || liveCtors > 0 {
				kept = minimal
				pendingDefineClass = nil
			} else {
				pendingDefineClass = minimal
			}
		case *js.Vars:
			if vs := RemoveSomeVars(v, liveNow, alreadyLoaded); vs != nil {
				kept = vs
			}
		default:
			if IsLive(stmt, liveNow) && !IsLive(stmt, alreadyLoaded) {
				kept = stmt
			}
		}

		e.logger.LogStatement(stmt, kept != nil)

		if kept == nil {
			continue
		}

		if vtableType := VtableTypeNeeded(kept); vtableType != nil && vtableType != currentVtableType {
			if pendingDefineClass == nil || pendingDefineClass.Type != vtableType {
				report.ICE("no dispatch table available for `%s` when extracting `%s`", vtableType.Name, kept)
			}

			extracted = append(extracted, pendingDefineClass)
			currentVtableType = vtableType
			pendingDefineClass = nil
		}

		if dc, ok := kept.(*js.DefineClass); ok {
			currentVtableType = dc.Type
		}

		extracted = append(extracted, kept)
	}

	return extracted
}

// FindAllMethodsInJavaScript returns every method which has a declaration in
// the global statement stream.
func (e *Extractor) FindAllMethodsInJavaScript() map[*ir.Method]struct{} {
	methods := make(map[*ir.Method]struct{})

	for _, stmt := range e.jsprog.Global {
		switch v := stmt.(type) {
		case *js.Function:
			if v.Method != nil {
				methods[v.Method] = struct{}{}
			}
		case *js.PrototypeMethod:
			methods[v.Method] = struct{}{}
		}
	}

	return methods
}

// CreateOnLoadedCall returns the statements notifying the fragment loader that
// the fragment with the given ID has been loaded.
func CreateOnLoadedCall(fragmentID int) []js.Statement {
	return []js.Statement{
		&js.ExprStmt{X: &js.Call{
			Target: onLoadFn,
			Args:   []js.Expr{&js.NumberLit{Value: fragmentID}},
		}},
	}
}
