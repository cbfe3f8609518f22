package extract

import (
	"fragsplit/ir"
	"fragsplit/js"
	"fragsplit/liveness"
)

// IsLive returns whether stmt is live under pred.  Statements which do not
// declare a method are live iff miscellaneous statements are.  DefineClass and
// var statements are never judged as a whole: see MinimalDefineClass and
// RemoveSomeVars.
func IsLive(stmt js.Statement, pred liveness.Predicate) bool {
	switch v := stmt.(type) {
	case *js.Function:
		if v.Method != nil {
			return pred.IsMethodLive(v.Method)
		}
	case *js.PrototypeMethod:
		return pred.IsMethodLive(v.Method)
	}

	return pred.MiscellaneousStatementsAreLive()
}

// VtableTypeNeeded returns the type whose dispatch table must be current for
// stmt to run or nil if stmt has no such requirement.
func VtableTypeNeeded(stmt js.Statement) *ir.Type {
	if pm, ok := stmt.(*js.PrototypeMethod); ok {
		return pm.Type
	}

	return nil
}

// isNewlyLive returns whether the atom tested by isLive is live now but was
// not already loaded.
func isNewlyLive(isLive func(liveness.Predicate) bool, liveNow, alreadyLoaded liveness.Predicate) bool {
	return isLive(liveNow) && !isLive(alreadyLoaded)
}

// MinimalDefineClass returns dc with every constructor that is not newly live
// removed along with the number of constructors kept.  The given statement
// is returned if no constructor was removed.
func MinimalDefineClass(dc *js.DefineClass, liveNow, alreadyLoaded liveness.Predicate) (*js.DefineClass, int) {
	var ctors []*ir.Method
	for _, ctor := range dc.Ctors {
		if isNewlyLive(func(p liveness.Predicate) bool { return p.IsMethodLive(ctor) }, liveNow, alreadyLoaded) {
			ctors = append(ctors, ctor)
		}
	}

	if len(ctors) == len(dc.Ctors) {
		return dc, len(ctors)
	}

	return &js.DefineClass{Type: dc.Type, Ctors: ctors}, len(ctors)
}

// RemoveSomeVars returns the variables of vs which should be loaded: field
// variables whose field is newly live and interned strings which are newly
// live.  Variables the splitter does not recognize are dropped from the intern
// block and otherwise kept iff miscellaneous statements are newly live.  It
// returns nil if no variable is kept and vs itself if all are.
func RemoveSomeVars(vs *js.Vars, liveNow, alreadyLoaded liveness.Predicate) *js.Vars {
	var kept []*js.Var

	for _, v := range vs.Vars {
		var keep bool
		switch {
		case v.Field != nil:
			keep = isNewlyLive(func(p liveness.Predicate) bool { return p.IsFieldLive(v.Field) }, liveNow, alreadyLoaded)
		case v.IsLiteral:
			keep = isNewlyLive(func(p liveness.Predicate) bool { return p.IsStringLive(v.Literal) }, liveNow, alreadyLoaded)
		case vs.Intern:
			keep = false
		default:
			keep = isNewlyLive(liveness.Predicate.MiscellaneousStatementsAreLive, liveNow, alreadyLoaded)
		}

		if keep {
			kept = append(kept, v)
		}
	}

	switch len(kept) {
	case 0:
		return nil
	case len(vs.Vars):
		return vs
	default:
		return &js.Vars{Vars: kept, Intern: vs.Intern}
	}
}
