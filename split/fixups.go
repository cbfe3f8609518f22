package split

import (
	"github.com/rs/zerolog"

	"fragsplit/ir"
)

// FixUpLoadOrderDependencies demotes atoms to the leftover fragment until the
// exclusivity map respects the load order dependencies of the generated code:
//
//   - a type exclusive to a fragment is installed with its instance methods,
//     so they must be exclusive to the same fragment
//   - a type's dispatch table is built from its superclass's, so the
//     superclass must be loaded before or with the type
//   - a class literal is built from its type, the class literal of its
//     superclass, and the static methods and strings its initializer uses
//   - a static field initialized to a string literal needs the string
//
// Every pass only moves atoms to the leftover fragment, so the passes are run
// until none of them demotes anything.  methodsInJS is the set of methods
// declared in the generated code.
func (em *ExclusivityMap) FixUpLoadOrderDependencies(prog *ir.Program, methodsInJS map[*ir.Method]struct{}, log zerolog.Logger) {
	for round := 1; ; round++ {
		numMethods := em.fixUpInstanceMethods(prog, methodsInJS)
		numTypes := em.fixUpSupertypes(prog)
		numLiterals := em.fixUpClassLiterals(prog, methodsInJS)
		numStrings := em.fixUpStringFields(prog)

		log.Debug().
			Int("round", round).
			Int("types_for_methods", numMethods).
			Int("supertypes", numTypes).
			Int("class_literal_deps", numLiterals).
			Int("strings", numStrings).
			Msg("exclusivity fix-ups")

		if numMethods+numTypes+numLiterals+numStrings == 0 {
			return
		}
	}
}

// isEmitted returns whether the declaration of m is part of the output: it is
// declared in the generated code and live somewhere.
func (em *ExclusivityMap) isEmitted(m *ir.Method, methodsInJS map[*ir.Method]struct{}) bool {
	_, ok := methodsInJS[m]
	return ok && em.complete.LiveMethods().Has(m)
}

// fixUpInstanceMethods demotes every exclusive type one of whose emitted
// instance methods is not exclusive to the same fragment.  It returns the
// number of demoted types.
func (em *ExclusivityMap) fixUpInstanceMethods(prog *ir.Program, methodsInJS map[*ir.Method]struct{}) int {
	numFixups := 0

	for _, t := range prog.Types {
		owner := em.TypeOwner(t)
		if !owner.IsExclusive() {
			continue
		}

		for _, m := range t.Methods {
			if m.NeedsVtable() && em.isEmitted(m, methodsInJS) && em.MethodOwner(m) != owner {
				em.demoteType(t)
				numFixups++
				break
			}
		}
	}

	return numFixups
}

// fixUpSupertypes demotes every exclusive superclass of a type which is not
// exclusive to the same fragment.  Demoted superclasses are checked against
// their own superclass in turn.  It returns the number of demoted types.
func (em *ExclusivityMap) fixUpSupertypes(prog *ir.Program) int {
	numFixups := 0

	var worklist []*ir.Type
	for _, t := range prog.Types {
		if em.complete.InstantiatedTypes().Has(t) {
			worklist = append(worklist, t)
		}
	}

	for len(worklist) > 0 {
		t := worklist[0]
		worklist = worklist[1:]

		if t.Super == nil {
			continue
		}

		superOwner := em.TypeOwner(t.Super)
		if superOwner.IsExclusive() && superOwner != em.TypeOwner(t) {
			em.demoteType(t.Super)
			numFixups++
			worklist = append(worklist, t.Super)
		}
	}

	return numFixups
}

// fixUpClassLiterals demotes the dependencies of every live class literal
// which are exclusive to a fragment other than the literal's.  Demoted
// superclass literals are checked in turn.  It returns the number of demoted
// atoms.
func (em *ExclusivityMap) fixUpClassLiterals(prog *ir.Program, methodsInJS map[*ir.Method]struct{}) int {
	numFixups := 0

	worklist := append([]*ir.Field(nil), prog.ClassLiteralFields()...)
	for len(worklist) > 0 {
		lit := worklist[0]
		worklist = worklist[1:]

		if !em.complete.IsFieldLive(lit) {
			continue
		}

		owner := em.FieldOwner(lit)
		visible := func(dep Owner) bool {
			return !dep.IsExclusive() || dep == owner
		}

		if lit.Literalizes != nil && !visible(em.TypeOwner(lit.Literalizes)) {
			em.demoteType(lit.Literalizes)
			numFixups++
		}

		init := lit.Initializer
		if init == nil {
			continue
		}

		for _, superLit := range init.ClassLiterals {
			if !visible(em.FieldOwner(superLit)) {
				em.demoteField(superLit)
				numFixups++
				worklist = append(worklist, superLit)
			}
		}

		for _, m := range init.Methods {
			if em.isEmitted(m, methodsInJS) && !visible(em.MethodOwner(m)) {
				em.demoteMethod(m)
				numFixups++
			}
		}

		for _, s := range init.AllStrings() {
			if !visible(em.StringOwner(s)) {
				em.demoteString(s)
				numFixups++
			}
		}
	}

	return numFixups
}

// fixUpStringFields demotes the string literal of every live static field
// initialized to a string literal exclusive to another fragment.  It returns
// the number of demoted strings.
func (em *ExclusivityMap) fixUpStringFields(prog *ir.Program) int {
	numFixups := 0

	for _, t := range prog.Types {
		if prog.IsClassLiteralHolder(t) {
			continue
		}

		for _, f := range t.Fields {
			if !f.Static || f.Initializer == nil || !f.Initializer.IsStringValue || !em.complete.IsFieldLive(f) {
				continue
			}

			strOwner := em.StringOwner(f.Initializer.StringValue)
			if strOwner.IsExclusive() && strOwner != em.FieldOwner(f) {
				em.demoteString(f.Initializer.StringValue)
				numFixups++
			}
		}
	}

	return numFixups
}
