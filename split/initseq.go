package split

import (
	"strings"

	"fragsplit/ir"
	"fragsplit/report"
)

// LoadSequenceEntry is an entry of the configured initial load sequence along
// with its position in the configuration.
type LoadSequenceEntry struct {
	// Either the explicit tag of a split point or a reference to the method
	// enclosing it of the form `@Type::method(params)`.
	Ref string

	Path      string
	Line, Col int
}

// PickInitialLoadSequence resolves the configured initial load sequence to
// split points.  Every entry must resolve to exactly one split point which
// appears only once in the sequence.  All errors are collected.
func PickInitialLoadSequence(prog *ir.Program, entries []LoadSequenceEntry) ([]*ir.SplitPoint, []*report.ConfigError) {
	var (
		sequence []*ir.SplitPoint
		errs     []*report.ConfigError
	)

	seen := make(map[*ir.SplitPoint]struct{})

	for _, entry := range entries {
		sp, err := resolveSplitPointRef(prog, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if _, ok := seen[sp]; ok {
			errs = append(errs, entry.errorf("split point `%s` appears twice in the initial load sequence", entry.Ref))
			continue
		}

		seen[sp] = struct{}{}
		sequence = append(sequence, sp)
	}

	return sequence, errs
}

func resolveSplitPointRef(prog *ir.Program, entry LoadSequenceEntry) (*ir.SplitPoint, *report.ConfigError) {
	if !strings.HasPrefix(entry.Ref, "@") {
		sps := prog.SplitPointsNamed(entry.Ref)

		switch len(sps) {
		case 0:
			return nil, entry.errorf("no split point is named `%s`", entry.Ref)
		case 1:
			return sps[0], nil
		default:
			return nil, entry.errorf("more than one split point is named `%s`", entry.Ref)
		}
	}

	typeName, sig, ok := strings.Cut(entry.Ref[1:], "::")
	if !ok || typeName == "" || !strings.HasSuffix(sig, ")") || strings.IndexByte(sig, '(') < 1 {
		return nil, entry.errorf("badly formatted method reference `%s`: expected `@Type::method(params)`", entry.Ref)
	}

	t, ok := prog.LookupType(typeName)
	if !ok {
		return nil, entry.errorf("cannot resolve type `%s` in `%s`", typeName, entry.Ref)
	}

	var method *ir.Method
	for _, m := range t.Methods {
		if m.Signature() == sig {
			method = m
			break
		}
	}

	if method == nil {
		return nil, entry.errorf("cannot resolve method `%s` of `%s`", sig, typeName)
	}

	switch len(method.SplitPoints) {
	case 0:
		return nil, entry.errorf("method `%s` contains no split point", method.QualifiedName())
	case 1:
		return method.SplitPoints[0], nil
	default:
		return nil, entry.errorf("method `%s` contains more than one split point", method.QualifiedName())
	}
}

func (entry LoadSequenceEntry) errorf(msg string, args ...interface{}) *report.ConfigError {
	return report.RaiseConfig(entry.Path, entry.Line, entry.Col, msg, args...)
}
