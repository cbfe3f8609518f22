package js

import "strings"

// Program is the generated JavaScript program.  Before splitting, all code is
// in the global statement stream.  Splitting installs the statements of each
// fragment.
type Program struct {
	// The linearized global statement stream.
	Global []Statement

	fragments [][]Statement
}

// NewProgram creates a new program from its global statement stream.
func NewProgram(global []Statement) *Program {
	return &Program{Global: global}
}

// SetFragments installs the statements of each fragment.  The statements of
// fragment i are fragments[i].
func (p *Program) SetFragments(fragments [][]Statement) {
	p.fragments = fragments
}

// FragmentCount returns the number of fragments.  An unsplit program has a
// single fragment.
func (p *Program) FragmentCount() int {
	if p.fragments == nil {
		return 1
	}

	return len(p.fragments)
}

// Fragment returns the statements of fragment i.
func (p *Program) Fragment(i int) []Statement {
	if p.fragments == nil && i == 0 {
		return p.Global
	}

	return p.fragments[i]
}

// Source returns the JavaScript text of a list of statements, one statement
// per line.
func Source(stmts []Statement) string {
	sb := strings.Builder{}
	for _, stmt := range stmts {
		sb.WriteString(stmt.String())
		sb.WriteRune('\n')
	}

	return sb.String()
}
