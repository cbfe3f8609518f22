package extract

import (
	"fmt"
	"io"

	"fragsplit/js"
)

// EchoLogger writes the declarations kept in a fragment to a writer: one line
// per kept function, prototype method, dispatch table and static field.  It is
// used to display which code ends up in which fragment.
type EchoLogger struct {
	w io.Writer
}

// NewEchoLogger creates a new echo logger writing to w.
func NewEchoLogger(w io.Writer) *EchoLogger {
	return &EchoLogger{w: w}
}

func (el *EchoLogger) LogStatement(stmt js.Statement, kept bool) {
	if !kept {
		return
	}

	switch v := stmt.(type) {
	case *js.Function:
		if v.Method != nil {
			fmt.Fprintf(el.w, "  method %s\n", v.Method.QualifiedName())
		}
	case *js.PrototypeMethod:
		fmt.Fprintf(el.w, "  method %s\n", v.Method.QualifiedName())
	case *js.DefineClass:
		fmt.Fprintf(el.w, "  type %s\n", v.Type.Name)
	case *js.Vars:
		for _, vr := range v.Vars {
			if vr.Field != nil {
				fmt.Fprintf(el.w, "  field %s\n", vr.Field)
			}
		}
	}
}

// Heading writes a heading introducing the declarations of a fragment.
func (el *EchoLogger) Heading(format string, args ...interface{}) {
	fmt.Fprintf(el.w, format+"\n", args...)
}
