package depgraph

import (
	"fragsplit/cfa"
	"fragsplit/ir"
)

// Recorder records the dependency graphs computed while splitting: one graph
// per reachability analysis, each possibly extending a previous one.  It is a
// diagnostics sink and never influences splitting.
type Recorder interface {
	cfa.DependencyRecorder

	// Open is called once before any graph is started.
	Open() error

	// Close is called once after the last graph has ended.
	Close() error

	// StartGraph begins a new graph.  If extends is not empty, the new graph
	// only contains what was added to the graph of that name.
	StartGraph(name, extends string)

	// EndGraph ends the current graph.
	EndGraph()
}

// Null is the recorder which records nothing.
type Null struct{}

func (Null) Open() error { return nil }
func (Null) Close() error { return nil }
func (Null) StartGraph(string, string) {}
func (Null) EndGraph() {}
func (Null) MethodIsLiveBecause(*ir.Method, []*ir.Method) {}
