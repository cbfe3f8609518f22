package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fragsplit/cfa"
	"fragsplit/ir"
)

func TestNothingIsLive(t *testing.T) {
	var p Predicate = Nothing{}

	assert.False(t, p.IsTypeLive(&ir.Type{Name: "A"}))
	assert.False(t, p.IsMethodLive(&ir.Method{Name: "m"}))
	assert.False(t, p.IsFieldLive(&ir.Field{Name: "f"}))
	assert.False(t, p.IsStringLive("s"))
	assert.False(t, p.MiscellaneousStatementsAreLive())
}

func TestCFAPredicate(t *testing.T) {
	b := ir.NewBuilder()
	main := b.Type("Main", nil)
	run := b.Method(main, "run", ir.Static)
	dead := b.Method(main, "dead", ir.Static)
	widget := b.Type("Widget", nil)
	ctor := b.Method(widget, "new", ir.Constructor)
	label := b.Field(widget, "label", false)
	run.Calls = []*ir.Method{ctor}
	run.Writes = []*ir.Field{label}
	run.Strings = []string{"hello"}
	b.Entry(run)

	prog, err := b.Build()
	require.NoError(t, err)

	a := cfa.New(prog)
	a.TraverseEntryMethods()

	var p Predicate = FromAnalyzer(a)
	assert.True(t, p.IsMethodLive(run))
	assert.False(t, p.IsMethodLive(dead))
	assert.True(t, p.IsTypeLive(widget))
	assert.False(t, p.IsTypeLive(main))
	assert.True(t, p.IsFieldLive(label))
	assert.True(t, p.IsStringLive("hello"))
	assert.False(t, p.IsStringLive("bye"))
	assert.True(t, p.MiscellaneousStatementsAreLive())
}
