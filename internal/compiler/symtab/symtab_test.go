package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basilc/corec/internal/compiler/symtab"
	"github.com/basilc/corec/internal/compiler/symtab/typeref"
)

func TestAnonymousNaming(t *testing.T) {
	tab := symtab.New()

	l0 := tab.AnonLabel()
	l1 := tab.AnonLabel()
	require.Equal(t, ".L0", tab.Label(l0))
	require.Equal(t, ".L1", tab.Label(l1))

	t0 := tab.CreateLocal("", typeref.I64)
	t1 := tab.CreateLocal("", typeref.I64)
	require.Equal(t, ".t0", tab.Local(t0).Name)
	require.Equal(t, ".t1", tab.Local(t1).Name)

	named := tab.CreateLocal("x", typeref.I64)
	require.Equal(t, "x", tab.Local(named).Name)
}

func TestInternLabelDeduplicates(t *testing.T) {
	tab := symtab.New()
	a := tab.InternLabel("foo")
	b := tab.InternLabel("foo")
	require.Equal(t, a, b)
	require.Equal(t, 1, tab.NumLabels())
}

func TestInternConstantAppendsTerminatingZero(t *testing.T) {
	tab := symtab.New()
	id, label := tab.InternConstant([]byte("hi"), typeref.I8)
	c := tab.Constant(id)
	require.Equal(t, ".CC0", tab.Label(label))
	require.Equal(t, []byte{'h', 'i', 0}, c.Data)
}

func TestLocalMutationThroughPointer(t *testing.T) {
	tab := symtab.New()
	id := tab.CreateLocal("a", typeref.I64)
	tab.Local(id).Reg = 3
	require.Equal(t, int32(3), tab.Local(id).Reg)
}
