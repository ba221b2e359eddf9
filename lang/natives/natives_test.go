package natives_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmbdl/tmbdl/lang/machine"
	"github.com/tmbdl/tmbdl/lang/natives"
)

func globals() map[string]machine.Value {
	g := machine.NewGlobals()
	natives.Install(g)
	return g
}

func call(t *testing.T, g map[string]machine.Value, name string, args ...machine.Value) machine.Value {
	t.Helper()
	fn, ok := g[name].(*machine.Native)
	require.True(t, ok, "no such native: %s", name)
	v, err := machine.Invoke(nil, fn, args)
	require.NoError(t, err)
	return v
}

func TestLen(t *testing.T) {
	g := globals()
	require.Equal(t, machine.Number(3), call(t, g, "len", machine.Str("abc")))
	require.Equal(t, machine.Number(2), call(t, g, "len", &machine.Array{Elems: []machine.Value{machine.Number(1), machine.Number(2)}}))
}

func TestStringNumberBool(t *testing.T) {
	g := globals()
	require.Equal(t, machine.Str("42"), call(t, g, "string", machine.Number(42)))
	require.Equal(t, machine.Number(42), call(t, g, "number", machine.Str("42")))
	require.Equal(t, machine.Bool(true), call(t, g, "bool", machine.Number(1)))
	require.Equal(t, machine.Bool(false), call(t, g, "bool", machine.Str("")))
}

func TestPush(t *testing.T) {
	g := globals()
	arr := &machine.Array{}
	result := call(t, g, "push", arr, machine.Number(7))
	require.Same(t, arr, result)
	require.Equal(t, []machine.Value{machine.Number(7)}, arr.Elems)
}

func TestKeysValues(t *testing.T) {
	g := globals()
	m := machine.NewMap(2)
	m.Set("a", machine.Number(1))
	m.Set("b", machine.Number(2))

	keys := call(t, g, "keys", m).(*machine.Array)
	require.Equal(t, []machine.Value{machine.Str("a"), machine.Str("b")}, keys.Elems)

	values := call(t, g, "values", m).(*machine.Array)
	require.Equal(t, []machine.Value{machine.Number(1), machine.Number(2)}, values.Elems)
}

func doubleNative() *machine.Native {
	return &machine.Native{Name: "double", Arity: 1, Fn: func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return args[0].(machine.Number) * 2, nil
	}}
}

func isEvenNative() *machine.Native {
	return &machine.Native{Name: "isEven", Arity: 1, Fn: func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return machine.Bool(int(args[0].(machine.Number))%2 == 0), nil
	}}
}

func sumNative() *machine.Native {
	return &machine.Native{Name: "sum", Arity: 2, Fn: func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return args[0].(machine.Number) + args[1].(machine.Number), nil
	}}
}

func TestMapFilterReduce(t *testing.T) {
	g := globals()
	arr := &machine.Array{Elems: []machine.Value{machine.Number(1), machine.Number(2), machine.Number(3), machine.Number(4)}}

	doubled := call(t, g, "map", arr, doubleNative()).(*machine.Array)
	require.Equal(t, []machine.Value{machine.Number(2), machine.Number(4), machine.Number(6), machine.Number(8)}, doubled.Elems)

	evens := call(t, g, "filter", arr, isEvenNative()).(*machine.Array)
	require.Equal(t, []machine.Value{machine.Number(2), machine.Number(4)}, evens.Elems)

	total := call(t, g, "reduce", arr, sumNative(), machine.Number(0))
	require.Equal(t, machine.Number(10), total)
}
