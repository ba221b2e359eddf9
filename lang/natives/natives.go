// Package natives is a concrete (non-exhaustive) native standard library
// for Tmbdl. spec.md §1 scopes out "the native standard library's specific
// function set", specifying only the calling protocol between VM and
// native callables (spec.md §4.3.2, §6); this package exercises that
// protocol and gives the teacher's per-Value-kind files (lang/types'
// array.go, string.go, float.go, int.go, bytes.go, bool.go) a new home
// adapted to machine.Value.
package natives

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tmbdl/tmbdl/lang/machine"
)

// Install registers every native in this package into globals (spec.md §6:
// register_native(globals, name, arity, fn)).
func Install(globals map[string]machine.Value) {
	machine.RegisterNative(globals, "len", 1, nativeLen)
	machine.RegisterNative(globals, "string", 1, nativeString)
	machine.RegisterNative(globals, "number", 1, nativeNumber)
	machine.RegisterNative(globals, "bool", 1, nativeBool)
	machine.RegisterNative(globals, "push", 2, nativePush)
	machine.RegisterNative(globals, "keys", 1, nativeKeys)
	machine.RegisterNative(globals, "values", 1, nativeValues)
	machine.RegisterNative(globals, "map", 2, nativeMap)
	machine.RegisterNative(globals, "filter", 2, nativeFilter)
	machine.RegisterNative(globals, "reduce", 3, nativeReduce)
}

func typeError(format string, args ...interface{}) error {
	return &machine.Error{Kind: machine.TypeMismatch, Message: fmt.Sprintf(format, args...)}
}

// nativeLen returns the length of an array or string, as the LENGTH opcode
// does, and additionally the entry count of a map, which LENGTH rejects.
func nativeLen(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	switch v := args[0].(type) {
	case *machine.Array:
		return machine.Number(len(v.Elems)), nil
	case machine.Str:
		return machine.Number(len(v)), nil
	case *machine.Map:
		return machine.Number(v.Len()), nil
	default:
		return nil, typeError("len: unsupported type %s", v.Type())
	}
}

// nativeString is the canonical to-string conversion, grounded on the
// teacher's string.go Stringer glue.
func nativeString(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	return machine.Str(machine.Stringify(args[0])), nil
}

// nativeNumber parses a string or passes a number through, grounded on the
// teacher's float.go numeric-literal parsing.
func nativeNumber(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	switch v := args[0].(type) {
	case machine.Number:
		return v, nil
	case machine.Str:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil, typeError("number: cannot parse %q as a number", string(v))
		}
		return machine.Number(f), nil
	default:
		return nil, typeError("number: unsupported type %s", v.Type())
	}
}

// nativeBool converts any value to its truthiness (spec.md §3.1), grounded
// on the teacher's bool.go conversion helper.
func nativeBool(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	return machine.Bool(machine.Truthy(args[0])), nil
}

// nativePush appends to an array in place and returns the array, grounded
// on the teacher's array.go mutation helpers.
func nativePush(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	arr, ok := args[0].(*machine.Array)
	if !ok {
		return nil, typeError("push: first argument must be an array, got %s", args[0].Type())
	}
	arr.Elems = append(arr.Elems, args[1])
	return arr, nil
}

func nativeKeys(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	m, ok := args[0].(*machine.Map)
	if !ok {
		return nil, typeError("keys: argument must be a map, got %s", args[0].Type())
	}
	keys := m.Keys()
	out := make([]machine.Value, len(keys))
	for i, k := range keys {
		out[i] = machine.Str(k)
	}
	return &machine.Array{Elems: out}, nil
}

func nativeValues(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	m, ok := args[0].(*machine.Map)
	if !ok {
		return nil, typeError("values: argument must be a map, got %s", args[0].Type())
	}
	keys := m.Keys()
	out := make([]machine.Value, len(keys))
	for i, k := range keys {
		v, _ := m.Get(k)
		out[i] = v
	}
	return &machine.Array{Elems: out}, nil
}

// nativeMap, nativeFilter and nativeReduce are the higher-order natives
// spec.md §4.3.2 calls out as the reason the native bridge needs an
// invoke(callable, args) -> Value helper: each calls back into Tmbdl code
// via machine.Invoke for every element.
func nativeMap(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	arr, ok := args[0].(*machine.Array)
	if !ok {
		return nil, typeError("map: first argument must be an array, got %s", args[0].Type())
	}
	out := make([]machine.Value, len(arr.Elems))
	for i, elem := range arr.Elems {
		v, err := machine.Invoke(vm, args[1], []machine.Value{elem})
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &machine.Array{Elems: out}, nil
}

func nativeFilter(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	arr, ok := args[0].(*machine.Array)
	if !ok {
		return nil, typeError("filter: first argument must be an array, got %s", args[0].Type())
	}
	var out []machine.Value
	for _, elem := range arr.Elems {
		v, err := machine.Invoke(vm, args[1], []machine.Value{elem})
		if err != nil {
			return nil, err
		}
		if machine.Truthy(v) {
			out = append(out, elem)
		}
	}
	return &machine.Array{Elems: out}, nil
}

func nativeReduce(vm *machine.VM, args []machine.Value) (machine.Value, error) {
	arr, ok := args[0].(*machine.Array)
	if !ok {
		return nil, typeError("reduce: first argument must be an array, got %s", args[0].Type())
	}
	acc := args[2]
	for _, elem := range arr.Elems {
		v, err := machine.Invoke(vm, args[1], []machine.Value{acc, elem})
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}
