package machine

import (
	"fmt"
	"strconv"

	"github.com/tmbdl/tmbdl/lang/compiler"
)

// Value is the interface implemented by every value the VM manipulates
// (spec.md §3.1): a tagged sum of Null, Bool, Number, Str, *Array, *Map,
// *Native, *BytecodeFn and *Closure. Grounded on the teacher's Value
// interface, narrowed from its many capability interfaces (Ordered,
// HasBinary, HasAttrs, ...) down to the handful of concrete kinds
// spec.md §3.1 actually lists — Tmbdl's opcode set dispatches by type
// switch in package machine itself rather than via host-dynamic-dispatch
// capability interfaces (spec.md §9: "Do not use host-language dynamic
// dispatch").
type Value interface {
	Type() string
	String() string
}

// Null is Tmbdl's single null value.
type Null struct{}

func (Null) Type() string   { return "null" }
func (Null) String() string { return "null" }

// NullValue is the canonical Null instance.
var NullValue Value = Null{}

// Bool is a boolean value.
type Bool bool

func (b Bool) Type() string { return "bool" }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Number is Tmbdl's sole numeric type: a 64-bit float (spec.md §3.1).
type Number float64

func (n Number) Type() string   { return "number" }
func (n Number) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }

// Str is an immutable UTF-8 string.
type Str string

func (s Str) Type() string   { return "string" }
func (s Str) String() string { return string(s) }

// Array is a mutable, ordered sequence of Values, identity-equal only to
// itself (spec.md §3.1).
type Array struct {
	Elems []Value
}

func (a *Array) Type() string { return "array" }
func (a *Array) String() string {
	return fmt.Sprintf("array(%p, len=%d)", a, len(a.Elems))
}

// BytecodeFn is the uncaptured, constant-pool form of a compiled function
// as a Value (spec.md §3.1). The VM does not create one: MAKE_CLOSURE reads
// the *compiler.BytecodeFunction constant directly and wraps it in a
// *Closure.
type BytecodeFn struct {
	Fn *compiler.BytecodeFunction
}

func (b *BytecodeFn) Type() string   { return "bytecode_fn" }
func (b *BytecodeFn) String() string { return fmt.Sprintf("function %s", b.Fn.Name) }

// Truthy implements spec.md §3.1's truthiness table.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Null:
		return false
	case Bool:
		return bool(v)
	case Number:
		return v != 0
	case Str:
		return len(v) > 0
	default:
		return true
	}
}

// Stringify is the canonical value-to-string conversion used by PRINT,
// EYEOF and ADD's string-concatenation form (spec.md §4.2.9, §4.3).
func Stringify(v Value) string {
	if s, ok := v.(Str); ok {
		return string(s)
	}
	return v.String()
}

// Equal implements spec.md §3.1's equality rule: structural for Null, Bool,
// Number, Str; identity (reference equality) for every other kind.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb
	case Number:
		bn, ok := b.(Number)
		return ok && a == bn
	case Str:
		bs, ok := b.(Str)
		return ok && a == bs
	default:
		return a == b
	}
}
