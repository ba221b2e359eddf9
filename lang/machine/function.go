package machine

import (
	"fmt"

	"github.com/tmbdl/tmbdl/lang/compiler"
)

// Closure pairs a compiled function with the upvalues it captured at
// MAKE_CLOSURE time (spec.md §3.1, §4.3.1). Grounded on the teacher's
// Function/Module split, collapsed here since a BytecodeFunction's Chunk
// is already fully self-contained (constants carry nested function
// templates directly rather than indirecting through a separate Module).
type Closure struct {
	Fn       *compiler.BytecodeFunction
	Upvalues []*Upvalue
}

func (c *Closure) Type() string   { return "closure" }
func (c *Closure) String() string { return fmt.Sprintf("function %s", c.Fn.Name) }

// NativeFunc is the Go-side implementation of a native callable. args has
// exactly the arity declared at registration (or any length, for variadic
// natives registered with Arity -1).
type NativeFunc func(vm *VM, args []Value) (Value, error)

// Native is a host-provided callable exposed to Tmbdl code as a global
// (spec.md §4.3.2). Arity -1 marks a variadic native.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

func (n *Native) Type() string   { return "native" }
func (n *Native) String() string { return fmt.Sprintf("native %s", n.Name) }

// Invoke calls callable (a *Closure or *Native) with args and returns its
// result, re-entering the VM's call protocol. Exported for package natives'
// higher-order builtins (map/filter/reduce, spec.md §4.3.2), which need to
// call back into Tmbdl code from outside package machine.
func Invoke(vm *VM, callable Value, args []Value) (Value, error) {
	return invoke(vm, callable, args)
}

// invoke calls callable (a *Closure or *Native) with args and returns its
// result, re-entering the VM's call protocol. Used by higher-order natives
// such as map/filter/reduce (spec.md §4.3.2) to call back into Tmbdl code.
func invoke(vm *VM, callable Value, args []Value) (Value, error) {
	switch fn := callable.(type) {
	case *Native:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s expects %d argument(s), got %d", fn.Name, fn.Arity, len(args))}
		}
		return fn.Fn(vm, args)
	case *Closure:
		return vm.callClosure(fn, args)
	default:
		return nil, &Error{Kind: TypeMismatch, Message: fmt.Sprintf("value of type %s is not callable", callable.Type())}
	}
}
