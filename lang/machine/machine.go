// Package machine implements the stack-based virtual machine that executes
// the bytecode compiled form of the source code, and provides the runtime
// representation of the values it manipulates.
package machine

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/tmbdl/tmbdl/lang/compiler"
)

// VM is one execution of a bytecode program (spec.md §3.6): a single
// growing value stack shared by every frame, a call-frame stack, the
// mutable global environment, the open-upvalue list, and the module
// cache/exports of the currently running top-level module. Grounded on the
// teacher's fetch-decode-execute loop (package-level `run`), restructured
// as a receiver type so the native-call bridge (invoke, see function.go)
// can re-enter it.
type VM struct {
	thread *Thread

	stack  []Value
	frames []*Frame

	globals      map[string]Value
	openUpvalues *Upvalue
	moduleCache  map[string]*Map
	exports      *Map

	lastResult Value
}

func newVM(th *Thread) *VM {
	return &VM{
		thread:      th,
		globals:     th.Globals,
		moduleCache: make(map[string]*Map),
		exports:     NewMap(0),
	}
}

// Exports returns the exports map populated by this run's top-level EXPORT
// opcodes (spec.md §3.6, §4.3.3).
func (vm *VM) Exports() *Map { return vm.exports }

// Globals returns the mutable global environment (spec.md §3.6).
func (vm *VM) Globals() map[string]Value { return vm.globals }

// Thread returns the Thread this VM is running on, so a ModuleLoader can
// start a nested VM (via Thread.RunModule) that shares globals and step
// budget with the importing VM (spec.md §4.3.3, §5).
func (vm *VM) Thread() *Thread { return vm.thread }

// GlobalNames returns the names currently bound in the global environment,
// sorted for deterministic output (used by debugging/tracing tools built
// on top of a VM, e.g. a future REPL `:globals` command).
func (vm *VM) GlobalNames() []string {
	names := maps.Keys(vm.globals)
	slices.Sort(names)
	return names
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) Value { return vm.stack[len(vm.stack)-1-distance] }

// callClosure invokes c with args, running the VM loop until the pushed
// frame (and everything it transitively calls) has returned (spec.md
// §4.2.3). Used both for the initial top-level call and by invoke (see
// function.go) for native-to-closure re-entrancy (spec.md §4.3.2).
func (vm *VM) callClosure(c *Closure, args []Value) (Value, error) {
	if len(args) != int(c.Fn.Arity) {
		return nil, &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s expects %d argument(s), got %d", c.Fn.Name, c.Fn.Arity, len(args))}
	}
	target := len(vm.frames)
	vm.stack = append(vm.stack, c)
	vm.stack = append(vm.stack, args...)
	vm.frames = append(vm.frames, &Frame{
		closure:     c,
		stackOffset: len(vm.stack) - len(args),
		returnSlot:  len(vm.stack) - len(args) - 1,
	})
	return vm.execute(target)
}

// execute runs frames until the call-frame stack is back down to
// targetDepth, i.e. until the frame callClosure pushed (and everything it
// called) has returned.
func (vm *VM) execute(targetDepth int) (Value, error) {
	for len(vm.frames) > targetDepth {
		vm.thread.steps++
		if vm.thread.steps >= vm.thread.maxSteps {
			return nil, &Error{Kind: InternalInvariant, Message: "execution step limit exceeded"}
		}
		if vm.thread.cancelled.Load() {
			return nil, &Error{Kind: InternalInvariant, Message: fmt.Sprintf("thread cancelled: %v", context.Cause(vm.thread.ctx))}
		}

		frame := vm.frames[len(vm.frames)-1]
		if err := vm.step(frame); err != nil {
			floor := 0
			if targetDepth < len(vm.frames) {
				floor = vm.frames[targetDepth].stackOffset
			}
			vm.closeUpvalues(floor)
			vm.frames = vm.frames[:targetDepth]
			return nil, err
		}
	}
	if targetDepth == 0 {
		return vm.lastResult, nil
	}
	return vm.pop(), nil
}

// step executes exactly one instruction of frame (spec.md §4.3: fetch,
// decode, execute over frame.chunk.code[frame.ip++]).
func (vm *VM) step(frame *Frame) error {
	chunk := frame.closure.Fn.Chunk
	code := chunk.Code
	ip := frame.ip
	op := compiler.Opcode(code[ip])
	line := chunk.Lines[ip]
	ip++

	readByte := func() byte {
		b := code[ip]
		ip++
		return b
	}

	switch op {
	case compiler.NOP:

	case compiler.PUSH_CONST:
		idx := readByte()
		v, err := constantValue(chunk.Constants[idx])
		if err != nil {
			setLine(err, line)
			return err
		}
		vm.push(v)

	case compiler.POP:
		vm.pop()

	case compiler.DUP:
		vm.push(vm.peek(0))

	case compiler.ADD:
		b, a := vm.pop(), vm.pop()
		v, err := add(a, b)
		if err != nil {
			setLine(err, line)
			return err
		}
		vm.push(v)

	case compiler.SUB, compiler.MUL, compiler.DIV, compiler.MOD:
		b, a := vm.pop(), vm.pop()
		an, aok := a.(Number)
		bn, bok := b.(Number)
		if !aok || !bok {
			return &Error{Kind: TypeMismatch, Message: "arithmetic requires numbers", Line: line}
		}
		var r Number
		switch op {
		case compiler.SUB:
			r = an - bn
		case compiler.MUL:
			r = an * bn
		case compiler.DIV:
			if bn == 0 {
				return &Error{Kind: DivisionByZero, Message: "division by zero", Line: line}
			}
			r = an / bn
		case compiler.MOD:
			if bn == 0 {
				return &Error{Kind: DivisionByZero, Message: "division by zero", Line: line}
			}
			r = Number(math.Mod(float64(an), float64(bn)))
		}
		vm.push(r)

	case compiler.NEG:
		n, ok := vm.pop().(Number)
		if !ok {
			return &Error{Kind: TypeMismatch, Message: "negation requires a number", Line: line}
		}
		vm.push(-n)

	case compiler.EQ:
		b, a := vm.pop(), vm.pop()
		vm.push(Bool(Equal(a, b)))

	case compiler.NEQ:
		b, a := vm.pop(), vm.pop()
		vm.push(Bool(!Equal(a, b)))

	case compiler.LT, compiler.LTE, compiler.GT, compiler.GTE:
		b, a := vm.pop(), vm.pop()
		an, aok := a.(Number)
		bn, bok := b.(Number)
		if !aok || !bok {
			return &Error{Kind: TypeMismatch, Message: "comparison requires numbers", Line: line}
		}
		var r bool
		switch op {
		case compiler.LT:
			r = an < bn
		case compiler.LTE:
			r = an <= bn
		case compiler.GT:
			r = an > bn
		case compiler.GTE:
			r = an >= bn
		}
		vm.push(Bool(r))

	case compiler.NOT:
		vm.push(Bool(!Truthy(vm.pop())))

	case compiler.PRINT:
		fmt.Fprintln(vm.thread.stdout, Stringify(vm.pop()))

	case compiler.EYEOF:
		v := vm.pop()
		label := vm.pop()
		fmt.Fprintf(vm.thread.debug, "%s:%s\n", Stringify(label), Stringify(v))

	case compiler.INDEX_GET:
		idx, obj := vm.pop(), vm.pop()
		v, err := indexGet(obj, idx)
		if err != nil {
			setLine(err, line)
			return err
		}
		vm.push(v)

	case compiler.INDEX_SET:
		val, idx, obj := vm.pop(), vm.pop(), vm.pop()
		if err := indexSet(obj, idx, val); err != nil {
			setLine(err, line)
			return err
		}
		vm.push(val)

	case compiler.LENGTH:
		switch x := vm.pop().(type) {
		case *Array:
			vm.push(Number(len(x.Elems)))
		case Str:
			vm.push(Number(len(x)))
		default:
			return &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot take length of %s", x.Type()), Line: line}
		}

	case compiler.RETURN:
		result := vm.pop()
		vm.closeUpvalues(frame.stackOffset)
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			vm.lastResult = result
		} else {
			vm.stack = vm.stack[:frame.returnSlot]
			vm.push(result)
		}
		return nil

	case compiler.CLOSE_UPVALUE:
		vm.closeUpvalueAt(len(vm.stack) - 1)
		vm.pop()

	case compiler.HALT:
		if len(vm.stack) > 0 {
			vm.lastResult = vm.peek(0)
		} else {
			vm.lastResult = NullValue
		}
		vm.frames = vm.frames[:0]
		return nil

	case compiler.LOAD:
		slot := readByte()
		vm.push(vm.stack[frame.stackOffset+int(slot)])

	case compiler.STORE:
		slot := readByte()
		vm.stack[frame.stackOffset+int(slot)] = vm.peek(0)

	case compiler.LOAD_GLOBAL:
		idx := readByte()
		name, _ := chunk.Constants[idx].(string)
		v, ok := vm.globals[name]
		if !ok {
			return &Error{Kind: UndefinedVariable, Message: fmt.Sprintf("undefined variable %q", name), Line: line}
		}
		vm.push(v)

	case compiler.STORE_GLOBAL:
		idx := readByte()
		name, _ := chunk.Constants[idx].(string)
		vm.globals[name] = vm.peek(0)

	case compiler.JUMP:
		off := readByte()
		ip += int(off)

	case compiler.JUMP_IF_FALSE:
		off := readByte()
		if !Truthy(vm.peek(0)) {
			ip += int(off)
		}

	case compiler.JUMP_IF_TRUE:
		off := readByte()
		if Truthy(vm.peek(0)) {
			ip += int(off)
		}

	case compiler.LOOP:
		off := readByte()
		ip -= int(off)

	case compiler.CALL:
		argc := int(readByte())
		callee := vm.peek(argc)
		switch c := callee.(type) {
		case *Native:
			args := make([]Value, argc)
			copy(args, vm.stack[len(vm.stack)-argc:])
			vm.stack = vm.stack[:len(vm.stack)-argc-1]
			if c.Arity >= 0 && len(args) != c.Arity {
				return &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s expects %d argument(s), got %d", c.Name, c.Arity, len(args)), Line: line}
			}
			result, err := c.Fn(vm, args)
			if err != nil {
				setLine(err, line)
				return err
			}
			vm.push(result)
		case *Closure:
			if argc != int(c.Fn.Arity) {
				return &Error{Kind: ArityMismatch, Message: fmt.Sprintf("%s expects %d argument(s), got %d", c.Fn.Name, c.Fn.Arity, argc), Line: line}
			}
			vm.frames = append(vm.frames, &Frame{
				closure:     c,
				stackOffset: len(vm.stack) - argc,
				returnSlot:  len(vm.stack) - argc - 1,
			})
		default:
			return &Error{Kind: TypeMismatch, Message: fmt.Sprintf("value of type %s is not callable", callee.Type()), Line: line}
		}

	case compiler.MAKE_CLOSURE:
		idx := readByte()
		bf, ok := chunk.Constants[idx].(*compiler.BytecodeFunction)
		if !ok {
			return &Error{Kind: InternalInvariant, Message: "MAKE_CLOSURE constant is not a function", Line: line}
		}
		upvalues := make([]*Upvalue, bf.UpvalueCount)
		for i := 0; i < int(bf.UpvalueCount); i++ {
			isLocal := readByte()
			index := readByte()
			if isLocal != 0 {
				upvalues[i] = vm.captureUpvalue(frame.stackOffset + int(index))
			} else {
				upvalues[i] = frame.closure.Upvalues[index]
			}
		}
		vm.push(&Closure{Fn: bf, Upvalues: upvalues})

	case compiler.GET_UPVALUE:
		slot := readByte()
		vm.push(frame.closure.Upvalues[slot].get(vm.stack))

	case compiler.SET_UPVALUE:
		slot := readByte()
		frame.closure.Upvalues[slot].set(vm.stack, vm.peek(0))

	case compiler.MAKE_ARRAY:
		n := int(readByte())
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack = vm.stack[:len(vm.stack)-n]
		vm.push(&Array{Elems: elems})

	case compiler.MAKE_OBJECT:
		n := int(readByte())
		base := len(vm.stack) - 2*n
		pairs := vm.stack[base:]
		m := NewMap(n)
		for i := 0; i < n; i++ {
			key, ok := pairs[2*i].(Str)
			if !ok {
				return &Error{Kind: TypeMismatch, Message: "map keys must be strings", Line: line}
			}
			m.Set(string(key), pairs[2*i+1])
		}
		vm.stack = vm.stack[:base]
		vm.push(m)

	case compiler.GET_PROP:
		idx := readByte()
		name, _ := chunk.Constants[idx].(string)
		v, err := getProp(vm.pop(), name)
		if err != nil {
			setLine(err, line)
			return err
		}
		vm.push(v)

	case compiler.SET_PROP:
		idx := readByte()
		name, _ := chunk.Constants[idx].(string)
		val, obj := vm.pop(), vm.pop()
		if err := setProp(obj, name, val); err != nil {
			setLine(err, line)
			return err
		}
		vm.push(val)

	case compiler.IMPORT:
		idx := readByte()
		path, _ := chunk.Constants[idx].(string)
		m, err := vm.importModule(path)
		if err != nil {
			setLine(err, line)
			return err
		}
		vm.push(m)

	case compiler.EXPORT:
		idx := readByte()
		name, _ := chunk.Constants[idx].(string)
		vm.exports.Set(name, vm.pop())

	default:
		return &Error{Kind: InternalInvariant, Message: fmt.Sprintf("unimplemented opcode %s", op), Line: line}
	}

	frame.ip = ip
	return nil
}

func setLine(err error, line int) {
	if e, ok := err.(*Error); ok && e.Line == 0 {
		e.Line = line
	}
}

func constantValue(c interface{}) (Value, error) {
	switch v := c.(type) {
	case nil:
		return NullValue, nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case string:
		return Str(v), nil
	default:
		return nil, &Error{Kind: InternalInvariant, Message: fmt.Sprintf("unexpected constant type %T", c)}
	}
}

// add implements ADD's polymorphism (spec.md §4.2.9): string concatenation
// whenever either operand is a string, otherwise numeric addition.
func add(a, b Value) (Value, error) {
	_, aStr := a.(Str)
	_, bStr := b.(Str)
	if aStr || bStr {
		return Str(Stringify(a) + Stringify(b)), nil
	}
	an, aok := a.(Number)
	bn, bok := b.(Number)
	if aok && bok {
		return an + bn, nil
	}
	return nil, &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot add %s and %s", a.Type(), b.Type())}
}

// indexGet implements INDEX_GET (spec.md §4.1, §4.3). Out-of-range array/
// string access yields Null rather than an error: the source's "undefined"
// result has no first-class representation in this Value sum (spec.md §9
// Open Questions), so Null is the closest analogue and is used uniformly
// for both arrays and strings.
func indexGet(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case *Array:
		n, ok := idx.(Number)
		if !ok {
			return nil, &Error{Kind: TypeMismatch, Message: "array index must be a number"}
		}
		i := int(n)
		if i < 0 || i >= len(o.Elems) || float64(i) != float64(n) {
			return NullValue, nil
		}
		return o.Elems[i], nil
	case Str:
		n, ok := idx.(Number)
		if !ok {
			return nil, &Error{Kind: TypeMismatch, Message: "string index must be a number"}
		}
		i := int(n)
		if i < 0 || i >= len(o) || float64(i) != float64(n) {
			return NullValue, nil
		}
		return o[i : i+1], nil
	case *Map:
		key, ok := idx.(Str)
		if !ok {
			return nil, &Error{Kind: TypeMismatch, Message: "map key must be a string"}
		}
		if v, ok := o.Get(string(key)); ok {
			return v, nil
		}
		return NullValue, nil
	default:
		return nil, &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot index %s", obj.Type())}
	}
}

// indexSet implements INDEX_SET, which disallows indexing a primitive
// (spec.md §4.3): Str falls through to the default case since strings are
// immutable.
func indexSet(obj, idx, val Value) error {
	switch o := obj.(type) {
	case *Array:
		n, ok := idx.(Number)
		if !ok {
			return &Error{Kind: TypeMismatch, Message: "array index must be a number"}
		}
		i := int(n)
		if i < 0 || i >= len(o.Elems) {
			return &Error{Kind: IndexOutOfRange, Message: "array index out of range"}
		}
		o.Elems[i] = val
		return nil
	case *Map:
		key, ok := idx.(Str)
		if !ok {
			return &Error{Kind: TypeMismatch, Message: "map key must be a string"}
		}
		o.Set(string(key), val)
		return nil
	default:
		return &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot index-assign %s", obj.Type())}
	}
}

func getProp(obj Value, name string) (Value, error) {
	m, ok := obj.(*Map)
	if !ok {
		return nil, &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot get property %q of %s", name, obj.Type())}
	}
	if v, ok := m.Get(name); ok {
		return v, nil
	}
	return NullValue, nil
}

func setProp(obj Value, name string, val Value) error {
	m, ok := obj.(*Map)
	if !ok {
		return &Error{Kind: TypeMismatch, Message: fmt.Sprintf("cannot set property %q of %s", name, obj.Type())}
	}
	m.Set(name, val)
	return nil
}

// captureUpvalue implements spec.md §4.3.1: find-or-splice into the
// descending-by-location open-upvalue list.
func (vm *VM) captureUpvalue(location int) *Upvalue {
	var prev *Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.location > location {
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.location == location {
		return cur
	}
	uv := &Upvalue{location: location, next: cur}
	if prev == nil {
		vm.openUpvalues = uv
	} else {
		prev.next = uv
	}
	return uv
}

// closeUpvalues implements spec.md §4.3.1: close every open upvalue at or
// above floor, stopping at the first (by descending order) below it.
func (vm *VM) closeUpvalues(floor int) {
	for vm.openUpvalues != nil && vm.openUpvalues.location >= floor {
		uv := vm.openUpvalues
		uv.close(vm.stack)
		vm.openUpvalues = uv.next
	}
}

// closeUpvalueAt closes the single open upvalue at loc, if one exists; used
// by CLOSE_UPVALUE (spec.md §4.2.4), which closes exactly the top slot.
func (vm *VM) closeUpvalueAt(loc int) {
	var prev *Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.location > loc {
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.location == loc {
		cur.close(vm.stack)
		if prev == nil {
			vm.openUpvalues = cur.next
		} else {
			prev.next = cur.next
		}
	}
}

// importModule implements the IMPORT opcode's module loader hook (spec.md
// §4.3.3). The cache is seeded with a placeholder exports map before the
// loader runs the nested module, so a cyclic importer observes the
// in-progress (possibly incomplete) map rather than recursing forever.
func (vm *VM) importModule(key string) (*Map, error) {
	if m, ok := vm.moduleCache[key]; ok {
		return m, nil
	}
	placeholder := NewMap(0)
	vm.moduleCache[key] = placeholder
	if vm.thread.Loader == nil {
		return nil, &Error{Kind: ModuleLoadFailure, Message: "no module loader configured"}
	}
	if err := vm.thread.Loader(vm, key, placeholder); err != nil {
		return nil, &Error{Kind: ModuleLoadFailure, Message: err.Error(), Wrapped: err}
	}
	return placeholder, nil
}
