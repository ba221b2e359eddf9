package machine

// Upvalue implements spec.md §3.4: a variable captured by a closure is
// either open (still a live slot on the VM value stack) or closed (a
// heap cell, once the slot it pointed to is about to leave the stack).
// Grounded on the teacher's cell type (a plain Value box); Tmbdl widens it
// with the open/closed state itself rather than keeping the box a separate
// always-present indirection, since spec.md requires the open state to
// read/write the stack directly, not a box.
type Upvalue struct {
	closed   bool
	location int   // absolute stack index, meaningful only while open
	value    Value // heap cell, meaningful only once closed
	next     *Upvalue
}

func (u *Upvalue) Type() string   { return "upvalue" }
func (u *Upvalue) String() string { return "upvalue" }

// get reads the current value of the upvalue, given the VM's value stack
// (used only while the upvalue may still be open).
func (u *Upvalue) get(stack []Value) Value {
	if u.closed {
		return u.value
	}
	return stack[u.location]
}

// set writes v into the upvalue, given the VM's value stack.
func (u *Upvalue) set(stack []Value, v Value) {
	if u.closed {
		u.value = v
		return
	}
	stack[u.location] = v
}

// close transitions the upvalue to closed, copying the live stack slot into
// its own cell. Idempotent no-op if already closed.
func (u *Upvalue) close(stack []Value) {
	if u.closed {
		return
	}
	u.value = stack[u.location]
	u.closed = true
}
