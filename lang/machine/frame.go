package machine

// Frame is one entry of the VM's call-frame stack (spec.md §3.6): the
// executing closure, its instruction pointer, and the stack bookkeeping
// needed to tear the call down on RETURN. Grounded on the teacher's Frame,
// stripped of its Starlark-style Position()/backtrace machinery since
// spec.md's error model reports only a line number (spec.md §7), not a
// full call-stack backtrace.
type Frame struct {
	closure *Closure
	ip      int

	// stackOffset is the absolute stack index of local slot 0 for this
	// call (spec.md §4.2.3): stack.length-n at call time, where n is the
	// callee's argument count.
	stackOffset int

	// returnSlot is the absolute stack index the call's result is written
	// to on RETURN (spec.md §4.2.3): stackOffset-1, i.e. where the callee
	// itself sat on the stack before its arguments.
	returnSlot int
}
