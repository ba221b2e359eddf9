package machine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/tmbdl/tmbdl/lang/compiler"
)

// ModuleLoader resolves, parses, lowers and runs the module identified by
// moduleKey, populating exports with that module's top-level EXPORT
// entries (spec.md §4.3.3, §6). exports is the cache placeholder the VM
// seeded before calling the loader; the loader must populate this exact
// map (rather than returning a new one) so that a cyclic importer observes
// the in-progress entries.
type ModuleLoader func(vm *VM, moduleKey string, exports *Map) error

// Thread holds the ambient configuration for one or more VM runs: I/O
// sinks, execution limits, the module loader hook and the shared global
// environment. Grounded on the teacher's Thread, narrowed to Tmbdl's
// simpler execution model (a single growing value stack, no deferred
// execution, no comparison-depth guard) and with Predeclared replaced by a
// mutable Globals map (spec.md §3.6: globals is create-or-overwrite, not
// immutable).
type Thread struct {
	// Name optionally identifies the thread, for diagnostics.
	Name string

	// Stdout is where PRINT writes. Stderr is where run-time errors are
	// reported by callers of Run; Debug is where EYEOF writes. Stdin is
	// reserved for future native I/O builtins. Nil fields default to
	// os.Stdout, os.Stderr, os.Stdin respectively; Debug defaults to Stderr.
	Stdout io.Writer
	Stderr io.Writer
	Debug  io.Writer
	Stdin  io.Reader

	// MaxSteps caps the number of executed instructions before the run is
	// cancelled with an InternalInvariant error. A value <= 0 means no
	// limit.
	MaxSteps int

	// Loader resolves import expressions (spec.md §4.3.3). Nil
	// means IMPORT always fails with ModuleLoadFailure.
	Loader ModuleLoader

	// Globals is the mutable global environment shared by every VM run on
	// this thread (spec.md §3.6, §5's "globals is shared between the main
	// module and any nested VM"). Populate it with RegisterNative before
	// the first Run.
	Globals map[string]Value

	ctx       context.Context
	ctxCancel func()
	cancelled atomic.Bool

	steps, maxSteps uint64

	stdout io.Writer
	stderr io.Writer
	debug  io.Writer
	stdin  io.Reader
}

// Run executes main's bytecode to completion, implementing the
// `VM::run(Chunk, {...}) -> Value | error` contract of spec.md §6. A Thread
// runs at most one program: once Run has been called on it, any later call
// to Run returns an error.
func (th *Thread) Run(ctx context.Context, main *compiler.BytecodeFunction) (Value, error) {
	if th.ctx != nil {
		return nil, fmt.Errorf("thread %s is already executing a program", th.Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	th.ctx = ctx
	th.ctxCancel = cancel
	th.init()

	go func() {
		<-th.ctx.Done()
		th.cancelled.Store(true)
	}()

	vm := newVM(th)
	return vm.callClosure(&Closure{Fn: main}, nil)
}

// RunModule executes fn to completion on a fresh VM sharing this thread's
// globals, step budget and I/O sinks (spec.md §5: globals are shared
// between the main module and any nested VM), and returns the module's
// exports map. Used by a ModuleLoader to satisfy an IMPORT (spec.md
// §4.3.3): the loader calls RunModule and copies the result into the
// placeholder exports map it was handed.
func (th *Thread) RunModule(fn *compiler.BytecodeFunction) (*Map, error) {
	th.init()
	vm := newVM(th)
	if _, err := vm.callClosure(&Closure{Fn: fn}, nil); err != nil {
		return nil, err
	}
	return vm.exports, nil
}

func (th *Thread) init() {
	if th.MaxSteps <= 0 {
		th.maxSteps-- // wraps to math.MaxUint64: effectively unlimited
	} else {
		th.maxSteps = uint64(th.MaxSteps)
	}
	if th.Stdout != nil {
		th.stdout = th.Stdout
	} else {
		th.stdout = os.Stdout
	}
	if th.Stderr != nil {
		th.stderr = th.Stderr
	} else {
		th.stderr = os.Stderr
	}
	if th.Debug != nil {
		th.debug = th.Debug
	} else {
		th.debug = th.stderr
	}
	if th.Stdin != nil {
		th.stdin = th.Stdin
	} else {
		th.stdin = os.Stdin
	}
	if th.Globals == nil {
		th.Globals = NewGlobals()
	}
}
