// Package compiler lowers a resolved AST (package ast) to the stack-machine
// bytecode executed by package machine, and provides a versioned binary
// container to serialize/deserialize that bytecode. Adapted from the
// teacher's own compiler package (opcode table shape, Chunk/constant-pool
// design, pre-order function flattening) and narrowed to the single-byte
// fixed-operand instruction set spec.md §4.1 specifies.
package compiler

import "fmt"

// Version is bumped whenever the binary container format changes
// incompatibly; a mismatched version is a hard deserialization error
// (spec.md §4.4).
const Version = 1

// Opcode is a single bytecode instruction.
type Opcode uint8

// The full instruction set of spec.md §4.1. Each opcode at or above
// OpcodeArgMin (except the reserved ones noted below) takes exactly one
// operand byte; those below take none.
const (
	NOP Opcode = iota

	// stack
	PUSH_CONST // operand: const-index
	POP
	DUP

	// arithmetic
	ADD
	SUB
	MUL
	DIV
	MOD
	NEG

	// comparison
	EQ
	NEQ
	LT
	LTE
	GT
	GTE

	// logical
	NOT

	PRINT
	EYEOF
	INDEX_GET
	INDEX_SET
	LENGTH
	RETURN
	CLOSE_UPVALUE
	HALT

	// --- opcodes with a one-byte operand go below this line ---

	LOAD         // operand: local slot
	STORE        // operand: local slot
	LOAD_GLOBAL  // operand: const-index (name)
	STORE_GLOBAL // operand: const-index (name)

	JUMP          // operand: unsigned byte jump distance (added to ip)
	JUMP_IF_FALSE // operand: unsigned byte jump distance (added to ip)
	JUMP_IF_TRUE  // operand: unsigned byte jump distance (added to ip)
	LOOP          // operand: unsigned byte jump distance (subtracted from ip)

	CALL // operand: arg count

	MAKE_CLOSURE // operand: const-index (fn); followed by 2*upvalueCount descriptor bytes
	GET_UPVALUE  // operand: upvalue slot
	SET_UPVALUE  // operand: upvalue slot

	MAKE_ARRAY  // operand: element count
	MAKE_OBJECT // operand: pair count
	GET_PROP    // operand: const-index (name)
	SET_PROP    // operand: const-index (name)

	IMPORT // operand: const-index (path)
	EXPORT // operand: const-index (name)

	// reserved, never emitted by this generator nor handled by the VM
	// (spec.md §9, §4.2.10): the source grammar has classes, but the
	// bytecode pipeline does not implement them.
	MAKE_CLASS
	INVOKE

	opcodeCount
)

// OpcodeArgMin is the first opcode that takes a one-byte operand.
const OpcodeArgMin = LOAD

var opcodeNames = [opcodeCount]string{
	NOP:           "nop",
	PUSH_CONST:    "push_const",
	POP:           "pop",
	DUP:           "dup",
	ADD:           "add",
	SUB:           "sub",
	MUL:           "mul",
	DIV:           "div",
	MOD:           "mod",
	NEG:           "neg",
	EQ:            "eq",
	NEQ:           "neq",
	LT:            "lt",
	LTE:           "lte",
	GT:            "gt",
	GTE:           "gte",
	NOT:           "not",
	PRINT:         "print",
	EYEOF:         "eyeof",
	INDEX_GET:     "index_get",
	INDEX_SET:     "index_set",
	LENGTH:        "length",
	RETURN:        "return",
	CLOSE_UPVALUE: "close_upvalue",
	HALT:          "halt",
	LOAD:          "load",
	STORE:         "store",
	LOAD_GLOBAL:   "load_global",
	STORE_GLOBAL:  "store_global",
	JUMP:          "jump",
	JUMP_IF_FALSE: "jump_if_false",
	JUMP_IF_TRUE:  "jump_if_true",
	LOOP:          "loop",
	CALL:          "call",
	MAKE_CLOSURE:  "make_closure",
	GET_UPVALUE:   "get_upvalue",
	SET_UPVALUE:   "set_upvalue",
	MAKE_ARRAY:    "make_array",
	MAKE_OBJECT:   "make_object",
	GET_PROP:      "get_prop",
	SET_PROP:      "set_prop",
	IMPORT:        "import",
	EXPORT:        "export",
	MAKE_CLASS:    "make_class",
	INVOKE:        "invoke",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// hasOperand reports whether op is followed by a single operand byte (plus,
// for MAKE_CLOSURE, the trailing upvalue descriptor bytes the generator and
// VM both special-case).
func hasOperand(op Opcode) bool {
	return op >= OpcodeArgMin && op < opcodeCount
}
