package compiler

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of main and every function it
// (transitively) embeds in its constant pool, one block per function, ordered
// depth-first starting from main. For each instruction the listing shows its
// code offset, opcode name, operand byte (resolved to the named constant or
// local/upvalue slot it addresses, where that is knowable from the chunk
// alone) and source line. Grounded on the teacher's asm.go Dasm, adapted from
// its address-translating round-trip textual format (meant to be re-parsed
// by Asm) to a read-only listing, since spec.md does not define a textual
// assembly format for Tmbdl to round-trip through.
func Disassemble(main *BytecodeFunction, w io.Writer) error {
	return disasmFunction(w, main, map[*BytecodeFunction]bool{})
}

func disasmFunction(w io.Writer, fn *BytecodeFunction, seen map[*BytecodeFunction]bool) error {
	if seen[fn] {
		return nil
	}
	seen[fn] = true

	if _, err := fmt.Fprintf(w, "function %s(arity=%d, upvalues=%d)\n", fn.Name, fn.Arity, fn.UpvalueCount); err != nil {
		return err
	}

	chunk := fn.Chunk
	var nested []*BytecodeFunction
	for ip := 0; ip < len(chunk.Code); {
		op := Opcode(chunk.Code[ip])
		line := chunk.Lines[ip]

		if !hasOperand(op) {
			if _, err := fmt.Fprintf(w, "  %04d  %-14s line %d\n", ip, op, line); err != nil {
				return err
			}
			ip++
			continue
		}

		operand := chunk.Code[ip+1]
		desc := describeOperand(chunk, op, operand)
		width := 2
		if op == MAKE_CLOSURE {
			if childFn, ok := chunk.Constants[operand].(*BytecodeFunction); ok {
				width += 2 * int(childFn.UpvalueCount)
				nested = append(nested, childFn)
			}
		}
		if _, err := fmt.Fprintf(w, "  %04d  %-14s %-4d%s line %d\n", ip, op, operand, desc, line); err != nil {
			return err
		}
		ip += width
	}

	for _, child := range nested {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := disasmFunction(w, child, seen); err != nil {
			return err
		}
	}
	return nil
}

// describeOperand resolves an operand byte to a human-readable suffix where
// the chunk alone makes that possible (a constant-pool entry or an embedded
// function's name); other operands (local slot, jump distance, arg count)
// are self-describing as plain numbers.
func describeOperand(chunk *Chunk, op Opcode, operand byte) string {
	switch op {
	case PUSH_CONST, LOAD_GLOBAL, STORE_GLOBAL, GET_PROP, SET_PROP, IMPORT, EXPORT:
		if int(operand) < len(chunk.Constants) {
			return fmt.Sprintf("  ; %v", chunk.Constants[operand])
		}
	case MAKE_CLOSURE:
		if int(operand) < len(chunk.Constants) {
			if fn, ok := chunk.Constants[operand].(*BytecodeFunction); ok {
				return fmt.Sprintf("  ; %s", fn.Name)
			}
		}
	}
	return ""
}
