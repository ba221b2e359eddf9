package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/tmbdl/tmbdl/lang/compiler"
)

// Disasm deserializes a .tmbdlc container and prints a human-readable
// instruction listing (spec.md §6; listing format grounded on the
// teacher's asm.go decoder, see lang/compiler/disasm.go).
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	data, err := readFile(args[0])
	if err != nil {
		return err
	}
	main, err := compiler.Deserialize(data)
	if err != nil {
		return fmt.Errorf("deserialize %s: %w", args[0], err)
	}
	return compiler.Disassemble(main, stdio.Stdout)
}
