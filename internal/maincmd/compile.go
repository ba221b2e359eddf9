package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/tmbdl/tmbdl/lang/ast/astjson"
	"github.com/tmbdl/tmbdl/lang/compiler"
)

// Compile lowers a JSON-encoded AST to bytecode and writes the serialized
// container to -o, or stdout if unset (spec.md §4.4, §6).
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	main, err := compileFile(args[0])
	if err != nil {
		return err
	}

	data, err := compiler.Serialize(main)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", args[0], err)
	}

	if c.Out == "" {
		_, err = stdio.Stdout.Write(data)
		return err
	}
	return os.WriteFile(c.Out, data, 0o644)
}

func compileFile(path string) (*compiler.BytecodeFunction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	chunk, err := astjson.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	main, err := compiler.Compile(chunk)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return main, nil
}
