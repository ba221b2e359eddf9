package maincmd

import (
	"context"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/tmbdl/tmbdl/lang/compiler"
	"github.com/tmbdl/tmbdl/lang/machine"
	"github.com/tmbdl/tmbdl/lang/natives"
)

// Run executes a program to completion (spec.md §4.3, §6): file.tmbdlc is
// deserialized, any other extension is compiled first via astjson, then
// both paths run the result on a fresh VM whose globals carry the native
// standard library (package natives) and whose module loader resolves
// sibling files relative to the entry file's directory.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]

	var main *compiler.BytecodeFunction
	var err error
	if filepath.Ext(path) == ".tmbdlc" {
		data, readErr := readFile(path)
		if readErr != nil {
			return readErr
		}
		main, err = compiler.Deserialize(data)
		if err != nil {
			return &machine.Error{Kind: machine.CorruptBytecode, Message: err.Error(), Wrapped: err}
		}
	} else {
		main, err = compileFile(path)
		if err != nil {
			return err
		}
	}

	globals := machine.NewGlobals()
	natives.Install(globals)

	th := &machine.Thread{
		Name:    path,
		Stdout:  stdio.Stdout,
		Stderr:  stdio.Stderr,
		Globals: globals,
		Loader:  (&fileLoader{baseDir: filepath.Dir(path)}).Load,
	}

	_, err = th.Run(ctx, main)
	return err
}
