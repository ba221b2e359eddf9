package maincmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmbdl/tmbdl/lang/compiler"
	"github.com/tmbdl/tmbdl/lang/machine"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// fileLoader resolves IMPORT module keys to sibling .tmbdlc or .ast.json
// files relative to the directory of the program's entry file (spec.md
// §6). The VM's module cache is keyed by the raw IMPORT operand string, not
// by the resolved path, and resolution is case-sensitive exactly as the
// host filesystem is — this is the documented resolution of spec.md §9's
// open question on path canonicalization (see DESIGN.md).
type fileLoader struct {
	baseDir string
}

func (l *fileLoader) Load(vm *machine.VM, moduleKey string, exports *machine.Map) error {
	candidates := []string{
		filepath.Join(l.baseDir, moduleKey+".tmbdlc"),
		filepath.Join(l.baseDir, moduleKey+".ast.json"),
		filepath.Join(l.baseDir, moduleKey),
	}

	var path string
	for _, cand := range candidates {
		if _, err := os.Stat(cand); err == nil {
			path = cand
			break
		}
	}
	if path == "" {
		return &machine.Error{Kind: machine.ModuleLoadFailure, Message: fmt.Sprintf("module %q: no matching .tmbdlc or .ast.json file next to %s", moduleKey, l.baseDir)}
	}

	var fn *compiler.BytecodeFunction
	var err error
	if filepath.Ext(path) == ".tmbdlc" {
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			fn, err = compiler.Deserialize(data)
		}
	} else {
		fn, err = compileFile(path)
	}
	if err != nil {
		return &machine.Error{Kind: machine.ModuleLoadFailure, Message: fmt.Sprintf("module %q: %s", moduleKey, err), Wrapped: err}
	}

	modExports, err := vm.Thread().RunModule(fn)
	if err != nil {
		return err
	}

	for _, k := range modExports.Keys() {
		v, _ := modExports.Get(k)
		exports.Set(k, v)
	}
	return nil
}
