package compiler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Binary container format (spec.md §4.4), grounded on the pack's own
// bytecode/format.go (kristofer-smog): a magic/version header, a flat table
// of functions, and a constant pool per function where nested-function
// constants are index references into that table rather than recursively
// nested blobs. Unlike that reference, which recurses Encode(nested) inline,
// Tmbdl flattens the whole function graph up front (pre-order DFS) so a
// function that appears as a constant in two places is written once.
var magic = [5]byte{'T', 'M', 'B', 'D', 'L'}

const (
	constNull byte = iota
	constBool
	constNumber
	constString
	constFuncRef
)

// Serialize flattens the function graph rooted at main into the binary
// container format and returns it as a byte slice.
func Serialize(main *BytecodeFunction) ([]byte, error) {
	order, index := flatten(main)

	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(Version)

	if err := writeU32(&buf, uint32(len(order))); err != nil {
		return nil, err
	}
	for _, fn := range order {
		if err := writeFunction(&buf, fn, index); err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	if err := writeU32(&buf, index[main]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten performs a pre-order depth-first walk of the function graph
// reachable from main via MAKE_CLOSURE constants, assigning each distinct
// *BytecodeFunction the index of its first appearance.
func flatten(main *BytecodeFunction) ([]*BytecodeFunction, map[*BytecodeFunction]uint32) {
	var order []*BytecodeFunction
	index := make(map[*BytecodeFunction]uint32)

	var visit func(fn *BytecodeFunction)
	visit = func(fn *BytecodeFunction) {
		if _, ok := index[fn]; ok {
			return
		}
		index[fn] = uint32(len(order))
		order = append(order, fn)
		for _, c := range fn.Chunk.Constants {
			if nested, ok := c.(*BytecodeFunction); ok {
				visit(nested)
			}
		}
	}
	visit(main)
	return order, index
}

func writeFunction(w io.Writer, fn *BytecodeFunction, index map[*BytecodeFunction]uint32) error {
	if err := writeString(w, fn.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, fn.Arity); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, fn.UpvalueCount); err != nil {
		return err
	}

	if err := writeU32(w, uint32(len(fn.Chunk.Constants))); err != nil {
		return err
	}
	for _, c := range fn.Chunk.Constants {
		if err := writeConstant(w, c, index); err != nil {
			return err
		}
	}

	if err := writeU32(w, uint32(len(fn.Chunk.Code))); err != nil {
		return err
	}
	if _, err := w.Write(fn.Chunk.Code); err != nil {
		return err
	}

	if len(fn.Chunk.Lines) != len(fn.Chunk.Code) {
		return fmt.Errorf("line table length %d does not match code length %d", len(fn.Chunk.Lines), len(fn.Chunk.Code))
	}
	if err := writeU32(w, uint32(len(fn.Chunk.Lines))); err != nil {
		return err
	}
	for _, ln := range fn.Chunk.Lines {
		if ln < 0 || ln > 0xFFFF {
			return fmt.Errorf("line number %d out of range for 16-bit line table", ln)
		}
		if err := binary.Write(w, binary.BigEndian, uint16(ln)); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, c interface{}, index map[*BytecodeFunction]uint32) error {
	switch v := c.(type) {
	case nil:
		_, err := w.Write([]byte{constNull})
		return err
	case bool:
		b := byte(0)
		if v {
			b = 1
		}
		_, err := w.Write([]byte{constBool, b})
		return err
	case float64:
		if _, err := w.Write([]byte{constNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, math.Float64bits(v))
	case string:
		if _, err := w.Write([]byte{constString}); err != nil {
			return err
		}
		return writeString(w, v)
	case *BytecodeFunction:
		if _, err := w.Write([]byte{constFuncRef}); err != nil {
			return err
		}
		return writeU32(w, index[v])
	default:
		return fmt.Errorf("unsupported constant type %T", c)
	}
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.BigEndian, v)
}

// rawFunction is the result of the first deserialization pass: everything
// except function-ref constants, which are left as pending indices into the
// function table until every function has been read.
type rawFunction struct {
	fn       *BytecodeFunction
	funcRefs map[int]uint32 // constant index -> function table index
}

// Deserialize parses the binary container format produced by Serialize and
// returns its main function.
func Deserialize(data []byte) (*BytecodeFunction, error) {
	r := bytes.NewReader(data)

	var gotMagic [5]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("not a tmbdl bytecode file (bad magic)")
	}
	version, err := readU8(r)
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported bytecode version %d (expected %d)", version, Version)
	}

	count, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading function count: %w", err)
	}

	raws := make([]rawFunction, count)
	for i := range raws {
		raw, err := readFunction(r)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		raws[i] = raw
	}

	mainIndex, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading main index: %w", err)
	}
	if mainIndex >= uint32(len(raws)) {
		return nil, fmt.Errorf("main index %d out of range (%d functions)", mainIndex, len(raws))
	}

	for _, raw := range raws {
		for constIdx, targetIdx := range raw.funcRefs {
			if targetIdx >= uint32(len(raws)) {
				return nil, fmt.Errorf("function reference %d out of range (%d functions)", targetIdx, len(raws))
			}
			raw.fn.Chunk.Constants[constIdx] = raws[targetIdx].fn
		}
	}
	return raws[mainIndex].fn, nil
}

func readFunction(r io.Reader) (rawFunction, error) {
	name, err := readString(r)
	if err != nil {
		return rawFunction{}, err
	}
	var arity, upvalueCount uint16
	if err := binary.Read(r, binary.BigEndian, &arity); err != nil {
		return rawFunction{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &upvalueCount); err != nil {
		return rawFunction{}, err
	}

	constCount, err := readU32(r)
	if err != nil {
		return rawFunction{}, err
	}
	constants := make([]interface{}, constCount)
	funcRefs := map[int]uint32{}
	for i := range constants {
		v, ref, isRef, err := readConstant(r)
		if err != nil {
			return rawFunction{}, err
		}
		if isRef {
			funcRefs[i] = ref
		} else {
			constants[i] = v
		}
	}

	codeLen, err := readU32(r)
	if err != nil {
		return rawFunction{}, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return rawFunction{}, err
	}

	lineCount, err := readU32(r)
	if err != nil {
		return rawFunction{}, err
	}
	lines := make([]int, lineCount)
	for i := range lines {
		var ln uint16
		if err := binary.Read(r, binary.BigEndian, &ln); err != nil {
			return rawFunction{}, err
		}
		lines[i] = int(ln)
	}

	return rawFunction{
		fn: &BytecodeFunction{
			Name:         name,
			Arity:        arity,
			UpvalueCount: upvalueCount,
			Chunk: &Chunk{
				Code:      code,
				Constants: constants,
				Lines:     lines,
			},
		},
		funcRefs: funcRefs,
	}, nil
}

// readConstant reads one constant. If it is a function reference, v is nil,
// isRef is true, and ref is the pending function-table index to resolve.
func readConstant(r io.Reader) (v interface{}, ref uint32, isRef bool, err error) {
	tag, err := readU8(r)
	if err != nil {
		return nil, 0, false, err
	}
	switch tag {
	case constNull:
		return nil, 0, false, nil
	case constBool:
		b, err := readU8(r)
		if err != nil {
			return nil, 0, false, err
		}
		return b != 0, 0, false, nil
	case constNumber:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, 0, false, err
		}
		return math.Float64frombits(bits), 0, false, nil
	case constString:
		s, err := readString(r)
		if err != nil {
			return nil, 0, false, err
		}
		return s, 0, false, nil
	case constFuncRef:
		idx, err := readU32(r)
		if err != nil {
			return nil, 0, false, err
		}
		return nil, idx, true, nil
	default:
		return nil, 0, false, fmt.Errorf("unknown constant tag 0x%02x", tag)
	}
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readU8(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}
