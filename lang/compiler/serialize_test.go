package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmbdl/tmbdl/lang/ast"
	"github.com/tmbdl/tmbdl/lang/compiler"
)

func TestSerializeRoundTripSimpleChunk(t *testing.T) {
	fn, err := compiler.Compile(chunk(
		&ast.VarDecl{Name: "x", Init: &ast.NumberLit{Value: 7}},
		&ast.ReturnStmt{Value: &ast.Ident{Name: "x"}},
	))
	require.NoError(t, err)

	data, err := compiler.Serialize(fn)
	require.NoError(t, err)
	require.Equal(t, []byte("TMBDL"), data[:5])
	require.Equal(t, byte(compiler.Version), data[5])

	got, err := compiler.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, fn.Name, got.Name)
	require.Equal(t, fn.Arity, got.Arity)
	require.Equal(t, fn.Chunk.Code, got.Chunk.Code)
	require.Equal(t, fn.Chunk.Constants, got.Chunk.Constants)
	require.Equal(t, fn.Chunk.Lines, got.Chunk.Lines)
}

func TestSerializeRoundTripNestedClosure(t *testing.T) {
	fn, err := compiler.Compile(chunk(closureFuncDecl()))
	require.NoError(t, err)

	data, err := compiler.Serialize(fn)
	require.NoError(t, err)

	got, err := compiler.Deserialize(data)
	require.NoError(t, err)

	outer, ok := got.Chunk.Constants[0].(*compiler.BytecodeFunction)
	require.True(t, ok)
	require.Equal(t, "makeCounter", outer.Name)

	var inner *compiler.BytecodeFunction
	for _, c := range outer.Chunk.Constants {
		if f, ok := c.(*compiler.BytecodeFunction); ok {
			inner = f
		}
	}
	require.NotNil(t, inner)
	require.Equal(t, "inc", inner.Name)
	require.Equal(t, uint16(1), inner.UpvalueCount)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := compiler.Deserialize([]byte("not-a-tmbdl-file-at-all"))
	require.Error(t, err)
}

func TestDeserializeRejectsUnknownVersion(t *testing.T) {
	fn, err := compiler.Compile(chunk())
	require.NoError(t, err)
	data, err := compiler.Serialize(fn)
	require.NoError(t, err)

	data[5] = 0xFF
	_, err = compiler.Deserialize(data)
	require.Error(t, err)
}
