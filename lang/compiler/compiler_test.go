package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmbdl/tmbdl/lang/ast"
	"github.com/tmbdl/tmbdl/lang/compiler"
)

func chunk(stmts ...ast.Stmt) *ast.Chunk {
	return &ast.Chunk{Name: "test", Body: &ast.Block{Stmts: stmts}}
}

func TestCompileEmptyChunkReturnsNull(t *testing.T) {
	fn, err := compiler.Compile(chunk())
	require.NoError(t, err)
	require.Equal(t, "test", fn.Name)
	require.Equal(t, uint16(0), fn.Arity)

	// PUSH_CONST <nil const>, RETURN
	require.Equal(t, []byte{
		byte(compiler.PUSH_CONST), 0,
		byte(compiler.RETURN),
	}, fn.Chunk.Code)
	require.Equal(t, []interface{}{nil}, fn.Chunk.Constants)
}

func TestCompileVarDeclIsLocalSlot(t *testing.T) {
	fn, err := compiler.Compile(chunk(
		&ast.VarDecl{Name: "x", Init: &ast.NumberLit{Value: 42}},
		&ast.ExprStmt{X: &ast.Ident{Name: "x"}},
	))
	require.NoError(t, err)

	require.Equal(t, []byte{
		byte(compiler.PUSH_CONST), 0, // push 42
		byte(compiler.LOAD), 0, // load slot 0 ("x")
		byte(compiler.POP),
		byte(compiler.PUSH_CONST), 1, // push nil (implicit return)
		byte(compiler.RETURN),
	}, fn.Chunk.Code)
}

func TestCompileUndeclaredNameIsGlobal(t *testing.T) {
	fn, err := compiler.Compile(chunk(
		&ast.ExprStmt{X: &ast.Ident{Name: "sing"}},
	))
	require.NoError(t, err)
	require.Equal(t, compiler.LOAD_GLOBAL, compiler.Opcode(fn.Chunk.Code[0]))
	require.Equal(t, "sing", fn.Chunk.Constants[fn.Chunk.Code[1]])
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	_, err := compiler.Compile(chunk(&ast.BreakStmt{}))
	require.Error(t, err)
}

func TestCompileContinueOutsideLoopIsError(t *testing.T) {
	_, err := compiler.Compile(chunk(&ast.ContinueStmt{}))
	require.Error(t, err)
}

func TestCompileWhileLoopPatchesBreakAndContinue(t *testing.T) {
	fn, err := compiler.Compile(chunk(
		&ast.WhileStmt{
			Cond: &ast.BoolLit{Value: true},
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.IfStmt{
					Cond: &ast.BoolLit{Value: true},
					Then: &ast.Block{Stmts: []ast.Stmt{&ast.BreakStmt{}}},
				},
				&ast.ContinueStmt{},
			}},
		},
	))
	require.NoError(t, err)
	require.NotEmpty(t, fn.Chunk.Code)
}

// closureFuncDecl builds `song makeCounter() { ring c = 0; song inc() { c = c + 1; answer c; } answer inc; }`
func closureFuncDecl() *ast.FuncDecl {
	return &ast.FuncDecl{
		Name: "makeCounter",
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.VarDecl{Name: "c", Init: &ast.NumberLit{Value: 0}},
			&ast.FuncDecl{
				Name: "inc",
				Body: &ast.Block{Stmts: []ast.Stmt{
					&ast.ExprStmt{X: &ast.AssignExpr{
						Target: &ast.Ident{Name: "c"},
						Value: &ast.BinaryExpr{
							Op:    "+",
							Left:  &ast.Ident{Name: "c"},
							Right: &ast.NumberLit{Value: 1},
						},
					}},
					&ast.ReturnStmt{Value: &ast.Ident{Name: "c"}},
				}},
			},
			&ast.ReturnStmt{Value: &ast.Ident{Name: "inc"}},
		}},
	}
}

func TestCompileClosureCapturesEnclosingLocalAsUpvalue(t *testing.T) {
	fn, err := compiler.Compile(chunk(closureFuncDecl()))
	require.NoError(t, err)

	var inner *compiler.BytecodeFunction
	for _, c := range fn.Chunk.Constants {
		if outer, ok := c.(*compiler.BytecodeFunction); ok && outer.Name == "makeCounter" {
			for _, ic := range outer.Chunk.Constants {
				if nested, ok := ic.(*compiler.BytecodeFunction); ok && nested.Name == "inc" {
					inner = nested
				}
			}
		}
	}
	require.NotNil(t, inner, "expected to find compiled 'inc' function")
	require.Equal(t, uint16(1), inner.UpvalueCount)
}

func TestCompileClassDeclIsNoOp(t *testing.T) {
	before, err := compiler.Compile(chunk())
	require.NoError(t, err)

	after, err := compiler.Compile(chunk(&ast.ClassDecl{Name: "Thing"}))
	require.NoError(t, err)

	// The ClassDecl contributes exactly PUSH_CONST <nil>, POP and nothing else.
	require.Equal(t, len(before.Chunk.Code)+3, len(after.Chunk.Code))
}

func TestCompileAttemptDropsRescueBlock(t *testing.T) {
	fn, err := compiler.Compile(chunk(&ast.AttemptStmt{
		Try:       &ast.Block{Stmts: []ast.Stmt{&ast.PrintStmt{Value: &ast.StringLit{Value: "ok"}}}},
		RescueVar: "e",
		Rescue:    &ast.Block{Stmts: []ast.Stmt{&ast.PrintStmt{Value: &ast.StringLit{Value: "should not appear"}}}},
	}))
	require.NoError(t, err)
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.(string); ok {
			require.NotEqual(t, "should not appear", s)
		}
	}
}
