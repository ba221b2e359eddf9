package machine_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmbdl/tmbdl/lang/ast"
	"github.com/tmbdl/tmbdl/lang/compiler"
	"github.com/tmbdl/tmbdl/lang/machine"
)

func chunk(stmts ...ast.Stmt) *ast.Chunk {
	return &ast.Chunk{Name: "test", Body: &ast.Block{Stmts: stmts}}
}

func id(name string) *ast.Ident { return &ast.Ident{Name: name} }

func num(v float64) *ast.NumberLit { return &ast.NumberLit{Value: v} }

// runChunk compiles and runs c on a fresh Thread, returning its stdout.
func runChunk(t *testing.T, c *ast.Chunk) string {
	t.Helper()
	fn, err := compiler.Compile(c)
	require.NoError(t, err)
	return runFn(t, fn)
}

func runFn(t *testing.T, fn *compiler.BytecodeFunction) string {
	t.Helper()
	var out bytes.Buffer
	th := &machine.Thread{Stdout: &out, Globals: machine.NewGlobals()}
	_, err := th.Run(context.Background(), fn)
	require.NoError(t, err)
	return out.String()
}

// Scenario 1: closure counter. song makeCounter(){ ring c = 0; song inc(){
// c = c + 1; answer c } answer inc } ring f = makeCounter(); sing f(); sing
// f(); sing f()
func TestClosureCounter(t *testing.T) {
	inc := &ast.FuncDecl{
		Name: "inc",
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{X: &ast.AssignExpr{
				Target: id("c"),
				Value:  &ast.BinaryExpr{Op: "+", Left: id("c"), Right: num(1)},
			}},
			&ast.ReturnStmt{Value: id("c")},
		}},
	}
	makeCounter := &ast.FuncDecl{
		Name: "makeCounter",
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.VarDecl{Name: "c", Init: num(0)},
			inc,
			&ast.ReturnStmt{Value: id("inc")},
		}},
	}
	c := chunk(
		makeCounter,
		&ast.VarDecl{Name: "f", Init: &ast.CallExpr{Callee: id("makeCounter")}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: id("f")}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: id("f")}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: id("f")}},
	)
	require.Equal(t, "1\n2\n3\n", runChunk(t, c))
}

// Scenario 2: shared capture. song pair(){ ring x = 10; song getX(){ answer
// x } song setX(v){ x = v } answer [getX, setX] } ring p = pair();
// sing p[0](); p[1](42); sing p[0]()
func TestSharedCapture(t *testing.T) {
	getX := &ast.FuncDecl{Name: "getX", Body: &ast.Block{Stmts: []ast.Stmt{
		&ast.ReturnStmt{Value: id("x")},
	}}}
	setX := &ast.FuncDecl{Name: "setX", Params: []string{"v"}, Body: &ast.Block{Stmts: []ast.Stmt{
		&ast.ExprStmt{X: &ast.AssignExpr{Target: id("x"), Value: id("v")}},
	}}}
	pair := &ast.FuncDecl{
		Name: "pair",
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.VarDecl{Name: "x", Init: num(10)},
			getX,
			setX,
			&ast.ReturnStmt{Value: &ast.ArrayLit{Elems: []ast.Expr{id("getX"), id("setX")}}},
		}},
	}
	c := chunk(
		pair,
		&ast.VarDecl{Name: "p", Init: &ast.CallExpr{Callee: id("pair")}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: &ast.IndexExpr{Object: id("p"), Index: num(0)}}},
		&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.IndexExpr{Object: id("p"), Index: num(1)}, Args: []ast.Expr{num(42)}}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: &ast.IndexExpr{Object: id("p"), Index: num(0)}}},
	)
	require.Equal(t, "10\n42\n", runChunk(t, c))
}

// Scenario 3: while with break/continue.
// ring i = 0; ring s = 0;
// wander (i < 10) { i = i + 1; perhaps (i == 5) { onwards } perhaps (i == 8) { flee } s = s + i }
// sing s
func TestWhileBreakContinue(t *testing.T) {
	c := chunk(
		&ast.VarDecl{Name: "i", Init: num(0)},
		&ast.VarDecl{Name: "s", Init: num(0)},
		&ast.WhileStmt{
			Cond: &ast.BinaryExpr{Op: "<", Left: id("i"), Right: num(10)},
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.ExprStmt{X: &ast.AssignExpr{Target: id("i"), Value: &ast.BinaryExpr{Op: "+", Left: id("i"), Right: num(1)}}},
				&ast.IfStmt{
					Cond: &ast.BinaryExpr{Op: "==", Left: id("i"), Right: num(5)},
					Then: &ast.Block{Stmts: []ast.Stmt{&ast.ContinueStmt{}}},
				},
				&ast.IfStmt{
					Cond: &ast.BinaryExpr{Op: "==", Left: id("i"), Right: num(8)},
					Then: &ast.Block{Stmts: []ast.Stmt{&ast.BreakStmt{}}},
				},
				&ast.ExprStmt{X: &ast.AssignExpr{Target: id("s"), Value: &ast.BinaryExpr{Op: "+", Left: id("s"), Right: id("i")}}},
			}},
		},
		&ast.PrintStmt{Value: id("s")},
	)
	require.Equal(t, "23\n", runChunk(t, c))
}

// Scenario 4: for-in over array.
// ring xs = [2,3,5,7]; ring t = 0; journey (x in xs) { t = t + x } sing t
func TestForInOverArray(t *testing.T) {
	c := chunk(
		&ast.VarDecl{Name: "xs", Init: &ast.ArrayLit{Elems: []ast.Expr{num(2), num(3), num(5), num(7)}}},
		&ast.VarDecl{Name: "t", Init: num(0)},
		&ast.ForInStmt{
			Name:     "x",
			Iterable: id("xs"),
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.ExprStmt{X: &ast.AssignExpr{Target: id("t"), Value: &ast.BinaryExpr{Op: "+", Left: id("t"), Right: id("x")}}},
			}},
		},
		&ast.PrintStmt{Value: id("t")},
	)
	require.Equal(t, "17\n", runChunk(t, c))
}

// Scenario 5: short-circuit AND stack cleanliness.
// ring a = sauron; ring b = goldberry; ring r = a with b; sing r
func TestShortCircuitAnd(t *testing.T) {
	c := chunk(
		&ast.VarDecl{Name: "a", Init: &ast.BoolLit{Value: false}},
		&ast.VarDecl{Name: "b", Init: &ast.BoolLit{Value: true}},
		&ast.VarDecl{Name: "r", Init: &ast.LogicalExpr{Op: "with", Left: id("a"), Right: id("b")}},
		&ast.PrintStmt{Value: id("r")},
	)
	require.Equal(t, "false\n", runChunk(t, c))
}

// Scenario 5b: a falsy left side short-circuits without evaluating the
// right side (no side effect observed).
func TestShortCircuitAndSkipsRightSide(t *testing.T) {
	c := chunk(
		&ast.VarDecl{Name: "hit", Init: &ast.BoolLit{Value: false}},
		&ast.VarDecl{Name: "r", Init: &ast.LogicalExpr{
			Op:   "with",
			Left: &ast.BoolLit{Value: false},
			Right: &ast.AssignExpr{
				Target: id("hit"),
				Value:  &ast.BoolLit{Value: true},
			},
		}},
		&ast.PrintStmt{Value: id("r")},
		&ast.PrintStmt{Value: id("hit")},
	)
	require.Equal(t, "false\nfalse\n", runChunk(t, c))
}

// Scenario 6: serialization round-trip via bytecode file. A nested closure
// program must produce identical output whether run directly or after a
// serialize/deserialize round-trip.
func TestSerializationRoundTrip(t *testing.T) {
	adder := &ast.FuncDecl{
		Name:   "adder",
		Params: []string{"n"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.FuncDecl{Name: "add", Params: []string{"x"}, Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: id("x"), Right: id("n")}},
			}}},
			&ast.ReturnStmt{Value: id("add")},
		}},
	}
	c := chunk(
		adder,
		&ast.VarDecl{Name: "add5", Init: &ast.CallExpr{Callee: id("adder"), Args: []ast.Expr{num(5)}}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: id("add5"), Args: []ast.Expr{num(37)}}},
	)

	fn, err := compiler.Compile(c)
	require.NoError(t, err)
	direct := runFn(t, fn)
	require.Equal(t, "42\n", direct)

	data, err := compiler.Serialize(fn)
	require.NoError(t, err)
	roundTripped, err := compiler.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, direct, runFn(t, roundTripped))
}

// Invariant 5/6: upvalue sharing and scope closure — two closures over the
// same parent local observe each other's mutations even once the parent
// frame has returned and its locals have moved out of the live stack.
func TestUpvalueSharingSurvivesParentReturn(t *testing.T) {
	c := chunk(
		&ast.FuncDecl{Name: "pair", Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.VarDecl{Name: "x", Init: num(1)},
			&ast.FuncDecl{Name: "get", Body: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: id("x")}}}},
			&ast.FuncDecl{Name: "set", Params: []string{"v"}, Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.ExprStmt{X: &ast.AssignExpr{Target: id("x"), Value: id("v")}},
			}}},
			&ast.ReturnStmt{Value: &ast.ArrayLit{Elems: []ast.Expr{id("get"), id("set")}}},
		}}},
		&ast.VarDecl{Name: "p", Init: &ast.CallExpr{Callee: id("pair")}},
		&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.IndexExpr{Object: id("p"), Index: num(1)}, Args: []ast.Expr{num(99)}}},
		&ast.PrintStmt{Value: &ast.CallExpr{Callee: &ast.IndexExpr{Object: id("p"), Index: num(0)}}},
	)
	require.Equal(t, "99\n", runChunk(t, c))
}

func TestDivisionByZeroRaisesTypedError(t *testing.T) {
	c := chunk(
		&ast.ExprStmt{X: &ast.BinaryExpr{Op: "/", Left: num(1), Right: num(0)}},
	)
	fn, err := compiler.Compile(c)
	require.NoError(t, err)

	th := &machine.Thread{Stdout: &bytes.Buffer{}, Globals: machine.NewGlobals()}
	_, runErr := th.Run(context.Background(), fn)
	require.Error(t, runErr)
	merr, ok := runErr.(*machine.Error)
	require.True(t, ok)
	require.Equal(t, machine.DivisionByZero, merr.Kind)
}

func TestIndexOutOfRangeYieldsNull(t *testing.T) {
	c := chunk(
		&ast.VarDecl{Name: "xs", Init: &ast.ArrayLit{Elems: []ast.Expr{num(1)}}},
		&ast.PrintStmt{Value: &ast.IndexExpr{Object: id("xs"), Index: num(5)}},
	)
	require.Equal(t, "null\n", runChunk(t, c))
}
