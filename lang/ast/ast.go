// Package ast defines the abstract syntax tree consumed by the code
// generator (package compiler). The lexer, parser, and the concrete
// surface syntax that would produce this tree are out of scope for this
// module (spec.md §1): ast only fixes the shape the generator is
// contractually allowed to assume, matching the teacher's own separation
// of an ast package from its scanner/parser packages.
package ast

// Node is implemented by every AST node. Line is the 1-based source line,
// used to populate a Chunk's parallel line table; it is the only position
// information the bytecode pipeline needs, a deliberate narrowing of the
// teacher's full token.Pos (line+column+file) scheme.
type Node interface {
	Line() int
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Block is a sequence of statements forming a lexical scope.
type Block struct {
	Stmts []Stmt
	Ln    int
}

func (b *Block) Line() int { return b.Ln }

// Chunk is the root of one compiled unit: the top level of a module. A
// function or lambda body is just the *Block inside its FuncDecl/FuncExpr.
type Chunk struct {
	// Name is the module's key, as used by the IMPORT opcode and the module
	// loader (spec.md §4.3.3); for the entry module it is whatever the host
	// chooses (often a file path).
	Name string
	Body *Block
}

func (c *Chunk) Line() int { return 0 }
