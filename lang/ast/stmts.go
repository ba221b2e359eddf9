package ast

// VarDecl declares a new local binding: `ring name = init` (the generator
// makes top-level declarations locals of the module's main function). Init is
// nil for a bare declaration, in which case the generator initializes the
// binding to null.
type VarDecl struct {
	Name string
	Init Expr
	Ln   int
}

// FuncDecl declares a named function: `song name(params) { body }`. It is
// sugar for a VarDecl whose Init is a FuncExpr, but kept distinct because the
// generator binds the name before compiling the body so the function can
// call itself recursively by name.
type FuncDecl struct {
	Name   string
	Params []string
	Body   *Block
	Ln     int
}

// ReturnStmt is `answer value` (value may be nil, meaning null).
type ReturnStmt struct {
	Value Expr
	Ln    int
}

// IfStmt is `perhaps cond { then } [otherwise { else }]`.
type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Block // nil if no else-branch
	Ln   int
}

// WhileStmt is `wander (cond) { body }`.
type WhileStmt struct {
	Cond Expr
	Body *Block
	Ln   int
}

// ForInStmt is `journey (name in iterable) { body }`.
type ForInStmt struct {
	Name     string
	Iterable Expr
	Body     *Block
	Ln       int
}

// BreakStmt is `flee`. Only valid inside a loop body; the generator rejects
// it otherwise at compile time (spec.md §4.2.5).
type BreakStmt struct{ Ln int }

// ContinueStmt is `onwards`. Only valid inside a loop body.
type ContinueStmt struct{ Ln int }

// ExprStmt is an expression evaluated for its side effects; the generator
// always emits a trailing POP (spec.md invariant 1).
type ExprStmt struct {
	X  Expr
	Ln int
}

// PrintStmt is `sing value`.
type PrintStmt struct {
	Value Expr
	Ln    int
}

// EyeofStmt is a debug trace statement: it evaluates Label then Value and
// emits "label:value" to the debug sink (the EYEOF opcode, spec.md §4.1).
type EyeofStmt struct {
	Label Expr
	Value Expr
	Ln    int
}

// ExportStmt is `export name = value`: evaluates value, records it in the
// current module's exports map under name (the EXPORT opcode).
type ExportStmt struct {
	Name  string
	Value Expr
	Ln    int
}

// AttemptStmt is `attempt { try } rescue (errName) { rescue }`. Per spec.md
// §9 the bytecode path only lowers Try; Rescue is parsed but dropped by the
// generator, a documented limitation rather than an oversight.
type AttemptStmt struct {
	Try       *Block
	RescueVar string
	Rescue    *Block
	Ln        int
}

// ClassDecl is `realm Name [inherits Base] { forge ... }`. Per spec.md §9
// the class/vtable model is not implemented in the bytecode pipeline; the
// generator lowers a ClassDecl to a harmless no-op (spec.md §4.2.10) rather
// than refusing to compile it, matching the source's current behavior.
type ClassDecl struct {
	Name     string
	Inherits Expr // nil if no "inherits" clause
	Methods  []*FuncDecl
	Ln       int
}

func (*VarDecl) stmtNode()      {}
func (*FuncDecl) stmtNode()     {}
func (*ReturnStmt) stmtNode()   {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*ForInStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ExprStmt) stmtNode()     {}
func (*PrintStmt) stmtNode()    {}
func (*EyeofStmt) stmtNode()    {}
func (*ExportStmt) stmtNode()   {}
func (*AttemptStmt) stmtNode()  {}
func (*ClassDecl) stmtNode()    {}

func (n *VarDecl) Line() int      { return n.Ln }
func (n *FuncDecl) Line() int     { return n.Ln }
func (n *ReturnStmt) Line() int   { return n.Ln }
func (n *IfStmt) Line() int       { return n.Ln }
func (n *WhileStmt) Line() int    { return n.Ln }
func (n *ForInStmt) Line() int    { return n.Ln }
func (n *BreakStmt) Line() int    { return n.Ln }
func (n *ContinueStmt) Line() int { return n.Ln }
func (n *ExprStmt) Line() int     { return n.Ln }
func (n *PrintStmt) Line() int    { return n.Ln }
func (n *EyeofStmt) Line() int    { return n.Ln }
func (n *ExportStmt) Line() int   { return n.Ln }
func (n *AttemptStmt) Line() int  { return n.Ln }
func (n *ClassDecl) Line() int    { return n.Ln }
