package compiler

import (
	"fmt"

	"github.com/tmbdl/tmbdl/lang/ast"
)

// Error is a compile-time (code generation) error, e.g. a break statement
// outside any loop, or a chunk that overflows the single-byte operand
// encoding. Unlike the teacher, whose compiler package consumes an
// already-validated, resolver-checked AST and therefore never fails,
// Tmbdl's generator performs lexical resolution inline (spec.md §4.2.1) and
// so is itself the only place such structural errors can be caught.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// upvalueDesc mirrors spec.md §3.5: an upvalue slot in a compiler context,
// recording whether it captures a local of the immediately enclosing
// function (IsLocal) or re-exports an upvalue of that enclosing function.
type upvalueDesc struct {
	Index   uint8
	IsLocal bool
}

type localVar struct {
	Name       string
	Depth      int
	IsCaptured bool
}

type loopCtx struct {
	start  int
	breaks []int // operand-byte offsets of pending break JUMPs to patch
}

// fcomp is a compiler context for one function being compiled: the
// transient state of spec.md §3.5. Grounded on the teacher's fcomp/pcomp
// split, collapsed to a single type since Tmbdl's Chunk is self-contained
// (no program-wide constant/function interning table is needed).
type fcomp struct {
	enclosing *fcomp

	chunk      *Chunk
	locals     []localVar
	upvalues   []upvalueDesc
	scopeDepth int
	loops      []*loopCtx
}

// Compile lowers the top-level chunk ch to bytecode, implementing the
// `compile(ast) -> Chunk` contract of spec.md §6. The returned
// *BytecodeFunction is the module's main function.
func Compile(ch *ast.Chunk) (*BytecodeFunction, error) {
	fc := &fcomp{chunk: &Chunk{}}
	fc.beginScope()
	if err := fc.block(ch.Body); err != nil {
		return nil, err
	}
	fc.chunk.emit(PUSH_CONST, 0)
	fc.chunk.emitByte(fc.chunk.AddConstant(nil), 0)
	fc.chunk.emit(RETURN, 0)

	name := ch.Name
	if name == "" {
		name = "main"
	}
	return &BytecodeFunction{
		Name:         name,
		Arity:        0,
		UpvalueCount: uint16(len(fc.upvalues)),
		Chunk:        fc.chunk,
	}, nil
}

func (fc *fcomp) beginScope() { fc.scopeDepth++ }

// endScope pops locals declared at the scope being exited, emitting
// CLOSE_UPVALUE for captured locals and POP otherwise (spec.md §4.2.4).
func (fc *fcomp) endScope(line int) {
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].Depth > fc.scopeDepth {
		last := fc.locals[len(fc.locals)-1]
		if last.IsCaptured {
			fc.chunk.emit(CLOSE_UPVALUE, line)
		} else {
			fc.chunk.emit(POP, line)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

// declareLocal reserves the next stack slot for name at the current scope
// depth. Locals and the operand stack share one value stack (spec.md §3.6:
// a frame's slot 0 is frame.stackOffset), so the slot index assigned here
// must equal the stack depth at the moment the bound value is pushed; every
// call site below maintains that invariant.
func (fc *fcomp) declareLocal(name string) (int, error) {
	if len(fc.locals) >= 256 {
		return 0, &Error{Msg: "too many local variables in function"}
	}
	fc.locals = append(fc.locals, localVar{Name: name, Depth: fc.scopeDepth})
	return len(fc.locals) - 1, nil
}

func (fc *fcomp) resolveLocal(name string) (int, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

func (fc *fcomp) addUpvalue(index uint8, isLocal bool) (uint8, error) {
	for i, uv := range fc.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return uint8(i), nil
		}
	}
	if len(fc.upvalues) >= 256 {
		return 0, &Error{Msg: "too many captured variables in function"}
	}
	fc.upvalues = append(fc.upvalues, upvalueDesc{Index: index, IsLocal: isLocal})
	return uint8(len(fc.upvalues) - 1), nil
}

// resolveUpvalue implements spec.md §4.2.1 step 2: walk outward one context
// at a time, marking captured locals and chaining an upvalue through each
// intermediate function.
func (fc *fcomp) resolveUpvalue(name string) (uint8, bool, error) {
	if fc.enclosing == nil {
		return 0, false, nil
	}
	if slot, ok := fc.enclosing.resolveLocal(name); ok {
		fc.enclosing.locals[slot].IsCaptured = true
		idx, err := fc.addUpvalue(uint8(slot), true)
		return idx, err == nil, err
	}
	idx, ok, err := fc.enclosing.resolveUpvalue(name)
	if err != nil {
		return 0, false, err
	}
	if ok {
		slot, err := fc.addUpvalue(idx, false)
		return slot, err == nil, err
	}
	return 0, false, nil
}

func (fc *fcomp) loadName(name string, line int) error {
	if slot, ok := fc.resolveLocal(name); ok {
		fc.chunk.emit(LOAD, line)
		fc.chunk.emitByte(byte(slot), line)
		return nil
	}
	idx, ok, err := fc.resolveUpvalue(name)
	if err != nil {
		return err
	}
	if ok {
		fc.chunk.emit(GET_UPVALUE, line)
		fc.chunk.emitByte(idx, line)
		return nil
	}
	fc.chunk.emit(LOAD_GLOBAL, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(name), line)
	return nil
}

// storeName emits the assignment form for name; per spec.md §4.1 every
// store form leaves the assigned value on the stack.
func (fc *fcomp) storeName(name string, line int) error {
	if slot, ok := fc.resolveLocal(name); ok {
		fc.chunk.emit(STORE, line)
		fc.chunk.emitByte(byte(slot), line)
		return nil
	}
	idx, ok, err := fc.resolveUpvalue(name)
	if err != nil {
		return err
	}
	if ok {
		fc.chunk.emit(SET_UPVALUE, line)
		fc.chunk.emitByte(idx, line)
		return nil
	}
	fc.chunk.emit(STORE_GLOBAL, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(name), line)
	return nil
}

func (fc *fcomp) emitJump(op Opcode, line int) int {
	fc.chunk.emit(op, line)
	fc.chunk.emitByte(0xFF, line)
	return len(fc.chunk.Code) - 1
}

func (fc *fcomp) patchJump(operandPos int) error {
	target := len(fc.chunk.Code)
	offset := target - (operandPos + 1)
	if offset < 0 || offset > 0xFF {
		return &Error{Msg: "jump distance too large for 8-bit operand"}
	}
	fc.chunk.Code[operandPos] = byte(offset)
	return nil
}

func (fc *fcomp) emitLoop(loopStart, line int) error {
	fc.chunk.emit(LOOP, line)
	ipAfter := len(fc.chunk.Code) + 1
	offset := ipAfter - loopStart
	if offset < 0 || offset > 0xFF {
		return &Error{Msg: "loop body too large for 8-bit operand"}
	}
	fc.chunk.emitByte(byte(offset), line)
	return nil
}

// compileFunction compiles a nested function (named or anonymous) into its
// own BytecodeFunction and emits the MAKE_CLOSURE sequence for it into the
// current (parent) chunk (spec.md §4.2.2).
func (fc *fcomp) compileFunction(name string, params []string, body *ast.Block, line int) error {
	child := &fcomp{enclosing: fc, chunk: &Chunk{}}
	child.beginScope()
	for _, p := range params {
		if _, err := child.declareLocal(p); err != nil {
			return err
		}
	}
	if err := child.block(body); err != nil {
		return err
	}
	child.chunk.emit(PUSH_CONST, body.Line())
	child.chunk.emitByte(child.chunk.AddConstant(nil), body.Line())
	child.chunk.emit(RETURN, body.Line())

	if len(params) > 0xFFFF {
		return &Error{Line: line, Msg: "too many parameters"}
	}
	bfn := &BytecodeFunction{
		Name:         name,
		Arity:        uint16(len(params)),
		UpvalueCount: uint16(len(child.upvalues)),
		Chunk:        child.chunk,
	}

	constIdx := fc.chunk.AddConstant(bfn)
	fc.chunk.emit(MAKE_CLOSURE, line)
	fc.chunk.emitByte(constIdx, line)
	for _, uv := range child.upvalues {
		if uv.IsLocal {
			fc.chunk.emitByte(1, line)
		} else {
			fc.chunk.emitByte(0, line)
		}
		fc.chunk.emitByte(uv.Index, line)
	}
	return nil
}

func (fc *fcomp) block(b *ast.Block) error {
	for _, s := range b.Stmts {
		if err := fc.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fc *fcomp) stmt(s ast.Stmt) error {
	line := s.Line()
	switch s := s.(type) {
	case *ast.VarDecl:
		if s.Init != nil {
			if err := fc.expr(s.Init); err != nil {
				return err
			}
		} else {
			fc.chunk.emit(PUSH_CONST, line)
			fc.chunk.emitByte(fc.chunk.AddConstant(nil), line)
		}
		_, err := fc.declareLocal(s.Name)
		return err

	case *ast.FuncDecl:
		if _, err := fc.declareLocal(s.Name); err != nil {
			return err
		}
		return fc.compileFunction(s.Name, s.Params, s.Body, line)

	case *ast.ReturnStmt:
		if s.Value != nil {
			if err := fc.expr(s.Value); err != nil {
				return err
			}
		} else {
			fc.chunk.emit(PUSH_CONST, line)
			fc.chunk.emitByte(fc.chunk.AddConstant(nil), line)
		}
		fc.chunk.emit(RETURN, line)
		return nil

	case *ast.IfStmt:
		return fc.ifStmt(s)

	case *ast.WhileStmt:
		return fc.whileStmt(s)

	case *ast.ForInStmt:
		return fc.forInStmt(s)

	case *ast.BreakStmt:
		if len(fc.loops) == 0 {
			return &Error{Line: line, Msg: "break outside of loop"}
		}
		lp := fc.loops[len(fc.loops)-1]
		lp.breaks = append(lp.breaks, fc.emitJump(JUMP, line))
		return nil

	case *ast.ContinueStmt:
		if len(fc.loops) == 0 {
			return &Error{Line: line, Msg: "continue outside of loop"}
		}
		lp := fc.loops[len(fc.loops)-1]
		return fc.emitLoop(lp.start, line)

	case *ast.ExprStmt:
		if err := fc.expr(s.X); err != nil {
			return err
		}
		fc.chunk.emit(POP, line)
		return nil

	case *ast.PrintStmt:
		if err := fc.expr(s.Value); err != nil {
			return err
		}
		fc.chunk.emit(PRINT, line)
		return nil

	case *ast.EyeofStmt:
		if err := fc.expr(s.Label); err != nil {
			return err
		}
		if err := fc.expr(s.Value); err != nil {
			return err
		}
		fc.chunk.emit(EYEOF, line)
		return nil

	case *ast.ExportStmt:
		if err := fc.expr(s.Value); err != nil {
			return err
		}
		fc.chunk.emit(EXPORT, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(s.Name), line)
		return nil

	case *ast.AttemptStmt:
		// spec.md §9 / §4.2.11: only the try-body is lowered; the rescue
		// clause is parsed but intentionally dropped, matching the source's
		// current, documented behavior rather than inventing handler opcodes.
		fc.beginScope()
		if err := fc.block(s.Try); err != nil {
			return err
		}
		fc.endScope(line)
		return nil

	case *ast.ClassDecl:
		// spec.md §9 / §4.2.10: classes are not implemented by the bytecode
		// pipeline. Lower to a harmless no-op rather than refusing to
		// compile, matching the source's current behavior.
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(nil), line)
		fc.chunk.emit(POP, line)
		return nil

	default:
		return &Error{Line: line, Msg: fmt.Sprintf("unsupported statement %T", s)}
	}
}

func (fc *fcomp) ifStmt(s *ast.IfStmt) error {
	line := s.Line()
	if err := fc.expr(s.Cond); err != nil {
		return err
	}
	thenEnd := fc.emitJump(JUMP_IF_FALSE, line)
	fc.chunk.emit(POP, line)

	fc.beginScope()
	if err := fc.block(s.Then); err != nil {
		return err
	}
	fc.endScope(line)

	done := fc.emitJump(JUMP, line)
	if err := fc.patchJump(thenEnd); err != nil {
		return err
	}
	fc.chunk.emit(POP, line)

	if s.Else != nil {
		fc.beginScope()
		if err := fc.block(s.Else); err != nil {
			return err
		}
		fc.endScope(line)
	}
	return fc.patchJump(done)
}

func (fc *fcomp) whileStmt(s *ast.WhileStmt) error {
	line := s.Line()
	loopStart := len(fc.chunk.Code)
	if err := fc.expr(s.Cond); err != nil {
		return err
	}
	exit := fc.emitJump(JUMP_IF_FALSE, line)
	fc.chunk.emit(POP, line)

	lp := &loopCtx{start: loopStart}
	fc.loops = append(fc.loops, lp)
	fc.beginScope()
	if err := fc.block(s.Body); err != nil {
		return err
	}
	fc.endScope(line)
	fc.loops = fc.loops[:len(fc.loops)-1]

	if err := fc.emitLoop(loopStart, line); err != nil {
		return err
	}
	if err := fc.patchJump(exit); err != nil {
		return err
	}
	fc.chunk.emit(POP, line)
	for _, b := range lp.breaks {
		if err := fc.patchJump(b); err != nil {
			return err
		}
	}
	return nil
}

// forInStmt lowers `journey (name in iterable) { body }` to the exact
// __iter/__index desugaring of spec.md §4.2.5.
func (fc *fcomp) forInStmt(s *ast.ForInStmt) error {
	line := s.Line()
	fc.beginScope()

	if err := fc.expr(s.Iterable); err != nil {
		return err
	}
	iterSlot, err := fc.declareLocal("__iter")
	if err != nil {
		return err
	}

	fc.chunk.emit(PUSH_CONST, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(float64(0)), line)
	indexSlot, err := fc.declareLocal("__index")
	if err != nil {
		return err
	}

	fc.chunk.emit(PUSH_CONST, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(nil), line)
	varSlot, err := fc.declareLocal(s.Name)
	if err != nil {
		return err
	}

	head := len(fc.chunk.Code)
	fc.chunk.emit(LOAD, line)
	fc.chunk.emitByte(byte(indexSlot), line)
	fc.chunk.emit(LOAD, line)
	fc.chunk.emitByte(byte(iterSlot), line)
	fc.chunk.emit(LENGTH, line)
	fc.chunk.emit(LT, line)
	exit := fc.emitJump(JUMP_IF_FALSE, line)
	fc.chunk.emit(POP, line)

	fc.chunk.emit(LOAD, line)
	fc.chunk.emitByte(byte(iterSlot), line)
	fc.chunk.emit(LOAD, line)
	fc.chunk.emitByte(byte(indexSlot), line)
	fc.chunk.emit(INDEX_GET, line)
	fc.chunk.emit(STORE, line)
	fc.chunk.emitByte(byte(varSlot), line)
	fc.chunk.emit(POP, line)

	lp := &loopCtx{start: head}
	fc.loops = append(fc.loops, lp)
	fc.beginScope()
	if err := fc.block(s.Body); err != nil {
		return err
	}
	fc.endScope(line)
	fc.loops = fc.loops[:len(fc.loops)-1]

	fc.chunk.emit(LOAD, line)
	fc.chunk.emitByte(byte(indexSlot), line)
	fc.chunk.emit(PUSH_CONST, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(float64(1)), line)
	fc.chunk.emit(ADD, line)
	fc.chunk.emit(STORE, line)
	fc.chunk.emitByte(byte(indexSlot), line)
	fc.chunk.emit(POP, line)
	if err := fc.emitLoop(head, line); err != nil {
		return err
	}

	if err := fc.patchJump(exit); err != nil {
		return err
	}
	fc.chunk.emit(POP, line)
	for _, b := range lp.breaks {
		if err := fc.patchJump(b); err != nil {
			return err
		}
	}

	fc.endScope(line)
	return nil
}

func (fc *fcomp) expr(e ast.Expr) error {
	line := e.Line()
	switch e := e.(type) {
	case *ast.NullLit:
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(nil), line)
		return nil

	case *ast.BoolLit:
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(e.Value), line)
		return nil

	case *ast.NumberLit:
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(e.Value), line)
		return nil

	case *ast.StringLit:
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(e.Value), line)
		return nil

	case *ast.TemplateLit:
		return fc.templateLit(e)

	case *ast.Ident:
		return fc.loadName(e.Name, line)

	case *ast.ArrayLit:
		for _, el := range e.Elems {
			if err := fc.expr(el); err != nil {
				return err
			}
		}
		if len(e.Elems) > 0xFF {
			return &Error{Line: line, Msg: "too many array elements"}
		}
		fc.chunk.emit(MAKE_ARRAY, line)
		fc.chunk.emitByte(byte(len(e.Elems)), line)
		return nil

	case *ast.ObjectLit:
		for i := range e.Keys {
			if err := fc.expr(e.Keys[i]); err != nil {
				return err
			}
			if err := fc.expr(e.Values[i]); err != nil {
				return err
			}
		}
		if len(e.Keys) > 0xFF {
			return &Error{Line: line, Msg: "too many object entries"}
		}
		fc.chunk.emit(MAKE_OBJECT, line)
		fc.chunk.emitByte(byte(len(e.Keys)), line)
		return nil

	case *ast.IndexExpr:
		if err := fc.expr(e.Object); err != nil {
			return err
		}
		if err := fc.expr(e.Index); err != nil {
			return err
		}
		fc.chunk.emit(INDEX_GET, line)
		return nil

	case *ast.PropertyExpr:
		if err := fc.expr(e.Object); err != nil {
			return err
		}
		fc.chunk.emit(GET_PROP, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(e.Name), line)
		return nil

	case *ast.CallExpr:
		if err := fc.expr(e.Callee); err != nil {
			return err
		}
		for _, a := range e.Args {
			if err := fc.expr(a); err != nil {
				return err
			}
		}
		if len(e.Args) > 0xFF {
			return &Error{Line: line, Msg: "too many call arguments"}
		}
		fc.chunk.emit(CALL, line)
		fc.chunk.emitByte(byte(len(e.Args)), line)
		return nil

	case *ast.FuncExpr:
		return fc.compileFunction("", e.Params, e.Body, line)

	case *ast.UnaryExpr:
		if err := fc.expr(e.X); err != nil {
			return err
		}
		switch e.Op {
		case "-":
			fc.chunk.emit(NEG, line)
		case "not":
			fc.chunk.emit(NOT, line)
		default:
			return &Error{Line: line, Msg: "unknown unary operator " + e.Op}
		}
		return nil

	case *ast.BinaryExpr:
		if err := fc.expr(e.Left); err != nil {
			return err
		}
		if err := fc.expr(e.Right); err != nil {
			return err
		}
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			return &Error{Line: line, Msg: "unknown binary operator " + e.Op}
		}
		fc.chunk.emit(op, line)
		return nil

	case *ast.LogicalExpr:
		return fc.logicalExpr(e)

	case *ast.AssignExpr:
		return fc.assignExpr(e)

	case *ast.CompoundAssignExpr:
		return fc.compoundAssignExpr(e)

	case *ast.UpdateExpr:
		return fc.updateExpr(e)

	case *ast.ImportExpr:
		fc.chunk.emit(IMPORT, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(e.Path), line)
		return nil

	default:
		return &Error{Line: line, Msg: fmt.Sprintf("unsupported expression %T", e)}
	}
}

var binaryOpcodes = map[string]Opcode{
	"+": ADD, "-": SUB, "*": MUL, "/": DIV, "%": MOD,
	"==": EQ, "!=": NEQ, "<": LT, "<=": LTE, ">": GT, ">=": GTE,
}

func (fc *fcomp) templateLit(e *ast.TemplateLit) error {
	line := e.Line()
	if len(e.Parts) == 0 {
		fc.chunk.emit(PUSH_CONST, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(""), line)
		return nil
	}
	if err := fc.expr(e.Parts[0]); err != nil {
		return err
	}
	for _, p := range e.Parts[1:] {
		if err := fc.expr(p); err != nil {
			return err
		}
		fc.chunk.emit(ADD, line)
	}
	return nil
}

// logicalExpr implements spec.md §4.2.6: JUMP_IF_* never pops, so the
// preserved left operand remains on the stack when short-circuiting.
func (fc *fcomp) logicalExpr(e *ast.LogicalExpr) error {
	line := e.Line()
	if err := fc.expr(e.Left); err != nil {
		return err
	}
	switch e.Op {
	case "with": // AND
		end := fc.emitJump(JUMP_IF_FALSE, line)
		fc.chunk.emit(POP, line)
		if err := fc.expr(e.Right); err != nil {
			return err
		}
		return fc.patchJump(end)
	case "either": // OR
		rhs := fc.emitJump(JUMP_IF_FALSE, line)
		end := fc.emitJump(JUMP, line)
		if err := fc.patchJump(rhs); err != nil {
			return err
		}
		fc.chunk.emit(POP, line)
		if err := fc.expr(e.Right); err != nil {
			return err
		}
		return fc.patchJump(end)
	default:
		return &Error{Line: line, Msg: "unknown logical operator " + e.Op}
	}
}

// assignExpr implements plain `target = value` for every assignable target
// shape (spec.md §4.1's "leaves value on stack" rule applies throughout).
func (fc *fcomp) assignExpr(e *ast.AssignExpr) error {
	line := e.Line()
	switch t := e.Target.(type) {
	case *ast.Ident:
		if err := fc.expr(e.Value); err != nil {
			return err
		}
		return fc.storeName(t.Name, line)

	case *ast.IndexExpr:
		if err := fc.expr(t.Object); err != nil {
			return err
		}
		if err := fc.expr(t.Index); err != nil {
			return err
		}
		if err := fc.expr(e.Value); err != nil {
			return err
		}
		fc.chunk.emit(INDEX_SET, line)
		return nil

	case *ast.PropertyExpr:
		if err := fc.expr(t.Object); err != nil {
			return err
		}
		if err := fc.expr(e.Value); err != nil {
			return err
		}
		fc.chunk.emit(SET_PROP, line)
		fc.chunk.emitByte(fc.chunk.AddConstant(t.Name), line)
		return nil

	default:
		return &Error{Line: line, Msg: fmt.Sprintf("invalid assignment target %T", e.Target)}
	}
}

// compoundAssignExpr and updateExpr implement spec.md §4.2.7. Both are
// restricted to identifier targets: the instruction set has no
// stack-duplication primitive beyond single-value DUP, so re-reading an
// arbitrary obj[idx]/obj.prop target without re-evaluating (and so
// re-running any side effects of) obj/idx is not expressible.
func (fc *fcomp) compoundAssignExpr(e *ast.CompoundAssignExpr) error {
	line := e.Line()
	id, ok := e.Target.(*ast.Ident)
	if !ok {
		return &Error{Line: line, Msg: "compound assignment target must be an identifier"}
	}
	if err := fc.loadName(id.Name, line); err != nil {
		return err
	}
	if err := fc.expr(e.Value); err != nil {
		return err
	}
	op, ok := binaryOpcodes[e.Op]
	if !ok {
		return &Error{Line: line, Msg: "unknown compound-assignment operator " + e.Op}
	}
	fc.chunk.emit(op, line)
	return fc.storeName(id.Name, line)
}

// updateExpr lowers `x++`/`x--`/`++x`/`--x`. For prefix, the stored
// (incremented) value is also the expression's result, matching STORE's
// leaves-value-on-stack rule directly. For postfix, the pre-update value
// must be the result, so the old value is DUP'd before computing and
// storing the new one, then the (now-redundant) stored copy is popped,
// leaving the saved original on top.
func (fc *fcomp) updateExpr(e *ast.UpdateExpr) error {
	line := e.Line()
	id, ok := e.Target.(*ast.Ident)
	if !ok {
		return &Error{Line: line, Msg: "update target must be an identifier"}
	}
	op, ok := binaryOpcodes[e.Op]
	if !ok {
		return &Error{Line: line, Msg: "unknown update operator " + e.Op}
	}

	if err := fc.loadName(id.Name, line); err != nil {
		return err
	}
	if e.Postfix {
		fc.chunk.emit(DUP, line)
	}
	fc.chunk.emit(PUSH_CONST, line)
	fc.chunk.emitByte(fc.chunk.AddConstant(float64(1)), line)
	fc.chunk.emit(op, line)
	if err := fc.storeName(id.Name, line); err != nil {
		return err
	}
	if e.Postfix {
		fc.chunk.emit(POP, line)
	}
	return nil
}
