// Package astjson decodes the JSON tree representation of a Chunk that the
// CLI's "compile" subcommand accepts as input (SPEC_FULL.md §6). The
// lexer/parser that would normally produce an ast.Chunk from Tmbdl source
// text is out of scope (spec.md §1); this package is the thin boundary
// the host (or a hand-written test fixture) crosses to hand the generator
// a tree that matches ast's shape. There is no third-party library in the
// retrieval pack for decoding a discriminated-union JSON tree into a Go
// interface hierarchy, so this is plain encoding/json (see DESIGN.md).
package astjson

import (
	"encoding/json"
	"fmt"

	"github.com/tmbdl/tmbdl/lang/ast"
)

// Decode parses data into a *ast.Chunk. data must be a JSON object with
// "name" and "body" fields, where "body" is a Block object and every
// Stmt/Expr node is a JSON object carrying a "type" field naming one of
// ast's node types (e.g. "VarDecl", "BinaryExpr") plus that node's fields,
// using the same field names as the corresponding Go struct (lowercased),
// except that the Value of a BoolLit, NumberLit or StringLit is read from
// "boolvalue", "numvalue" or "strvalue" respectively.
func Decode(data []byte) (*ast.Chunk, error) {
	var raw struct {
		Name string          `json:"name"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("astjson: decode chunk: %w", err)
	}
	body, err := decodeBlock(raw.Body)
	if err != nil {
		return nil, err
	}
	return &ast.Chunk{Name: raw.Name, Body: body}, nil
}

type node struct {
	Type string `json:"type"`
	Ln   int    `json:"ln"`

	Name      string          `json:"name"`
	Value     json.RawMessage `json:"value"`
	Init      json.RawMessage `json:"init"`
	Params    []string        `json:"params"`
	Body      json.RawMessage `json:"body"`
	Cond      json.RawMessage `json:"cond"`
	Then      json.RawMessage `json:"then"`
	Else      json.RawMessage `json:"else"`
	Iterable  json.RawMessage `json:"iterable"`
	X         json.RawMessage `json:"x"`
	Label     json.RawMessage `json:"label"`
	Try       json.RawMessage `json:"try"`
	RescueVar string          `json:"rescuevar"`
	Rescue    json.RawMessage `json:"rescue"`
	Inherits  json.RawMessage `json:"inherits"`
	Methods   []json.RawMessage `json:"methods"`
	Parts     []json.RawMessage `json:"parts"`
	Elems     []json.RawMessage `json:"elems"`
	Keys      []json.RawMessage `json:"keys"`
	Values    []json.RawMessage `json:"values"`
	Object    json.RawMessage `json:"object"`
	Index     json.RawMessage `json:"index"`
	Callee    json.RawMessage `json:"callee"`
	Args      []json.RawMessage `json:"args"`
	Op        string          `json:"op"`
	Left      json.RawMessage `json:"left"`
	Right     json.RawMessage `json:"right"`
	Target    json.RawMessage `json:"target"`
	Postfix   bool            `json:"postfix"`
	Path      string          `json:"path"`
	BoolVal   bool            `json:"boolvalue"`
	NumVal    float64         `json:"numvalue"`
	StrVal    string          `json:"strvalue"`
}

func decodeBlock(data json.RawMessage) (*ast.Block, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw struct {
		Stmts []json.RawMessage `json:"stmts"`
		Ln    int               `json:"ln"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("astjson: decode block: %w", err)
	}
	stmts := make([]ast.Stmt, len(raw.Stmts))
	for i, s := range raw.Stmts {
		st, err := decodeStmt(s)
		if err != nil {
			return nil, err
		}
		stmts[i] = st
	}
	return &ast.Block{Stmts: stmts, Ln: raw.Ln}, nil
}

func decodeExpr(data json.RawMessage) (ast.Expr, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("astjson: decode expr: %w", err)
	}

	switch n.Type {
	case "NullLit":
		return &ast.NullLit{Ln: n.Ln}, nil
	case "BoolLit":
		return &ast.BoolLit{Value: n.BoolVal, Ln: n.Ln}, nil
	case "NumberLit":
		return &ast.NumberLit{Value: n.NumVal, Ln: n.Ln}, nil
	case "StringLit":
		return &ast.StringLit{Value: n.StrVal, Ln: n.Ln}, nil
	case "TemplateLit":
		parts, err := decodeExprList(n.Parts)
		if err != nil {
			return nil, err
		}
		return &ast.TemplateLit{Parts: parts, Ln: n.Ln}, nil
	case "Ident":
		return &ast.Ident{Name: n.Name, Ln: n.Ln}, nil
	case "ArrayLit":
		elems, err := decodeExprList(n.Elems)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Elems: elems, Ln: n.Ln}, nil
	case "ObjectLit":
		keys, err := decodeExprList(n.Keys)
		if err != nil {
			return nil, err
		}
		values, err := decodeExprList(n.Values)
		if err != nil {
			return nil, err
		}
		return &ast.ObjectLit{Keys: keys, Values: values, Ln: n.Ln}, nil
	case "IndexExpr":
		obj, err := decodeExpr(n.Object)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpr(n.Index)
		if err != nil {
			return nil, err
		}
		return &ast.IndexExpr{Object: obj, Index: idx, Ln: n.Ln}, nil
	case "PropertyExpr":
		obj, err := decodeExpr(n.Object)
		if err != nil {
			return nil, err
		}
		return &ast.PropertyExpr{Object: obj, Name: n.Name, Ln: n.Ln}, nil
	case "CallExpr":
		callee, err := decodeExpr(n.Callee)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(n.Args)
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{Callee: callee, Args: args, Ln: n.Ln}, nil
	case "FuncExpr":
		body, err := decodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncExpr{Params: n.Params, Body: body, Ln: n.Ln}, nil
	case "UnaryExpr":
		x, err := decodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: n.Op, X: x, Ln: n.Ln}, nil
	case "BinaryExpr":
		left, right, err := decodeLeftRight(n)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: n.Op, Left: left, Right: right, Ln: n.Ln}, nil
	case "LogicalExpr":
		left, right, err := decodeLeftRight(n)
		if err != nil {
			return nil, err
		}
		return &ast.LogicalExpr{Op: n.Op, Left: left, Right: right, Ln: n.Ln}, nil
	case "AssignExpr":
		target, err := decodeExpr(n.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{Target: target, Value: value, Ln: n.Ln}, nil
	case "CompoundAssignExpr":
		target, err := decodeExpr(n.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.CompoundAssignExpr{Target: target, Op: n.Op, Value: value, Ln: n.Ln}, nil
	case "UpdateExpr":
		target, err := decodeExpr(n.Target)
		if err != nil {
			return nil, err
		}
		return &ast.UpdateExpr{Target: target, Op: n.Op, Postfix: n.Postfix, Ln: n.Ln}, nil
	case "ImportExpr":
		return &ast.ImportExpr{Path: n.Path, Ln: n.Ln}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown expression type %q", n.Type)
	}
}

func decodeLeftRight(n node) (ast.Expr, ast.Expr, error) {
	left, err := decodeExpr(n.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := decodeExpr(n.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func decodeExprList(raw []json.RawMessage) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(raw))
	for i, r := range raw {
		e, err := decodeExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func decodeStmt(data json.RawMessage) (ast.Stmt, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("astjson: decode stmt: %w", err)
	}

	switch n.Type {
	case "VarDecl":
		init, err := decodeExpr(n.Init)
		if err != nil {
			return nil, err
		}
		return &ast.VarDecl{Name: n.Name, Init: init, Ln: n.Ln}, nil
	case "FuncDecl":
		body, err := decodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncDecl{Name: n.Name, Params: n.Params, Body: body, Ln: n.Ln}, nil
	case "ReturnStmt":
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: value, Ln: n.Ln}, nil
	case "IfStmt":
		cond, err := decodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeBlock(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeBlock(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els, Ln: n.Ln}, nil
	case "WhileStmt":
		cond, err := decodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body, Ln: n.Ln}, nil
	case "ForInStmt":
		iterable, err := decodeExpr(n.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.ForInStmt{Name: n.Name, Iterable: iterable, Body: body, Ln: n.Ln}, nil
	case "BreakStmt":
		return &ast.BreakStmt{Ln: n.Ln}, nil
	case "ContinueStmt":
		return &ast.ContinueStmt{Ln: n.Ln}, nil
	case "ExprStmt":
		x, err := decodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x, Ln: n.Ln}, nil
	case "PrintStmt":
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.PrintStmt{Value: value, Ln: n.Ln}, nil
	case "EyeofStmt":
		label, err := decodeExpr(n.Label)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.EyeofStmt{Label: label, Value: value, Ln: n.Ln}, nil
	case "ExportStmt":
		value, err := decodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ExportStmt{Name: n.Name, Value: value, Ln: n.Ln}, nil
	case "AttemptStmt":
		try, err := decodeBlock(n.Try)
		if err != nil {
			return nil, err
		}
		rescue, err := decodeBlock(n.Rescue)
		if err != nil {
			return nil, err
		}
		return &ast.AttemptStmt{Try: try, RescueVar: n.RescueVar, Rescue: rescue, Ln: n.Ln}, nil
	case "ClassDecl":
		inherits, err := decodeExpr(n.Inherits)
		if err != nil {
			return nil, err
		}
		methods := make([]*ast.FuncDecl, len(n.Methods))
		for i, m := range n.Methods {
			st, err := decodeStmt(m)
			if err != nil {
				return nil, err
			}
			fd, ok := st.(*ast.FuncDecl)
			if !ok {
				return nil, fmt.Errorf("astjson: ClassDecl method %d is not a FuncDecl", i)
			}
			methods[i] = fd
		}
		return &ast.ClassDecl{Name: n.Name, Inherits: inherits, Methods: methods, Ln: n.Ln}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown statement type %q", n.Type)
	}
}
