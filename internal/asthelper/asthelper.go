// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package asthelper

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
)

// IntLit returns an ast.BasicLit of kind INT
func IntLit(value int) *ast.BasicLit {
	return &ast.BasicLit{
		Kind:  token.INT,
		Value: strconv.Itoa(value),
	}
}

// HexLit returns an ast.BasicLit of kind INT in hexadecimal, "0x1f"
func HexLit(value uint64) *ast.BasicLit {
	return &ast.BasicLit{
		Kind:  token.INT,
		Value: fmt.Sprintf("%#x", value),
	}
}

// Sel "x.name"
func Sel(x, name string) *ast.SelectorExpr {
	return &ast.SelectorExpr{
		X:   ast.NewIdent(x),
		Sel: ast.NewIdent(name),
	}
}

// SliceAll "name[:]"
func SliceAll(name string) *ast.SliceExpr {
	return &ast.SliceExpr{X: ast.NewIdent(name)}
}

// CallExpr "fun(arg)"
func CallExpr(fun ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{
		Fun:  fun,
		Args: args,
	}
}

// Conv "typ(x)"
func Conv(typ string, x ast.Expr) *ast.CallExpr {
	return CallExpr(ast.NewIdent(typ), x)
}

// BlockStmt a block of multiple statments e.g. a function body
func BlockStmt(stmts ...ast.Stmt) *ast.BlockStmt {
	return &ast.BlockStmt{List: stmts}
}

// AssignStmt "lhs tok rhs"
func AssignStmt(lhs ast.Expr, tok token.Token, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{
		Lhs: []ast.Expr{lhs},
		Tok: tok,
		Rhs: []ast.Expr{rhs},
	}
}

// VarDecl "var name = value"
func VarDecl(name string, value ast.Expr) *ast.GenDecl {
	return &ast.GenDecl{
		Tok: token.VAR,
		Specs: []ast.Spec{&ast.ValueSpec{
			Names:  []*ast.Ident{ast.NewIdent(name)},
			Values: []ast.Expr{value},
		}},
	}
}

// ByteArrayLit turns a byte slice like []byte{1, 2, 3} into the AST
// expression [3]byte{0x1, 0x2, 0x3}
func ByteArrayLit(data []byte) *ast.CompositeLit {
	elts := make([]ast.Expr, len(data))
	for i, b := range data {
		elts[i] = HexLit(uint64(b))
	}
	return &ast.CompositeLit{
		Type: &ast.ArrayType{
			Len: IntLit(len(data)),
			Elt: ast.NewIdent("byte"),
		},
		Elts: elts,
	}
}

// WordArrayLit is like ByteArrayLit for UTF-16 words, [n]uint16{...}
func WordArrayLit(data []uint16) *ast.CompositeLit {
	lit := WordSliceLit(data)
	lit.Type.(*ast.ArrayType).Len = IntLit(len(data))
	return lit
}

// WordSliceLit "[]uint16{...}"
func WordSliceLit(data []uint16) *ast.CompositeLit {
	elts := make([]ast.Expr, len(data))
	for i, w := range data {
		elts[i] = HexLit(uint64(w))
	}
	return &ast.CompositeLit{
		Type: &ast.ArrayType{Elt: ast.NewIdent("uint16")},
		Elts: elts,
	}
}
