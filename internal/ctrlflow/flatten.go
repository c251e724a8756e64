// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

// Package ctrlflow flattens a sequence of statements into a dispatch loop.
//
// Every statement gets a 32-bit key, chained from the previous one through
// a keyed hash of the statement's source text. The emitted loop holds the
// current key and xor mask, runs whichever statement matches the key, and
// advances by xoring the two. The order of the statements is only
// recoverable by replaying the chain.
package ctrlflow

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"

	"golang.org/x/exp/slices"

	"github.com/burrowers/obfstr/internal/asthelper"
	"github.com/burrowers/obfstr/obf"
)

// Entry is one row of a dispatch table.
type Entry struct {
	Stmt string // source text of the statement
	Key  uint32 // value of the current key when Stmt runs
	Xor  uint32 // mask installed after Stmt runs
}

// InitialXor derives the starting xor mask from the initial key.
func InitialXor(key uint32) uint32 {
	return obf.Murmur3([]byte("XOR"), key)
}

// Generate builds the dispatch table for stmts, in statement order.
//
// Keys are not checked for collisions. Two equal keys, or a key equal to
// the exit key, make the loop run the wrong statement or never terminate.
// The chance is about n²/2³³ for n statements.
func Generate(key, xor uint32, stmts []string) []Entry {
	table := make([]Entry, len(stmts))
	for i, stmt := range stmts {
		key ^= xor
		xor = obf.Murmur3([]byte(stmt), key)
		table[i] = Entry{Stmt: stmt, Key: key, Xor: xor}
	}
	return table
}

// Exit returns the sentinel key which ends the loop.
// An empty table exits on the first iteration.
func Exit(key, xor uint32, table []Entry) uint32 {
	if len(table) == 0 {
		return key ^ xor
	}
	last := table[len(table)-1]
	return last.Key ^ last.Xor
}

// Flatten rewrites stmts into a block holding the dispatch loop:
//
//	{
//		k, x := uint32(KEY), uint32(XOR)
//	loop:
//		for {
//			k ^= x
//			switch {
//			case k == 0x1c3a...:
//				stmt
//				x = 0x52f0...
//			...
//			case k == EXIT:
//				break loop
//			}
//		}
//	}
//
// Cases are sorted by key, so their order does not follow the statements.
// The names of the block's variables and label derive from key, so nested
// loops with different keys do not clash.
//
// The statements are moved into the result; they must be valid as per Check.
func Flatten(fset *token.FileSet, stmts []ast.Stmt, key uint32) (*ast.BlockStmt, error) {
	if err := Check(fset, stmts); err != nil {
		return nil, err
	}

	texts := make([]string, len(stmts))
	for i, stmt := range stmts {
		var buf bytes.Buffer
		if err := printer.Fprint(&buf, fset, stmt); err != nil {
			return nil, err
		}
		texts[i] = buf.String()
	}

	xor := InitialXor(key)
	table := Generate(key, xor, texts)
	exit := Exit(key, xor, table)

	keyName := fmt.Sprintf("_obfstrKey%08x", key)
	xorName := fmt.Sprintf("_obfstrXor%08x", key)
	label := ast.NewIdent(fmt.Sprintf("_obfstrLoop%08x", key))

	type dispatchCase struct {
		key  uint32
		body []ast.Stmt
	}
	cases := make([]dispatchCase, 0, len(table)+1)
	for i, entry := range table {
		cases = append(cases, dispatchCase{entry.Key, []ast.Stmt{
			stmts[i],
			asthelper.AssignStmt(ast.NewIdent(xorName), token.ASSIGN, asthelper.HexLit(uint64(entry.Xor))),
		}})
	}
	cases = append(cases, dispatchCase{exit, []ast.Stmt{
		&ast.BranchStmt{Tok: token.BREAK, Label: label},
	}})
	slices.SortStableFunc(cases, func(a, b dispatchCase) bool { return a.key < b.key })

	clauses := make([]ast.Stmt, len(cases))
	for i, c := range cases {
		clauses[i] = &ast.CaseClause{
			List: []ast.Expr{&ast.BinaryExpr{
				X:  ast.NewIdent(keyName),
				Op: token.EQL,
				Y:  asthelper.HexLit(uint64(c.key)),
			}},
			Body: c.body,
		}
	}

	return asthelper.BlockStmt(
		&ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(keyName), ast.NewIdent(xorName)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{
				asthelper.Conv("uint32", asthelper.HexLit(uint64(key))),
				asthelper.Conv("uint32", asthelper.HexLit(uint64(xor))),
			},
		},
		&ast.LabeledStmt{
			Label: label,
			Stmt: &ast.ForStmt{Body: asthelper.BlockStmt(
				asthelper.AssignStmt(ast.NewIdent(keyName), token.XOR_ASSIGN, ast.NewIdent(xorName)),
				// A tagless switch, so that colliding keys still compile.
				&ast.SwitchStmt{Body: asthelper.BlockStmt(clauses...)},
			)},
		},
	), nil
}
