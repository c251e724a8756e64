// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package literals

import (
	"go/ast"
	"go/constant"
	"strings"
	"unicode/utf8"

	ah "github.com/burrowers/obfstr/internal/asthelper"
	"github.com/burrowers/obfstr/obf"
)

// encrypt declares the ciphertext of s and returns its key and a slice
// expression over it.
func (r *rewriter) encrypt(call *ast.CallExpr, s string) (uint32, ast.Expr) {
	e := r.entropy(call)
	key := uint32(e)
	name := r.declare("", e, ah.ByteArrayLit(obf.Encode(key, []byte(s))))
	return key, ah.SliceAll(name)
}

// obfuscateString rewrites obf.Str("lit") and obf.Bytes("lit").
func (r *rewriter) obfuscateString(call *ast.CallExpr, name string) (ast.Node, error) {
	if err := r.args(call, 1); err != nil {
		return nil, err
	}
	s, err := r.stringConstant(call.Args[0])
	if err != nil {
		return nil, err
	}
	key, data := r.encrypt(call, s)
	decode := ah.CallExpr(r.sel("DecodeBytes"), ah.HexLit(uint64(key)), data)
	switch {
	case name == "Bytes":
		return decode, nil
	case !utf8.ValidString(s):
		// DecodeString may check for valid UTF-8.
		return ah.Conv("string", decode), nil
	}
	decode.Fun = r.sel("DecodeString")
	return decode, nil
}

// obfuscateStrBuf rewrites obf.StrBuf(buf, "lit").
func (r *rewriter) obfuscateStrBuf(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 2); err != nil {
		return nil, err
	}
	s, err := r.stringConstant(call.Args[1])
	if err != nil {
		return nil, err
	}
	key, data := r.encrypt(call, s)
	decode := ah.CallExpr(r.sel("DecodeInto"), call.Args[0], ah.HexLit(uint64(key)), data)
	if !utf8.ValidString(s) {
		// DecodeInto may check for valid UTF-8.
		decode.Fun = r.sel("DecodeIntoRaw")
	}
	return decode, nil
}

// position checks obf.Position(haystack, needle) when both arguments are
// constant, replacing it with obf.Span(start, end). Other calls are left
// to fail at run time.
func (r *rewriter) position(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 2); err != nil {
		return nil, err
	}
	var strs [2]string
	for i, arg := range call.Args {
		tv, err := r.eval(arg, nil)
		if err != nil || tv.Value.Kind() != constant.String {
			return nil, nil
		}
		strs[i] = constant.StringVal(tv.Value)
	}
	haystack, needle := strs[0], strs[1]
	start := strings.Index(haystack, needle)
	if start < 0 {
		return nil, r.errorf(call, "obf.Position: needle %q not found in %q", needle, haystack)
	}
	return ah.CallExpr(r.sel("Span"), ah.IntLit(start), ah.IntLit(start+len(needle))), nil
}

// obfuscateEq rewrites obf.Eq(s, "lit").
func (r *rewriter) obfuscateEq(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 2); err != nil {
		return nil, err
	}
	s, err := r.stringConstant(call.Args[1])
	if err != nil {
		return nil, err
	}
	key, data := r.encrypt(call, s)
	return ah.CallExpr(r.sel("EqualString"), ah.HexLit(uint64(key)), data, call.Args[0]), nil
}

// obfuscateWide rewrites obf.WideStr("lit").
func (r *rewriter) obfuscateWide(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 1); err != nil {
		return nil, err
	}
	s, err := r.stringConstant(call.Args[0])
	if err != nil {
		return nil, err
	}
	e := r.entropy(call)
	key := uint32(e)
	name := r.declare("Wide", e, ah.WordArrayLit(obf.EncodeWords(key, obf.Wide(s))))
	return ah.CallExpr(r.sel("DecodeWide"), ah.HexLit(uint64(key)), ah.SliceAll(name)), nil
}

// transcodeWide rewrites obf.Wide("lit") into a plain []uint16 literal.
func (r *rewriter) transcodeWide(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 1); err != nil {
		return nil, err
	}
	if _, err := r.evalConst(call.Args[0]); err != nil {
		// obf.Wide also works on variables at run time.
		return nil, nil
	}
	s, err := r.stringConstant(call.Args[0])
	if err != nil {
		return nil, err
	}
	return ah.WordSliceLit(obf.Wide(s)), nil
}
