package literals

import (
	"go/ast"

	ah "github.com/burrowers/obfstr/internal/asthelper"
)

// obfuscateXref rewrites obf.Xref(p) into obf.XrefAt(site, p), declaring a
// package-level site holding a random offset and seed.
func (r *rewriter) obfuscateXref(call *ast.CallExpr) (ast.Node, error) {
	if err := r.args(call, 1); err != nil {
		return nil, err
	}
	e := r.entropy(call)
	offset := uint32(r.entropy(call, "offset"))
	seed := r.entropy(call, "seed")
	site := r.declare("Xref", e, ah.CallExpr(r.sel("NewXrefSite"),
		ah.Conv("uintptr", ah.HexLit(uint64(offset))),
		ah.HexLit(seed),
	))
	return ah.CallExpr(r.sel("XrefAt"), ast.NewIdent(site), call.Args[0]), nil
}
