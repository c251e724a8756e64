// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

// Package literals rewrites calls to the obf marker functions into their
// obfuscated form, encrypting constants and flattening statements at
// build time.
package literals

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"strconv"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ast/astutil"

	ah "github.com/burrowers/obfstr/internal/asthelper"
	"github.com/burrowers/obfstr/internal/ctrlflow"
	"github.com/burrowers/obfstr/obf"
)

// ImportPath is the package whose marker calls are rewritten.
const ImportPath = "github.com/burrowers/obfstr/obf"

// namePrefix starts every identifier we declare in a rewritten file.
const namePrefix = "_obfstr"

// Obfuscate rewrites the obf marker calls in file, such as obf.Str("lit").
//
// Keys derive from seed and the position of each call, where site stands
// for the file name. The ciphertexts are declared as package-level
// variables appended to the file, and the obf import is dropped if no
// longer used. It reports whether the file changed.
//
// Marker arguments must be constant expressions. Since the file is not
// type-checked, they may only name constants declared in the same file,
// including iota enumerations. Markers which are not called directly,
// such as f := obf.Str, are left alone and fall back to their plain
// runtime behavior.
func Obfuscate(fset *token.FileSet, file *ast.File, site string, seed uint64) (bool, error) {
	imp := obfImport(file)
	if imp == nil {
		return false, nil
	}
	r := &rewriter{
		fset:     fset,
		site:     site,
		seed:     seed,
		pkgName:  "obf",
		consts:   make(map[*ast.Object]types.TypeAndValue),
		implicit: constSources(file),
	}
	if imp.Name != nil {
		r.pkgName = imp.Name.Name
	}
	if r.pkgName == "_" || r.pkgName == "." {
		return false, nil
	}

	astutil.Apply(file, nil, r.post)
	if r.err != nil {
		return false, r.err
	}
	if r.count == 0 {
		return false, nil
	}

	slices.SortFunc(r.decls, func(a, b *ast.GenDecl) bool {
		return declName(a) < declName(b)
	})
	for _, decl := range r.decls {
		file.Decls = append(file.Decls, decl)
	}
	if !astutil.UsesImport(file, ImportPath) {
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		astutil.DeleteNamedImport(fset, file, name, ImportPath)
	}
	return true, nil
}

func obfImport(file *ast.File) *ast.ImportSpec {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err == nil && path == ImportPath {
			return imp
		}
	}
	return nil
}

// constSources maps each const spec without values to the earlier spec in
// the same group whose values and type it repeats.
func constSources(file *ast.File) map[*ast.ValueSpec]*ast.ValueSpec {
	m := make(map[*ast.ValueSpec]*ast.ValueSpec)
	ast.Inspect(file, func(node ast.Node) bool {
		decl, ok := node.(*ast.GenDecl)
		if !ok || decl.Tok != token.CONST {
			return true
		}
		var last *ast.ValueSpec
		for _, spec := range decl.Specs {
			spec := spec.(*ast.ValueSpec)
			if len(spec.Values) > 0 {
				last = spec
			} else if last != nil {
				m[spec] = last
			}
		}
		return false
	})
	return m
}

func declName(decl *ast.GenDecl) string {
	return decl.Specs[0].(*ast.ValueSpec).Names[0].Name
}

type rewriter struct {
	fset    *token.FileSet
	site    string
	seed    uint64
	pkgName string

	// consts caches the values of named constants used by marker
	// arguments, and resolving guards against cycles while computing them.
	consts    map[*ast.Object]types.TypeAndValue
	resolving map[*ast.Object]bool
	implicit  map[*ast.ValueSpec]*ast.ValueSpec

	decls []*ast.GenDecl
	count int
	err   error
}

func (r *rewriter) post(cursor *astutil.Cursor) bool {
	var (
		node ast.Node
		err  error
	)
	switch orig := cursor.Node().(type) {
	case *ast.ExprStmt:
		call, ok := orig.X.(*ast.CallExpr)
		if !ok {
			return true
		}
		if name, _ := r.marker(call); name == "Stmt" {
			node, err = r.flatten(call)
		}
	case *ast.CallExpr:
		node, err = r.rewriteCall(orig)
	}
	if err != nil {
		r.err = err
		return false // stop the traversal
	}
	if node != nil {
		cursor.Replace(withPos(node, cursor.Node().Pos()))
		r.count++
	}
	return true
}

// marker returns the name of the obf function called by call, and its
// type argument if there is one. Calls through a shadowed package name
// are ignored.
func (r *rewriter) marker(call *ast.CallExpr) (name string, typeArg ast.Expr) {
	fun := call.Fun
	if index, ok := fun.(*ast.IndexExpr); ok {
		fun, typeArg = index.X, index.Index
	}
	sel, ok := fun.(*ast.SelectorExpr)
	if !ok {
		return "", nil
	}
	x, ok := sel.X.(*ast.Ident)
	if !ok || x.Name != r.pkgName || x.Obj != nil {
		return "", nil
	}
	return sel.Sel.Name, typeArg
}

func (r *rewriter) rewriteCall(call *ast.CallExpr) (ast.Node, error) {
	name, typeArg := r.marker(call)
	switch name {
	case "Str", "Bytes":
		return r.obfuscateString(call, name)
	case "StrBuf":
		return r.obfuscateStrBuf(call)
	case "Eq":
		return r.obfuscateEq(call)
	case "WideStr":
		return r.obfuscateWide(call)
	case "Wide":
		return r.transcodeWide(call)
	case "Num":
		return r.obfuscateNum(call, typeArg)
	case "Random":
		return r.random(call, typeArg)
	case "Xref":
		return r.obfuscateXref(call)
	case "Position":
		return r.position(call)
	}
	return nil, nil
}

func (r *rewriter) flatten(call *ast.CallExpr) (ast.Node, error) {
	if len(call.Args) != 1 {
		return nil, r.errorf(call, "obf.Stmt takes a single function literal")
	}
	fn, ok := call.Args[0].(*ast.FuncLit)
	if !ok || fn.Type.Params.NumFields() > 0 || fn.Type.Results.NumFields() > 0 {
		return nil, r.errorf(call, "obf.Stmt takes a func() literal")
	}
	return ctrlflow.Flatten(r.fset, fn.Body.List, uint32(r.entropy(call)))
}

// siteID identifies a call as "file:line:column". The position ignores
// //line directives, which generated code may use to point elsewhere.
func (r *rewriter) siteID(node ast.Node) string {
	pos := r.fset.PositionFor(node.Pos(), false)
	return fmt.Sprintf("%s:%d:%d", r.site, pos.Line, pos.Column)
}

func (r *rewriter) entropy(node ast.Node, extra ...string) uint64 {
	return obf.DeriveKey(r.seed, append([]string{r.siteID(node)}, extra...)...)
}

// declare adds a package-level variable for value and returns its name.
func (r *rewriter) declare(kind string, e uint64, value ast.Expr) string {
	name := fmt.Sprintf("%s%s%016x", namePrefix, kind, e)
	r.decls = append(r.decls, ah.VarDecl(name, value))
	return name
}

func (r *rewriter) sel(name string) *ast.SelectorExpr {
	return ah.Sel(r.pkgName, name)
}

// evalConst evaluates a marker argument as a constant expression.
func (r *rewriter) evalConst(expr ast.Expr) (types.TypeAndValue, error) {
	tv, err := r.eval(expr, nil)
	if err != nil {
		return tv, r.errorf(expr, "argument must be a constant expression: %s", types.ExprString(expr))
	}
	return tv, nil
}

// eval type-checks expr in a scope holding the constants it names from
// this file. A non-nil iotaValue is the value of iota within expr.
func (r *rewriter) eval(expr ast.Expr, iotaValue constant.Value) (types.TypeAndValue, error) {
	pkg := types.NewPackage("p", "p")
	scope := pkg.Scope()
	if iotaValue != nil {
		scope.Insert(types.NewConst(token.NoPos, pkg, "iota", types.Typ[types.UntypedInt], iotaValue))
	}
	var err error
	ast.Inspect(expr, func(node ast.Node) bool {
		id, ok := node.(*ast.Ident)
		if !ok || err != nil || id.Obj == nil || id.Obj.Kind != ast.Con {
			return err == nil
		}
		if scope.Lookup(id.Name) != nil {
			return true
		}
		var tv types.TypeAndValue
		if tv, err = r.namedConst(id.Obj); err == nil {
			scope.Insert(types.NewConst(token.NoPos, pkg, id.Name, tv.Type, tv.Value))
		}
		return true
	})
	if err != nil {
		return types.TypeAndValue{}, err
	}
	tv, err := types.Eval(r.fset, pkg, token.NoPos, types.ExprString(expr))
	if err != nil {
		return tv, err
	}
	if tv.Value == nil {
		return tv, fmt.Errorf("%s is not constant", types.ExprString(expr))
	}
	return tv, nil
}

// namedConst computes the value of a constant declared in this file.
func (r *rewriter) namedConst(obj *ast.Object) (types.TypeAndValue, error) {
	if tv, ok := r.consts[obj]; ok {
		return tv, nil
	}
	if r.resolving[obj] {
		return types.TypeAndValue{}, fmt.Errorf("constant %s refers to itself", obj.Name)
	}
	spec, ok := obj.Decl.(*ast.ValueSpec)
	if !ok {
		return types.TypeAndValue{}, fmt.Errorf("unknown declaration for %s", obj.Name)
	}
	i := slices.IndexFunc(spec.Names, func(id *ast.Ident) bool { return id.Obj == obj })
	if src := r.implicit[spec]; src != nil {
		spec = src
	}
	if i < 0 || i >= len(spec.Values) {
		return types.TypeAndValue{}, fmt.Errorf("missing value for %s", obj.Name)
	}
	value := spec.Values[i]
	if spec.Type != nil {
		value = ah.CallExpr(spec.Type, value)
	}
	n, _ := obj.Data.(int) // the iota of the spec

	if r.resolving == nil {
		r.resolving = make(map[*ast.Object]bool)
	}
	r.resolving[obj] = true
	tv, err := r.eval(value, constant.MakeInt64(int64(n)))
	delete(r.resolving, obj)
	if err != nil {
		return tv, err
	}
	r.consts[obj] = tv
	return tv, nil
}

func (r *rewriter) stringConstant(expr ast.Expr) (string, error) {
	tv, err := r.evalConst(expr)
	if err != nil {
		return "", err
	}
	if tv.Value.Kind() != constant.String {
		return "", r.errorf(expr, "argument must be a string constant: %s", types.ExprString(expr))
	}
	return constant.StringVal(tv.Value), nil
}

func (r *rewriter) args(call *ast.CallExpr, want int) error {
	if len(call.Args) != want || call.Ellipsis.IsValid() {
		name, _ := r.marker(call)
		return r.errorf(call, "obf.%s takes %d arguments", name, want)
	}
	return nil
}

func (r *rewriter) errorf(node ast.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", r.fset.Position(node.Pos()), fmt.Sprintf(format, args...))
}

// withPos sets any token.Pos fields under node which affect printing to pos.
// Note that we can't set all token.Pos fields, since some affect the semantics.
//
// This function is useful so that go/printer doesn't try to estimate position
// offsets, which can end up in printing comment directives too early.
//
// Nodes which already have a position, such as the arguments we keep or
// the statements moved into a dispatch loop, are left as they are.
func withPos(node ast.Node, pos token.Pos) ast.Node {
	ast.Inspect(node, func(node ast.Node) bool {
		switch node := node.(type) {
		case *ast.BasicLit:
			if !node.ValuePos.IsValid() {
				node.ValuePos = pos
			}
		case *ast.Ident:
			if !node.NamePos.IsValid() {
				node.NamePos = pos
			}
		case *ast.CompositeLit:
			if !node.Lbrace.IsValid() {
				node.Lbrace = pos
				node.Rbrace = pos
			}
		case *ast.ArrayType:
			if !node.Lbrack.IsValid() {
				node.Lbrack = pos
			}
		case *ast.BinaryExpr:
			if !node.OpPos.IsValid() {
				node.OpPos = pos
			}
		case *ast.CallExpr:
			if !node.Lparen.IsValid() {
				node.Lparen = pos
				node.Rparen = pos
			}
		case *ast.SliceExpr:
			if !node.Lbrack.IsValid() {
				node.Lbrack = pos
				node.Rbrack = pos
			}
		case *ast.BlockStmt:
			if !node.Lbrace.IsValid() {
				node.Lbrace = pos
			}
		case *ast.AssignStmt:
			if !node.TokPos.IsValid() {
				node.TokPos = pos
			}
		case *ast.ForStmt:
			if !node.For.IsValid() {
				node.For = pos
			}
		case *ast.SwitchStmt:
			if !node.Switch.IsValid() {
				node.Switch = pos
			}
		case *ast.CaseClause:
			if !node.Case.IsValid() {
				node.Case = pos
				node.Colon = pos
			}
		case *ast.BranchStmt:
			if !node.TokPos.IsValid() {
				node.TokPos = pos
			}
		}
		return true
	})
	return node
}
