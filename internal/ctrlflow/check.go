package ctrlflow

import (
	"fmt"
	"go/ast"
	"go/token"
)

// Check reports the first statement which cannot be moved into a
// dispatch loop case:
//
//   - declarations at the top level, since a later case could not see them
//   - labels at the top level
//   - return and defer statements, which would bind to the enclosing function
//   - break and continue statements with no enclosing loop or switch
//     within the statement, which would bind to the dispatch loop
//
// Function literals are not inspected.
func Check(fset *token.FileSet, stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *ast.DeclStmt:
			return errorf(fset, stmt, "declarations are not allowed; declare them before the statement block")
		case *ast.AssignStmt:
			if stmt.Tok == token.DEFINE {
				return errorf(fset, stmt, "short variable declarations are not allowed; declare them before the statement block")
			}
		case *ast.LabeledStmt:
			return errorf(fset, stmt, "labeled statements are not allowed")
		}
		var err error
		ast.Walk(checker{fset: fset, err: &err}, stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

type checker struct {
	fset *token.FileSet
	err  *error

	loops      int
	breakables int
}

func (c checker) Visit(node ast.Node) ast.Visitor {
	if *c.err != nil {
		return nil
	}
	switch node := node.(type) {
	case *ast.FuncLit:
		return nil
	case *ast.ForStmt, *ast.RangeStmt:
		c.loops++
		c.breakables++
	case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
		c.breakables++
	case *ast.ReturnStmt:
		*c.err = errorf(c.fset, node, "return statements are not allowed")
	case *ast.DeferStmt:
		*c.err = errorf(c.fset, node, "defer statements are not allowed")
	case *ast.BranchStmt:
		if node.Label != nil {
			break
		}
		switch {
		case node.Tok == token.BREAK && c.breakables == 0,
			node.Tok == token.CONTINUE && c.loops == 0:
			*c.err = errorf(c.fset, node, "%s outside of a loop is not allowed", node.Tok)
		}
	}
	return c
}

func errorf(fset *token.FileSet, node ast.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", fset.Position(node.Pos()), fmt.Sprintf(format, args...))
}
