// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package main

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
)

// printConfig keeps the positions of the original source via //line
// directives, so that compiler errors, stack traces and debug info point
// at the code the user wrote rather than at our temporary files.
var printConfig = printer.Config{
	Mode:     printer.UseSpaces | printer.TabIndent | printer.SourcePos,
	Tabwidth: 8,
}

// printFile prints a rewritten Go file to a buffer.
func printFile(fset *token.FileSet, file *ast.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := printConfig.Fprint(&buf, fset, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
