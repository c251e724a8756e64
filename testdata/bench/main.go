// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

// A simple main package with some literals to obfuscate.
// With relatively heavy dependencies, as benchmark iterations use the build cache.
// We also use a mix of markers: strings, numbers, pointers and statements.

package main

import (
	"fmt"
	"net/http"

	"github.com/burrowers/obfstr/obf"
)

var globalVar = obf.Str("global value")

var hits int

func globalFunc() { fmt.Println(obf.Str("global func body")) }

func main() {
	fmt.Println(globalVar)
	globalFunc()

	total := 0
	obf.Stmt(func() {
		total = obf.Num(40)
		total += 2
		*obf.Xref(&hits) += total
	})
	if obf.Eq(globalVar, "global value") {
		fmt.Println(total, hits)
	}

	http.ListenAndServe(obf.Str(""), nil)
	client := http.Client{Transport: nil}
	client.Do(nil)
}
