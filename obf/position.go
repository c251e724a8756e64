package obf

import (
	"fmt"
	"strings"
)

// Position returns the byte range of needle within haystack.
// It panics if needle is not a substring.
//
// When both arguments are constant, obfstr checks the call at build time,
// reporting a missing needle as a build error and replacing the call with
// Span so that the haystack need not stay in the binary.
//
// This pairs with a single obfuscated string pool:
//
//	const pool = "FooBarBaz"
//	s := obf.Str(pool)
//	start, end := obf.Position(pool, "Bar")
//	bar := s[start:end]
func Position(haystack, needle string) (start, end int) {
	i := strings.Index(haystack, needle)
	if i < 0 {
		panic(fmt.Sprintf("obf: needle %q not found in the haystack", needle))
	}
	return i, i + len(needle)
}

// Span returns start and end unchanged. It stands in for Position calls
// which were resolved at build time.
func Span(start, end int) (int, int) { return start, end }
