// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"fmt"
	"unsafe"
)

// Str marks a string constant for obfuscation.
func Str(s string) string { return s }

// Bytes marks a string constant to be obfuscated and decoded as a new []byte.
func Bytes(s string) []byte { return []byte(s) }

// StrBuf marks a string constant to be decoded into buf, without allocating.
// The result shares memory with buf. It panics if buf is too small.
func StrBuf(buf []byte, s string) string {
	if len(buf) < len(s) {
		panic(fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(s), len(buf)))
	}
	n := copy(buf, s)
	if n == 0 {
		return ""
	}
	return unsafe.String(&buf[0], n)
}

// Eq marks an equality check against a string constant.
// Rewritten, the constant is compared without being decoded into memory.
func Eq(s, lit string) bool { return s == lit }

// WideStr marks a string constant to be obfuscated as UTF-16.
func WideStr(s string) []uint16 { return Wide(s) }

// Num marks a numeric constant for obfuscation.
func Num[T Number](v T) T { return v }

// Xref marks a pointer to a package-level variable whose address should
// not appear as a plain constant; see XrefAt.
func Xref[T any](p *T) *T { return p }

// Stmt marks a block of statements for control-flow flattening:
//
//	i := 0
//	obf.Stmt(func() {
//		i = 5
//		i *= 24
//		i -= 10
//	})
//
// Rewritten, the function literal disappears and its statements run
// through a dispatch loop keyed by opaque values. The statements may not
// declare variables, use labels, return, or break out of the block;
// declare and initialize any variables beforehand.
func Stmt(f func()) { f() }
