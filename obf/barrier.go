// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import "sync/atomic"

// opaqueZero is never written, so it always loads zero.
// The compiler cannot prove that, as any package could store to it.
var opaqueZero atomic.Uintptr

// launder returns v, through a path the optimizer cannot fold.
//
//go:noinline
func launder(v uintptr) uintptr {
	return v + opaqueZero.Load()
}

// launderIndex returns an index equal to zero at run time.
// Ciphertext reads are offset by it, so every load has a run-time base.
func launderIndex() int {
	return int(launder(0))
}

// escapeFlag is always false; the stores it guards only exist to make
// values escape to the heap, as the runtime does with its own escapes helper.
var escapeFlag struct {
	b    bool
	sink any
}

func escapes(x any) {
	if escapeFlag.b {
		escapeFlag.sink = x
	}
}

// The decode entry points are reached through these variables, which the
// compiler cannot devirtualize or inline through.
var (
	deobfuscateFunc      = deobfuscate
	deobfuscateWordsFunc = deobfuscateWords
	equalsFunc           = equals
)
