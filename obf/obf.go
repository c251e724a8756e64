// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

// Package obf is the run-time half of obfstr.
//
// Programs call the marker functions in this package, such as [Str],
// [Bytes], [Xref] and [Stmt]. Built normally, the markers are plain
// functions returning their argument. Built through the obfstr command,
// every marker call is rewritten into an obfuscated constant plus a call to
// one of the decode functions below, so the plaintext never appears in the
// compiled binary.
//
// None of this is cryptography. It only raises the cost of automated
// static extraction; anyone with a debugger can read the decoded values.
package obf

import "errors"

var (
	// ErrLengthMismatch is the panic value (wrapped) when a plaintext and
	// its keystream differ in length.
	ErrLengthMismatch = errors.New("obf: input length not equal to keystream length")

	// ErrBufferTooSmall is the panic value (wrapped) when a decode
	// destination cannot hold the decoded data.
	ErrBufferTooSmall = errors.New("obf: destination buffer too small")

	// ErrInvalidText is the panic value (wrapped) when a debug build
	// decodes a string which is not valid UTF-8.
	ErrInvalidText = errors.New("obf: decoded text is not valid UTF-8")
)
