// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import "fmt"

// ObfuscateWords xors the UTF-16 words s with the keystream k.
func ObfuscateWords(s, k []uint16) []uint16 {
	if len(s) != len(k) {
		panic(fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(s), len(k)))
	}
	data := make([]uint16, len(s))
	for i := range s {
		data[i] = s[i] ^ k[i]
	}
	return data
}

// DeobfuscateWords xors the ciphertext s with the keystream k into dst.
func DeobfuscateWords(dst, s, k []uint16) {
	if len(s) != len(k) {
		panic(fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(s), len(k)))
	}
	if len(dst) < len(s) {
		panic(fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(s), len(dst)))
	}
	deobfuscateWordsFunc(dst, s, k)
}

// deobfuscateWords works in chunks of 4 and 2 words, then a final odd word.
//
//go:noinline
func deobfuscateWords(dst, s, k []uint16) {
	src := s[launderIndex():]
	n := len(src)
	i := 0
	for ; i < n&^3; i += 4 {
		ct := [4]uint16{src[i], src[i+1], src[i+2], src[i+3]}
		dst[i+0] = ct[0] ^ k[i+0]
		dst[i+1] = ct[1] ^ k[i+1]
		dst[i+2] = ct[2] ^ k[i+2]
		dst[i+3] = ct[3] ^ k[i+3]
	}
	for ; i < n&^1; i += 2 {
		ct := [2]uint16{src[i], src[i+1]}
		dst[i+0] = ct[0] ^ k[i+0]
		dst[i+1] = ct[1] ^ k[i+1]
	}
	if i < n {
		dst[i] = src[i] ^ k[i]
	}
}

// EncodeWords obfuscates UTF-16 words with the keystream of key.
func EncodeWords(key uint32, plaintext []uint16) []uint16 {
	return ObfuscateWords(plaintext, KeystreamWords(key, len(plaintext)))
}

// DecodeWords decodes data into dst and returns the number of words written.
// It panics if dst is too small.
func DecodeWords(dst []uint16, key uint32, data []uint16) int {
	if len(dst) < len(data) {
		panic(fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(data), len(dst)))
	}
	DeobfuscateWords(dst[:len(data)], data, KeystreamWords(key, len(data)))
	return len(data)
}

// DecodeWide decodes an obfuscated wide string into a new slice.
func DecodeWide(key uint32, data []uint16) []uint16 {
	dst := make([]uint16, len(data))
	DecodeWords(dst, key, data)
	return dst
}
