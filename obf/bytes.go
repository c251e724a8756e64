// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
	"unsafe"
)

// Obfuscate xors s with the keystream k. It is meant for build time.
func Obfuscate(s, k []byte) []byte {
	if len(s) != len(k) {
		panic(fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(s), len(k)))
	}
	data := make([]byte, len(s))
	for i := range s {
		data[i] = s[i] ^ k[i]
	}
	return data
}

// Deobfuscate xors the ciphertext s with the keystream k into dst.
func Deobfuscate(dst, s, k []byte) {
	if len(s) != len(k) {
		panic(fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(s), len(k)))
	}
	if len(dst) < len(s) {
		panic(fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(s), len(dst)))
	}
	deobfuscateFunc(dst, s, k)
}

// deobfuscate works in chunks of 8 and 4 bytes, then the remaining 1-3.
// The chunking only shapes the generated loads; any order gives the same result.
//
//go:noinline
func deobfuscate(dst, s, k []byte) {
	src := s[launderIndex():]
	n := len(src)
	i := 0
	for ; i < n&^7; i += 8 {
		ct := binary.LittleEndian.Uint64(src[i:])
		binary.LittleEndian.PutUint64(dst[i:], ct^binary.LittleEndian.Uint64(k[i:]))
	}
	for ; i < n&^3; i += 4 {
		ct := binary.LittleEndian.Uint32(src[i:])
		binary.LittleEndian.PutUint32(dst[i:], ct^binary.LittleEndian.Uint32(k[i:]))
	}
	switch n - i {
	case 1:
		dst[i] = src[i] ^ k[i]
	case 2:
		ct := binary.LittleEndian.Uint16(src[i:])
		binary.LittleEndian.PutUint16(dst[i:], ct^binary.LittleEndian.Uint16(k[i:]))
	case 3:
		ct := binary.LittleEndian.Uint16(src[i:])
		binary.LittleEndian.PutUint16(dst[i:], ct^binary.LittleEndian.Uint16(k[i:]))
		dst[i+2] = src[i+2] ^ k[i+2]
	}
}

// Equals reports whether s decodes to other under the keystream k,
// without decoding into a buffer. It is not a constant-time comparison.
func Equals(s, k, other []byte) bool {
	if len(s) != len(k) {
		panic(fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(s), len(k)))
	}
	if len(other) != len(s) {
		return false
	}
	return equalsFunc(s, k, other)
}

//go:noinline
func equals(s, k, other []byte) bool {
	src := s[launderIndex():]
	n := len(src)
	i := 0
	for ; i < n&^7; i += 8 {
		ct := binary.LittleEndian.Uint64(src[i:])
		if ct^binary.LittleEndian.Uint64(k[i:]) != binary.LittleEndian.Uint64(other[i:]) {
			return false
		}
	}
	for ; i < n&^3; i += 4 {
		ct := binary.LittleEndian.Uint32(src[i:])
		if ct^binary.LittleEndian.Uint32(k[i:]) != binary.LittleEndian.Uint32(other[i:]) {
			return false
		}
	}
	for ; i < n; i++ {
		if src[i]^k[i] != other[i] {
			return false
		}
	}
	return true
}

// Encode obfuscates plaintext with the keystream of key.
func Encode(key uint32, plaintext []byte) []byte {
	return Obfuscate(plaintext, Keystream(key, len(plaintext)))
}

// Decode regenerates the keystream of key and decodes data into dst,
// returning the number of bytes written. It panics if dst is too small.
func Decode(dst []byte, key uint32, data []byte) int {
	if len(dst) < len(data) {
		panic(fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, len(data), len(dst)))
	}
	Deobfuscate(dst[:len(data)], data, Keystream(key, len(data)))
	return len(data)
}

// DecodeBytes decodes data into a new slice.
func DecodeBytes(key uint32, data []byte) []byte {
	dst := make([]byte, len(data))
	Decode(dst, key, data)
	return dst
}

// DecodeString decodes data into a new string.
//
// Debug builds (-tags=obfstr_debug) panic if the result is not valid UTF-8.
// Otherwise the bytes are trusted, since obfstr only emits this call for
// literals which were valid UTF-8 at build time.
func DecodeString(key uint32, data []byte) string {
	b := DecodeBytes(key, data)
	if checkText && !utf8.Valid(b) {
		panic(fmt.Errorf("%w: %q", ErrInvalidText, b))
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// DecodeInto decodes data into buf and returns the decoded prefix as a
// string. The string shares memory with buf; it is only valid until buf
// is modified.
func DecodeInto(buf []byte, key uint32, data []byte) string {
	s := DecodeIntoRaw(buf, key, data)
	if checkText && !utf8.ValidString(s) {
		panic(fmt.Errorf("%w: %q", ErrInvalidText, s))
	}
	return s
}

// DecodeIntoRaw is like DecodeInto, but never checks for valid UTF-8.
// It serves literals which hold arbitrary bytes.
func DecodeIntoRaw(buf []byte, key uint32, data []byte) string {
	n := Decode(buf, key, data)
	if n == 0 {
		return ""
	}
	return unsafe.String(&buf[0], n)
}

// EqualString reports whether data decodes to s.
func EqualString(key uint32, data []byte, s string) bool {
	if len(s) != len(data) {
		return false
	}
	other := unsafe.Slice(unsafe.StringData(s), len(s))
	return Equals(data, Keystream(key, len(data)), other)
}

// EncodeUint64 obfuscates the bits of a numeric constant.
func EncodeUint64(key uint32, v uint64) uint64 {
	var plain [8]byte
	binary.LittleEndian.PutUint64(plain[:], v)
	return binary.LittleEndian.Uint64(Encode(key, plain[:]))
}

// DecodeUint64 is the inverse of EncodeUint64.
func DecodeUint64(key uint32, c uint64) uint64 {
	var data, plain [8]byte
	binary.LittleEndian.PutUint64(data[:], c)
	Decode(plain[:], key, data[:])
	return binary.LittleEndian.Uint64(plain[:])
}

// DecodeFloat64 decodes the bits of a float64 obfuscated with EncodeUint64.
func DecodeFloat64(key uint32, c uint64) float64 {
	return math.Float64frombits(DecodeUint64(key, c))
}

// DecodeFloat32 decodes the bits of a float32 obfuscated with EncodeUint64.
func DecodeFloat32(key uint32, c uint64) float32 {
	return math.Float32frombits(uint32(DecodeUint64(key, c)))
}
