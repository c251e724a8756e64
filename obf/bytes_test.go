// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"
)

func TestKeystream(t *testing.T) {
	qt.Assert(t, qt.DeepEquals(Keystream(0x10203040, 6), []byte{0xd4, 0x51, 0x2f, 0xd3, 0x9e, 0x66}))
	qt.Assert(t, qt.HasLen(Keystream(0x10203040, 0), 0))

	// A longer stream starts with the shorter one.
	long := Keystream(0xdeadbeef, 33)
	for n := 0; n <= len(long); n++ {
		qt.Assert(t, qt.DeepEquals(Keystream(0xdeadbeef, n), long[:n]))
	}

	qt.Assert(t, qt.DeepEquals(KeystreamWords(0x10203040, 3), []uint16{0x51d4, 0xd32f, 0x669e}))
	qt.Assert(t, qt.HasLen(KeystreamWords(1, 0), 0))
}

func TestEncode(t *testing.T) {
	qt.Assert(t, qt.DeepEquals(Encode(0x10203040, []byte("hello")), []byte{188, 52, 67, 191, 241}))
}

// Test correct processing of every remainder after the 8 and 4 byte chunks.
func TestRemainingBytes(t *testing.T) {
	const input = "01234567ABCDEFGHIJKLMNOP"
	for n := 0; n <= len(input); n++ {
		n := n
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			plain := []byte(input[:n])
			key := 0x9e3779b9 * uint32(n+1)
			keys := Keystream(key, n)
			data := Obfuscate(plain, keys)
			if n > 0 {
				qt.Assert(t, qt.Not(qt.DeepEquals(data, plain)))
			}

			buf := make([]byte, n)
			Deobfuscate(buf, data, keys)
			qt.Assert(t, qt.DeepEquals(buf, plain))

			qt.Assert(t, qt.IsTrue(Equals(data, keys, plain)))
			qt.Assert(t, qt.Equals(DecodeString(key, data), input[:n]))
			qt.Assert(t, qt.IsTrue(EqualString(key, data, input[:n])))
		})
	}
}

func TestDecode(t *testing.T) {
	const s = "Hello 🌍"
	data := Encode(0x10203040, []byte(s))

	dst := make([]byte, len(data)+4)
	for i := range dst {
		dst[i] = 0xaa
	}
	n := Decode(dst, 0x10203040, data)
	qt.Assert(t, qt.Equals(n, len(s)))
	qt.Assert(t, qt.Equals(string(dst[:n]), s))
	// Bytes past the decoded length are left alone.
	qt.Assert(t, qt.DeepEquals(dst[n:], bytes.Repeat([]byte{0xaa}, 4)))

	qt.Assert(t, qt.Equals(Decode(nil, 1, nil), 0))

	qt.Assert(t, qt.PanicMatches(func() {
		Decode(make([]byte, 2), 0x10203040, data)
	}, `obf: destination buffer too small: need \d+, have 2`))
}

func TestDecodeInto(t *testing.T) {
	data := Encode(7, []byte("Foo"))
	var buf [4]byte
	qt.Assert(t, qt.Equals(DecodeInto(buf[:], 7, data), "Foo"))
	qt.Assert(t, qt.Equals(DecodeInto(buf[:], 7, nil), ""))
	qt.Assert(t, qt.PanicMatches(func() {
		DecodeInto(buf[:1], 7, data)
	}, `obf: destination buffer too small.*`))
}

func TestDecodeIntoRaw(t *testing.T) {
	const raw = "a\xffb"
	data := Encode(7, []byte(raw))
	var buf [4]byte
	qt.Assert(t, qt.Equals(DecodeIntoRaw(buf[:], 7, data), raw))
	qt.Assert(t, qt.Equals(DecodeIntoRaw(buf[:], 7, nil), ""))
	qt.Assert(t, qt.PanicMatches(func() {
		DecodeIntoRaw(buf[:2], 7, data)
	}, `obf: destination buffer too small.*`))
}

func TestObfuscateLengthMismatch(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		qt.Assert(t, qt.IsTrue(ok))
		qt.Assert(t, qt.IsTrue(errors.Is(err, ErrLengthMismatch)))
	}()
	Obfuscate([]byte("abc"), Keystream(1, 2))
}

func TestEquals(t *testing.T) {
	const s = "Hello 🌍"
	key := uint32(0x10203040)
	data := Encode(key, []byte(s))
	keys := Keystream(key, len(data))

	qt.Assert(t, qt.IsTrue(Equals(data, keys, []byte(s))))
	qt.Assert(t, qt.IsFalse(Equals(data, keys, []byte("Hello"))))
	qt.Assert(t, qt.IsFalse(Equals(data, keys, []byte(s+"!"))))

	// Any single flipped byte must be noticed, whichever chunk it lands in.
	for i := 0; i < len(s); i++ {
		other := []byte(s)
		other[i] ^= 0x20
		qt.Assert(t, qt.IsFalse(Equals(data, keys, other)), qt.Commentf("flipped byte %d", i))
		qt.Assert(t, qt.IsFalse(EqualString(key, data, string(other))))
	}
	qt.Assert(t, qt.IsTrue(EqualString(key, nil, "")))
}

func TestRoundTripKeys(t *testing.T) {
	plain := []byte("The quick brown fox jumps over the lazy dog")
	for _, key := range []uint32{1, 0x1234, 0xffffffff, 0x80000000, 0xcafebabe} {
		data := Encode(key, plain)
		got := DecodeBytes(key, data)
		if diff := cmp.Diff(plain, got); diff != "" {
			t.Errorf("key %#x: round trip mismatch (-want +got):\n%s", key, diff)
		}
	}
	// A different key must not decode to the same plaintext.
	qt.Assert(t, qt.Not(qt.DeepEquals(DecodeBytes(2, Encode(1, plain)), plain)))
}

func TestNumbers(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 1 << 63, ^uint64(0)} {
		c := EncodeUint64(0x55, v)
		qt.Assert(t, qt.Equals(DecodeUint64(0x55, c), v))
	}
	c := EncodeUint64(9, 0x3ff8000000000000) // 1.5
	qt.Assert(t, qt.Equals(DecodeFloat64(9, c), 1.5))
	c = EncodeUint64(9, 0x3fc00000) // float32 1.5
	qt.Assert(t, qt.Equals(DecodeFloat32(9, c), float32(1.5)))

	// Negative values survive the trip through uint64 bits.
	neg := int64(-12345)
	c = EncodeUint64(3, uint64(neg))
	qt.Assert(t, qt.Equals(int16(DecodeUint64(3, c)), int16(-12345)))
}

func TestWords(t *testing.T) {
	input := Wide("0123456789abcdef")
	for n := 0; n <= len(input); n++ {
		key := uint32(0x2222 * (n + 1))
		data := EncodeWords(key, input[:n])
		if n > 0 {
			qt.Assert(t, qt.Not(qt.DeepEquals(data, input[:n])))
		}
		qt.Assert(t, qt.DeepEquals(DecodeWide(key, data), input[:n]))
	}

	qt.Assert(t, qt.PanicMatches(func() {
		DecodeWords(make([]uint16, 1), 1, []uint16{1, 2})
	}, `obf: destination buffer too small.*`))
	qt.Assert(t, qt.PanicMatches(func() {
		ObfuscateWords([]uint16{1}, nil)
	}, `obf: input length not equal to keystream length.*`))
}

func BenchmarkDecodeString(b *testing.B) {
	data := Encode(0x1234, []byte("This literal is very very very long to see if it correctly handles long strings"))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = DecodeString(0x1234, data)
	}
}
