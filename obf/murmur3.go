// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"encoding/binary"
	"math/bits"
)

const (
	murmurC1 = 0xcc9e2d51
	murmurC2 = 0x1b873593
)

// Murmur3 is the 32-bit MurmurHash3 keyed hash.
func Murmur3(data []byte, seed uint32) uint32 {
	h := seed
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		k := binary.LittleEndian.Uint32(data[i:])
		k *= murmurC1
		k = bits.RotateLeft32(k, 15)
		k *= murmurC2

		h ^= k
		h = bits.RotateLeft32(h, 13)
		h = h*5 + 0xe6546b64
	}

	var k uint32
	switch tail := data[n:]; len(tail) {
	case 3:
		k |= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k |= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k |= uint32(tail[0])
		k *= murmurC1
		k = bits.RotateLeft32(k, 15)
		k *= murmurC2
		h ^= k
	}

	return fmix32(h ^ uint32(len(data)))
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
