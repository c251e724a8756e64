// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

// nextRound is one xorshift32 step.
// Security doesn't matter; we just want random-looking bytes.
func nextRound(x uint32) uint32 {
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return x
}

// Keystream expands key into n pseudorandom bytes.
//
// Each xorshift round yields four bytes in little-endian order, regardless
// of the host's byte order, so that a constant obfuscated on the build host
// decodes the same way on any target.
func Keystream(key uint32, n int) []byte {
	k := make([]byte, n)
	fillKeystream(k, key)
	return k
}

func fillKeystream(k []byte, key uint32) {
	round := key
	n := len(k) &^ 3
	i := 0
	for ; i < n; i += 4 {
		round = nextRound(round)
		k[i+0] = byte(round)
		k[i+1] = byte(round >> 8)
		k[i+2] = byte(round >> 16)
		k[i+3] = byte(round >> 24)
	}
	if rem := len(k) - i; rem > 0 {
		round = nextRound(round)
		for j := 0; j < rem; j++ {
			k[i+j] = byte(round >> (8 * j))
		}
	}
}

// KeystreamWords expands key into n pseudorandom 16-bit words,
// two words per xorshift round.
func KeystreamWords(key uint32, n int) []uint16 {
	k := make([]uint16, n)
	fillKeystreamWords(k, key)
	return k
}

func fillKeystreamWords(k []uint16, key uint32) {
	round := key
	n := len(k) &^ 1
	i := 0
	for ; i < n; i += 2 {
		round = nextRound(round)
		k[i+0] = uint16(round)
		k[i+1] = uint16(round >> 16)
	}
	if i < len(k) {
		round = nextRound(round)
		k[i] = uint16(round)
	}
}
