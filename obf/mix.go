// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"strings"
	"sync"
)

// DefaultSeed is hashed into the process-wide seed when no override is given.
const DefaultSeed = "FIXED"

// seedOverride is set at link time, e.g.
//
//	go build -ldflags=-X=github.com/burrowers/obfstr/obf.seedOverride=abc
//
// The obfstr command does not need it, since it bakes keys into the
// rewritten source; it only affects the fallbacks of unrewritten markers.
var seedOverride string

// Seed returns the process-wide seed. It is computed once and never changes.
var Seed = sync.OnceValue(func() uint64 {
	if seedOverride != "" {
		return SeedFrom(seedOverride)
	}
	return SeedFrom(DefaultSeed)
})

// SeedFrom derives a seed from an arbitrary override string.
func SeedFrom(s string) uint64 {
	return Splitmix(uint64(Hash(s)))
}

// Splitmix is the splitmix64 finalizer. It increases the entropy of an
// intermediate hash which may not be thoroughly mixed.
// See https://zimbry.blogspot.com/2011/09/better-bit-mixing-improving-on.html.
func Splitmix(seed uint64) uint64 {
	z := seed + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash is the xor variant of the DJB2 string hash.
// It folds identifiers into the mixer; it is not meant for hash tables.
func Hash(s string) uint32 {
	h := uint32(3581)
	for i := 0; i < len(s); i++ {
		h = h*33 ^ uint32(s[i])
	}
	return h
}

// Entropy produces pseudorandom bits for an obfuscation site,
// typically identified by "file:line:column".
func Entropy(seed uint64, site string) uint64 {
	return Splitmix(seed ^ Splitmix(uint64(Hash(site))))
}

// DeriveKey joins the site identifiers with ':' and mixes them with seed.
// Distinct identifiers give distinct keys, barring hash collisions.
func DeriveKey(seed uint64, ids ...string) uint64 {
	return Entropy(seed, strings.Join(ids, ":"))
}
