// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// XrefSite holds the hidden offset of one pointer obfuscation site.
// The offset cell is written once, on first use, and only read afterwards,
// so a site may be shared by any number of goroutines.
type XrefSite struct {
	once   sync.Once
	cell   atomic.Uintptr
	offset uintptr
	seed   uint64
}

// NewXrefSite returns a site for the given random offset and seed.
// The obfstr command declares one package-level site per obf.Xref call.
func NewXrefSite(offset uintptr, seed uint64) *XrefSite {
	return &XrefSite{offset: offset, seed: seed}
}

func (s *XrefSite) hiddenOffset() uintptr {
	s.once.Do(func() { s.cell.Store(s.offset) })
	return s.cell.Load()
}

// XrefAt returns p, computed so that the address of *p is never a plain
// constant in the binary: the pointer is shifted by an obfuscated offset,
// laundered, and shifted back in a function the compiler cannot inline.
//
// p must point to a package-level variable or to a heap object. XrefAt
// forces its argument to escape, so a pointer to a local variable moves
// it to the heap rather than laundering a stack address which may move.
func XrefAt[T any](site *XrefSite, p *T) *T {
	escapes(p)
	off := site.hiddenOffset()
	shifted := uintptr(unsafe.Pointer(p)) - obfuscateOffset(off, site.seed)
	q := (*T)(unsafe.Pointer(xrefInner(launder(shifted), launder(off), site.seed)))
	runtime.KeepAlive(p)
	return q
}

//go:noinline
func xrefInner(p, offset uintptr, seed uint64) uintptr {
	return p + obfuscateOffset(offset, seed)
}

func nonZero(v uint) uint {
	if v == 0 {
		return 1
	}
	return v
}

// obfChoice applies one of eight invertible-looking operations to v,
// picked by the low three bits of seed.
func obfChoice(v uint, seed uint64) uint {
	rand := uint(int32(uint32(seed >> 32))) // sign-extended to the word size
	switch seed & 7 {
	case 0:
		return v + rand
	case 1:
		return rand - v
	case 2:
		return v ^ rand
	case 3:
		return v ^ bits.RotateLeft(v, int(nonZero(rand&7)))
	case 4:
		return ^v
	case 5:
		return v ^ (v >> nonZero(rand&31))
	case 6:
		return v * nonZero(rand)
	default:
		return -v
	}
}

// obfuscateOffset scrambles v with four seeded rounds and a final
// rotate-xor round, keeping the low 16 bits so the offset stays small.
func obfuscateOffset(v uintptr, seed uint64) uintptr {
	x := uint(v)
	for i := 0; i < 4; i++ {
		seed = Splitmix(seed)
		x = obfChoice(x, seed)
	}
	seed = Splitmix(seed)
	x = obfChoice(x, seed&0xffffffff00000000|3)
	return uintptr(x & 0xffff)
}
