// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package rendergraph

import "bytes"

// descriptor is implemented by every pool key type (texture,
// buffer, view, render pass, framebuffer, pipeline and
// descriptor-set descriptors). canonicalBytes serializes the
// descriptor's fields into a fixed, zero-padding-free byte
// slice through encoding/binary, rather than trusting Go's
// struct layout the way the C++ original trusts memcmp over a
// zero-initialized POD — the ownership-safe normalization step
// the design notes call for in a language without manual
// layout control.
type descriptor interface {
	canonicalBytes() []byte
}

// descEqual reports whether two descriptors hash to the same
// pool key, i.e. whether their canonical byte encodings match.
func descEqual(a, b []byte) bool { return bytes.Equal(a, b) }

// murmurHash64 is a 64-bit Murmur2-style mix over b, used to
// bucket pool entries by descriptor. Collisions are resolved
// by descEqual over the full canonical bytes, so the mixing
// constants only need to distribute keys well, not be
// collision-free.
func murmurHash64(b []byte) uint64 {
	const (
		seed = 0xc70f6907
		m    = 0xc6a4a7935bd1e995
		r    = 47
	)
	var h uint64 = seed ^ (uint64(len(b)) * m)
	for len(b) >= 8 {
		k := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
			uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
		k *= m
		k ^= k >> r
		k *= m
		h ^= k
		h *= m
		b = b[8:]
	}
	switch len(b) {
	case 7:
		h ^= uint64(b[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(b[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(b[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(b[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(b[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(b[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(b[0])
		h *= m
	}
	h ^= h >> r
	h *= m
	h ^= h >> r
	return h
}
