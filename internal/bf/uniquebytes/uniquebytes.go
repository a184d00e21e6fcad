// Package uniquebytes tracks the set of distinct byte addresses a program
// touches, independently of how often each byte is accessed.
//
// Addresses are grouped into 4 KiB pages, each represented by a bitmap
// with one bit per byte, so a dense footprint costs one bit per byte and
// a sparse one costs one page per touched page.
//
// Thread Safety: Set is NOT synchronized. The runtime serializes calls
// through the mega-lock or its own internal mutex.
package uniquebytes

import (
	"math/bits"
)

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	wordsPer  = pageSize / 64
)

type page [wordsPer]uint64

// Set is a set of byte addresses.
type Set struct {
	pages map[uint64]*page
	count uint64
}

// New returns an empty set.
func New() *Set {
	return &Set{pages: make(map[uint64]*page)}
}

// Touch adds the n bytes starting at addr and returns how many of them
// were not already present. A range running past the top of the address
// space is cut at the last address.
func (s *Set) Touch(addr, n uint64) uint64 {
	if addr+n < addr {
		n = -addr
	}
	var added uint64
	for n > 0 {
		pg := addr >> pageShift
		off := addr & (pageSize - 1)
		span := pageSize - off
		if span > n {
			span = n
		}
		added += s.touchPage(pg, off, span)
		addr += span
		n -= span
	}
	s.count += added
	return added
}

// touchPage sets bits [off, off+span) within one page.
func (s *Set) touchPage(pg, off, span uint64) uint64 {
	p := s.pages[pg]
	if p == nil {
		p = new(page)
		s.pages[pg] = p
	}
	var added uint64
	for span > 0 {
		w := off / 64
		bit := off % 64
		take := 64 - bit
		if take > span {
			take = span
		}
		var mask uint64
		if take == 64 {
			mask = ^uint64(0)
		} else {
			mask = ((uint64(1) << take) - 1) << bit
		}
		added += uint64(bits.OnesCount64(mask &^ p[w]))
		p[w] |= mask
		off += take
		span -= take
	}
	return added
}

// Contains reports whether the byte at addr has been touched.
func (s *Set) Contains(addr uint64) bool {
	p := s.pages[addr>>pageShift]
	if p == nil {
		return false
	}
	off := addr & (pageSize - 1)
	return p[off/64]&(1<<(off%64)) != 0
}

// Count returns the number of distinct bytes touched.
func (s *Set) Count() uint64 {
	return s.count
}

// Pages returns the number of pages with at least one touched byte.
func (s *Set) Pages() int {
	return len(s.pages)
}

// Reset empties the set.
func (s *Set) Reset() {
	s.pages = make(map[uint64]*page)
	s.count = 0
}
