// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package entry defines Entry, the per-feature slot handed to a compiled tree ensemble.
//
// An Entry is bit-compatible with the C union used by the generated prediction code:
//
//	union Entry {
//	  int missing;
//	  float fvalue;
//	};
//
// A slot is missing when its bits, read as an int, equal -1. Any other bit pattern is
// read by the compiled code as a float value.
package entry

import (
	"math"
	"unsafe"
)

// Entry is one feature slot for one row during one prediction call.
//
// The zero value is NOT missing (it is the value 0.0): use Missing or Reset to initialize slots.
type Entry struct {
	bits uint32
}

// missingBits is the int32 value -1 reinterpreted as uint32.
const missingBits = ^uint32(0)

// Size of an Entry in bytes, matching sizeof(union Entry) in C.
const Size = int(unsafe.Sizeof(Entry{}))

// Missing returns an Entry marked as missing.
func Missing() Entry { return Entry{bits: missingBits} }

// Present returns an Entry holding the value v.
func Present(v float32) Entry { return Entry{bits: math.Float32bits(v)} }

// SetValue stores v and marks the slot as present.
func (e *Entry) SetValue(v float32) { e.bits = math.Float32bits(v) }

// SetMissing marks the slot as missing.
func (e *Entry) SetMissing() { e.bits = missingBits }

// IsMissing returns whether the slot holds the missing marker.
func (e Entry) IsMissing() bool { return e.bits == missingBits }

// Value returns the float stored in the slot. It is meaningless if IsMissing.
func (e Entry) Value() float32 { return math.Float32frombits(e.bits) }

// MissingField returns the slot read through the int member of the union.
func (e Entry) MissingField() int32 { return int32(e.bits) }

// Reset marks every slot in entries as missing.
func Reset(entries []Entry) {
	for i := range entries {
		entries[i].bits = missingBits
	}
}

// NewSlice allocates n entries, all marked as missing.
func NewSlice(n int) []Entry {
	entries := make([]Entry, n)
	Reset(entries)
	return entries
}

// AllMissing reports whether every slot in entries is missing.
func AllMissing(entries []Entry) bool {
	for _, e := range entries {
		if e.bits != missingBits {
			return false
		}
	}
	return true
}
