// elHap: a high-performance tool for estimating haplotype frequencies.
// Copyright (c) 2024 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elhap/blob/master/LICENSE.txt>.

// Package haplo provides the canonical store of haplotypes discovered
// while enumerating observations, and the running counts from which
// the EM iterations derive haplotype frequencies.
//
// A haplotype is identified by its Key, a fixed-width array of allele
// indices that is comparable and can be used directly as a map key.
// The Registry interns keys into an arena and hands out Handles, so
// that every distinct haplotype is a single instance referenced by
// index everywhere else.
package haplo

import (
	"fmt"
	"strings"
)

// MaxLoci is the maximum number of loci a Key can hold.
const MaxLoci = 32

// MaxAlleles is the maximum number of alleles per locus a Key can
// distinguish.
const MaxAlleles = 1 << 16

func checkAllele(allele int) uint16 {
	if allele < 0 || allele >= MaxAlleles {
		panic(fmt.Sprintf("allele index %v out of range [0,%v)", allele, MaxAlleles))
	}
	return uint16(allele)
}

// A Key is an ordered tuple of allele indices, one per locus. Two
// haplotypes are identical iff their keys are equal.
type Key struct {
	n       uint8
	alleles [MaxLoci]uint16
}

// NewKey returns the key for the given allele indices.
func NewKey(alleles []int) Key {
	if len(alleles) > MaxLoci {
		panic(fmt.Sprintf("haplotype over %v loci exceeds the maximum of %v", len(alleles), MaxLoci))
	}
	var k Key
	k.n = uint8(len(alleles))
	for i, a := range alleles {
		k.alleles[i] = checkAllele(a)
	}
	return k
}

// Len returns the number of loci of the key.
func (k Key) Len() int {
	return int(k.n)
}

// Allele returns the allele index at the given locus.
func (k Key) Allele(locus int) int {
	return int(k.alleles[locus])
}

// Alleles returns the allele indices of the key.
func (k Key) Alleles() []int {
	result := make([]int, k.n)
	for i := range result {
		result[i] = int(k.alleles[i])
	}
	return result
}

// Extend returns a new key with the given allele appended.
func (k Key) Extend(allele int) Key {
	if int(k.n) == MaxLoci {
		panic("haplotype key is full")
	}
	k.alleles[k.n] = checkAllele(allele)
	k.n++
	return k
}

// Less orders keys lexicographically by allele index.
func (k Key) Less(other Key) bool {
	n := k.n
	if other.n < n {
		n = other.n
	}
	for i := uint8(0); i < n; i++ {
		if a, b := k.alleles[i], other.alleles[i]; a != b {
			return a < b
		}
	}
	return k.n < other.n
}

// String returns the allele indices separated by dashes.
func (k Key) String() string {
	var b strings.Builder
	for i := uint8(0); i < k.n; i++ {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprint(&b, k.alleles[i])
	}
	return b.String()
}
