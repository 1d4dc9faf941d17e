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

package phase

import "github.com/exascience/elhap/haplo"

// A poolClass is a haplotype prefix shared by size chromosome copies
// of a pool.
type poolClass struct {
	prefix haplo.Key
	size   int
}

// A poolFrame is one level of the explicit backtracking stack: the
// assignment of allele tokens at one locus to one class of prefixes.
type poolFrame struct {
	locus   int
	classes []poolClass
	class   int

	// remaining holds the allele tokens of the locus not yet given
	// to classes[:class], split the tokens given to classes[class].
	remaining []int
	split     []int
	started   bool

	// extended holds the prefixes of classes[:class] extended by
	// this locus.
	extended []poolClass
}

// enumeratePool generates every distinct multiset of ploidy
// haplotypes whose allele tally at each locus equals counts.
//
// Chromosome copies are grouped into classes of identical prefixes.
// Copies within a class are interchangeable, so a class is extended
// by a vector of allele counts rather than by one allele per copy,
// and two different choices for the same class always lead to
// different multisets. The search therefore produces each grouping
// exactly once, without needing to deduplicate by prefix labelling.
// Class extensions at one locus are chosen one class at a time, in
// reverse lexicographic order of the count vectors, and bounded by
// the tokens the preceding classes left.
func enumeratePool(counts [][]int, ploidy int, emit func([]haplo.Key) error) error {
	if len(counts) == 0 {
		return nil
	}
	stack := []*poolFrame{{
		classes:   []poolClass{{size: ploidy}},
		remaining: append([]int(nil), counts[0]...),
	}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.started {
			if !nextSplit(f.split, f.remaining) {
				stack = stack[:len(stack)-1]
				continue
			}
		} else {
			f.split = make([]int, len(f.remaining))
			f.started = true
			if !firstSplit(f.split, f.remaining, f.classes[f.class].size) {
				stack = stack[:len(stack)-1]
				continue
			}
		}

		prefix := f.classes[f.class].prefix
		extended := make([]poolClass, len(f.extended), len(f.extended)+len(f.split))
		copy(extended, f.extended)
		remaining := make([]int, len(f.remaining))
		for allele, c := range f.split {
			remaining[allele] = f.remaining[allele] - c
			if c > 0 {
				extended = append(extended, poolClass{prefix: prefix.Extend(allele), size: c})
			}
		}

		switch {
		case f.class+1 < len(f.classes):
			stack = append(stack, &poolFrame{
				locus:     f.locus,
				classes:   f.classes,
				class:     f.class + 1,
				remaining: remaining,
				extended:  extended,
			})
		case f.locus+1 < len(counts):
			stack = append(stack, &poolFrame{
				locus:     f.locus + 1,
				classes:   extended,
				remaining: append([]int(nil), counts[f.locus+1]...),
			})
		default:
			keys := make([]haplo.Key, 0, ploidy)
			for _, class := range extended {
				for i := 0; i < class.size; i++ {
					keys = append(keys, class.prefix)
				}
			}
			if err := emit(keys); err != nil {
				return err
			}
		}
	}
	return nil
}

// firstSplit distributes total tokens over split, greedily from the
// first allele, without exceeding bounds. It returns false if the
// bounds cannot hold total tokens.
func firstSplit(split, bounds []int, total int) bool {
	for i, b := range bounds {
		if b > total {
			b = total
		}
		split[i] = b
		total -= b
	}
	return total == 0
}

// nextSplit advances split to the next vector with the same total in
// reverse lexicographic order, within bounds. It returns false when
// split is the last such vector.
func nextSplit(split, bounds []int) bool {
	tail, capacity := 0, 0
	for p := len(split) - 1; p >= 0; p-- {
		if split[p] > 0 && capacity > tail {
			split[p]--
			r := tail + 1
			for q := p + 1; q < len(split); q++ {
				c := bounds[q]
				if c > r {
					c = r
				}
				split[q] = c
				r -= c
			}
			return true
		}
		tail += split[p]
		capacity += bounds[p]
	}
	return false
}
