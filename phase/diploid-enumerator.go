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

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/loci"
)

// enumerateDiploid generates the haplotype pairs consistent with a
// sequence of genotypes. Missing loci are filled in with every
// genotype of the locus catalog, odometer style, starting at the
// first missing locus. For each complete genotype sequence with h
// heterozygous loci, phase assignment i and its complement 2^h-1-i
// describe the same unordered pair, so only the 2^(h-1) assignments
// with the last heterozygous bit clear are visited.
func enumerateDiploid(group *loci.Group, genotypes []int, emit func([]haplo.Key) error) error {
	var missing []int
	for l, g := range genotypes {
		if g == loci.Missing {
			if group.Locus(l).GenotypeCount() == 0 {
				return nil
			}
			missing = append(missing, l)
		}
	}

	current := make([]int, len(genotypes))
	copy(current, genotypes)
	digits := make([]int, len(missing))
	heterozygous := bitset.New(uint(len(genotypes)))
	phases := bitset.New(64)

	for {
		for i, l := range missing {
			current[l] = digits[i]
		}
		if err := enumeratePhases(group, current, heterozygous, phases, emit); err != nil {
			return err
		}
		i := 0
		for ; i < len(missing); i++ {
			if digits[i]++; digits[i] < group.Locus(missing[i]).GenotypeCount() {
				break
			}
			digits[i] = 0
		}
		if i == len(missing) {
			return nil
		}
	}
}

func enumeratePhases(group *loci.Group, genotypes []int, heterozygous, phases *bitset.BitSet, emit func([]haplo.Key) error) error {
	heterozygous.ClearAll()
	for l, g := range genotypes {
		if !group.Locus(l).Genotype(g).Homozygous() {
			heterozygous.Set(uint(l))
		}
	}
	h := heterozygous.Count()
	if h == 0 {
		key := phaseKey(group, genotypes, heterozygous, phases, 0)
		return emit([]haplo.Key{key, key})
	}
	all := uint64(1)<<h - 1
	half := uint64(1) << (h - 1)
	for i := uint64(0); i < half; i++ {
		if err := emit([]haplo.Key{
			phaseKey(group, genotypes, heterozygous, phases, i),
			phaseKey(group, genotypes, heterozygous, phases, all-i),
		}); err != nil {
			return err
		}
	}
	return nil
}

// phaseKey builds the haplotype that takes, at the k-th heterozygous
// locus, the first allele of the genotype if bit k of assignment is
// clear, and the second allele otherwise. phases is overwritten with
// the assignment.
func phaseKey(group *loci.Group, genotypes []int, heterozygous, phases *bitset.BitSet, assignment uint64) haplo.Key {
	phases.Bytes()[0] = assignment
	var key haplo.Key
	k := uint(0)
	for l, g := range genotypes {
		genotype := group.Locus(l).Genotype(g)
		if heterozygous.Test(uint(l)) {
			phase := 0
			if phases.Test(k) {
				phase = 1
			}
			key = key.Extend(genotype.Allele(phase))
			k++
		} else {
			key = key.Extend(genotype.First)
		}
	}
	return key
}
