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

// Package genotypes reads genotype files and allele declaration files.
//
// A genotype file is tab-separated. Lines starting with '#' are
// comments. The first other line is a header naming the columns: an
// "id" column, an optional "count" column, an optional "population"
// column labelling sub-populations, and one column per locus. Every
// following line is one individual or pool. A diploid cell holds an
// unordered allele pair such as "A/a"; ".", an empty cell, or a pair
// with any allele written as "?" or "0" marks a missing genotype. A pooled cell holds the
// slash-joined multiset of all alleles of the pool at that locus, for
// example "A/A/a/a" for a pool of two individuals.
//
// An allele file declares the alleles of each locus up front, one
// locus per line: the locus name, a tab, and a comma-separated list of
// allele symbols.
package genotypes

import (
	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
)

// A File is the content of a genotype file.
type File struct {
	Loci    []string
	Records []phase.Record
}

// LocusAlleles declares the alleles of one locus.
type LocusAlleles struct {
	Locus   string
	Alleles []string
}

// RegisterLoci registers the loci of the file with the group, in
// column order.
func (f *File) RegisterLoci(group *loci.Group) {
	for _, name := range f.Loci {
		group.RegisterLocusAlleles(name)
	}
}

// RegisterAlleles registers the loci of the file with the group, and
// every allele symbol occurring in the records, in order of
// appearance.
func (f *File) RegisterAlleles(group *loci.Group) {
	f.RegisterLoci(group)
	for _, record := range f.Records {
		for l, symbols := range record.Alleles {
			if l < len(f.Loci) {
				group.RegisterLocusAlleles(f.Loci[l], symbols...)
			}
		}
	}
}
