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

// Package phase represents phase-ambiguous observations, individual
// genotypes or pooled allele counts, and enumerates the haplotype
// combinations consistent with them.
package phase

// Kind distinguishes individual from pooled observations.
type Kind int

const (
	// Diploid observations are genotypes of single individuals.
	Diploid Kind = iota
	// Pooled observations are allele counts of pooled samples.
	Pooled
)

func (k Kind) String() string {
	switch k {
	case Diploid:
		return "diploid"
	case Pooled:
		return "pooled"
	default:
		return "unknown"
	}
}

// A Record is the parsed input for one individual or one pool.
type Record struct {
	ID   string
	Kind Kind

	// Alleles holds the allele symbols per locus, in locus group
	// order: an unordered pair for diploid records, an unordered
	// multiset of 2 × PoolSize symbols for pooled records. An empty
	// list marks a missing locus, which is only allowed for diploid
	// records.
	Alleles [][]string

	// Count is the number of identical individuals or pools the
	// record stands for. Zero means one.
	Count int

	// PoolSize is the number of individuals in a pool.
	PoolSize int

	// Population optionally labels the sub-population the record was
	// sampled from.
	Population string
}
