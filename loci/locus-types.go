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

package loci

import (
	"strconv"
	"strings"
)

// Missing is the genotype index of a locus without information.
const Missing = -1

// A Genotype is an unordered pair of allele indices at a diploid
// locus, First <= Second.
type Genotype struct {
	First, Second int

	// Name is "first/second", AltName is "second/first". Both are
	// accepted by GenotypeIndex so that either phase order matches.
	Name, AltName string
}

// Homozygous returns true if both alleles of the genotype are the
// same.
func (g Genotype) Homozygous() bool {
	return g.First == g.Second
}

// Allele returns the first allele for phase 0 and the second allele
// for phase 1.
func (g Genotype) Allele(phase int) int {
	if phase == 0 {
		return g.First
	}
	return g.Second
}

// A Locus owns its alleles and its genotype catalog. Allele indices
// are assigned in discovery order and are never reused or reordered.
type Locus struct {
	Name string

	alleles     []string
	alleleIndex map[string]int

	genotypes     []Genotype
	genotypeIndex map[string]int
	catalogSize   int

	pooledNames map[string]string
}

// NewLocus allocates and initializes a new Locus without alleles.
func NewLocus(name string) *Locus {
	return &Locus{
		Name:          name,
		alleleIndex:   make(map[string]int),
		genotypeIndex: make(map[string]int),
		pooledNames:   make(map[string]string),
	}
}

// AddAllele returns the index of the given allele symbol, assigning
// the next unused index on first sight.
func (l *Locus) AddAllele(symbol string) int {
	if index, ok := l.alleleIndex[symbol]; ok {
		return index
	}
	index := len(l.alleles)
	l.alleles = append(l.alleles, symbol)
	l.alleleIndex[symbol] = index
	return index
}

// AlleleIndex returns the index of a known allele symbol.
func (l *Locus) AlleleIndex(symbol string) (int, bool) {
	index, ok := l.alleleIndex[symbol]
	return index, ok
}

// AlleleName returns the symbol of the allele with the given index.
func (l *Locus) AlleleName(index int) string {
	return l.alleles[index]
}

// AlleleCount returns the number of alleles registered so far.
func (l *Locus) AlleleCount() int {
	return len(l.alleles)
}

// BuildGenotypeCatalog generates all unordered pairs (i,j), i <= j,
// of the alleles of this locus. It is a no-op if no alleles were
// added since the last call.
func (l *Locus) BuildGenotypeCatalog() {
	n := len(l.alleles)
	if l.catalogSize == n && l.genotypes != nil {
		return
	}
	l.genotypes = make([]Genotype, 0, n*(n+1)/2)
	l.genotypeIndex = make(map[string]int, n*(n+1))
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			g := Genotype{
				First:   i,
				Second:  j,
				Name:    l.alleles[i] + "/" + l.alleles[j],
				AltName: l.alleles[j] + "/" + l.alleles[i],
			}
			index := len(l.genotypes)
			l.genotypes = append(l.genotypes, g)
			l.genotypeIndex[g.Name] = index
			l.genotypeIndex[g.AltName] = index
		}
	}
	l.catalogSize = n
}

// GenotypeCount returns the size of the genotype catalog.
func (l *Locus) GenotypeCount() int {
	l.BuildGenotypeCatalog()
	return len(l.genotypes)
}

// Genotype returns the catalog entry with the given index.
func (l *Locus) Genotype(index int) Genotype {
	l.BuildGenotypeCatalog()
	return l.genotypes[index]
}

// GenotypeIndex looks up a genotype by its canonical or alternate
// name.
func (l *Locus) GenotypeIndex(name string) (int, bool) {
	l.BuildGenotypeCatalog()
	index, ok := l.genotypeIndex[name]
	return index, ok
}

// PairIndex returns the catalog index of the unordered allele pair.
func (l *Locus) PairIndex(a, b int) int {
	if a > b {
		a, b = b, a
	}
	// row a of the upper triangle starts at a*n - a*(a-1)/2
	n := len(l.alleles)
	return a*n - a*(a-1)/2 + (b - a)
}

// PooledName returns the canonical slash-joined name of a pooled
// allele-count vector. Symbols appear in allele index order, each
// repeated by its count.
func (l *Locus) PooledName(counts []int) string {
	var key strings.Builder
	for i, c := range counts {
		if i > 0 {
			key.WriteByte(',')
		}
		key.WriteString(strconv.Itoa(c))
	}
	if name, ok := l.pooledNames[key.String()]; ok {
		return name
	}
	var name strings.Builder
	for allele, c := range counts {
		for ; c > 0; c-- {
			if name.Len() > 0 {
				name.WriteByte('/')
			}
			name.WriteString(l.alleles[allele])
		}
	}
	l.pooledNames[key.String()] = name.String()
	return name.String()
}
