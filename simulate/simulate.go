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

// Package simulate generates observations from known haplotype
// frequencies, for testing estimators against a known truth.
package simulate

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/exascience/elhap/phase"
)

// A Source draws uniformly distributed numbers in [0, 1).
type Source interface {
	Float64() float64
}

// A Population is a set of haplotypes with their frequencies. Every
// haplotype lists one allele symbol per locus.
type Population struct {
	Haplotypes  [][]string
	Frequencies []float64
	cumulative  []float64
}

// ParseHaplotype splits a haplotype name such as "A-b-C" into its
// allele symbols.
func ParseHaplotype(name string) []string {
	return strings.Split(name, "-")
}

// NewPopulation checks and normalises haplotype frequencies.
func NewPopulation(haplotypes [][]string, frequencies []float64) (*Population, error) {
	if len(haplotypes) == 0 {
		return nil, fmt.Errorf("no haplotypes")
	}
	if len(haplotypes) != len(frequencies) {
		return nil, fmt.Errorf("%v haplotypes but %v frequencies", len(haplotypes), len(frequencies))
	}
	nloci := len(haplotypes[0])
	for _, h := range haplotypes {
		if len(h) != nloci {
			return nil, fmt.Errorf("haplotype %v does not have %v loci", strings.Join(h, "-"), nloci)
		}
	}
	for _, f := range frequencies {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("invalid frequency %v", f)
		}
	}
	total := floats.Sum(frequencies)
	if total <= 0 {
		return nil, fmt.Errorf("frequencies sum to %v", total)
	}
	p := &Population{
		Haplotypes:  haplotypes,
		Frequencies: make([]float64, len(frequencies)),
		cumulative:  make([]float64, len(frequencies)),
	}
	floats.ScaleTo(p.Frequencies, 1/total, frequencies)
	floats.CumSum(p.cumulative, p.Frequencies)
	return p, nil
}

// Loci returns the number of loci of the population's haplotypes.
func (p *Population) Loci() int {
	return len(p.Haplotypes[0])
}

func (p *Population) draw(source Source) int {
	u := source.Float64() * p.cumulative[len(p.cumulative)-1]
	i := sort.SearchFloat64s(p.cumulative, u)
	if i == len(p.cumulative) {
		i--
	}
	for p.Frequencies[i] == 0 && i > 0 {
		i--
	}
	return i
}

func diploidAlleles(first, second []string) [][]string {
	alleles := make([][]string, len(first))
	for l := range first {
		alleles[l] = []string{first[l], second[l]}
	}
	return alleles
}

// ExpectedDiploid returns the diploid records expected for a sample of
// the given number of individuals under Hardy-Weinberg equilibrium,
// with counts rounded to the nearest integer. Haplotype pairs with an
// expected count below one half are omitted.
func (p *Population) ExpectedDiploid(individuals int) []phase.Record {
	var records []phase.Record
	for i := range p.Haplotypes {
		for j := i; j < len(p.Haplotypes); j++ {
			expected := float64(individuals) * p.Frequencies[i] * p.Frequencies[j]
			if i != j {
				expected *= 2
			}
			count := int(math.Round(expected))
			if count == 0 {
				continue
			}
			records = append(records, phase.Record{
				ID:      "E" + strconv.Itoa(len(records)+1),
				Kind:    phase.Diploid,
				Alleles: diploidAlleles(p.Haplotypes[i], p.Haplotypes[j]),
				Count:   count,
			})
		}
	}
	return records
}

// SampleDiploid draws random diploid individuals.
func (p *Population) SampleDiploid(source Source, individuals int) []phase.Record {
	records := make([]phase.Record, individuals)
	for n := range records {
		first, second := p.draw(source), p.draw(source)
		records[n] = phase.Record{
			ID:      "I" + strconv.Itoa(n+1),
			Kind:    phase.Diploid,
			Alleles: diploidAlleles(p.Haplotypes[first], p.Haplotypes[second]),
		}
	}
	return records
}

// SamplePools draws random pools of poolSize diploid individuals.
func (p *Population) SamplePools(source Source, pools, poolSize int) []phase.Record {
	records := make([]phase.Record, pools)
	nloci := p.Loci()
	for n := range records {
		alleles := make([][]string, nloci)
		for c := 0; c < 2*poolSize; c++ {
			h := p.Haplotypes[p.draw(source)]
			for l := range alleles {
				alleles[l] = append(alleles[l], h[l])
			}
		}
		for _, symbols := range alleles {
			sort.Strings(symbols)
		}
		records[n] = phase.Record{
			ID:       "P" + strconv.Itoa(n+1),
			Kind:     phase.Pooled,
			Alleles:  alleles,
			PoolSize: poolSize,
		}
	}
	return records
}

// Write writes records in the genotype file format.
func Write(w io.Writer, loci []string, records []phase.Record) error {
	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "id\tcount\t%v\n", strings.Join(loci, "\t"))
	for _, record := range records {
		count := record.Count
		if count == 0 {
			count = 1
		}
		fmt.Fprintf(out, "%v\t%v", record.ID, count)
		for _, symbols := range record.Alleles {
			if len(symbols) == 0 {
				fmt.Fprint(out, "\t.")
			} else {
				fmt.Fprint(out, "\t", strings.Join(symbols, "/"))
			}
		}
		fmt.Fprintln(out)
	}
	return out.Flush()
}
