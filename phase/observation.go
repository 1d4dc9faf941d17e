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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/loci"
)

// An Observation is the phase-ambiguous allele data of one individual
// or one pool, together with the haplotype combinations consistent
// with it and their EM weights.
type Observation struct {
	ID   string
	Kind Kind

	// Count is the multiplicity of the observation.
	Count float64

	// Members lists the record IDs merged into this observation.
	Members []string

	// Genotypes holds the catalog genotype index per locus of a
	// diploid observation, or loci.Missing.
	Genotypes []int

	// AlleleCounts holds the allele-count vector per locus of a
	// pooled observation.
	AlleleCounts [][]int
	PoolSize     int

	// Combinations and Weights are set by Intern. Weights always sum
	// to 1.0.
	Combinations []Combination
	Weights      []float64

	// Status is the outcome of the latest UpdateWeights.
	Status WeightStatus

	candidates [][]haplo.Key
	logPriors  []float64
}

func malformed(record Record, locus *loci.Locus, format string, args ...interface{}) *MalformedObservationError {
	err := &MalformedObservationError{ID: record.ID, Reason: fmt.Sprintf(format, args...)}
	if locus != nil {
		err.Locus = locus.Name
	}
	return err
}

// Load turns a record into an Observation. All alleles must have been
// registered with the loci of the group beforehand: registering
// further alleles invalidates the genotype indices of loaded diploid
// observations. Errors are always of type *MalformedObservationError.
func Load(group *loci.Group, record Record) (*Observation, error) {
	if group.Len() > haplo.MaxLoci {
		return nil, malformed(record, nil, "%v loci exceed the maximum of %v", group.Len(), haplo.MaxLoci)
	}
	if len(record.Alleles) != group.Len() {
		return nil, malformed(record, nil, "expected %v loci, got %v", group.Len(), len(record.Alleles))
	}
	if record.Count < 0 {
		return nil, malformed(record, nil, "negative count %v", record.Count)
	}
	for l := 0; l < group.Len(); l++ {
		if locus := group.Locus(l); locus.AlleleCount() > haplo.MaxAlleles {
			return nil, malformed(record, locus, "%v alleles exceed the maximum of %v", locus.AlleleCount(), haplo.MaxAlleles)
		}
	}
	count := record.Count
	if count == 0 {
		count = 1
	}
	obs := &Observation{
		ID:      record.ID,
		Kind:    record.Kind,
		Count:   float64(count),
		Members: []string{record.ID},
	}
	switch record.Kind {
	case Diploid:
		obs.Genotypes = make([]int, group.Len())
		for l, symbols := range record.Alleles {
			locus := group.Locus(l)
			switch len(symbols) {
			case 0:
				obs.Genotypes[l] = loci.Missing
				continue
			case 2:
			default:
				return nil, malformed(record, locus, "expected 2 alleles, got %v", len(symbols))
			}
			a, ok := locus.AlleleIndex(symbols[0])
			if !ok {
				return nil, malformed(record, locus, "unknown allele %v", symbols[0])
			}
			b, ok := locus.AlleleIndex(symbols[1])
			if !ok {
				return nil, malformed(record, locus, "unknown allele %v", symbols[1])
			}
			locus.BuildGenotypeCatalog()
			obs.Genotypes[l] = locus.PairIndex(a, b)
		}
	case Pooled:
		if record.PoolSize <= 0 {
			return nil, malformed(record, nil, "invalid pool size %v", record.PoolSize)
		}
		obs.PoolSize = record.PoolSize
		obs.AlleleCounts = make([][]int, group.Len())
		for l, symbols := range record.Alleles {
			locus := group.Locus(l)
			if len(symbols) == 0 {
				return nil, malformed(record, locus, "missing data in a pool")
			}
			if len(symbols) != 2*record.PoolSize {
				return nil, malformed(record, locus, "%v alleles do not match pool size %v", len(symbols), record.PoolSize)
			}
			counts := make([]int, locus.AlleleCount())
			for _, symbol := range symbols {
				a, ok := locus.AlleleIndex(symbol)
				if !ok {
					return nil, malformed(record, locus, "unknown allele %v", symbol)
				}
				counts[a]++
			}
			obs.AlleleCounts[l] = counts
		}
	default:
		return nil, malformed(record, nil, "unknown record kind %v", record.Kind)
	}
	return obs, nil
}

// Ploidy returns the number of chromosome copies the observation
// represents: 2 for an individual, 2 × pool size for a pool.
func (o *Observation) Ploidy() int {
	if o.Kind == Pooled {
		return 2 * o.PoolSize
	}
	return 2
}

// Ambiguous returns true if more than one combination is consistent
// with the observation.
func (o *Observation) Ambiguous() bool {
	return len(o.Combinations) > 1
}

// Signature returns a string that is equal for observations with
// identical allele data.
func (o *Observation) Signature() string {
	var b strings.Builder
	if o.Kind == Pooled {
		b.WriteString("p")
		b.WriteString(strconv.Itoa(o.PoolSize))
		for _, counts := range o.AlleleCounts {
			b.WriteByte('|')
			for i, c := range counts {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.Itoa(c))
			}
		}
		return b.String()
	}
	b.WriteString("d")
	for _, g := range o.Genotypes {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(g))
	}
	return b.String()
}

// Merge adds the multiplicity of an observation with the same
// signature to this one.
func (o *Observation) Merge(other *Observation) {
	o.Count += other.Count
	o.Members = append(o.Members, other.Members...)
}

// Name describes the observed alleles per locus.
func (o *Observation) Name(group *loci.Group) string {
	names := make([]string, group.Len())
	for l := range names {
		locus := group.Locus(l)
		if o.Kind == Pooled {
			names[l] = locus.PooledName(o.AlleleCounts[l])
		} else if g := o.Genotypes[l]; g == loci.Missing {
			names[l] = "?/?"
		} else {
			names[l] = locus.Genotype(g).Name
		}
	}
	return strings.Join(names, "  ")
}

// Enumerate computes the haplotype combinations consistent with the
// observation and caches them until Intern is called. A positive
// limit bounds the number of combinations. It returns
// *InconsistentObservationError if no combination exists, and
// *CombinationLimitError if the limit is exceeded.
func (o *Observation) Enumerate(group *loci.Group, limit int) error {
	c := newCollector(limit)
	var err error
	switch o.Kind {
	case Diploid:
		err = enumerateDiploid(group, o.Genotypes, c.add)
	case Pooled:
		err = enumeratePool(o.AlleleCounts, o.Ploidy(), c.add)
	}
	if errors.Is(err, ErrTooManyCombinations) {
		return &CombinationLimitError{ID: o.ID, Limit: limit}
	} else if err != nil {
		return err
	}
	if len(c.combinations) == 0 {
		return &InconsistentObservationError{ID: o.ID}
	}
	o.candidates = c.combinations
	return nil
}

// Intern registers the haplotypes of the enumerated combinations with
// the registry and replaces the cached keys by handles.
func (o *Observation) Intern(registry *haplo.Registry) {
	o.Combinations = make([]Combination, len(o.candidates))
	for i, keys := range o.candidates {
		o.Combinations[i] = newCombination(registry, keys)
	}
	o.candidates = nil
	o.Weights = make([]float64, len(o.Combinations))
	o.logPriors = make([]float64, len(o.Combinations))
	if len(o.Weights) == 1 {
		o.Weights[0] = 1
	}
}
