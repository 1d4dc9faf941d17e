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

package em

import (
	"sort"

	"github.com/google/uuid"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/phase"
)

// A RunSummary describes one run from random starting weights.
type RunSummary struct {
	Run          int
	State        State
	Iterations   int
	LnLikelihood float64
}

// A HaplotypeFrequency is one row of the estimated frequency table.
type HaplotypeFrequency struct {
	Key       haplo.Key
	Name      string
	Frequency float64
}

// A CombinationWeight is the resolved weight of one combination of an
// observation.
type CombinationWeight struct {
	Haplotypes []string
	Weight     float64
}

// ObservationWeights lists the combinations of one observation with
// their final weights, in descending order of weight.
type ObservationWeights struct {
	ID           string
	Members      []string
	Name         string
	Count        float64
	Combinations []CombinationWeight
}

// A Result is the outcome of an estimation. Results are returned even
// if the estimation did not converge, in which case State is
// NonConvergent and the frequencies are those of the last iteration.
type Result struct {
	RunID uuid.UUID

	// State is Converged or NonConvergent, or Uninitialized if Err is
	// set.
	State      State
	StopReason string
	Iterations int
	Seed       int64

	LnLikelihood float64
	Runs         []RunSummary

	Loci        []string
	Chromosomes float64

	// Frequencies is sorted by descending frequency.
	Frequencies    []HaplotypeFrequency
	FrequencyTotal float64
	Observations   []ObservationWeights

	Skipped      []*phase.MalformedObservationError
	Inconsistent []*phase.InconsistentObservationError
	Oversized    []*phase.CombinationLimitError
	Degeneracies []Degeneracy

	// Differentiation is set if the differentiation test was
	// requested and could be done, DifferentiationErr otherwise.
	Differentiation    *DifferentiationTest
	DifferentiationErr error

	// Err is set if no estimation could be done at all.
	Err error

	index map[haplo.Key]int
}

// Frequency returns the estimated frequency of the haplotype with the
// given key.
func (r *Result) Frequency(key haplo.Key) (float64, bool) {
	i, ok := r.index[key]
	if !ok {
		return 0, false
	}
	return r.Frequencies[i].Frequency, true
}

func (e *Estimator) newResult() *Result {
	result := &Result{
		RunID:        uuid.New(),
		State:        e.state,
		StopReason:   e.stopReason,
		Iterations:   e.iterations,
		Seed:         e.opts.Seed,
		Loci:         e.group.Names(),
		Chromosomes:  e.chromosomes,
		Inconsistent: e.inconsistent,
		Oversized:    e.oversized,
		Degeneracies: append(append([]Degeneracy(nil), e.largePloidy...), e.degeneracies...),
	}
	if e.state == Uninitialized {
		return result
	}

	result.Frequencies = make([]HaplotypeFrequency, e.registry.Len())
	for h := range result.Frequencies {
		hap := e.registry.At(handle(h))
		result.Frequencies[h] = HaplotypeFrequency{
			Key:       hap.Key,
			Name:      e.registry.Name(handle(h), e.group),
			Frequency: e.registry.NewFrequency(handle(h), e.chromosomes),
		}
	}
	sort.SliceStable(result.Frequencies, func(i, j int) bool {
		fi, fj := result.Frequencies[i], result.Frequencies[j]
		if fi.Frequency != fj.Frequency {
			return fi.Frequency > fj.Frequency
		}
		return fi.Key.Less(fj.Key)
	})
	result.index = make(map[haplo.Key]int, len(result.Frequencies))
	for i, f := range result.Frequencies {
		result.index[f.Key] = i
		result.FrequencyTotal += f.Frequency
	}

	result.Observations = make([]ObservationWeights, len(e.observations))
	for i, o := range e.observations {
		weights := ObservationWeights{
			ID:           o.ID,
			Members:      o.Members,
			Name:         o.Name(e.group),
			Count:        o.Count,
			Combinations: make([]CombinationWeight, len(o.Combinations)),
		}
		for c, comb := range o.Combinations {
			names := make([]string, len(comb.Haplotypes))
			for k, h := range comb.Haplotypes {
				names[k] = e.registry.Name(h, e.group)
			}
			weights.Combinations[c] = CombinationWeight{Haplotypes: names, Weight: o.Weights[c]}
		}
		sort.SliceStable(weights.Combinations, func(i, j int) bool {
			return weights.Combinations[i].Weight > weights.Combinations[j].Weight
		})
		result.Observations[i] = weights
	}
	return result
}
