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
	"context"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
)

// ErrTooFewPopulations is returned by Differentiate when the records
// carry fewer than two sub-population labels.
var ErrTooFewPopulations = errors.New("differentiation test needs at least two sub-populations")

// A PopulationFit is the estimation on the samples of one
// sub-population.
type PopulationFit struct {
	Name         string
	Samples      int
	State        State
	LnLikelihood float64
}

// A DifferentiationTest compares the haplotype frequencies of
// sub-populations with a likelihood ratio test. The statistic is
// 2 × (Σ sub-population ln L - whole-sample ln L), asymptotically
// chi-square distributed with (populations - 1) × (haplotypes - 1)
// degrees of freedom, where haplotypes counts the haplotypes with a
// non-zero frequency in the whole sample.
type DifferentiationTest struct {
	Populations           []PopulationFit
	WholeLnLikelihood     float64
	CompositeLnLikelihood float64
	Statistic             float64
	DegreesOfFreedom      int

	// Asymptotic is the chi-square p-value, NaN without degrees of
	// freedom.
	Asymptotic float64

	// Permutations is the number of label permutations done, and
	// Empirical the resulting p-value, NaN without permutations.
	Permutations int
	Empirical    float64
}

// populationSamples splits the labelled records into one record per
// individual or pool, and returns the sorted sub-population labels.
// Records without a label are left out.
func populationSamples(records []phase.Record) (names []string, samples []phase.Record) {
	seen := make(map[string]bool)
	for _, record := range records {
		if record.Population == "" {
			continue
		}
		if record.Count < 0 {
			samples = append(samples, record)
		} else {
			single := record
			single.Count = 1
			for n := 0; n < record.Count || n == 0; n++ {
				samples = append(samples, single)
			}
		}
		if !seen[record.Population] {
			seen[record.Population] = true
			names = append(names, record.Population)
		}
	}
	sort.Strings(names)
	return names, samples
}

// subsample estimates frequencies on a subset of the samples. A
// subset without usable observations has likelihood 1.
func subsample(ctx context.Context, group *loci.Group, records []phase.Record, opts Options) *Result {
	result := Run(ctx, group, records, opts)
	if errors.Is(result.Err, ErrNoObservations) {
		result.LnLikelihood = 0
	}
	return result
}

func compositeLnLikelihood(ctx context.Context, group *loci.Group, names []string, records []phase.Record, labels []string, opts Options) (fits []PopulationFit, sum float64) {
	for _, name := range names {
		var subset []phase.Record
		for i, record := range records {
			if labels[i] == name {
				subset = append(subset, record)
			}
		}
		result := subsample(ctx, group, subset, opts)
		fits = append(fits, PopulationFit{
			Name:         name,
			Samples:      len(subset),
			State:        result.State,
			LnLikelihood: result.LnLikelihood,
		})
		sum += result.LnLikelihood
	}
	return fits, sum
}

// Differentiate tests whether the haplotype frequencies of the
// sub-populations named by the records' Population labels differ.
// Records without a label take no part in the test. With
// opts.Permutations > 0, the labels are shuffled across individuals
// or pools that many times with the options' random source to obtain
// an empirical p-value. Permutations stop early when ctx is done.
func Differentiate(ctx context.Context, group *loci.Group, records []phase.Record, opts Options) (*DifferentiationTest, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	permutations := opts.Permutations
	opts.Logger = zap.NewNop()
	opts.Differentiate = false

	names, labelled := populationSamples(records)
	if len(names) < 2 {
		return nil, ErrTooFewPopulations
	}

	whole := Run(ctx, group, labelled, opts)
	if whole.Err != nil {
		return nil, whole.Err
	}
	haplotypes := 0
	for _, f := range whole.Frequencies {
		if f.Frequency > 0 {
			haplotypes++
		}
	}

	labels := make([]string, len(labelled))
	for i, record := range labelled {
		labels[i] = record.Population
	}
	fits, composite := compositeLnLikelihood(ctx, group, names, labelled, labels, opts)
	test := &DifferentiationTest{
		Populations:           fits,
		WholeLnLikelihood:     whole.LnLikelihood,
		CompositeLnLikelihood: composite,
		Statistic:             2 * (composite - whole.LnLikelihood),
		DegreesOfFreedom:      (len(names) - 1) * (haplotypes - 1),
		Asymptotic:            math.NaN(),
		Empirical:             math.NaN(),
	}
	if test.DegreesOfFreedom > 0 {
		test.Asymptotic = distuv.ChiSquared{K: float64(test.DegreesOfFreedom)}.Survival(math.Max(test.Statistic, 0))
	}

	if permutations > 0 {
		significant := 1
		for test.Permutations < permutations && ctx.Err() == nil {
			for i := len(labels) - 1; i > 0; i-- {
				j := int(opts.Source.Int31n(int32(i + 1)))
				labels[i], labels[j] = labels[j], labels[i]
			}
			_, permuted := compositeLnLikelihood(ctx, group, names, labelled, labels, opts)
			if 2*(permuted-whole.LnLikelihood) > test.Statistic {
				significant++
			}
			test.Permutations++
		}
		if test.Permutations > 0 {
			test.Empirical = float64(significant) / float64(test.Permutations+1)
		}
	}

	logger.Info("Sub-population differentiation test",
		zap.Int("populations", len(names)),
		zap.Float64("statistic", test.Statistic),
		zap.Int("degreesOfFreedom", test.DegreesOfFreedom),
		zap.Float64("asymptotic", test.Asymptotic),
		zap.Int("permutations", test.Permutations),
		zap.Float64("empirical", test.Empirical))
	return test, nil
}
