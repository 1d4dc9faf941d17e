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
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/exascience/elhap/haplo"
)

// A RandomSource draws the initial weights of ambiguous observations.
// *internal.Rand and *math/rand.Rand satisfy it.
type RandomSource interface {
	Int31n(n int32) int32
}

// WeightStatus reports whether UpdateWeights could derive new weights.
type WeightStatus int

const (
	// WeightsUpdated means the weights were recomputed.
	WeightsUpdated WeightStatus = iota
	// WeightsZeroLikelihood means every combination involves a
	// haplotype of frequency zero. The previous weights are kept.
	WeightsZeroLikelihood
	// WeightsNonFinite means a prior evaluated to NaN or +Inf. The
	// previous weights are kept.
	WeightsNonFinite
)

// LogFactorials holds ln(k!) for k up to the largest ploidy of a run.
type LogFactorials []float64

// NewLogFactorials tabulates ln(k!) for k = 0..n.
func NewLogFactorials(n int) LogFactorials {
	table := make(LogFactorials, n+1)
	for k := 2; k <= n; k++ {
		table[k] = table[k-1] + math.Log(float64(k))
	}
	return table
}

// logPower returns ln(f^m), with 0^0 = 1.
func logPower(f float64, m int) float64 {
	switch {
	case m == 0:
		return 0
	case f == 0:
		return math.Inf(-1)
	default:
		return float64(m) * math.Log(f)
	}
}

// InitWeights assigns each combination of an ambiguous observation a
// random weight in [1,100], normalised to sum to 1.0. Unambiguous
// observations get weight 1.0.
func (o *Observation) InitWeights(source RandomSource) {
	if !o.Ambiguous() {
		o.Weights[0] = 1
		return
	}
	for c := range o.Weights {
		o.Weights[c] = float64(source.Int31n(100) + 1)
	}
	floats.Scale(1/floats.Sum(o.Weights), o.Weights)
	o.Status = WeightsUpdated
}

// LogPrior returns the log of the relative likelihood of a
// combination, g! × Π_h f(h)^m(h) / m(h)!, with g the ploidy of the
// observation and f the current haplotype frequencies.
func (o *Observation) LogPrior(c int, registry *haplo.Registry, chromosomes float64, logFactorials LogFactorials) float64 {
	comb := &o.Combinations[c]
	prior := logFactorials[len(comb.Haplotypes)]
	for i, h := range comb.Distinct {
		m := comb.Multiplicity[i]
		prior += logPower(registry.NewFrequency(h, chromosomes), m) - logFactorials[m]
	}
	return prior
}

func (o *Observation) computeLogPriors(registry *haplo.Registry, chromosomes float64, logFactorials LogFactorials) {
	for c := range o.Combinations {
		o.logPriors[c] = o.LogPrior(c, registry, chromosomes, logFactorials)
	}
}

// UpdateWeights recomputes the weights of an ambiguous observation
// from the current haplotype frequencies and normalises them. The
// computation is done in log space, so large ploidies cannot overflow
// the factorials.
func (o *Observation) UpdateWeights(registry *haplo.Registry, chromosomes float64, logFactorials LogFactorials) WeightStatus {
	if !o.Ambiguous() {
		return WeightsUpdated
	}
	o.computeLogPriors(registry, chromosomes, logFactorials)
	if floats.HasNaN(o.logPriors) {
		o.Status = WeightsNonFinite
		return o.Status
	}
	max := floats.Max(o.logPriors)
	switch {
	case math.IsInf(max, 1):
		o.Status = WeightsNonFinite
		return o.Status
	case math.IsInf(max, -1):
		o.Status = WeightsZeroLikelihood
		return o.Status
	}
	for c, prior := range o.logPriors {
		o.Weights[c] = math.Exp(prior - max)
	}
	floats.Scale(1/floats.Sum(o.Weights), o.Weights)
	o.Status = WeightsUpdated
	return o.Status
}

// LogLikelihood returns count × ln Σ_c prior(c), the contribution of
// the observation to the sample log likelihood.
func (o *Observation) LogLikelihood(registry *haplo.Registry, chromosomes float64, logFactorials LogFactorials) float64 {
	o.computeLogPriors(registry, chromosomes, logFactorials)
	return o.Count * floats.LogSumExp(o.logPriors)
}

// AccumulateCounts adds count × weight to counts[h] for every
// haplotype h of every combination, once per occurrence.
func (o *Observation) AccumulateCounts(counts []float64) {
	for c, comb := range o.Combinations {
		amount := o.Count * o.Weights[c]
		for _, h := range comb.Haplotypes {
			counts[h] += amount
		}
	}
}
