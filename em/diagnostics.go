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
	"fmt"
	"math"

	"github.com/exascience/elhap/phase"
)

// DegeneracyKind classifies numerical problems found during a run.
type DegeneracyKind int

const (
	// ZeroFrequency marks a haplotype whose frequency estimate is
	// exactly zero at the end of the run.
	ZeroFrequency DegeneracyKind = iota
	// ZeroLikelihood marks an observation all of whose combinations
	// involve a haplotype of frequency zero.
	ZeroLikelihood
	// NonFinite marks an observation whose combination priors
	// evaluated to NaN or infinity.
	NonFinite
	// LargePloidy marks a ploidy whose factorial exceeds the range of
	// float64; priors are evaluated in log space.
	LargePloidy
	// FrequencyDrift marks a sum of haplotype frequencies further
	// from 1.0 than the tolerance.
	FrequencyDrift
)

func (k DegeneracyKind) String() string {
	switch k {
	case ZeroFrequency:
		return "zero-frequency"
	case ZeroLikelihood:
		return "zero-likelihood"
	case NonFinite:
		return "non-finite"
	case LargePloidy:
		return "large-ploidy"
	case FrequencyDrift:
		return "frequency-drift"
	default:
		return "unknown"
	}
}

// maxFactorialPloidy is the largest n with n! representable as a
// float64.
const maxFactorialPloidy = 170

// A Degeneracy reports one numerical problem.
type Degeneracy struct {
	Kind DegeneracyKind

	// Subject names the observation or haplotype concerned, if any.
	Subject string

	Value float64

	// Iteration is the iteration of the run at which the problem was
	// first seen, or 0 for problems found at the end of a run.
	Iteration int
}

func (d Degeneracy) String() string {
	switch d.Kind {
	case ZeroFrequency:
		return fmt.Sprintf("%v: haplotype %v has frequency zero", d.Kind, d.Subject)
	case ZeroLikelihood, NonFinite:
		return fmt.Sprintf("%v: observation %v at iteration %v, previous weights kept", d.Kind, d.Subject, d.Iteration)
	case LargePloidy:
		return fmt.Sprintf("%v: ploidy %v exceeds factorial range, priors evaluated in log space", d.Kind, d.Value)
	case FrequencyDrift:
		return fmt.Sprintf("%v: haplotype frequencies sum to %v", d.Kind, d.Value)
	default:
		return d.Kind.String()
	}
}

func statusDegeneracy(status phase.WeightStatus) (DegeneracyKind, bool) {
	switch status {
	case phase.WeightsZeroLikelihood:
		return ZeroLikelihood, true
	case phase.WeightsNonFinite:
		return NonFinite, true
	default:
		return 0, false
	}
}

// collectStatuses records the observations whose weights could not be
// updated in the last M-step, once per observation.
func (e *Estimator) collectStatuses() {
	for _, o := range e.ambiguous {
		kind, degenerate := statusDegeneracy(o.Status)
		if !degenerate {
			continue
		}
		key := degeneracyKey{kind, o.ID}
		if e.flagged[key] {
			continue
		}
		e.flagged[key] = true
		e.degeneracies = append(e.degeneracies, Degeneracy{Kind: kind, Subject: o.ID, Iteration: e.iterations})
	}
}

type degeneracyKey struct {
	kind    DegeneracyKind
	subject string
}

// finalDegeneracies checks the haplotype frequencies at the end of the
// best run.
func (e *Estimator) finalDegeneracies() {
	for h := 0; h < e.registry.Len(); h++ {
		if hap := e.registry.At(handle(h)); hap.NewCount == 0 {
			e.degeneracies = append(e.degeneracies, Degeneracy{
				Kind:    ZeroFrequency,
				Subject: e.registry.Name(handle(h), e.group),
			})
		}
	}
	if total := e.registry.TotalFrequency(e.chromosomes); math.IsNaN(total) || math.Abs(total-1) > e.opts.Tolerance {
		e.degeneracies = append(e.degeneracies, Degeneracy{Kind: FrequencyDrift, Value: total})
	}
}
