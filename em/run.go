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

	"go.uber.org/zap"

	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
)

// Load turns records into observations. Records with identical allele
// data are merged into a single observation whose count is the sum of
// their counts. Malformed records are returned separately.
func Load(group *loci.Group, records []phase.Record) (observations []*phase.Observation, skipped []*phase.MalformedObservationError) {
	bySignature := make(map[string]*phase.Observation)
	for _, record := range records {
		o, err := phase.Load(group, record)
		if err != nil {
			var malformed *phase.MalformedObservationError
			if !errors.As(err, &malformed) {
				malformed = &phase.MalformedObservationError{ID: record.ID, Reason: err.Error()}
			}
			skipped = append(skipped, malformed)
			continue
		}
		signature := o.Signature()
		if first, found := bySignature[signature]; found {
			first.Merge(o)
			continue
		}
		bySignature[signature] = o
		observations = append(observations, o)
	}
	return observations, skipped
}

// Run estimates haplotype frequencies from the given records. The
// alleles of all loci must have been registered with group. Malformed,
// inconsistent and oversized records are excluded and listed in the
// result; convergence and numerical problems are reported in the
// result as well, so that Run always returns a usable result.
func Run(ctx context.Context, group *loci.Group, records []phase.Record, opts Options) *Result {
	opts = opts.withDefaults()
	observations, skipped := Load(group, records)
	for _, s := range skipped {
		opts.Logger.Warn("Skipping malformed observation", zap.Error(s))
	}
	e := NewEstimator(group, observations, opts)
	if err := e.Initialize(); err != nil {
		result := e.newResult()
		result.Skipped = skipped
		result.Err = err
		return result
	}
	result := e.Run(ctx)
	result.Skipped = skipped
	if opts.Differentiate {
		result.Differentiation, result.DifferentiationErr = Differentiate(ctx, group, records, opts)
		if result.DifferentiationErr != nil {
			opts.Logger.Warn("Skipping differentiation test", zap.Error(result.DifferentiationErr))
		}
	}
	return result
}
