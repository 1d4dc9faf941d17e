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

// Package em estimates population haplotype frequencies from
// phase-ambiguous observations with the Expectation-Maximization
// algorithm of Excoffier and Slatkin (Mol. Biol. Evol. 12(5):921-927,
// 1995), extended to pooled samples as in Ito et al. (AJHG
// 72:384-398, 2003).
//
// EM is not guaranteed to reach the same optimum from different
// starting weights. Starting weights are drawn from an explicitly
// seeded source, the seed is reported with every result, and the
// estimation can be restarted several times keeping the run with the
// highest likelihood.
package em

import (
	"go.uber.org/zap"

	"github.com/exascience/elhap/internal"
	"github.com/exascience/elhap/phase"
)

// Default option values.
const (
	DefaultMaxIterations    = 1000
	DefaultEpsilon          = 1e-7
	DefaultRestarts         = 1
	DefaultCombinationLimit = 1 << 20
	DefaultTolerance        = 1e-6
)

// Options control an estimation run.
type Options struct {
	// MaxIterations bounds the number of E/M iterations per run.
	MaxIterations int

	// Epsilon is the convergence threshold on the change of every
	// haplotype frequency between two iterations.
	Epsilon float64

	// Seed seeds the source of starting weights, unless Source is
	// set.
	Seed int64

	// Source overrides the random source for starting weights.
	Source phase.RandomSource

	// Restarts is the number of runs from independent starting
	// weights.
	Restarts int

	// CombinationLimit bounds the combinations per observation. A
	// negative limit disables the bound.
	CombinationLimit int

	// Tolerance bounds the drift of the sum of all haplotype
	// frequencies away from 1.0 before it is reported.
	Tolerance float64

	// Differentiate runs the sub-population differentiation test
	// after the estimation, with Permutations label permutations for
	// the empirical p-value.
	Differentiate bool
	Permutations  int

	Logger *zap.Logger
}

// DefaultOptions returns the options used for zero-valued fields.
func DefaultOptions() Options {
	return Options{
		MaxIterations:    DefaultMaxIterations,
		Epsilon:          DefaultEpsilon,
		Restarts:         DefaultRestarts,
		CombinationLimit: DefaultCombinationLimit,
		Tolerance:        DefaultTolerance,
	}
}

func (opts Options) withDefaults() Options {
	defaults := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = defaults.Epsilon
	}
	if opts.Restarts <= 0 {
		opts.Restarts = defaults.Restarts
	}
	if opts.CombinationLimit == 0 {
		opts.CombinationLimit = defaults.CombinationLimit
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.Source == nil {
		opts.Source = internal.NewRand(opts.Seed)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}
