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
	"fmt"
	"math"

	"github.com/exascience/pargo/parallel"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
)

// ErrNoObservations is returned by Initialize when no observation is
// left to estimate from.
var ErrNoObservations = errors.New("no usable observations")

func handle(h int) haplo.Handle {
	return haplo.Handle(h)
}

// An Estimator runs the EM iterations over a fixed set of observations
// and the haplotype registry they populate. An Estimator holds all
// state of a run; nothing is shared between estimators.
type Estimator struct {
	group        *loci.Group
	observations []*phase.Observation
	ambiguous    []*phase.Observation
	registry     *haplo.Registry
	opts         Options
	logger       *zap.Logger

	logFactorials phase.LogFactorials
	chromosomes   float64
	maxPloidy     int

	state      State
	iterations int
	stopReason string

	inconsistent []*phase.InconsistentObservationError
	oversized    []*phase.CombinationLimitError

	// largePloidy is found once by Initialize; degeneracies and
	// flagged belong to the current run.
	largePloidy  []Degeneracy
	degeneracies []Degeneracy
	flagged      map[degeneracyKey]bool
}

// NewEstimator returns an Uninitialized estimator for the given
// observations.
func NewEstimator(group *loci.Group, observations []*phase.Observation, opts Options) *Estimator {
	opts = opts.withDefaults()
	return &Estimator{
		group:        group,
		observations: observations,
		registry:     haplo.NewRegistry(),
		opts:         opts,
		logger:       opts.Logger,
		flagged:      make(map[degeneracyKey]bool),
	}
}

// State returns the current state of the estimator.
func (e *Estimator) State() State {
	return e.state
}

// Iterations returns the number of iterations of the current run.
func (e *Estimator) Iterations() int {
	return e.iterations
}

// Registry returns the haplotype registry of the estimator.
func (e *Estimator) Registry() *haplo.Registry {
	return e.registry
}

// Observations returns the observations taking part in the
// estimation, after Initialize excluded the inconsistent ones.
func (e *Estimator) Observations() []*phase.Observation {
	return e.observations
}

// Chromosomes returns the total number of chromosome copies,
// Σ count × ploidy over all observations.
func (e *Estimator) Chromosomes() float64 {
	return e.chromosomes
}

// Initialize enumerates the combinations of every observation,
// registers the haplotypes they contain, accumulates the static
// counts of unambiguous observations, and draws starting weights for
// the ambiguous ones.
//
// Observations without combinations, or with too many, are excluded
// and reported in the result.
func (e *Estimator) Initialize() error {
	if e.state != Uninitialized {
		return fmt.Errorf("estimator already initialized (state %v)", e.state)
	}
	if len(e.observations) == 0 {
		return ErrNoObservations
	}
	e.group.BuildGenotypeCatalogs()

	limit := e.opts.CombinationLimit
	if limit < 0 {
		limit = 0
	}
	errs := make([]error, len(e.observations))
	parallel.Range(0, len(e.observations), 0, func(low, high int) {
		for i := low; i < high; i++ {
			errs[i] = e.observations[i].Enumerate(e.group, limit)
		}
	})

	kept := make([]*phase.Observation, 0, len(e.observations))
	for i, o := range e.observations {
		var inconsistent *phase.InconsistentObservationError
		var oversized *phase.CombinationLimitError
		switch err := errs[i]; {
		case err == nil:
			kept = append(kept, o)
		case errors.As(err, &inconsistent):
			e.logger.Warn("Excluding inconsistent observation", zap.String("id", o.ID))
			e.inconsistent = append(e.inconsistent, inconsistent)
		case errors.As(err, &oversized):
			e.logger.Warn("Excluding observation with too many combinations", zap.String("id", o.ID), zap.Int("limit", oversized.Limit))
			e.oversized = append(e.oversized, oversized)
		default:
			return err
		}
	}
	e.observations = kept
	if len(kept) == 0 {
		return ErrNoObservations
	}

	e.registry.ClearStatic()
	for _, o := range kept {
		o.Intern(e.registry)
		ploidy := o.Ploidy()
		e.chromosomes += o.Count * float64(ploidy)
		if ploidy > e.maxPloidy {
			e.maxPloidy = ploidy
		}
		if o.Ambiguous() {
			e.ambiguous = append(e.ambiguous, o)
		} else {
			for _, h := range o.Combinations[0].Haplotypes {
				e.registry.AddStatic(h, o.Count)
			}
		}
	}
	e.logFactorials = phase.NewLogFactorials(e.maxPloidy)
	if e.maxPloidy > maxFactorialPloidy {
		e.largePloidy = append(e.largePloidy, Degeneracy{Kind: LargePloidy, Value: float64(e.maxPloidy)})
	}

	e.start()
	e.logger.Info("Initialized haplotype estimation",
		zap.Int("observations", len(kept)),
		zap.Int("ambiguous", len(e.ambiguous)),
		zap.Int("haplotypes", e.registry.Len()),
		zap.Float64("chromosomes", e.chromosomes))
	return nil
}

// start draws fresh starting weights and clears the iteration counts
// and the degeneracies of the previous run.
func (e *Estimator) start() {
	for _, o := range e.observations {
		o.InitWeights(e.opts.Source)
	}
	e.registry.Zero()
	e.iterations = 0
	e.stopReason = ""
	e.degeneracies = nil
	e.flagged = make(map[degeneracyKey]bool)
	e.state = Initialized
}

// EStep seeds every haplotype count with its static count and adds
// the expected counts of the ambiguous observations under the current
// weights. Per-observation contributions are accumulated in parallel
// into partial count vectors that are then summed.
func (e *Estimator) EStep() {
	e.registry.Reset()
	n := e.registry.Len()
	counts := parallel.RangeReduce(0, len(e.ambiguous), 0, func(low, high int) interface{} {
		partial := make([]float64, n)
		for _, o := range e.ambiguous[low:high] {
			o.AccumulateCounts(partial)
		}
		return partial
	}, func(x, y interface{}) interface{} {
		px := x.([]float64)
		floats.Add(px, y.([]float64))
		return px
	}).([]float64)
	e.registry.Accumulate(counts)
}

// MStep recomputes the weights of every ambiguous observation from the
// current haplotype frequencies.
func (e *Estimator) MStep() {
	parallel.Range(0, len(e.ambiguous), 0, func(low, high int) {
		for _, o := range e.ambiguous[low:high] {
			o.UpdateWeights(e.registry, e.chromosomes, e.logFactorials)
		}
	})
	e.collectStatuses()
}

// Iterate performs E/M iterations until convergence, until
// MaxIterations is exhausted, or until ctx is done. It returns the
// resulting state, Converged or NonConvergent. If ctx is done before
// the first iteration, the counts are still computed from the
// starting weights.
func (e *Estimator) Iterate(ctx context.Context) State {
	if e.state == Uninitialized {
		panic("Iterate called on an uninitialized estimator")
	}
	e.state = Iterating
	for e.iterations < e.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			if e.iterations == 0 {
				e.EStep()
			}
			e.stopReason = err.Error()
			e.state = NonConvergent
			return e.state
		}
		e.EStep()
		e.MStep()
		e.iterations++
		if e.registry.Converged(e.chromosomes, e.opts.Epsilon) {
			e.state = Converged
			return e.state
		}
		if ce := e.logger.Check(zap.DebugLevel, "EM iteration"); ce != nil {
			ce.Write(zap.Int("iteration", e.iterations), zap.Float64("lnLikelihood", e.LnLikelihood()))
		}
	}
	e.stopReason = fmt.Sprintf("no convergence after %v iterations", e.iterations)
	e.state = NonConvergent
	return e.state
}

// LnLikelihood returns the log likelihood of the observations under
// the current haplotype frequencies.
func (e *Estimator) LnLikelihood() float64 {
	return parallel.RangeReduceFloat64(0, len(e.observations), 0, func(low, high int) float64 {
		var sum float64
		for _, o := range e.observations[low:high] {
			sum += o.LogLikelihood(e.registry, e.chromosomes, e.logFactorials)
		}
		return sum
	}, func(x, y float64) float64 {
		return x + y
	})
}

type bestRun struct {
	summary      RunSummary
	counts       []float64
	weights      [][]float64
	reason       string
	degeneracies []Degeneracy
}

func (e *Estimator) saveRun(summary RunSummary) *bestRun {
	weights := make([][]float64, len(e.observations))
	for i, o := range e.observations {
		weights[i] = append([]float64(nil), o.Weights...)
	}
	return &bestRun{
		summary:      summary,
		counts:       e.registry.Snapshot(),
		weights:      weights,
		reason:       e.stopReason,
		degeneracies: append([]Degeneracy(nil), e.degeneracies...),
	}
}

func (e *Estimator) restoreRun(best *bestRun) {
	e.registry.Restore(best.counts)
	for i, o := range e.observations {
		copy(o.Weights, best.weights[i])
	}
	e.state = best.summary.State
	e.iterations = best.summary.Iterations
	e.stopReason = best.reason
	e.degeneracies = best.degeneracies
}

// Run performs Restarts runs of the EM iterations from independent
// starting weights and keeps the run with the highest log likelihood.
// The estimator must be initialized.
func (e *Estimator) Run(ctx context.Context) *Result {
	var best *bestRun
	var runs []RunSummary
	for run := 1; run <= e.opts.Restarts; run++ {
		if run > 1 {
			e.start()
		}
		state := e.Iterate(ctx)
		summary := RunSummary{
			Run:          run,
			State:        state,
			Iterations:   e.iterations,
			LnLikelihood: e.LnLikelihood(),
		}
		runs = append(runs, summary)
		e.logger.Info("EM run finished",
			zap.Int("run", run),
			zap.Stringer("state", state),
			zap.Int("iterations", e.iterations),
			zap.Float64("lnLikelihood", summary.LnLikelihood))
		if best == nil || summary.LnLikelihood > best.summary.LnLikelihood ||
			(math.IsNaN(best.summary.LnLikelihood) && !math.IsNaN(summary.LnLikelihood)) {
			best = e.saveRun(summary)
		}
		if ctx.Err() != nil {
			break
		}
	}
	e.restoreRun(best)
	e.finalDegeneracies()
	result := e.newResult()
	for _, d := range result.Degeneracies {
		e.logger.Warn("Numeric degeneracy", zap.Stringer("degeneracy", d))
	}
	result.Runs = runs
	result.LnLikelihood = best.summary.LnLikelihood
	return result
}
