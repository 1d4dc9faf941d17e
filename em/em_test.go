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
	"strings"
	"testing"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/internal"
	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
	"github.com/exascience/elhap/simulate"
)

func twoLocusGroup() *loci.Group {
	g := loci.NewGroup()
	g.RegisterLocusAlleles("L1", "A", "a")
	g.RegisterLocusAlleles("L2", "B", "b")
	return g
}

func record(id string, count int, cells ...string) phase.Record {
	r := phase.Record{ID: id, Kind: phase.Diploid, Count: count, Alleles: make([][]string, len(cells))}
	for l, cell := range cells {
		if cell != "" {
			r.Alleles[l] = strings.Split(cell, "/")
		}
	}
	return r
}

func frequencyOf(result *Result, name string) float64 {
	for _, f := range result.Frequencies {
		if f.Name == name {
			return f.Frequency
		}
	}
	return 0
}

var linkedPopulation = [][]string{{"A", "B"}, {"a", "b"}, {"A", "b"}, {"a", "B"}}

var linkedFrequencies = []float64{0.27, 0.27, 0.23, 0.23}

func expectedRecords(t *testing.T, individuals int) []phase.Record {
	t.Helper()
	population, err := simulate.NewPopulation(linkedPopulation, linkedFrequencies)
	if err != nil {
		t.Fatal(err)
	}
	return population.ExpectedDiploid(individuals)
}

func TestRunUnambiguous(t *testing.T) {
	g := twoLocusGroup()
	result := Run(context.Background(), g, []phase.Record{
		record("1", 2, "A/A", "B/B"),
		record("2", 1, "a/a", "b/b"),
	}, Options{Seed: 1})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.State != Converged || result.Iterations != 2 {
		t.Error("unambiguous run state failed:", result.State, result.Iterations)
	}
	if math.Abs(frequencyOf(result, "A-B")-2.0/3) > 1e-12 || math.Abs(frequencyOf(result, "a-b")-1.0/3) > 1e-12 {
		t.Error("unambiguous frequencies failed")
	}
	if result.Frequencies[0].Name != "A-B" {
		t.Error("frequency order failed")
	}
	if f, ok := result.Frequency(haplo.NewKey([]int{1, 1})); !ok || math.Abs(f-1.0/3) > 1e-12 {
		t.Error("Result.Frequency failed")
	}
	if _, ok := result.Frequency(haplo.NewKey([]int{0, 1})); ok {
		t.Error("Result.Frequency of unseen haplotype failed")
	}
	if result.Chromosomes != 6 {
		t.Error("chromosomes failed")
	}
}

func TestCountConservation(t *testing.T) {
	g := twoLocusGroup()
	observations, skipped := Load(g, []phase.Record{
		record("1", 3, "A/a", "B/b"),
		record("2", 1, "A/A", "B/b"),
		record("3", 2, "a/a", ""),
		record("4", 1, "A/a", "B/B"),
	})
	if len(skipped) != 0 {
		t.Fatal("unexpected malformed records")
	}
	e := NewEstimator(g, observations, Options{Seed: 3})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.State() != Initialized {
		t.Error("state after Initialize failed")
	}
	if e.Chromosomes() != 14 {
		t.Error("chromosomes failed:", e.Chromosomes())
	}
	for i := 0; i < 5; i++ {
		e.EStep()
		if math.Abs(e.Registry().TotalCount()-e.Chromosomes()) > 1e-9 {
			t.Error("E-step does not conserve counts:", e.Registry().TotalCount())
		}
		e.MStep()
		for _, o := range e.Observations() {
			sum := 0.0
			for _, w := range o.Weights {
				sum += w
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Error("M-step weights do not sum to 1:", o.ID, sum)
			}
		}
	}
	static := 0.0
	for h := 0; h < e.Registry().Len(); h++ {
		static += e.Registry().At(haplo.Handle(h)).StaticCount
	}
	// observations 2 and 4 are unambiguous
	if static != 4 {
		t.Error("static counts failed:", static)
	}
	if err := e.Initialize(); err == nil {
		t.Error("second Initialize did not fail")
	}
}

func TestSyntheticRecovery(t *testing.T) {
	g := twoLocusGroup()
	result := Run(context.Background(), g, expectedRecords(t, 10000), Options{Seed: 11, Restarts: 5})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.State != Converged {
		t.Error("synthetic run did not converge:", result.StopReason)
	}
	for i, h := range linkedPopulation {
		name := strings.Join(h, "-")
		if f := frequencyOf(result, name); math.Abs(f-linkedFrequencies[i]) > 0.01 {
			t.Errorf("haplotype %v estimated at %v, expected %v", name, f, linkedFrequencies[i])
		}
	}
	if math.Abs(result.FrequencyTotal-1) > 1e-6 {
		t.Error("frequency total failed:", result.FrequencyTotal)
	}
	if len(result.Runs) != 5 {
		t.Error("restarts failed")
	}
	for _, run := range result.Runs {
		if run.LnLikelihood > result.LnLikelihood {
			t.Error("best run not kept")
		}
	}
	for _, d := range result.Degeneracies {
		t.Error("unexpected degeneracy:", d)
	}
	for _, o := range result.Observations {
		sum := 0.0
		for _, c := range o.Combinations {
			sum += c.Weight
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Error("observation weights do not sum to 1:", o.ID)
		}
	}
}

func TestDeterministic(t *testing.T) {
	records := expectedRecords(t, 500)
	r1 := Run(context.Background(), twoLocusGroup(), records, Options{Seed: 5, MaxIterations: 3})
	r2 := Run(context.Background(), twoLocusGroup(), records, Options{Seed: 5, MaxIterations: 3})
	if len(r1.Frequencies) != len(r2.Frequencies) {
		t.Fatal("deterministic run failed")
	}
	for i := range r1.Frequencies {
		if r1.Frequencies[i] != r2.Frequencies[i] {
			t.Error("deterministic frequencies failed")
		}
	}
	if r1.Seed != 5 || r1.RunID == r2.RunID {
		t.Error("run identification failed")
	}
}

func TestNonConvergent(t *testing.T) {
	result := Run(context.Background(), twoLocusGroup(), expectedRecords(t, 1000), Options{Seed: 2, MaxIterations: 1})
	if result.State != NonConvergent || result.Iterations != 1 || result.StopReason == "" {
		t.Error("non-convergent run failed:", result.State, result.Iterations)
	}
	if len(result.Frequencies) != 4 || math.Abs(result.FrequencyTotal-1) > 1e-9 {
		t.Error("non-convergent run lost its partial result")
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Run(ctx, twoLocusGroup(), expectedRecords(t, 1000), Options{Seed: 2, Restarts: 3})
	if result.State != NonConvergent || result.Iterations != 0 {
		t.Error("cancelled run failed:", result.State, result.Iterations)
	}
	if !strings.Contains(result.StopReason, "canceled") {
		t.Error("cancelled run stop reason failed:", result.StopReason)
	}
	if len(result.Runs) != 1 {
		t.Error("cancelled run restarted")
	}
	if len(result.Frequencies) != 4 || math.Abs(result.FrequencyTotal-1) > 1e-9 {
		t.Error("cancelled run has no frequencies from its starting weights:", result.FrequencyTotal)
	}
	if math.IsInf(result.LnLikelihood, 0) || math.IsNaN(result.LnLikelihood) {
		t.Error("cancelled run ln likelihood failed:", result.LnLikelihood)
	}
}

func TestExcludedObservations(t *testing.T) {
	g := twoLocusGroup()
	result := Run(context.Background(), g, []phase.Record{
		record("ok", 4, "A/A", "B/b"),
		record("bad", 1, "A/x", "B/b"),
		record("short", 1, "A/a"),
		record("big", 1, "A/a", "B/b"),
	}, Options{Seed: 1, CombinationLimit: 1})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if len(result.Skipped) != 2 || result.Skipped[0].ID != "bad" || result.Skipped[1].ID != "short" {
		t.Error("skipped observations failed")
	}
	if len(result.Oversized) != 1 || result.Oversized[0].ID != "big" {
		t.Error("oversized observations failed")
	}
	if len(result.Observations) != 1 || result.State != Converged {
		t.Error("run on remaining observations failed")
	}

	unlimited := Run(context.Background(), twoLocusGroup(), []phase.Record{
		record("big", 1, "A/a", "B/b"),
	}, Options{Seed: 1, CombinationLimit: -1})
	if len(unlimited.Oversized) != 0 || len(unlimited.Observations) != 1 {
		t.Error("unlimited combinations failed")
	}
}

func TestInconsistent(t *testing.T) {
	g := loci.NewGroup()
	g.RegisterLocusAlleles("L1", "A", "a")
	g.RegisterLocusAlleles("L2")
	result := Run(context.Background(), g, []phase.Record{record("i", 1, "A/a", "")}, Options{})
	if !errors.Is(result.Err, ErrNoObservations) || result.State != Uninitialized {
		t.Error("run without usable observations failed:", result.Err)
	}
	if len(result.Inconsistent) != 1 || result.Inconsistent[0].ID != "i" {
		t.Error("inconsistent observations failed")
	}
}

func TestMerge(t *testing.T) {
	observations, _ := Load(twoLocusGroup(), []phase.Record{
		record("1", 1, "A/a", "B/b"),
		record("2", 2, "a/A", "b/B"),
		record("3", 1, "A/A", "B/b"),
	})
	if len(observations) != 2 || observations[0].Count != 3 || len(observations[0].Members) != 2 {
		t.Error("merging identical observations failed")
	}
}

func TestPooledRun(t *testing.T) {
	population, err := simulate.NewPopulation(linkedPopulation, []float64{0.4, 0.3, 0.2, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	records := population.SamplePools(internal.NewRand(7), 500, 2)
	result := Run(context.Background(), twoLocusGroup(), records, Options{Seed: 3, MaxIterations: 10000})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.State != Converged {
		t.Error("pooled run did not converge:", result.StopReason)
	}
	if result.Chromosomes != 2000 {
		t.Error("pooled chromosomes failed:", result.Chromosomes)
	}
	if math.Abs(result.FrequencyTotal-1) > 1e-6 {
		t.Error("pooled frequency total failed:", result.FrequencyTotal)
	}
	if f := frequencyOf(result, "A-B"); math.Abs(f-0.4) > 0.1 {
		t.Error("pooled estimate failed:", f)
	}
}

func TestStateString(t *testing.T) {
	if NonConvergent.String() != "non-convergent" || Converged.String() != "converged" {
		t.Error("State.String failed")
	}
	if (Degeneracy{Kind: FrequencyDrift, Value: 0.9}).String() == "" {
		t.Error("Degeneracy.String failed")
	}
}

func TestLinkedWeights(t *testing.T) {
	result := Run(context.Background(), twoLocusGroup(), []phase.Record{
		record("cis1", 5, "A/A", "B/B"),
		record("cis2", 3, "a/a", "b/b"),
		record("het", 1, "A/a", "B/b"),
	}, Options{Seed: 9})
	if result.State != Converged {
		t.Fatal("linked run did not converge")
	}
	het := result.Observations[2]
	if het.ID != "het" || len(het.Combinations) != 2 {
		t.Fatal("linked observation failed")
	}
	if c := het.Combinations[0]; strings.Join(c.Haplotypes, " ") != "A-B a-b" || c.Weight < 0.99 {
		t.Error("weights did not move to the linked phase:", c.Haplotypes, c.Weight)
	}
}

func degeneraciesOf(result *Result, kind DegeneracyKind) (found []Degeneracy) {
	for _, d := range result.Degeneracies {
		if d.Kind == kind {
			found = append(found, d)
		}
	}
	return found
}

func TestLargePloidy(t *testing.T) {
	population, err := simulate.NewPopulation(linkedPopulation, []float64{0.4, 0.3, 0.2, 0.1})
	if err != nil {
		t.Fatal(err)
	}
	records := population.SamplePools(internal.NewRand(13), 10, 90)
	result := Run(context.Background(), twoLocusGroup(), records, Options{Seed: 4, MaxIterations: 10000})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	large := degeneraciesOf(result, LargePloidy)
	if len(large) != 1 || large[0].Value != 180 {
		t.Error("large ploidy not reported:", result.Degeneracies)
	}
	if math.IsInf(result.LnLikelihood, 0) || math.IsNaN(result.LnLikelihood) {
		t.Error("large ploidy ln likelihood failed:", result.LnLikelihood)
	}
	if math.Abs(result.FrequencyTotal-1) > 1e-6 {
		t.Error("large ploidy frequency total failed:", result.FrequencyTotal)
	}
	if len(degeneraciesOf(result, FrequencyDrift)) != 0 {
		t.Error("unexpected frequency drift")
	}
}

func TestZeroFrequency(t *testing.T) {
	// the repulsion phase weight squares every iteration until it
	// underflows to zero
	result := Run(context.Background(), twoLocusGroup(), []phase.Record{
		record("cis1", 5, "A/A", "B/B"),
		record("cis2", 3, "a/a", "b/b"),
		record("het", 1, "A/a", "B/b"),
	}, Options{Seed: 9, Epsilon: 1e-300})
	if result.State != Converged {
		t.Fatal("zero frequency run did not converge:", result.StopReason)
	}
	if frequencyOf(result, "A-b") != 0 || frequencyOf(result, "a-B") != 0 {
		t.Error("repulsion haplotypes did not reach zero:", frequencyOf(result, "A-b"), frequencyOf(result, "a-B"))
	}
	zero := degeneraciesOf(result, ZeroFrequency)
	if len(zero) != 2 {
		t.Fatal("zero frequencies not reported:", result.Degeneracies)
	}
	subjects := map[string]bool{zero[0].Subject: true, zero[1].Subject: true}
	if !subjects["A-b"] || !subjects["a-B"] {
		t.Error("zero frequency subjects failed:", zero)
	}
	if len(degeneraciesOf(result, ZeroLikelihood)) != 0 {
		t.Error("unexpected zero likelihood")
	}
}

func TestFrequencyDrift(t *testing.T) {
	g := twoLocusGroup()
	observations, _ := Load(g, expectedRecords(t, 200))
	e := NewEstimator(g, observations, Options{Seed: 6, Tolerance: 1e-3})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	e.Iterate(context.Background())
	e.finalDegeneracies()
	if len(e.degeneracies) != 0 {
		t.Error("unexpected degeneracies:", e.degeneracies)
	}

	counts := e.Registry().Snapshot()
	for i := range counts {
		counts[i] *= 1.01
	}
	e.Registry().Restore(counts)
	e.finalDegeneracies()
	if len(e.degeneracies) != 1 || e.degeneracies[0].Kind != FrequencyDrift || math.Abs(e.degeneracies[0].Value-1.01) > 1e-9 {
		t.Error("frequency drift not reported:", e.degeneracies)
	}
}

func TestDegeneraciesPerRun(t *testing.T) {
	g := twoLocusGroup()
	observations, _ := Load(g, []phase.Record{record("het", 1, "A/a", "B/b")})
	e := NewEstimator(g, observations, Options{Seed: 1})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	het := e.Observations()[0]
	het.Status = phase.WeightsZeroLikelihood
	e.collectStatuses()
	e.collectStatuses()
	if len(e.degeneracies) != 1 {
		t.Fatal("degeneracy not reported once:", e.degeneracies)
	}

	e.start()
	if len(e.degeneracies) != 0 {
		t.Error("degeneracies of a previous run kept")
	}
	het.Status = phase.WeightsZeroLikelihood
	e.collectStatuses()
	if len(e.degeneracies) != 1 || e.degeneracies[0].Subject != "het" {
		t.Error("degeneracy of a new run hidden by a previous run:", e.degeneracies)
	}
}
