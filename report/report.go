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

// Package report writes estimation results as tab-separated tables.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/exascience/elhap/em"
)

// WriteFrequencies writes the haplotype frequency table of a result.
// Haplotypes with a frequency below cutoff are omitted, except for
// the most frequent one.
func WriteFrequencies(w io.Writer, result *em.Result, cutoff float64) error {
	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "# run\t%v\n", result.RunID)
	fmt.Fprintf(out, "# state\t%v\n", result.State)
	if result.StopReason != "" {
		fmt.Fprintf(out, "# stop reason\t%v\n", result.StopReason)
	}
	fmt.Fprintf(out, "# iterations\t%v\n", result.Iterations)
	fmt.Fprintf(out, "# seed\t%v\n", result.Seed)
	fmt.Fprintf(out, "# ln likelihood\t%.6f\n", result.LnLikelihood)
	if len(result.Runs) > 1 {
		for _, run := range result.Runs {
			fmt.Fprintf(out, "# run %v\t%v\t%v iterations\tln likelihood %.6f\n", run.Run, run.State, run.Iterations, run.LnLikelihood)
		}
	}
	fmt.Fprintf(out, "haplotype\t%v\tfrequency\n", strings.Join(result.Loci, "\t"))
	omitted := 0
	for i, f := range result.Frequencies {
		if i > 0 && f.Frequency < cutoff {
			omitted++
			continue
		}
		fmt.Fprintf(out, "%v\t%v\t%.6f\n", f.Name, strings.Replace(f.Name, "-", "\t", -1), f.Frequency)
	}
	if omitted > 0 {
		fmt.Fprintf(out, "# %v haplotypes below %v omitted\n", omitted, cutoff)
	}
	fmt.Fprintf(out, "total\t%v%.6f\n", strings.Repeat("\t", len(result.Loci)), result.FrequencyTotal)
	if result.Differentiation != nil {
		writeDifferentiation(out, result.Differentiation)
	}
	return out.Flush()
}

func pValue(p float64) string {
	if math.IsNaN(p) {
		return "---"
	}
	return fmt.Sprintf("%.6g", p)
}

func writeDifferentiation(out *bufio.Writer, test *em.DifferentiationTest) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "population\tsamples\tstate\tln likelihood")
	for _, p := range test.Populations {
		fmt.Fprintf(out, "%v\t%v\t%v\t%.6f\n", p.Name, p.Samples, p.State, p.LnLikelihood)
	}
	fmt.Fprintf(out, "# composite ln likelihood\t%.6f\n", test.CompositeLnLikelihood)
	fmt.Fprintf(out, "# whole ln likelihood\t%.6f\n", test.WholeLnLikelihood)
	fmt.Fprintf(out, "# statistic\t%.6f\n", test.Statistic)
	fmt.Fprintf(out, "# degrees of freedom\t%v\n", test.DegreesOfFreedom)
	fmt.Fprintf(out, "# asymptotic p\t%v\n", pValue(test.Asymptotic))
	fmt.Fprintf(out, "# permutations\t%v\n", test.Permutations)
	fmt.Fprintf(out, "# empirical p\t%v\n", pValue(test.Empirical))
}

// WriteCombinations writes, for every observation, its combinations
// with their final weights.
func WriteCombinations(w io.Writer, result *em.Result) error {
	out := bufio.NewWriter(w)
	fmt.Fprintln(out, "id\tcount\tgenotype\tcombination\tweight")
	for _, o := range result.Observations {
		id := o.ID
		if len(o.Members) > 1 {
			id = strings.Join(o.Members, ",")
		}
		for _, c := range o.Combinations {
			fmt.Fprintf(out, "%v\t%v\t%v\t%v\t%.6f\n", id, o.Count, o.Name, strings.Join(c.Haplotypes, " "), c.Weight)
		}
	}
	return out.Flush()
}

// WriteDiagnostics writes excluded observations and numerical
// problems of a result.
func WriteDiagnostics(w io.Writer, result *em.Result) error {
	out := bufio.NewWriter(w)
	if result.Err != nil {
		fmt.Fprintln(out, "error:", result.Err)
	}
	for _, s := range result.Skipped {
		fmt.Fprintln(out, "skipped:", s)
	}
	for _, i := range result.Inconsistent {
		fmt.Fprintln(out, "inconsistent:", i)
	}
	for _, o := range result.Oversized {
		fmt.Fprintln(out, "oversized:", o)
	}
	for _, d := range result.Degeneracies {
		fmt.Fprintln(out, "degeneracy:", d)
	}
	if result.DifferentiationErr != nil {
		fmt.Fprintln(out, "differentiation:", result.DifferentiationErr)
	}
	return out.Flush()
}
