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

package simulate

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/exascience/elhap/phase"
)

func testPopulation(t *testing.T) *Population {
	t.Helper()
	p, err := NewPopulation([][]string{
		ParseHaplotype("A-B"),
		ParseHaplotype("a-b"),
		ParseHaplotype("A-b"),
	}, []float64{2, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPopulation(t *testing.T) {
	p := testPopulation(t)
	if p.Loci() != 2 || p.Frequencies[0] != 0.5 || p.Frequencies[2] != 0.25 {
		t.Error("NewPopulation failed")
	}
	if _, err := NewPopulation([][]string{{"A"}, {"a", "b"}}, []float64{1, 1}); err == nil {
		t.Error("NewPopulation locus count check failed")
	}
	if _, err := NewPopulation([][]string{{"A"}}, []float64{1, 1}); err == nil {
		t.Error("NewPopulation frequency count check failed")
	}
	if _, err := NewPopulation([][]string{{"A"}}, []float64{-1}); err == nil {
		t.Error("NewPopulation negative frequency check failed")
	}
}

func TestExpectedDiploid(t *testing.T) {
	records := testPopulation(t).ExpectedDiploid(16)
	total := 0
	for _, r := range records {
		total += r.Count
		if r.Kind != phase.Diploid || len(r.Alleles) != 2 || len(r.Alleles[0]) != 2 {
			t.Error("ExpectedDiploid record failed")
		}
	}
	if total != 16 || len(records) != 6 {
		t.Error("ExpectedDiploid counts failed:", total, len(records))
	}
	// AB/AB is expected 16 × 0.5 × 0.5 = 4 times
	if records[0].Count != 4 || records[0].Alleles[0][0] != "A" || records[0].Alleles[1][1] != "B" {
		t.Error("ExpectedDiploid first record failed")
	}
}

func TestSample(t *testing.T) {
	p := testPopulation(t)
	individuals := p.SampleDiploid(rand.New(rand.NewSource(1)), 4000)
	ab := 0
	for _, r := range individuals {
		for c := 0; c < 2; c++ {
			if r.Alleles[0][c] == "a" {
				ab++
			}
		}
	}
	if f := float64(ab) / 8000; math.Abs(f-0.25) > 0.03 {
		t.Error("SampleDiploid frequency failed:", f)
	}
	pools := p.SamplePools(rand.New(rand.NewSource(1)), 10, 3)
	for _, r := range pools {
		if r.Kind != phase.Pooled || r.PoolSize != 3 || len(r.Alleles[1]) != 6 {
			t.Error("SamplePools failed")
		}
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	records := []phase.Record{
		{ID: "i1", Alleles: [][]string{{"A", "a"}, nil}},
		{ID: "i2", Count: 3, Alleles: [][]string{{"A", "A"}, {"B", "b"}}},
	}
	if err := Write(&buf, []string{"L1", "L2"}, records); err != nil {
		t.Fatal(err)
	}
	expected := "id\tcount\tL1\tL2\ni1\t1\tA/a\t.\ni2\t3\tA/A\tB/b\n"
	if buf.String() != expected {
		t.Error("Write failed:", strings.Replace(buf.String(), "\t", "|", -1))
	}
}
