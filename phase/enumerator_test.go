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
	"errors"
	"testing"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elhap/haplo"
	"github.com/exascience/elhap/loci"
)

func TestEnumerateHomozygous(t *testing.T) {
	g := biallelicGroup(2)
	registry := haplo.NewRegistry()
	o := enumerate(t, g, diploidRecord("i", "A/A", "b/b"), registry)
	if o.Ambiguous() || !stringsEqual(combinationNames(o, g, registry), []string{"A-b A-b"}) {
		t.Error("homozygous enumeration failed")
	}
	if c := o.Combinations[0]; len(c.Distinct) != 1 || c.Multiplicity[0] != 2 {
		t.Error("homozygous multiplicity failed")
	}
	if o.Weights[0] != 1 {
		t.Error("unambiguous weight failed")
	}
}

func TestEnumerateDoubleHeterozygote(t *testing.T) {
	g := biallelicGroup(2)
	registry := haplo.NewRegistry()
	o := enumerate(t, g, diploidRecord("i", "A/a", "B/b"), registry)
	if !stringsEqual(combinationNames(o, g, registry), []string{"A-B a-b", "A-b a-B"}) {
		t.Error("double heterozygote enumeration failed:", combinationNames(o, g, registry))
	}
	if registry.Len() != 4 {
		t.Error("double heterozygote registry failed")
	}
}

func TestEnumerateHeterozygotes(t *testing.T) {
	for h := 1; h <= 6; h++ {
		g := biallelicGroup(h)
		cells := make([]string, h)
		for l := range cells {
			locus := g.Locus(l)
			cells[l] = locus.AlleleName(0) + "/" + locus.AlleleName(1)
		}
		registry := haplo.NewRegistry()
		o := enumerate(t, g, diploidRecord("i", cells...), registry)
		if len(o.Combinations) != 1<<(h-1) {
			t.Errorf("%v heterozygous loci gave %v combinations", h, len(o.Combinations))
		}
		if registry.Len() != 1<<h {
			t.Errorf("%v heterozygous loci gave %v haplotypes", h, registry.Len())
		}
		if !projectionHolds(o, g, registry) {
			t.Errorf("projection failed for %v heterozygous loci", h)
		}
	}
}

func TestEnumerateMissing(t *testing.T) {
	g := biallelicGroup(2)
	registry := haplo.NewRegistry()
	o := enumerate(t, g, diploidRecord("i", "A/a", ""), registry)
	expected := []string{"A-B a-B", "A-B a-b", "A-b a-B", "A-b a-b"}
	if !stringsEqual(combinationNames(o, g, registry), expected) {
		t.Error("missing locus enumeration failed:", combinationNames(o, g, registry))
	}
	if !projectionHolds(o, g, registry) {
		t.Error("missing locus projection failed")
	}

	registry = haplo.NewRegistry()
	o = enumerate(t, g, diploidRecord("j", "", ""), registry)
	// 3 × 3 genotypes, of which AaBb has two phasings
	if len(o.Combinations) != 10 {
		t.Error("all missing enumeration failed:", len(o.Combinations))
	}
}

func TestEnumerateMultiallelic(t *testing.T) {
	g := loci.NewGroup()
	g.RegisterLocusAlleles("L1", "1", "2", "3")
	g.RegisterLocusAlleles("L2", "x", "y")
	registry := haplo.NewRegistry()
	o := enumerate(t, g, diploidRecord("i", "3/1", "y/x"), registry)
	if !stringsEqual(combinationNames(o, g, registry), []string{"1-x 3-y", "1-y 3-x"}) {
		t.Error("multiallelic enumeration failed:", combinationNames(o, g, registry))
	}
}

func TestEnumerateDeterministic(t *testing.T) {
	g := biallelicGroup(4)
	r := diploidRecord("i", "A/a", "", "C/c", "D/d")
	registry1, registry2 := haplo.NewRegistry(), haplo.NewRegistry()
	o1 := enumerate(t, g, r, registry1)
	o2 := enumerate(t, g, r, registry2)
	if len(o1.Combinations) != len(o2.Combinations) {
		t.Fatal("deterministic enumeration failed")
	}
	for i := range o1.Combinations {
		k1 := o1.Combinations[i].Keys(registry1)
		k2 := o2.Combinations[i].Keys(registry2)
		for j := range k1 {
			if k1[j] != k2[j] {
				t.Fatal("deterministic enumeration order failed")
			}
		}
	}
}

func TestEnumerateInconsistent(t *testing.T) {
	g := biallelicGroup(1)
	g.RegisterLocusAlleles("L2")
	o := mustLoad(t, g, diploidRecord("i", "A/a", ""))
	err := o.Enumerate(g, 0)
	var inconsistent *InconsistentObservationError
	if !errors.As(err, &inconsistent) || inconsistent.ID != "i" || !errors.Is(err, ErrInconsistent) {
		t.Error("inconsistent enumeration failed:", err)
	}
}

func TestEnumerateLimit(t *testing.T) {
	g := biallelicGroup(3)
	o := mustLoad(t, g, diploidRecord("i", "A/a", "B/b", "C/c"))
	err := o.Enumerate(g, 2)
	var limit *CombinationLimitError
	if !errors.As(err, &limit) || limit.Limit != 2 || !errors.Is(err, ErrTooManyCombinations) {
		t.Error("combination limit failed:", err)
	}
	if err := o.Enumerate(g, 4); err != nil {
		t.Error("combination limit at bound failed:", err)
	}
}

func TestEnumeratePool(t *testing.T) {
	g := biallelicGroup(2)
	registry := haplo.NewRegistry()

	o := enumerate(t, g, pooledRecord("p", 2, "A/A/a/a", "B/B/b/b"), registry)
	expected := []string{"A-B A-B a-b a-b", "A-B A-b a-B a-b", "A-b A-b a-B a-B"}
	if !stringsEqual(combinationNames(o, g, registry), expected) {
		t.Error("pool enumeration 1 failed:", combinationNames(o, g, registry))
	}
	if !projectionHolds(o, g, registry) {
		t.Error("pool projection 1 failed")
	}

	o = enumerate(t, g, pooledRecord("q", 2, "A/A/a/a", "B/B/B/B"), registry)
	if !stringsEqual(combinationNames(o, g, registry), []string{"A-B A-B a-B a-B"}) {
		t.Error("pool enumeration 2 failed:", combinationNames(o, g, registry))
	}
	if c := o.Combinations[0]; len(c.Distinct) != 2 || c.Multiplicity[0] != 2 || c.Multiplicity[1] != 2 {
		t.Error("pool multiplicity failed")
	}
}

func TestEnumerateSingleLocusPool(t *testing.T) {
	g := biallelicGroup(1)
	registry := haplo.NewRegistry()
	o := enumerate(t, g, pooledRecord("p", 2, "A/a/a/A"), registry)
	if !stringsEqual(combinationNames(o, g, registry), []string{"A A a a"}) || o.Ambiguous() {
		t.Error("single locus pool enumeration failed:", combinationNames(o, g, registry))
	}
}

func TestEnumeratePoolMatchesDiploid(t *testing.T) {
	g := biallelicGroup(4)
	registry := haplo.NewRegistry()
	d := enumerate(t, g, diploidRecord("d", "A/a", "B/b", "C/C", "D/d"), registry)
	p := enumerate(t, g, pooledRecord("p", 1, "A/a", "B/b", "C/C", "D/d"), registry)
	if !stringsEqual(combinationNames(d, g, registry), combinationNames(p, g, registry)) {
		t.Error("pool of one does not match diploid enumeration")
	}
}

func TestEnumerateLargePool(t *testing.T) {
	g := loci.NewGroup()
	g.RegisterLocusAlleles("L1", "A", "a")
	g.RegisterLocusAlleles("L2", "B", "b", "c")
	g.RegisterLocusAlleles("L3", "D", "d")
	registry := haplo.NewRegistry()
	o := enumerate(t, g, pooledRecord("p", 3, "A/A/A/a/a/a", "B/B/b/b/c/c", "D/d/d/d/d/d"), registry)
	if !projectionHolds(o, g, registry) {
		t.Error("large pool projection failed")
	}
	seen := make(map[string]bool)
	for _, name := range combinationNames(o, g, registry) {
		if seen[name] {
			t.Error("large pool duplicate combination:", name)
		}
		seen[name] = true
	}
	if len(o.Combinations) < 2 {
		t.Error("large pool enumeration failed")
	}
}

func TestSplits(t *testing.T) {
	bounds := []int{2, 1, 2}
	split := make([]int, 3)
	var got [][]int
	for ok := firstSplit(split, bounds, 3); ok; ok = nextSplit(split, bounds) {
		got = append(got, append([]int(nil), split...))
	}
	expected := [][]int{{2, 1, 0}, {2, 0, 1}, {1, 1, 1}, {1, 0, 2}, {0, 1, 2}}
	if len(got) != len(expected) {
		t.Fatal("splits failed:", got)
	}
	for i := range got {
		for j := range got[i] {
			if got[i][j] != expected[i][j] {
				t.Fatal("splits order failed:", got)
			}
		}
	}
	if firstSplit(split, bounds, 6) {
		t.Error("firstSplit beyond bounds failed")
	}
}

func BenchmarkEnumerateDiploid(b *testing.B) {
	g := biallelicGroup(12)
	cells := make([]string, 12)
	for l := range cells {
		locus := g.Locus(l)
		cells[l] = locus.AlleleName(0) + "/" + locus.AlleleName(1)
	}
	cells[3], cells[7] = "", ""
	o, err := Load(g, diploidRecord("i", cells...))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := o.Enumerate(g, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEnumeratePool(b *testing.B) {
	g := biallelicGroup(4)
	o, err := Load(g, pooledRecord("p", 3, "A/A/A/a/a/a", "B/B/b/b/b/b", "C/C/C/C/c/c", "D/D/D/d/d/d"))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := o.Enumerate(g, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func TestPhaseKeyReusesBitset(t *testing.T) {
	g := biallelicGroup(3)
	g.BuildGenotypeCatalogs()
	het := g.Locus(0).PairIndex(0, 1)
	genotypes := []int{het, het, het}
	heterozygous := bitset.New(3).Set(0).Set(1).Set(2)
	phases := bitset.New(64)

	key := phaseKey(g, genotypes, heterozygous, phases, 5)
	if alleles := key.Alleles(); alleles[0] != 1 || alleles[1] != 0 || alleles[2] != 1 {
		t.Error("phaseKey assignment failed:", alleles)
	}
	key = phaseKey(g, genotypes, heterozygous, phases, 2)
	if alleles := key.Alleles(); alleles[0] != 0 || alleles[1] != 1 || alleles[2] != 0 {
		t.Error("phaseKey reassignment failed:", alleles)
	}
	if allocs := testing.AllocsPerRun(100, func() {
		phaseKey(g, genotypes, heterozygous, phases, 3)
	}); allocs != 0 {
		t.Error("phaseKey allocates:", allocs)
	}
}
