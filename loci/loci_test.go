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

package loci

import "testing"

func TestAddAllele(t *testing.T) {
	l := NewLocus("L1")
	if l.AddAllele("A") != 0 || l.AddAllele("a") != 1 {
		t.Error("AddAllele 1 failed")
	}
	if l.AddAllele("A") != 0 || l.AlleleCount() != 2 {
		t.Error("AddAllele 2 failed")
	}
	if i, ok := l.AlleleIndex("a"); !ok || i != 1 {
		t.Error("AlleleIndex 1 failed")
	}
	if _, ok := l.AlleleIndex("b"); ok {
		t.Error("AlleleIndex 2 failed")
	}
	if l.AlleleName(1) != "a" {
		t.Error("AlleleName failed")
	}
}

func TestGenotypeCatalog(t *testing.T) {
	l := NewLocus("L1")
	for _, symbol := range []string{"A", "B", "C"} {
		l.AddAllele(symbol)
	}
	if l.GenotypeCount() != 6 {
		t.Fatal("GenotypeCount 1 failed")
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			g := l.Genotype(l.PairIndex(a, b))
			if !(g.First == a && g.Second == b) && !(g.First == b && g.Second == a) {
				t.Errorf("PairIndex(%v, %v) failed", a, b)
			}
			if g.First > g.Second {
				t.Error("catalog order failed")
			}
		}
	}
	i, ok := l.GenotypeIndex("B/A")
	j, ok2 := l.GenotypeIndex("A/B")
	if !ok || !ok2 || i != j {
		t.Error("GenotypeIndex alternate name failed")
	}
	if g := l.Genotype(i); g.Name != "A/B" || g.AltName != "B/A" || g.Homozygous() {
		t.Error("Genotype names failed")
	}
	if g := l.Genotype(l.PairIndex(2, 2)); !g.Homozygous() || g.Allele(0) != 2 || g.Allele(1) != 2 {
		t.Error("Homozygous failed")
	}
	l.AddAllele("D")
	if l.GenotypeCount() != 10 {
		t.Error("GenotypeCount after AddAllele failed")
	}
}

func TestPooledName(t *testing.T) {
	l := NewLocus("L1")
	l.AddAllele("A")
	l.AddAllele("a")
	if name := l.PooledName([]int{1, 3}); name != "A/a/a/a" {
		t.Error("PooledName 1 failed:", name)
	}
	if name := l.PooledName([]int{1, 3}); name != "A/a/a/a" {
		t.Error("PooledName 2 failed:", name)
	}
	if name := l.PooledName([]int{0, 2}); name != "a/a" {
		t.Error("PooledName 3 failed:", name)
	}
}

func TestGroup(t *testing.T) {
	g := NewGroup()
	if g.RegisterLocusAlleles("L1", "A", "a") != 0 {
		t.Error("RegisterLocusAlleles 1 failed")
	}
	if g.RegisterLocusAlleles("L2", "B") != 1 {
		t.Error("RegisterLocusAlleles 2 failed")
	}
	if g.RegisterLocusAlleles("L1", "a", "x") != 0 {
		t.Error("RegisterLocusAlleles 3 failed")
	}
	if g.Len() != 2 || g.Locus(0).AlleleCount() != 3 {
		t.Error("Group contents failed")
	}
	if l, ok := g.Lookup("L2"); !ok || l != g.Locus(1) {
		t.Error("Lookup failed")
	}
	names := g.Names()
	if len(names) != 2 || names[0] != "L1" || names[1] != "L2" {
		t.Error("Names failed")
	}
}
