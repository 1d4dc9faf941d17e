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

// A Group is the fixed, ordered set of loci over which haplotypes are
// estimated.
type Group struct {
	loci  []*Locus
	index map[string]int
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{index: make(map[string]int)}
}

// RegisterLocusAlleles registers the given allele symbols with the
// locus named locusID, appending a new locus to the group on first
// sight. It returns the position of the locus in the group.
func (g *Group) RegisterLocusAlleles(locusID string, symbols ...string) int {
	position, ok := g.index[locusID]
	if !ok {
		position = len(g.loci)
		g.loci = append(g.loci, NewLocus(locusID))
		g.index[locusID] = position
	}
	locus := g.loci[position]
	for _, symbol := range symbols {
		locus.AddAllele(symbol)
	}
	return position
}

// Len returns the number of loci in the group.
func (g *Group) Len() int {
	return len(g.loci)
}

// Locus returns the locus at the given position.
func (g *Group) Locus(position int) *Locus {
	return g.loci[position]
}

// Lookup returns the locus with the given name.
func (g *Group) Lookup(name string) (*Locus, bool) {
	position, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.loci[position], true
}

// Names returns the locus names in group order.
func (g *Group) Names() []string {
	names := make([]string, len(g.loci))
	for i, locus := range g.loci {
		names[i] = locus.Name
	}
	return names
}

// BuildGenotypeCatalogs builds the diploid genotype catalog of every
// locus in the group.
func (g *Group) BuildGenotypeCatalogs() {
	for _, locus := range g.loci {
		locus.BuildGenotypeCatalog()
	}
}
