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

package haplo

import (
	"math"
	"strings"

	"github.com/exascience/elhap/loci"
)

// A Handle refers to a Haplotype in a Registry.
type Handle int32

// A Haplotype holds the counts the EM iterations accumulate for one
// distinct haplotype.
type Haplotype struct {
	Key Key

	OldCount float64
	NewCount float64

	// StaticCount is the contribution of unambiguous observations. It
	// is set during initialization and never changed by the
	// iterations.
	StaticCount float64
}

// A Registry interns haplotype keys. Haplotypes are created lazily on
// first discovery and never destroyed.
type Registry struct {
	haplotypes []Haplotype
	index      map[Key]Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[Key]Handle)}
}

// GetOrCreate returns the handle of the canonical haplotype for the
// given key, creating it on first use.
func (r *Registry) GetOrCreate(key Key) Handle {
	if h, ok := r.index[key]; ok {
		return h
	}
	h := Handle(len(r.haplotypes))
	r.haplotypes = append(r.haplotypes, Haplotype{Key: key})
	r.index[key] = h
	return h
}

// Lookup returns the handle for the given key, if it was registered.
func (r *Registry) Lookup(key Key) (Handle, bool) {
	h, ok := r.index[key]
	return h, ok
}

// Len returns the number of registered haplotypes.
func (r *Registry) Len() int {
	return len(r.haplotypes)
}

// At returns the haplotype with the given handle.
func (r *Registry) At(h Handle) *Haplotype {
	return &r.haplotypes[h]
}

// Zero clears the old and new counts of every haplotype. Static
// counts are kept.
func (r *Registry) Zero() {
	for i := range r.haplotypes {
		hap := &r.haplotypes[i]
		hap.OldCount = 0
		hap.NewCount = 0
	}
}

// ClearStatic clears the static counts of every haplotype.
func (r *Registry) ClearStatic() {
	for i := range r.haplotypes {
		r.haplotypes[i].StaticCount = 0
	}
}

// AddStatic adds an unambiguous contribution to a haplotype.
func (r *Registry) AddStatic(h Handle, amount float64) {
	r.haplotypes[h].StaticCount += amount
}

// Reset moves every new count to the old count, and seeds the new
// count with only the static count.
func (r *Registry) Reset() {
	for i := range r.haplotypes {
		hap := &r.haplotypes[i]
		hap.OldCount = hap.NewCount
		hap.NewCount = hap.StaticCount
	}
}

// Accumulate adds counts[h] to the new count of each haplotype h.
func (r *Registry) Accumulate(counts []float64) {
	for i, c := range counts {
		r.haplotypes[i].NewCount += c
	}
}

// NewFrequency returns the frequency of a haplotype according to its
// new count, with chromosomes the total number of chromosome copies in
// the sample.
func (r *Registry) NewFrequency(h Handle, chromosomes float64) float64 {
	return r.haplotypes[h].NewCount / chromosomes
}

// OldFrequency returns the frequency of a haplotype according to its
// old count.
func (r *Registry) OldFrequency(h Handle, chromosomes float64) float64 {
	return r.haplotypes[h].OldCount / chromosomes
}

// Frequency returns count / (sampleSize × ploidyUnit) for the new
// count of a haplotype.
func (r *Registry) Frequency(h Handle, sampleSize, ploidyUnit float64) float64 {
	return r.NewFrequency(h, sampleSize*ploidyUnit)
}

// Converged returns true iff the new and old frequencies of every
// haplotype differ by less than epsilon.
func (r *Registry) Converged(chromosomes, epsilon float64) bool {
	for i := range r.haplotypes {
		hap := &r.haplotypes[i]
		if !(math.Abs(hap.NewCount-hap.OldCount)/chromosomes < epsilon) {
			return false
		}
	}
	return true
}

// TotalCount returns the sum of all new counts.
func (r *Registry) TotalCount() (total float64) {
	for i := range r.haplotypes {
		total += r.haplotypes[i].NewCount
	}
	return total
}

// TotalFrequency returns the sum of all new frequencies, which is 1.0
// at any stable point.
func (r *Registry) TotalFrequency(chromosomes float64) float64 {
	return r.TotalCount() / chromosomes
}

// Snapshot returns a copy of the new counts.
func (r *Registry) Snapshot() []float64 {
	counts := make([]float64, len(r.haplotypes))
	for i := range r.haplotypes {
		counts[i] = r.haplotypes[i].NewCount
	}
	return counts
}

// Restore sets the new counts from a snapshot, and the old counts to
// the same values.
func (r *Registry) Restore(counts []float64) {
	for i, c := range counts {
		hap := &r.haplotypes[i]
		hap.OldCount = c
		hap.NewCount = c
	}
}

// Name returns the allele symbols of a haplotype joined by dashes.
func (r *Registry) Name(h Handle, group *loci.Group) string {
	return KeyName(r.haplotypes[h].Key, group)
}

// KeyName returns the allele symbols of a key joined by dashes.
func KeyName(key Key, group *loci.Group) string {
	var b strings.Builder
	for l := 0; l < key.Len(); l++ {
		if l > 0 {
			b.WriteByte('-')
		}
		b.WriteString(group.Locus(l).AlleleName(key.Allele(l)))
	}
	return b.String()
}
