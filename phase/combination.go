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
	"sort"
	"strings"

	"github.com/exascience/elhap/haplo"
)

// A Combination is a group of haplotypes, one per chromosome copy,
// whose per-locus projection reproduces an observation.
type Combination struct {
	// Haplotypes is sorted by haplotype key.
	Haplotypes []haplo.Handle

	// Distinct lists each haplotype of the combination once, and
	// Multiplicity how often it occurs.
	Distinct     []haplo.Handle
	Multiplicity []int
}

// Keys returns the keys of the haplotypes of the combination.
func (c Combination) Keys(registry *haplo.Registry) []haplo.Key {
	keys := make([]haplo.Key, len(c.Haplotypes))
	for i, h := range c.Haplotypes {
		keys[i] = registry.At(h).Key
	}
	return keys
}

func newCombination(registry *haplo.Registry, keys []haplo.Key) Combination {
	c := Combination{Haplotypes: make([]haplo.Handle, len(keys))}
	for i, key := range keys {
		h := registry.GetOrCreate(key)
		c.Haplotypes[i] = h
		if i > 0 && keys[i-1] == key {
			c.Multiplicity[len(c.Multiplicity)-1]++
		} else {
			c.Distinct = append(c.Distinct, h)
			c.Multiplicity = append(c.Multiplicity, 1)
		}
	}
	return c
}

func sortKeys(keys []haplo.Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
}

// combinationSignature identifies a sorted group of keys.
func combinationSignature(keys []haplo.Key) string {
	var b strings.Builder
	b.Grow(len(keys) * (2*keys[0].Len() + 1))
	for _, key := range keys {
		for l := 0; l < key.Len(); l++ {
			a := key.Allele(l)
			b.WriteByte(byte(a >> 8))
			b.WriteByte(byte(a))
		}
		b.WriteByte(0xff)
	}
	return b.String()
}

// A collector deduplicates the combinations produced by an enumerator,
// independent of the order in which they are generated.
type collector struct {
	limit        int
	seen         map[string]struct{}
	combinations [][]haplo.Key
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, seen: make(map[string]struct{})}
}

// add takes ownership of keys.
func (c *collector) add(keys []haplo.Key) error {
	sortKeys(keys)
	signature := combinationSignature(keys)
	if _, found := c.seen[signature]; found {
		return nil
	}
	if c.limit > 0 && len(c.combinations) >= c.limit {
		return ErrTooManyCombinations
	}
	c.seen[signature] = struct{}{}
	c.combinations = append(c.combinations, keys)
	return nil
}
