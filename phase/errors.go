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
	"fmt"
)

// Sentinel errors wrapped by the observation error types, for use
// with errors.Is.
var (
	ErrMalformed           = errors.New("malformed observation")
	ErrInconsistent        = errors.New("inconsistent observation")
	ErrTooManyCombinations = errors.New("too many haplotype combinations")
)

// A MalformedObservationError reports a record that cannot be loaded:
// an unknown allele symbol, a wrong number of loci, or a per-locus
// allele tally that does not match the declared ploidy. Such records
// are excluded from a run.
type MalformedObservationError struct {
	ID     string
	Locus  string
	Reason string
}

func (e *MalformedObservationError) Error() string {
	if e.Locus != "" {
		return fmt.Sprintf("malformed observation %v at locus %v: %v", e.ID, e.Locus, e.Reason)
	}
	return fmt.Sprintf("malformed observation %v: %v", e.ID, e.Reason)
}

// Unwrap returns ErrMalformed.
func (e *MalformedObservationError) Unwrap() error {
	return ErrMalformed
}

// An InconsistentObservationError reports an observation for which no
// haplotype combination reproduces the observed alleles.
type InconsistentObservationError struct {
	ID string
}

func (e *InconsistentObservationError) Error() string {
	return fmt.Sprintf("inconsistent observation %v: no haplotype combination matches the observed alleles", e.ID)
}

// Unwrap returns ErrInconsistent.
func (e *InconsistentObservationError) Unwrap() error {
	return ErrInconsistent
}

// A CombinationLimitError reports an observation whose enumeration
// was abandoned after Limit combinations.
type CombinationLimitError struct {
	ID    string
	Limit int
}

func (e *CombinationLimitError) Error() string {
	return fmt.Sprintf("observation %v has more than %v haplotype combinations", e.ID, e.Limit)
}

// Unwrap returns ErrTooManyCombinations.
func (e *CombinationLimitError) Unwrap() error {
	return ErrTooManyCombinations
}
