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

package genotypes

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/exascience/elhap/internal"
	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
	"github.com/exascience/elhap/utils"
)

func isMissingToken(token string) bool {
	switch strings.TrimSpace(token) {
	case "", ".", "?", "0":
		return true
	default:
		return false
	}
}

// isMissing reports whether a cell is missing. A genotype with any
// missing allele, such as A/0 or ?/B, counts as missing as a whole.
func isMissing(cell string) bool {
	for _, token := range strings.Split(cell, "/") {
		if isMissingToken(token) {
			return true
		}
	}
	return false
}

func splitCell(cell string) []string {
	tokens := strings.Split(cell, "/")
	for i, token := range tokens {
		tokens[i] = *utils.Intern(strings.TrimSpace(token))
	}
	return tokens
}

// ParseGenotypes parses a genotype file. For pooled files, poolSize
// is the number of individuals per pool.
func ParseGenotypes(filename string, kind phase.Kind, poolSize int) (*File, error) {
	file := internal.FileOpen(filename)
	defer internal.Close(file)
	genotypes, err := ReadGenotypes(file, kind, poolSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return genotypes, nil
}

// ReadGenotypes reads a genotype file from r.
func ReadGenotypes(r io.Reader, kind phase.Kind, poolSize int) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var (
		f                *File
		countColumn      = -1
		populationColumn = -1
		firstLocus       int
		lineNumber       int
	)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data := strings.Split(line, "\t")
		if f == nil {
			if strings.ToLower(data[0]) != "id" {
				return nil, fmt.Errorf("line %v: header must start with an id column", lineNumber)
			}
			firstLocus = 1
			if len(data) > firstLocus && strings.ToLower(data[firstLocus]) == "count" {
				countColumn = firstLocus
				firstLocus++
			}
			if len(data) > firstLocus && strings.ToLower(data[firstLocus]) == "population" {
				populationColumn = firstLocus
				firstLocus++
			}
			f = &File{Loci: append([]string(nil), data[firstLocus:]...)}
			continue
		}
		if len(data) != firstLocus+len(f.Loci) {
			return nil, fmt.Errorf("line %v: expected %v columns, got %v", lineNumber, firstLocus+len(f.Loci), len(data))
		}
		record := phase.Record{
			ID:       data[0],
			Kind:     kind,
			Alleles:  make([][]string, len(f.Loci)),
			PoolSize: poolSize,
		}
		if countColumn >= 0 {
			if cell := data[countColumn]; !isMissing(cell) {
				count, err := strconv.Atoi(cell)
				if err != nil {
					return nil, fmt.Errorf("line %v: invalid count %v", lineNumber, cell)
				}
				record.Count = count
			}
		}
		if populationColumn >= 0 {
			record.Population = strings.TrimSpace(data[populationColumn])
		}
		for l, cell := range data[firstLocus:] {
			if !isMissing(cell) {
				record.Alleles[l] = splitCell(cell)
			}
		}
		f.Records = append(f.Records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("missing header line")
	}
	return f, nil
}

// ParseAlleles parses an allele file.
func ParseAlleles(filename string) ([]LocusAlleles, error) {
	file := internal.FileOpen(filename)
	defer internal.Close(file)
	alleles, err := ReadAlleles(file)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return alleles, nil
}

// ReadAlleles reads an allele file from r.
func ReadAlleles(r io.Reader) ([]LocusAlleles, error) {
	var result []LocusAlleles
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data := strings.SplitN(line, "\t", 2)
		if len(data) != 2 {
			return nil, fmt.Errorf("line %v: expected a locus name and an allele list", lineNumber)
		}
		declaration := LocusAlleles{Locus: strings.TrimSpace(data[0])}
		for _, symbol := range strings.Split(data[1], ",") {
			if symbol = strings.TrimSpace(symbol); symbol != "" {
				declaration.Alleles = append(declaration.Alleles, *utils.Intern(symbol))
			}
		}
		result = append(result, declaration)
	}
	return result, scanner.Err()
}

// Declare registers declared alleles with loci already in the group.
func Declare(group *loci.Group, declarations []LocusAlleles) error {
	for _, declaration := range declarations {
		if _, ok := group.Lookup(declaration.Locus); !ok {
			return fmt.Errorf("alleles declared for unknown locus %v", declaration.Locus)
		}
		group.RegisterLocusAlleles(declaration.Locus, declaration.Alleles...)
	}
	return nil
}
