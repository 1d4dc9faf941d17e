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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/exascience/elhap/internal"
	"github.com/exascience/elhap/phase"
	"github.com/exascience/elhap/simulate"
)

// SimulateHelp is the help string for this command.
const SimulateHelp = "\nsimulate parameters:\n" +
	"elhap simulate genotype-file\n" +
	"--haplotypes list\n" +
	"--frequencies list\n" +
	"[--loci list]\n" +
	"[--individuals nr]\n" +
	"[--pools nr --pool-size nr]\n" +
	"[--expected]\n" +
	"[--seed nr]\n" +
	"[--log-path path]\n"

// Simulate implements the elhap simulate command.
func Simulate() error {
	loadEnvironment()

	var (
		haplotypes, frequencies, lociNames string
		individuals, pools, poolSize       int
		expected                           bool
		seed                               int64
		logPath                            string
	)

	var flags flag.FlagSet

	flags.StringVar(&haplotypes, "haplotypes", "", "comma-separated haplotypes, alleles separated by -")
	flags.StringVar(&frequencies, "frequencies", "", "comma-separated haplotype frequencies")
	flags.StringVar(&lociNames, "loci", "", "comma-separated locus names")
	flags.IntVar(&individuals, "individuals", 100, "number of individuals")
	flags.IntVar(&pools, "pools", 0, "number of pools, instead of individuals")
	flags.IntVar(&poolSize, "pool-size", 2, "number of individuals per pool")
	flags.BoolVar(&expected, "expected", false, "write expected genotype counts instead of a random sample")
	flags.Int64Var(&seed, "seed", int64(envInt("ELHAP_SEED", 1)), "seed for the random sample")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 3, SimulateHelp)

	output := getFilename(os.Args[2], SimulateHelp)

	setLogOutput(logPath, logger.Level())

	// sanity checks

	sanityChecksFailed := false

	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if haplotypes == "" || frequencies == "" {
		sanityChecksFailed = true
		logger.Error("Both --haplotypes and --frequencies are required.")
	}
	if individuals < 1 {
		sanityChecksFailed = true
		logger.Error("Invalid individuals", zap.Int("individuals", individuals))
	}
	if pools < 0 || (pools > 0 && poolSize < 1) {
		sanityChecksFailed = true
		logger.Error("Invalid pools", zap.Int("pools", pools), zap.Int("pool-size", poolSize))
	}
	if pools > 0 && expected {
		sanityChecksFailed = true
		logger.Error("Cannot use --expected with --pools.")
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, SimulateHelp)
		os.Exit(1)
	}

	var haps [][]string
	for _, name := range strings.Split(haplotypes, ",") {
		haps = append(haps, simulate.ParseHaplotype(strings.TrimSpace(name)))
	}
	population, err := simulate.NewPopulation(haps, internal.ParseFloatList(frequencies))
	if err != nil {
		return err
	}

	var names []string
	if lociNames != "" {
		names = strings.Split(lociNames, ",")
		if len(names) != population.Loci() {
			return fmt.Errorf("%v locus names for haplotypes of %v loci", len(names), population.Loci())
		}
	} else {
		for l := 0; l < population.Loci(); l++ {
			names = append(names, "L"+strconv.Itoa(l+1))
		}
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " simulate ", output, " --haplotypes ", haplotypes, " --frequencies ", frequencies)
	fmt.Fprint(&command, " --loci ", strings.Join(names, ","))

	var records []phase.Record
	switch {
	case expected:
		fmt.Fprint(&command, " --individuals ", individuals, " --expected")
		records = population.ExpectedDiploid(individuals)
	case pools > 0:
		fmt.Fprint(&command, " --pools ", pools, " --pool-size ", poolSize, " --seed ", seed)
		records = population.SamplePools(internal.NewRand(seed), pools, poolSize)
	default:
		fmt.Fprint(&command, " --individuals ", individuals, " --seed ", seed)
		records = population.SampleDiploid(internal.NewRand(seed), individuals)
	}

	logger.Info("Executing command", zap.String("command", command.String()))

	f := internal.FileCreate(output)
	defer internal.Close(f)
	return simulate.Write(f, names, records)
}
