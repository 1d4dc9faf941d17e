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
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/exascience/elhap/em"
	"github.com/exascience/elhap/genotypes"
	"github.com/exascience/elhap/internal"
	"github.com/exascience/elhap/loci"
	"github.com/exascience/elhap/phase"
	"github.com/exascience/elhap/report"
	"github.com/exascience/elhap/store"
)

// EstimateHelp is the help string for this command.
const EstimateHelp = "\nestimate parameters:\n" +
	"elhap estimate genotype-file frequency-file\n" +
	"[--pooled]\n" +
	"[--pool-size nr]\n" +
	"[--alleles allele-file]\n" +
	"[--max-iterations nr]\n" +
	"[--epsilon value]\n" +
	"[--seed nr]\n" +
	"[--restarts nr]\n" +
	"[--combination-limit nr]\n" +
	"[--differentiate]\n" +
	"[--permutations nr]\n" +
	"[--timeout duration]\n" +
	"[--cutoff value]\n" +
	"[--combinations-output file]\n" +
	"[--db sqlite-file]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n" +
	"[--log-level level]\n"

// Estimate implements the elhap estimate command.
func Estimate() error {
	loadEnvironment()

	var (
		pooled                             bool
		poolSize                           int
		alleles                            string
		maxIterations, restarts, combLimit int
		differentiate                      bool
		permutations                       int
		epsilon, cutoff                    float64
		seed                               int64
		timeout                            time.Duration
		combinationsOutput, dbPath         string
		nrOfThreads                        int
		timed                              bool
		profile, logPath, logLevel         string
	)

	var flags flag.FlagSet

	flags.BoolVar(&pooled, "pooled", false, "the genotype file contains pools instead of individuals")
	flags.IntVar(&poolSize, "pool-size", 1, "number of individuals per pool")
	flags.StringVar(&alleles, "alleles", "", "declare the alleles of each locus")
	flags.IntVar(&maxIterations, "max-iterations", envInt("ELHAP_MAX_ITERATIONS", em.DefaultMaxIterations), "maximum number of EM iterations per run")
	flags.Float64Var(&epsilon, "epsilon", envFloat("ELHAP_EPSILON", em.DefaultEpsilon), "convergence threshold on haplotype frequencies")
	flags.Int64Var(&seed, "seed", int64(envInt("ELHAP_SEED", 1)), "seed for the random starting weights")
	flags.IntVar(&restarts, "restarts", envInt("ELHAP_RESTARTS", em.DefaultRestarts), "number of runs from random starting weights")
	flags.IntVar(&combLimit, "combination-limit", em.DefaultCombinationLimit, "maximum number of combinations per observation, negative for no limit")
	flags.BoolVar(&differentiate, "differentiate", false, "test whether haplotype frequencies differ between the sub-populations of the population column")
	flags.IntVar(&permutations, "permutations", envInt("ELHAP_PERMUTATIONS", 0), "number of label permutations for the empirical p-value of the differentiation test")
	flags.DurationVar(&timeout, "timeout", 0, "wall-clock budget for the estimation")
	flags.Float64Var(&cutoff, "cutoff", 0, "omit haplotypes with a lower frequency from the frequency file")
	flags.StringVar(&combinationsOutput, "combinations-output", "", "write the resolved combination weights to the specified file")
	flags.StringVar(&dbPath, "db", envString("ELHAP_DB", ""), "store the result in the specified sqlite database")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	flags.StringVar(&logLevel, "log-level", envString("ELHAP_LOG_LEVEL", "info"), "one of debug, info, warn, error")

	parseFlags(&flags, 4, EstimateHelp)

	input := getFilename(os.Args[2], EstimateHelp)
	output := getFilename(os.Args[3], EstimateHelp)

	level, err := internal.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}

	setLogOutput(logPath, level)

	// sanity checks

	sanityChecksFailed := false

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if alleles != "" && !checkExist("--alleles", alleles) {
		sanityChecksFailed = true
	}
	if combinationsOutput != "" && !checkCreate("--combinations-output", combinationsOutput) {
		sanityChecksFailed = true
	}
	if dbPath != "" && !checkCreate("--db", dbPath) {
		sanityChecksFailed = true
	}
	if pooled && poolSize < 1 {
		sanityChecksFailed = true
		logger.Error("Invalid pool-size", zap.Int("pool-size", poolSize))
	}
	if !pooled && poolSize != 1 {
		logger.Warn("The --pool-size option is ignored without --pooled.")
	}
	if maxIterations < 1 {
		sanityChecksFailed = true
		logger.Error("Invalid max-iterations", zap.Int("max-iterations", maxIterations))
	}
	if !(epsilon > 0) {
		sanityChecksFailed = true
		logger.Error("Invalid epsilon", zap.Float64("epsilon", epsilon))
	}
	if restarts < 1 {
		sanityChecksFailed = true
		logger.Error("Invalid restarts", zap.Int("restarts", restarts))
	}
	if combLimit == 0 {
		sanityChecksFailed = true
		logger.Error("Invalid combination-limit", zap.Int("combination-limit", combLimit))
	}
	if permutations < 0 {
		sanityChecksFailed = true
		logger.Error("Invalid permutations", zap.Int("permutations", permutations))
	}
	if !differentiate && permutations != 0 {
		logger.Warn("The --permutations option is ignored without --differentiate.")
	}
	if timeout < 0 {
		sanityChecksFailed = true
		logger.Error("Invalid timeout", zap.Duration("timeout", timeout))
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		logger.Error("Invalid nr-of-threads", zap.Int("nr-of-threads", nrOfThreads))
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, EstimateHelp)
		os.Exit(1)
	}

	// building the command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " estimate ", input, " ", output)
	kind := phase.Diploid
	if pooled {
		kind = phase.Pooled
		fmt.Fprint(&command, " --pooled --pool-size ", poolSize)
	}
	if alleles != "" {
		fmt.Fprint(&command, " --alleles ", alleles)
	}
	fmt.Fprint(&command, " --max-iterations ", maxIterations)
	fmt.Fprint(&command, " --epsilon ", epsilon)
	fmt.Fprint(&command, " --seed ", seed)
	fmt.Fprint(&command, " --restarts ", restarts)
	fmt.Fprint(&command, " --combination-limit ", combLimit)
	if differentiate {
		fmt.Fprint(&command, " --differentiate --permutations ", permutations)
	}
	if timeout > 0 {
		fmt.Fprint(&command, " --timeout ", timeout)
	}
	if cutoff > 0 {
		fmt.Fprint(&command, " --cutoff ", cutoff)
	}
	if combinationsOutput != "" {
		fmt.Fprint(&command, " --combinations-output ", combinationsOutput)
	}
	if dbPath != "" {
		fmt.Fprint(&command, " --db ", dbPath)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}
	fmt.Fprint(&command, " --log-level ", level)

	// executing command

	logger.Info("Executing command", zap.String("command", command.String()))

	return runEstimate(input, output, kind, poolSize, alleles, em.Options{
		MaxIterations:    maxIterations,
		Epsilon:          epsilon,
		Seed:             seed,
		Restarts:         restarts,
		CombinationLimit: combLimit,
		Differentiate:    differentiate,
		Permutations:     permutations,
		Logger:           logger,
	}, timeout, cutoff, combinationsOutput, dbPath, timed, profile)
}

func runEstimate(
	input, output string,
	kind phase.Kind, poolSize int,
	alleles string,
	opts em.Options,
	timeout time.Duration,
	cutoff float64,
	combinationsOutput, dbPath string,
	timed bool, profile string,
) (err error) {
	var (
		file   *genotypes.File
		group  = loci.NewGroup()
		result *em.Result
	)

	timedRun(timed, profile, "Reading genotype file.", 1, func() {
		if file, err = genotypes.ParseGenotypes(input, kind, poolSize); err != nil {
			return
		}
		if alleles == "" {
			file.RegisterAlleles(group)
			return
		}
		file.RegisterLoci(group)
		var declarations []genotypes.LocusAlleles
		if declarations, err = genotypes.ParseAlleles(alleles); err != nil {
			return
		}
		err = genotypes.Declare(group, declarations)
	})
	if err != nil {
		return err
	}
	logger.Info("Read genotype file", zap.Int("records", len(file.Records)), zap.Int("loci", group.Len()))

	timedRun(timed, profile, "Estimating haplotype frequencies.", 2, func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result = em.Run(ctx, group, file.Records, opts)
	})
	if err := report.WriteDiagnostics(os.Stderr, result); err != nil {
		return err
	}
	if result.Err != nil {
		return result.Err
	}
	if result.State != em.Converged {
		logger.Warn("Estimation did not converge", zap.Stringer("state", result.State), zap.String("reason", result.StopReason))
	}

	timedRun(timed, profile, "Writing results.", 3, func() {
		f := internal.FileCreate(output)
		defer internal.Close(f)
		if err = report.WriteFrequencies(f, result, cutoff); err != nil {
			return
		}
		if combinationsOutput != "" {
			c := internal.FileCreate(combinationsOutput)
			defer internal.Close(c)
			if err = report.WriteCombinations(c, result); err != nil {
				return
			}
		}
		if dbPath != "" {
			var db *store.Store
			if db, err = store.Open(dbPath); err != nil {
				return
			}
			defer func() {
				if cerr := db.Close(); err == nil {
					err = cerr
				}
			}()
			if err = db.SaveResult(context.Background(), result); err != nil {
				return
			}
			logger.Info("Stored result", zap.Stringer("run", result.RunID), zap.String("db", dbPath))
		}
	})
	return err
}
