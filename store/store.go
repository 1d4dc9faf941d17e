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

// Package store persists estimation results in an SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/exascience/elhap/em"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created TEXT NOT NULL,
	loci TEXT NOT NULL,
	state TEXT NOT NULL,
	stop_reason TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	ln_likelihood REAL NOT NULL,
	chromosomes REAL NOT NULL,
	frequency_total REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS haplotype_frequencies (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	rank INTEGER NOT NULL,
	haplotype TEXT NOT NULL,
	frequency REAL NOT NULL,
	PRIMARY KEY (run_id, rank)
);
CREATE TABLE IF NOT EXISTS combination_weights (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	observation TEXT NOT NULL,
	count REAL NOT NULL,
	combination TEXT NOT NULL,
	weight REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS differentiation_tests (
	run_id TEXT PRIMARY KEY REFERENCES runs(run_id),
	whole_ln_likelihood REAL NOT NULL,
	composite_ln_likelihood REAL NOT NULL,
	statistic REAL NOT NULL,
	degrees_of_freedom INTEGER NOT NULL,
	asymptotic REAL,
	permutations INTEGER NOT NULL,
	empirical REAL
);
CREATE TABLE IF NOT EXISTS population_fits (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	population TEXT NOT NULL,
	samples INTEGER NOT NULL,
	state TEXT NOT NULL,
	ln_likelihood REAL NOT NULL,
	PRIMARY KEY (run_id, population)
);
CREATE TABLE IF NOT EXISTS diagnostics (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	kind TEXT NOT NULL,
	message TEXT NOT NULL
);
`

// A Store is an SQLite database of estimation results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult stores a result in a single transaction.
func (s *Store) SaveResult(ctx context.Context, result *em.Result) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	runID := result.RunID.String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), strings.Join(result.Loci, ","),
		result.State.String(), result.StopReason, result.Iterations, result.Seed,
		result.LnLikelihood, result.Chromosomes, result.FrequencyTotal,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for rank, f := range result.Frequencies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO haplotype_frequencies VALUES (?, ?, ?, ?)`,
			runID, rank, f.Name, f.Frequency,
		); err != nil {
			return fmt.Errorf("insert frequency: %w", err)
		}
	}
	for _, o := range result.Observations {
		for _, c := range o.Combinations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO combination_weights VALUES (?, ?, ?, ?, ?)`,
				runID, o.ID, o.Count, strings.Join(c.Haplotypes, " "), c.Weight,
			); err != nil {
				return fmt.Errorf("insert combination: %w", err)
			}
		}
	}
	if test := result.Differentiation; test != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO differentiation_tests VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, test.WholeLnLikelihood, test.CompositeLnLikelihood, test.Statistic,
			test.DegreesOfFreedom, nullable(test.Asymptotic), test.Permutations, nullable(test.Empirical),
		); err != nil {
			return fmt.Errorf("insert differentiation test: %w", err)
		}
		for _, p := range test.Populations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO population_fits VALUES (?, ?, ?, ?, ?)`,
				runID, p.Name, p.Samples, p.State.String(), p.LnLikelihood,
			); err != nil {
				return fmt.Errorf("insert population fit: %w", err)
			}
		}
	}
	insertDiagnostic := func(kind string, message fmt.Stringer) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics VALUES (?, ?, ?)`,
			runID, kind, message.String(),
		); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
		return nil
	}
	for _, e := range result.Skipped {
		if err := insertDiagnostic("skipped", errorString{e}); err != nil {
			return err
		}
	}
	for _, e := range result.Inconsistent {
		if err := insertDiagnostic("inconsistent", errorString{e}); err != nil {
			return err
		}
	}
	for _, e := range result.Oversized {
		if err := insertDiagnostic("oversized", errorString{e}); err != nil {
			return err
		}
	}
	for _, d := range result.Degeneracies {
		if err := insertDiagnostic(d.Kind.String(), d); err != nil {
			return err
		}
	}
	if result.DifferentiationErr != nil {
		if err := insertDiagnostic("differentiation", errorString{result.DifferentiationErr}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// nullable stores NaN as NULL.
func nullable(x float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: x, Valid: !math.IsNaN(x)}
}

type errorString struct{ error }

func (e errorString) String() string {
	return e.Error()
}

// A StoredFrequency is one stored row of a frequency table.
type StoredFrequency struct {
	Haplotype string
	Frequency float64
}

// Frequencies returns the stored frequency table of a run, in
// descending order of frequency.
func (s *Store) Frequencies(ctx context.Context, runID string) ([]StoredFrequency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT haplotype, frequency FROM haplotype_frequencies WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("select frequencies: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var result []StoredFrequency
	for rows.Next() {
		var f StoredFrequency
		if err := rows.Scan(&f.Haplotype, &f.Frequency); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// Differentiation returns the stored test statistic, and the
// asymptotic and empirical p-values of a run's differentiation test,
// NaN where no p-value was computed.
func (s *Store) Differentiation(ctx context.Context, runID string) (statistic, asymptotic, empirical float64, err error) {
	var a, e sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT statistic, asymptotic, empirical FROM differentiation_tests WHERE run_id = ?`, runID).Scan(&statistic, &a, &e)
	asymptotic, empirical = math.NaN(), math.NaN()
	if a.Valid {
		asymptotic = a.Float64
	}
	if e.Valid {
		empirical = e.Float64
	}
	return statistic, asymptotic, empirical, err
}

// RunState returns the stored state and iteration count of a run.
func (s *Store) RunState(ctx context.Context, runID string) (state string, iterations int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT state, iterations FROM runs WHERE run_id = ?`, runID).Scan(&state, &iterations)
	return state, iterations, err
}
