// Package store provides a SQLite-backed cache of normalized loan records.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"

	_ "modernc.org/sqlite" // register sqlite driver
)

const dateLayout = "2006-01-02"

// Cache stores parsed records per dataset file.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds what was tracked for a dataset file when it was last parsed.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
	RulesHash string
	Stats     source.ParseStats
}

// Matches reports whether a discovered file can be served from cache.
func (fi FileInfo) Matches(df source.DiscoveredFile, rulesHash string) bool {
	return fi.MtimeNs == df.MtimeNs && fi.SizeBytes == df.Size && fi.RulesHash == rulesHash
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all tracked files.
func (c *Cache) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := c.db.Query(`SELECT file_path, mtime_ns, size_bytes, rules_hash,
		rows_read, bad_rows, bad_dates, bad_outcomes, bad_non_payments, bad_amounts FROM file_tracker`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes, &fi.RulesHash,
			&fi.Stats.Rows, &fi.Stats.BadRows, &fi.Stats.BadDates, &fi.Stats.BadOutcomes,
			&fi.Stats.BadNonPayments, &fi.Stats.BadAmounts); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// SaveFile replaces the cached records of one dataset file and its tracking info.
func (c *Cache) SaveFile(df source.DiscoveredFile, rulesHash string, res source.ParseResult) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM loans WHERE file_path = ?", df.Path); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO loans
		(file_path, row_no, loan_id, origination, cosecha, is_default, non_payment,
		 amount, region, branch, product, client_type, channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range res.Records {
		var amount sql.NullString
		if r.HasAmount {
			amount = sql.NullString{String: r.Amount.String(), Valid: true}
		}
		_, err = stmt.Exec(df.Path, i, r.ID, r.Origination.Format(dateLayout), r.Cosecha,
			boolInt(r.Default), boolInt(r.NonPayment), amount,
			r.Region, r.Branch, r.Product, r.ClientType, r.Channel)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO file_tracker
		(file_path, mtime_ns, size_bytes, rules_hash, rows_read, bad_rows, bad_dates,
		 bad_outcomes, bad_non_payments, bad_amounts, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		df.Path, df.MtimeNs, df.Size, rulesHash,
		res.Stats.Rows, res.Stats.BadRows, res.Stats.BadDates,
		res.Stats.BadOutcomes, res.Stats.BadNonPayments, res.Stats.BadAmounts,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadRecords reads the cached records of the given files, in file then row order.
func (c *Cache) LoadRecords(paths []string) ([]model.LoanRecord, error) {
	var out []model.LoanRecord
	for _, p := range paths {
		recs, err := c.loadFile(p)
		if err != nil {
			return nil, fmt.Errorf("loading cached %s: %w", p, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (c *Cache) loadFile(path string) ([]model.LoanRecord, error) {
	rows, err := c.db.Query(`SELECT loan_id, origination, cosecha, is_default, non_payment,
		amount, region, branch, product, client_type, channel
		FROM loans WHERE file_path = ? ORDER BY row_no`, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []model.LoanRecord
	for rows.Next() {
		var r model.LoanRecord
		var orig string
		var isDefault, nonPayment int
		var amount sql.NullString
		if err := rows.Scan(&r.ID, &orig, &r.Cosecha, &isDefault, &nonPayment,
			&amount, &r.Region, &r.Branch, &r.Product, &r.ClientType, &r.Channel); err != nil {
			return nil, err
		}
		r.Origination, err = time.Parse(dateLayout, orig)
		if err != nil {
			return nil, fmt.Errorf("corrupt origination %q: %w", orig, err)
		}
		r.Default = isDefault != 0
		r.NonPayment = nonPayment != 0
		if amount.Valid {
			if d, err := decimal.NewFromString(amount.String); err == nil {
				r.Amount = d
				r.HasAmount = true
			}
		}
		r.SourceFile = path
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// DeleteFile removes a file's records and tracking entry.
func (c *Cache) DeleteFile(path string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM loans WHERE file_path = ?", path); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM file_tracker WHERE file_path = ?", path); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordCount returns the number of cached records.
func (c *Cache) RecordCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM loans").Scan(&count)
	return count, err
}

// Clear drops every cached record and tracking entry.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM loans"); err != nil {
		return err
	}
	_, err := c.db.Exec("DELETE FROM file_tracker")
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
