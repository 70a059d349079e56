package store

import (
	"fmt"

	"github.com/physlab/inquiry-tutor/internal/model"
)

// DiagnosticVariants returns the distinct variant names present in
// diagnostic_results, ordered alphabetically.
func (s *Store) DiagnosticVariants() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT variant FROM diagnostic_results ORDER BY variant`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// ExportAll builds an export-ready snapshot of every wizard record and
// every diagnostic result.
func (s *Store) ExportAll() (*model.Export, error) {
	summaries, err := s.ListInquiryRecords()
	if err != nil {
		return nil, fmt.Errorf("list inquiry records: %w", err)
	}

	exp := &model.Export{
		DiagnosticResults: make(map[string][]model.DiagnosticResult),
	}
	for _, sum := range summaries {
		rec, err := s.GetInquiryRecord(sum.ID)
		if err != nil {
			return nil, fmt.Errorf("get inquiry record %d: %w", sum.ID, err)
		}
		if rec == nil {
			continue
		}
		exp.InquiryRecords = append(exp.InquiryRecords, *rec)
	}

	variants, err := s.DiagnosticVariants()
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	for _, variant := range variants {
		sums, err := s.ListDiagnosticResults(variant)
		if err != nil {
			return nil, fmt.Errorf("list %s results: %w", variant, err)
		}
		for _, sum := range sums {
			res, err := s.GetDiagnosticResult(sum.ID)
			if err != nil {
				return nil, fmt.Errorf("get %s result %d: %w", variant, sum.ID, err)
			}
			if res == nil {
				continue
			}
			exp.DiagnosticResults[variant] = append(exp.DiagnosticResults[variant], *res)
		}
	}
	return exp, nil
}
