// Package questions loads diagnostic question banks from JSON or xlsx
// files and validates them before they reach the test runner.
package questions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/physlab/inquiry-tutor/internal/model"

	"github.com/xuri/excelize/v2"
)

// Load reads a question bank and tags every question with kind. JSON files
// hold an array of question objects; xlsx files hold one header row
// followed by one row per question.
func Load(path string, kind model.QuestionKind) ([]model.DiagnosticQuestion, error) {
	var (
		qs  []model.DiagnosticQuestion
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		qs, err = loadJSON(path)
	case ".xlsx":
		qs, err = loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported question file %s", path)
	}
	if err != nil {
		return nil, err
	}

	for i := range qs {
		qs[i].Number = i + 1
		qs[i].Kind = kind
	}
	if err := validate(qs, kind); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}

func loadJSON(path string) ([]model.DiagnosticQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var qs []model.DiagnosticQuestion
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return qs, nil
}

// xlsx column headers. Choice cells hold one option per line; Answer is
// the 1-based index of the correct option.
const (
	colProblem  = "Problem"
	colChoice   = "Choice"
	colAnswer   = "Answer"
	colStandard = "Standard"
	colDomain   = "Domain"
	colFigure   = "Figure"
)

func loadXLSX(path string) ([]model.DiagnosticQuestion, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no question rows", path)
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols[colProblem]; !ok {
		return nil, fmt.Errorf("%s: missing %s column", path, colProblem)
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var qs []model.DiagnosticQuestion
	for n, row := range rows[1:] {
		q := model.DiagnosticQuestion{
			Problem:  cell(row, colProblem),
			Standard: cell(row, colStandard),
			Domain:   cell(row, colDomain),
			Figure:   cell(row, colFigure),
		}
		if raw := cell(row, colChoice); raw != "" {
			for _, line := range strings.Split(raw, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					q.Choices = append(q.Choices, line)
				}
			}
		}
		if raw := cell(row, colAnswer); raw != "" {
			q.Answer, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: bad answer %q", path, n+2, raw)
			}
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func validate(qs []model.DiagnosticQuestion, kind model.QuestionKind) error {
	if len(qs) == 0 {
		return fmt.Errorf("no questions")
	}
	for _, q := range qs {
		if q.Problem == "" {
			return fmt.Errorf("question %d: empty problem", q.Number)
		}
		switch kind {
		case model.KindChoice:
			if len(q.Choices) == 0 {
				return fmt.Errorf("question %d: no choices", q.Number)
			}
			if q.Answer < 1 || q.Answer > len(q.Choices) {
				return fmt.Errorf("question %d: answer %d out of range 1..%d", q.Number, q.Answer, len(q.Choices))
			}
		case model.KindText:
			if q.Standard == "" {
				return fmt.Errorf("question %d: empty grading standard", q.Number)
			}
		}
	}
	return nil
}
