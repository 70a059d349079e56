package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/physlab/inquiry-tutor/internal/model"
)

// CreateDiagnosticResult inserts a completed test run (answers and times
// only) and returns the generated id. Scores arrive in a second pass via
// UpdateDiagnosticGrade.
func (s *Store) CreateDiagnosticResult(res model.DiagnosticResult) (int64, error) {
	n := len(res.Answers)
	if n == 0 || n > maxQuestions {
		return 0, fmt.Errorf("invalid question count %d", n)
	}
	if len(res.Times) != n {
		return 0, fmt.Errorf("answers/times length mismatch: %d vs %d", n, len(res.Times))
	}

	cols := []string{"variant", "num_questions", "name", "email", "date", "total_time"}
	args := []any{res.Variant, n, res.Name, res.Email, time.Now(), res.TotalTime}
	for i := 0; i < n; i++ {
		cols = append(cols, fmt.Sprintf("answer%d", i+1))
		args = append(args, res.Answers[i])
	}
	for i := 0; i < n; i++ {
		cols = append(cols, fmt.Sprintf("time%d", i+1))
		args = append(args, res.Times[i])
	}

	query := `INSERT INTO diagnostic_results (` + strings.Join(cols, ", ") + `)
		 VALUES (` + placeholders(len(cols)) + `)`
	r, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return r.LastInsertId()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// GetDiagnosticResult returns a full result by id, or nil if absent.
func (s *Store) GetDiagnosticResult(id int64) (*model.DiagnosticResult, error) {
	cols := []string{
		"id", "variant", "num_questions", "name", "email", "date", "total_time",
		"total_score", "total_feedback", "correct_count", "incorrect_count", "unknown_count",
	}
	for i := 1; i <= maxQuestions; i++ {
		cols = append(cols, fmt.Sprintf("answer%d", i))
	}
	for i := 1; i <= maxQuestions; i++ {
		cols = append(cols, fmt.Sprintf("time%d", i))
	}
	for i := 1; i <= maxQuestions; i++ {
		cols = append(cols, fmt.Sprintf("score%d", i))
	}
	for i := 1; i <= maxQuestions; i++ {
		cols = append(cols, fmt.Sprintf("feed%d", i))
	}

	var (
		res     model.DiagnosticResult
		num     int
		answers [maxQuestions]string
		times   [maxQuestions]float64
		scores  [maxQuestions]int
		feeds   [maxQuestions]string
	)
	dest := []any{
		&res.ID, &res.Variant, &num, &res.Name, &res.Email, &res.Date, &res.TotalTime,
		&res.TotalScore, &res.TotalFeedback, &res.CorrectCount, &res.IncorrectCount, &res.UnknownCount,
	}
	for i := 0; i < maxQuestions; i++ {
		dest = append(dest, &answers[i])
	}
	for i := 0; i < maxQuestions; i++ {
		dest = append(dest, &times[i])
	}
	for i := 0; i < maxQuestions; i++ {
		dest = append(dest, &scores[i])
	}
	for i := 0; i < maxQuestions; i++ {
		dest = append(dest, &feeds[i])
	}

	err := s.db.QueryRow(
		`SELECT `+strings.Join(cols, ", ")+` FROM diagnostic_results WHERE id = ?`, id,
	).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res.Answers = append([]string(nil), answers[:num]...)
	res.Times = append([]float64(nil), times[:num]...)
	res.Scores = append([]int(nil), scores[:num]...)
	res.Feedback = append([]string(nil), feeds[:num]...)
	return &res, nil
}

// UpdateDiagnosticGrade writes the grading pass for a result in one
// statement, mirroring how the row was graded as one batch.
func (s *Store) UpdateDiagnosticGrade(id int64, grade *model.TestGrade) error {
	n := len(grade.Scores)
	if n == 0 || n > maxQuestions {
		return fmt.Errorf("invalid score count %d", n)
	}
	if len(grade.Feedback) != n {
		return fmt.Errorf("scores/feedback length mismatch: %d vs %d", n, len(grade.Feedback))
	}

	sets := []string{"total_score = ?", "total_feedback = ?"}
	args := []any{grade.TotalScore, grade.TotalFeedback}
	for i := 0; i < n; i++ {
		sets = append(sets, fmt.Sprintf("score%d = ?", i+1))
		args = append(args, grade.Scores[i])
	}
	for i := 0; i < n; i++ {
		sets = append(sets, fmt.Sprintf("feed%d = ?", i+1))
		args = append(args, grade.Feedback[i])
	}
	args = append(args, id)

	_, err := s.db.Exec(
		`UPDATE diagnostic_results SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	return err
}

// UpdateChoiceTallies writes the correct/incorrect/unknown counts computed
// for a multiple-choice result.
func (s *Store) UpdateChoiceTallies(id int64, correct, incorrect, unknown int) error {
	_, err := s.db.Exec(
		`UPDATE diagnostic_results SET correct_count = ?, incorrect_count = ?, unknown_count = ? WHERE id = ?`,
		correct, incorrect, unknown, id,
	)
	return err
}

// ListDiagnosticResults returns identity summaries for one variant,
// ordered by date ascending.
func (s *Store) ListDiagnosticResults(variant string) ([]model.DiagnosticResult, error) {
	rows, err := s.db.Query(
		`SELECT id, name, email, date, total_time, total_score FROM diagnostic_results
		 WHERE variant = ? ORDER BY date ASC`, variant,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.DiagnosticResult
	for rows.Next() {
		var res model.DiagnosticResult
		res.Variant = variant
		if err := rows.Scan(&res.ID, &res.Name, &res.Email, &res.Date, &res.TotalTime, &res.TotalScore); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
