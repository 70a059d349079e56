package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/physlab/inquiry-tutor/internal/model"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Store wraps the relational store. Every operation is a single
// parameterized statement; concurrent sessions writing the same record are
// last-write-wins at column level, which is the documented policy.
type Store struct {
	db     *sql.DB
	driver string
}

// New opens the database and applies the schema. Supported drivers are
// "sqlite" (a file path or ":memory:") and "mysql" (a DSN with
// parseTime=true).
func New(driver, dsn string) (*Store, error) {
	if driver == "sqlite" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// maxQuestions is the widest diagnostic variant (the AI-competence test).
const maxQuestions = 40

func (s *Store) migrate() error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "mysql" {
		idCol = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
	CREATE TABLE IF NOT EXISTS inquiry_records (
		id %s,
		student_number TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		date DATETIME NOT NULL,
		topic TEXT NOT NULL,
		problem TEXT NOT NULL,
		hypothesis TEXT NOT NULL,
		theory TEXT NOT NULL,
		apparatus TEXT NOT NULL,
		process TEXT NOT NULL`, idCol)
	for i := 1; i <= model.NumStages; i++ {
		fmt.Fprintf(&b, ",\n\t\tconversation%d TEXT NOT NULL DEFAULT ''", i)
	}
	for i := 1; i <= model.NumStages; i++ {
		fmt.Fprintf(&b, ",\n\t\tadvice%d TEXT NOT NULL DEFAULT ''", i)
	}
	for i := 1; i <= model.NumSurveyItems; i++ {
		fmt.Fprintf(&b, ",\n\t\tfeedback%d TEXT NOT NULL DEFAULT ''", i)
	}
	b.WriteString("\n\t);\n")

	fmt.Fprintf(&b, `
	CREATE TABLE IF NOT EXISTS diagnostic_results (
		id %s,
		variant TEXT NOT NULL,
		num_questions INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		date DATETIME NOT NULL,
		total_time REAL NOT NULL DEFAULT 0,
		total_score REAL NOT NULL DEFAULT 0,
		total_feedback TEXT NOT NULL DEFAULT '',
		correct_count INTEGER NOT NULL DEFAULT 0,
		incorrect_count INTEGER NOT NULL DEFAULT 0,
		unknown_count INTEGER NOT NULL DEFAULT 0`, idCol)
	for i := 1; i <= maxQuestions; i++ {
		fmt.Fprintf(&b, ",\n\t\tanswer%d TEXT NOT NULL DEFAULT ''", i)
	}
	for i := 1; i <= maxQuestions; i++ {
		fmt.Fprintf(&b, ",\n\t\ttime%d REAL NOT NULL DEFAULT -1", i)
	}
	for i := 1; i <= maxQuestions; i++ {
		fmt.Fprintf(&b, ",\n\t\tscore%d INTEGER NOT NULL DEFAULT -1", i)
	}
	for i := 1; i <= maxQuestions; i++ {
		fmt.Fprintf(&b, ",\n\t\tfeed%d TEXT NOT NULL DEFAULT ''", i)
	}
	b.WriteString("\n\t);\n")

	b.WriteString(`
	CREATE TABLE IF NOT EXISTS deploy_metadata (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`)

	// MySQL refuses multiple statements in one Exec by default.
	for _, stmt := range strings.Split(b.String(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateInquiryRecord inserts the one row for a wizard run and returns its
// generated id. All later writes go through single-column updates.
func (s *Store) CreateInquiryRecord(rec model.InquiryRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO inquiry_records
		 (student_number, name, email, date, topic, problem, hypothesis, theory, apparatus, process)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StudentNumber, rec.Name, rec.Email, time.Now(),
		rec.Topic, rec.Problem, rec.Hypothesis, rec.Theory, rec.Apparatus, rec.Process,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var conversationColumns = [model.NumStages]string{
	"conversation1", "conversation2", "conversation3", "conversation4",
}

var adviceColumns = [model.NumStages]string{
	"advice1", "advice2", "advice3", "advice4",
}

// UpdateConversation writes the serialized transcript for one stage.
func (s *Store) UpdateConversation(id int64, stage model.Stage, transcript string) error {
	if stage < 0 || int(stage) >= model.NumStages {
		return fmt.Errorf("invalid stage %d", stage)
	}
	_, err := s.db.Exec(
		`UPDATE inquiry_records SET `+conversationColumns[stage]+` = ? WHERE id = ?`,
		transcript, id,
	)
	return err
}

// UpdateAdvice writes the synthesized review for one stage.
func (s *Store) UpdateAdvice(id int64, stage model.Stage, advice string) error {
	if stage < 0 || int(stage) >= model.NumStages {
		return fmt.Errorf("invalid stage %d", stage)
	}
	_, err := s.db.Exec(
		`UPDATE inquiry_records SET `+adviceColumns[stage]+` = ? WHERE id = ?`,
		advice, id,
	)
	return err
}

// UpdateSurveyAnswer writes one survey item. Items are 1-based.
func (s *Store) UpdateSurveyAnswer(id int64, item int, value string) error {
	if item < 1 || item > model.NumSurveyItems {
		return fmt.Errorf("invalid survey item %d", item)
	}
	// Column name is derived from the bounds-checked item, never from input.
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE inquiry_records SET feedback%d = ? WHERE id = ?`, item),
		value, id,
	)
	return err
}

func inquiryColumns() string {
	cols := []string{
		"id", "student_number", "name", "email", "date",
		"topic", "problem", "hypothesis", "theory", "apparatus", "process",
	}
	cols = append(cols, conversationColumns[:]...)
	cols = append(cols, adviceColumns[:]...)
	for i := 1; i <= model.NumSurveyItems; i++ {
		cols = append(cols, fmt.Sprintf("feedback%d", i))
	}
	return strings.Join(cols, ", ")
}

func scanInquiryRecord(row *sql.Row) (*model.InquiryRecord, error) {
	var rec model.InquiryRecord
	rec.Survey = make([]string, model.NumSurveyItems)

	dest := []any{
		&rec.ID, &rec.StudentNumber, &rec.Name, &rec.Email, &rec.Date,
		&rec.Topic, &rec.Problem, &rec.Hypothesis, &rec.Theory, &rec.Apparatus, &rec.Process,
	}
	for i := range rec.Conversations {
		dest = append(dest, &rec.Conversations[i])
	}
	for i := range rec.Advice {
		dest = append(dest, &rec.Advice[i])
	}
	for i := range rec.Survey {
		dest = append(dest, &rec.Survey[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInquiryRecord returns a full record by id, or nil if absent.
func (s *Store) GetInquiryRecord(id int64) (*model.InquiryRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+inquiryColumns()+` FROM inquiry_records WHERE id = ?`, id,
	)
	rec, err := scanInquiryRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListInquiryRecords returns identity summaries ordered by date ascending,
// the order the evaluator pages present them in.
func (s *Store) ListInquiryRecords() ([]model.InquiryRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, student_number, name, email, date, topic FROM inquiry_records ORDER BY date ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []model.InquiryRecord
	for rows.Next() {
		var rec model.InquiryRecord
		if err := rows.Scan(&rec.ID, &rec.StudentNumber, &rec.Name, &rec.Email, &rec.Date, &rec.Topic); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// InquiryRecordCount returns the number of persisted wizard runs.
func (s *Store) InquiryRecordCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM inquiry_records`).Scan(&count)
	return count, err
}
