package store

import (
	"database/sql"
)

// SetMetadata upserts a key-value pair in the deploy_metadata table.
func (s *Store) SetMetadata(name, value string) error {
	if s.driver == "mysql" {
		_, err := s.db.Exec(
			`INSERT INTO deploy_metadata (name, value) VALUES (?, ?)
			 ON DUPLICATE KEY UPDATE value = ?`,
			name, value, value,
		)
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO deploy_metadata (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = ?`,
		name, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata name.
// Returns empty string and nil error if the name is missing.
func (s *Store) GetMetadata(name string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM deploy_metadata WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetQuestionSetHash returns the recorded content hash for a question file.
func (s *Store) GetQuestionSetHash(path string) (string, error) {
	return s.GetMetadata("questions:" + path)
}

// SetQuestionSetHash records the content hash for a question file so a
// changed file can be flagged before it skews stored gradings.
func (s *Store) SetQuestionSetHash(path, hash string) error {
	return s.SetMetadata("questions:"+path, hash)
}
