package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo wraps all persistence queries.
type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func fromNullPtr(v sql.NullString) *string {
	if v.Valid {
		s := v.String
		return &s
	}
	return nil
}

func marshalSkills(skills []string) string {
	if skills == nil {
		skills = []string{}
	}
	data, _ := json.Marshal(skills)
	return string(data)
}

func unmarshalSkills(raw string) []string {
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil || skills == nil {
		return []string{}
	}
	return skills
}
