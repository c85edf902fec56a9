package models

import "time"

// Student represents a learner registered for pickup notifications.
type Student struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Year         int       `db:"year" json:"year"`
	ClassLabel   string    `db:"class_label" json:"class_label"`
	GuardianName string    `db:"guardian_name" json:"guardian_name"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Channel returns the student's class channel.
func (s Student) Channel() ClassChannel {
	return ClassChannel{Year: s.Year, Label: s.ClassLabel}
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	Year       *int
	ClassLabel string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
