package models

import "time"

// Pickup statuses. A pickup is created pending and acknowledged exactly once.
const (
	PickupStatusPending      = "pending"
	PickupStatusAcknowledged = "acknowledged"
)

// Pickup records that a student has been called for collection at reception.
// The target channel never changes after creation; merge redirection is applied
// at routing and display time only.
type Pickup struct {
	ID             string     `db:"id" json:"id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	StudentName    string     `db:"student_name" json:"student_name"`
	Year           int        `db:"year" json:"year"`
	ClassLabel     string     `db:"class_label" json:"class_label"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
}

// Channel returns the pickup's literal target channel.
func (p Pickup) Channel() ClassChannel {
	return ClassChannel{Year: p.Year, Label: p.ClassLabel}
}

// PickupFilter encapsulates history query parameters.
type PickupFilter struct {
	Status     string
	Year       *int
	ClassLabel string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// PickupStats summarises a single day's pickup traffic.
type PickupStats struct {
	Date         string `json:"date"`
	Pending      int    `db:"pending" json:"pending"`
	Acknowledged int    `db:"acknowledged" json:"acknowledged"`
	Total        int    `db:"total" json:"total"`
}
