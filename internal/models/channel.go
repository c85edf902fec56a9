package models

import "fmt"

// ClassChannel identifies one display's notification stream by year and class label.
// Two channels are equal iff both fields match exactly; the struct is comparable and
// used directly as a map key by the subscription registry.
type ClassChannel struct {
	Year  int    `db:"year" json:"year"`
	Label string `db:"class_label" json:"className"`
}

// String renders the channel in log-friendly form.
func (c ClassChannel) String() string {
	return fmt.Sprintf("%d/%s", c.Year, c.Label)
}
