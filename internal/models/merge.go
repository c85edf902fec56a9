package models

import "time"

// ClassMerge redirects one class's notifications to another class's display.
// A class may be the source of at most one merge at a time (unique source), and
// no class plays both roles, keeping the topology a forest of depth one.
type ClassMerge struct {
	ID          string    `db:"id" json:"id"`
	SourceYear  int       `db:"source_year" json:"source_year"`
	SourceLabel string    `db:"source_label" json:"source_label"`
	HostYear    int       `db:"host_year" json:"host_year"`
	HostLabel   string    `db:"host_label" json:"host_label"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Source returns the merged-away channel.
func (m ClassMerge) Source() ClassChannel {
	return ClassChannel{Year: m.SourceYear, Label: m.SourceLabel}
}

// Host returns the channel that now represents the source.
func (m ClassMerge) Host() ClassChannel {
	return ClassChannel{Year: m.HostYear, Label: m.HostLabel}
}
