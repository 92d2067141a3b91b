package models

import "time"

// Project represents a tracked software project that bugs are filed against.
// Projects are seeded at startup; the core exposes no update path for them.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
