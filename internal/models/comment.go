package models

import "time"

// Comment is a discussion entry on a bug. Comments are append-only; once
// created they are never edited or deleted.
type Comment struct {
	ID        string
	BugID     string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
