package models

import "time"

// BugStatus represents the workflow stage of a bug.
type BugStatus string

const (
	BugStatusNew        BugStatus = "new"
	BugStatusInProgress BugStatus = "in-progress"
	BugStatusReview     BugStatus = "review"
	BugStatusResolved   BugStatus = "resolved"
	BugStatusClosed     BugStatus = "closed"
)

// BugPriority represents the urgency of a bug.
type BugPriority string

const (
	BugPriorityLow      BugPriority = "low"
	BugPriorityMedium   BugPriority = "medium"
	BugPriorityHigh     BugPriority = "high"
	BugPriorityCritical BugPriority = "critical"
)

// Statuses lists all bug statuses in workflow order.
func Statuses() []BugStatus {
	return []BugStatus{BugStatusNew, BugStatusInProgress, BugStatusReview, BugStatusResolved, BugStatusClosed}
}

// Priorities lists all bug priorities from least to most urgent.
func Priorities() []BugPriority {
	return []BugPriority{BugPriorityLow, BugPriorityMedium, BugPriorityHigh, BugPriorityCritical}
}

// ValidStatus reports whether s is one of the known bug statuses.
func ValidStatus(s BugStatus) bool {
	switch s {
	case BugStatusNew, BugStatusInProgress, BugStatusReview, BugStatusResolved, BugStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the known bug priorities.
func ValidPriority(p BugPriority) bool {
	switch p {
	case BugPriorityLow, BugPriorityMedium, BugPriorityHigh, BugPriorityCritical:
		return true
	}
	return false
}

// Open reports whether the status counts as open work (not yet resolved).
func (s BugStatus) Open() bool {
	switch s {
	case BugStatusNew, BugStatusInProgress, BugStatusReview:
		return true
	}
	return false
}

// Bug represents a tracked defect for a project.
type Bug struct {
	ID          string
	Title       string
	Description string
	Steps       string // free-text reproduction steps
	Status      BugStatus
	Priority    BugPriority
	ProjectID   string
	ReporterID  string
	AssigneeID  string // empty = unassigned
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Comments    []Comment // insertion order, append-only
}

// Clone returns a deep copy of the bug, including its comment slice.
func (b *Bug) Clone() *Bug {
	c := *b
	if b.Comments != nil {
		c.Comments = make([]Comment, len(b.Comments))
		copy(c.Comments, b.Comments)
	}
	return &c
}
