package store

import (
	"strings"

	"github.com/mhhussain/bugtrack/internal/models"
)

// BugListFilter narrows the visible bug set when listing. The zero value
// matches every bug. Criteria are conjunctive across fields; the Status and
// Priority sets are disjunctive within themselves.
type BugListFilter struct {
	Status     []models.BugStatus
	Priority   []models.BugPriority
	AssigneeID string
	ProjectID  string
	Search     string // case-insensitive substring over title and description
}

// Empty reports whether the filter applies no criteria at all.
func (f BugListFilter) Empty() bool {
	return len(f.Status) == 0 && len(f.Priority) == 0 &&
		f.AssigneeID == "" && f.ProjectID == "" && strings.TrimSpace(f.Search) == ""
}

// Match reports whether a single bug satisfies every criterion in f.
func (f BugListFilter) Match(b *models.Bug) bool {
	if len(f.Status) > 0 && !containsStatus(f.Status, b.Status) {
		return false
	}
	if len(f.Priority) > 0 && !containsPriority(f.Priority, b.Priority) {
		return false
	}
	if f.AssigneeID != "" && b.AssigneeID != f.AssigneeID {
		return false
	}
	if f.ProjectID != "" && b.ProjectID != f.ProjectID {
		return false
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		term = strings.ToLower(term)
		if !strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(b.Description), term) {
			return false
		}
	}
	return true
}

// FilterBugs returns the subset of bugs matching f, preserving the relative
// order of the input. It never mutates or reorders the input slice; calling
// it twice with identical inputs yields identical output.
func FilterBugs(bugs []*models.Bug, f BugListFilter) []*models.Bug {
	if f.Empty() {
		return bugs
	}
	var out []*models.Bug
	for _, b := range bugs {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

func containsStatus(set []models.BugStatus, s models.BugStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(set []models.BugPriority, p models.BugPriority) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}
