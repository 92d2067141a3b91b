// Package dashboard derives summary metrics from the bug collection. All
// functions are pure; they never mutate their inputs and are safe to call
// on every render.
package dashboard

import (
	"sort"

	"github.com/mhhussain/bugtrack/internal/models"
)

// Metrics is an aggregate view of the bug collection.
type Metrics struct {
	TotalBugs    int
	OpenBugs     int // new, in-progress, review
	ResolvedBugs int // resolved, closed
	CriticalBugs int
	ByStatus     map[models.BugStatus]int
	ByPriority   map[models.BugPriority]int
}

// Compute derives metrics from the full bug collection. Every known status
// and priority appears in the breakdown maps, with zero counts for unused
// values.
func Compute(bugs []*models.Bug) *Metrics {
	m := &Metrics{
		ByStatus:   make(map[models.BugStatus]int, len(models.Statuses())),
		ByPriority: make(map[models.BugPriority]int, len(models.Priorities())),
	}
	for _, s := range models.Statuses() {
		m.ByStatus[s] = 0
	}
	for _, p := range models.Priorities() {
		m.ByPriority[p] = 0
	}

	for _, b := range bugs {
		m.TotalBugs++
		if b.Status.Open() {
			m.OpenBugs++
		} else {
			m.ResolvedBugs++
		}
		if b.Priority == models.BugPriorityCritical {
			m.CriticalBugs++
		}
		m.ByStatus[b.Status]++
		m.ByPriority[b.Priority]++
	}
	return m
}

// Recent returns up to n bugs ordered by most recent update. The input
// slice is left untouched.
func Recent(bugs []*models.Bug, n int) []*models.Bug {
	out := make([]*models.Bug, len(bugs))
	copy(out, bugs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
