package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mhhussain/bugtrack/internal/models"
)

// MemoryStore is the in-memory entity store. It owns the seeded user and
// project collections, the mutable bug collection, and the current-user
// pointer. All reads return deep copies so callers can never mutate store
// state behind its back.
//
// The store itself lives for the process lifetime only; nothing is
// persisted.
type MemoryStore struct {
	mu            sync.RWMutex
	users         []*models.User
	projects      []*models.Project
	bugs          []*models.Bug
	currentUserID string

	now   func() time.Time
	delay time.Duration
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the store's time source. Used by tests to make
// timestamp assertions deterministic.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithDelay adds an artificial pause before each mutation, emulating the
// feel of a remote backend. The pause honors context cancellation. Zero
// disables it, which is the default.
func WithDelay(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.delay = d }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// pause implements the optional simulated latency before a mutation.
func (s *MemoryStore) pause(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Migrate is a no-op; the memory store has no schema.
func (s *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op; the memory store holds no external resources.
func (s *MemoryStore) Close() error { return nil }

// --- Users ---

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = newULID()
	}
	cp := *u
	s.users = append(s.users, &cp)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, len(s.users))
	for i, u := range s.users {
		cp := *u
		out[i] = &cp
	}
	return out, nil
}

// --- Projects ---

func (s *MemoryStore) CreateProject(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newULID()
	}
	if p.CreatedAt.IsZero() {
		now := s.now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	cp := *p
	s.projects = append(s.projects, &cp)
	return nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Project, len(s.projects))
	for i, p := range s.projects {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// --- Bugs ---

// CreateBug appends a new bug to the collection. A missing ID gets a fresh
// ULID and zero timestamps are set to the current time; the seed loader
// relies on pre-set values surviving. Invalid project, reporter, or
// assignee references are rejected with ErrNotFound.
func (s *MemoryStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	if err := s.pause(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRefsLocked(bug.ProjectID, bug.ReporterID, bug.AssigneeID); err != nil {
		return err
	}

	if bug.ID == "" {
		bug.ID = newULID()
	}
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = s.now().UTC()
	}
	if bug.UpdatedAt.IsZero() {
		bug.UpdatedAt = bug.CreatedAt
	}
	if bug.Comments == nil {
		bug.Comments = []models.Comment{}
	}
	s.bugs = append(s.bugs, bug.Clone())
	return nil
}

func (s *MemoryStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.findBugLocked(id)
	if b == nil {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	return b.Clone(), nil
}

// ListBugs returns the bugs matching the filter in insertion order.
func (s *MemoryStore) ListBugs(ctx context.Context, filter BugListFilter) ([]*models.Bug, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Bug
	for _, b := range FilterBugs(s.bugs, filter) {
		out = append(out, b.Clone())
	}
	return out, nil
}

// UpdateBug overlays the patch onto the identified bug and advances its
// UpdatedAt. It returns the updated bug, or ErrNotFound if the id (or a
// project/assignee reference in the patch) does not exist.
func (s *MemoryStore) UpdateBug(ctx context.Context, id string, patch BugPatch) (*models.Bug, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.findBugLocked(id)
	if b == nil {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}

	if patch.ProjectID != nil {
		if s.findProjectLocked(*patch.ProjectID) == nil {
			return nil, fmt.Errorf("project %s: %w", *patch.ProjectID, ErrNotFound)
		}
	}
	if patch.AssigneeID != nil && !patch.Unassign {
		if s.findUserLocked(*patch.AssigneeID) == nil {
			return nil, fmt.Errorf("user %s: %w", *patch.AssigneeID, ErrNotFound)
		}
	}

	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.Steps != nil {
		b.Steps = *patch.Steps
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Priority != nil {
		b.Priority = *patch.Priority
	}
	if patch.ProjectID != nil {
		b.ProjectID = *patch.ProjectID
	}
	switch {
	case patch.Unassign:
		b.AssigneeID = ""
	case patch.AssigneeID != nil:
		b.AssigneeID = *patch.AssigneeID
	}
	b.UpdatedAt = s.now().UTC()

	return b.Clone(), nil
}

// AddComment appends a comment authored by the current user to the
// identified bug and advances the bug's UpdatedAt to the comment's creation
// time.
func (s *MemoryStore) AddComment(ctx context.Context, bugID, content string) (*models.Bug, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("comment content is empty")
	}
	if err := s.pause(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.findBugLocked(bugID)
	if b == nil {
		return nil, fmt.Errorf("bug %s: %w", bugID, ErrNotFound)
	}
	author := s.currentUserLocked()
	if author == nil {
		return nil, fmt.Errorf("current user: %w", ErrNotFound)
	}

	now := s.now().UTC()
	b.Comments = append(b.Comments, models.Comment{
		ID:        newULID(),
		BugID:     b.ID,
		AuthorID:  author.ID,
		Content:   content,
		CreatedAt: now,
	})
	b.UpdatedAt = now

	return b.Clone(), nil
}

// --- Current user ---

func (s *MemoryStore) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.currentUserLocked()
	if u == nil {
		return nil, fmt.Errorf("current user: %w", ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) SetCurrentUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findUserLocked(userID) == nil {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	s.currentUserID = userID
	return nil
}

// currentUserLocked resolves the current user, defaulting to the first
// seeded user when none was set explicitly.
func (s *MemoryStore) currentUserLocked() *models.User {
	if s.currentUserID != "" {
		return s.findUserLocked(s.currentUserID)
	}
	if len(s.users) > 0 {
		return s.users[0]
	}
	return nil
}

// --- lookup helpers (callers hold s.mu) ---

func (s *MemoryStore) findBugLocked(id string) *models.Bug {
	for _, b := range s.bugs {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *MemoryStore) findUserLocked(id string) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) findProjectLocked(id string) *models.Project {
	for _, p := range s.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// checkRefsLocked validates the foreign-key references of a new bug.
func (s *MemoryStore) checkRefsLocked(projectID, reporterID, assigneeID string) error {
	if s.findProjectLocked(projectID) == nil {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if s.findUserLocked(reporterID) == nil {
		return fmt.Errorf("user %s: %w", reporterID, ErrNotFound)
	}
	if assigneeID != "" && s.findUserLocked(assigneeID) == nil {
		return fmt.Errorf("user %s: %w", assigneeID, ErrNotFound)
	}
	return nil
}
