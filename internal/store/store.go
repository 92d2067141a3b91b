package store

import (
	"context"
	"errors"

	"github.com/mhhussain/bugtrack/internal/models"
)

// ErrNotFound is returned when a referenced entity does not exist. Callers
// can test for it with errors.Is.
var ErrNotFound = errors.New("not found")

// BugPatch is a partial set of field overrides for UpdateBug. Nil fields are
// left unchanged.
type BugPatch struct {
	Title       *string
	Description *string
	Steps       *string
	Status      *models.BugStatus
	Priority    *models.BugPriority
	ProjectID   *string
	AssigneeID  *string
	Unassign    bool // clear the assignee; takes precedence over AssigneeID
}

// Store defines the entity store interface for bugtrack.
//
// Users and projects are written only by the seed loader; the core exposes
// no mutation path for them after startup. Bugs are created and updated but
// never deleted, and comments are append-only.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)

	// Bugs
	CreateBug(ctx context.Context, bug *models.Bug) error
	GetBug(ctx context.Context, id string) (*models.Bug, error)
	ListBugs(ctx context.Context, filter BugListFilter) ([]*models.Bug, error)
	UpdateBug(ctx context.Context, id string, patch BugPatch) (*models.Bug, error)
	AddComment(ctx context.Context, bugID, content string) (*models.Bug, error)

	// Current user (fixed to the first seed user unless overridden; there is
	// no auth flow)
	CurrentUser(ctx context.Context) (*models.User, error)
	SetCurrentUser(ctx context.Context, userID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
