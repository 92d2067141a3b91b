// Package seed loads the fixed startup dataset into a store. The dataset is
// a replaceable fixture: the embedded default mirrors the project's demo
// data, and an alternate YAML file can be supplied through configuration.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mhhussain/bugtrack/internal/models"
	"github.com/mhhussain/bugtrack/internal/store"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Dataset is a parsed seed fixture.
type Dataset struct {
	Users    []*models.User
	Projects []*models.Project
	Bugs     []*models.Bug
}

// fixture is the YAML shape of a seed file. Comments are listed flat and
// attached to their bugs by bug_id, preserving file order.
type fixture struct {
	Users []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Email  string `yaml:"email"`
		Avatar string `yaml:"avatar"`
		Role   string `yaml:"role"`
	} `yaml:"users"`
	Projects []struct {
		ID          string    `yaml:"id"`
		Name        string    `yaml:"name"`
		Description string    `yaml:"description"`
		CreatedAt   time.Time `yaml:"created_at"`
		UpdatedAt   time.Time `yaml:"updated_at"`
	} `yaml:"projects"`
	Bugs []struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Description string    `yaml:"description"`
		Steps       string    `yaml:"steps"`
		Status      string    `yaml:"status"`
		Priority    string    `yaml:"priority"`
		ProjectID   string    `yaml:"project_id"`
		ReporterID  string    `yaml:"reporter_id"`
		AssigneeID  string    `yaml:"assignee_id"`
		CreatedAt   time.Time `yaml:"created_at"`
		UpdatedAt   time.Time `yaml:"updated_at"`
	} `yaml:"bugs"`
	Comments []struct {
		ID        string    `yaml:"id"`
		BugID     string    `yaml:"bug_id"`
		AuthorID  string    `yaml:"author_id"`
		Content   string    `yaml:"content"`
		CreatedAt time.Time `yaml:"created_at"`
	} `yaml:"comments"`
}

// Default parses the embedded fixture.
func Default() (*Dataset, error) {
	return Parse(defaultFixture)
}

// FromFile parses a seed fixture from a YAML file.
func FromFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML fixture into a Dataset.
func Parse(data []byte) (*Dataset, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed fixture: %w", err)
	}

	ds := &Dataset{}

	for _, u := range f.Users {
		ds.Users = append(ds.Users, &models.User{
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Avatar: u.Avatar,
			Role:   models.UserRole(u.Role),
		})
	}

	for _, p := range f.Projects {
		ds.Projects = append(ds.Projects, &models.Project{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}

	// Group comments by bug so they can be attached in file order.
	commentsByBug := make(map[string][]models.Comment)
	for _, c := range f.Comments {
		commentsByBug[c.BugID] = append(commentsByBug[c.BugID], models.Comment{
			ID:        c.ID,
			BugID:     c.BugID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}

	for _, b := range f.Bugs {
		status := models.BugStatus(b.Status)
		if !models.ValidStatus(status) {
			return nil, fmt.Errorf("bug %s: unknown status %q", b.ID, b.Status)
		}
		priority := models.BugPriority(b.Priority)
		if !models.ValidPriority(priority) {
			return nil, fmt.Errorf("bug %s: unknown priority %q", b.ID, b.Priority)
		}
		comments := commentsByBug[b.ID]
		if comments == nil {
			comments = []models.Comment{}
		}
		ds.Bugs = append(ds.Bugs, &models.Bug{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Steps:       b.Steps,
			Status:      status,
			Priority:    priority,
			ProjectID:   b.ProjectID,
			ReporterID:  b.ReporterID,
			AssigneeID:  b.AssigneeID,
			CreatedAt:   b.CreatedAt,
			UpdatedAt:   b.UpdatedAt,
			Comments:    comments,
		})
	}

	return ds, nil
}

// Apply loads the dataset into an empty store and points the current user
// at the first seeded user.
func Apply(ctx context.Context, s store.Store, ds *Dataset) error {
	for _, u := range ds.Users {
		if err := s.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for _, p := range ds.Projects {
		if err := s.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("seed project %s: %w", p.ID, err)
		}
	}
	for _, b := range ds.Bugs {
		if err := s.CreateBug(ctx, b); err != nil {
			return fmt.Errorf("seed bug %s: %w", b.ID, err)
		}
	}
	if len(ds.Users) > 0 {
		if err := s.SetCurrentUser(ctx, ds.Users[0].ID); err != nil {
			return fmt.Errorf("seed current user: %w", err)
		}
	}
	return nil
}
