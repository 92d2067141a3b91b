package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mhhussain/bugtrack/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
// With the default ":memory:" path the database lives for the process only,
// matching the memory store's lifetime; a file path makes it durable.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
// An empty path or ":memory:" opens an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer, and an in-memory database
	// is private per connection. A single pooled connection serializes all
	// access and keeps every statement on the same database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, avatar, role) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Avatar, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, avatar, role FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &role)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.UserRole(role)
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, avatar, role FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = models.UserRole(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.CreatedAt.IsZero() {
		now := time.Now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// --- Bugs ---

func (s *SQLiteStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	if err := s.checkRefs(ctx, bug.ProjectID, bug.ReporterID, bug.AssigneeID); err != nil {
		return err
	}

	if bug.ID == "" {
		bug.ID = newULID()
	}
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = time.Now().UTC()
	}
	if bug.UpdatedAt.IsZero() {
		bug.UpdatedAt = bug.CreatedAt
	}
	if bug.Comments == nil {
		bug.Comments = []models.Comment{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bugs (id, title, description, steps, status, priority, project_id, reporter_id, assignee_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bug.ID, bug.Title, bug.Description, bug.Steps,
		string(bug.Status), string(bug.Priority),
		bug.ProjectID, bug.ReporterID, nullable(bug.AssigneeID),
		bug.CreatedAt, bug.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bug: %w", err)
	}

	// Seed fixtures carry pre-existing comments.
	for i := range bug.Comments {
		c := &bug.Comments[i]
		if c.ID == "" {
			c.ID = newULID()
		}
		c.BugID = bug.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, bug_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.BugID, c.AuthorID, c.Content, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	bug := &models.Bug{}
	var status, priority string
	var assignee sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, steps, status, priority, project_id, reporter_id, assignee_id, created_at, updated_at
		FROM bugs WHERE id = ?`, id,
	).Scan(&bug.ID, &bug.Title, &bug.Description, &bug.Steps, &status, &priority,
		&bug.ProjectID, &bug.ReporterID, &assignee, &bug.CreatedAt, &bug.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}

	bug.Status = models.BugStatus(status)
	bug.Priority = models.BugPriority(priority)
	if assignee.Valid {
		bug.AssigneeID = assignee.String
	}

	comments, err := s.bugComments(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	bug.Comments = comments
	return bug, nil
}

// ListBugs compiles the structured filter fields to WHERE clauses and applies
// the search term in Go. Ordering by rowid keeps insertion order, matching the
// memory store.
func (s *SQLiteStore) ListBugs(ctx context.Context, filter BugListFilter) ([]*models.Bug, error) {
	query := `SELECT id, title, description, steps, status, priority, project_id, reporter_id, assignee_id, created_at, updated_at FROM bugs`
	var conditions []string
	var args []any

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.Priority) > 0 {
		placeholders := make([]string, len(filter.Priority))
		for i, p := range filter.Priority {
			placeholders[i] = "?"
			args = append(args, string(p))
		}
		conditions = append(conditions, "priority IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.AssigneeID != "" {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bugs []*models.Bug
	for rows.Next() {
		bug := &models.Bug{}
		var status, priority string
		var assignee sql.NullString

		if err := rows.Scan(&bug.ID, &bug.Title, &bug.Description, &bug.Steps, &status, &priority,
			&bug.ProjectID, &bug.ReporterID, &assignee, &bug.CreatedAt, &bug.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}

		bug.Status = models.BugStatus(status)
		bug.Priority = models.BugPriority(priority)
		if assignee.Valid {
			bug.AssigneeID = assignee.String
		}
		bugs = append(bugs, bug)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Search goes through the shared matcher rather than SQL LIKE so both
	// backends agree on literal substring semantics. LIKE treats % and _ as
	// wildcards and lower() only folds ASCII.
	if strings.TrimSpace(filter.Search) != "" {
		bugs = FilterBugs(bugs, BugListFilter{Search: filter.Search})
	}

	for _, bug := range bugs {
		comments, err := s.bugComments(ctx, bug.ID)
		if err != nil {
			return nil, err
		}
		bug.Comments = comments
	}
	return bugs, nil
}

func (s *SQLiteStore) UpdateBug(ctx context.Context, id string, patch BugPatch) (*models.Bug, error) {
	bug, err := s.GetBug(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.ProjectID != nil {
		if _, err := s.GetProject(ctx, *patch.ProjectID); err != nil {
			return nil, err
		}
	}
	if patch.AssigneeID != nil && !patch.Unassign {
		if _, err := s.GetUser(ctx, *patch.AssigneeID); err != nil {
			return nil, err
		}
	}

	if patch.Title != nil {
		bug.Title = *patch.Title
	}
	if patch.Description != nil {
		bug.Description = *patch.Description
	}
	if patch.Steps != nil {
		bug.Steps = *patch.Steps
	}
	if patch.Status != nil {
		bug.Status = *patch.Status
	}
	if patch.Priority != nil {
		bug.Priority = *patch.Priority
	}
	if patch.ProjectID != nil {
		bug.ProjectID = *patch.ProjectID
	}
	switch {
	case patch.Unassign:
		bug.AssigneeID = ""
	case patch.AssigneeID != nil:
		bug.AssigneeID = *patch.AssigneeID
	}
	bug.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`UPDATE bugs SET title=?, description=?, steps=?, status=?, priority=?, project_id=?, assignee_id=?, updated_at=?
		WHERE id=?`,
		bug.Title, bug.Description, bug.Steps,
		string(bug.Status), string(bug.Priority),
		bug.ProjectID, nullable(bug.AssigneeID), bug.UpdatedAt, bug.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update bug: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("bug %s: %w", id, ErrNotFound)
	}
	return bug, nil
}

func (s *SQLiteStore) AddComment(ctx context.Context, bugID, content string) (*models.Bug, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("comment content is empty")
	}
	if _, err := s.GetBug(ctx, bugID); err != nil {
		return nil, err
	}
	author, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, bug_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		newULID(), bugID, author.ID, content, now,
	); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bugs SET updated_at=? WHERE id=?`, now, bugID,
	); err != nil {
		return nil, fmt.Errorf("touch bug: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetBug(ctx, bugID)
}

// --- Current user ---

func (s *SQLiteStore) CurrentUser(ctx context.Context) (*models.User, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'current_user_id'`).Scan(&id)
	if err == nil {
		return s.GetUser(ctx, id)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("current user: %w", err)
	}

	// Default to the first seeded user.
	u := &models.User{}
	var role string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, email, avatar, role FROM users ORDER BY rowid LIMIT 1`,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &role)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("current user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	u.Role = models.UserRole(role)
	return u, nil
}

func (s *SQLiteStore) SetCurrentUser(ctx context.Context, userID string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('current_user_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, userID)
	if err != nil {
		return fmt.Errorf("set current user: %w", err)
	}
	return nil
}

// --- helpers ---

func (s *SQLiteStore) bugComments(ctx context.Context, bugID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bug_id, author_id, content, created_at FROM comments WHERE bug_id = ? ORDER BY rowid`, bugID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.BugID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) checkRefs(ctx context.Context, projectID, reporterID, assigneeID string) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.GetUser(ctx, reporterID); err != nil {
		return err
	}
	if assigneeID != "" {
		if _, err := s.GetUser(ctx, assigneeID); err != nil {
			return err
		}
	}
	return nil
}

// nullable maps an empty string to NULL for nullable foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
