// Package mcp exposes the bugtrack store as MCP tools over stdio, so
// agents and editors can drive the same operations as the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mhhussain/bugtrack/internal/dashboard"
	"github.com/mhhussain/bugtrack/internal/models"
	"github.com/mhhussain/bugtrack/internal/store"
)

// Server wraps the bugtrack data layer and exposes it as MCP tools.
type Server struct {
	store store.Store
}

// NewServer creates the MCP server wrapper around a store.
func NewServer(s store.Store) *Server {
	return &Server{store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("bugtrack", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listBugsTool())
	srv.AddTool(s.getBugTool())
	srv.AddTool(s.createBugTool())
	srv.AddTool(s.updateBugTool())
	srv.AddTool(s.addCommentTool())
	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listUsersTool())
	srv.AddTool(s.dashboardTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Wire shapes
// ---------------------------------------------------------------------------

type commentOut struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type bugOut struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Steps       string       `json:"steps,omitempty"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	ProjectID   string       `json:"project_id"`
	ReporterID  string       `json:"reporter_id"`
	AssigneeID  string       `json:"assignee_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Comments    []commentOut `json:"comments"`
}

func bugToOut(b *models.Bug) bugOut {
	out := bugOut{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Steps:       b.Steps,
		Status:      string(b.Status),
		Priority:    string(b.Priority),
		ProjectID:   b.ProjectID,
		ReporterID:  b.ReporterID,
		AssigneeID:  b.AssigneeID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		Comments:    []commentOut{},
	}
	for _, c := range b.Comments {
		out.Comments = append(out.Comments, commentOut{
			ID:        c.ID,
			AuthorID:  c.AuthorID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// bugtrack_list_bugs
func (s *Server) listBugsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_list_bugs",
		mcp.WithDescription("List bugs matching optional filters. Returns a JSON array of bugs with their comments."),
		mcp.WithString("status", mcp.Description("Comma-separated statuses: new, in-progress, review, resolved, closed")),
		mcp.WithString("priority", mcp.Description("Comma-separated priorities: low, medium, high, critical")),
		mcp.WithString("assignee", mcp.Description("Filter by assignee user id")),
		mcp.WithString("project", mcp.Description("Filter by project id")),
		mcp.WithString("search", mcp.Description("Case-insensitive substring match on title or description")),
	)
	return tool, s.handleListBugs
}

func (s *Server) handleListBugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.BugListFilter{
		AssigneeID: request.GetString("assignee", ""),
		ProjectID:  request.GetString("project", ""),
		Search:     request.GetString("search", ""),
	}

	for _, raw := range splitList(request.GetString("status", "")) {
		st := models.BugStatus(raw)
		if !models.ValidStatus(st) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", raw)), nil
		}
		filter.Status = append(filter.Status, st)
	}
	for _, raw := range splitList(request.GetString("priority", "")) {
		p := models.BugPriority(raw)
		if !models.ValidPriority(p) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown priority: %s", raw)), nil
		}
		filter.Priority = append(filter.Priority, p)
	}

	bugs, err := s.store.ListBugs(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list bugs: %v", err)), nil
	}

	out := make([]bugOut, len(bugs))
	for i, b := range bugs {
		out[i] = bugToOut(b)
	}
	return jsonResult(out)
}

// bugtrack_get_bug
func (s *Server) getBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_get_bug",
		mcp.WithDescription("Get a single bug by id, including its comment thread."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id")),
	)
	return tool, s.handleGetBug
}

func (s *Server) handleGetBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	bug, err := s.store.GetBug(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bug not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to get bug: %v", err)), nil
	}
	return jsonResult(bugToOut(bug))
}

// bugtrack_create_bug
func (s *Server) createBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_create_bug",
		mcp.WithDescription("File a new bug. The current user is recorded as the reporter. Returns the created bug as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Bug title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What is going wrong")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id the bug belongs to")),
		mcp.WithString("steps", mcp.Description("Steps to reproduce")),
		mcp.WithString("priority", mcp.Description("Priority: low, medium, high, critical (default medium)")),
		mcp.WithString("assignee", mcp.Description("Assignee user id")),
	)
	return tool, s.handleCreateBug
}

func (s *Server) handleCreateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	description, err := request.RequireString("description")
	if err != nil || strings.TrimSpace(description) == "" {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}
	projectID, err := request.RequireString("project")
	if err != nil || strings.TrimSpace(projectID) == "" {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	priority := models.BugPriority(request.GetString("priority", string(models.BugPriorityMedium)))
	if !models.ValidPriority(priority) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown priority: %s", priority)), nil
	}

	reporter, err := s.store.CurrentUser(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve current user: %v", err)), nil
	}

	bug := &models.Bug{
		Title:       title,
		Description: description,
		Steps:       request.GetString("steps", ""),
		Status:      models.BugStatusNew,
		Priority:    priority,
		ProjectID:   projectID,
		ReporterID:  reporter.ID,
		AssigneeID:  request.GetString("assignee", ""),
	}
	if err := s.store.CreateBug(ctx, bug); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create bug: %v", err)), nil
	}
	return jsonResult(bugToOut(bug))
}

// bugtrack_update_bug
func (s *Server) updateBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_update_bug",
		mcp.WithDescription("Update fields of an existing bug. Only supplied fields change. Returns the updated bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("steps", mcp.Description("New reproduction steps")),
		mcp.WithString("status", mcp.Description("New status: new, in-progress, review, resolved, closed")),
		mcp.WithString("priority", mcp.Description("New priority: low, medium, high, critical")),
		mcp.WithString("assignee", mcp.Description("New assignee user id, or \"none\" to unassign")),
	)
	return tool, s.handleUpdateBug
}

func (s *Server) handleUpdateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	var patch store.BugPatch
	if v := request.GetString("title", ""); v != "" {
		patch.Title = &v
	}
	if v := request.GetString("description", ""); v != "" {
		patch.Description = &v
	}
	if v := request.GetString("steps", ""); v != "" {
		patch.Steps = &v
	}
	if v := request.GetString("status", ""); v != "" {
		st := models.BugStatus(v)
		if !models.ValidStatus(st) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", v)), nil
		}
		patch.Status = &st
	}
	if v := request.GetString("priority", ""); v != "" {
		p := models.BugPriority(v)
		if !models.ValidPriority(p) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown priority: %s", v)), nil
		}
		patch.Priority = &p
	}
	if v := request.GetString("assignee", ""); v != "" {
		if v == "none" {
			patch.Unassign = true
		} else {
			patch.AssigneeID = &v
		}
	}

	bug, err := s.store.UpdateBug(ctx, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to update bug: %v", err)), nil
	}
	return jsonResult(bugToOut(bug))
}

// bugtrack_add_comment
func (s *Server) addCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_add_comment",
		mcp.WithDescription("Append a comment to a bug. The current user is recorded as the author. Returns the updated bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Comment text")),
	)
	return tool, s.handleAddComment
}

func (s *Server) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	content, err := request.RequireString("content")
	if err != nil || strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	bug, err := s.store.AddComment(ctx, id, strings.TrimSpace(content))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bug not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to add comment: %v", err)), nil
	}
	return jsonResult(bugToOut(bug))
}

// bugtrack_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array with id, name, and description."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{ID: p.ID, Name: p.Name, Description: p.Description}
	}
	return jsonResult(out)
}

// bugtrack_list_users
func (s *Server) listUsersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_list_users",
		mcp.WithDescription("List all users. Returns a JSON array with id, name, email, and role. The current user is flagged."),
	)
	return tool, s.handleListUsers
}

func (s *Server) handleListUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list users: %v", err)), nil
	}
	current, err := s.store.CurrentUser(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve current user: %v", err)), nil
	}

	type userOut struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Role    string `json:"role"`
		Current bool   `json:"current,omitempty"`
	}
	out := make([]userOut, len(users))
	for i, u := range users {
		out[i] = userOut{
			ID:      u.ID,
			Name:    u.Name,
			Email:   u.Email,
			Role:    string(u.Role),
			Current: u.ID == current.ID,
		}
	}
	return jsonResult(out)
}

// bugtrack_dashboard
func (s *Server) dashboardTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_dashboard",
		mcp.WithDescription("Summary metrics over the full bug collection: totals plus status and priority breakdowns."),
	)
	return tool, s.handleDashboard
}

func (s *Server) handleDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bugs, err := s.store.ListBugs(ctx, store.BugListFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list bugs: %v", err)), nil
	}
	m := dashboard.Compute(bugs)

	out := struct {
		TotalBugs    int            `json:"total_bugs"`
		OpenBugs     int            `json:"open_bugs"`
		ResolvedBugs int            `json:"resolved_bugs"`
		CriticalBugs int            `json:"critical_bugs"`
		ByStatus     map[string]int `json:"by_status"`
		ByPriority   map[string]int `json:"by_priority"`
	}{
		TotalBugs:    m.TotalBugs,
		OpenBugs:     m.OpenBugs,
		ResolvedBugs: m.ResolvedBugs,
		CriticalBugs: m.CriticalBugs,
		ByStatus:     map[string]int{},
		ByPriority:   map[string]int{},
	}
	for k, v := range m.ByStatus {
		out.ByStatus[string(k)] = v
	}
	for k, v := range m.ByPriority {
		out.ByPriority[string(k)] = v
	}
	return jsonResult(out)
}

// splitList splits a comma-separated parameter into trimmed, non-empty
// values.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
