package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhhussain/bugtrack/internal/models"
	"github.com/mhhussain/bugtrack/internal/store"
)

// newTestServer returns a Server backed by a memory store seeded with two
// users and two projects.
func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	ctx := context.Background()

	users := []*models.User{
		{ID: "u-alice", Name: "Alice Chen", Email: "alice@example.com", Role: models.UserRoleAdmin},
		{ID: "u-bob", Name: "Bob Park", Email: "bob@example.com", Role: models.UserRoleDeveloper},
	}
	for _, u := range users {
		require.NoError(t, ms.CreateUser(ctx, u))
	}
	require.NoError(t, ms.CreateProject(ctx, &models.Project{ID: "p-web", Name: "Web App", Description: "Customer-facing web app"}))
	require.NoError(t, ms.CreateProject(ctx, &models.Project{ID: "p-api", Name: "API", Description: "Backend API"}))

	return NewServer(ms), ms
}

// seedBug adds a bug through the store and returns it.
func seedBug(t *testing.T, ms *store.MemoryStore, title string, status models.BugStatus, priority models.BugPriority) *models.Bug {
	t.Helper()
	b := &models.Bug{
		Title:      title,
		Status:     status,
		Priority:   priority,
		ProjectID:  "p-web",
		ReporterID: "u-alice",
	}
	require.NoError(t, ms.CreateBug(context.Background(), b))
	return b
}

// callToolReq builds a CallToolRequest with the given tool name and args.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests: registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_list_bugs
// ---------------------------------------------------------------------------

func TestHandleListBugs_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugtrack_list_bugs", nil))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	assert.Len(t, bugs, 0)
}

func TestHandleListBugs_All(t *testing.T) {
	srv, ms := newTestServer(t)
	seedBug(t, ms, "Crash on save", models.BugStatusNew, models.BugPriorityHigh)
	seedBug(t, ms, "Slow dashboard", models.BugStatusInProgress, models.BugPriorityLow)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugtrack_list_bugs", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	require.Len(t, bugs, 2)
	assert.Equal(t, "Crash on save", bugs[0].Title)
	assert.Equal(t, "Slow dashboard", bugs[1].Title)
}

func TestHandleListBugs_FilterByStatus(t *testing.T) {
	srv, ms := newTestServer(t)
	seedBug(t, ms, "one", models.BugStatusNew, models.BugPriorityHigh)
	seedBug(t, ms, "two", models.BugStatusResolved, models.BugPriorityLow)
	seedBug(t, ms, "three", models.BugStatusClosed, models.BugPriorityLow)

	req := callToolReq("bugtrack_list_bugs", map[string]any{"status": "resolved, closed"})
	result, err := srv.handleListBugs(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	require.Len(t, bugs, 2)
	assert.Equal(t, "two", bugs[0].Title)
	assert.Equal(t, "three", bugs[1].Title)
}

func TestHandleListBugs_Search(t *testing.T) {
	srv, ms := newTestServer(t)
	seedBug(t, ms, "Chart renders blank", models.BugStatusNew, models.BugPriorityHigh)
	seedBug(t, ms, "Typo in footer", models.BugStatusNew, models.BugPriorityLow)

	req := callToolReq("bugtrack_list_bugs", map[string]any{"search": "CHART"})
	result, err := srv.handleListBugs(context.Background(), req)
	require.NoError(t, err)

	var bugs []bugOut
	resultJSON(t, result, &bugs)
	require.Len(t, bugs, 1)
	assert.Equal(t, "Chart renders blank", bugs[0].Title)
}

func TestHandleListBugs_UnknownStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_list_bugs", map[string]any{"status": "reopened"})
	result, err := srv.handleListBugs(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown status")
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_get_bug
// ---------------------------------------------------------------------------

func TestHandleGetBug(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "Crash on save", models.BugStatusNew, models.BugPriorityHigh)

	req := callToolReq("bugtrack_get_bug", map[string]any{"id": b.ID})
	result, err := srv.handleGetBug(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "Crash on save", got.Title)
	require.NotNil(t, got.Comments)
	assert.Len(t, got.Comments, 0)
}

func TestHandleGetBug_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_get_bug", map[string]any{"id": "missing"})
	result, err := srv.handleGetBug(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bug not found")
}

func TestHandleGetBug_MissingID(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleGetBug(context.Background(), callToolReq("bugtrack_get_bug", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_create_bug
// ---------------------------------------------------------------------------

func TestHandleCreateBug(t *testing.T) {
	srv, ms := newTestServer(t)

	req := callToolReq("bugtrack_create_bug", map[string]any{
		"title":       "Broken export",
		"description": "CSV download corrupts data",
		"project":     "p-api",
		"priority":    "critical",
		"assignee":    "u-bob",
	})
	result, err := srv.handleCreateBug(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "new", got.Status)
	assert.Equal(t, "critical", got.Priority)
	assert.Equal(t, "u-alice", got.ReporterID, "reporter is the current user")
	assert.Equal(t, "u-bob", got.AssigneeID)

	stored, err := ms.GetBug(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken export", stored.Title)
}

func TestHandleCreateBug_DefaultPriority(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_create_bug", map[string]any{
		"title":       "Minor glitch",
		"description": "Tooltip flickers",
		"project":     "p-web",
	})
	result, err := srv.handleCreateBug(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	assert.Equal(t, "medium", got.Priority)
	assert.Empty(t, got.AssigneeID)
}

func TestHandleCreateBug_MissingTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_create_bug", map[string]any{
		"description": "no title given",
		"project":     "p-web",
	})
	result, err := srv.handleCreateBug(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "title")
}

func TestHandleCreateBug_UnknownProject(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_create_bug", map[string]any{
		"title":       "orphan",
		"description": "points nowhere",
		"project":     "p-nope",
	})
	result, err := srv.handleCreateBug(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_update_bug
// ---------------------------------------------------------------------------

func TestHandleUpdateBug_ChangeStatus(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "Crash on save", models.BugStatusNew, models.BugPriorityHigh)

	req := callToolReq("bugtrack_update_bug", map[string]any{
		"id":     b.ID,
		"status": "in-progress",
	})
	result, err := srv.handleUpdateBug(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	assert.Equal(t, "in-progress", got.Status)
	assert.Equal(t, "Crash on save", got.Title, "unpatched fields survive")
}

func TestHandleUpdateBug_Unassign(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "assigned", models.BugStatusNew, models.BugPriorityLow)
	assignee := "u-bob"
	_, err := ms.UpdateBug(context.Background(), b.ID, store.BugPatch{AssigneeID: &assignee})
	require.NoError(t, err)

	req := callToolReq("bugtrack_update_bug", map[string]any{
		"id":       b.ID,
		"assignee": "none",
	})
	result, err := srv.handleUpdateBug(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	assert.Empty(t, got.AssigneeID)
}

func TestHandleUpdateBug_UnknownStatus(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "x", models.BugStatusNew, models.BugPriorityLow)

	req := callToolReq("bugtrack_update_bug", map[string]any{
		"id":     b.ID,
		"status": "wontfix",
	})
	result, err := srv.handleUpdateBug(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleUpdateBug_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_update_bug", map[string]any{
		"id":     "missing",
		"status": "closed",
	})
	result, err := srv.handleUpdateBug(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_add_comment
// ---------------------------------------------------------------------------

func TestHandleAddComment(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "flaky", models.BugStatusNew, models.BugPriorityLow)

	req := callToolReq("bugtrack_add_comment", map[string]any{
		"id":      b.ID,
		"content": "Reproduced on main",
	})
	result, err := srv.handleAddComment(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got bugOut
	resultJSON(t, result, &got)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Reproduced on main", got.Comments[0].Content)
	assert.Equal(t, "u-alice", got.Comments[0].AuthorID)
}

func TestHandleAddComment_BugNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := callToolReq("bugtrack_add_comment", map[string]any{
		"id":      "missing",
		"content": "hello",
	})
	result, err := srv.handleAddComment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAddComment_EmptyContent(t *testing.T) {
	srv, ms := newTestServer(t)
	b := seedBug(t, ms, "x", models.BugStatusNew, models.BugPriorityLow)

	req := callToolReq("bugtrack_add_comment", map[string]any{
		"id":      b.ID,
		"content": "   ",
	})
	result, err := srv.handleAddComment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_list_projects / bugtrack_list_users
// ---------------------------------------------------------------------------

func TestHandleListProjects(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListProjects(context.Background(), callToolReq("bugtrack_list_projects", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Web App")
	assert.Contains(t, text, "API")
}

func TestHandleListUsers(t *testing.T) {
	srv, ms := newTestServer(t)
	require.NoError(t, ms.SetCurrentUser(context.Background(), "u-bob"))

	result, err := srv.handleListUsers(context.Background(), callToolReq("bugtrack_list_users", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var users []struct {
		ID      string `json:"id"`
		Current bool   `json:"current"`
	}
	resultJSON(t, result, &users)
	require.Len(t, users, 2)
	assert.False(t, users[0].Current)
	assert.True(t, users[1].Current)
}

// ---------------------------------------------------------------------------
// Tests: bugtrack_dashboard
// ---------------------------------------------------------------------------

func TestHandleDashboard(t *testing.T) {
	srv, ms := newTestServer(t)
	seedBug(t, ms, "one", models.BugStatusNew, models.BugPriorityCritical)
	seedBug(t, ms, "two", models.BugStatusInProgress, models.BugPriorityHigh)
	seedBug(t, ms, "three", models.BugStatusResolved, models.BugPriorityCritical)

	result, err := srv.handleDashboard(context.Background(), callToolReq("bugtrack_dashboard", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got struct {
		TotalBugs    int            `json:"total_bugs"`
		OpenBugs     int            `json:"open_bugs"`
		ResolvedBugs int            `json:"resolved_bugs"`
		CriticalBugs int            `json:"critical_bugs"`
		ByStatus     map[string]int `json:"by_status"`
		ByPriority   map[string]int `json:"by_priority"`
	}
	resultJSON(t, result, &got)
	assert.Equal(t, 3, got.TotalBugs)
	assert.Equal(t, 2, got.OpenBugs)
	assert.Equal(t, 1, got.ResolvedBugs)
	assert.Equal(t, 2, got.CriticalBugs)
	assert.Equal(t, 1, got.ByStatus["new"])
	assert.Equal(t, 0, got.ByStatus["closed"])
	assert.Equal(t, 1, got.ByPriority["high"])
}
