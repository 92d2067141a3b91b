package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhhussain/bugtrack/internal/models"
)

// newSeededMemory returns a memory store with two users and two projects,
// plus a settable clock for timestamp assertions.
func newSeededMemory(t *testing.T, opts ...MemoryOption) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]MemoryOption{WithClock(func() time.Time { return now })}, opts...)
	s := NewMemoryStore(opts...)

	ctx := context.Background()
	users := []*models.User{
		{ID: "u-alice", Name: "Alice Chen", Email: "alice@example.com", Role: models.UserRoleAdmin},
		{ID: "u-bob", Name: "Bob Park", Email: "bob@example.com", Role: models.UserRoleDeveloper},
	}
	for _, u := range users {
		require.NoError(t, s.CreateUser(ctx, u))
	}

	projects := []*models.Project{
		{ID: "p-web", Name: "Web App", Description: "Customer-facing web app"},
		{ID: "p-api", Name: "API", Description: "Backend API"},
	}
	for _, p := range projects {
		require.NoError(t, s.CreateProject(ctx, p))
	}

	return s, &now
}

func TestCreateBug_Defaults(t *testing.T) {
	s, now := newSeededMemory(t)
	ctx := context.Background()

	titles := []string{"Crash on save", "Slow dashboard", "Broken link"}
	for _, title := range titles {
		b := &models.Bug{
			Title:      title,
			Status:     models.BugStatusNew,
			Priority:   models.BugPriorityMedium,
			ProjectID:  "p-web",
			ReporterID: "u-alice",
		}
		require.NoError(t, s.CreateBug(ctx, b))
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, *now, b.CreatedAt)
		assert.Equal(t, b.CreatedAt, b.UpdatedAt)
		require.NotNil(t, b.Comments)
		assert.Len(t, b.Comments, 0)
	}

	bugs, err := s.ListBugs(ctx, BugListFilter{})
	require.NoError(t, err)
	require.Len(t, bugs, len(titles))

	// Insertion order, distinct ids
	seen := map[string]bool{}
	for i, b := range bugs {
		assert.Equal(t, titles[i], b.Title)
		assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestCreateBug_HonorsPresetValues(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	b := &models.Bug{
		ID:         "BUG-001",
		Title:      "Imported bug",
		Status:     models.BugStatusResolved,
		Priority:   models.BugPriorityHigh,
		ProjectID:  "p-api",
		ReporterID: "u-bob",
		AssigneeID: "u-alice",
		CreatedAt:  created,
		UpdatedAt:  created.Add(48 * time.Hour),
		Comments: []models.Comment{
			{ID: "c-1", BugID: "BUG-001", AuthorID: "u-alice", Content: "On it", CreatedAt: created.Add(time.Hour)},
		},
	}
	require.NoError(t, s.CreateBug(ctx, b))

	got, err := s.GetBug(ctx, "BUG-001")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, created.Add(48*time.Hour), got.UpdatedAt)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "On it", got.Comments[0].Content)
}

func TestCreateBug_BackdatedCreatedAt(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	b := &models.Bug{
		Title:      "Imported bug",
		Status:     models.BugStatusNew,
		Priority:   models.BugPriorityMedium,
		ProjectID:  "p-api",
		ReporterID: "u-bob",
		CreatedAt:  created,
	}
	require.NoError(t, s.CreateBug(ctx, b))

	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, created, got.UpdatedAt, "zero UpdatedAt should inherit CreatedAt")
}

func TestCreateBug_InvalidRefs(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	cases := []struct {
		name string
		bug  models.Bug
	}{
		{"unknown project", models.Bug{Title: "x", ProjectID: "p-nope", ReporterID: "u-alice"}},
		{"unknown reporter", models.Bug{Title: "x", ProjectID: "p-web", ReporterID: "u-nope"}},
		{"unknown assignee", models.Bug{Title: "x", ProjectID: "p-web", ReporterID: "u-alice", AssigneeID: "u-nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bug := tc.bug
			err := s.CreateBug(ctx, &bug)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}

	bugs, err := s.ListBugs(ctx, BugListFilter{})
	require.NoError(t, err)
	assert.Len(t, bugs, 0, "rejected creates must not land in the collection")
}

func TestGetBug_ReturnsCopy(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "original", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b))

	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Comments = append(got.Comments, models.Comment{Content: "sneaky"})

	again, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
	assert.Len(t, again.Comments, 0)
}

func TestGetBug_NotFound(t *testing.T) {
	s, _ := newSeededMemory(t)

	_, err := s.GetBug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBug(t *testing.T) {
	s, now := newSeededMemory(t)
	ctx := context.Background()

	b1 := &models.Bug{Title: "first", Description: "alpha", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	b2 := &models.Bug{Title: "second", Description: "beta", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b1))
	require.NoError(t, s.CreateBug(ctx, b2))

	createdAt := b1.CreatedAt
	*now = now.Add(2 * time.Hour)

	status := models.BugStatusInProgress
	title := "first, retitled"
	assignee := "u-bob"
	got, err := s.UpdateBug(ctx, b1.ID, BugPatch{
		Title:      &title,
		Status:     &status,
		AssigneeID: &assignee,
	})
	require.NoError(t, err)

	// Patched fields changed, the rest survived
	assert.Equal(t, "first, retitled", got.Title)
	assert.Equal(t, models.BugStatusInProgress, got.Status)
	assert.Equal(t, "u-bob", got.AssigneeID)
	assert.Equal(t, "alpha", got.Description)
	assert.Equal(t, models.BugPriorityLow, got.Priority)
	assert.Equal(t, createdAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(createdAt))

	// The other bug is untouched
	other, err := s.GetBug(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", other.Title)
	assert.Equal(t, createdAt, other.UpdatedAt)
}

func TestUpdateBug_Unassign(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "assigned", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice", AssigneeID: "u-bob"}
	require.NoError(t, s.CreateBug(ctx, b))

	got, err := s.UpdateBug(ctx, b.ID, BugPatch{Unassign: true})
	require.NoError(t, err)
	assert.Empty(t, got.AssigneeID)
}

func TestUpdateBug_NotFound(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "only", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b))

	status := models.BugStatusClosed
	_, err := s.UpdateBug(ctx, "missing", BugPatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)

	// Collection unchanged
	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusNew, got.Status)
}

func TestUpdateBug_InvalidPatchRefs(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "x", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b))

	badProject := "p-nope"
	_, err := s.UpdateBug(ctx, b.ID, BugPatch{ProjectID: &badProject})
	assert.ErrorIs(t, err, ErrNotFound)

	badUser := "u-nope"
	_, err = s.UpdateBug(ctx, b.ID, BugPatch{AssigneeID: &badUser})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddComment(t *testing.T) {
	s, now := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "flaky test", Status: models.BugStatusReview, Priority: models.BugPriorityHigh, ProjectID: "p-api", ReporterID: "u-bob"}
	require.NoError(t, s.CreateBug(ctx, b))

	*now = now.Add(time.Hour)
	got, err := s.AddComment(ctx, b.ID, "Reproduced on main")
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)

	c := got.Comments[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, b.ID, c.BugID)
	assert.Equal(t, "u-alice", c.AuthorID, "defaults to the first user")
	assert.Equal(t, "Reproduced on main", c.Content)
	assert.Equal(t, *now, c.CreatedAt)
	assert.Equal(t, c.CreatedAt, got.UpdatedAt)

	// Append-only: earlier comments keep their position
	*now = now.Add(time.Hour)
	require.NoError(t, s.SetCurrentUser(ctx, "u-bob"))
	got, err = s.AddComment(ctx, b.ID, "Looks fixed")
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "Reproduced on main", got.Comments[0].Content)
	assert.Equal(t, "Looks fixed", got.Comments[1].Content)
	assert.Equal(t, "u-bob", got.Comments[1].AuthorID)
}

func TestAddComment_EmptyContent(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	b := &models.Bug{Title: "x", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b))

	_, err := s.AddComment(ctx, b.ID, "   ")
	assert.Error(t, err)

	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 0)
}

func TestAddComment_BugNotFound(t *testing.T) {
	s, _ := newSeededMemory(t)

	_, err := s.AddComment(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentUser(t *testing.T) {
	s, _ := newSeededMemory(t)
	ctx := context.Background()

	// Defaults to the first user
	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", u.ID)

	require.NoError(t, s.SetCurrentUser(ctx, "u-bob"))
	u, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-bob", u.ID)

	err = s.SetCurrentUser(ctx, "u-nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentUser_EmptyStore(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithDelay_Waits(t *testing.T) {
	s, _ := newSeededMemory(t, WithDelay(10*time.Millisecond))
	ctx := context.Background()

	start := time.Now()
	b := &models.Bug{Title: "slow", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	require.NoError(t, s.CreateBug(ctx, b))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWithDelay_ContextCanceled(t *testing.T) {
	s, _ := newSeededMemory(t, WithDelay(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &models.Bug{Title: "never lands", Status: models.BugStatusNew, Priority: models.BugPriorityLow, ProjectID: "p-web", ReporterID: "u-alice"}
	err := s.CreateBug(ctx, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	bugs, err := s.ListBugs(context.Background(), BugListFilter{})
	require.NoError(t, err)
	assert.Len(t, bugs, 0)
}
