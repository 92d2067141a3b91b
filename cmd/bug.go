package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhhussain/bugtrack/internal/models"
	"github.com/mhhussain/bugtrack/internal/output"
	"github.com/mhhussain/bugtrack/internal/store"
)

var (
	bugTitle      string
	bugDesc       string
	bugSteps      string
	bugPriority   string
	bugStatus     string
	bugProject    string
	bugAssignee   string
	bugUnassign   bool
	bugStatuses   []string
	bugPriorities []string
	bugSearch     string
)

var bugCmd = &cobra.Command{
	Use:   "bug",
	Short: "Manage bugs",
	Long:  "File, list, update, and discuss bugs across projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun()
	},
}

var bugAddCmd = &cobra.Command{
	Use:   "add",
	Short: "File a new bug",
	Long:  "File a new bug. The current user is recorded as the reporter.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugAddRun()
	},
}

var bugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bugs",
	Long:    "List bugs, optionally narrowed by status, priority, assignee, project, or a search term.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun()
	},
}

var bugShowCmd = &cobra.Command{
	Use:   "show <bug-id>",
	Short: "Show bug details and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugShowRun(args[0])
	},
}

var bugUpdateCmd = &cobra.Command{
	Use:   "update <bug-id>",
	Short: "Update a bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugUpdateRun(args[0])
	},
}

var bugCommentCmd = &cobra.Command{
	Use:   "comment <bug-id> <text>",
	Short: "Add a comment to a bug",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugCommentRun(args[0], strings.Join(args[1:], " "))
	},
}

var bugCloseCmd = &cobra.Command{
	Use:   "close <bug-id>",
	Short: "Close a bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugCloseRun(args[0])
	},
}

func init() {
	bugAddCmd.Flags().StringVar(&bugTitle, "title", "", "Bug title (required)")
	bugAddCmd.Flags().StringVar(&bugDesc, "desc", "", "What is going wrong (required)")
	bugAddCmd.Flags().StringVar(&bugProject, "project", "", "Project the bug belongs to (required)")
	bugAddCmd.Flags().StringVar(&bugSteps, "steps", "", "Steps to reproduce")
	bugAddCmd.Flags().StringVar(&bugPriority, "priority", "medium", "Priority: low, medium, high, critical")
	bugAddCmd.Flags().StringVar(&bugAssignee, "assignee", "", "Assignee (user id, name, or email)")
	_ = bugAddCmd.MarkFlagRequired("title")
	_ = bugAddCmd.MarkFlagRequired("desc")
	_ = bugAddCmd.MarkFlagRequired("project")

	bugListCmd.Flags().StringSliceVar(&bugStatuses, "status", nil, "Filter by status (repeatable): new, in-progress, review, resolved, closed")
	bugListCmd.Flags().StringSliceVar(&bugPriorities, "priority", nil, "Filter by priority (repeatable)")
	bugListCmd.Flags().StringVar(&bugAssignee, "assignee", "", "Filter by assignee")
	bugListCmd.Flags().StringVar(&bugProject, "project", "", "Filter by project")
	bugListCmd.Flags().StringVar(&bugSearch, "search", "", "Search in title and description")

	bugUpdateCmd.Flags().StringVar(&bugStatus, "status", "", "New status")
	bugUpdateCmd.Flags().StringVar(&bugPriority, "priority", "", "New priority")
	bugUpdateCmd.Flags().StringVar(&bugTitle, "title", "", "New title")
	bugUpdateCmd.Flags().StringVar(&bugDesc, "desc", "", "New description")
	bugUpdateCmd.Flags().StringVar(&bugSteps, "steps", "", "New reproduction steps")
	bugUpdateCmd.Flags().StringVar(&bugProject, "project", "", "Move to another project")
	bugUpdateCmd.Flags().StringVar(&bugAssignee, "assignee", "", "New assignee (user id, name, or email)")
	bugUpdateCmd.Flags().BoolVar(&bugUnassign, "unassign", false, "Clear the assignee")

	bugCmd.AddCommand(bugAddCmd)
	bugCmd.AddCommand(bugListCmd)
	bugCmd.AddCommand(bugShowCmd)
	bugCmd.AddCommand(bugUpdateCmd)
	bugCmd.AddCommand(bugCommentCmd)
	bugCmd.AddCommand(bugCloseCmd)
	rootCmd.AddCommand(bugCmd)
}

func bugAddRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if strings.TrimSpace(bugTitle) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(bugDesc) == "" {
		return fmt.Errorf("description must not be empty")
	}

	priority := models.BugPriority(bugPriority)
	if !models.ValidPriority(priority) {
		return fmt.Errorf("unknown priority: %s", bugPriority)
	}

	p, err := resolveProject(ctx, s, bugProject)
	if err != nil {
		return err
	}

	reporter, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}

	var assigneeID string
	if bugAssignee != "" {
		u, err := resolveUser(ctx, s, bugAssignee)
		if err != nil {
			return err
		}
		assigneeID = u.ID
	}

	bug := &models.Bug{
		Title:       bugTitle,
		Description: bugDesc,
		Steps:       bugSteps,
		Status:      models.BugStatusNew,
		Priority:    priority,
		ProjectID:   p.ID,
		ReporterID:  reporter.ID,
		AssigneeID:  assigneeID,
	}

	if dryRun {
		ui.DryRunMsg("Would file bug: %s [%s] in %s", bugTitle, priority, p.Name)
		return nil
	}

	if err := s.CreateBug(ctx, bug); err != nil {
		return fmt.Errorf("create bug: %w", err)
	}

	ui.Success("Filed bug %s: %s", output.Cyan(shortID(bug.ID)), bug.Title)
	return nil
}

func bugListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.BugListFilter{Search: bugSearch}

	for _, raw := range bugStatuses {
		st := models.BugStatus(raw)
		if !models.ValidStatus(st) {
			return fmt.Errorf("unknown status: %s", raw)
		}
		filter.Status = append(filter.Status, st)
	}
	for _, raw := range bugPriorities {
		p := models.BugPriority(raw)
		if !models.ValidPriority(p) {
			return fmt.Errorf("unknown priority: %s", raw)
		}
		filter.Priority = append(filter.Priority, p)
	}
	if bugAssignee != "" {
		u, err := resolveUser(ctx, s, bugAssignee)
		if err != nil {
			return err
		}
		filter.AssigneeID = u.ID
	}
	if bugProject != "" {
		p, err := resolveProject(ctx, s, bugProject)
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}

	bugs, err := s.ListBugs(ctx, filter)
	if err != nil {
		return err
	}

	if len(bugs) == 0 {
		ui.Info("No bugs found.")
		return nil
	}

	projectNames := make(map[string]string)
	userNames := make(map[string]string)

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Project", "Assignee", "Updated"})
	for _, bug := range bugs {
		_ = table.Append([]string{
			shortID(bug.ID),
			bug.Title,
			output.StatusColor(string(bug.Status)),
			output.PriorityColor(string(bug.Priority)),
			lookupProjectName(ctx, s, projectNames, bug.ProjectID),
			lookupUserName(ctx, s, userNames, bug.AssigneeID),
			timeAgo(bug.UpdatedAt),
		})
	}
	_ = table.Render()
	return nil
}

func bugShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	bug, err := findBug(ctx, s, id)
	if err != nil {
		return err
	}

	projectNames := make(map[string]string)
	userNames := make(map[string]string)

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(bug.ID)), bug.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(bug.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(bug.Priority)))
	fmt.Fprintf(ui.Out, "  Project:    %s\n", lookupProjectName(ctx, s, projectNames, bug.ProjectID))
	fmt.Fprintf(ui.Out, "  Reporter:   %s\n", lookupUserName(ctx, s, userNames, bug.ReporterID))
	fmt.Fprintf(ui.Out, "  Assignee:   %s\n", lookupUserName(ctx, s, userNames, bug.AssigneeID))
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", bug.Description)
	if bug.Steps != "" {
		fmt.Fprintf(ui.Out, "  Steps:      %s\n", strings.ReplaceAll(bug.Steps, "\n", "\n              "))
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", bug.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", bug.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", bug.ID)

	if len(bug.Comments) > 0 {
		fmt.Fprintf(ui.Out, "\n  Comments (%d):\n", len(bug.Comments))
		for _, c := range bug.Comments {
			author := lookupUserName(ctx, s, userNames, c.AuthorID)
			fmt.Fprintf(ui.Out, "  %s %s  %s\n", output.Yellow(author), c.CreatedAt.Format("2006-01-02 15:04"), c.Content)
		}
	}
	return nil
}

func bugUpdateRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	bug, err := findBug(ctx, s, id)
	if err != nil {
		return err
	}

	var patch store.BugPatch
	if bugStatus != "" {
		st := models.BugStatus(bugStatus)
		if !models.ValidStatus(st) {
			return fmt.Errorf("unknown status: %s", bugStatus)
		}
		patch.Status = &st
	}
	if bugPriority != "" {
		p := models.BugPriority(bugPriority)
		if !models.ValidPriority(p) {
			return fmt.Errorf("unknown priority: %s", bugPriority)
		}
		patch.Priority = &p
	}
	if bugTitle != "" {
		patch.Title = &bugTitle
	}
	if bugDesc != "" {
		patch.Description = &bugDesc
	}
	if bugSteps != "" {
		patch.Steps = &bugSteps
	}
	if bugProject != "" {
		p, err := resolveProject(ctx, s, bugProject)
		if err != nil {
			return err
		}
		patch.ProjectID = &p.ID
	}
	switch {
	case bugUnassign:
		patch.Unassign = true
	case bugAssignee != "":
		u, err := resolveUser(ctx, s, bugAssignee)
		if err != nil {
			return err
		}
		patch.AssigneeID = &u.ID
	}

	if patch == (store.BugPatch{}) {
		return fmt.Errorf("no updates specified (use --status, --priority, --title, --desc, --steps, --project, --assignee, or --unassign)")
	}

	if dryRun {
		ui.DryRunMsg("Would update bug %s", shortID(bug.ID))
		return nil
	}

	if _, err := s.UpdateBug(ctx, bug.ID, patch); err != nil {
		return fmt.Errorf("update bug: %w", err)
	}

	ui.Success("Updated bug %s", output.Cyan(shortID(bug.ID)))
	return nil
}

func bugCommentRun(id, content string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("comment must not be empty")
	}

	bug, err := findBug(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would comment on bug %s", shortID(bug.ID))
		return nil
	}

	updated, err := s.AddComment(ctx, bug.ID, content)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	ui.Success("Commented on bug %s (%d comments)", output.Cyan(shortID(updated.ID)), len(updated.Comments))
	return nil
}

func bugCloseRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	bug, err := findBug(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would close bug %s: %s", shortID(bug.ID), bug.Title)
		return nil
	}

	closed := models.BugStatusClosed
	if _, err := s.UpdateBug(ctx, bug.ID, store.BugPatch{Status: &closed}); err != nil {
		return fmt.Errorf("close bug: %w", err)
	}

	ui.Success("Closed bug %s: %s", output.Cyan(shortID(bug.ID)), bug.Title)
	return nil
}

// findBug finds a bug by full ID or prefix match.
func findBug(ctx context.Context, s store.Store, id string) (*models.Bug, error) {
	// Try exact match first
	if bug, err := s.GetBug(ctx, id); err == nil {
		return bug, nil
	}

	bugs, err := s.ListBugs(ctx, store.BugListFilter{})
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(id)
	var matches []*models.Bug
	for _, bug := range bugs {
		if strings.HasPrefix(bug.ID, upper) {
			matches = append(matches, bug)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("bug not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous bug ID %s: matches %d bugs", id, len(matches))
	}
}

// resolveProject resolves a project by id or (case-insensitive) name.
func resolveProject(ctx context.Context, s store.Store, ref string) (*models.Project, error) {
	if p, err := s.GetProject(ctx, ref); err == nil {
		return p, nil
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %s", ref)
}

// resolveUser resolves a user by id, email, or (case-insensitive) name.
func resolveUser(ctx context.Context, s store.Store, ref string) (*models.User, error) {
	if u, err := s.GetUser(ctx, ref); err == nil {
		return u, nil
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, ref) || strings.EqualFold(u.Name, ref) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", ref)
}

// lookupProjectName resolves and caches a project name for display.
func lookupProjectName(ctx context.Context, s store.Store, cache map[string]string, id string) string {
	if id == "" {
		return "-"
	}
	if name, ok := cache[id]; ok {
		return name
	}
	name := id
	if p, err := s.GetProject(ctx, id); err == nil {
		name = p.Name
	}
	cache[id] = name
	return name
}

// lookupUserName resolves and caches a user name for display.
func lookupUserName(ctx context.Context, s store.Store, cache map[string]string, id string) string {
	if id == "" {
		return "-"
	}
	if name, ok := cache[id]; ok {
		return name
	}
	name := id
	if u, err := s.GetUser(ctx, id); err == nil {
		name = u.Name
	}
	cache[id] = name
	return name
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// timeAgo formats a timestamp as a rough relative duration.
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
