package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhhussain/bugtrack/internal/output"
	"github.com/mhhussain/bugtrack/internal/store"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect projects",
	Long:  "Projects are seeded at startup; bugs are filed against them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show project details and its bugs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects in the dataset.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Description", "Open", "Total"})
	for _, p := range projects {
		bugs, _ := s.ListBugs(ctx, store.BugListFilter{ProjectID: p.ID})
		open := 0
		for _, b := range bugs {
			if b.Status.Open() {
				open++
			}
		}
		_ = table.Append([]string{
			p.ID,
			output.Cyan(p.Name),
			p.Description,
			fmt.Sprintf("%d", open),
			fmt.Sprintf("%d", len(bugs)),
		})
	}
	_ = table.Render()
	return nil
}

func projectShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(p.ID), p.Name)
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", p.UpdatedAt.Format(time.RFC3339))

	bugs, err := s.ListBugs(ctx, store.BugListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	if len(bugs) == 0 {
		fmt.Fprintln(ui.Out)
		ui.Info("No bugs filed for this project.")
		return nil
	}

	fmt.Fprintf(ui.Out, "\n  Bugs (%d):\n", len(bugs))
	table := ui.Table([]string{"ID", "Title", "Status", "Priority"})
	for _, b := range bugs {
		_ = table.Append([]string{
			shortID(b.ID),
			b.Title,
			output.StatusColor(string(b.Status)),
			output.PriorityColor(string(b.Priority)),
		})
	}
	_ = table.Render()
	return nil
}
