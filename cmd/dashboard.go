package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mhhussain/bugtrack/internal/dashboard"
	"github.com/mhhussain/bugtrack/internal/models"
	"github.com/mhhussain/bugtrack/internal/output"
	"github.com/mhhussain/bugtrack/internal/store"
)

var dashboardRecent int

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Show the bug dashboard",
	Long: `Show summary metrics over the full bug collection: totals, status and
priority breakdowns, and the most recently updated bugs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboardRun()
	},
}

func init() {
	dashboardCmd.Flags().IntVar(&dashboardRecent, "recent", 5, "How many recently updated bugs to show")
	rootCmd.AddCommand(dashboardCmd)
}

func dashboardRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	bugs, err := s.ListBugs(ctx, store.BugListFilter{})
	if err != nil {
		return err
	}

	m := dashboard.Compute(bugs)

	fmt.Fprintf(ui.Out, "Bugs: %d total  %s open  %s resolved  %s critical\n\n",
		m.TotalBugs,
		output.Yellow(fmt.Sprintf("%d", m.OpenBugs)),
		output.Green(fmt.Sprintf("%d", m.ResolvedBugs)),
		output.Red(fmt.Sprintf("%d", m.CriticalBugs)),
	)

	table := ui.Table([]string{"Status", "Count", "", "Priority", "Count"})
	statuses := models.Statuses()
	priorities := models.Priorities()
	rows := len(statuses)
	if len(priorities) > rows {
		rows = len(priorities)
	}
	for i := 0; i < rows; i++ {
		var statusName, statusCount, priorityName, priorityCount string
		if i < len(statuses) {
			statusName = output.StatusColor(string(statuses[i]))
			statusCount = fmt.Sprintf("%d", m.ByStatus[statuses[i]])
		}
		if i < len(priorities) {
			priorityName = output.PriorityColor(string(priorities[i]))
			priorityCount = fmt.Sprintf("%d", m.ByPriority[priorities[i]])
		}
		_ = table.Append([]string{statusName, statusCount, "", priorityName, priorityCount})
	}
	_ = table.Render()

	recent := dashboard.Recent(bugs, dashboardRecent)
	if len(recent) == 0 {
		return nil
	}

	fmt.Fprintf(ui.Out, "\nRecently updated:\n")
	recentTable := ui.Table([]string{"ID", "Title", "Status", "Updated"})
	for _, b := range recent {
		_ = recentTable.Append([]string{
			shortID(b.ID),
			b.Title,
			output.StatusColor(string(b.Status)),
			timeAgo(b.UpdatedAt),
		})
	}
	_ = recentTable.Render()
	return nil
}
