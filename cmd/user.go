package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mhhussain/bugtrack/internal/output"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Inspect users",
	Long:  "Users are seeded at startup; the first seed user acts as the current user unless overridden in config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun()
	},
}

func init() {
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func userListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	current, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"ID", "Name", "Email", "Role", ""})
	for _, u := range users {
		marker := ""
		if u.ID == current.ID {
			marker = output.Green("current")
		}
		_ = table.Append([]string{
			u.ID,
			output.Cyan(u.Name),
			u.Email,
			string(u.Role),
			marker,
		})
	}
	_ = table.Render()
	return nil
}
