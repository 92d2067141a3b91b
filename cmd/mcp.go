package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mhhussain/bugtrack/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients drive the bug tracker natively. Configure with:

  {
    "mcpServers": {
      "bugtrack": { "command": "bt", "args": ["mcp"] }
    }
  }

Available tools: bugtrack_list_bugs, bugtrack_get_bug, bugtrack_create_bug,
bugtrack_update_bug, bugtrack_add_comment, bugtrack_list_projects,
bugtrack_list_users, bugtrack_dashboard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(s)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
