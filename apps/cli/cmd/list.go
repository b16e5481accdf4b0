package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces and their requests",
	Long: `List every workspace in the database with its requests.

Examples:
  quiver list
  quiver list --db team.db`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	workspaces, err := st.ListWorkspaces(ctx)
	if err != nil {
		return err
	}
	if len(workspaces) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No workspaces. Run 'quiver init' to create one.")
		return nil
	}

	formatter := output.NewConsoleFormatter(output.WithWriter(cmd.OutOrStdout()))
	for _, ws := range workspaces {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s)\n", ws.Name, ws.ID)
		requests, err := st.ListRequests(ctx, ws.ID)
		if err != nil {
			return err
		}
		formatter.FormatRequestList(requests)
	}
	return nil
}
