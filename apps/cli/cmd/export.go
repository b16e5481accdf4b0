package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/export"
)

var exportOutputFlag string

var exportCmd = &cobra.Command{
	Use:   "export <workspace id>",
	Short: "Write a workspace to YAML",
	Long: `Write a workspace, its environments and its requests to a YAML
document. Captured responses and cookie jars stay local.

Examples:
  quiver export wrk_1a2b3c
  quiver export wrk_1a2b3c -o payments.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: exportCommand,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputFlag, "output", "o", "", "Write to file (default: stdout)")
}

func exportCommand(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	w := cmd.OutOrStdout()
	if exportOutputFlag != "" {
		f, err := os.Create(exportOutputFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := export.Workspace(cmd.Context(), st, args[0], w); err != nil {
		return err
	}
	if exportOutputFlag != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", exportOutputFlag)
	}
	return nil
}
