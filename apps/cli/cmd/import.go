package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/export"
	"github.com/quiverhq/quiver/packages/import/curl"
	"github.com/quiverhq/quiver/packages/store"
)

var importCurlFlag string

var importCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Load a workspace from YAML or a request from a curl command",
	Long: `Import documents into the database.

With a file argument, the file is read as a workspace export. With
--curl, the command line is parsed into a single request.

Examples:
  quiver import payments.yaml
  quiver import --curl "curl -X POST https://api.test/users -d '{}'"`,
	Args: cobra.MaximumNArgs(1),
	RunE: importCommand,
}

func init() {
	importCmd.Flags().StringVar(&importCurlFlag, "curl", "", "Import a curl command as a request")
}

func importCommand(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if (len(args) == 0) == (importCurlFlag == "") {
		return fmt.Errorf("provide either a YAML file or --curl")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if importCurlFlag != "" {
		req, err := curl.Parse(importCurlFlag)
		if err != nil {
			return fmt.Errorf("failed to parse curl command: %w", err)
		}
		ws, err := defaultWorkspace(cmd, st)
		if err != nil {
			return err
		}
		req.ParentID = ws.ID
		if err := st.Create(ctx, req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported request %q (%s) into %q\n", req.Name, req.ID, ws.Name)
		return nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ws, err := export.Import(ctx, st, f)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported workspace %q (%s)\n", ws.Name, ws.ID)
	return nil
}

// defaultWorkspace returns the first workspace, creating one when the
// database is empty.
func defaultWorkspace(cmd *cobra.Command, st *store.Store) (*store.Workspace, error) {
	workspaces, err := st.ListWorkspaces(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(workspaces) > 0 {
		return workspaces[0], nil
	}
	ws := &store.Workspace{Meta: store.Meta{Type: store.TypeWorkspace}, Name: "Imported"}
	if err := st.Create(cmd.Context(), ws); err != nil {
		return nil, err
	}
	return ws, nil
}
