package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/store"
)

var initNameFlag string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace with example documents",
	Long: `Create the database (if needed) and seed a workspace with an
example request and environment.

Examples:
  quiver init
  quiver init --name "Payments API"`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().StringVar(&initNameFlag, "name", "My Workspace", "Name for the new workspace")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	ws := &store.Workspace{Meta: store.Meta{Type: store.TypeWorkspace}, Name: initNameFlag}
	if err := st.Create(ctx, ws); err != nil {
		return err
	}

	env := &store.Environment{
		Meta:      store.Meta{Type: store.TypeEnvironment, ParentID: ws.ID},
		Name:      "dev",
		Variables: map[string]string{"base": "http://localhost:3000"},
	}
	if err := st.Create(ctx, env); err != nil {
		return err
	}

	jar := &store.CookieJar{Meta: store.Meta{Type: store.TypeCookieJar, ParentID: ws.ID}, Name: "Default Jar"}
	if err := st.Create(ctx, jar); err != nil {
		return err
	}

	req := &store.Request{
		Meta:        store.Meta{Type: store.TypeRequest, ParentID: ws.ID},
		Name:        "example",
		Method:      "GET",
		URL:         "{{ base }}/",
		CookieJarID: jar.ID,
	}
	if err := st.Create(ctx, req); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created workspace %q (%s)\n", ws.Name, ws.ID)
	fmt.Fprintf(out, "  environment %q (%s)\n", env.Name, env.ID)
	fmt.Fprintf(out, "  request %q (%s)\n", req.Name, req.ID)
	fmt.Fprintf(out, "\nTry: quiver send %s --env dev\n", req.ID)
	return nil
}
