package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boozedog/loginflow/internal/guard"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var siteID string
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Run the route guard once for a path",
		Long: `Run the route guard once for path with the stored token. Exits non-zero
unless the page may stay visible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.openEnv(cmd, siteID)
			if err != nil {
				return err
			}
			defer env.release()

			win, err := newConsole(cmd.OutOrStdout(), env.pageURL(args[0]))
			if err != nil {
				return err
			}
			g := guard.New(guard.OptionsFromConfig(env.cfg), env.client, env.tokens, win, env.log)
			g.OnDecision(func(path string, d guard.Decision) {
				env.record(cmd.Context(), "guard", path, string(d))
			})

			d := g.Check(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "decision: %s\n", d)
			switch d {
			case guard.DecisionAllow, guard.DecisionLoginPage, guard.DecisionRedirectRoot:
				return nil
			default:
				return fmt.Errorf("route %s not allowed: %s", args[0], d)
			}
		},
	}
	cmd.Flags().StringVar(&siteID, "site-id", "", "override site.id")
	return cmd
}
