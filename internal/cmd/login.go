package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boozedog/loginflow/internal/login"
	"github.com/boozedog/loginflow/internal/page"
)

func newLoginCmd(root *rootOptions) *cobra.Command {
	var email, password, from, siteID string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the backend and store the token",
		Long: `Log in with an email and password the way the site's login button does.
The password may also come from LOGINFLOW_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.openEnv(cmd, siteID)
			if err != nil {
				return err
			}
			defer env.release()

			if password == "" {
				password = os.Getenv("LOGINFLOW_PASSWORD")
			}
			if from == "" {
				from = env.cfg.Login.Path
			}
			win, err := newConsole(cmd.OutOrStdout(), env.pageURL(from))
			if err != nil {
				return err
			}

			h := login.New(login.OptionsFromConfig(env.cfg), env.client, env.tokens, win, env.log)
			fields := page.FieldMap{
				env.cfg.Login.EmailMarker:    email,
				env.cfg.Login.PasswordMarker: password,
			}
			path := page.Path(win.Location())
			outcome := h.Submit(cmd.Context(), nil, win, fields)
			env.record(cmd.Context(), "login", path, string(outcome))
			if outcome != login.OutcomeSuccess {
				return fmt.Errorf("login %s: %s", outcome, win.lastAlert())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&from, "from", "", "page the login starts from, e.g. /login?redirect=/members (default login.path)")
	cmd.Flags().StringVar(&siteID, "site-id", "", "override site.id")
	return cmd
}
