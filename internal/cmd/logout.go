package cmd

import (
	"github.com/spf13/cobra"

	"github.com/boozedog/loginflow/internal/login"
)

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.openEnv(cmd, "")
			if err != nil {
				return err
			}
			defer env.release()

			win, err := newConsole(cmd.OutOrStdout(), env.pageURL("/"))
			if err != nil {
				return err
			}
			h := login.New(login.OptionsFromConfig(env.cfg), env.client, env.tokens, win, env.log)
			if err := h.Logout(cmd.Context()); err != nil {
				env.record(cmd.Context(), "logout", "/", string(login.OutcomeSessionFailed))
				return err
			}
			env.record(cmd.Context(), "logout", "/", string(login.OutcomeSuccess))
			return nil
		},
	}
}
