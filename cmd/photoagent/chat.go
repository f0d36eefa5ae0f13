package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"photoagent/internal/bootstrap"
	"photoagent/internal/i18n"
	"photoagent/internal/repl"
	"photoagent/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		useTUI bool
		resume bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := opts.load(true)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Resume: resume})
			if err != nil {
				return err
			}
			defer app.Close()

			if useTUI {
				return tui.Run(ctx, app.Session, app.Broker, tui.Info{
					Library: app.Root.Root(),
					Planner: cfg.Planner.Mode,
					Session: app.Session.ConversationID(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, i18n.T("startup.welcome", app.Root.Root()))
			fmt.Fprintln(out, i18n.T("startup.planner", cfg.Planner.Mode))
			if app.Resumed {
				fmt.Fprintln(out, i18n.T("session.resumed", app.Session.ConversationID(), app.State.Len()))
			} else {
				fmt.Fprintln(out, i18n.T("session.new", app.Session.ConversationID()))
			}
			in := repl.NewLineInput(filepath.Join(cfg.Storage.BaseDir, "repl.history"))
			return repl.NewLoop(app.Session, app.Broker, in, out).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Use the full-screen interface")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the most recent conversation")
	return cmd
}
