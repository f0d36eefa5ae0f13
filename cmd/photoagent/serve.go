package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"photoagent/internal/bootstrap"
	"photoagent/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr   string
		resume bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := opts.load(false)
			if err != nil {
				return err
			}
			defer closer.Close()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx := cmd.Context()
			app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Resume: resume})
			if err != nil {
				return err
			}
			defer app.Close()

			log.Info().
				Str("library", app.Root.Root()).
				Str("planner", cfg.Planner.Mode).
				Str("conversation_id", app.Session.ConversationID()).
				Msg("photoagent serving")
			srv := server.New(ctx, server.Options{
				Session:  app.Session,
				Consent:  app.Broker,
				Photos:   app.Store,
				Gatherer: prometheus.DefaultGatherer,
				Config:   cfg.Server,
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the most recent conversation")
	return cmd
}
