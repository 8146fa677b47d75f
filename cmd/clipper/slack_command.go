package main

import (
	"github.com/spf13/cobra"

	slackfront "github.com/jadenj13/clipper/internals/slack"
)

func newSlackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "slack",
		Short: "Serve requests from Slack mentions and direct messages (Socket Mode)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireSlack(); err != nil {
				return err
			}
			log, err := ctx.logger()
			if err != nil {
				return err
			}
			p, err := ctx.buildWorker(nil)
			if err != nil {
				return err
			}
			defer p.Close()

			handler, err := slackfront.NewHandler(cfg.Slack.BotToken, cfg.Slack.AppToken, ctx.flags.agent, p.worker, log.With("component", "slack"))
			if err != nil {
				return err
			}
			log.Info("slack front end starting", "agent", ctx.flags.agent)
			return handler.Run(cmd.Context())
		},
	}
}
