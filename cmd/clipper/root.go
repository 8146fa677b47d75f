package main

import (
	"strings"

	"github.com/spf13/cobra"
)

const defaultAgent = "director"

func newRootCommand() *cobra.Command {
	var flags rootFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:   "clipper [request...]",
		Short: "Turn a plain-language request into a finished, subtitled video",
		Long: `clipper hands your request to a model that searches, downloads, transcribes
and renders video by calling yt-dlp, ffmpeg and a speech recognition CLI.

With arguments the request runs once. Without arguments clipper reads requests
interactively until "exit", "quit", "q" or end of input.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(flags.envFile); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.buildWorker(newProgressPrinter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer p.Close()

			handle := func(request string) (string, error) {
				return p.worker.Handle(cmd.Context(), flags.agent, request)
			}
			if len(args) > 0 {
				return runOnce(cmd.OutOrStdout(), strings.Join(args, " "), handle)
			}
			return runInteractive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), handle)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	pf.StringVarP(&flags.agent, "agent", "a", defaultAgent, "Agent prompt to run")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before configuration")

	rootCmd.AddCommand(newToolsCommand(ctx))
	rootCmd.AddCommand(newExecCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newSlackCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newAgentsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
