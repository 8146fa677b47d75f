package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jadenj13/clipper/internals/agent"
	"github.com/jadenj13/clipper/internals/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export ANTHROPIC_API_KEY) before running clipper.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"config file", ctx.configPath},
				{"llm.api_key", mask(cfg.LLM.APIKey)},
				{"llm.base_url", cfg.LLM.BaseURL},
				{"llm.model", cfg.LLM.Model},
				{"llm.max_tokens", fmt.Sprint(cfg.LLM.MaxTokens)},
				{"llm.bypass_proxy", fmt.Sprint(cfg.LLM.BypassProxy)},
				{"paths.workspace_dir", cfg.Paths.WorkspaceDir},
				{"paths.agents_dir", cfg.Paths.AgentsDir},
				{"paths.history_db", cfg.Paths.HistoryDB},
				{"tools.ytdlp", cfg.Tools.YtDlp},
				{"tools.ffmpeg", cfg.Tools.FFmpeg},
				{"tools.ffprobe", cfg.Tools.FFprobe},
				{"tools.asr_command", strings.Join(cfg.Tools.ASRCommand, " ")},
				{"tools.asr_model", cfg.Tools.ASRModel},
				{"slack.bot_token", mask(cfg.Slack.BotToken)},
				{"slack.app_token", mask(cfg.Slack.AppToken)},
				{"slack.notify_channel", cfg.Slack.NotifyChannel},
				{"server.addr", cfg.Server.Addr},
				{"server.secret", mask(cfg.Server.Secret)},
				{"logging.level", cfg.Logging.Level},
				{"logging.format", cfg.Logging.Format},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
}

func newAgentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent prompts available in paths.agents_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names, err := agent.PromptLoader{Dir: cfg.Paths.AgentsDir}.Agents()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No agent prompts in %s\n", cfg.Paths.AgentsDir)
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "…" + secret[len(secret)-4:]
	}
}
