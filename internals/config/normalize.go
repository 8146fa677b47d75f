package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/jadenj13/clipper/internals/llm"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTools()
	if c.Server.Addr = strings.TrimSpace(c.Server.Addr); c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	c.normalizeLogging()
	return nil
}

// applyEnv lets the usual environment variables fill in secrets the file
// leaves empty.
func (c *Config) applyEnv() {
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		if value, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(value)
		}
	}
	fill(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	fill(&c.LLM.BaseURL, "ANTHROPIC_BASE_URL")
	fill(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	fill(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	fill(&c.Slack.NotifyChannel, "SLACK_NOTIFY_CHANNEL")
	fill(&c.Server.Secret, "CLIPPER_WEBHOOK_SECRET")
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AgentsDir) == "" {
		c.Paths.AgentsDir = defaultAgentsDir
	}
	if c.Paths.AgentsDir, err = expandPath(c.Paths.AgentsDir); err != nil {
		return fmt.Errorf("paths.agents_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.Model = strings.TrimSpace(c.LLM.Model); c.LLM.Model == "" {
		c.LLM.Model = llm.DefaultModel
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = llm.DefaultMaxTokens
	}
}

func (c *Config) normalizeTools() {
	defaults := Default().Tools
	trimOr := func(value, fallback string) string {
		if value = strings.TrimSpace(value); value == "" {
			return fallback
		}
		return value
	}
	c.Tools.YtDlp = trimOr(c.Tools.YtDlp, defaults.YtDlp)
	c.Tools.FFmpeg = trimOr(c.Tools.FFmpeg, defaults.FFmpeg)
	c.Tools.FFprobe = trimOr(c.Tools.FFprobe, defaults.FFprobe)
	c.Tools.ASRModel = trimOr(c.Tools.ASRModel, defaults.ASRModel)

	command := make([]string, 0, len(c.Tools.ASRCommand))
	for _, part := range c.Tools.ASRCommand {
		if part = strings.TrimSpace(part); part != "" {
			command = append(command, part)
		}
	}
	if len(command) == 0 {
		command = defaults.ASRCommand
	}
	c.Tools.ASRCommand = command
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
