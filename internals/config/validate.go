package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Secrets are checked separately
// by RequireAPIKey and RequireSlack since not every command needs them.
func (c *Config) Validate() error {
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.BaseURL != "" && !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Slack.NotifyChannel != "" && c.Slack.BotToken == "" {
		return fmt.Errorf("slack.notify_channel is set but slack.bot_token is empty")
	}
	return nil
}
