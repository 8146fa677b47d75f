package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// LLM holds the hosted model connection settings.
type LLM struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	MaxTokens   int64  `toml:"max_tokens"`
	BypassProxy bool   `toml:"bypass_proxy"`
}

// Paths holds the directories clipper reads from and writes to.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	AgentsDir    string `toml:"agents_dir"`
	HistoryDB    string `toml:"history_db"`
}

// Tools names the external programs the video tools drive.
type Tools struct {
	YtDlp      string   `toml:"ytdlp"`
	FFmpeg     string   `toml:"ffmpeg"`
	FFprobe    string   `toml:"ffprobe"`
	ASRCommand []string `toml:"asr_command"`
	ASRModel   string   `toml:"asr_model"`
}

type Slack struct {
	BotToken      string `toml:"bot_token"`
	AppToken      string `toml:"app_token"`
	NotifyChannel string `toml:"notify_channel"`
}

// Server configures the HTTP request endpoint started by "clipper serve".
type Server struct {
	Addr   string `toml:"addr"`
	Secret string `toml:"secret"` // HMAC-SHA256 key for request signatures; empty disables checks
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full clipper configuration.
type Config struct {
	LLM     LLM     `toml:"llm"`
	Paths   Paths   `toml:"paths"`
	Tools   Tools   `toml:"tools"`
	Slack   Slack   `toml:"slack"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipper/config.toml")
}

// Load reads the config at path (or the default locations when path is empty),
// applies defaults and environment overrides, and validates the result. It also
// reports the resolved path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{projectPath, defaultPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// CreateSample writes the annotated sample configuration to path. It refuses
// to overwrite an existing file.
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// RequireAPIKey reports whether the model API can be reached at all.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("no API key: set llm.api_key or ANTHROPIC_API_KEY")
	}
	return nil
}

// RequireSlack reports whether the Socket Mode front end can start.
func (c *Config) RequireSlack() error {
	if c.Slack.BotToken == "" || c.Slack.AppToken == "" {
		return errors.New("slack needs slack.bot_token and slack.app_token (or SLACK_BOT_TOKEN and SLACK_APP_TOKEN)")
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
