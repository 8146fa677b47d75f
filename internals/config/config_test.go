package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "SLACK_BOT_TOKEN", "SLACK_APP_TOKEN", "SLACK_NOTIFY_CHANNEL", "CLIPPER_WEBHOOK_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, path, exists, err := Load(filepath.Join(dir, "none.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists || path != filepath.Join(dir, "none.toml") {
		t.Fatalf("unexpected resolution %s %v", path, exists)
	}
	if !cfg.LLM.BypassProxy || cfg.LLM.MaxTokens != 4096 || cfg.LLM.Model == "" {
		t.Fatalf("unexpected llm defaults %+v", cfg.LLM)
	}
	if !filepath.IsAbs(cfg.Paths.WorkspaceDir) || !strings.HasSuffix(cfg.Paths.WorkspaceDir, "workspace") {
		t.Fatalf("workspace not expanded: %s", cfg.Paths.WorkspaceDir)
	}
	if !slices.Equal(cfg.Tools.ASRCommand, []string{"asr_cli"}) {
		t.Fatalf("unexpected asr command %v", cfg.Tools.ASRCommand)
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Fatal("expected missing API key")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", " sk-env ")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := filepath.Join(t.TempDir(), "clipper.toml")
	body := `
[llm]
model = "claude-test"
bypass_proxy = false
base_url = "https://proxy.example.com/"

[paths]
workspace_dir = "~/clips"

[tools]
asr_command = ["python3", " scripts/asr_cli.py ", ""]

[slack]
bot_token = "xoxb-file"

[logging]
level = "DEBUG"
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to exist")
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Fatalf("env api key not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.Slack.BotToken != "xoxb-file" {
		t.Fatalf("file value must win over env, got %q", cfg.Slack.BotToken)
	}
	if cfg.LLM.BypassProxy || cfg.LLM.Model != "claude-test" || cfg.LLM.BaseURL != "https://proxy.example.com" {
		t.Fatalf("unexpected llm %+v", cfg.LLM)
	}
	if cfg.Paths.WorkspaceDir != filepath.Join(home, "clips") {
		t.Fatalf("unexpected workspace %s", cfg.Paths.WorkspaceDir)
	}
	if !slices.Equal(cfg.Tools.ASRCommand, []string{"python3", "scripts/asr_cli.py"}) {
		t.Fatalf("unexpected asr command %v", cfg.Tools.ASRCommand)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"unknown key":           "[llm]\nmodle = \"x\"\n",
		"bad level":             "[logging]\nlevel = \"loud\"\n",
		"bad url":               "[llm]\nbase_url = \"ftp://x\"\n",
		"orphan notify channel": "[slack]\nnotify_channel = \"C123\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clipper.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, _, _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "clipper.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	cfg, _, exists, err := Load(path)
	if err != nil || !exists {
		t.Fatalf("load sample: %v", err)
	}
	def := Default()
	if cfg.LLM.Model != def.LLM.Model || cfg.Tools.ASRModel != def.Tools.ASRModel {
		t.Fatalf("sample drifted from defaults: %+v", cfg)
	}
}

func TestServerDefaultsAndSecretFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLIPPER_WEBHOOK_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "clipper.toml")
	if err := os.WriteFile(path, []byte("[server]\naddr = \"  \"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8765" || cfg.Server.Secret != "from-env" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
}
