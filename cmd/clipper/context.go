package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/jadenj13/clipper/internals/agent"
	"github.com/jadenj13/clipper/internals/asr"
	"github.com/jadenj13/clipper/internals/config"
	"github.com/jadenj13/clipper/internals/ffmpeg"
	"github.com/jadenj13/clipper/internals/ffprobe"
	"github.com/jadenj13/clipper/internals/history"
	"github.com/jadenj13/clipper/internals/llm"
	"github.com/jadenj13/clipper/internals/logging"
	"github.com/jadenj13/clipper/internals/proc"
	slacknotify "github.com/jadenj13/clipper/internals/slack"
	"github.com/jadenj13/clipper/internals/tools"
	"github.com/jadenj13/clipper/internals/workspace"
	"github.com/jadenj13/clipper/internals/ytdlp"
)

type rootFlags struct {
	configPath string
	agent      string
	logLevel   string
	envFile    string
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logOnce sync.Once
	log     *slog.Logger
	logErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = level
		}
		c.config, c.configPath = cfg, path
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}
		c.log, c.logErr = logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	})
	return c.log, c.logErr
}

// buildExecutor wires the video tools against the configured binaries and
// workspace.
func (c *commandContext) buildExecutor() (*tools.Executor, *workspace.Workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := c.logger()
	if err != nil {
		return nil, nil, err
	}
	ws, err := workspace.Open(cfg.Paths.WorkspaceDir)
	if err != nil {
		return nil, nil, err
	}

	runner := proc.Local{}
	deps := tools.VideoDeps{
		Downloader:  ytdlp.New(cfg.Tools.YtDlp, ws.Dir(), runner, logging.NewComponentLogger(log, "ytdlp")),
		Encoder:     ffmpeg.New(cfg.Tools.FFmpeg, runner, logging.NewComponentLogger(log, "ffmpeg")),
		Transcriber: asr.New(cfg.Tools.ASRCommand, runner, logging.NewComponentLogger(log, "asr"), asr.WithModel(cfg.Tools.ASRModel)),
		Prober:      ffprobe.New(cfg.Tools.FFprobe, runner),
	}
	registry, err := tools.NewRegistry(tools.VideoDefinitions(deps)...)
	if err != nil {
		return nil, nil, err
	}
	return tools.NewExecutor(registry, logging.NewComponentLogger(log, "tools")), ws, nil
}

func (c *commandContext) buildLLM() (*llm.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	opts := []llm.Option{
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithBaseURL(cfg.LLM.BaseURL),
	}
	if cfg.LLM.BypassProxy {
		opts = append(opts, llm.WithDirectTransport())
	}
	return llm.NewClient(cfg.LLM.APIKey, opts...), nil
}

type pipeline struct {
	worker *agent.Worker
	store  *history.Store
}

func (p *pipeline) Close() error { return p.store.Close() }

// buildWorker assembles the full request pipeline. Close releases the history
// store.
func (c *commandContext) buildWorker(observer agent.Observer) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log, err := c.logger()
	if err != nil {
		return nil, err
	}
	client, err := c.buildLLM()
	if err != nil {
		return nil, err
	}
	executor, ws, err := c.buildExecutor()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return nil, err
	}

	var notifier agent.Notifier
	if cfg.Slack.NotifyChannel != "" {
		notifier = slacknotify.NewNotifier(cfg.Slack.BotToken, cfg.Slack.NotifyChannel)
	}

	a := agent.New(client, executor, agent.PromptLoader{Dir: cfg.Paths.AgentsDir},
		logging.NewComponentLogger(log, "agent"), agent.WithObserver(observer))
	worker := agent.NewWorker(a, ws, store, notifier, logging.NewComponentLogger(log, "worker"))

	log.Debug("clipper ready", "config", c.configPath, "model", client.Model(), "workspace", ws.Dir())
	return &pipeline{worker: worker, store: store}, nil
}

func loadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	// Load never overrides variables already set in the environment.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
