package config

import (
	"github.com/jadenj13/clipper/internals/asr"
	"github.com/jadenj13/clipper/internals/ffmpeg"
	"github.com/jadenj13/clipper/internals/ffprobe"
	"github.com/jadenj13/clipper/internals/llm"
	"github.com/jadenj13/clipper/internals/ytdlp"
)

const (
	defaultWorkspaceDir = "workspace"
	defaultAgentsDir    = "agents/video_ops"
	defaultHistoryDB    = "~/.local/share/clipper/history.db"
	defaultServerAddr   = "127.0.0.1:8765"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LLM: LLM{
			Model:       llm.DefaultModel,
			MaxTokens:   llm.DefaultMaxTokens,
			BypassProxy: true,
		},
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			AgentsDir:    defaultAgentsDir,
			HistoryDB:    defaultHistoryDB,
		},
		Tools: Tools{
			YtDlp:      ytdlp.DefaultBinary,
			FFmpeg:     ffmpeg.DefaultBinary,
			FFprobe:    ffprobe.DefaultBinary,
			ASRCommand: append([]string(nil), asr.DefaultCommand...),
			ASRModel:   asr.DefaultModel,
		},
		Server: Server{
			Addr: defaultServerAddr,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
