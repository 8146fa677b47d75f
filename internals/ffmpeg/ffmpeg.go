package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/proc"
)

const (
	DefaultBinary = "ffmpeg"

	// SubtitleStyle is the fixed ASS force_style used for burned-in subtitles.
	SubtitleStyle    = "Fontname=SimHei,FontSize=24,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2"
	BGMVolume        = 0.1
	SpeechSampleRate = 16000
	DefaultThumbAt   = "00:00:05"

	extractTimeout   = 5 * time.Minute
	renderTimeout    = 30 * time.Minute
	thumbnailTimeout = time.Minute
)

type Encoder struct {
	binary string
	runner proc.Runner
	log    *slog.Logger
}

func New(binary string, runner proc.Runner, log *slog.Logger) *Encoder {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = proc.Local{}
	}
	return &Encoder{binary: binary, runner: runner, log: log}
}

// ExtractAudio writes a mono 16 kHz PCM WAV next to the video and returns its path.
func (e *Encoder) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if err := requireFile("video", videoPath); err != nil {
		return "", err
	}
	out := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".wav"
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SpeechSampleRate),
		"-ac", "1",
		out,
	}
	if _, err := e.runner.Run(ctx, proc.Cmd{Name: e.binary, Args: args, Timeout: extractTimeout}); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	e.log.Info("audio extracted", "video", videoPath, "audio", out)
	return out, nil
}

type RenderRequest struct {
	VideoPath  string
	SRTPath    string
	BGMPath    string // optional
	OutputPath string // defaults to <video base>_final.mp4
}

// Render burns the subtitles into the video and, when a BGM track is given,
// loops it under the original audio. Returns the output path.
func (e *Encoder) Render(ctx context.Context, req RenderRequest) (string, error) {
	if err := requireFile("video", req.VideoPath); err != nil {
		return "", err
	}
	if err := requireFile("subtitle", req.SRTPath); err != nil {
		return "", err
	}
	if req.BGMPath != "" {
		if err := requireFile("bgm", req.BGMPath); err != nil {
			return "", err
		}
	}
	if req.OutputPath == "" {
		req.OutputPath = strings.TrimSuffix(req.VideoPath, filepath.Ext(req.VideoPath)) + "_final.mp4"
	}

	e.log.Info("render started", "video", req.VideoPath, "output", req.OutputPath, "bgm", req.BGMPath != "")
	start := time.Now()
	if _, err := e.runner.Run(ctx, proc.Cmd{Name: e.binary, Args: renderArgs(req), Timeout: renderTimeout}); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	e.log.Info("render finished", "output", req.OutputPath, "elapsed", time.Since(start).Round(time.Second))
	return req.OutputPath, nil
}

// Thumbnail grabs a single frame at timestamp (HH:MM:SS) into <video base>_thumb.jpg.
func (e *Encoder) Thumbnail(ctx context.Context, videoPath, timestamp string) (string, error) {
	if err := requireFile("video", videoPath); err != nil {
		return "", err
	}
	if strings.TrimSpace(timestamp) == "" {
		timestamp = DefaultThumbAt
	}
	out := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_thumb.jpg"
	args := []string{
		"-y",
		"-ss", timestamp,
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		out,
	}
	if _, err := e.runner.Run(ctx, proc.Cmd{Name: e.binary, Args: args, Timeout: thumbnailTimeout}); err != nil {
		return "", fmt.Errorf("extract thumbnail: %w", err)
	}
	e.log.Info("thumbnail extracted", "video", videoPath, "thumbnail", out)
	return out, nil
}

func renderArgs(req RenderRequest) []string {
	subtitles := fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(req.SRTPath), SubtitleStyle)
	videoCodec := []string{"-c:v", "libx264", "-preset", "medium", "-crf", "23"}

	if req.BGMPath == "" {
		args := []string{"-y", "-i", req.VideoPath, "-vf", subtitles}
		args = append(args, videoCodec...)
		return append(args, "-c:a", "copy", req.OutputPath)
	}

	graph := fmt.Sprintf("[0:v]%s[v];[1:a]volume=%s[bgm];[0:a][bgm]amix=inputs=2:duration=first[a]",
		subtitles, strconv.FormatFloat(BGMVolume, 'f', -1, 64))
	args := []string{
		"-y",
		"-i", req.VideoPath,
		"-stream_loop", "-1", "-i", req.BGMPath,
		"-filter_complex", graph,
		"-map", "[v]", "-map", "[a]",
	}
	args = append(args, videoCodec...)
	return append(args, "-c:a", "aac", "-b:a", "128k", "-shortest", req.OutputPath)
}

// escapeFilterPath makes a path safe inside a filtergraph option value.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ReplaceAll(path, ":", "\\:")
}

func requireFile(kind, path string) error {
	if strings.TrimSpace(path) == "" {
		return fault.Wrap(fault.ErrNotFound, kind, "no path given", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fault.Wrap(fault.ErrNotFound, kind, fmt.Sprintf("file not found: %s", path), nil)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fault.Wrap(fault.ErrNotFound, kind, fmt.Sprintf("%s is a directory", path), nil)
	}
	return nil
}
