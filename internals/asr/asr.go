// Package asr drives an external faster-whisper command line and turns its
// segment output into an SRT subtitle file.
//
// The command is invoked as
//
//	<command...> <audio> <outdir> --language <code|auto> --vad --model <size>
//
// and must print a JSON summary as its last stdout line:
//
//	{"segments_count":12,"language":"en","language_probability":0.98,"json_path":"...","srt_path":"..."}
//
// The segments file named by json_path holds [{"start":0.0,"end":1.2,"text":"..."}].
package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/proc"
	"github.com/jadenj13/clipper/internals/srt"
)

const (
	DefaultModel    = "large-v3"
	AutoLanguage    = "auto"
	segmentsFile    = "source_segments.json"
	transcribeLimit = time.Hour
)

var DefaultCommand = []string{"asr_cli"}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Options struct {
	Model    string
	Language string // ISO code or "auto"
}

// Transcript is what the transcription tool reports back to the agent.
type Transcript struct {
	SRTPath             string  `json:"srt_path"`
	SegmentsPath        string  `json:"segments_path"`
	Segments            int     `json:"segments"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
}

type summary struct {
	SegmentsCount       int     `json:"segments_count"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	JSONPath            string  `json:"json_path"`
}

type Transcriber struct {
	command []string
	model   string
	runner  proc.Runner
	log     *slog.Logger
}

type Option func(*Transcriber)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		if model = strings.TrimSpace(model); model != "" {
			t.model = model
		}
	}
}

func New(command []string, runner proc.Runner, log *slog.Logger, opts ...Option) *Transcriber {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		command = DefaultCommand
	}
	if runner == nil {
		runner = proc.Local{}
	}
	t := &Transcriber{command: append([]string(nil), command...), model: DefaultModel, runner: runner, log: log}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe runs speech recognition over audioPath and writes <audio base>.srt.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, opts Options) (Transcript, error) {
	if _, err := os.Stat(audioPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Transcript{}, fault.Wrap(fault.ErrNotFound, "transcribe", fmt.Sprintf("audio file not found: %s", audioPath), nil)
		}
		return Transcript{}, fmt.Errorf("stat audio: %w", err)
	}
	lang, err := NormalizeLanguage(opts.Language)
	if err != nil {
		return Transcript{}, err
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = t.model
	}

	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	outDir := base + "_asr"
	args := append([]string(nil), t.command[1:]...)
	args = append(args, audioPath, outDir, "--language", lang, "--vad", "--model", model)

	t.log.Info("transcription started", "audio", audioPath, "model", model, "language", lang)
	start := time.Now()
	out, err := t.runner.Run(ctx, proc.Cmd{Name: t.command[0], Args: args, Timeout: transcribeLimit})
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	sum, err := parseSummary(out)
	if err != nil {
		return Transcript{}, err
	}
	segmentsPath := sum.JSONPath
	if segmentsPath == "" {
		segmentsPath = filepath.Join(outDir, segmentsFile)
	}
	segments, err := readSegments(segmentsPath)
	if err != nil {
		return Transcript{}, err
	}

	srtPath := base + ".srt"
	if err := srt.WriteFile(srtPath, Cues(segments)); err != nil {
		return Transcript{}, err
	}

	result := Transcript{
		SRTPath:             srtPath,
		SegmentsPath:        segmentsPath,
		Segments:            len(segments),
		Language:            detectedLanguage(sum.Language),
		LanguageProbability: sum.LanguageProbability,
	}
	t.log.Info("transcription finished",
		"srt", srtPath,
		"segments", result.Segments,
		"language", result.Language,
		"probability", fmt.Sprintf("%.2f", result.LanguageProbability),
		"elapsed", time.Since(start).Round(time.Second),
	)
	return result, nil
}

// Cues converts recognised segments into numbered subtitle cues.
func Cues(segments []Segment) []srt.Cue {
	cues := make([]srt.Cue, 0, len(segments))
	for i, s := range segments {
		cues = append(cues, srt.Cue{
			Index: i + 1,
			Start: srt.FromSeconds(s.Start),
			End:   srt.FromSeconds(s.End),
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return cues
}

// NormalizeLanguage maps "" and "auto" to auto-detection and anything else to
// its base ISO 639 code.
func NormalizeLanguage(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, AutoLanguage) {
		return AutoLanguage, nil
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", value, err)
	}
	b, _ := tag.Base()
	return b.String(), nil
}

func detectedLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func parseSummary(out []byte) (summary, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return summary{}, fault.Wrap(fault.ErrMalformed, "transcribe", "no summary printed", nil)
	}
	var sum summary
	if err := json.Unmarshal([]byte(last), &sum); err != nil {
		return summary{}, fault.Wrap(fault.ErrMalformed, "transcribe", "summary line", err)
	}
	return sum, nil
}

func readSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.Wrap(fault.ErrNotFound, "transcribe", fmt.Sprintf("segments file not found: %s", path), nil)
		}
		return nil, fmt.Errorf("read segments: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fault.Wrap(fault.ErrMalformed, "transcribe", "segments file", err)
	}
	return segments, nil
}
