// Package ffprobe wraps ffprobe's JSON output and answers the one question the
// agent asks of a media file: can it be played?
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/proc"
)

const (
	DefaultBinary = "ffprobe"
	probeTimeout  = 30 * time.Second
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
}

type Format struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
}

func (r Result) HasVideo() bool { return r.streamCount("video") > 0 }

func (r Result) HasAudio() bool { return r.streamCount("audio") > 0 }

// DurationSeconds returns the container duration, or 0 when ffprobe did not
// report a usable value.
func (r Result) DurationSeconds() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (r Result) streamCount(kind string) int {
	n := 0
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			n++
		}
	}
	return n
}

// Playability is the integrity report handed back to the model.
type Playability struct {
	Playable bool    `json:"playable"`
	Duration float64 `json:"duration"`
	HasVideo bool    `json:"has_video"`
	HasAudio bool    `json:"has_audio"`
	Error    string  `json:"error,omitempty"`
}

// Assess derives playability from a probe result. A file is playable only when
// it carries a video stream and a positive duration.
func Assess(r Result) Playability {
	duration := r.DurationSeconds()
	hasVideo := r.HasVideo()
	return Playability{
		Playable: hasVideo && duration > 0,
		Duration: duration,
		HasVideo: hasVideo,
		HasAudio: r.HasAudio(),
	}
}

type Prober struct {
	binary string
	runner proc.Runner
}

func New(binary string, runner proc.Runner) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = proc.Local{}
	}
	return &Prober{binary: binary, runner: runner}
}

// Inspect runs ffprobe against path and decodes stream types and duration.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	out, err := p.runner.Run(ctx, proc.Cmd{
		Name: p.binary,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration:stream=codec_type",
			"-of", "json",
			path,
		},
		Timeout: probeTimeout,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(out, &result); err != nil {
		return Result{}, fault.Wrap(fault.ErrMalformed, "ffprobe parse", "", err)
	}
	return result, nil
}

// CheckPlayable never fails: probe errors are reported inside the Playability.
func (p *Prober) CheckPlayable(ctx context.Context, path string) Playability {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Playability{Error: fmt.Sprintf("file not found: %s", path)}
		}
		return Playability{Error: err.Error()}
	}
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return Playability{Error: err.Error()}
	}
	return Assess(result)
}
