package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jadenj13/clipper/internals/asr"
	"github.com/jadenj13/clipper/internals/ffmpeg"
	"github.com/jadenj13/clipper/internals/ffprobe"
	"github.com/jadenj13/clipper/internals/proc"
	"github.com/jadenj13/clipper/internals/ytdlp"
)

type fakeRunner struct {
	out  string
	err  error
	cmds []proc.Cmd
}

func (f *fakeRunner) Run(_ context.Context, cmd proc.Cmd) ([]byte, error) {
	f.cmds = append(f.cmds, cmd)
	return []byte(f.out), f.err
}

func newVideoExecutor(t *testing.T, runner proc.Runner) *Executor {
	t.Helper()
	log := testLogger()
	deps := VideoDeps{
		Downloader:  ytdlp.New("", t.TempDir(), runner, log),
		Encoder:     ffmpeg.New("", runner, log),
		Transcriber: asr.New(nil, runner, log),
		Prober:      ffprobe.New("", runner),
	}
	return newTestExecutor(t, VideoDefinitions(deps)...)
}

func TestSearchVideosTool(t *testing.T) {
	runner := &fakeRunner{out: `{"id":"a","title":"A","duration":600,"view_count":20000,"channel":"x"}
{"id":"b","title":"B","duration":700,"view_count":30000,"channel":"y"}
not json
{"id":"c","title":"C","duration":800,"view_count":40000,"channel":"z"}
{"id":"d","title":"D","duration":900,"view_count":50000,"channel":"w"}
`}
	exec := newVideoExecutor(t, runner)

	result := exec.Execute(context.Background(), "search_videos", json.RawMessage(`{"query":"Shenzhen 4K walk","limit":3}`))
	if result.Failed() {
		t.Fatalf("unexpected error %s", result.Err)
	}
	var videos []ytdlp.Video
	if err := json.Unmarshal([]byte(result.JSON()), &videos); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(videos) != 4 {
		t.Fatalf("expected 4 videos, got %d", len(videos))
	}
	args := runner.cmds[0].Args
	if args[len(args)-1] != "ytsearch3:Shenzhen 4K walk" {
		t.Fatalf("unexpected search term %q", args[len(args)-1])
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "duration > 120") || !strings.Contains(joined, "view_count > 10000") {
		t.Fatalf("defaults not applied: %v", args)
	}
}

func TestSearchVideosEmptyResultIsList(t *testing.T) {
	exec := newVideoExecutor(t, &fakeRunner{})
	result := exec.Execute(context.Background(), "search_videos", json.RawMessage(`{"query":"nothing"}`))
	if result.JSON() != "[]" {
		t.Fatalf("expected empty list, got %s", result.JSON())
	}
}

func TestMissingRequiredField(t *testing.T) {
	runner := &fakeRunner{}
	exec := newVideoExecutor(t, runner)
	for _, input := range []string{`{}`, `{"query":""}`, `{"query":null}`, `not json`} {
		result := exec.Execute(context.Background(), "search_videos", json.RawMessage(input))
		if !result.Failed() {
			t.Fatalf("input %s: expected failure", input)
		}
	}
	if len(runner.cmds) != 0 {
		t.Fatalf("no subprocess expected, got %d", len(runner.cmds))
	}
}

func TestDownloadFailureIsData(t *testing.T) {
	exec := newVideoExecutor(t, &fakeRunner{err: errors.New("HTTP Error 403")})
	result := exec.Execute(context.Background(), "download_video", json.RawMessage(`{"url":"https://example.com/v"}`))
	if result.Failed() {
		t.Fatalf("download failures are reported in the payload, got %s", result.Err)
	}
	var dl ytdlp.Download
	if err := json.Unmarshal([]byte(result.JSON()), &dl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dl.Success || !strings.Contains(dl.Error, "403") {
		t.Fatalf("unexpected download result %+v", dl)
	}
}

func TestRenderMissingVideo(t *testing.T) {
	runner := &fakeRunner{}
	exec := newVideoExecutor(t, runner)
	dir := t.TempDir()
	srtPath := filepath.Join(dir, "a.srt")
	if err := os.WriteFile(srtPath, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(map[string]string{
		"video_path": filepath.Join(dir, "missing.mp4"),
		"srt_path":   srtPath,
	})

	result := exec.Execute(context.Background(), "render_standard_video", input)
	if !result.Failed() {
		t.Fatal("expected failure")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(result.JSON()), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(payload["error"], "not found") {
		t.Fatalf("expected not found error, got %q", payload["error"])
	}
	if len(runner.cmds) != 0 {
		t.Fatal("ffmpeg must not run when inputs are missing")
	}
}

func TestCheckPlayableMissingFile(t *testing.T) {
	exec := newVideoExecutor(t, &fakeRunner{})
	input, _ := json.Marshal(map[string]string{"video_path": filepath.Join(t.TempDir(), "nope.mp4")})
	result := exec.Execute(context.Background(), "check_video_playable", input)
	if result.Failed() {
		t.Fatalf("check_video_playable never fails, got %s", result.Err)
	}
	var p ffprobe.Playability
	if err := json.Unmarshal([]byte(result.JSON()), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Playable || !strings.Contains(p.Error, "not found") {
		t.Fatalf("unexpected playability %+v", p)
	}
}

func TestThumbnailDefaultTimestamp(t *testing.T) {
	runner := &fakeRunner{}
	exec := newVideoExecutor(t, runner)
	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	input, _ := json.Marshal(map[string]string{"video_path": video})
	result := exec.Execute(context.Background(), "extract_thumbnail", input)
	if result.Failed() {
		t.Fatalf("unexpected error %s", result.Err)
	}
	if !strings.Contains(strings.Join(runner.cmds[0].Args, " "), "-ss 00:00:05") {
		t.Fatalf("expected default timestamp, got %v", runner.cmds[0].Args)
	}
	if !strings.Contains(result.JSON(), "clip_thumb.jpg") {
		t.Fatalf("unexpected payload %s", result.JSON())
	}
}
