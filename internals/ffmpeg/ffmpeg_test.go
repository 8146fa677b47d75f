package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/proc"
)

type fakeRunner struct {
	err  error
	cmds []proc.Cmd
}

func (f *fakeRunner) Run(_ context.Context, cmd proc.Cmd) ([]byte, error) {
	f.cmds = append(f.cmds, cmd)
	return nil, f.err
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestRenderArgsWithoutBGMCopiesAudio(t *testing.T) {
	args := renderArgs(RenderRequest{VideoPath: "in.mp4", SRTPath: "in.srt", OutputPath: "out.mp4"})

	if got := argAfter(args, "-c:a"); got != "copy" {
		t.Fatalf("expected audio copy, got %q in %v", got, args)
	}
	if !strings.HasPrefix(argAfter(args, "-vf"), "subtitles='in.srt'") {
		t.Fatalf("expected subtitle video filter, got %v", args)
	}
	for _, unwanted := range []string{"-filter_complex", "-stream_loop", "-map", "-shortest"} {
		if slices.Contains(args, unwanted) {
			t.Fatalf("unexpected %s in %v", unwanted, args)
		}
	}
	lastInput := -1
	for i, a := range args {
		if a == "-i" {
			lastInput = i
		}
	}
	if slices.Index(args, "-i") != lastInput {
		t.Fatalf("expected a single input, got %v", args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output must be last, got %v", args)
	}
}

func TestRenderArgsWithBGMMixesAudio(t *testing.T) {
	args := renderArgs(RenderRequest{VideoPath: "in.mp4", SRTPath: "in.srt", BGMPath: "bgm.mp3", OutputPath: "out.mp4"})

	graph := argAfter(args, "-filter_complex")
	for _, fragment := range []string{"[0:v]subtitles=", "[1:a]volume=0.1[bgm]", "amix=inputs=2:duration=first[a]"} {
		if !strings.Contains(graph, fragment) {
			t.Fatalf("expected %q in filter graph %q", fragment, graph)
		}
	}
	if argAfter(args, "-stream_loop") != "-1" {
		t.Fatalf("expected looping bgm input, got %v", args)
	}
	if !slices.Contains(args, "-shortest") {
		t.Fatalf("expected -shortest, got %v", args)
	}
	if argAfter(args, "-c:a") != "aac" {
		t.Fatalf("expected re-encoded audio, got %v", args)
	}
	if slices.Contains(args, "-vf") {
		t.Fatalf("unexpected -vf alongside filter_complex")
	}
}

func TestEscapeFilterPath(t *testing.T) {
	if got := escapeFilterPath(`C:\clips\a.srt`); got != `C\:/clips/a.srt` {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRenderMissingVideo(t *testing.T) {
	runner := &fakeRunner{}
	enc := New("", runner, testLogger())
	_, err := enc.Render(context.Background(), RenderRequest{
		VideoPath: filepath.Join(t.TempDir(), "missing.mp4"),
		SRTPath:   "whatever.srt",
	})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(runner.cmds) != 0 {
		t.Fatalf("ffmpeg should not run")
	}
}

func TestRenderDefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "video.mp4")
	subs := touch(t, dir, "video.srt")
	runner := &fakeRunner{}

	out, err := New("", runner, testLogger()).Render(context.Background(), RenderRequest{VideoPath: video, SRTPath: subs})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := filepath.Join(dir, "video_final.mp4")
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	if len(runner.cmds) != 1 || runner.cmds[0].Timeout != renderTimeout {
		t.Fatalf("unexpected commands %+v", runner.cmds)
	}
}

func TestRenderPropagatesEncoderFailure(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{err: fault.Wrap(fault.ErrTimeout, "ffmpeg", "exceeded 30m0s", nil)}
	_, err := New("", runner, testLogger()).Render(context.Background(), RenderRequest{
		VideoPath: touch(t, dir, "v.mp4"),
		SRTPath:   touch(t, dir, "v.srt"),
	})
	if !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestExtractAudio(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "clip.mp4")
	runner := &fakeRunner{}

	out, err := New("/usr/bin/ffmpeg", runner, testLogger()).ExtractAudio(context.Background(), video)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != filepath.Join(dir, "clip.wav") {
		t.Fatalf("unexpected output %q", out)
	}
	args := runner.cmds[0].Args
	if argAfter(args, "-ar") != "16000" || argAfter(args, "-ac") != "1" || argAfter(args, "-acodec") != "pcm_s16le" {
		t.Fatalf("unexpected args %v", args)
	}
	if runner.cmds[0].Name != "/usr/bin/ffmpeg" {
		t.Fatalf("configured binary not used: %q", runner.cmds[0].Name)
	}
}

func TestThumbnailDefaultsTimestamp(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "clip.mp4")
	runner := &fakeRunner{}

	out, err := New("", runner, testLogger()).Thumbnail(context.Background(), video, "")
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if out != filepath.Join(dir, "clip_thumb.jpg") {
		t.Fatalf("unexpected output %q", out)
	}
	if argAfter(runner.cmds[0].Args, "-ss") != DefaultThumbAt {
		t.Fatalf("unexpected args %v", runner.cmds[0].Args)
	}
}
