package agent

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jadenj13/clipper/internals/fault"
)

func writePrompt(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPromptLoader(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "director.toml", "name = \"director\"\nsystem_prompt = \"\"\"\nYou make videos.\nBe brief.\"\"\"\n")
	writePrompt(t, dir, "silent.toml", "name = \"silent\"\n")
	writePrompt(t, dir, "broken.toml", "system_prompt = \n")
	loader := PromptLoader{Dir: dir}

	tests := []struct {
		agent   string
		want    string
		wantErr error
	}{
		{agent: "director", want: "You make videos.\nBe brief."},
		{agent: "silent", want: ""},
		{agent: "missing", wantErr: fault.ErrNotFound},
		{agent: "../etc/passwd", wantErr: fault.ErrNotFound},
		{agent: "broken", wantErr: fault.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			got, err := loader.Load(tt.agent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}

	agents, err := loader.Agents()
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	slices.Sort(agents)
	if !slices.Equal(agents, []string{"broken", "director", "silent"}) {
		t.Fatalf("unexpected agents %v", agents)
	}
}

func TestBundledDirectorPrompt(t *testing.T) {
	prompt, err := PromptLoader{Dir: filepath.Join("..", "..", "agents", "video_ops")}.Load("director")
	if err != nil {
		t.Fatalf("load bundled prompt: %v", err)
	}
	if prompt == "" {
		t.Fatal("bundled director prompt is empty")
	}
}
