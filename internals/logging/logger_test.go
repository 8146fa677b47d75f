package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	NewComponentLogger(log, "ytdlp").Info("search finished", "results", 4)
	log.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "search finished" || entry["component"] != "ytdlp" || entry["results"] != float64(4) {
		t.Fatalf("unexpected entry %v", entry)
	}

	buf.Reset()
	log, err = New(Options{Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestNewRejectsUnknownValues(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected level error")
	}
}

func TestNopLogger(t *testing.T) {
	log := NewComponentLogger(nil, "x")
	log.Error("dropped")
	if log.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger must be disabled")
	}
}
