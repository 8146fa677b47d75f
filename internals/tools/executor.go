package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/llm"
)

// Result is the outcome of one tool call as seen by the model. Exactly one of
// Value and Err is meaningful.
type Result struct {
	Value any
	Err   string
}

func (r Result) Failed() bool { return r.Err != "" }

// JSON renders the result as the tool_result content string. A value that
// cannot be encoded renders as an error payload; Execute never returns one.
func (r Result) JSON() string {
	if r.Failed() {
		out, _ := encode(map[string]string{"error": r.Err})
		return out
	}
	out, err := encode(r.Value)
	if err != nil {
		out, _ = encode(map[string]string{"error": err.Error()})
	}
	return out
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

type Executor struct {
	registry *Registry
	log      *slog.Logger
}

func NewExecutor(registry *Registry, log *slog.Logger) *Executor {
	return &Executor{registry: registry, log: log}
}

func (e *Executor) Specs() []llm.Tool { return e.registry.Specs() }

// Execute never fails: unknown tools, handler errors and handler panics all
// come back as a Result carrying an error message for the model.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) (result Result) {
	handler, ok := e.registry.Lookup(name)
	if !ok {
		err := fault.Wrap(fault.ErrUnknownTool, "execute", name, nil)
		e.log.Warn("Unknown tool requested", "tool", name, "error", err)
		return Result{Err: "unknown tool: " + name}
	}

	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			e.log.Error("Tool panicked", "tool", name, "panic", v)
			result = Result{Err: fmt.Sprintf("tool %s panicked: %v", name, v)}
		}
	}()

	value, err := handler(ctx, input)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		e.log.Warn("Tool failed", "tool", name, "elapsed", elapsed, "kind", fault.Kind(err), "error", err)
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = fmt.Sprintf("tool %s failed", name)
		}
		return Result{Err: msg}
	}
	if _, err := encode(value); err != nil {
		e.log.Error("Tool result not encodable", "tool", name, "error", err)
		return Result{Err: err.Error()}
	}
	e.log.Info("Tool executed", "tool", name, "elapsed", elapsed)
	return Result{Value: value}
}
