package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jadenj13/clipper/internals/llm"
	"github.com/jadenj13/clipper/internals/tools"
)

type LLM interface {
	CompleteWithTools(ctx context.Context, system string, messages []llm.Message, tools []llm.Tool) (*llm.Response, error)
}

type Executor interface {
	Specs() []llm.Tool
	Execute(ctx context.Context, name string, input json.RawMessage) tools.Result
}

type Prompts interface {
	Load(agentName string) (string, error)
}

// Observer is told about progress while a request runs. Calls happen on the
// goroutine running the loop.
type Observer interface {
	ToolCalled(name string, input json.RawMessage)
	ToolReturned(name string, result tools.Result)
	Replied(text string)
}

type nopObserver struct{}

func (nopObserver) ToolCalled(string, json.RawMessage) {}
func (nopObserver) ToolReturned(string, tools.Result)  {}
func (nopObserver) Replied(string)                     {}

type Outcome struct {
	Reply      string
	Iterations int
	ToolCalls  int
}

type Agent struct {
	llm      LLM
	executor Executor
	prompts  Prompts
	observer Observer
	log      *slog.Logger
}

type Option func(*Agent)

func WithObserver(o Observer) Option {
	return func(a *Agent) {
		if o != nil {
			a.observer = o
		}
	}
}

func New(llm LLM, executor Executor, prompts Prompts, log *slog.Logger, opts ...Option) *Agent {
	a := &Agent{llm: llm, executor: executor, prompts: prompts, observer: nopObserver{}, log: log}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run drives one request to completion. The loop ends only when the model
// answers without requesting any tool, when the model call fails, or when ctx
// is cancelled.
func (a *Agent) Run(ctx context.Context, agentName, request string) (Outcome, error) {
	system, err := a.prompts.Load(agentName)
	if err != nil {
		return Outcome{}, fmt.Errorf("load prompt: %w", err)
	}

	specs := a.executor.Specs()
	msgs := []llm.Message{llm.UserText(request)}
	var out Outcome

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Iterations++

		resp, err := a.llm.CompleteWithTools(ctx, system, msgs, specs)
		if err != nil {
			return out, fmt.Errorf("llm (iter %d): %w", out.Iterations, err)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})

		toolUses := resp.ToolUses()
		if len(toolUses) == 0 {
			out.Reply = resp.Text()
			a.observer.Replied(out.Reply)
			a.log.Info("Agent finished", "agent", agentName, "iters", out.Iterations, "tool_calls", out.ToolCalls)
			return out, nil
		}

		a.log.Info("Executing tools", "count", len(toolUses), "iter", out.Iterations)
		msgs = append(msgs, a.dispatch(ctx, toolUses))
		out.ToolCalls += len(toolUses)
	}
}

// dispatch runs the requested tools one after another and collects their
// results, in request order, into a single user message.
func (a *Agent) dispatch(ctx context.Context, toolUses []llm.Block) llm.Message {
	results := make([]llm.Block, 0, len(toolUses))
	for _, tu := range toolUses {
		a.observer.ToolCalled(tu.Name, tu.Input)
		result := a.executor.Execute(ctx, tu.Name, tu.Input)
		a.observer.ToolReturned(tu.Name, result)

		content := result.JSON()
		a.log.Debug("Tool result", "tool", tu.Name, "preview", preview(content, 120))
		results = append(results, llm.ToolResultBlock(tu.ID, content, result.Failed()))
	}
	return llm.Message{Role: llm.RoleUser, Content: results}
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "…"
	}
	return s
}
