package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jadenj13/clipper/internals/history"
)

type Locker interface {
	Acquire() (release func(), err error)
}

type History interface {
	Begin(ctx context.Context, agent, request string) (string, error)
	Finish(ctx context.Context, id string, c history.Completion) error
}

// Report summarises a finished request for notifiers.
type Report struct {
	RunID      string
	Agent      string
	Request    string
	Reply      string
	Err        error
	Iterations int
	ToolCalls  int
	Elapsed    time.Duration
}

type Notifier interface {
	NotifyRun(ctx context.Context, r Report) error
}

// Worker wraps one agent run with the workspace lock, the run history and
// notifications. Any of lock, history and notifier may be nil.
type Worker struct {
	agent    *Agent
	lock     Locker
	history  History
	notifier Notifier
	log      *slog.Logger
}

func NewWorker(agent *Agent, lock Locker, history History, notifier Notifier, log *slog.Logger) *Worker {
	return &Worker{agent: agent, lock: lock, history: history, notifier: notifier, log: log}
}

func (w *Worker) Handle(ctx context.Context, agentName, request string) (string, error) {
	if w.lock != nil {
		release, err := w.lock.Acquire()
		if err != nil {
			return "", err
		}
		defer release()
	}

	var runID string
	if w.history != nil {
		id, err := w.history.Begin(ctx, agentName, request)
		if err != nil {
			return "", fmt.Errorf("record run: %w", err)
		}
		runID = id
	}

	w.log.Info("Handling request", "run", runID, "agent", agentName, "request", preview(request, 80))
	start := time.Now()
	outcome, runErr := w.agent.Run(ctx, agentName, request)
	elapsed := time.Since(start)

	if w.history != nil {
		c := history.Completion{
			Status:     history.StatusSucceeded,
			Reply:      outcome.Reply,
			Iterations: outcome.Iterations,
			ToolCalls:  outcome.ToolCalls,
		}
		if runErr != nil {
			c.Status = history.StatusFailed
			c.Error = runErr.Error()
		}
		// ctx may already be cancelled; the record should still be closed.
		if err := w.history.Finish(context.WithoutCancel(ctx), runID, c); err != nil {
			w.log.Warn("Failed to finish run record", "run", runID, "err", err)
		}
	}

	if w.notifier != nil {
		report := Report{
			RunID:      runID,
			Agent:      agentName,
			Request:    request,
			Reply:      outcome.Reply,
			Err:        runErr,
			Iterations: outcome.Iterations,
			ToolCalls:  outcome.ToolCalls,
			Elapsed:    elapsed,
		}
		if err := w.notifier.NotifyRun(context.WithoutCancel(ctx), report); err != nil {
			w.log.Warn("Failed to send notification", "run", runID, "err", err)
		}
	}

	if runErr != nil {
		return "", runErr
	}
	w.log.Info("Request finished", "run", runID, "elapsed", elapsed.Round(time.Second))
	return outcome.Reply, nil
}
