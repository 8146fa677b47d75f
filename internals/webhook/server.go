package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/history"
)

const (
	SignatureHeader = "X-Clipper-Signature"
	maxBody         = 1 << 20
)

type Worker interface {
	Handle(ctx context.Context, agentName, request string) (string, error)
}

type Runs interface {
	Get(ctx context.Context, id string) (*history.Run, error)
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Server accepts requests over HTTP and runs them in the background, one at a
// time. Outcomes are read back from the run history.
type Server struct {
	worker       Worker
	runs         Runs
	secret       string
	defaultAgent string
	log          *slog.Logger

	base     context.Context
	busy     atomic.Bool
	inflight sync.WaitGroup
}

// NewServer builds the handler set. Background runs inherit base, so
// cancelling it stops an in-flight request.
func NewServer(base context.Context, worker Worker, runs Runs, secret, defaultAgent string, log *slog.Logger) *Server {
	return &Server{
		worker:       worker,
		runs:         runs,
		secret:       secret,
		defaultAgent: defaultAgent,
		log:          log,
		base:         base,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /requests", s.handleRequest)
	mux.HandleFunc("GET /runs", s.handleRecent)
	mux.HandleFunc("GET /runs/{id}", s.handleRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "busy": s.busy.Load()})
	})
	return mux
}

type requestPayload struct {
	Request string `json:"request"`
	Agent   string `json:"agent"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, err := s.readAndVerify(r)
	if err != nil {
		s.log.Warn("request verify failed", "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload requestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	payload.Request = strings.TrimSpace(payload.Request)
	if payload.Request == "" {
		http.Error(w, "request is required", http.StatusBadRequest)
		return
	}
	if payload.Agent == "" {
		payload.Agent = s.defaultAgent
	}

	if !s.busy.CompareAndSwap(false, true) {
		http.Error(w, "another request is running", http.StatusConflict)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.busy.Store(false)
		if _, err := s.worker.Handle(s.base, payload.Agent, payload.Request); err != nil {
			s.log.Error("request failed", "agent", payload.Agent, "err", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "agent": payload.Agent})
}

// Wait blocks until the background run, if any, has returned, or until ctx
// ends. Call it after the HTTP server has stopped accepting requests and
// before closing the stores the worker writes to.
func (s *Server) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running request: %w", ctx.Err())
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("list runs failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, toView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, fault.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get run failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toView(*run))
}

type runView struct {
	ID         string `json:"id"`
	Agent      string `json:"agent"`
	Request    string `json:"request"`
	Status     string `json:"status"`
	Reply      string `json:"reply,omitempty"`
	Error      string `json:"error,omitempty"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func toView(run history.Run) runView {
	v := runView{
		ID:         run.ID,
		Agent:      run.Agent,
		Request:    run.Request,
		Status:     string(run.Status),
		Reply:      run.Reply,
		Error:      run.Error,
		Iterations: run.Iterations,
		ToolCalls:  run.ToolCalls,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		v.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) readAndVerify(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if s.secret == "" {
		return body, nil // verification disabled
	}
	if !VerifySignature(body, s.secret, r.Header.Get(SignatureHeader)) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(body []byte, secret, sig string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(sig))
}
