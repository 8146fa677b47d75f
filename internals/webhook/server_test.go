package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
	"github.com/jadenj13/clipper/internals/history"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeWorker struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
}

func (f *fakeWorker) Handle(_ context.Context, agentName, request string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, agentName+":"+request)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return "ok", nil
}

type fakeRuns struct{ runs []history.Run }

func (f fakeRuns) Get(_ context.Context, id string) (*history.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, fault.Wrap(fault.ErrNotFound, "get run", id, nil)
}

func (f fakeRuns) Recent(_ context.Context, limit int) ([]history.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func post(t *testing.T, h http.Handler, body, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequestSignature(t *testing.T) {
	worker := &fakeWorker{}
	s := NewServer(context.Background(), worker, fakeRuns{}, "s3cret", "director", testLogger())
	h := s.Handler()
	body := `{"request":"make a video"}`

	if rec := post(t, h, body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned: got %d", rec.Code)
	}
	if rec := post(t, h, body, Sign([]byte(body), "wrong")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: got %d", rec.Code)
	}
	rec := post(t, h, body, Sign([]byte(body), "s3cret"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("signed: got %d %s", rec.Code, rec.Body)
	}

	waitRuns(t, s)
	if len(worker.calls) != 1 || worker.calls[0] != "director:make a video" {
		t.Fatalf("unexpected calls %v", worker.calls)
	}
}

func TestRequestValidationAndBusy(t *testing.T) {
	worker := &fakeWorker{release: make(chan struct{})}
	s := NewServer(context.Background(), worker, fakeRuns{}, "", "director", testLogger())
	h := s.Handler()

	if rec := post(t, h, `{"request":"  "}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty request: got %d", rec.Code)
	}
	if rec := post(t, h, `nope`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: got %d", rec.Code)
	}
	if rec := post(t, h, `{"request":"one","agent":"editor"}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("first: got %d", rec.Code)
	}
	if rec := post(t, h, `{"request":"two"}`, ""); rec.Code != http.StatusConflict {
		t.Fatalf("second while busy: got %d", rec.Code)
	}
	close(worker.release)
	waitRuns(t, s)
	if rec := post(t, h, `{"request":"three"}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("after release: got %d", rec.Code)
	}
	waitRuns(t, s)
}

func waitRuns(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("background run did not finish: %v", err)
	}
}

// recordingWorker blocks until its context ends, then takes a moment to close
// out the run the way agent.Worker records history after cancellation.
type recordingWorker struct {
	started  chan struct{}
	finished atomic.Bool
}

func (w *recordingWorker) Handle(ctx context.Context, _, _ string) (string, error) {
	close(w.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	w.finished.Store(true)
	return "", ctx.Err()
}

func TestWaitCoversCancelledRun(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := &recordingWorker{started: make(chan struct{})}
	s := NewServer(base, worker, fakeRuns{}, "", "director", testLogger())

	if rec := post(t, s.Handler(), `{"request":"long render"}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("post: got %d", rec.Code)
	}
	<-worker.started
	cancel()

	waitRuns(t, s)
	if !worker.finished.Load() {
		t.Fatal("Wait returned before the run recorded its outcome")
	}
}

func TestWaitHonoursDeadline(t *testing.T) {
	worker := &fakeWorker{release: make(chan struct{})}
	defer close(worker.release)
	s := NewServer(context.Background(), worker, fakeRuns{}, "", "director", testLogger())
	if rec := post(t, s.Handler(), `{"request":"stuck"}`, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("post: got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunsEndpoints(t *testing.T) {
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	runs := fakeRuns{runs: []history.Run{
		{ID: "b", Agent: "director", Request: "r2", Status: history.StatusRunning, StartedAt: started.Add(time.Minute)},
		{ID: "a", Agent: "director", Request: "r1", Status: history.StatusSucceeded, Reply: "done", StartedAt: started, FinishedAt: started.Add(time.Minute)},
	}}
	h := NewServer(context.Background(), &fakeWorker{}, runs, "", "director", testLogger()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil))
	var list []runView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("unexpected list %s (%v)", rec.Body, err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/a", nil))
	var one runView
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Reply != "done" || one.FinishedAt != "2026-05-01T08:01:00Z" {
		t.Fatalf("unexpected run %+v", one)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/zzz", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=-3", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d", rec.Code)
	}
}
