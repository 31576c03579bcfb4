package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/niv0/causeway-extensions-sse-broadcast/internal/admission"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/broadcast"
	"github.com/niv0/causeway-extensions-sse-broadcast/internal/cors"
)

// syncRecorder wraps httptest.ResponseRecorder with a mutex so tests can
// safely poll the written body from the main goroutine while the
// handler writes from a background goroutine.
type syncRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func newSyncRecorder() *syncRecorder {
	return &syncRecorder{rec: httptest.NewRecorder()}
}

func (s *syncRecorder) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Header()
}

func (s *syncRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Write(p)
}

func (s *syncRecorder) WriteHeader(statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WriteHeader(statusCode)
}

func (s *syncRecorder) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Flush()
}

func (s *syncRecorder) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Body.String()
}

func (s *syncRecorder) Code() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Code
}

func newTestHandler(t *testing.T, heartbeat time.Duration) (*Handler, *broadcast.Service) {
	t.Helper()
	svc := broadcast.NewService(broadcast.NewRegistry())
	policy := cors.NewAllowlistPolicy([]string{"https://app.example.com"}, true)
	h := NewHandler(svc, admission.NewBypassAdmitter(), policy, WithHeartbeatInterval(heartbeat))
	return h, svc
}

func TestServeHTTPMissingChannelReturns400(t *testing.T) {
	h, _ := newTestHandler(t, time.Hour)
	r := httptest.NewRequest(http.MethodGet, "/sse/broadcast", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestServeHTTPOptionsPreflight(t *testing.T) {
	h, _ := newTestHandler(t, time.Hour)
	r := httptest.NewRequest(http.MethodOptions, "/sse/broadcast", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

type denyingAdmitter struct{}

func (denyingAdmitter) Authorize(r *http.Request, run func(*http.Request) error) error {
	return &admission.DeniedError{Reason: "Authentication required: no token"}
}

func TestServeHTTPAdmissionDeniedReturns401SSEBody(t *testing.T) {
	svc := broadcast.NewService(broadcast.NewRegistry())
	policy := cors.NewAllowlistPolicy(nil, false)
	h := NewHandler(svc, denyingAdmitter{}, policy)

	r := httptest.NewRequest(http.MethodGet, "/sse/broadcast?channel=t1", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "data: Authentication required") {
		t.Errorf("body = %q, want SSE-shaped error event", body)
	}
}

func TestServeHTTPStreamsPreambleAndEvent(t *testing.T) {
	h, svc := newTestHandler(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/sse/broadcast?channel=t1", nil).WithContext(ctx)
	w := newSyncRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ServeHTTP(w, r)
	}()

	deadline := time.Now().Add(time.Second)
	for svc.GetClientCount("t1") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if svc.GetClientCount("t1") != 1 {
		t.Fatal("listener never subscribed to channel t1")
	}

	if err := svc.Broadcast("t1", `{"x":1}`); err != nil {
		t.Fatalf("Broadcast error: %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(w.Body(), `data: {"x":1}`) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	wg.Wait()

	body := w.Body()
	if !strings.Contains(body, ": connected") {
		t.Error("body missing connected preamble")
	}
	if !strings.Contains(body, `data: {"x":1}`) {
		t.Errorf("body = %q, want to contain broadcast event", body)
	}
	if w.Code() != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code())
	}
}

func TestServeHTTPTerminatesOnChannelClose(t *testing.T) {
	h, svc := newTestHandler(t, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/sse/broadcast?channel=t2", nil)
	w := newSyncRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ServeHTTP(w, r)
	}()

	deadline := time.Now().Add(time.Second)
	for svc.GetClientCount("t2") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := svc.CloseChannel("t2"); err != nil {
		t.Fatalf("CloseChannel error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeHTTP did not return after channel was closed")
	}
}

func TestServeHTTPHeartbeatCadence(t *testing.T) {
	h, svc := newTestHandler(t, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/sse/broadcast?channel=t3", nil).WithContext(ctx)
	w := newSyncRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ServeHTTP(w, r)
	}()

	deadline := time.Now().Add(time.Second)
	for svc.GetClientCount("t3") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(w.Body(), ": heartbeat") >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	wg.Wait()

	if got := strings.Count(w.Body(), ": heartbeat"); got < 2 {
		t.Errorf("heartbeat count = %d, want at least 2", got)
	}
}
