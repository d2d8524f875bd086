package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGuard() *Guard {
	return NewGuard("http://gateway.local:8080", "flowgate")
}

func guardedOK(t *testing.T, g *Guard) (http.Handler, *int) {
	t.Helper()
	calls := 0
	h := g.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &calls
}

func TestGuardPassesCleanRequest(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 1 {
		t.Fatalf("handler calls = %d, want 1", *calls)
	}
	if got := w.Header().Get(headerHopCount); got != "1" {
		t.Fatalf("%s = %q, want 1", headerHopCount, got)
	}
	if w.Header().Get(headerRequestID) == "" {
		t.Fatal("response missing correlation id")
	}
}

func TestGuardEchoesRequestID(t *testing.T) {
	h, _ := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(headerRequestID, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get(headerRequestID); got != "req-42" {
		t.Fatalf("%s = %q, want req-42", headerRequestID, got)
	}
}

func TestGuardIncrementsHopCount(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(headerHopCount, "2")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 1 {
		t.Fatalf("handler calls = %d, want 1", *calls)
	}
	if got := w.Header().Get(headerHopCount); got != "3" {
		t.Fatalf("%s = %q, want 3", headerHopCount, got)
	}
}

func TestGuardRefusesExcessiveDepth(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(headerHopCount, "4")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 0 {
		t.Fatal("handler ran despite depth violation")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGuardAllowsBoundaryDepth(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(headerHopCount, "3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 1 {
		t.Fatal("hop count 3 should still be served")
	}
	if got := w.Header().Get(headerHopCount); got != "4" {
		t.Fatalf("%s = %q, want 4", headerHopCount, got)
	}
}

func TestGuardRejectsMalformedHopCount(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(headerHopCount, "many")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 0 {
		t.Fatal("handler ran despite malformed hop count")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGuardDetectsRefererLoop(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Referer", "http://gateway.local:8080/api/route-workflow")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 0 {
		t.Fatal("handler ran despite referer loop")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("loop refusal missing Retry-After")
	}
}

func TestGuardDetectsAgentLoop(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("User-Agent", "flowgate/1.0 (+internal)")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 0 {
		t.Fatal("handler ran despite agent-signature loop")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestGuardPageVariantAllowsSelfReferer(t *testing.T) {
	g := newTestGuard()
	calls := 0
	h := g.pageMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	r := httptest.NewRequest(http.MethodGet, "/oauth/google", nil)
	r.Header.Set("Referer", "http://gateway.local:8080/oauth/google/callback")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if calls != 1 {
		t.Fatal("same-host page navigation should pass the page guard")
	}
	if w.Header().Get(headerRequestID) == "" {
		t.Fatal("page guard response missing correlation id")
	}
}

func TestGuardPageVariantStillRefusesAgentLoop(t *testing.T) {
	g := newTestGuard()
	calls := 0
	h := g.pageMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	r := httptest.NewRequest(http.MethodGet, "/oauth/google", nil)
	r.Header.Set("User-Agent", "flowgate/1.0")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if calls != 0 {
		t.Fatal("page guard let an agent-signature loop through")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestGuardPageVariantStillRefusesDepth(t *testing.T) {
	g := newTestGuard()
	calls := 0
	h := g.pageMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	r := httptest.NewRequest(http.MethodGet, "/oauth/google", nil)
	r.Header.Set(headerHopCount, "99")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if calls != 0 {
		t.Fatal("page guard let an over-deep request through")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGuardIgnoresForeignReferer(t *testing.T) {
	h, calls := guardedOK(t, newTestGuard())

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Referer", "http://other.example.com/page")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *calls != 1 {
		t.Fatal("foreign referer should pass")
	}
}
