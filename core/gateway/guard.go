// Package gateway exposes the HTTP surface: workflow routing, intent views,
// cache control, OAuth entry points, and the dispatch event stream.
package gateway

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/core/infra/logging"
)

const (
	headerHopCount  = "X-Hop-Count"
	headerRequestID = "X-Request-Id"

	// maxHopDepth caps how many times a request may be re-entered through
	// chained gateways before it is refused.
	maxHopDepth = 3

	// loopRetryAfterSeconds is advisory backoff for self-inflicted loops.
	loopRetryAfterSeconds = 60
)

// Guard screens inbound dispatch requests for self-call loops and runaway
// hop depth, and pins a correlation id on every request.
type Guard struct {
	selfHost string
	agentTag string
}

func NewGuard(baseURL, agentTag string) *Guard {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}
	return &Guard{selfHost: host, agentTag: agentTag}
}

type guardViolation struct {
	status     int
	code       string
	message    string
	retryAfter int
}

// requestID echoes the caller's correlation id or mints one.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(headerRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}

// inspect returns the incremented hop count for downstream calls, or a
// violation when the request must be refused.
func (g *Guard) inspect(r *http.Request, refererLoop bool) (int, *guardViolation) {
	if g.isLoop(r, refererLoop) {
		return 0, &guardViolation{
			status:     http.StatusTooManyRequests,
			code:       "loop_detected",
			message:    "request originated from this service and was refused",
			retryAfter: loopRetryAfterSeconds,
		}
	}

	hop := 0
	if raw := strings.TrimSpace(r.Header.Get(headerHopCount)); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, &guardViolation{
				status:  http.StatusBadRequest,
				code:    "invalid_hop_count",
				message: "X-Hop-Count must be a non-negative integer",
			}
		}
		hop = parsed
	}
	if hop > maxHopDepth {
		return 0, &guardViolation{
			status:  http.StatusBadRequest,
			code:    "depth_exceeded",
			message: "request exceeded the maximum gateway hop depth",
		}
	}
	return hop + 1, nil
}

// isLoop flags requests whose Referer points back at this service or whose
// User-Agent carries our own agent signature.
func (g *Guard) isLoop(r *http.Request, refererLoop bool) bool {
	if refererLoop && g.selfHost != "" {
		if ref := r.Header.Get("Referer"); ref != "" {
			if u, err := url.Parse(ref); err == nil && u.Host == g.selfHost {
				return true
			}
		}
	}
	if g.agentTag != "" && strings.Contains(r.Header.Get("User-Agent"), g.agentTag) {
		return true
	}
	return false
}

// middleware enforces the full guard. The correlation id and the incremented
// hop count are stamped on every response so chained callers can propagate
// them.
func (g *Guard) middleware(next http.Handler) http.Handler {
	return g.screen(next, true)
}

// pageMiddleware is the guard for browser-facing pages: same depth and
// agent-signature checks, but the Referer loop signal is skipped because
// navigation between our own pages legitimately refers to this host.
func (g *Guard) pageMiddleware(next http.Handler) http.Handler {
	return g.screen(next, false)
}

func (g *Guard) screen(next http.Handler, refererLoop bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(headerRequestID, id)

		hop, violation := g.inspect(r, refererLoop)
		if violation != nil {
			logging.Warn("guard", "request refused",
				"request_id", id, "code", violation.code, "remote", r.RemoteAddr)
			if violation.retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(violation.retryAfter))
			}
			writeJSON(w, violation.status, map[string]any{
				"success": false,
				"error":   violation.code,
				"message": violation.message,
			})
			return
		}

		w.Header().Set(headerHopCount, strconv.Itoa(hop))
		next.ServeHTTP(w, withRequestID(r, id))
	})
}
