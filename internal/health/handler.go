// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const (
	checkTimeout = 3 * time.Second
	resultTTL    = 2 * time.Second
)

type Checker interface {
	Ping(ctx context.Context) error
}

// Check names a dependency pinged by /readyz. Optional checks report
// their state but do not fail readiness; the store keeps selling with
// redis or the broker down, only slower.
type Check struct {
	Name     string
	Checker  Checker
	Optional bool
}

type Handler struct {
	checks   []Check
	draining atomic.Bool
	now      func() time.Time

	mu     sync.Mutex
	last   []Result
	lastAt time.Time
}

func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// SetShutdown flips liveness and readiness to 503 so the load balancer stops routing
// new purchases here while in-flight ones finish.
func (h *Handler) SetShutdown(draining bool) {
	h.draining.Store(draining)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, Report{Status: StatusDraining})
		return
	}
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, Report{Status: StatusDraining})
		return
	}

	results := h.runChecks(r.Context())

	report := Report{Status: StatusOK, Checks: results}
	code := http.StatusOK
	for _, res := range results {
		if !res.Healthy && !res.Optional {
			report.Status = StatusDegraded
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, report)
}

// runChecks pings every dependency in parallel. Results are reused for a
// short window so a tight polling interval does not hold pool connections.
func (h *Handler) runChecks(ctx context.Context) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil && h.now().Sub(h.lastAt) < resultTTL {
		return h.last
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make([]Result, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			results[i] = ping(ctx, c)
			return nil
		})
	}
	//nolint:errcheck // checks report failures in their Result
	_ = g.Wait()

	h.last = results
	h.lastAt = h.now()
	return results
}

func ping(ctx context.Context, c Check) Result {
	res := Result{Name: c.Name, Optional: c.Optional}
	if c.Checker == nil {
		res.Message = "not configured"
		return res
	}

	start := time.Now()
	err := c.Checker.Ping(ctx)
	res.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Message = "unreachable"
		return res
	}
	res.Healthy = true
	return res
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(body)
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDraining = "draining"
)

type Report struct {
	Status string   `json:"status"`
	Checks []Result `json:"checks,omitempty"`
}

type Result struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}
