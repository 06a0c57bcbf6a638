// AngelaMos | 2026
// handler_test.go

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/health"
)

type stubChecker struct {
	err   error
	calls atomic.Int32
}

func (p *stubChecker) Ping(context.Context) error {
	p.calls.Add(1)
	return p.err
}

func readyz(t *testing.T, r http.Handler) (int, health.Report) {
	t.Helper()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return rec.Code, report
}

func TestReadinessIgnoresOptionalFailures(t *testing.T) {
	db := &stubChecker{}
	cache := &stubChecker{err: errors.New("connection refused")}

	h := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: cache, Optional: true},
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	code, report := readyz(t, r)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, health.StatusOK, report.Status)
	require.Len(t, report.Checks, 2)
	require.True(t, report.Checks[0].Healthy)
	require.False(t, report.Checks[1].Healthy)
	require.Equal(t, "unreachable", report.Checks[1].Message)

	readyz(t, r)
	require.Equal(t, int32(1), db.calls.Load())
}

func TestReadinessFailsOnRequiredCheck(t *testing.T) {
	h := health.NewHandler(
		health.Check{Name: "database", Checker: &stubChecker{err: errors.New("down")}},
		health.Check{Name: "amqp"},
	)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	code, report := readyz(t, r)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, health.StatusDegraded, report.Status)
	require.Equal(t, "not configured", report.Checks[1].Message)
}

func TestShutdownDrainsBothEndpoints(t *testing.T) {
	h := health.NewHandler()
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	h.SetShutdown(true)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	code, report := readyz(t, r)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, health.StatusDraining, report.Status)
}
