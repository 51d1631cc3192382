package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.PermissionChecksTotal == nil {
		t.Error("PermissionChecksTotal is nil")
	}
	if metrics.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}

	// Registering twice must panic via MustRegister.
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	registry.MustRegister(metrics.HTTPRequestsTotal)
}

func TestPermissionCheckCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.PermissionChecksTotal.WithLabelValues("true").Inc()
	metrics.PermissionChecksTotal.WithLabelValues("true").Inc()
	metrics.PermissionChecksTotal.WithLabelValues("false").Inc()

	allowed := testutil.ToFloat64(metrics.PermissionChecksTotal.WithLabelValues("true"))
	if allowed != 2 {
		t.Errorf("allowed count = %v, want 2", allowed)
	}
	denied := testutil.ToFloat64(metrics.PermissionChecksTotal.WithLabelValues("false"))
	if denied != 1 {
		t.Errorf("denied count = %v, want 1", denied)
	}
}

func TestCacheCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.CacheHitsTotal.WithLabelValues("statements", "organization").Inc()
	metrics.CacheMissesTotal.WithLabelValues("statements", "organization").Inc()
	metrics.CacheMissesTotal.WithLabelValues("compiled_role", "role").Inc()

	if got := testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("statements", "organization")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("compiled_role", "role")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ac/roles", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/ac/roles", "418"))
	if got != 1 {
		t.Errorf("request count = %v, want 1", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.OrganizationsTotal.Set(7)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "orgauth_organizations_total 7") {
		t.Errorf("metrics output missing organizations gauge:\n%s", body)
	}
}
