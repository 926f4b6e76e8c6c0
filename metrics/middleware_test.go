package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Metrics)
	router.Post("/v1/leaflets/query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("POST", "/v1/leaflets/query", "202"))

	req := httptest.NewRequest(http.MethodPost, "/v1/leaflets/query", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("POST", "/v1/leaflets/query", "202"))
	if after != before+1 {
		t.Errorf("Expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestMetricsMiddlewareWithoutRouter(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "unmatched", "418"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/random/123", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", rec.Code)
	}
	after := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues("GET", "unmatched", "418"))
	if after != before+1 {
		t.Errorf("Expected unmatched counter to increase by 1, got %v -> %v", before, after)
	}
}
