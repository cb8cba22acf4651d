package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

// TestMetricsMiddleware_UsesRoutePattern ensures the metrics middleware labels
// by the chi route pattern instead of the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/things/42", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := scrape(t)
	if !bytes.Contains(body, []byte("minivault_http_requests_total")) || !bytes.Contains(body, []byte("/things/{id}")) {
		preview := body
		if len(preview) > 400 {
			preview = preview[:400]
		}
		t.Fatalf("expected minivault_http_requests_total labelled with the route pattern; got: %q", string(preview))
	}
}

func TestGenerate_CountsOutcomeAndFragments(t *testing.T) {
	okBefore := testutil.ToFloat64(generateTotal.WithLabelValues(transportREST, outcomeOK))
	fragBefore := testutil.ToFloat64(fragmentsTotal.WithLabelValues(transportREST))
	badBefore := testutil.ToFloat64(generateTotal.WithLabelValues(transportREST, outcomeMalformed))

	f := newFixture(t, "a", "b", "c")
	postGenerate(t, f.mux, `{"prompt":"hi"}`)
	postGenerate(t, f.mux, `{}`)

	if d := testutil.ToFloat64(generateTotal.WithLabelValues(transportREST, outcomeOK)) - okBefore; d != 1 {
		t.Fatalf("ok delta=%v", d)
	}
	if d := testutil.ToFloat64(fragmentsTotal.WithLabelValues(transportREST)) - fragBefore; d != 3 {
		t.Fatalf("fragments delta=%v", d)
	}
	if d := testutil.ToFloat64(generateTotal.WithLabelValues(transportREST, outcomeMalformed)) - badBefore; d != 1 {
		t.Fatalf("malformed delta=%v", d)
	}
}

func TestMetricsEndpointServed(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("minivault_http_inflight_requests")) {
		t.Fatalf("inflight gauge missing")
	}
}
