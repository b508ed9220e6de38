package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sigtrip_wrapper/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample per family so they show up in the exposition
	observability.ObserveHTTP("/v1/search", "POST", 200, 12*time.Millisecond)
	observability.ObserveExternal("sigtrip", "get_prices", 200, 40*time.Millisecond)
	observability.ObserveDecode("get_prices", "structured")
	observability.ObserveNegotiation("cancel", "unsupported")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"sigtrip_wrapper_http_requests_total",
		"sigtrip_wrapper_upstream_requests_total",
		"sigtrip_wrapper_upstream_decode_total",
		`sigtrip_wrapper_negotiation_outcomes_total{operation="cancel",outcome="unsupported"}`,
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestRecorderCountsNegotiation(t *testing.T) {
	reg := observability.InitRegistry()
	observability.Recorder{}.Negotiation("status", "confirmed")

	rr := httptest.NewRecorder()
	observability.MetricsHandler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `sigtrip_wrapper_negotiation_outcomes_total{operation="status",outcome="confirmed"} 1`) {
		t.Fatalf("recorder outcome missing:\n%s", rr.Body.String())
	}
}

func TestLabelErr(t *testing.T) {
	if got := observability.LabelErr(nil); got != "none" {
		t.Fatalf("nil error label: %q", got)
	}
	if got := observability.LabelErr(errors.New("x")); got != "*errors.errorString" {
		t.Fatalf("unexpected label %q", got)
	}
}
