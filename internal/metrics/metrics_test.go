package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ErlanBelekov/quicksand/internal/health"
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeReadiness struct {
	status string
}

func (f fakeReadiness) Readiness(_ context.Context) health.HealthResult {
	return health.HealthResult{Status: f.status}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"up", http.StatusOK},
		{"down", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		srv := metrics.NewServer(":0", fakeReadiness{status: tt.status})
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if w.Code != tt.want {
			t.Errorf("status %q: code = %d, want %d", tt.status, w.Code, tt.want)
		}
	}
}

func TestRegister_AcceptsFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "quicksand_logins_total" {
			found = true
		}
	}
	if !found {
		t.Error("quicksand_logins_total not gathered")
	}
}
