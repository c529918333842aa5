package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := &Agent{http: &http.Client{Timeout: time.Second}}
	if err := a.ProbeHealth(context.Background(), srv.URL+"/health"); err != nil {
		t.Errorf("healthy probe failed: %v", err)
	}
	if err := a.ProbeHealth(context.Background(), srv.URL+"/down"); err == nil {
		t.Error("unhealthy probe should fail")
	}
}
