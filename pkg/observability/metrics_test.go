package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.HTTPRequestDuration == nil {
			t.Error("HTTPRequestDuration is nil")
		}
		if metrics.AuthAttemptsTotal == nil {
			t.Error("AuthAttemptsTotal is nil")
		}
		if metrics.TokenVerificationsTotal == nil {
			t.Error("TokenVerificationsTotal is nil")
		}
		if metrics.OAuthCallDuration == nil {
			t.Error("OAuthCallDuration is nil")
		}
		if metrics.StorageOperationsTotal == nil {
			t.Error("StorageOperationsTotal is nil")
		}
	})

	t.Run("nil registry gets a private one", func(t *testing.T) {
		metrics := NewMetrics(nil)
		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}
		// A second call must not panic on duplicate registration.
		if NewMetrics(nil) == nil {
			t.Fatal("second NewMetrics returned nil")
		}
	})
}

func TestMetrics_RecordAuthAttempt(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordAuthAttempt("tenant_oauth", "success")
	metrics.RecordAuthAttempt("tenant_oauth", "success")
	metrics.RecordAuthAttempt("tenant_oauth", "denied")

	got := testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("tenant_oauth", "success"))
	if got != 2 {
		t.Errorf("Expected 2 successful attempts, got %v", got)
	}
	got = testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("tenant_oauth", "denied"))
	if got != 1 {
		t.Errorf("Expected 1 denied attempt, got %v", got)
	}
}

func TestMetrics_RecordTokenVerification(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordTokenVerification("valid")
	metrics.RecordTokenVerification("expired")

	if got := testutil.ToFloat64(metrics.TokenVerificationsTotal.WithLabelValues("valid")); got != 1 {
		t.Errorf("Expected 1 valid verification, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.TokenVerificationsTotal.WithLabelValues("expired")); got != 1 {
		t.Errorf("Expected 1 expired verification, got %v", got)
	}
}

func TestMetrics_RecordStorageOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.RecordStorageOperation("find_by_identity", nil)
	metrics.RecordStorageOperation("find_by_identity", errors.New("connection refused"))

	if got := testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("find_by_identity", "success")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("find_by_identity", "error")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestMetrics_ObserveOAuthCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveOAuthCall("exchange_code", 50*time.Millisecond)

	count := testutil.CollectAndCount(metrics.OAuthCallDuration, "hubgate_oauth_call_duration_seconds")
	if count == 0 {
		t.Error("Expected oauth call duration to be observed")
	}
}

func TestMetrics_HTTPMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := metrics.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Middleware must pass the status through, got %d", w.Code)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/auth/status", "418"))
	if got != 1 {
		t.Errorf("Expected 1 recorded request, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordAuthAttempt("none", "success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics handler, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hubgate_auth_attempts_total") {
		t.Error("Expected exposition to contain hubgate_auth_attempts_total")
	}
}
