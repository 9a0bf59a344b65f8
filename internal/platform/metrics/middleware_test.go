package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func serveWithStatus(m *Metrics, status int) {
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestRequestMiddleware_CountsRequestsAndErrors(t *testing.T) {
	m := New()

	serveWithStatus(m, http.StatusOK)
	serveWithStatus(m, http.StatusInternalServerError)
	serveWithStatus(m, http.StatusBadRequest)

	if got := testutil.ToFloat64(m.requestsTotal); got != 3 {
		t.Errorf("expected 3 requests counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 2 {
		t.Errorf("expected 2 error responses counted, got %v", got)
	}
}

func TestRequestMiddleware_RateLimitRejectionIsNotAnError(t *testing.T) {
	m := New()

	serveWithStatus(m, http.StatusTooManyRequests)

	if got := testutil.ToFloat64(m.requestsTotal); got != 1 {
		t.Errorf("expected the request counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 0 {
		t.Errorf("429 must not count as an error, got %v", got)
	}
}
