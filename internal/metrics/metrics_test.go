package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("test-route"))
	r.Get("/interviews/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/interviews/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	}

	assert.Contains(t, scrape(t), `aiproctor_http_requests_total{method="GET",path="/interviews/{id}",service="test-route",status="418"} 2`)
}

func TestMiddleware_Unmatched(t *testing.T) {
	h := Middleware("test-plain")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Contains(t, scrape(t), `aiproctor_http_requests_total{method="GET",path="unmatched",service="test-plain",status="200"} 1`)
}

func TestObserveLLM(t *testing.T) {
	ObserveLLM("test-provider", "grade", time.Now(), errors.New("boom"))
	ObserveLLM("test-provider", "grade", time.Now(), nil)

	body := scrape(t)
	assert.Contains(t, body, `aiproctor_llm_request_duration_seconds_count{operation="grade",outcome="error",provider="test-provider"} 1`)
	assert.Contains(t, body, `aiproctor_llm_request_duration_seconds_count{operation="grade",outcome="success",provider="test-provider"} 1`)
}

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rr.Code)
	}
	return rr.Body.String()
}

func TestHandler(t *testing.T) {
	SessionsActive.Set(0)
	assert.True(t, strings.Contains(scrape(t), "aiproctor_interview_sessions_active 0"))
}
