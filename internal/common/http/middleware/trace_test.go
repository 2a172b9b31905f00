package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ojjudge/internal/common/http/middleware"
	"ojjudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

func newTraceRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.TraceContext(), middleware.RequestLogger())
	router.GET("/trace", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, gin.H{
			"trace_id":   ctx.Value(contextkey.TraceID),
			"request_id": ctx.Value(contextkey.RequestID),
		})
	})
	return router
}

func TestTraceContextGeneratesIDs(t *testing.T) {
	t.Parallel()
	router := newTraceRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("expected trace id header")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestTraceContextPreservesIncomingIDs(t *testing.T) {
	t.Parallel()
	router := newTraceRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	req.Header.Set("X-Trace-Id", "trace-abc")
	req.Header.Set("X-Request-Id", "req-xyz")
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-Id"); got != "trace-abc" {
		t.Fatalf("trace id = %q", got)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-xyz" {
		t.Fatalf("request id = %q", got)
	}
}
