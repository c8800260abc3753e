package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"resume-optimizer/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(telemetry.SetLogger(zap.New(core)))

	router := gin.New()
	router.Use(RequestID(), Identity(), Logging())
	router.GET("/test", func(c *gin.Context) {
		c.Set("sessionId", "session-1")
		c.Set("stage", "parse_resume")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	entries := logs.FilterMessage("request.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 request.complete entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()

	for _, key := range []string{"request_id", "user_id", "duration_ms", "status", "session_id", "stage"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if fields["user_id"] != "guest:guest1" {
		t.Fatalf("unexpected user_id: %v", fields["user_id"])
	}
	if fields["session_id"] != "session-1" {
		t.Fatalf("unexpected session_id: %v", fields["session_id"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Fatalf("unexpected status: %v", fields["status"])
	}
}

func TestLoggingSkipsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(telemetry.SetLogger(zap.New(core)))

	router := gin.New()
	router.Use(Logging())
	router.OPTIONS("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := len(logs.FilterMessage("request.complete").All()); got != 0 {
		t.Fatalf("expected no log entries for preflight, got %d", got)
	}
}
