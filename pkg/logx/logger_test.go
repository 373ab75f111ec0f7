package logx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf}).With(FieldUserID, 7).WithComponent(ComponentLedger)
	l.Info("hello")
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=ledger") {
		t.Fatalf("unexpected component attrs: %s", out)
	}
	if !strings.Contains(out, "user_id=7") {
		t.Fatalf("expected inherited attrs: %s", out)
	}
}

func TestErrIncludesOperation(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	l.Err(context.Background(), "publish", errors.New("broker down"))
	out := buf.String()
	if !strings.Contains(out, `"operation":"publish"`) || !strings.Contains(out, "broker down") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestGinMiddlewareAssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(New(Config{Output: &buf})))
	r.GET("/ping", func(c *gin.Context) {
		if RequestID(c) == "" {
			t.Errorf("request id missing in handler")
		}
		c.Status(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID response header")
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "status_code=418") {
		t.Fatalf("expected warn line with status: %s", buf.String())
	}
}
