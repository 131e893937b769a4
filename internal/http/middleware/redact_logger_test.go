package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func TestRedactingLogger_MasksMeetingPasscodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/bots", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/bots?meeting_url=https://zoom.us/j/123?pwd=SuperSecret99", nil)
	r.ServeHTTP(w, req)

	out := buf.String()
	if strings.Contains(out, "SuperSecret99") {
		t.Fatalf("passcode leaked into log: %s", out)
	}
	if !strings.Contains(out, "pwd=[REDACTED]") {
		t.Fatalf("expected pwd=[REDACTED] in log: %s", out)
	}
}

func TestRedactingLogger_MasksWorkerTokenHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.POST("/internal/bots/b1/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/bots/b1/events", nil)
	req.Header.Set(HeaderWorkerToken, "worker-secret-token")
	req.Header.Set("X-Api-Key", "api-secret")
	req.Header.Set("Accept", "application/json")
	r.ServeHTTP(w, req)

	out := buf.String()
	for _, secret := range []string{"worker-secret-token", "api-secret"} {
		if strings.Contains(out, secret) {
			t.Fatalf("secret %q leaked into log: %s", secret, out)
		}
	}
	if !strings.Contains(out, "application/json") {
		t.Fatalf("benign header should survive: %s", out)
	}
}

func TestRedactingLogger_MasksIdentifiersAndEmails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/bots", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/bots?owner=alice@example.com&ref=6f1e0e8a-8d2a-4c7d-9a6b-1f2e3d4c5b6a", nil)
	r.ServeHTTP(w, req)

	out := buf.String()
	if strings.Contains(out, "alice@example.com") || strings.Contains(out, "6f1e0e8a") {
		t.Fatalf("identifier leaked into log: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:email]") || !strings.Contains(out, "[REDACTED:id]") {
		t.Fatalf("expected redaction markers: %s", out)
	}
}

func TestRedactingLogger_StatusSeverity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, level := range map[string]string{"/missing": `"level":"warn"`, "/boom": `"level":"error"`} {
		buf.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if !strings.Contains(buf.String(), level) {
			t.Fatalf("%s: expected %s in %s", path, level, buf.String())
		}
	}
}
