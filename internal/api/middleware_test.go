package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func serveLogged(status int) string {
	var buf bytes.Buffer
	handler := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	return buf.String()
}

func TestRequestLoggerSeverity(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		line := serveLogged(tt.status)
		if !strings.Contains(line, `"level":"`+tt.level+`"`) {
			t.Errorf("status %d: expected %s level, got %s", tt.status, tt.level, line)
		}
	}
}

func TestRequestLoggerFields(t *testing.T) {
	line := serveLogged(http.StatusOK)
	for _, field := range []string{`"component":"api"`, `"method":"GET"`, `"path":"/api/v1/jobs"`, `"status":200`} {
		if !strings.Contains(line, field) {
			t.Errorf("missing %s in %s", field, line)
		}
	}
}
