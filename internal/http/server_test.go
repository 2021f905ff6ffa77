package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fingerprintd/internal/detect"
	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

const testRulesJSON = `{
  "categories": {"1": {"name": "CMS", "priority": 1}},
  "technologies": {
    "WordPress": {
      "cats": [1],
      "headers": {"X-Powered-By": "WordPress"},
      "html": "wp-content"
    }
  }
}`

func mustTestDetector(t *testing.T) *detect.TechDetector {
	t.Helper()
	lib, _, err := rulelib.ParseWappalyzerJSON([]byte(testRulesJSON))
	if err != nil {
		t.Fatalf("parse test rules: %v", err)
	}
	compiled := rulelib.CompileLibrary(lib)
	return detect.NewTechDetector(compiled, &ignorelist.List{}, 0)
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090}

		server, err := NewServer(zap.NewNop(), cfg)
		if err != nil {
			t.Fatalf("NewServer() error = %v", err)
		}
		if server == nil || server.echo == nil {
			t.Fatal("expected non-nil server with echo instance")
		}
		if server.config != cfg {
			t.Error("expected server to retain the provided config")
		}
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(zap.NewNop(), nil)
		if err != nil {
			t.Fatalf("NewServer() error = %v", err)
		}
		if server.config.Host != "localhost" {
			t.Errorf("Host = %q, want localhost", server.config.Host)
		}
		if server.config.Port != 9090 {
			t.Errorf("Port = %d, want 9090", server.config.Port)
		}
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		if err == nil {
			t.Fatal("expected error for nil logger")
		}
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestHandleStatus(t *testing.T) {
	t.Run("reports not_ready with no detector installed", func(t *testing.T) {
		detect.Swap(nil)
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("reports technology and category counts", func(t *testing.T) {
		detect.Swap(mustTestDetector(t))
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp StatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.TechnologyCount != 1 {
			t.Errorf("TechnologyCount = %d, want 1", resp.TechnologyCount)
		}
		if resp.CategoryCount != 1 {
			t.Errorf("CategoryCount = %d, want 1", resp.CategoryCount)
		}
	})
}

func TestHandleDetect(t *testing.T) {
	detect.Swap(mustTestDetector(t))

	t.Run("detects a technology from headers and html", func(t *testing.T) {
		server := setupTestServer(t)

		reqBody := DetectRequest{
			Headers: map[string][]string{"X-Powered-By": {"WordPress"}},
			URLs:    []string{"https://example.com/"},
			Body:    "<html><body>wp-content/themes/x</body></html>",
		}
		body, err := json.Marshal(reqBody)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
		}

		var resp DetectResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		found := false
		for _, tech := range resp.Technologies {
			if tech.Name == "WordPress" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected WordPress in detected technologies, got %+v", resp.Technologies)
		}
	})

	t.Run("handles invalid json", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader([]byte("not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("handles empty body as empty detection request", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/detect", bytes.NewReader([]byte("{}")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 0}

		server, err := NewServer(zap.NewNop(), cfg)
		if err != nil {
			t.Fatalf("NewServer() error = %v", err)
		}

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}

		select {
		case err := <-errChan:
			if err != nil && err != http.ErrServerClosed {
				t.Errorf("Start() error = %v", err)
			}
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		if rec.Header().Get("X-Request-Id") == "" {
			t.Error("expected X-Request-Id header to be set")
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t)
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()

		server.echo.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

// setupTestServer creates a test server with default configuration.
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &Config{Host: "localhost", Port: 9090}
	server, err := NewServer(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server
}
