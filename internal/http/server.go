package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fingerprintd/internal/detect"
)

const defaultMaxDetectBodyBytes = 10 << 20 // 10MiB, overridden by Config.MaxBodyBytes when set

// Config carries the HTTP server's listen address, request limits, and the
// rule origin label surfaced at /v1/status.
type Config struct {
	Host         string
	Port         int
	RuleOrigin   string
	MaxBodyBytes int64
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server hosts the detection API: liveness, Prometheus metrics, and the
// fingerprinting endpoint itself. It holds no rule-library state of its
// own; the compiled library lives behind the process-wide detect.Global
// singleton so a rule-cache reload (internal/ruleloader's Watch) is
// visible to every in-flight request without restarting the server.
type Server struct {
	echo    *echo.Echo
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// NewServer builds a Server with its routes and middleware wired. logger
// must not be nil.
func NewServer(logger *zap.Logger, cfg *Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxDetectBodyBytes
	}

	s := &Server{
		echo:    echo.New(),
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(s.requestLoggingMiddleware())
	s.echo.Use(s.metrics.MetricsMiddleware())

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/v1/status", s.handleStatus)
	s.echo.POST("/v1/detect", s.handleDetect)
}

// requestLoggingMiddleware logs one structured line per request: Info for
// 2xx/3xx, Warn for 4xx, Error for 5xx.
func (s *Server) requestLoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Int64("bytes", res.Size),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}

			switch {
			case res.Status >= 500:
				s.logger.Error("request", fields...)
			case res.Status >= 400:
				s.logger.Warn("request", fields...)
			default:
				s.logger.Info("request", fields...)
			}

			return err
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{Status: "ok", RuleOrigin: s.config.RuleOrigin}

	d, err := detect.Global(c.Request().Context())
	if err != nil {
		resp.Status = "not_ready"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.TechnologyCount, resp.CategoryCount = d.Stats()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDetect(c echo.Context) error {
	req := c.Request()
	detectID := uuid.NewString()

	limited := http.MaxBytesReader(c.Response(), req.Body, s.config.MaxBodyBytes)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"message": "request body too large"})
	}

	var dr DetectRequest
	if err := json.Unmarshal(raw, &dr); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON body"})
	}

	d, err := detect.Global(req.Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "rule library not ready"})
	}

	result := d.Detect(dr.Headers, dr.URLs, []byte(dr.Body))
	s.logger.Info("detect",
		zap.String("detect_id", detectID),
		zap.Int("urls", len(dr.URLs)),
		zap.Int("technologies_found", len(result.Technologies)),
	)
	return c.JSON(http.StatusOK, DetectResponse{DetectResult: result, DetectID: detectID})
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.addr()))
	return s.echo.Start(s.config.addr())
}

// Shutdown gracefully drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
