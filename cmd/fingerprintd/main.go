// Package main implements the fingerprintd CLI: run the detection engine as
// an HTTP sidecar, run a single detect pass against a saved request, or
// scaffold a config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/fingerprintd/internal/config"
	httpserver "github.com/fyrsmithlabs/fingerprintd/internal/http"
	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/logging"
	"github.com/fyrsmithlabs/fingerprintd/internal/ruleloader"
	"github.com/fyrsmithlabs/fingerprintd/pkg/fingerprint"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fingerprintd",
	Short:   "Web technology fingerprinting engine",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.config/fingerprintd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override the configured log format (json, console)")

	rootCmd.AddCommand(serveCmd, detectCmd, initCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP detection API",
	RunE:  runServe,
}

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Run one detection pass against a saved request and print the result as JSON",
	Long: `detect reads a JSON document of the form
  {"headers": {...}, "urls": [...], "body": "..."}
from a file argument or stdin ("-") and prints the detected technologies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default config directory and a starter config.yaml",
	RunE:  runInit,
}

func loadAppConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if logLevel != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logCfg.Level = lvl
	}
	if logFormat != "" {
		logCfg.Format = logFormat
	}

	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func fingerprintConfig(rules config.RulesConfig, detection config.DetectionConfig) fingerprint.Config {
	return fingerprint.Config{
		Origin:         fingerprint.OriginKind(rules.Origin),
		LocalPath:      rules.LocalPath,
		CustomURL:      rules.CustomURL,
		CacheDir:       rules.CacheDir,
		CheckUpdate:    rules.CheckUpdate,
		Timeout:        rules.Timeout,
		RetryMax:       rules.RetryMaxAttempts,
		RetryWait:      rules.RetryBackoff,
		IgnoreListPath: rules.IgnoreListPath,
		MaxBodySizeKB:  detection.MaxBodySizeKB,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Rules.Timeout*time.Duration(cfg.Rules.RetryMaxAttempts+1))
	lib, err := fingerprint.Init(ctx, fingerprintConfig(cfg.Rules, cfg.Detection))
	cancel()
	if err != nil {
		return fmt.Errorf("init rule library: %w", err)
	}
	lib.UseAsGlobal()

	techCount, catCount := lib.Stats()
	logger.Info(cmd.Context(), "rule library loaded",
		zap.String("origin", cfg.Rules.Origin),
		zap.Int("technologies", techCount),
		zap.Int("categories", catCount),
	)

	if cfg.Rules.WatchForUpdates {
		ignore, err := ignorelist.Load(cfg.Rules.IgnoreListPath)
		if err != nil {
			return fmt.Errorf("load ignore list: %w", err)
		}
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		go func() {
			origin := ruleloader.Origin{Kind: ruleloader.OriginEmbedded}
			switch cfg.Rules.Origin {
			case "remote-official":
				origin = ruleloader.Origin{Kind: ruleloader.OriginRemoteOfficial}
			case "remote-custom":
				origin = ruleloader.Origin{Kind: ruleloader.OriginRemoteCustom, URL: cfg.Rules.CustomURL}
			}
			loaderCfg := ruleloader.Config{Origin: origin, CacheDir: cfg.Rules.CacheDir}
			maxBodyBytes := cfg.Detection.MaxBodySizeKB * 1024
			if err := ruleloader.Watch(watchCtx, loaderCfg, ignore, maxBodyBytes, logger.Underlying()); err != nil {
				logger.Error(watchCtx, "rule cache watch stopped", zap.Error(err))
			}
		}()
	}

	server, err := httpserver.NewServer(logger.Underlying(), &httpserver.Config{
		Port:       cfg.Server.Port,
		RuleOrigin: cfg.Rules.Origin,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sigCh:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var req struct {
		Headers map[string][]string `json:"headers"`
		URLs    []string            `json:"urls"`
		Body    string              `json:"body"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	lib, err := fingerprint.Init(cmd.Context(), fingerprintConfig(cfg.Rules, cfg.Detection))
	if err != nil {
		return fmt.Errorf("init rule library: %w", err)
	}

	result := lib.Detect(req.Headers, req.URLs, []byte(req.Body))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

const starterConfig = `server:
  http_port: 9090
  shutdown_timeout: 10s
observability:
  enable_telemetry: false
  service_name: fingerprintd
rules:
  origin: embedded
  check_update: false
  timeout: 10s
  retry_max_attempts: 3
  retry_backoff: 500ms
  watch_for_updates: false
detection:
  max_body_size_kb: 2048
`

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	path := home + "/.config/fingerprintd/config.yaml"

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stdout, "config already exists at %s, leaving it untouched\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("write starter config: %w", err)
	}

	fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	return nil
}
