package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fingerprintd/internal/config"
	"github.com/fyrsmithlabs/fingerprintd/pkg/fingerprint"
)

func TestFingerprintConfig_MapsFields(t *testing.T) {
	rules := config.RulesConfig{
		Origin:           "local",
		LocalPath:        "/tmp/rules.json",
		CustomURL:        "https://example.com/rules.json",
		CacheDir:         "/tmp/cache",
		CheckUpdate:      true,
		Timeout:          5 * time.Second,
		RetryMaxAttempts: 2,
		RetryBackoff:     time.Second,
		IgnoreListPath:   "/tmp/ignore.toml",
	}
	detection := config.DetectionConfig{MaxBodySizeKB: 4096}

	got := fingerprintConfig(rules, detection)
	assert.Equal(t, fingerprint.OriginLocalFile, got.Origin)
	assert.Equal(t, rules.LocalPath, got.LocalPath)
	assert.Equal(t, rules.CustomURL, got.CustomURL)
	assert.Equal(t, rules.CacheDir, got.CacheDir)
	assert.Equal(t, rules.CheckUpdate, got.CheckUpdate)
	assert.Equal(t, rules.Timeout, got.Timeout)
	assert.Equal(t, rules.RetryMaxAttempts, got.RetryMax)
	assert.Equal(t, rules.RetryBackoff, got.RetryWait)
	assert.Equal(t, rules.IgnoreListPath, got.IgnoreListPath)
	assert.Equal(t, detection.MaxBodySizeKB, got.MaxBodySizeKB)
}

func TestRunInit_WritesStarterConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cmd := &cobra.Command{}
	require.NoError(t, runInit(cmd, nil))

	path := filepath.Join(home, ".config", "fingerprintd", "config.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, starterConfig, string(data))
}

func TestRunInit_LeavesExistingConfigUntouched(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "fingerprintd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("custom: true\n"), 0o600))

	cmd := &cobra.Command{}
	require.NoError(t, runInit(cmd, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))
}

func TestRunDetect_ReadsFileAndPrintsJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath = ""
	logLevel = ""
	logFormat = ""

	reqPath := filepath.Join(home, "request.json")
	reqBody := `{"headers":{"X-Powered-By":["WordPress"]},"urls":[],"body":""}`
	require.NoError(t, os.WriteFile(reqPath, []byte(reqBody), 0o600))

	cmd := &cobra.Command{}
	var out bytes.Buffer
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := runDetect(cmd, []string{reqPath})

	w.Close()
	os.Stdout = origStdout
	_, _ = out.ReadFrom(r)

	require.NoError(t, runErr)

	var result struct {
		Technologies []struct {
			Name string `json:"name"`
		} `json:"technologies"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	found := false
	for _, tech := range result.Technologies {
		if tech.Name == "WordPress" {
			found = true
		}
	}
	assert.True(t, found)
}
