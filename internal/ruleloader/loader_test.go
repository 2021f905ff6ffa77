package ruleloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	lib, stats, err := Load(context.Background(), Config{Origin: Origin{Kind: OriginEmbedded}})
	require.NoError(t, err)
	assert.Greater(t, stats.TotalTechs, 0)
	assert.NotEmpty(t, lib.TechPatterns)
	assert.Contains(t, lib.TechPatterns, "WordPress")
}

func TestLoad_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	const content = `{
		"categories": {"1": {"name": "CMS", "priority": 1}},
		"technologies": {"Ghost": {"cats": [1], "headers": {"X-Ghost-Cache": ""}}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	lib, _, err := Load(context.Background(), Config{Origin: Origin{Kind: OriginLocalFile, Path: path}})
	require.NoError(t, err)
	assert.Contains(t, lib.TechPatterns, "Ghost")
}

func TestLoad_LocalFileMissing(t *testing.T) {
	_, _, err := Load(context.Background(), Config{Origin: Origin{Kind: OriginLocalFile, Path: "/no/such/file.json"}})
	assert.Error(t, err)
}

func TestLoad_UnknownOrigin(t *testing.T) {
	_, _, err := Load(context.Background(), Config{Origin: Origin{Kind: OriginKind(99)}})
	assert.Error(t, err)
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "embedded", Origin{Kind: OriginEmbedded}.String())
	assert.Equal(t, "local-file(/tmp/x.json)", Origin{Kind: OriginLocalFile, Path: "/tmp/x.json"}.String())
	assert.Equal(t, "remote-official", Origin{Kind: OriginRemoteOfficial}.String())
	assert.Equal(t, "remote-custom(https://example.com/rules.json)", Origin{Kind: OriginRemoteCustom, URL: "https://example.com/rules.json"}.String())
}
