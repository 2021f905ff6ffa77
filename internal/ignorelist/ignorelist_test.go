package ignorelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPath(t *testing.T) {
	list, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, list.Techs)
	assert.Empty(t, list.Categories)
	assert.True(t, list.Allows("anything", nil))
}

func TestLoad_MissingFile(t *testing.T) {
	list, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.True(t, list.Allows("anything", nil))
}

func TestLoad_ParsesExclusions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.toml")
	content := `technologies = ["WordPress", " React "]
categories = [1, 18]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	list, err := Load(path)
	require.NoError(t, err)

	assert.False(t, list.Allows("WordPress", nil), "case preserved in the name lookup is still excluded")
	assert.False(t, list.Allows("react", nil), "surrounding whitespace is trimmed on load")
	assert.False(t, list.Allows("anything", []uint32{18}))
	assert.True(t, list.Allows("Drupal", []uint32{7}))
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestAllows_NilReceiver(t *testing.T) {
	var list *List
	assert.True(t, list.Allows("anything", []uint32{1}))
}
