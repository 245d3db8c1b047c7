package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Url      string `json:"url"`
	Attempts int    `json:"attempts"`
	Nested   struct {
		Enabled bool   `json:"enabled"`
		Name    string `json:"name"`
	} `json:"nested"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "seatgrab.json5"), []byte(`{
		// comments are allowed
		url: "https://example.com/graphql",
		attempts: 3,
		nested: { name: "base" },
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "seatgrab.local.json5"), []byte(`{
		attempts: 1,
		nested: { enabled: true },
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "seatgrab.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/graphql", cfg.Url)
	require.Equal(t, 1, cfg.Attempts)
	require.True(t, cfg.Nested.Enabled)
	require.Equal(t, "base", cfg.Nested.Name)
}

func TestReadConfigNotFound(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{ url: `), 0600))

	_, err := ReadConfig[testConfig](path)
	require.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	var defaults testConfig
	defaults.Url = "https://default"
	defaults.Attempts = 3
	defaults.Nested.Name = "default"

	var cfg testConfig
	cfg.Attempts = 5

	merged, err := WithDefaults(cfg, defaults)
	require.NoError(t, err)
	require.Equal(t, "https://default", merged.Url)
	require.Equal(t, 5, merged.Attempts)
	require.Equal(t, "default", merged.Nested.Name)
}
