package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigJSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"root_url": "https://example.com/"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/", cfg.RootURL)
	assert.Equal(t, "urls.txt", cfg.OutputFile)
	assert.Equal(t, "iPhone", cfg.UserAgent)
	assert.Equal(t, 11, cfg.Backlinks())
	assert.Equal(t, 4, cfg.ConcurrentWorkers)
	assert.True(t, cfg.SameHost())
	assert.True(t, cfg.Cookies())
	assert.False(t, cfg.Relative)
	assert.Empty(t, cfg.Excludes())
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
root_url = "http://example.com/"
relative = true
output_file = "out.txt"
exclude_patterns = ["/brochure/", "/publish"]
same_host_only = false
accept_cookies = false
max_depth = 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Relative)
	assert.Equal(t, "out.txt", cfg.OutputFile)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.False(t, cfg.SameHost())
	assert.False(t, cfg.Cookies())
	require.Len(t, cfg.Excludes(), 2)
	assert.True(t, cfg.Excludes()[0].MatchString("http://example.com/brochure/x"))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.json", `{"root_url": `))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.toml", `root_url = `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing root", func(c *Config) { c.RootURL = "" }},
		{"relative root", func(c *Config) { c.RootURL = "/path" }},
		{"ftp root", func(c *Config) { c.RootURL = "ftp://example.com/" }},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }},
		{"no workers", func(c *Config) { c.ConcurrentWorkers = 0 }},
		{"tiny timeout", func(c *Config) { c.RequestTimeoutMs = 10 }},
		{"negative delay", func(c *Config) { c.RequestDelayMs = -1 }},
		{"bad pattern", func(c *Config) { c.ExcludePatterns = []string{"("} }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"negative backlink limit", func(c *Config) { c.BacklinkLimit = intPtr(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.RootURL = "http://example.com/"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultIsValidWithRoot(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.RootURL = "http://example.com/"
	assert.NoError(t, cfg.Validate())
}

func TestExampleConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config.example.toml")
	require.NoError(t, err)

	cfg.RootURL = "https://example.com/"
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Excludes(), 4)
	assert.Equal(t, 11, cfg.Backlinks())
	assert.True(t, cfg.SameHost())
}

func TestBacklinkLimitZeroIsKept(t *testing.T) {
	path := writeFile(t, "config.toml", "root_url = \"https://example.com/\"\nbacklink_limit = 0\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Backlinks())

	assert.Equal(t, 11, Default().Backlinks())
}
