package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, int64(15*1024), cfg.MinImageBytes)
	assert.Equal(t, 400, cfg.MinWidth)
	assert.Equal(t, 400, cfg.MinHeight)
	assert.Equal(t, 5, cfg.MinImagesThreshold)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.SaveMetadata)
	assert.False(t, cfg.RespectRobots)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().OutputDir, cfg.OutputDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"output_dir: /tmp/galleries\nconcurrency: 2\nretry_delay: 5s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/galleries", cfg.OutputDir)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, false},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, false},
		{"zero job concurrency", func(c *Config) { c.JobConcurrency = 0 }, false},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, false},
		{"zero retries ok", func(c *Config) { c.MaxRetries = 0 }, true},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, false},
		{"zero timeout", func(c *Config) { c.PageTimeout = 0 }, false},
		{"negative min width", func(c *Config) { c.MinWidth = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoadURLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# seed galleries\nhttps://example.com/gallery/one\n\n  https://example.com/gallery/two  \n# comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	urls, err := LoadURLFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/gallery/one",
		"https://example.com/gallery/two",
	}, urls)
}

func TestLoadHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.yaml")
	content := "headers:\n  X-Custom: abc\ncookies:\n  session: xyz\n  theme: dark\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	hs, err := LoadHeaders(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "abc", hs.Headers["X-Custom"])
	assert.Equal(t, "session=xyz; theme=dark", hs.CookieHeader())
}

func TestLoadHeadersEmptyPath(t *testing.T) {
	hs, err := LoadHeaders("")
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, hs.Headers)
	assert.Equal(t, "", hs.CookieHeader())
}
