package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "hypertext", cfg.Format)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, 300*time.Millisecond, cfg.WatchDebounce)
	require.True(t, cfg.WriteIndex)
	require.False(t, cfg.Strict)
	require.NotEmpty(t, cfg.Extensions)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REFDOC_SOURCE", "corpus")
	t.Setenv("REFDOC_FORMAT", "plaintext")
	t.Setenv("REFDOC_WORKERS", "-2")
	t.Setenv("REFDOC_EXTENSIONS", ".pod6, .md,")
	t.Setenv("REFDOC_STRICT", "true")
	t.Setenv("REFDOC_WATCH_DEBOUNCE", "1s")
	t.Setenv("REFDOC_MAX_DOCUMENT_BYTES", "not-a-number")

	cfg := Load()
	require.Equal(t, "corpus", cfg.SourceDir)
	require.Equal(t, "plaintext", cfg.Format)
	require.Equal(t, 4, cfg.WorkerCount, "non-positive worker count falls back to the default")
	require.Equal(t, []string{".pod6", ".md"}, cfg.Extensions)
	require.True(t, cfg.Strict)
	require.Equal(t, time.Second, cfg.WatchDebounce)
	require.Equal(t, int64(16777216), cfg.MaxDocumentBytes)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("DOCS_ROOT", "/srv/docs")
	path := filepath.Join(t.TempDir(), "refdoc.yaml")
	body := `source_dir: ${DOCS_ROOT}
out_dir: public
format: plaintext
include_source_links: true
source_base_url: https://example.org/src
worker_count: 8
watch_debounce: 750ms
extensions: [.rakudoc, .pod6]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg := Load()
	require.NoError(t, LoadFile(path, &cfg))
	require.Equal(t, "/srv/docs", cfg.SourceDir)
	require.Equal(t, "public", cfg.OutDir)
	require.Equal(t, "plaintext", cfg.Format)
	require.True(t, cfg.IncludeSourceLinks)
	require.Equal(t, "https://example.org/src", cfg.SourceBaseURL)
	require.Equal(t, 8, cfg.WorkerCount)
	require.Equal(t, 750*time.Millisecond, cfg.WatchDebounce)
	require.Equal(t, []string{".rakudoc", ".pod6"}, cfg.Extensions)
	// Keys missing from the file keep their earlier values.
	require.True(t, cfg.WriteIndex)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdoc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sourcedir: doc\n"), 0o644))

	cfg := Load()
	err := LoadFile(path, &cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sourcedir")
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg := Load()
	require.NoError(t, LoadFile(path, &cfg))
	require.Equal(t, Load(), cfg)
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Load()
	require.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no source", func(c *Config) { c.SourceDir = "" }, "source directory"},
		{"bad format", func(c *Config) { c.Format = "pdf" }, "unknown output format"},
		{"extension without dot", func(c *Config) { c.Extensions = []string{"md"} }, "must start with a dot"},
		{"unsupported extension", func(c *Config) { c.Extensions = []string{".rst"} }, "unsupported file extension"},
		{"import formats", func(c *Config) { c.Extensions = []string{".docx", ".pdf"} }, ""},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "INFO": "INFO", "warn": "WARN", "error": "ERROR"} {
		l, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, l.String())
	}
}
