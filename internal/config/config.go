package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/refdoc/internal/parser"
	"github.com/dgallion1/refdoc/internal/render"
)

type Config struct {
	// Corpus
	SourceDir  string   `yaml:"source_dir"`
	OutDir     string   `yaml:"out_dir"`
	Extensions []string `yaml:"extensions"`

	// Rendering
	Format             string `yaml:"format"`
	IncludeSourceLinks bool   `yaml:"include_source_links"`
	SourceBaseURL      string `yaml:"source_base_url"`
	WriteIndex         bool   `yaml:"write_index"`

	// Any failed document makes the run fail.
	Strict bool `yaml:"strict"`

	// Worker pool
	WorkerCount int `yaml:"worker_count"`

	// Documents larger than this are skipped.
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`

	// Preview server
	Port          string        `yaml:"port"`
	APIKey        string        `yaml:"api_key"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

func Load() Config {
	cfg := Config{
		SourceDir:  envOr("REFDOC_SOURCE", "doc"),
		OutDir:     envOr("REFDOC_OUT", "html"),
		Extensions: envList("REFDOC_EXTENSIONS", parser.DefaultExtensions),

		Format:             envOr("REFDOC_FORMAT", string(render.Hypertext)),
		IncludeSourceLinks: envBool("REFDOC_INCLUDE_SOURCE_LINKS", false),
		SourceBaseURL:      os.Getenv("REFDOC_SOURCE_BASE_URL"),
		WriteIndex:         envBool("REFDOC_WRITE_INDEX", true),

		Strict: envBool("REFDOC_STRICT", false),

		WorkerCount: envInt("REFDOC_WORKERS", 4),

		MaxDocumentBytes: envInt64("REFDOC_MAX_DOCUMENT_BYTES", 16777216), // 16MB

		Port:          envOr("REFDOC_PORT", "8090"),
		APIKey:        os.Getenv("REFDOC_API_KEY"),
		WatchDebounce: envDuration("REFDOC_WATCH_DEBOUNCE", 300*time.Millisecond),

		LogLevel:  envOr("REFDOC_LOG_LEVEL", "info"),
		LogFormat: envOr("REFDOC_LOG_FORMAT", "text"),

		PDFFallbackPdftotext: envBool("REFDOC_PDF_FALLBACK_PDFTOTEXT", true),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxDocumentBytes <= 0 {
		c.MaxDocumentBytes = 16777216
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = 300 * time.Millisecond
	}
	if len(c.Extensions) == 0 {
		c.Extensions = parser.DefaultExtensions
	}
}

// LoadFile overlays the YAML file at path onto cfg. Environment variables in
// the file are expanded first; unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return nil
}

func (c Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source directory is required")
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		return err
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
		if _, err := parser.ForFile("x" + ext); err != nil {
			return err
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name such as "debug" or "warn" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma separated list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
