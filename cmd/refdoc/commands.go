package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/refdoc/internal/api"
	"github.com/dgallion1/refdoc/internal/config"
	"github.com/dgallion1/refdoc/internal/logfields"
	"github.com/dgallion1/refdoc/internal/metrics"
	"github.com/dgallion1/refdoc/internal/parser"
	"github.com/dgallion1/refdoc/internal/pipeline"
	"github.com/dgallion1/refdoc/internal/watch"
)

// errRunFailed is returned when a run finished but its exit status is
// non-zero. The summary has already been printed.
var errRunFailed = errors.New("run failed")

type CLI struct {
	Globals `embed:""`

	Build BuildCmd `cmd:"" default:"withargs" help:"Render the corpus into the output directory"`
	Check CheckCmd `cmd:"" help:"Parse and resolve the corpus without writing output"`
	Serve ServeCmd `cmd:"" help:"Serve a live preview of the corpus"`
}

type Globals struct {
	Config    string           `short:"c" help:"YAML configuration file" type:"path"`
	Verbose   bool             `short:"v" help:"Enable debug logging"`
	LogLevel  string           `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string           `name:"log-format" help:"Log format (text or json)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`
}

// CorpusFlags override configuration for one invocation. Zero values leave
// the configured setting alone.
type CorpusFlags struct {
	Source             string   `short:"s" help:"Corpus root directory" type:"path"`
	Out                string   `short:"o" help:"Output directory" type:"path"`
	Format             string   `short:"f" help:"Output format (hypertext or plaintext)"`
	Extensions         []string `name:"extensions" sep:"," help:"Source extensions to read (default ${default_extensions}; also available: ${import_extensions})"`
	IncludeSourceLinks bool     `name:"include-source-links" help:"Link each page to its source document"`
	SourceBaseURL      string   `name:"source-base-url" help:"Base URL for source links"`
	Workers            int      `short:"w" help:"Worker goroutines per stage"`
	Strict             bool     `help:"Exit non-zero when any document fails"`
	NoIndex            bool     `name:"no-index" help:"Do not write the index page"`
}

func (f CorpusFlags) apply(cfg *config.Config) {
	if f.Source != "" {
		cfg.SourceDir = f.Source
	}
	if f.Out != "" {
		cfg.OutDir = f.Out
	}
	if f.Format != "" {
		cfg.Format = f.Format
	}
	if len(f.Extensions) > 0 {
		cfg.Extensions = f.Extensions
	}
	if f.IncludeSourceLinks {
		cfg.IncludeSourceLinks = true
	}
	if f.SourceBaseURL != "" {
		cfg.SourceBaseURL = f.SourceBaseURL
	}
	if f.Workers > 0 {
		cfg.WorkerCount = f.Workers
	}
	if f.Strict {
		cfg.Strict = true
	}
	if f.NoIndex {
		cfg.WriteIndex = false
	}
}

func cliVars(version string) kong.Vars {
	return kong.Vars{
		"version":            version,
		"default_extensions": strings.Join(parser.DefaultExtensions, ","),
		"import_extensions":  strings.Join(parser.ImportExtensions, ","),
	}
}

// setup resolves configuration in order: environment, config file, flags.
func (g *Globals) setup(flags CorpusFlags) (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if g.Config != "" {
		if err := config.LoadFile(g.Config, &cfg); err != nil {
			return cfg, nil, err
		}
	}
	flags.apply(&cfg)
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.Verbose {
		cfg.LogLevel = "debug"
	}
	if g.LogFormat != "" {
		cfg.LogFormat = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

type BuildCmd struct {
	CorpusFlags `embed:""`
}

func (b *BuildCmd) Run(g *Globals) error {
	return runOnce(g, b.CorpusFlags, pipeline.ModeBuild)
}

type CheckCmd struct {
	CorpusFlags `embed:""`
}

func (c *CheckCmd) Run(g *Globals) error {
	return runOnce(g, c.CorpusFlags, pipeline.ModeCheck)
}

func runOnce(g *Globals, flags CorpusFlags, mode pipeline.Mode) error {
	cfg, log, err := g.setup(flags)
	if err != nil {
		return err
	}
	orch, err := pipeline.NewOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orch.Run(ctx, mode)
	if err != nil {
		return err
	}
	res.WriteSummary(os.Stderr)
	if res.ExitCode(cfg.Strict) != 0 {
		return errRunFailed
	}
	return nil
}

type ServeCmd struct {
	CorpusFlags `embed:""`
	Port  string `short:"p" help:"Listen port"`
	Watch bool   `help:"Rebuild when files under the corpus root change"`
}

func (s *ServeCmd) Run(g *Globals) error {
	cfg, log, err := g.setup(s.CorpusFlags)
	if err != nil {
		return err
	}
	if s.Port != "" {
		cfg.Port = s.Port
	}

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orch, err := pipeline.NewOrchestrator(cfg, log)
	if err != nil {
		return err
	}
	orch.WithRecorder(metrics.NewPrometheusRecorder(reg))
	srv := api.NewServer(orch, metrics.HTTPHandler(reg), log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := srv.Rebuild(ctx); err != nil {
		return err
	}

	if s.Watch {
		w, err := watch.New(cfg.SourceDir, cfg.WatchDebounce, log)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			_ = w.Run(ctx, func(ctx context.Context) {
				_, _ = srv.Rebuild(ctx)
			})
		}()
		log.Info("watching for changes", logfields.Path(cfg.SourceDir))
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting refdoc preview", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
