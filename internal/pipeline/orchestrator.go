package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/refdoc/internal/config"
	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/logfields"
	"github.com/dgallion1/refdoc/internal/metrics"
	"github.com/dgallion1/refdoc/internal/render"
	"github.com/dgallion1/refdoc/internal/resolver"
)

// Mode selects how far a run goes.
type Mode int

const (
	ModeBuild   Mode = iota // parse, resolve, render and write the output tree
	ModeCheck               // parse and resolve only
	ModePreview             // parse, resolve and render in memory
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModePreview:
		return "preview"
	default:
		return "build"
	}
}

// Orchestrator runs the document pipeline over a corpus: discover, parse in
// parallel, resolve once, render in parallel, write.
type Orchestrator struct {
	cfg      config.Config
	log      *slog.Logger
	recorder metrics.Recorder
	renderer render.Renderer
}

// NewOrchestrator creates a pipeline for cfg.
func NewOrchestrator(cfg config.Config, log *slog.Logger) (*Orchestrator, error) {
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	r, err := render.New(render.Options{
		Format:             format,
		IncludeSourceLinks: cfg.IncludeSourceLinks,
		SourceBaseURL:      cfg.SourceBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Orchestrator{cfg: cfg, log: log, recorder: metrics.NoopRecorder{}, renderer: r}, nil
}

// WithRecorder sets the metrics recorder.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// WithRenderer replaces the renderer, for custom block transforms.
func (o *Orchestrator) WithRenderer(r render.Renderer) *Orchestrator {
	if r != nil {
		o.renderer = r
	}
	return o
}

// Result is the outcome of one run.
type Result struct {
	RunID     string        `json:"run_id"`
	Mode      string        `json:"mode"`
	Root      string        `json:"root"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	Jobs        []JobSnapshot     `json:"documents"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`

	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`

	// Documents holds the parsed documents in discovery order.
	Documents []*doctree.Document   `json:"-"`
	Symbols   *resolver.SymbolTable `json:"-"`
	// Outputs maps output paths to rendered bytes in preview mode.
	Outputs map[string][]byte `json:"-"`
}

// Run executes the pipeline. Only a corpus discovery failure or
// cancellation returns an error; per-document failures are recorded in the
// Result.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		Mode:      mode.String(),
		Root:      o.cfg.SourceDir,
		StartedAt: start,
	}
	log := o.log.With(logfields.RunID(res.RunID))
	log.Info("run started", "mode", res.Mode, logfields.Path(o.cfg.SourceDir), logfields.Format(o.cfg.Format))

	stageStart := time.Now()
	sources, err := Discover(o.cfg.SourceDir, o.cfg.Extensions)
	if err != nil {
		o.recorder.IncRunOutcome("failed")
		return nil, err
	}
	o.recorder.ObserveStageDuration("discover", time.Since(stageStart))
	o.recorder.SetDocuments(len(sources))
	log.Info("corpus discovered", logfields.Count(len(sources)), logfields.Since(stageStart))

	jobs := NewJobStore()
	for _, src := range sources {
		jobs.Put(newJob(src))
	}
	w := NewWorker(o.cfg, o.renderer, log, o.recorder)

	// Parse; the pool drains before anything is resolved.
	stageStart = time.Now()
	if err := o.pool(ctx, jobs.All(), func(ctx context.Context, job *Job) { w.Parse(ctx, job) }); err != nil {
		return nil, o.canceled(err)
	}
	o.recorder.ObserveStageDuration("parse", time.Since(stageStart))

	for _, job := range jobs.All() {
		if doc := job.Document(); doc != nil {
			res.Documents = append(res.Documents, doc)
		}
	}
	log.Info("parse complete", logfields.Count(len(res.Documents)), logfields.Since(stageStart))

	stageStart = time.Now()
	syms, warnings, err := resolver.Run(ctx, res.Documents)
	if err != nil {
		return nil, o.canceled(err)
	}
	res.Symbols = syms
	o.recorder.ObserveStageDuration("resolve", time.Since(stageStart))
	log.Info("references resolved", "symbols", syms.Len(), "warnings", len(warnings), logfields.Since(stageStart))

	if mode != ModeCheck {
		stageStart = time.Now()
		err := o.pool(ctx, jobs.All(), func(ctx context.Context, job *Job) {
			if job.Document() != nil {
				w.Render(ctx, job, syms, mode == ModeBuild)
			}
		})
		if err != nil {
			return nil, o.canceled(err)
		}
		if o.cfg.WriteIndex && len(res.Documents) > 0 {
			if err := w.WriteIndex(res, syms, mode == ModeBuild); err != nil {
				log.Error("index write failed", logfields.Error(err))
				warnings = append(warnings, diag.Error(diag.KindWriteFailure, 0, "write index: %v", err))
			}
		}
		o.recorder.ObserveStageDuration("render", time.Since(stageStart))
	}

	o.collect(res, jobs, warnings, mode)
	res.Duration = time.Since(start)
	o.recorder.ObserveRunDuration(res.Duration)
	o.recorder.IncRunOutcome(res.Outcome())

	log.Info("run finished",
		"outcome", res.Outcome(),
		"documents", len(res.Jobs),
		"failed", res.Failed,
		"written", res.Written,
		"unchanged", res.Unchanged,
		logfields.Since(start),
	)
	return res, nil
}

// pool feeds jobs to WorkerCount goroutines and waits for all of them.
func (o *Orchestrator) pool(ctx context.Context, jobs []*Job, fn func(context.Context, *Job)) error {
	queue := make(chan *Job)
	var wg sync.WaitGroup
	for range o.cfg.WorkerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-queue:
					if !ok {
						return
					}
					fn(ctx, job)
				}
			}
		}()
	}

feed:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- job:
		}
	}
	close(queue)
	wg.Wait()
	return ctx.Err()
}

func (o *Orchestrator) canceled(err error) error {
	o.recorder.IncRunOutcome("canceled")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run canceled: %w", err)
	}
	return err
}

func (o *Orchestrator) collect(res *Result, jobs *JobStore, warnings []diag.Diagnostic, mode Mode) {
	for _, job := range jobs.All() {
		snap := job.Snapshot()
		res.Jobs = append(res.Jobs, snap)
		res.Diagnostics = append(res.Diagnostics, job.Diagnostics()...)
		switch snap.Status {
		case StatusFailed:
			res.Failed++
		case StatusUnchanged:
			res.Unchanged++
		case StatusRendered:
			if mode == ModeBuild {
				res.Written++
			}
		}
		if mode == ModePreview && snap.Status == StatusRendered {
			if res.Outputs == nil {
				res.Outputs = make(map[string][]byte)
			}
			res.Outputs[snap.OutputPath] = job.Output()
		}
	}
	res.Diagnostics = append(res.Diagnostics, warnings...)
	diag.Sort(res.Diagnostics)

	counts := make(map[diag.Kind]int)
	for _, d := range res.Diagnostics {
		counts[d.Kind]++
	}
	for kind, n := range counts {
		o.recorder.AddDiagnostics(string(kind), n)
	}
}

// Outcome summarises the run: success, partial when some documents failed,
// failed when all did.
func (r *Result) Outcome() string {
	switch {
	case r.Failed == 0:
		return "success"
	case r.Failed == len(r.Jobs):
		return "failed"
	default:
		return "partial"
	}
}

// FailedJobs returns the documents that were skipped.
func (r *Result) FailedJobs() []JobSnapshot {
	var out []JobSnapshot
	for _, j := range r.Jobs {
		if j.Status == StatusFailed {
			out = append(out, j)
		}
	}
	return out
}
