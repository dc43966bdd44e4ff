package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/refdoc/internal/config"
	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/logfields"
	"github.com/dgallion1/refdoc/internal/metrics"
	"github.com/dgallion1/refdoc/internal/parser"
	"github.com/dgallion1/refdoc/internal/render"
	"github.com/dgallion1/refdoc/internal/resolver"
)

// Worker processes single document jobs. It holds no per-job state and is
// shared by all pool goroutines.
type Worker struct {
	cfg      config.Config
	renderer render.Renderer
	log      *slog.Logger
	recorder metrics.Recorder
}

func NewWorker(cfg config.Config, r render.Renderer, log *slog.Logger, rec metrics.Recorder) *Worker {
	return &Worker{cfg: cfg, renderer: r, log: log, recorder: rec}
}

// Parse reads and parses the job's source. Failures are recorded on the job.
func (w *Worker) Parse(ctx context.Context, job *Job) {
	log := w.log.With(logfields.DocID(job.Source.ID), logfields.Path(job.Source.Rel))
	job.SetStatus(StatusParsing, "parsing")

	fail := func(d diag.Diagnostic, err error) {
		log.Warn("document skipped", logfields.Stage("parse"), logfields.Error(err))
		job.Fail("parsing", d)
		w.recorder.IncDocumentResult("parse", metrics.ResultFailed)
	}

	if job.Source.Size > w.cfg.MaxDocumentBytes {
		err := fmt.Errorf("document is %d bytes, limit is %d", job.Source.Size, w.cfg.MaxDocumentBytes)
		fail(diag.Error(diag.KindDocumentTooLarge, 0, "%v", err), err)
		return
	}

	p, err := parser.ForFile(job.Source.Rel)
	if err != nil {
		fail(diag.Error(diag.KindUnsupportedFormat, 0, "%v", err), err)
		return
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = w.cfg.PDFFallbackPdftotext
	}

	data, err := os.ReadFile(job.Source.Path)
	if err != nil {
		fail(diag.Error(diag.KindCorpusDiscovery, 0, "read: %v", err), err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	doc, err := p.Parse(bytes.NewReader(data), job.Source.Rel)
	if err != nil {
		var mm *parser.MalformedMarkupError
		if errors.As(err, &mm) {
			fail(diag.Error(diag.KindMalformedMarkup, mm.Line, "%s", malformedMessage(mm)), err)
		} else {
			fail(diag.Error(diag.KindMalformedMarkup, 0, "parse: %v", err), err)
		}
		return
	}
	doc.ID = job.Source.ID
	for i := range doc.Warnings {
		doc.Warnings[i].DocID = doc.ID
	}
	job.SetDocument(doc)
	w.recorder.IncDocumentResult("parse", metrics.ResultSuccess)
	log.Debug("document parsed", "blocks", len(doc.Blocks), "warnings", len(doc.Warnings))
}

func malformedMessage(e *parser.MalformedMarkupError) string {
	msg := "malformed markup: expected " + e.Expected
	if e.Found != "" {
		msg += ", found " + e.Found
	}
	return msg
}

// Render renders the job's document. With write set the output is written
// under OutDir unless the file already holds the same bytes.
func (w *Worker) Render(ctx context.Context, job *Job, syms *resolver.SymbolTable, write bool) {
	log := w.log.With(logfields.DocID(job.Source.ID))
	job.SetStatus(StatusRendering, "rendering")

	data, err := w.renderer.Render(job.Document(), syms)
	if err != nil {
		log.Error("render failed", logfields.Error(err))
		job.Fail("rendering", diag.Error(diag.KindWriteFailure, 0, "render: %v", err))
		w.recorder.IncDocumentResult("render", metrics.ResultFailed)
		return
	}
	rel := render.OutputPath(job.Source.ID, w.renderer.Extension())
	job.SetOutput(rel, data)

	if !write {
		job.SetStatus(StatusRendered, "rendered")
		w.recorder.IncDocumentResult("render", metrics.ResultSuccess)
		return
	}
	if ctx.Err() != nil {
		return
	}

	changed, err := writeIfChanged(filepath.Join(w.cfg.OutDir, filepath.FromSlash(rel)), data)
	switch {
	case err != nil:
		log.Error("write failed", logfields.Error(err))
		job.Fail("writing", diag.Error(diag.KindWriteFailure, 0, "write %s: %v", rel, err))
		w.recorder.IncDocumentResult("render", metrics.ResultFailed)
	case !changed:
		job.SetStatus(StatusUnchanged, "unchanged")
		w.recorder.IncDocumentResult("render", metrics.ResultUnchanged)
	default:
		job.SetStatus(StatusRendered, "written")
		w.recorder.IncDocumentResult("render", metrics.ResultSuccess)
		log.Debug("output written", logfields.Path(rel), "bytes", len(data))
	}
}

// WriteIndex renders the corpus index page from the symbol table.
func (w *Worker) WriteIndex(res *Result, syms *resolver.SymbolTable, write bool) error {
	var entries []render.IndexEntry
	for _, doc := range syms.Documents() {
		e := render.IndexEntry{DocID: doc.ID, Title: doc.Title, Subtitle: doc.Subtitle}
		for _, def := range syms.DefinedBy(doc.ID) {
			e.Symbols = append(e.Symbols, def.Name)
		}
		entries = append(entries, e)
	}
	data, err := w.renderer.RenderIndex(entries)
	if err != nil {
		return err
	}
	rel := render.OutputPath(render.IndexID, w.renderer.Extension())
	if !write {
		if res.Outputs == nil {
			res.Outputs = make(map[string][]byte)
		}
		res.Outputs[rel] = data
		return nil
	}
	_, err = writeIfChanged(filepath.Join(w.cfg.OutDir, filepath.FromSlash(rel)), data)
	return err
}

// writeIfChanged writes data to path through a temporary file and rename,
// skipping the write when the file already has the same content.
func writeIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && ContentHashHex(existing) == ContentHashHex(data) {
		return false, nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".refdoc-*")
	if err != nil {
		return false, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return false, err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return false, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("rename output: %w", err)
	}
	return true, nil
}
