package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/refdoc/internal/config"
	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/parser"
)

const docA = `=TITLE class Foo

=head1 Methods

=head2 method bar

Does bar.
`

const docB = `=TITLE Guide

See L<Foo> and L<Missing>.
`

const brokenDoc = `=TITLE Broken

=begin code
say 1;
`

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func testConfig(t *testing.T, root string) config.Config {
	return config.Config{
		SourceDir:        root,
		OutDir:           filepath.Join(t.TempDir(), "out"),
		Extensions:       parser.DefaultExtensions,
		Format:           "hypertext",
		WriteIndex:       true,
		WorkerCount:      3,
		MaxDocumentBytes: 1 << 20,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

func run(t *testing.T, cfg config.Config, mode Mode) *Result {
	t.Helper()
	o, err := NewOrchestrator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	res, err := o.Run(context.Background(), mode)
	require.NoError(t, err)
	return res
}

func TestDiscover(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"Type/Str.rakudoc":          docA,
		"Type/Str.md":               "# Str\n",
		"Language/Intro Guide.pod6": docB,
		".git/HEAD.md":              "# hidden\n",
		"Type/.draft.pod6":          docB,
		"notes.rst":                 "ignored\n",
	})

	sources, err := Discover(root, parser.DefaultExtensions)
	require.NoError(t, err)

	var rels, ids []string
	for _, s := range sources {
		rels = append(rels, s.Rel)
		ids = append(ids, s.ID)
	}
	require.Equal(t, []string{"Language/Intro Guide.pod6", "Type/Str.md", "Type/Str.rakudoc"}, rels)
	require.Equal(t, []string{"language/intro-guide", "type/str", "type/str.rakudoc"}, ids)
	require.Equal(t, int64(len(docB)), sources[0].Size)
}

func TestDiscoverCollisionSuffix(t *testing.T) {
	sources := []Source{{Rel: "a.md"}, {Rel: "A.md"}, {Rel: "a.MD"}}
	assignIDs(sources)
	require.Equal(t, "a", sources[0].ID)
	require.Equal(t, "a.md", sources[1].ID)
	require.Equal(t, "a.md-2", sources[2].ID)
}

func TestDiscoverReservesIndexID(t *testing.T) {
	sources := []Source{{Rel: "_index.rakudoc"}, {Rel: "guide.md"}}
	assignIDs(sources)
	require.Equal(t, "_index.rakudoc", sources[0].ID)
	require.Equal(t, "guide", sources[1].ID)
}

func TestRunKeepsDocumentNamedLikeIndex(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"_index.rakudoc": docA}))
	res := run(t, cfg, ModeBuild)
	require.Equal(t, 1, res.Written)

	page, err := os.ReadFile(filepath.Join(cfg.OutDir, "_index.rakudoc.html"))
	require.NoError(t, err)
	require.Contains(t, string(page), "class Foo")

	index, err := os.ReadFile(filepath.Join(cfg.OutDir, "_index.html"))
	require.NoError(t, err)
	require.Contains(t, string(index), "_index.rakudoc.html")
}

func TestDiscoverErrors(t *testing.T) {
	var de *CorpusDiscoveryError

	_, err := Discover(filepath.Join(t.TempDir(), "missing"), nil)
	require.True(t, errors.As(err, &de))
	require.True(t, errors.Is(err, os.ErrNotExist))

	file := filepath.Join(t.TempDir(), "file.pod6")
	require.NoError(t, os.WriteFile(file, []byte(docA), 0o644))
	_, err = Discover(file, nil)
	require.True(t, errors.As(err, &de))
	require.Equal(t, file, de.Root)
}

func TestRunEmptyCorpus(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	res := run(t, cfg, ModeBuild)

	require.Empty(t, res.Jobs)
	require.Equal(t, 0, res.ExitCode(true))
	require.Equal(t, "success", res.Outcome())
	entries, _ := os.ReadDir(cfg.OutDir)
	require.Empty(t, entries)
}

func TestRunDiscoveryFailure(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing"))
	o, err := NewOrchestrator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), ModeBuild)
	var de *CorpusDiscoveryError
	require.True(t, errors.As(err, &de))
}

func TestRunResolvesAcrossDocuments(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))
	res := run(t, cfg, ModeBuild)

	require.Equal(t, 2, res.Written)
	require.Equal(t, 0, res.Failed)
	require.Equal(t, 0, res.ExitCode(true))

	def, ok := res.Symbols.Lookup("Foo")
	require.True(t, ok)
	require.Equal(t, "doca", def.DocID)

	out, err := os.ReadFile(filepath.Join(cfg.OutDir, "docb.html"))
	require.NoError(t, err)
	require.Contains(t, string(out), `href="doca.html`)
	require.Contains(t, string(out), `data-target="Missing"`)
	require.FileExists(t, filepath.Join(cfg.OutDir, "doca.html"))
	require.FileExists(t, filepath.Join(cfg.OutDir, "_index.html"))

	require.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindUnresolvedReference))
	// Warnings do not fail the run.
	require.Equal(t, 0, res.ExitCode(true))
}

func TestRunIsolatesMalformedDocument(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{
		"Broken.rakudoc": brokenDoc,
		"DocA.rakudoc":   docA,
	}))
	res := run(t, cfg, ModeBuild)

	require.Equal(t, 1, res.Failed)
	require.Equal(t, 1, res.Written)
	require.Equal(t, "partial", res.Outcome())
	require.Equal(t, 0, res.ExitCode(false))
	require.Equal(t, 1, res.ExitCode(true))

	failed := res.FailedJobs()
	require.Len(t, failed, 1)
	require.Equal(t, "Broken.rakudoc", failed[0].Path)
	require.Equal(t, "parsing", failed[0].Phase)

	var found bool
	for _, d := range res.Diagnostics {
		if d.Kind == diag.KindMalformedMarkup {
			found = true
			require.Equal(t, "Broken.rakudoc", d.Path)
			require.Equal(t, 3, d.Line)
			require.Equal(t, diag.SeverityError, d.Severity)
			require.Contains(t, d.Message, "expected =end code")
		}
	}
	require.True(t, found)

	require.FileExists(t, filepath.Join(cfg.OutDir, "doca.html"))
	require.NoFileExists(t, filepath.Join(cfg.OutDir, "broken.html"))

	var buf bytes.Buffer
	res.WriteSummary(&buf)
	require.Contains(t, buf.String(), "Skipped 1 of 2 documents:")
	require.Contains(t, buf.String(), "Broken.rakudoc: malformed markup: expected =end code, found end of document")
	require.Contains(t, buf.String(), "build: 2 documents, 1 failed, 1 written, 0 unchanged")
}

func TestRunAllFailed(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"Broken.rakudoc": brokenDoc}))
	res := run(t, cfg, ModeBuild)

	require.Equal(t, "failed", res.Outcome())
	require.Equal(t, 1, res.ExitCode(false))
	require.NoFileExists(t, filepath.Join(cfg.OutDir, "_index.html"))
}

func TestRunSkipsUnchangedOutputs(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))

	first := run(t, cfg, ModeBuild)
	require.Equal(t, 2, first.Written)

	second := run(t, cfg, ModeBuild)
	require.Equal(t, 0, second.Written)
	require.Equal(t, 2, second.Unchanged)
	require.Equal(t, first.Jobs[0].ContentHash, second.Jobs[0].ContentHash)
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRunPlaintext(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))
	cfg.Format = "plaintext"
	run(t, cfg, ModeBuild)

	out, err := os.ReadFile(filepath.Join(cfg.OutDir, "docb.txt"))
	require.NoError(t, err)
	require.Contains(t, string(out), "Foo [doca]")
	require.Contains(t, string(out), "Missing [unresolved: Missing]")
	require.FileExists(t, filepath.Join(cfg.OutDir, "_index.txt"))
}

func TestRunCheckWritesNothing(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))
	res := run(t, cfg, ModeCheck)

	require.Len(t, res.Documents, 2)
	require.Equal(t, 0, res.Written)
	require.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindUnresolvedReference))
	require.NoDirExists(t, cfg.OutDir)
}

func TestRunPreviewKeepsOutputsInMemory(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))
	res := run(t, cfg, ModePreview)

	require.Contains(t, res.Outputs, "doca.html")
	require.Contains(t, res.Outputs, "docb.html")
	require.Contains(t, res.Outputs, "_index.html")
	require.Equal(t, 0, res.Written)
	require.NoDirExists(t, cfg.OutDir)
}

func TestRunSkipsOversizedDocuments(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA, "DocB.rakudoc": docB}))
	cfg.MaxDocumentBytes = int64(len(docB))
	res := run(t, cfg, ModeCheck)

	require.Equal(t, 1, res.Failed)
	require.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindDocumentTooLarge))
	require.Equal(t, "DocA.rakudoc", res.FailedJobs()[0].Path)
}

func TestRunCanceled(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"DocA.rakudoc": docA}))
	o, err := NewOrchestrator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, ModeBuild)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewOrchestratorRejectsUnknownFormat(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Format = "pdf"
	_, err := NewOrchestrator(cfg, slog.Default())
	require.Error(t, err)
}
