package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by the pipeline, the API and the CLI.
const (
	KeyRunID      = "run_id"
	KeyDocID      = "doc_id"
	KeyPath       = "path"
	KeyStage      = "stage"
	KeyFormat     = "format"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func RunID(id string) slog.Attr     { return slog.String(KeyRunID, id) }
func DocID(id string) slog.Attr     { return slog.String(KeyDocID, id) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Stage(name string) slog.Attr   { return slog.String(KeyStage, name) }
func Format(f string) slog.Attr     { return slog.String(KeyFormat, f) }
func Count(n int) slog.Attr         { return slog.Int(KeyCount, n) }
func Since(t time.Time) slog.Attr   { return slog.Int64(KeyDurationMS, time.Since(t).Milliseconds()) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
