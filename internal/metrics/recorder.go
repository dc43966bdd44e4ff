// Package metrics records run and stage measurements. Components take a
// Recorder; NoopRecorder is the default and PrometheusRecorder backs the
// preview server's /metrics endpoint.
package metrics

import "time"

// ResultLabel enumerates per-document stage outcomes.
type ResultLabel string

const (
	ResultSuccess   ResultLabel = "success"
	ResultUnchanged ResultLabel = "unchanged"
	ResultFailed    ResultLabel = "failed"
	ResultCanceled  ResultLabel = "canceled"
)

// Recorder defines observability hooks for pipeline runs.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncDocumentResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: success|partial|failed|canceled
	AddDiagnostics(kind string, n int)
	SetDocuments(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncDocumentResult(string, ResultLabel)      {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) AddDiagnostics(string, int)                 {}
func (NoopRecorder) SetDocuments(int)                           {}
