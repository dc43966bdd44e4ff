package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/doctree"
)

// JobStatus represents the state of one document within a run.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusParsed    JobStatus = "parsed"
	StatusRendering JobStatus = "rendering"
	StatusRendered  JobStatus = "rendered"
	StatusUnchanged JobStatus = "unchanged"
	StatusFailed    JobStatus = "failed"
)

// Job tracks a single document through parse, render and write.
type Job struct {
	mu sync.Mutex

	Source Source

	Status JobStatus
	Phase  string
	Title  string

	// ContentHash is the SHA-256 of the rendered output.
	ContentHash string
	OutputPath  string
	OutputBytes int
	UpdatedAt   time.Time

	// Internal: not serialized.
	doc    *doctree.Document
	output []byte
	diags  []diag.Diagnostic
	errors []string
}

func newJob(src Source) *Job {
	return &Job{Source: src, Status: StatusQueued, Phase: "queued", UpdatedAt: time.Now()}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed in phase and records why.
func (j *Job) Fail(phase string, d diag.Diagnostic) {
	j.mu.Lock()
	defer j.mu.Unlock()
	d.DocID = j.Source.ID
	d.Path = j.Source.Rel
	j.diags = append(j.diags, d)
	j.errors = append(j.errors, d.Message)
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Failed reports whether the job has failed.
func (j *Job) Failed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == StatusFailed
}

// SetDocument records the parsed document and its warnings.
func (j *Job) SetDocument(doc *doctree.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc = doc
	j.Title = doc.Title
	j.diags = append(j.diags, doc.Warnings...)
	j.Status = StatusParsed
	j.Phase = "parsed"
	j.UpdatedAt = time.Now()
}

// Document returns the parsed document, or nil if parsing failed.
func (j *Job) Document() *doctree.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc
}

// SetOutput records the rendered bytes and their hash.
func (j *Job) SetOutput(path string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = data
	j.OutputPath = path
	j.OutputBytes = len(data)
	j.ContentHash = ContentHashHex(data)
	j.UpdatedAt = time.Now()
}

// Output returns the rendered bytes.
func (j *Job) Output() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

// Diagnostics returns the job's parse warnings and failures.
func (j *Job) Diagnostics() []diag.Diagnostic {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]diag.Diagnostic(nil), j.diags...)
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	DocID       string    `json:"doc_id"`
	Path        string    `json:"path"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Title       string    `json:"title"`
	OutputPath  string    `json:"output_path,omitempty"`
	OutputBytes int       `json:"output_bytes"`
	ContentHash string    `json:"content_hash,omitempty"`
	Errors      []string  `json:"errors"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	return JobSnapshot{
		DocID:       j.Source.ID,
		Path:        j.Source.Rel,
		Status:      j.Status,
		Phase:       j.Phase,
		Title:       j.Title,
		OutputPath:  j.OutputPath,
		OutputBytes: j.OutputBytes,
		ContentHash: j.ContentHash,
		Errors:      errs,
	}
}

// JobStore is a thread-safe registry of the jobs of one run, kept in
// discovery order.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	order []*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Source.ID]; !ok {
		s.order = append(s.order, job)
	}
	s.jobs[job.Source.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// All returns the jobs in discovery order.
func (s *JobStore) All() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.order...)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
