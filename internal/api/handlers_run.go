package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/refdoc/internal/diag"
	"github.com/dgallion1/refdoc/internal/pipeline"
)

// current returns the published result, or writes 503 when there is none.
func (s *Server) current(w http.ResponseWriter) *pipeline.Result {
	res, err := s.Latest()
	if res == nil {
		msg := "no completed run yet"
		if err != nil {
			msg = "last run failed: " + err.Error()
		}
		jsonError(w, msg, http.StatusServiceUnavailable)
		return nil
	}
	return res
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	writeJSON(w, http.StatusOK, runSummary(res))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.Rebuild(r.Context())
	if err != nil {
		jsonError(w, "rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runSummary(res))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	kind := diag.Kind(r.URL.Query().Get("kind"))
	out := []diag.Diagnostic{}
	for _, d := range res.Diagnostics {
		if kind == "" || d.Kind == kind {
			out = append(out, d)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnostics": out})
}

func runSummary(res *pipeline.Result) map[string]any {
	return map[string]any{
		"run_id":      res.RunID,
		"mode":        res.Mode,
		"started_at":  res.StartedAt,
		"duration_ms": res.Duration.Milliseconds(),
		"outcome":     res.Outcome(),
		"documents":   len(res.Jobs),
		"failed":      res.Failed,
		"symbols":     res.Symbols.Len(),
		"diagnostics": len(res.Diagnostics),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
