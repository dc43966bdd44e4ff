package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/refdoc/internal/doctree"
	"github.com/dgallion1/refdoc/internal/pipeline"
	"github.com/dgallion1/refdoc/internal/resolver"
	"github.com/dgallion1/refdoc/internal/toc"
)

// handleListDocuments lists every document of the run with its status.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	status := pipeline.JobStatus(r.URL.Query().Get("status"))
	docs := []pipeline.JobSnapshot{}
	for _, j := range res.Jobs {
		if status == "" || j.Status == status {
			docs = append(docs, j)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

type blockView struct {
	Kind string `json:"kind"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text"`
}

// handleGetDocument returns one parsed document: its outline and the
// heading trail of each section, blocks, links with their resolution and
// the symbols it defines.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	id := strings.Trim(chi.URLParam(r, "*"), "/")
	var job *pipeline.JobSnapshot
	for i := range res.Jobs {
		if res.Jobs[i].DocID == id {
			job = &res.Jobs[i]
			break
		}
	}
	if job == nil {
		jsonError(w, "document not found: "+id, http.StatusNotFound)
		return
	}

	body := map[string]any{"document": job}
	if doc, ok := res.Symbols.Document(id); ok {
		blocks := make([]blockView, 0, len(doc.Blocks))
		for _, b := range doc.Blocks {
			blocks = append(blocks, blockView{Kind: b.Kind(), Line: b.SourceLine(), Text: doctree.BlockText(b)})
		}
		defs := res.Symbols.DefinedBy(id)
		if defs == nil {
			defs = []resolver.Definition{}
		}
		links := doc.Links()
		if links == nil {
			links = []*doctree.Link{}
		}
		body["title"] = doc.Title
		body["subtitle"] = doc.Subtitle
		body["format"] = doc.Format
		outline := toc.Build(doc)
		body["outline"] = outline
		body["breadcrumbs"] = toc.Breadcrumbs(outline)
		body["blocks"] = blocks
		body["links"] = links
		body["symbols"] = defs
	}
	writeJSON(w, http.StatusOK, body)
}

// handleSymbols lists the symbol table, optionally filtered by a name
// prefix (?prefix=Str) or a document (?doc=type/str).
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	prefix := r.URL.Query().Get("prefix")
	docID := r.URL.Query().Get("doc")
	out := []resolver.Definition{}
	for _, d := range res.Symbols.Symbols() {
		if strings.HasPrefix(d.Name, prefix) && (docID == "" || d.DocID == docID) {
			out = append(out, d)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": out})
}

// handlePage serves a rendered output file from the latest preview run.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	res := s.current(w)
	if res == nil {
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if name == "" {
		name = "_index"
	}
	data, ok := res.Outputs[name]
	if !ok {
		for _, ext := range []string{".html", ".txt"} {
			if data, ok = res.Outputs[name+ext]; ok {
				name += ext
				break
			}
		}
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctype := "text/html; charset=utf-8"
	if path.Ext(name) == ".txt" {
		ctype = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	w.Write(data)
}
