package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/refdoc/internal/parser"
	"github.com/dgallion1/refdoc/internal/render"
	"github.com/dgallion1/refdoc/internal/resolver"
)

// Source is one discovered document.
type Source struct {
	Path string `json:"-"`    // Filesystem path
	Rel  string `json:"path"` // Slash separated, relative to the corpus root
	ID   string `json:"id"`   // Canonical identifier
	Size int64  `json:"size"`
}

// CorpusDiscoveryError reports a corpus root that cannot be read. It aborts
// the whole run.
type CorpusDiscoveryError struct {
	Root string
	Err  error
}

func (e *CorpusDiscoveryError) Error() string {
	return fmt.Sprintf("discover corpus %s: %v", e.Root, e.Err)
}

func (e *CorpusDiscoveryError) Unwrap() error { return e.Err }

// Discover walks root for files with one of exts, skipping hidden files and
// directories. Sources are returned in lexical order of their relative path
// and carry unique identifiers: the first of two colliding paths gets the
// canonical id, later ones keep their extension.
func Discover(root string, exts []string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &CorpusDiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &CorpusDiscoveryError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	var sources []Source
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !parser.IsSupportedExtension(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: path, Rel: filepath.ToSlash(rel), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, &CorpusDiscoveryError{Root: root, Err: err}
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Rel < sources[j].Rel })
	assignIDs(sources)
	return sources, nil
}

// assignIDs gives each source its canonical ID. Later sources that collide
// keep their extension, then take a numeric suffix. The index page ID is
// never handed out.
func assignIDs(sources []Source) {
	taken := map[string]bool{render.IndexID: true}
	for i := range sources {
		id := resolver.CanonicalID(sources[i].Rel)
		if taken[id] {
			id = resolver.NormalizeID(sources[i].Rel)
		}
		for n, base := 2, id; taken[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		taken[id] = true
		sources[i].ID = id
	}
}
