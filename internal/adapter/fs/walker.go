package fs

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Walker enumerates ingestable documents under a root directory,
// applying doublestar include/exclude glob patterns to relative paths.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Document is a file selected for ingestion. RelPath is slash-separated
// and relative to the walked root; it doubles as the document id.
// ModTime is milliseconds since epoch, the unit timestamps carry
// everywhere in the index.
type Document struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
}

func (w *Walker) Walk(root string) ([]Document, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var docs []Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.matches(w.excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.matches(w.includes, rel) || w.matches(w.excludes, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		docs = append(docs, Document{
			Path:    path,
			RelPath: rel,
			ModTime: info.ModTime().UnixMilli(),
			Size:    info.Size(),
		})
		return nil
	})

	return docs, err
}

func (w *Walker) matches(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
