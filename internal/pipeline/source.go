package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TextSource supplies source documents to the pipeline. It stands in for the
// OCR front end: the pipeline only ever sees a source identifier and a text
// blob, never file paths, page counts, or engine parameters.
type TextSource interface {
	// List returns the source identifiers of the documents in the batch.
	List(ctx context.Context) ([]string, error)
	// Read returns the text of one document.
	Read(ctx context.Context, sourceID string) (string, error)
}

// DirSource reads pre-extracted report text from a directory of .txt files.
// The source identifier is the filename without extension, matching how the
// OCR stage names its output.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// List returns the identifiers of all .txt documents in the directory, in
// stable lexical order.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Read returns the text of the document named by sourceID.
func (s *DirSource) Read(_ context.Context, sourceID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sourceID+".txt"))
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}
