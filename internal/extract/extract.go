// Package extract turns source identifiers (URLs, file paths) into plain
// text the pipeline can ingest. The core only depends on the Extractor
// contract; each format lives in its own implementation.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
)

// Content is the extraction result handed to the pipeline.
type Content struct {
	SourceRef string
	Title     string
	RawText   string
}

// Extractor handles one family of sources.
type Extractor interface {
	CanHandle(source string) bool
	Extract(ctx context.Context, source string) (*Content, error)
}

// Registry tries registered extractors in order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry with the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Register appends an extractor.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Extract dispatches to the first extractor claiming the source. Any
// extractor failure surfaces as a non-retryable extraction error.
func (r *Registry) Extract(ctx context.Context, source string) (*Content, error) {
	for _, e := range r.extractors {
		if !e.CanHandle(source) {
			continue
		}
		content, err := e.Extract(ctx, source)
		if err != nil {
			return nil, apperr.NewExtraction(source, err)
		}
		return content, nil
	}
	return nil, apperr.NewExtraction(source, fmt.Errorf("no extractor for source"))
}

func hasExt(source string, exts ...string) bool {
	got := strings.ToLower(filepath.Ext(source))
	for _, e := range exts {
		if got == e {
			return true
		}
	}
	return false
}

func titleFromPath(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
