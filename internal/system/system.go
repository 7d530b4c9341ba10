// Package system wires extractors, the content pipeline and the query
// engine into the surface a presentation layer calls.
package system

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/extract"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/notes"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/pipeline"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/query"
)

// NoteSystem is the application core: ingest sources, ask questions.
type NoteSystem struct {
	registry *extract.Registry
	pipeline *pipeline.Pipeline
	engine   *query.Engine
	repo     notes.Repository
}

// New assembles the system.
func New(registry *extract.Registry, p *pipeline.Pipeline, engine *query.Engine, repo notes.Repository) *NoteSystem {
	return &NoteSystem{registry: registry, pipeline: p, engine: engine, repo: repo}
}

// Ingest extracts a source and materializes it as a note.
func (s *NoteSystem) Ingest(ctx context.Context, source string) (*models.Note, error) {
	content, err := s.registry.Extract(ctx, source)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("source", source).Int("chars", len(content.RawText)).Msg("extracted source")
	return s.pipeline.Ingest(ctx, content.SourceRef, content.Title, content.RawText)
}

// Ask answers a question strictly from ingested material.
func (s *NoteSystem) Ask(ctx context.Context, question string) (*models.AnswerResult, error) {
	return s.engine.Ask(ctx, question)
}

// Delete removes a note and all its chunks.
func (s *NoteSystem) Delete(ctx context.Context, noteID string) error {
	return s.pipeline.DeleteNote(ctx, noteID)
}

// Get returns one note.
func (s *NoteSystem) Get(ctx context.Context, noteID string) (*models.Note, error) {
	return s.repo.Get(ctx, noteID)
}

// List returns all notes in creation order.
func (s *NoteSystem) List(ctx context.Context) ([]*models.Note, error) {
	return s.repo.List(ctx)
}
