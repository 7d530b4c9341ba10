// Package pipeline turns extracted text into persisted notes with fully
// embedded chunks.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/chunker"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/embedding"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/notes"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/vectorstore"
)

// Pipeline orchestrates chunking, embedding, vector upserts and note
// creation. The invariant it protects: the chunk IDs recorded on a note
// always equal the chunk set held for that note in the vector store.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embedding.Gateway
	store    vectorstore.Store
	repo     notes.Repository
	batch    int

	hashMu sync.Mutex
	hashes map[string]*sync.Mutex
}

// New wires the pipeline from its collaborators.
func New(embedder embedding.Gateway, store vectorstore.Store, repo notes.Repository, cfg *config.Config) *Pipeline {
	batch := cfg.Embedding.BatchSize
	if batch <= 0 {
		batch = 32
	}
	return &Pipeline{
		chunker:  chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.ChunkMinSize),
		embedder: embedder,
		store:    store,
		repo:     repo,
		batch:    batch,
		hashes:   make(map[string]*sync.Mutex),
	}
}

// Ingest materializes a note from extracted text. Identical content (same
// hash) short-circuits and returns the existing note; a changed document
// for a known source replaces its chunk set. All chunk vectors are durably
// stored before the note record is written, and any failure or
// cancellation after a partial upsert triggers a compensating delete, so
// the store and repository never diverge.
func (p *Pipeline) Ingest(ctx context.Context, source, title, rawText string) (*models.Note, error) {
	hash := models.ContentHash(rawText)

	// Duplicate submissions racing on the same content serialize here; the
	// loser finds the winner's note via the hash lookup below.
	lock := p.hashLock(hash)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := p.repo.GetByHash(ctx, hash); err == nil {
		log.Debug().Str("note_id", existing.ID).Msg("content already ingested")
		return existing, nil
	} else if !errors.Is(err, notes.ErrNotFound) {
		return nil, apperr.NewIngestion(apperr.StagePersist, err)
	}

	noteID := models.NoteIDFromHash(hash)
	spans := p.chunker.Split(rawText)
	if len(spans) == 0 {
		return nil, apperr.NewIngestion(apperr.StageChunk, errors.New("no text to ingest"))
	}

	chunks := make([]models.Chunk, len(spans))
	texts := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = models.Chunk{
			ID:     models.ChunkID(noteID, i),
			NoteID: noteID,
			Start:  s.Start,
			End:    s.End,
			Text:   s.Text,
		}
		texts[i] = s.Text
	}

	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		// Nothing persisted yet; surface directly.
		return nil, apperr.NewIngestion(apperr.StageEmbed, err)
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorstore.Entry{
			ChunkID: c.ID,
			NoteID:  c.NoteID,
			Vector:  vectors[i],
			Text:    c.Text,
			Metadata: map[string]string{
				"source": source,
				"title":  title,
			},
		}
	}
	if err := p.store.Upsert(ctx, entries); err != nil {
		p.compensate(noteID)
		return nil, apperr.NewIngestion(apperr.StageUpsert, err)
	}
	if err := ctx.Err(); err != nil {
		p.compensate(noteID)
		return nil, apperr.NewIngestion(apperr.StageUpsert, err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}
	note := &models.Note{
		ID:          noteID,
		Source:      source,
		Title:       title,
		RawText:     rawText,
		ContentHash: hash,
		ChunkIDs:    chunkIDs,
		CreatedAt:   time.Now(),
	}

	// Same source, new content: drop the superseded note and its chunks
	// before the replacement record lands.
	if prev, err := p.repo.GetBySource(ctx, source); err == nil && prev.ID != noteID {
		if err := p.store.DeleteByNote(ctx, prev.ID); err != nil {
			p.compensate(noteID)
			return nil, apperr.NewIngestion(apperr.StageUpsert, err)
		}
		if err := p.repo.Delete(ctx, prev.ID); err != nil && !errors.Is(err, notes.ErrNotFound) {
			p.compensate(noteID)
			return nil, apperr.NewIngestion(apperr.StagePersist, err)
		}
	}

	if err := p.repo.Create(ctx, note); err != nil {
		p.compensate(noteID)
		return nil, apperr.NewIngestion(apperr.StagePersist, err)
	}

	log.Info().Str("note_id", noteID).Int("chunks", len(chunks)).Str("source", source).Msg("ingested note")
	return note, nil
}

// DeleteNote removes a note and cascades to its chunk vectors. Vectors go
// first: a crash in between leaves a note whose chunks are missing from
// the store, which re-ingestion repairs, rather than orphaned vectors.
func (p *Pipeline) DeleteNote(ctx context.Context, id string) error {
	if _, err := p.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := p.store.DeleteByNote(ctx, id); err != nil {
		return err
	}
	return p.repo.Delete(ctx, id)
}

// embedAll runs embedding batches concurrently, preserving order.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += p.batch {
		start := start
		end := start + p.batch
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := p.embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// compensate removes any chunks already upserted for a failed ingestion.
// Runs on a fresh context: the cleanup must proceed even when the caller's
// context is already cancelled.
func (p *Pipeline) compensate(noteID string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.store.DeleteByNote(cleanupCtx, noteID); err != nil {
		log.Error().Err(err).Str("note_id", noteID).Msg("compensating delete failed; store may hold orphaned chunks")
	}
}

func (p *Pipeline) hashLock(hash string) *sync.Mutex {
	p.hashMu.Lock()
	defer p.hashMu.Unlock()
	if m, ok := p.hashes[hash]; ok {
		return m
	}
	m := &sync.Mutex{}
	p.hashes[hash] = m
	return m
}
