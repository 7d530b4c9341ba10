// Package query answers questions from ingested material, enforcing the
// "no source, no answer" rule.
package query

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/embedding"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/llm"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/notes"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/vectorstore"
)

// Engine runs one query through embed, retrieve, compose, generate and
// validate. Every answer either cites retrieved evidence or is the fixed
// no-evidence response; failures surface instead of being papered over
// with fabricated text.
type Engine struct {
	embedder embedding.Gateway
	store    vectorstore.Store
	repo     notes.Repository
	llm      llm.Gateway

	topK          int
	minSimilarity float32
	policy        string
}

// NewEngine wires the engine from its collaborators.
func NewEngine(embedder embedding.Gateway, store vectorstore.Store, repo notes.Repository, gateway llm.Gateway, cfg *config.Config) *Engine {
	return &Engine{
		embedder:      embedder,
		store:         store,
		repo:          repo,
		llm:           gateway,
		topK:          cfg.RAG.TopK,
		minSimilarity: cfg.RAG.MinSimilarity,
		policy:        cfg.RAG.ViolationPolicy,
	}
}

// Ask answers a question from the knowledge base.
func (e *Engine) Ask(ctx context.Context, question string) (*models.AnswerResult, error) {
	// Embed.
	vectors, err := e.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedding gateway returned wrong vector count for question")
	}

	// Retrieve.
	evidence, err := e.retrieve(ctx, vectors[0])
	if err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		log.Debug().Str("question", question).Msg("no evidence above threshold")
		return noEvidenceResult(), nil
	}

	// Compose and generate.
	prompt := composePrompt(question, evidence)
	answer, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Validate: out-of-range markers are a grounding violation, resolved
	// here and never surfaced to the caller.
	validated := ValidateCitations(answer, len(evidence), e.policy)
	if validated.Discarded {
		log.Warn().Str("question", question).Msg("answer discarded after grounding violation")
		return noEvidenceResult(), nil
	}
	if validated.Violated {
		log.Warn().Str("question", question).Msg("stripped ungrounded sentences from answer")
	}

	cited := make([]models.RetrievedEvidence, 0, len(validated.Cited))
	for _, marker := range validated.Cited {
		cited = append(cited, evidence[marker-1])
	}

	var sum float32
	for _, ev := range evidence {
		sum += ev.Score
	}

	return &models.AnswerResult{
		Answer:     validated.Answer,
		Cited:      cited,
		Grounded:   true,
		Confidence: sum / float32(len(evidence)),
	}, nil
}

// retrieve queries the store for top-K chunks above the similarity
// threshold and joins each with its owning note's citation metadata.
func (e *Engine) retrieve(ctx context.Context, vector []float32) ([]models.RetrievedEvidence, error) {
	hits, err := e.store.Query(ctx, vector, e.topK)
	if err != nil {
		return nil, err
	}
	evidence := make([]models.RetrievedEvidence, 0, len(hits))
	for _, h := range hits {
		if h.Score < e.minSimilarity {
			continue
		}
		note, err := e.repo.Get(ctx, h.NoteID)
		if err != nil {
			if errors.Is(err, notes.ErrNotFound) {
				// Chunk outlived its note; skip rather than cite a ghost.
				log.Warn().Str("chunk_id", h.ChunkID).Str("note_id", h.NoteID).Msg("retrieved chunk has no owning note")
				continue
			}
			return nil, err
		}
		evidence = append(evidence, models.RetrievedEvidence{
			Chunk: models.Chunk{
				ID:     h.ChunkID,
				NoteID: h.NoteID,
				Text:   h.Text,
			},
			Score:      h.Score,
			NoteID:     note.ID,
			NoteTitle:  note.Title,
			NoteSource: note.Source,
		})
	}
	return evidence, nil
}

func noEvidenceResult() *models.AnswerResult {
	return &models.AnswerResult{
		Answer:   NoEvidenceAnswer,
		Grounded: false,
	}
}
