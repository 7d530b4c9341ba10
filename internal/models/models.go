package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Note is a document-level record: one ingested source with its extracted
// text and the ordered list of chunk IDs materialized from it. The note
// repository owns these; chunk lists change only through re-ingestion or
// deletion.
type Note struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	RawText     string    `json:"raw_text"`
	ContentHash string    `json:"content_hash"`
	ChunkIDs    []string  `json:"chunk_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is the unit of embedding and retrieval: a bounded span of a note's
// raw text. Its vector, once written to the store, is immutable;
// re-embedding means delete and recreate.
type Chunk struct {
	ID     string `json:"id"`
	NoteID string `json:"note_id"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
}

// RetrievedEvidence pairs a retrieved chunk with its similarity score and
// the citation metadata of its owning note. Query-scoped, never persisted.
type RetrievedEvidence struct {
	Chunk      Chunk   `json:"chunk"`
	Score      float32 `json:"score"`
	NoteID     string  `json:"note_id"`
	NoteTitle  string  `json:"note_title"`
	NoteSource string  `json:"note_source"`
}

// AnswerResult is the outcome of one query. Grounded is false when the
// engine returned the fixed no-evidence answer instead of invoking the
// model.
type AnswerResult struct {
	Answer     string              `json:"answer"`
	Cited      []RetrievedEvidence `json:"cited"`
	Grounded   bool                `json:"grounded"`
	Confidence float32             `json:"confidence"`
}

// ContentHash fingerprints raw extracted text for duplicate-ingestion
// detection.
func ContentHash(rawText string) string {
	sum := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(sum[:])
}

// NoteIDFromHash derives a stable note ID from a content hash.
func NoteIDFromHash(contentHash string) string {
	if len(contentHash) > 16 {
		contentHash = contentHash[:16]
	}
	return "note_" + contentHash
}

// ChunkID derives a chunk ID from its owning note and sequence index.
func ChunkID(noteID string, index int) string {
	return fmt.Sprintf("%s_chunk_%04d", noteID, index)
}
