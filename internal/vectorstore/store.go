// Package vectorstore persists chunk embeddings and serves k-nearest
// neighbor queries over them.
package vectorstore

import "context"

// Entry is one stored chunk vector with its metadata.
type Entry struct {
	ChunkID  string
	NoteID   string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Hit is one similarity-query result.
type Hit struct {
	ChunkID string
	NoteID  string
	Score   float32
	Text    string
}

// Store is the vector store contract. Query returns hits ordered by
// descending cosine similarity; equal scores are broken by insertion order
// (earlier chunk wins) so ranking stays deterministic. Asking for more
// results than the store holds returns everything and never errors.
// Upsert is idempotent per chunk ID.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, chunkIDs []string) error
	DeleteByNote(ctx context.Context, noteID string) error
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
