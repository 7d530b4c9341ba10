package vectorstore

import (
	"context"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
)

const metaNoteID = "note_id"

// Chromem is the persistent vector store, backed by a chromem-go
// collection on disk.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromem opens (or creates) a persistent database at path and the
// named collection inside it. An empty path opens an in-memory database.
func NewChromem(path, collectionName string) (*Chromem, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, apperr.NewStoreUnavailable("failed to open vector database", err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, apperr.NewStoreUnavailable("failed to open collection", err)
	}
	return &Chromem{db: db, collection: collection}, nil
}

func (c *Chromem) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		meta := map[string]string{metaNoteID: e.NoteID}
		for k, v := range e.Metadata {
			meta[k] = v
		}
		docs[i] = chromem.Document{
			ID:        e.ChunkID,
			Content:   e.Text,
			Metadata:  meta,
			Embedding: e.Vector,
		}
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return apperr.NewStoreUnavailable("failed to upsert chunk vectors", err)
	}
	return nil
}

func (c *Chromem) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, nil, nil, chunkIDs...); err != nil {
		return apperr.NewStoreUnavailable("failed to delete chunks", err)
	}
	return nil
}

func (c *Chromem) DeleteByNote(ctx context.Context, noteID string) error {
	err := c.collection.Delete(ctx, map[string]string{metaNoteID: noteID}, nil)
	if err != nil {
		return apperr.NewStoreUnavailable("failed to delete note chunks", err)
	}
	return nil
}

func (c *Chromem) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	count := c.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection size.
	if k > count {
		k = count
	}
	results, err := c.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, apperr.NewStoreUnavailable("similarity query failed", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ChunkID: r.ID,
			NoteID:  r.Metadata[metaNoteID],
			Score:   r.Similarity,
			Text:    r.Content,
		}
	}
	return hits, nil
}
