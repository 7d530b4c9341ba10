package notes

import (
	"context"
	"sort"
	"sync"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
)

// MemoryRepository keeps notes in process memory. Safe for concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Note
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*models.Note)}
}

func (r *MemoryRepository) Create(ctx context.Context, note *models.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[note.ID] = cloneNote(note)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneNote(n), nil
}

func (r *MemoryRepository) GetByHash(ctx context.Context, contentHash string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.byID {
		if n.ContentHash == contentHash {
			return cloneNote(n), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetBySource(ctx context.Context, source string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.byID {
		if n.Source == source {
			return cloneNote(n), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Note, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, cloneNote(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateChunkIDs(ctx context.Context, id string, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	n.ChunkIDs = append([]string(nil), chunkIDs...)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func cloneNote(n *models.Note) *models.Note {
	c := *n
	c.ChunkIDs = append([]string(nil), n.ChunkIDs...)
	return &c
}
