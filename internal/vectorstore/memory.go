package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-similarity store. It keeps insertion
// order, which makes it the reference implementation for the deterministic
// tie-break the Store contract promises.
type Memory struct {
	mu      sync.RWMutex
	order   []string // chunk IDs in first-insertion order
	entries map[string]Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Upsert(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, ok := m.entries[e.ChunkID]; !ok {
			m.order = append(m.order, e.ChunkID)
		}
		m.entries[e.ChunkID] = e
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range chunkIDs {
		m.remove(id)
	}
	return nil
}

func (m *Memory) DeleteByNote(ctx context.Context, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var doomed []string
	for id, e := range m.entries {
		if e.NoteID == noteID {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		m.remove(id)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.order) == 0 {
		return nil, nil
	}

	type scored struct {
		pos int
		hit Hit
	}
	candidates := make([]scored, 0, len(m.order))
	for pos, id := range m.order {
		e := m.entries[id]
		candidates = append(candidates, scored{
			pos: pos,
			hit: Hit{
				ChunkID: e.ChunkID,
				NoteID:  e.NoteID,
				Score:   CosineSimilarity(vector, e.Vector),
				Text:    e.Text,
			},
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].pos < candidates[j].pos
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = candidates[i].hit
	}
	return hits, nil
}

// Len reports the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// remove assumes the write lock is held.
func (m *Memory) remove(id string) {
	if _, ok := m.entries[id]; !ok {
		return
	}
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
