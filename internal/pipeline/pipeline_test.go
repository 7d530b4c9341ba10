package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/notes"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/vectorstore"
)

// stubEmbedder produces deterministic vectors without a network.
type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return nil, apperr.NewEmbeddingService("stub outage", false, nil)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0, 0}
	}
	return out, nil
}

// countingStore wraps the memory store and counts upserted entries.
type countingStore struct {
	*vectorstore.Memory
	mu         sync.Mutex
	upserted   int
	failUpsert bool
	onUpsert   func()
}

func (c *countingStore) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	c.mu.Lock()
	if c.failUpsert {
		c.mu.Unlock()
		return apperr.NewStoreUnavailable("stub store down", nil)
	}
	c.upserted += len(entries)
	onUpsert := c.onUpsert
	c.mu.Unlock()
	if err := c.Memory.Upsert(ctx, entries); err != nil {
		return err
	}
	if onUpsert != nil {
		onUpsert()
	}
	return nil
}

func testSetup(t *testing.T) (*Pipeline, *stubEmbedder, *countingStore, *notes.MemoryRepository) {
	t.Helper()
	cfg := config.Default()
	cfg.RAG.ChunkSize = 100
	cfg.RAG.ChunkOverlap = 10
	cfg.RAG.ChunkMinSize = 20
	cfg.Embedding.BatchSize = 4
	emb := &stubEmbedder{}
	store := &countingStore{Memory: vectorstore.NewMemory()}
	repo := notes.NewMemoryRepository()
	return New(emb, store, repo, cfg), emb, store, repo
}

// assertConsistent checks the core invariant: the note's chunk-ID list
// matches exactly what the store holds for that note.
func assertConsistent(t *testing.T, store *countingStore, repo *notes.MemoryRepository, noteID string) {
	t.Helper()
	ctx := context.Background()
	note, err := repo.Get(ctx, noteID)
	if err != nil {
		t.Fatalf("note %s missing from repository: %v", noteID, err)
	}
	hits, err := store.Query(ctx, []float32{1, 0, 0, 0}, 1<<20)
	if err != nil {
		t.Fatalf("store query failed: %v", err)
	}
	stored := map[string]bool{}
	for _, h := range hits {
		if h.NoteID == noteID {
			stored[h.ChunkID] = true
		}
	}
	if len(stored) != len(note.ChunkIDs) {
		t.Fatalf("store has %d chunks, note lists %d", len(stored), len(note.ChunkIDs))
	}
	for _, id := range note.ChunkIDs {
		if !stored[id] {
			t.Errorf("chunk %s listed on note but missing from store", id)
		}
	}
}

func TestIngest_CreatesConsistentNote(t *testing.T) {
	p, _, store, repo := testSetup(t)
	text := strings.Repeat("all work and no play makes jack a dull boy. ", 20)

	note, err := p.Ingest(context.Background(), "http://example.com/a", "Example A", text)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if note.ID == "" || len(note.ChunkIDs) < 2 {
		t.Fatalf("unexpected note: %+v", note)
	}
	if note.ContentHash != models.ContentHash(text) {
		t.Error("content hash not recorded")
	}
	assertConsistent(t, store, repo, note.ID)
}

func TestIngest_IdempotentOnSameContent(t *testing.T) {
	p, _, store, _ := testSetup(t)
	text := strings.Repeat("repeated content. ", 30)
	ctx := context.Background()

	first, err := p.Ingest(ctx, "http://example.com/a", "A", text)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	upsertsAfterFirst := store.upserted

	second, err := p.Ingest(ctx, "http://example.com/a", "A", text)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second ingest returned %s, want %s", second.ID, first.ID)
	}
	if len(second.ChunkIDs) != len(first.ChunkIDs) {
		t.Errorf("chunk counts differ: %d vs %d", len(second.ChunkIDs), len(first.ChunkIDs))
	}
	if store.upserted != upsertsAfterFirst {
		t.Errorf("upsert count grew from %d to %d on duplicate ingestion", upsertsAfterFirst, store.upserted)
	}
}

func TestIngest_EmbedFailureLeavesNothingBehind(t *testing.T) {
	p, emb, store, repo := testSetup(t)
	emb.fail = true

	_, err := p.Ingest(context.Background(), "src", "t", strings.Repeat("x. ", 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperr.Is(err, apperr.CodeIngestion) || apperr.StageOf(err) != apperr.StageEmbed {
		t.Errorf("err = %v, want INGESTION at embed stage", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after failed embed", store.Len())
	}
	if list, _ := repo.List(context.Background()); len(list) != 0 {
		t.Errorf("repository holds %d notes after failed embed", len(list))
	}
}

func TestIngest_UpsertFailureLeavesNothingBehind(t *testing.T) {
	p, _, store, repo := testSetup(t)
	store.failUpsert = true

	_, err := p.Ingest(context.Background(), "src", "t", strings.Repeat("y. ", 100))
	if !apperr.Is(err, apperr.CodeIngestion) || apperr.StageOf(err) != apperr.StageUpsert {
		t.Fatalf("err = %v, want INGESTION at upsert stage", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks", store.Len())
	}
	if list, _ := repo.List(context.Background()); len(list) != 0 {
		t.Errorf("repository holds %d notes", len(list))
	}
}

// failCreateRepo fails note creation after chunks were upserted, forcing
// the compensating delete path.
type failCreateRepo struct {
	*notes.MemoryRepository
}

func (r *failCreateRepo) Create(ctx context.Context, note *models.Note) error {
	return errors.New("disk full")
}

func TestIngest_PersistFailureTriggersCompensatingDelete(t *testing.T) {
	cfg := config.Default()
	cfg.RAG.ChunkSize = 100
	cfg.RAG.ChunkOverlap = 10
	emb := &stubEmbedder{}
	store := &countingStore{Memory: vectorstore.NewMemory()}
	repo := &failCreateRepo{notes.NewMemoryRepository()}
	p := New(emb, store, repo, cfg)

	_, err := p.Ingest(context.Background(), "src", "t", strings.Repeat("z. ", 100))
	if !apperr.Is(err, apperr.CodeIngestion) || apperr.StageOf(err) != apperr.StagePersist {
		t.Fatalf("err = %v, want INGESTION at persist stage", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after compensating delete", store.Len())
	}
}

func TestIngest_CancellationAfterUpsertCleansUp(t *testing.T) {
	p, _, store, repo := testSetup(t)
	ctx, cancel := context.WithCancel(context.Background())
	store.onUpsert = cancel // cancellation lands between upsert and note creation

	_, err := p.Ingest(ctx, "src", "t", strings.Repeat("w. ", 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after cancelled ingestion", store.Len())
	}
	if list, _ := repo.List(context.Background()); len(list) != 0 {
		t.Errorf("repository holds %d notes after cancelled ingestion", len(list))
	}
}

func TestIngest_SameSourceNewContentReplacesNote(t *testing.T) {
	p, _, store, repo := testSetup(t)
	ctx := context.Background()

	old, err := p.Ingest(ctx, "http://example.com/page", "v1", strings.Repeat("old content. ", 30))
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	updated, err := p.Ingest(ctx, "http://example.com/page", "v2", strings.Repeat("new content. ", 30))
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if updated.ID == old.ID {
		t.Fatal("changed content should produce a new note identity")
	}
	if _, err := repo.Get(ctx, old.ID); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("superseded note still present: %v", err)
	}
	hits, _ := store.Query(ctx, []float32{1, 0, 0, 0}, 1<<20)
	for _, h := range hits {
		if h.NoteID == old.ID {
			t.Errorf("chunk %s of superseded note still in store", h.ChunkID)
		}
	}
	assertConsistent(t, store, repo, updated.ID)
}

func TestIngest_ConcurrentDuplicatesSerialize(t *testing.T) {
	p, _, store, repo := testSetup(t)
	text := strings.Repeat("contended content. ", 40)

	const racers = 8
	ids := make([]string, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			note, err := p.Ingest(context.Background(), "src", "t", text)
			if err != nil {
				t.Errorf("racer %d failed: %v", i, err)
				return
			}
			ids[i] = note.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < racers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("racers got different notes: %s vs %s", ids[i], ids[0])
		}
	}
	list, _ := repo.List(context.Background())
	if len(list) != 1 {
		t.Fatalf("repository holds %d notes, want 1", len(list))
	}
	if store.upserted != len(list[0].ChunkIDs) {
		t.Errorf("upserted %d entries, want exactly one chunk set of %d", store.upserted, len(list[0].ChunkIDs))
	}
}

func TestDeleteNote_Cascades(t *testing.T) {
	p, _, store, repo := testSetup(t)
	ctx := context.Background()
	note, err := p.Ingest(ctx, "src", "t", strings.Repeat("doomed. ", 40))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := p.DeleteNote(ctx, note.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d chunks after delete", store.Len())
	}
	if _, err := repo.Get(ctx, note.ID); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("note still present after delete: %v", err)
	}
	if err := p.DeleteNote(ctx, note.ID); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
