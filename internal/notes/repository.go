// Package notes holds document-level records and their lifecycle.
package notes

import (
	"context"
	"errors"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
)

// ErrNotFound is returned when no note matches the lookup.
var ErrNotFound = errors.New("note not found")

// Repository is the note record contract. It is storage-agnostic: cascading
// chunk deletion is coordinated by the content pipeline, not here.
type Repository interface {
	Create(ctx context.Context, note *models.Note) error
	Get(ctx context.Context, id string) (*models.Note, error)
	GetByHash(ctx context.Context, contentHash string) (*models.Note, error)
	GetBySource(ctx context.Context, source string) (*models.Note, error)
	List(ctx context.Context) ([]*models.Note, error)
	UpdateChunkIDs(ctx context.Context, id string, chunkIDs []string) error
	Delete(ctx context.Context, id string) error
}
