package notes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/models"
)

type noteRecord struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID          string    `bun:"id,pk"`
	Source      string    `bun:"source,notnull"`
	Title       string    `bun:"title"`
	RawText     string    `bun:"raw_text,notnull"`
	ContentHash string    `bun:"content_hash,notnull"`
	ChunkIDs    []string  `bun:"chunk_ids,array"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// BunRepository persists notes in Postgres via bun.
type BunRepository struct {
	db *bun.DB
}

// ConnectDB opens the Postgres connection for the note repository.
func ConnectDB(dsn, password string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(password)))
}

// NewBunRepository wraps sqldb with bun and optionally attaches the debug
// query hook.
func NewBunRepository(sqldb *sql.DB, debug bool) *BunRepository {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &BunRepository{db: db}
}

// Init creates the notes table if it does not exist.
func (r *BunRepository) Init(ctx context.Context) error {
	_, err := r.db.NewCreateTable().Model((*noteRecord)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Close releases the underlying connection pool.
func (r *BunRepository) Close() error { return r.db.Close() }

func (r *BunRepository) Create(ctx context.Context, note *models.Note) error {
	rec := toRecord(note)
	_, err := r.db.NewInsert().Model(rec).On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("raw_text = EXCLUDED.raw_text").
		Set("content_hash = EXCLUDED.content_hash").
		Set("chunk_ids = EXCLUDED.chunk_ids").
		Exec(ctx)
	return err
}

func (r *BunRepository) Get(ctx context.Context, id string) (*models.Note, error) {
	return r.selectOne(ctx, "id = ?", id)
}

func (r *BunRepository) GetByHash(ctx context.Context, contentHash string) (*models.Note, error) {
	return r.selectOne(ctx, "content_hash = ?", contentHash)
}

func (r *BunRepository) GetBySource(ctx context.Context, source string) (*models.Note, error) {
	return r.selectOne(ctx, "source = ?", source)
}

func (r *BunRepository) List(ctx context.Context) ([]*models.Note, error) {
	var recs []noteRecord
	if err := r.db.NewSelect().Model(&recs).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*models.Note, len(recs))
	for i := range recs {
		out[i] = fromRecord(&recs[i])
	}
	return out, nil
}

func (r *BunRepository) UpdateChunkIDs(ctx context.Context, id string, chunkIDs []string) error {
	res, err := r.db.NewUpdate().Model((*noteRecord)(nil)).
		Set("chunk_ids = ?", pgdialect.Array(chunkIDs)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (r *BunRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*noteRecord)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (r *BunRepository) selectOne(ctx context.Context, where string, arg any) (*models.Note, error) {
	rec := new(noteRecord)
	err := r.db.NewSelect().Model(rec).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRecord(rec), nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toRecord(n *models.Note) *noteRecord {
	return &noteRecord{
		ID:          n.ID,
		Source:      n.Source,
		Title:       n.Title,
		RawText:     n.RawText,
		ContentHash: n.ContentHash,
		ChunkIDs:    n.ChunkIDs,
		CreatedAt:   n.CreatedAt,
	}
}

func fromRecord(rec *noteRecord) *models.Note {
	return &models.Note{
		ID:          rec.ID,
		Source:      rec.Source,
		Title:       rec.Title,
		RawText:     rec.RawText,
		ContentHash: rec.ContentHash,
		ChunkIDs:    rec.ChunkIDs,
		CreatedAt:   rec.CreatedAt,
	}
}
